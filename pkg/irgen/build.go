// Package irgen lowers a kmp AST (pkg/ast) into the basic-block IR (pkg/ir)
// the code generator consumes, assigning symbol-table addresses along the
// way. This mirrors the role ralph-cc's rtlgen plays relative to CminorSel:
// a CFG builder with an explicit "current block" cursor, fresh temporaries,
// and fresh block labels, that folds structured control flow into explicit
// successors.
package irgen

import (
	"fmt"
	"math/big"

	"github.com/repaj/kompilator/pkg/ast"
	"github.com/repaj/kompilator/pkg/ir"
	"github.com/repaj/kompilator/pkg/symtab"
)

// Builder accumulates basic blocks while walking the AST. It maintains a
// single "current block under construction" at a time: curInstrs grows
// until a structured construct calls finishBlock, which closes the current
// block with a terminator, and then openBlock, which starts the next one.
type Builder struct {
	syms *symtab.Table

	blocks    []ir.Block
	curName   string
	curInstrs []ir.Instruction

	labelCt int
	tempCt  ir.Temp
	boundCt int
}

var bigOne = big.NewInt(1)

// NewBuilder creates a Builder with a fresh, empty symbol table.
func NewBuilder() *Builder {
	return &Builder{syms: symtab.New()}
}

// Build lowers prog to IR. It returns the finished program and the symbol
// table the code generator will consult for scalar and array homes.
func Build(prog *ast.Program) (ir.Program, *symtab.Table, error) {
	b := NewBuilder()
	if err := b.declareAll(prog.Decls); err != nil {
		return ir.Program{}, nil, err
	}

	b.curName = "entry"
	for _, s := range prog.Body {
		if err := b.lowerStmt(s); err != nil {
			return ir.Program{}, nil, err
		}
	}
	b.finishBlock(ir.Halt{})

	return ir.Program{Blocks: b.blocks}, b.syms, nil
}

func (b *Builder) declareAll(decls []ast.Decl) error {
	for _, d := range decls {
		if b.syms.IsDeclared(d.Name) {
			return &ast.CompileError{Pos: d.Pos, Msg: fmt.Sprintf("%q already declared", d.Name)}
		}
		if !d.IsArray() {
			b.syms.DeclareScalar(d.Name)
			continue
		}
		if d.Hi.Cmp(d.Lo) < 0 {
			return &ast.CompileError{Pos: d.Pos, Msg: fmt.Sprintf("array %q has empty range [%s:%s]", d.Name, d.Lo, d.Hi)}
		}
		length := new(big.Int).Sub(d.Hi, d.Lo)
		length.Add(length, big.NewInt(1))
		b.syms.DeclareArray(d.Name, d.Lo.Int64(), length.Int64())
	}
	return nil
}

// freshTemp allocates a new IR temporary.
func (b *Builder) freshTemp() ir.NameTemp {
	t := b.tempCt
	b.tempCt++
	return ir.NameTemp{ID: t}
}

// freshLabel builds a globally-unique block name from prefix, one layer up
// from the assembly sink's own fresh-label counter, at block-name
// granularity instead of instruction-label granularity.
func (b *Builder) freshLabel(prefix string) string {
	n := b.labelCt
	b.labelCt++
	return fmt.Sprintf("%s%d", prefix, n)
}

// freshBoundName names the hidden scalar that snapshots a for loop's bound
// expression once at loop entry.
func (b *Builder) freshBoundName() string {
	n := b.boundCt
	b.boundCt++
	return fmt.Sprintf("$bound%d", n)
}

func (b *Builder) emit(instr ir.Instruction) {
	b.curInstrs = append(b.curInstrs, instr)
}

// finishBlock closes the block under construction with term and appends it
// to the program; the caller names the next block with openBlock.
func (b *Builder) finishBlock(term ir.Term) {
	b.blocks = append(b.blocks, ir.Block{Name: b.curName, Instrs: b.curInstrs, Term: term})
	b.curInstrs = nil
}

// openBlock starts a new current block named name. Call only right after
// finishBlock.
func (b *Builder) openBlock(name string) {
	b.curName = name
	b.curInstrs = nil
}
