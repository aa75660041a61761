// Package codegen implements the Descriptor Engine, the Arithmetic /
// Comparison Macros, Constant Materialization, and the Block Emitter that
// ties them together into a full code generator.
package codegen

import (
	"fmt"

	"github.com/repaj/kompilator/pkg/ir"
	"github.com/repaj/kompilator/pkg/liveness"
	"github.com/repaj/kompilator/pkg/symtab"
	"github.com/repaj/kompilator/pkg/vm"
)

// Codegen owns the three collaborating sub-components and drives the
// per-block, per-instruction emission loop.
type Codegen struct {
	sink     *vm.Sink
	engine   *Engine
	macros   *Macros
	consts   *ConstantEmitter
	analysis liveness.Result
}

// New creates a Codegen that will emit into a fresh Sink, resolving
// symbols against syms.
func New(syms *symtab.Table, analysis liveness.Result) *Codegen {
	sink := vm.NewSink()
	consts := NewConstantEmitter(sink)
	engine := NewEngine(sink, syms, consts)
	macros := NewMacros(sink, engine)
	return &Codegen{sink: sink, engine: engine, macros: macros, consts: consts, analysis: analysis}
}

// EmitProgram lowers every block of prog, in order, into the sink and
// returns the finished machine program.
func (cg *Codegen) EmitProgram(prog ir.Program) (vm.Program, error) {
	for _, b := range prog.Blocks {
		if err := cg.emitBlock(b); err != nil {
			return vm.Program{}, fmt.Errorf("block %q: %w", b.Name, err)
		}
	}
	return cg.sink.Program(), nil
}

func (cg *Codegen) emitBlock(b ir.Block) error {
	cg.engine.SetLiveOut(cg.analysis.LiveOut[b.Name])
	cg.sink.PlaceLabel(vm.Label(b.Name))

	for _, instr := range b.Instrs {
		cg.engine.ClearSelection()
		if err := cg.emitInstruction(instr); err != nil {
			return err
		}
	}

	cg.engine.ClearSelection()
	if err := cg.engine.SaveVariables(); err != nil {
		return err
	}
	if err := cg.emitTerm(b.Term); err != nil {
		return err
	}
	cg.engine.ResetRegistersState()
	return nil
}

func (cg *Codegen) emitInstruction(instr ir.Instruction) error {
	switch i := instr.(type) {
	case ir.Get:
		r, err := cg.macros.Get()
		if err != nil {
			return err
		}
		return cg.engine.Seize(r, i.Dst)

	case ir.Put:
		return cg.macros.Put(i.Src)

	case ir.Move:
		r, err := cg.macros.Copy(i.Src)
		if err != nil {
			return err
		}
		return cg.engine.Seize(r, i.Dst)

	case ir.IndexedLoad:
		r, err := cg.macros.LoadArray(i.Base, i.Offset)
		if err != nil {
			return err
		}
		return cg.engine.Seize(r, i.Dst)

	case ir.IndexedStore:
		return cg.macros.StoreArray(i.Base, i.Offset, i.Src)

	case ir.Binary:
		r, err := cg.emitBinary(i)
		if err != nil {
			return err
		}
		return cg.engine.Seize(r, i.Dst)

	default:
		return fmt.Errorf("%w: unhandled instruction %T", ErrMalformedIR, instr)
	}
}

func (cg *Codegen) emitBinary(i ir.Binary) (vm.Register, error) {
	switch i.Op {
	case ir.Add:
		return cg.macros.Add(i.Left, i.Right)
	case ir.Sub:
		return cg.macros.Sub(i.Left, i.Right)
	case ir.Mul:
		return cg.macros.LongMul(i.Left, i.Right)
	case ir.Div:
		return cg.macros.LongDiv0(i.Left, i.Right, false)
	case ir.Rem:
		return cg.macros.LongDiv0(i.Left, i.Right, true)
	default:
		return 0, fmt.Errorf("%w: unknown binary op %v", ErrMalformedIR, i.Op)
	}
}

func (cg *Codegen) emitTerm(t ir.Term) error {
	switch term := t.(type) {
	case ir.Jump:
		cg.sink.Emit(vm.JUMP{L: vm.Label(term.Target)})
		return nil

	case ir.JumpIf:
		return cg.emitJumpIf(term)

	case ir.Halt:
		cg.sink.Emit(vm.HALT{})
		return nil

	default:
		return fmt.Errorf("%w: unhandled terminator %T", ErrMalformedIR, t)
	}
}

// emitJumpIf lowers "if (left cond right) goto ifTrue else goto ifFalse".
// Every comparison besides != lowers to the negated comparison's jump
// macro aimed at ifFalse, followed by an unconditional jump to ifTrue;
// != lowers directly since JumpNe already emits exactly that shape.
func (cg *Codegen) emitJumpIf(j ir.JumpIf) error {
	if j.Cond == ir.Ne {
		if err := cg.macros.JumpNe(j.Left, j.Right, vm.Label(j.IfTrue)); err != nil {
			return err
		}
		cg.sink.Emit(vm.JUMP{L: vm.Label(j.IfFalse)})
		return nil
	}

	if err := cg.jumpFor(j.Cond.Negate(), j.Left, j.Right, vm.Label(j.IfFalse)); err != nil {
		return err
	}
	cg.sink.Emit(vm.JUMP{L: vm.Label(j.IfTrue)})
	return nil
}

func (cg *Codegen) jumpFor(cond ir.Cond, left, right ir.Operand, target vm.Label) error {
	switch cond {
	case ir.Le:
		return cg.macros.JumpLe(left, right, target)
	case ir.Ge:
		return cg.macros.JumpGe(left, right, target)
	case ir.Lt:
		return cg.macros.JumpLt(left, right, target)
	case ir.Gt:
		return cg.macros.JumpGt(left, right, target)
	case ir.Ne:
		return cg.macros.JumpNe(left, right, target)
	default:
		return fmt.Errorf("%w: unsupported comparison %v", ErrMalformedIR, cond)
	}
}
