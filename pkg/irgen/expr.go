package irgen

import (
	"fmt"

	"github.com/repaj/kompilator/pkg/ast"
	"github.com/repaj/kompilator/pkg/ir"
)

// lowerExpr evaluates e into the current block, returning the operand that
// holds its value. Literals and variable references cost no instruction;
// indexing and binary operators each seize a fresh temporary.
func (b *Builder) lowerExpr(e ast.Expr) (ir.Operand, error) {
	switch v := e.(type) {
	case ast.Num:
		return ir.Const{Value: v.Value}, nil

	case ast.Var:
		if err := b.checkScalar(v.Name, v.Pos); err != nil {
			return nil, err
		}
		return ir.NameScalar{Name: v.Name}, nil

	case ast.Index:
		if err := b.checkArray(v.Array, v.Pos); err != nil {
			return nil, err
		}
		offset, err := b.lowerExpr(v.Offset)
		if err != nil {
			return nil, err
		}
		dst := b.freshTemp()
		b.emit(ir.IndexedLoad{Base: ir.NameArray{Name: v.Array}, Offset: offset, Dst: dst})
		return dst, nil

	case ast.Binary:
		left, err := b.lowerExpr(v.Left)
		if err != nil {
			return nil, err
		}
		right, err := b.lowerExpr(v.Right)
		if err != nil {
			return nil, err
		}
		dst := b.freshTemp()
		b.emit(ir.Binary{Op: lowerBinOp(v.Op), Left: left, Right: right, Dst: dst})
		return dst, nil

	default:
		return nil, &ast.CompileError{Pos: e.Position(), Msg: fmt.Sprintf("unsupported expression %T", e)}
	}
}

func lowerBinOp(op ast.BinOp) ir.BinOp {
	switch op {
	case ast.OpAdd:
		return ir.Add
	case ast.OpSub:
		return ir.Sub
	case ast.OpMul:
		return ir.Mul
	case ast.OpDiv:
		return ir.Div
	case ast.OpMod:
		return ir.Rem
	default:
		return ir.Add
	}
}

func lowerRelOp(op ast.RelOp) ir.Cond {
	switch op {
	case ast.RelEq:
		return ir.Eq
	case ast.RelNe:
		return ir.Ne
	case ast.RelLe:
		return ir.Le
	case ast.RelGe:
		return ir.Ge
	case ast.RelLt:
		return ir.Lt
	case ast.RelGt:
		return ir.Gt
	default:
		return ir.Eq
	}
}

// lowerCond evaluates both sides of c into the current block and returns
// the relational operator and operands ready for a JumpIf terminator.
func (b *Builder) lowerCond(c ast.Cond) (ir.Cond, ir.Operand, ir.Operand, error) {
	left, err := b.lowerExpr(c.Left)
	if err != nil {
		return 0, nil, nil, err
	}
	right, err := b.lowerExpr(c.Right)
	if err != nil {
		return 0, nil, nil, err
	}
	return lowerRelOp(c.Op), left, right, nil
}

func (b *Builder) checkScalar(name string, pos ast.Pos) error {
	if !b.syms.IsDeclared(name) {
		return &ast.CompileError{Pos: pos, Msg: fmt.Sprintf("undeclared identifier %q", name)}
	}
	if b.syms.IsArray(name) {
		return &ast.CompileError{Pos: pos, Msg: fmt.Sprintf("%q is an array, not a scalar", name)}
	}
	return nil
}

func (b *Builder) checkArray(name string, pos ast.Pos) error {
	if !b.syms.IsDeclared(name) {
		return &ast.CompileError{Pos: pos, Msg: fmt.Sprintf("undeclared identifier %q", name)}
	}
	if !b.syms.IsArray(name) {
		return &ast.CompileError{Pos: pos, Msg: fmt.Sprintf("%q is a scalar, not an array", name)}
	}
	return nil
}
