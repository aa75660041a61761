package irgen

import (
	"github.com/repaj/kompilator/pkg/ast"
	"github.com/repaj/kompilator/pkg/ir"
)

func (b *Builder) lowerStmt(s ast.Stmt) error {
	switch st := s.(type) {
	case ast.Assign:
		return b.lowerAssign(st)
	case ast.Read:
		return b.lowerRead(st)
	case ast.Write:
		return b.lowerWrite(st)
	case ast.If:
		return b.lowerIf(st)
	case ast.While:
		return b.lowerWhile(st)
	case ast.For:
		return b.lowerFor(st)
	default:
		return &ast.CompileError{Pos: s.Position(), Msg: "unsupported statement"}
	}
}

func (b *Builder) lowerStmts(stmts []ast.Stmt) error {
	for _, s := range stmts {
		if err := b.lowerStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) lowerAssign(st ast.Assign) error {
	value, err := b.lowerExpr(st.Value)
	if err != nil {
		return err
	}
	switch target := st.Target.(type) {
	case ast.Var:
		if err := b.checkScalar(target.Name, target.Pos); err != nil {
			return err
		}
		b.emit(ir.Move{Src: value, Dst: ir.NameScalar{Name: target.Name}})
		return nil
	case ast.Index:
		if err := b.checkArray(target.Array, target.Pos); err != nil {
			return err
		}
		offset, err := b.lowerExpr(target.Offset)
		if err != nil {
			return err
		}
		b.emit(ir.IndexedStore{Src: value, Base: ir.NameArray{Name: target.Array}, Offset: offset})
		return nil
	default:
		return &ast.CompileError{Pos: st.Pos, Msg: "unsupported assignment target"}
	}
}

func (b *Builder) lowerRead(st ast.Read) error {
	switch target := st.Target.(type) {
	case ast.Var:
		if err := b.checkScalar(target.Name, target.Pos); err != nil {
			return err
		}
		b.emit(ir.Get{Dst: ir.NameScalar{Name: target.Name}})
		return nil
	case ast.Index:
		if err := b.checkArray(target.Array, target.Pos); err != nil {
			return err
		}
		offset, err := b.lowerExpr(target.Offset)
		if err != nil {
			return err
		}
		tmp := b.freshTemp()
		b.emit(ir.Get{Dst: tmp})
		b.emit(ir.IndexedStore{Src: tmp, Base: ir.NameArray{Name: target.Array}, Offset: offset})
		return nil
	default:
		return &ast.CompileError{Pos: st.Pos, Msg: "unsupported read target"}
	}
}

func (b *Builder) lowerWrite(st ast.Write) error {
	value, err := b.lowerExpr(st.Value)
	if err != nil {
		return err
	}
	b.emit(ir.Put{Src: value})
	return nil
}

// lowerIf lowers "if cond then ... [else ...] endif". The current block's
// JumpIf always targets a distinct then-label and else-label (the latter
// coinciding with the join label when there is no else branch), and both
// branches rejoin at a fresh join label.
func (b *Builder) lowerIf(st ast.If) error {
	cond, left, right, err := b.lowerCond(st.Cond)
	if err != nil {
		return err
	}

	thenLabel := b.freshLabel("if_then")
	joinLabel := b.freshLabel("if_end")
	elseLabel := joinLabel
	if st.Else != nil {
		elseLabel = b.freshLabel("if_else")
	}

	b.finishBlock(ir.JumpIf{Cond: cond, Left: left, Right: right, IfTrue: thenLabel, IfFalse: elseLabel})

	b.openBlock(thenLabel)
	if err := b.lowerStmts(st.Then); err != nil {
		return err
	}
	b.finishBlock(ir.Jump{Target: joinLabel})

	if st.Else != nil {
		b.openBlock(elseLabel)
		if err := b.lowerStmts(st.Else); err != nil {
			return err
		}
		b.finishBlock(ir.Jump{Target: joinLabel})
	}

	b.openBlock(joinLabel)
	return nil
}

// lowerWhile lowers "while cond do ... endwhile" as a head-tested loop: the
// condition gets its own block so the back edge re-tests it rather than
// falling through into the body unconditionally.
func (b *Builder) lowerWhile(st ast.While) error {
	condLabel := b.freshLabel("while_cond")
	bodyLabel := b.freshLabel("while_body")
	endLabel := b.freshLabel("while_end")

	b.finishBlock(ir.Jump{Target: condLabel})

	b.openBlock(condLabel)
	cond, left, right, err := b.lowerCond(st.Cond)
	if err != nil {
		return err
	}
	b.finishBlock(ir.JumpIf{Cond: cond, Left: left, Right: right, IfTrue: bodyLabel, IfFalse: endLabel})

	b.openBlock(bodyLabel)
	if err := b.lowerStmts(st.Body); err != nil {
		return err
	}
	b.finishBlock(ir.Jump{Target: condLabel})

	b.openBlock(endLabel)
	return nil
}

// lowerFor lowers "for v from lo to|downto hi do ... endfor" into the same
// head-tested shape as lowerWhile, after desugaring: the loop variable is a
// scalar initialized once from lo, the bound hi is snapshotted once into a
// hidden scalar so the loop body cannot perturb it, and each iteration
// increments (or decrements, for downto) the loop variable after the body
// runs. A downto loop whose bound is 0 exits on an explicit equality check
// before decrementing, since the target's SUB saturates at zero and would
// otherwise leave the loop variable pinned at the bound forever.
func (b *Builder) lowerFor(st ast.For) error {
	if !b.syms.IsDeclared(st.Var) {
		b.syms.DeclareScalar(st.Var)
	} else if err := b.checkScalar(st.Var, st.Pos); err != nil {
		return err
	}
	loopVar := ir.NameScalar{Name: st.Var}

	from, err := b.lowerExpr(st.From)
	if err != nil {
		return err
	}
	b.emit(ir.Move{Src: from, Dst: loopVar})

	to, err := b.lowerExpr(st.To)
	if err != nil {
		return err
	}
	boundName := b.freshBoundName()
	b.syms.DeclareScalar(boundName)
	bound := ir.NameScalar{Name: boundName}
	b.emit(ir.Move{Src: to, Dst: bound})

	condLabel := b.freshLabel("for_cond")
	bodyLabel := b.freshLabel("for_body")
	endLabel := b.freshLabel("for_end")

	b.finishBlock(ir.Jump{Target: condLabel})

	b.openBlock(condLabel)
	cond := ir.Le
	if st.Downto {
		cond = ir.Ge
	}
	b.finishBlock(ir.JumpIf{Cond: cond, Left: loopVar, Right: bound, IfTrue: bodyLabel, IfFalse: endLabel})

	b.openBlock(bodyLabel)
	if err := b.lowerStmts(st.Body); err != nil {
		return err
	}

	if !st.Downto {
		b.emit(ir.Binary{Op: ir.Add, Left: loopVar, Right: ir.Const{Value: bigOne}, Dst: loopVar})
		b.finishBlock(ir.Jump{Target: condLabel})
		b.openBlock(endLabel)
		return nil
	}

	// loopVar == bound means this was the last iteration: leave before the
	// decrement can saturate at zero and strand the loop variable at bound.
	decLabel := b.freshLabel("for_dec")
	b.finishBlock(ir.JumpIf{Cond: ir.Eq, Left: loopVar, Right: bound, IfTrue: endLabel, IfFalse: decLabel})

	b.openBlock(decLabel)
	b.emit(ir.Binary{Op: ir.Sub, Left: loopVar, Right: ir.Const{Value: bigOne}, Dst: loopVar})
	b.finishBlock(ir.Jump{Target: condLabel})

	b.openBlock(endLabel)
	return nil
}
