// Package liveness computes the two whole-program analyses the code
// generator consults before emitting each block: per-block live-out sets
// (by backward dataflow to a fixed point) and per-block dominator sets (by
// the classic iterative algorithm).
package liveness

import "github.com/repaj/kompilator/pkg/ir"

// Result bundles the two analyses the driver hands to the code generator.
type Result struct {
	LiveOut    map[string]OperandSet
	Dominators map[string]OperandSetOfBlocks
}

// OperandSetOfBlocks is a set of block names, used for dominator sets. It
// is a distinct type from OperandSet (which holds IR operands) even though
// both are map-backed sets, to keep the two analyses from being confused
// at call sites.
type OperandSetOfBlocks map[string]struct{}

func newBlockSet(names ...string) OperandSetOfBlocks {
	s := make(OperandSetOfBlocks, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

func (s OperandSetOfBlocks) intersect(other OperandSetOfBlocks) OperandSetOfBlocks {
	out := make(OperandSetOfBlocks)
	for n := range s {
		if _, ok := other[n]; ok {
			out[n] = struct{}{}
		}
	}
	return out
}

func (s OperandSetOfBlocks) equal(other OperandSetOfBlocks) bool {
	if len(s) != len(other) {
		return false
	}
	for n := range s {
		if _, ok := other[n]; !ok {
			return false
		}
	}
	return true
}

// Contains reports whether block is a member of the set.
func (s OperandSetOfBlocks) Contains(block string) bool {
	_, ok := s[block]
	return ok
}

// Analyze runs both analyses over prog and returns the combined result.
func Analyze(prog ir.Program) Result {
	return Result{
		LiveOut:    liveOut(prog),
		Dominators: dominators(prog),
	}
}

func use(instr ir.Instruction) []ir.Operand {
	switch i := instr.(type) {
	case ir.Get:
		return nil
	case ir.Put:
		return []ir.Operand{i.Src}
	case ir.Move:
		return []ir.Operand{i.Src}
	case ir.IndexedLoad:
		return []ir.Operand{i.Base, i.Offset}
	case ir.IndexedStore:
		return []ir.Operand{i.Src, i.Base, i.Offset}
	case ir.Binary:
		return []ir.Operand{i.Left, i.Right}
	default:
		return nil
	}
}

func def(instr ir.Instruction) ir.Operand {
	switch i := instr.(type) {
	case ir.Get:
		return i.Dst
	case ir.Move:
		return i.Dst
	case ir.IndexedLoad:
		return i.Dst
	case ir.Binary:
		return i.Dst
	default:
		return nil
	}
}

func termUse(t ir.Term) []ir.Operand {
	switch i := t.(type) {
	case ir.JumpIf:
		return []ir.Operand{i.Left, i.Right}
	default:
		return nil
	}
}

func blockUseDef(b ir.Block) (useSet, defSet OperandSet) {
	useSet, defSet = NewOperandSet(), NewOperandSet()
	for _, instr := range b.Instrs {
		for _, op := range use(instr) {
			if !defSet.Contains(op) {
				useSet.Add(op)
			}
		}
		if d := def(instr); d != nil {
			defSet.Add(d)
		}
	}
	for _, op := range termUse(b.Term) {
		if !defSet.Contains(op) {
			useSet.Add(op)
		}
	}
	return useSet, defSet
}

func liveOut(prog ir.Program) map[string]OperandSet {
	useOf := make(map[string]OperandSet, len(prog.Blocks))
	defOf := make(map[string]OperandSet, len(prog.Blocks))
	succOf := make(map[string][]string, len(prog.Blocks))
	for _, b := range prog.Blocks {
		useOf[b.Name], defOf[b.Name] = blockUseDef(b)
		succOf[b.Name] = b.Successors()
	}

	liveIn := make(map[string]OperandSet, len(prog.Blocks))
	out := make(map[string]OperandSet, len(prog.Blocks))
	for _, b := range prog.Blocks {
		liveIn[b.Name] = NewOperandSet()
		out[b.Name] = NewOperandSet()
	}

	for changed := true; changed; {
		changed = false
		for i := len(prog.Blocks) - 1; i >= 0; i-- {
			name := prog.Blocks[i].Name
			newOut := NewOperandSet()
			for _, s := range succOf[name] {
				newOut = newOut.Union(liveIn[s])
			}
			newIn := useOf[name].Union(newOut.Minus(defOf[name]))
			if !newOut.Equal(out[name]) || !newIn.Equal(liveIn[name]) {
				changed = true
			}
			out[name] = newOut
			liveIn[name] = newIn
		}
	}
	return out
}

func dominators(prog ir.Program) map[string]OperandSetOfBlocks {
	if len(prog.Blocks) == 0 {
		return map[string]OperandSetOfBlocks{}
	}

	all := make([]string, len(prog.Blocks))
	for i, b := range prog.Blocks {
		all[i] = b.Name
	}
	preds := make(map[string][]string)
	for _, b := range prog.Blocks {
		for _, s := range b.Successors() {
			preds[s] = append(preds[s], b.Name)
		}
	}

	entry := prog.Blocks[0].Name
	dom := make(map[string]OperandSetOfBlocks, len(all))
	dom[entry] = newBlockSet(entry)
	for _, name := range all[1:] {
		dom[name] = newBlockSet(all...)
	}

	for changed := true; changed; {
		changed = false
		for _, name := range all[1:] {
			var newDom OperandSetOfBlocks
			for _, p := range preds[name] {
				if newDom == nil {
					newDom = dom[p].Copy()
				} else {
					newDom = newDom.intersect(dom[p])
				}
			}
			if newDom == nil {
				newDom = newBlockSet()
			}
			newDom[name] = struct{}{}
			if !newDom.equal(dom[name]) {
				dom[name] = newDom
				changed = true
			}
		}
	}
	return dom
}

// Copy returns a shallow copy of s.
func (s OperandSetOfBlocks) Copy() OperandSetOfBlocks {
	out := make(OperandSetOfBlocks, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}
