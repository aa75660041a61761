package liveness

import (
	"sort"
	"strconv"
	"strings"

	"github.com/repaj/kompilator/pkg/ir"
)

// key is a comparable stand-in for ir.Operand, since the interface itself
// is not guaranteed comparable across all of its cases (big.Int pointers
// inside Const are not); liveness and dominance only ever care about named
// scalars, arrays, and temporaries, so constants are excluded from the set
// entirely (they can never be "live" — they are rematerialized on demand).
type key struct {
	kind byte // 's' scalar, 'a' array, 't' temp
	name string
	id   ir.Temp
}

func keyOf(op ir.Operand) (key, bool) {
	switch o := op.(type) {
	case ir.NameScalar:
		return key{kind: 's', name: o.Name}, true
	case ir.NameArray:
		return key{kind: 'a', name: o.Name}, true
	case ir.NameTemp:
		return key{kind: 't', id: o.ID}, true
	default:
		return key{}, false
	}
}

// OperandSet is a set of IR operands (excluding constants), used to carry
// per-block live-out results. Dominator sets use OperandSetOfBlocks.
type OperandSet map[key]ir.Operand

// NewOperandSet creates an empty set.
func NewOperandSet() OperandSet {
	return make(OperandSet)
}

// Add inserts op into the set. Constants are silently ignored.
func (s OperandSet) Add(op ir.Operand) {
	if k, ok := keyOf(op); ok {
		s[k] = op
	}
}

// Contains reports whether op is a member of the set.
func (s OperandSet) Contains(op ir.Operand) bool {
	k, ok := keyOf(op)
	if !ok {
		return false
	}
	_, present := s[k]
	return present
}

// Union returns a new set containing every member of s and other.
func (s OperandSet) Union(other OperandSet) OperandSet {
	out := s.Copy()
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Minus returns a new set containing every member of s not in other.
func (s OperandSet) Minus(other OperandSet) OperandSet {
	out := NewOperandSet()
	for k, v := range s {
		if _, excluded := other[k]; !excluded {
			out[k] = v
		}
	}
	return out
}

// Equal reports whether s and other contain exactly the same operands.
func (s OperandSet) Equal(other OperandSet) bool {
	if len(s) != len(other) {
		return false
	}
	for k := range s {
		if _, ok := other[k]; !ok {
			return false
		}
	}
	return true
}

// Copy returns a shallow copy of s.
func (s OperandSet) Copy() OperandSet {
	out := make(OperandSet, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// String renders the set as a sorted, comma-separated operand list, used by
// the CLI's -dliveness debug dump.
func (s OperandSet) String() string {
	names := make([]string, 0, len(s))
	for _, op := range s {
		switch o := op.(type) {
		case ir.NameScalar:
			names = append(names, o.Name)
		case ir.NameArray:
			names = append(names, o.Name)
		case ir.NameTemp:
			names = append(names, "t"+strconv.Itoa(int(o.ID)))
		}
	}
	sort.Strings(names)
	return "{" + strings.Join(names, ", ") + "}"
}
