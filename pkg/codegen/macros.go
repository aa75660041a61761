package codegen

import (
	"github.com/repaj/kompilator/pkg/ir"
	"github.com/repaj/kompilator/pkg/vm"
)

// Macros is the Arithmetic / Comparison Macros component. Every
// method emits a self-contained instruction sequence and obtains whatever
// registers it needs from the Descriptor Engine; none of them hold state
// of their own between calls.
type Macros struct {
	sink *vm.Sink
	eng  *Engine
}

// NewMacros creates a Macros set writing through sink and allocating
// registers through eng.
func NewMacros(sink *vm.Sink, eng *Engine) *Macros {
	return &Macros{sink: sink, eng: eng}
}

// Get emits GET r and returns r.
func (m *Macros) Get() (vm.Register, error) {
	r, err := m.eng.Select()
	if err != nil {
		return 0, err
	}
	m.sink.Emit(vm.GET{R: r})
	return r, nil
}

// Put loads op and emits PUT for it.
func (m *Macros) Put(op ir.Operand) error {
	r, err := m.eng.Load(op)
	if err != nil {
		return err
	}
	m.sink.Emit(vm.PUT{R: r})
	return nil
}

// Copy loads op into a fresh register and returns it.
func (m *Macros) Copy(op ir.Operand) (vm.Register, error) {
	s, err := m.eng.Load(op)
	if err != nil {
		return 0, err
	}
	r, err := m.eng.Select()
	if err != nil {
		return 0, err
	}
	m.sink.Emit(vm.COPY{Rd: r, Rs: s})
	return r, nil
}

// Add computes left + right into a fresh register.
func (m *Macros) Add(left, right ir.Operand) (vm.Register, error) {
	d, err := m.Copy(left)
	if err != nil {
		return 0, err
	}
	s, err := m.eng.Load(right)
	if err != nil {
		return 0, err
	}
	m.sink.Emit(vm.ADD{Rd: d, Rs: s})
	return d, nil
}

// Sub computes max(left - right, 0) into a fresh register. The target
// SUB instruction saturates at zero, which is what makes the comparison
// jumps below correct.
func (m *Macros) Sub(left, right ir.Operand) (vm.Register, error) {
	d, err := m.Copy(left)
	if err != nil {
		return 0, err
	}
	s, err := m.eng.Load(right)
	if err != nil {
		return 0, err
	}
	m.sink.Emit(vm.SUB{Rd: d, Rs: s})
	return d, nil
}

// lea leaves base's effective address for offset in register A.
func (m *Macros) lea(base ir.NameArray, offset ir.Operand) error {
	arr, err := m.eng.ArrayInfo(base)
	if err != nil {
		return err
	}
	off, err := m.eng.Load(offset)
	if err != nil {
		return err
	}
	m.sink.Emit(vm.COPY{Rd: vm.A, Rs: off})

	adjust := arr.Base - arr.StartIndex
	if adjust == 0 {
		return nil
	}
	k, err := m.eng.Select()
	if err != nil {
		return err
	}
	if adjust > 0 {
		m.eng.consts.EmitInt64(k, adjust)
		m.sink.Emit(vm.ADD{Rd: vm.A, Rs: k})
	} else {
		m.eng.consts.EmitInt64(k, -adjust)
		m.sink.Emit(vm.SUB{Rd: vm.A, Rs: k})
	}
	return nil
}

// LoadArray computes base[offset] into a fresh register.
func (m *Macros) LoadArray(base ir.NameArray, offset ir.Operand) (vm.Register, error) {
	if err := m.lea(base, offset); err != nil {
		return 0, err
	}
	r, err := m.eng.Select()
	if err != nil {
		return 0, err
	}
	m.sink.Emit(vm.LOAD{Rd: r})
	return r, nil
}

// StoreArray writes value into base[offset].
func (m *Macros) StoreArray(base ir.NameArray, offset, value ir.Operand) error {
	v, err := m.eng.Load(value)
	if err != nil {
		return err
	}
	m.eng.markSelected(v)
	if err := m.lea(base, offset); err != nil {
		return err
	}
	m.sink.Emit(vm.STORE{Rs: v})
	return nil
}

// LongMul computes x*y into a fresh register by shift-and-add
// multiplication. Loop invariant: result + a*b == x*y.
func (m *Macros) LongMul(x, y ir.Operand) (vm.Register, error) {
	a, err := m.Copy(x)
	if err != nil {
		return 0, err
	}
	b, err := m.Copy(y)
	if err != nil {
		return 0, err
	}
	result, err := m.eng.Select()
	if err != nil {
		return 0, err
	}
	m.eng.consts.EmitInt64(result, 0)

	head := m.sink.FreshLabel("mul_loop")
	odd := m.sink.FreshLabel("mul_odd")
	rest := m.sink.FreshLabel("mul_rest")
	exit := m.sink.FreshLabel("mul_exit")

	m.sink.PlaceLabel(head)
	m.sink.Emit(vm.JZERO{R: b, L: exit})
	m.sink.Emit(vm.JODD{R: b, L: odd})
	m.sink.Emit(vm.JUMP{L: rest})
	m.sink.PlaceLabel(odd)
	m.sink.Emit(vm.ADD{Rd: result, Rs: a})
	m.sink.PlaceLabel(rest)
	m.sink.Emit(vm.ADD{Rd: a, Rs: a})
	m.sink.Emit(vm.HALF{R: b})
	m.sink.Emit(vm.JUMP{L: head})
	m.sink.PlaceLabel(exit)

	return result, nil
}

// LongDiv0 computes floor(x/y) (wantRem == false) or x mod y
// (wantRem == true) by long division via repeated doubling. Division and
// modulo by zero both yield zero, per the target machine's convention.
func (m *Macros) LongDiv0(x, y ir.Operand, wantRem bool) (vm.Register, error) {
	dividend, err := m.Copy(x)
	if err != nil {
		return 0, err
	}
	divisor, err := m.Copy(y)
	if err != nil {
		return 0, err
	}
	quotient, err := m.eng.Select()
	if err != nil {
		return 0, err
	}
	m.eng.consts.EmitInt64(quotient, 0)
	k, err := m.eng.Select()
	if err != nil {
		return 0, err
	}
	m.eng.consts.EmitInt64(k, 0)
	cmp, err := m.eng.Select()
	if err != nil {
		return 0, err
	}

	isZero := m.sink.FreshLabel("div_zero")
	rangeHead := m.sink.FreshLabel("div_range")
	rangeBody := m.sink.FreshLabel("div_rangebody")
	rangeDone := m.sink.FreshLabel("div_ranged")
	stepHead := m.sink.FreshLabel("div_step")
	stepSub := m.sink.FreshLabel("div_stepsub")
	stepNext := m.sink.FreshLabel("div_stepnext")
	done := m.sink.FreshLabel("div_done")

	m.sink.Emit(vm.JZERO{R: divisor, L: isZero})

	// Range phase: double divisor (and count the doublings in k) until it
	// exceeds dividend.
	m.sink.PlaceLabel(rangeHead)
	m.jumpLeReg(divisor, dividend, cmp, rangeBody)
	m.sink.Emit(vm.JUMP{L: rangeDone})
	m.sink.PlaceLabel(rangeBody)
	m.sink.Emit(vm.ADD{Rd: divisor, Rs: divisor})
	m.sink.Emit(vm.INC{R: k})
	m.sink.Emit(vm.JUMP{L: rangeHead})
	m.sink.PlaceLabel(rangeDone)

	// Division phase: undo the doublings one at a time, subtracting
	// whenever the halved divisor still fits.
	m.sink.PlaceLabel(stepHead)
	m.sink.Emit(vm.JZERO{R: k, L: done})
	m.sink.Emit(vm.DEC{R: k})
	m.sink.Emit(vm.HALF{R: divisor})
	m.sink.Emit(vm.ADD{Rd: quotient, Rs: quotient})
	m.jumpLeReg(divisor, dividend, cmp, stepSub)
	m.sink.Emit(vm.JUMP{L: stepNext})
	m.sink.PlaceLabel(stepSub)
	m.sink.Emit(vm.SUB{Rd: dividend, Rs: divisor})
	m.sink.Emit(vm.INC{R: quotient})
	m.sink.PlaceLabel(stepNext)
	m.sink.Emit(vm.JUMP{L: stepHead})

	m.sink.PlaceLabel(isZero)
	m.sink.Emit(vm.SUB{Rd: dividend, Rs: dividend})

	m.sink.PlaceLabel(done)
	if wantRem {
		return dividend, nil
	}
	return quotient, nil
}

// jumpLeReg emits the saturating-subtract test for "lReg <= rReg" directly
// against two already-loaded registers, using cmp as scratch, without
// touching the descriptor engine; used by LongDiv0, whose loop registers
// must not be treated as fresh per-comparison temporaries and which
// reserves cmp once for all of its comparisons.
func (m *Macros) jumpLeReg(lReg, rReg, cmp vm.Register, target vm.Label) {
	m.sink.Emit(vm.COPY{Rd: cmp, Rs: lReg})
	m.sink.Emit(vm.SUB{Rd: cmp, Rs: rReg})
	m.sink.Emit(vm.JZERO{R: cmp, L: target})
}

// JumpLe emits the test for "left <= right", transferring control to
// target when it holds.
func (m *Macros) JumpLe(left, right ir.Operand, target vm.Label) error {
	return m.saturatingTest(left, right, 0, target)
}

// JumpGe emits the test for "left >= right".
func (m *Macros) JumpGe(left, right ir.Operand, target vm.Label) error {
	return m.saturatingTest(right, left, 0, target)
}

// JumpGt emits the test for "left > right".
func (m *Macros) JumpGt(left, right ir.Operand, target vm.Label) error {
	return m.saturatingTest(right, left, 1, target)
}

// JumpLt emits the test for "left < right".
func (m *Macros) JumpLt(left, right ir.Operand, target vm.Label) error {
	return m.saturatingTest(left, right, 1, target)
}

// JumpNe emits the test for "left != right" as two saturating-subtract
// checks, either of which taking the jump.
func (m *Macros) JumpNe(left, right ir.Operand, target vm.Label) error {
	if err := m.saturatingTest(right, left, 1, target); err != nil {
		return err
	}
	return m.saturatingTest(left, right, 1, target)
}

// saturatingTest emits `cmp := (a+bias) - b; JZERO cmp, target`, where bias
// is 0 or 1: the "+1" case is what turns a non-strict saturating-subtract
// test into a strict one.
func (m *Macros) saturatingTest(a, b ir.Operand, bias int64, target vm.Label) error {
	cmp, err := m.Copy(a)
	if err != nil {
		return err
	}
	m.eng.markSelected(cmp)
	if bias != 0 {
		m.sink.Emit(vm.INC{R: cmp})
	}
	r, err := m.eng.Load(b)
	if err != nil {
		return err
	}
	m.sink.Emit(vm.SUB{Rd: cmp, Rs: r})
	m.sink.Emit(vm.JZERO{R: cmp, L: target})
	return nil
}
