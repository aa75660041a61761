package codegen

import (
	"math/big"

	"github.com/repaj/kompilator/pkg/vm"
)

// ConstantEmitter is the Constant Materialization component: given a
// target register and a non-negative value, it emits either a run of INC
// (unary) or a doubling-and-increment sequence (binary), whichever is
// shorter under the threshold below.
type ConstantEmitter struct {
	sink *vm.Sink
}

// NewConstantEmitter creates a ConstantEmitter writing through sink.
func NewConstantEmitter(sink *vm.Sink) *ConstantEmitter {
	return &ConstantEmitter{sink: sink}
}

// EmitInt64 is a convenience wrapper for addresses and other small,
// compile-time-known non-negative integers.
func (c *ConstantEmitter) EmitInt64(r vm.Register, v int64) {
	c.Emit(r, big.NewInt(v))
}

// Emit zeroes r and then materializes v into it.
func (c *ConstantEmitter) Emit(r vm.Register, v *big.Int) {
	c.sink.Emit(vm.SUB{Rd: r, Rs: r})
	if v.Sign() == 0 {
		return
	}

	b := v.BitLen()
	p := popcount(v)
	threshold := big.NewInt(5*int64(b) + int64(p))

	if v.Cmp(threshold) <= 0 {
		for i := v.Int64(); i > 0; i-- {
			c.sink.Emit(vm.INC{R: r})
		}
		return
	}

	for i := b - 1; i >= 0; i-- {
		if i != b-1 {
			c.sink.Emit(vm.ADD{Rd: r, Rs: r})
		}
		if v.Bit(i) == 1 {
			c.sink.Emit(vm.INC{R: r})
		}
	}
}

func popcount(v *big.Int) int {
	count := 0
	for i := 0; i < v.BitLen(); i++ {
		if v.Bit(i) == 1 {
			count++
		}
	}
	return count
}
