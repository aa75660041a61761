package codegen

import (
	"fmt"

	"github.com/repaj/kompilator/pkg/ir"
	"github.com/repaj/kompilator/pkg/liveness"
	"github.com/repaj/kompilator/pkg/symtab"
	"github.com/repaj/kompilator/pkg/vm"
)

// DescriptorEntry names the value a register or memory cell can hold: a
// specific named scalar, or a specific compiler-generated temporary.
type DescriptorEntry struct {
	kind byte // 'v' scalar, 't' temp
	name string
	id   ir.Temp
}

func descVar(name string) DescriptorEntry  { return DescriptorEntry{kind: 'v', name: name} }
func descTemp(id ir.Temp) DescriptorEntry  { return DescriptorEntry{kind: 't', id: id} }
func (e DescriptorEntry) isVar() bool      { return e.kind == 'v' }

func (e DescriptorEntry) String() string {
	if e.isVar() {
		return e.name
	}
	return fmt.Sprintf("t%d", e.id)
}

// location is a value's current whereabouts: a memory address, a
// register, or both at once.
type location struct {
	addr    int64
	reg     vm.Register
	hasAddr bool
	hasReg  bool
}

// Engine is the Descriptor Engine: it owns the register/memory
// bookkeeping that every arithmetic and comparison macro consults.
type Engine struct {
	sink   *vm.Sink
	syms   *symtab.Table
	consts *ConstantEmitter

	locs      map[DescriptorEntry]*location
	regOwner  [8]DescriptorEntry // zero value {} means free
	regBusy   [8]bool
	selection map[vm.Register]struct{}

	liveOut liveness.OperandSet
}

// NewEngine creates a Descriptor Engine writing through sink, consulting
// syms for scalar and array homes, and materializing constants via consts.
func NewEngine(sink *vm.Sink, syms *symtab.Table, consts *ConstantEmitter) *Engine {
	return &Engine{
		sink:      sink,
		syms:      syms,
		consts:    consts,
		locs:      make(map[DescriptorEntry]*location),
		selection: make(map[vm.Register]struct{}),
	}
}

// SetLiveOut installs the live-out set consulted by SaveVariables for the
// block about to be emitted.
func (e *Engine) SetLiveOut(s liveness.OperandSet) {
	e.liveOut = s
}

func (e *Engine) entryFor(op ir.Operand) (DescriptorEntry, error) {
	switch o := op.(type) {
	case ir.NameScalar:
		return descVar(o.Name), nil
	case ir.NameTemp:
		return descTemp(o.ID), nil
	default:
		return DescriptorEntry{}, fmt.Errorf("%w: operand %T is not register-allocatable", ErrMalformedIR, op)
	}
}

func (e *Engine) ensure(entry DescriptorEntry) *location {
	loc, ok := e.locs[entry]
	if ok {
		return loc
	}
	loc = &location{}
	if entry.isVar() {
		// Named scalars are home-backed from declaration: the memory
		// cell the symbol table assigned them is always a valid place
		// to find their current value until something rebinds it.
		if s, err := e.syms.Scalar(entry.name); err == nil {
			loc.addr, loc.hasAddr = s.Address, true
		}
	}
	e.locs[entry] = loc
	return loc
}

func (e *Engine) markSelected(r vm.Register) {
	e.selection[r] = struct{}{}
}

// ClearSelection empties the selection set; called at the start of every
// IR instruction.
func (e *Engine) ClearSelection() {
	e.selection = make(map[vm.Register]struct{})
}

// Select picks a register from the working pool, following the spill
// policy: a free register first, then a victim that already has a memory
// home, then a victim that must be spilled.
func (e *Engine) Select() (vm.Register, error) {
	for _, r := range vm.WorkingPool() {
		if e.regBusy[r] {
			continue
		}
		if _, reserved := e.selection[r]; reserved {
			continue
		}
		e.markSelected(r)
		return r, nil
	}

	// No free register: prefer a victim that needs no emission.
	for _, r := range vm.WorkingPool() {
		if _, reserved := e.selection[r]; reserved {
			continue
		}
		owner := e.regOwner[r]
		if loc := e.locs[owner]; loc != nil && loc.hasAddr {
			e.evictRegister(r)
			e.markSelected(r)
			return r, nil
		}
	}

	// Spill a victim outside the selection set.
	for _, r := range vm.WorkingPool() {
		if _, reserved := e.selection[r]; reserved {
			continue
		}
		owner := e.regOwner[r]
		if err := e.spillTo(owner); err != nil {
			return 0, err
		}
		e.evictRegister(r)
		e.markSelected(r)
		return r, nil
	}

	return 0, fmt.Errorf("%w: every working register is reserved by the current instruction", ErrRegisterPoolExhausted)
}

// evictRegister drops the register's binding without emitting anything;
// the caller is responsible for having spilled it first if needed.
func (e *Engine) evictRegister(r vm.Register) {
	owner := e.regOwner[r]
	if loc := e.locs[owner]; loc != nil && loc.hasReg && loc.reg == r {
		loc.hasReg = false
	}
	e.regBusy[r] = false
	e.regOwner[r] = DescriptorEntry{}
}

// homeAddress returns entry's memory home, allocating a fresh one for a
// temporary on its first spill.
func (e *Engine) homeAddress(entry DescriptorEntry) (int64, error) {
	loc := e.ensure(entry)
	if loc.hasAddr {
		return loc.addr, nil
	}
	if entry.isVar() {
		s, err := e.syms.Scalar(entry.name)
		if err != nil {
			return 0, fmt.Errorf("%w: scalar %s has no symbol-table home", ErrMalformedIR, entry.name)
		}
		loc.addr, loc.hasAddr = s.Address, true
		return loc.addr, nil
	}
	loc.addr = e.syms.AllocateAddress()
	loc.hasAddr = true
	return loc.addr, nil
}

// spillTo stores entry's register-resident value to its home if it is
// not already backed there, and then drops the register binding.
func (e *Engine) spillTo(entry DescriptorEntry) error {
	if entry == (DescriptorEntry{}) {
		return nil // register was already free
	}
	loc := e.ensure(entry)
	if !loc.hasReg {
		return nil
	}
	if loc.hasAddr {
		return nil
	}
	addr, err := e.homeAddress(entry)
	if err != nil {
		return err
	}
	if err := e.materializeAddress(addr); err != nil {
		return err
	}
	e.sink.Emit(vm.STORE{Rs: loc.reg})
	loc.hasAddr, loc.addr = true, addr
	return nil
}

func (e *Engine) materializeAddress(addr int64) error {
	if addr < 0 {
		return fmt.Errorf("%w: effective address %d is negative", ErrAddressOverflow, addr)
	}
	e.consts.EmitInt64(vm.A, addr)
	return nil
}

// Load returns a register currently holding op, materializing it from a
// constant or from memory if it is not already register-resident.
func (e *Engine) Load(op ir.Operand) (vm.Register, error) {
	if c, ok := op.(ir.Const); ok {
		r, err := e.Select()
		if err != nil {
			return 0, err
		}
		e.consts.Emit(r, c.Value)
		return r, nil
	}

	entry, err := e.entryFor(op)
	if err != nil {
		return 0, err
	}
	loc := e.ensure(entry)
	if loc.hasReg {
		e.markSelected(loc.reg)
		return loc.reg, nil
	}

	addr, err := e.homeAddress(entry)
	if err != nil {
		return 0, err
	}
	r, err := e.Select()
	if err != nil {
		return 0, err
	}
	if err := e.materializeAddress(addr); err != nil {
		return 0, err
	}
	e.sink.Emit(vm.LOAD{Rd: r})
	loc.hasReg, loc.reg = true, r
	e.regBusy[r], e.regOwner[r] = true, entry
	return r, nil
}

// Seize binds r to entry, evicting whatever either side previously held.
func (e *Engine) Seize(r vm.Register, op ir.Operand) error {
	entry, err := e.entryFor(op)
	if err != nil {
		return err
	}

	loc := e.ensure(entry)
	if loc.hasReg && loc.reg != r {
		// The new owner already had a different register copy; drop it
		// without spilling since r is about to be the fresher copy.
		e.regBusy[loc.reg], e.regOwner[loc.reg] = false, DescriptorEntry{}
	}

	victim := e.regOwner[r]
	if victim != entry && e.regBusy[r] {
		victimLoc := e.ensure(victim)
		if !victimLoc.hasAddr && e.liveOut.Contains(operandOf(victim)) {
			if err := e.spillTo(victim); err != nil {
				return err
			}
		}
		victimLoc.hasReg = false
	}

	// r now holds the only current copy: the memory home is stale until
	// the value is spilled or saved again.
	loc.hasReg, loc.reg, loc.hasAddr = true, r, false
	e.regBusy[r], e.regOwner[r] = true, entry
	return nil
}

func operandOf(entry DescriptorEntry) ir.Operand {
	if entry.isVar() {
		return ir.NameScalar{Name: entry.name}
	}
	return ir.NameTemp{ID: entry.id}
}

// SaveVariables flushes every register-resident value whose operand is
// live-out of the current block to its memory home. Dead values are
// simply left in place; ResetRegistersState discards their bindings next.
func (e *Engine) SaveVariables() error {
	for _, r := range vm.WorkingPool() {
		if !e.regBusy[r] {
			continue
		}
		entry := e.regOwner[r]
		loc := e.locs[entry]
		if loc == nil || loc.hasAddr {
			continue
		}
		if !e.liveOut.Contains(operandOf(entry)) {
			continue
		}
		addr, err := e.homeAddress(entry)
		if err != nil {
			return err
		}
		if err := e.materializeAddress(addr); err != nil {
			return err
		}
		e.sink.Emit(vm.STORE{Rs: r})
		loc.hasAddr, loc.addr = true, addr
	}
	return nil
}

// ResetRegistersState clears every register binding; called immediately
// after a branch is emitted. Every descriptor is now believed to reside
// only at its memory location.
func (e *Engine) ResetRegistersState() {
	for r := range e.regBusy {
		e.regBusy[r] = false
		e.regOwner[r] = DescriptorEntry{}
	}
	for _, loc := range e.locs {
		loc.hasReg = false
	}
}

// GetAddress returns the base address for a declared array, for use by
// the lea macro.
func (e *Engine) GetAddress(arr ir.NameArray) (int64, error) {
	a, err := e.syms.Array(arr.Name)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedIR, err)
	}
	return a.Base, nil
}

// ArrayInfo returns the full symbol-table entry for a declared array.
func (e *Engine) ArrayInfo(arr ir.NameArray) (symtab.Array, error) {
	a, err := e.syms.Array(arr.Name)
	if err != nil {
		return symtab.Array{}, fmt.Errorf("%w: %v", ErrMalformedIR, err)
	}
	return a, nil
}
