package vm

import (
	"fmt"
	"math/big"
)

// Sim is a reference simulator for the machine alphabet, used by tests to
// check emitted code behaviorally rather than by comparing text.
type Sim struct {
	regs   [numRegisters]*big.Int
	mem    map[string]*big.Int
	input  []*big.Int
	inPos  int
	output []*big.Int
}

// NewSim creates a simulator that will answer GET instructions with the
// successive values of input, in order.
func NewSim(input []*big.Int) *Sim {
	s := &Sim{mem: make(map[string]*big.Int), input: input}
	for i := range s.regs {
		s.regs[i] = big.NewInt(0)
	}
	return s
}

// Output returns the sequence of values written by PUT.
func (s *Sim) Output() []*big.Int {
	return s.output
}

func (s *Sim) cell(addr *big.Int) *big.Int {
	key := addr.String()
	v, ok := s.mem[key]
	if !ok {
		v = big.NewInt(0)
		s.mem[key] = v
	}
	return v
}

// Run executes prog to completion (a HALT instruction) and returns an error
// if it runs off the end of the program, jumps to an undefined label, or
// exhausts the input stream.
func (s *Sim) Run(prog Program) error {
	labels := make(map[Label]int)
	for i, inst := range prog.Code {
		if ld, ok := inst.(LabelDef); ok {
			labels[ld.Name] = i
		}
	}

	pc := 0
	for {
		if pc < 0 || pc >= len(prog.Code) {
			return fmt.Errorf("vm: program counter %d out of range", pc)
		}
		inst := prog.Code[pc]
		switch i := inst.(type) {
		case LabelDef, Comment:
			// no-op
		case GET:
			if s.inPos >= len(s.input) {
				return fmt.Errorf("vm: GET with no more input")
			}
			s.regs[i.R] = new(big.Int).Set(s.input[s.inPos])
			s.inPos++
		case PUT:
			s.output = append(s.output, new(big.Int).Set(s.regs[i.R]))
		case LOAD:
			s.regs[i.Rd] = new(big.Int).Set(s.cell(s.regs[A]))
		case STORE:
			*s.cell(s.regs[A]) = *new(big.Int).Set(s.regs[i.Rs])
		case COPY:
			s.regs[i.Rd] = new(big.Int).Set(s.regs[i.Rs])
		case ADD:
			s.regs[i.Rd] = new(big.Int).Add(s.regs[i.Rd], s.regs[i.Rs])
		case SUB:
			d := new(big.Int).Sub(s.regs[i.Rd], s.regs[i.Rs])
			if d.Sign() < 0 {
				d.SetInt64(0)
			}
			s.regs[i.Rd] = d
		case INC:
			s.regs[i.R] = new(big.Int).Add(s.regs[i.R], big.NewInt(1))
		case DEC:
			d := new(big.Int).Sub(s.regs[i.R], big.NewInt(1))
			if d.Sign() < 0 {
				d.SetInt64(0)
			}
			s.regs[i.R] = d
		case HALF:
			s.regs[i.R] = new(big.Int).Rsh(s.regs[i.R], 1)
		case JUMP:
			target, ok := labels[i.L]
			if !ok {
				return fmt.Errorf("vm: undefined label %s", i.L)
			}
			pc = target
			continue
		case JZERO:
			if s.regs[i.R].Sign() == 0 {
				target, ok := labels[i.L]
				if !ok {
					return fmt.Errorf("vm: undefined label %s", i.L)
				}
				pc = target
				continue
			}
		case JODD:
			if s.regs[i.R].Bit(0) == 1 {
				target, ok := labels[i.L]
				if !ok {
					return fmt.Errorf("vm: undefined label %s", i.L)
				}
				pc = target
				continue
			}
		case HALT:
			return nil
		default:
			return fmt.Errorf("vm: unknown instruction %T", inst)
		}
		pc++
	}
}
