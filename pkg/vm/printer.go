package vm

import (
	"fmt"
	"io"
)

// Printer renders a Program as a flat text listing, one instruction or
// label per line.
type Printer struct {
	w io.Writer
}

// NewPrinter creates a new Printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// PrintProgram writes every instruction in prog to the printer's writer.
func (p *Printer) PrintProgram(prog Program) {
	for _, inst := range prog.Code {
		p.printInstruction(inst)
	}
}

func (p *Printer) printInstruction(inst Instruction) {
	switch i := inst.(type) {
	case LabelDef:
		fmt.Fprintf(p.w, "%s:\n", i.Name)
	case Comment:
		fmt.Fprintf(p.w, "# %s\n", i.Text)
	case GET:
		fmt.Fprintf(p.w, "\tGET %s\n", i.R)
	case PUT:
		fmt.Fprintf(p.w, "\tPUT %s\n", i.R)
	case LOAD:
		fmt.Fprintf(p.w, "\tLOAD %s\n", i.Rd)
	case STORE:
		fmt.Fprintf(p.w, "\tSTORE %s\n", i.Rs)
	case COPY:
		fmt.Fprintf(p.w, "\tCOPY %s, %s\n", i.Rd, i.Rs)
	case ADD:
		fmt.Fprintf(p.w, "\tADD %s, %s\n", i.Rd, i.Rs)
	case SUB:
		fmt.Fprintf(p.w, "\tSUB %s, %s\n", i.Rd, i.Rs)
	case INC:
		fmt.Fprintf(p.w, "\tINC %s\n", i.R)
	case DEC:
		fmt.Fprintf(p.w, "\tDEC %s\n", i.R)
	case HALF:
		fmt.Fprintf(p.w, "\tHALF %s\n", i.R)
	case JUMP:
		fmt.Fprintf(p.w, "\tJUMP %s\n", i.L)
	case JZERO:
		fmt.Fprintf(p.w, "\tJZERO %s, %s\n", i.R, i.L)
	case JODD:
		fmt.Fprintf(p.w, "\tJODD %s, %s\n", i.R, i.L)
	case HALT:
		fmt.Fprintf(p.w, "\tHALT\n")
	default:
		fmt.Fprintf(p.w, "\t; unknown instruction %T\n", inst)
	}
}
