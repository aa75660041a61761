package ir

import (
	"fmt"
	"io"
)

// Printer renders an IR program as a flat block listing, used by the CLI's
// -dir debug dump.
type Printer struct {
	w io.Writer
}

// NewPrinter creates a Printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// PrintProgram renders every block of prog in order.
func (p *Printer) PrintProgram(prog Program) {
	for _, b := range prog.Blocks {
		p.printBlock(b)
	}
}

func (p *Printer) printBlock(b Block) {
	fmt.Fprintf(p.w, "%s:\n", b.Name)
	for _, instr := range b.Instrs {
		fmt.Fprintf(p.w, "\t%s\n", instrString(instr))
	}
	fmt.Fprintf(p.w, "\t%s\n", termString(b.Term))
}

func instrString(instr Instruction) string {
	switch i := instr.(type) {
	case Get:
		return fmt.Sprintf("%s := input()", operandString(i.Dst))
	case Put:
		return fmt.Sprintf("output(%s)", operandString(i.Src))
	case Move:
		return fmt.Sprintf("%s := %s", operandString(i.Dst), operandString(i.Src))
	case IndexedLoad:
		return fmt.Sprintf("%s := %s[%s]", operandString(i.Dst), i.Base.Name, operandString(i.Offset))
	case IndexedStore:
		return fmt.Sprintf("%s[%s] := %s", i.Base.Name, operandString(i.Offset), operandString(i.Src))
	case Binary:
		return fmt.Sprintf("%s := %s %s %s", operandString(i.Dst), operandString(i.Left), binOpString(i.Op), operandString(i.Right))
	default:
		return fmt.Sprintf("<unknown instruction %T>", instr)
	}
}

func termString(t Term) string {
	switch term := t.(type) {
	case Jump:
		return fmt.Sprintf("jump %s", term.Target)
	case JumpIf:
		return fmt.Sprintf("if %s %s %s then %s else %s",
			operandString(term.Left), term.Cond, operandString(term.Right), term.IfTrue, term.IfFalse)
	case Halt:
		return "halt"
	default:
		return fmt.Sprintf("<unknown terminator %T>", t)
	}
}

func operandString(op Operand) string {
	switch o := op.(type) {
	case Const:
		return o.Value.String()
	case NameScalar:
		return o.Name
	case NameArray:
		return o.Name
	case NameTemp:
		return fmt.Sprintf("t%d", o.ID)
	default:
		return fmt.Sprintf("<unknown operand %T>", op)
	}
}

func binOpString(op BinOp) string {
	switch op {
	case Add:
		return "+"
	case Sub:
		return "-"
	case Mul:
		return "*"
	case Div:
		return "/"
	case Rem:
		return "%"
	default:
		return "?"
	}
}
