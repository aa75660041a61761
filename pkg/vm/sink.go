package vm

import "fmt"

// Sink is the write-only ordered log the code generator emits into. It
// performs no semantic validation: that is the emitter's job.
type Sink struct {
	prog    Program
	labelCt map[string]int
}

// NewSink creates an empty Sink.
func NewSink() *Sink {
	return &Sink{labelCt: make(map[string]int)}
}

// Emit appends an instruction.
func (s *Sink) Emit(inst Instruction) {
	s.prog.Code = append(s.prog.Code, inst)
}

// PlaceLabel places a label at the current position in the stream.
func (s *Sink) PlaceLabel(name Label) {
	s.prog.Code = append(s.prog.Code, LabelDef{Name: name})
}

// Comment appends an informational annotation.
func (s *Sink) Comment(text string) {
	s.prog.Code = append(s.prog.Code, Comment{Text: text})
}

// FreshLabel returns a new globally-unique label built from prefix and a
// per-prefix monotonically increasing counter.
func (s *Sink) FreshLabel(prefix string) Label {
	n := s.labelCt[prefix]
	s.labelCt[prefix] = n + 1
	return Label(fmt.Sprintf("%s%d", prefix, n))
}

// Program returns the accumulated instruction stream.
func (s *Sink) Program() Program {
	return s.prog
}
