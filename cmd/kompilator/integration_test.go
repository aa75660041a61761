package main

import (
	"math/big"
	"os"
	"strings"
	"testing"

	"github.com/repaj/kompilator/pkg/codegen"
	"github.com/repaj/kompilator/pkg/irgen"
	"github.com/repaj/kompilator/pkg/lexer"
	"github.com/repaj/kompilator/pkg/liveness"
	"github.com/repaj/kompilator/pkg/parser"
	"github.com/repaj/kompilator/pkg/vm"
	"gopkg.in/yaml.v3"
)

// IntegrationTestSpec is one case of testdata/integration.yaml: a kmp
// program, the sequence of values it should READ, and the sequence of
// values it should WRITE.
type IntegrationTestSpec struct {
	Name    string  `yaml:"name"`
	Program string  `yaml:"program"`
	Input   []int64 `yaml:"input"`
	Expect  []int64 `yaml:"expect"`
	Skip    string  `yaml:"skip,omitempty"`
}

// IntegrationTestFile is the shape of testdata/integration.yaml.
type IntegrationTestFile struct {
	Tests []IntegrationTestSpec `yaml:"tests"`
}

// compileToProgram runs the full lex/parse/lower/analyze/codegen pipeline
// over src and returns the resulting assembly, bypassing the CLI's I/O
// plumbing so tests can feed the result straight into the simulator.
func compileToProgram(t *testing.T, src string) vm.Program {
	t.Helper()

	p := parser.New(lexer.New(src))
	astProg := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		t.Fatalf("parse errors: %v", errs)
	}

	irProg, syms, err := irgen.Build(astProg)
	if err != nil {
		t.Fatalf("irgen.Build: %v", err)
	}

	analysis := liveness.Analyze(irProg)
	cg := codegen.New(syms, analysis)
	prog, err := cg.EmitProgram(irProg)
	if err != nil {
		t.Fatalf("EmitProgram: %v", err)
	}
	return prog
}

// TestIntegrationYAML drives every case of testdata/integration.yaml
// through the full pipeline and the register-machine simulator, checking
// the resulting WRITE sequence against the fixture's expectations. This
// repository's analogous fixture is self-contained: where a C compiler
// would shell out to an external assembler and linker, a kmp program runs
// straight on vm.Sim, so there is no findCompCert-style external-tool
// detection step.
func TestIntegrationYAML(t *testing.T) {
	data, err := os.ReadFile("testdata/integration.yaml")
	if err != nil {
		t.Fatalf("testdata/integration.yaml not found: %v", err)
	}

	var testFile IntegrationTestFile
	if err := yaml.Unmarshal(data, &testFile); err != nil {
		t.Fatalf("failed to parse integration.yaml: %v", err)
	}

	for _, tc := range testFile.Tests {
		t.Run(tc.Name, func(t *testing.T) {
			if tc.Skip != "" {
				t.Skip(tc.Skip)
			}

			prog := compileToProgram(t, tc.Program)

			input := make([]*big.Int, len(tc.Input))
			for i, v := range tc.Input {
				input[i] = big.NewInt(v)
			}

			sim := vm.NewSim(input)
			if err := sim.Run(prog); err != nil {
				t.Fatalf("vm.Sim.Run: %v\nassembly:\n%s", err, asmText(prog))
			}

			got := sim.Output()
			if len(got) != len(tc.Expect) {
				t.Fatalf("expected %d output values, got %d (%v)\nassembly:\n%s",
					len(tc.Expect), len(got), got, asmText(prog))
			}
			for i, want := range tc.Expect {
				if got[i].Cmp(big.NewInt(want)) != 0 {
					t.Errorf("output[%d] = %s, want %d\nassembly:\n%s", i, got[i], want, asmText(prog))
				}
			}
		})
	}
}

func asmText(prog vm.Program) string {
	var buf strings.Builder
	vm.NewPrinter(&buf).PrintProgram(prog)
	return buf.String()
}
