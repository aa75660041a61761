package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/repaj/kompilator/pkg/ast"
	"github.com/repaj/kompilator/pkg/codegen"
	"github.com/repaj/kompilator/pkg/ir"
	"github.com/repaj/kompilator/pkg/irgen"
	"github.com/repaj/kompilator/pkg/lexer"
	"github.com/repaj/kompilator/pkg/liveness"
	"github.com/repaj/kompilator/pkg/parser"
	"github.com/repaj/kompilator/pkg/vm"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

// Debug flags for dumping intermediate representations, one --d<stage> flag
// per compilation stage.
var (
	dTokens   bool
	dAST      bool
	dIR       bool
	dLiveness bool
	dDom      bool
	dAsm      bool
)

var outputPath string

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "kompilator [file]",
		Short: "kompilator compiles kmp source to register-machine assembly",
		Long: `kompilator lowers a small imperative source language ("kmp") to a
stream of instructions for a register machine with one address register,
no native multiplication or division, and branches on zero or oddness only.
It exists to exercise the code generator end-to-end; reads from the named
file, or from stdin when no file is given.`,
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var filename string
			if len(args) > 0 {
				filename = args[0]
			}
			return compile(filename, out, errOut)
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	rootCmd.Flags().BoolVar(&dTokens, "dtokens", false, "dump the token stream")
	rootCmd.Flags().BoolVar(&dAST, "dast", false, "dump the parsed AST")
	rootCmd.Flags().BoolVar(&dIR, "dir", false, "dump the lowered IR")
	rootCmd.Flags().BoolVar(&dLiveness, "dliveness", false, "dump per-block live-out sets")
	rootCmd.Flags().BoolVar(&dDom, "ddom", false, "dump per-block dominator sets")
	rootCmd.Flags().BoolVar(&dAsm, "dasm", false, "dump the emitted assembly")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file for the emitted assembly (default stdout)")

	return rootCmd
}

// readSource reads kmp source text from filename, or from stdin if
// filename is empty.
func readSource(filename string) (string, error) {
	if filename == "" {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(filename)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", filename, err)
	}
	return string(b), nil
}

// compile runs the full lex/parse/lower/analyze/codegen pipeline over
// filename (or stdin) and writes the resulting assembly to outputPath (or,
// when empty, out). Every
// --d<stage> flag dumps its stage to errOut and compilation continues.
func compile(filename string, out, errOut io.Writer) error {
	label := filename
	if label == "" {
		label = "<stdin>"
	}

	src, err := readSource(filename)
	if err != nil {
		fmt.Fprintf(errOut, "kompilator: %v\n", err)
		return err
	}

	if dTokens {
		dumpTokens(src, errOut)
	}

	p := parser.New(lexer.New(src))
	astProg := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(errOut, "kompilator: %s: %s\n", label, e)
		}
		return fmt.Errorf("%s: %d parse error(s)", label, len(errs))
	}

	if dAST {
		ast.NewPrinter(errOut).PrintProgram(astProg)
	}

	irProg, syms, err := irgen.Build(astProg)
	if err != nil {
		if ce, ok := err.(*ast.CompileError); ok {
			fmt.Fprintf(errOut, "kompilator: %s:%d:%d: %s\n", label, ce.Pos.Line, ce.Pos.Column, ce.Msg)
		} else {
			fmt.Fprintf(errOut, "kompilator: %s: %v\n", label, err)
		}
		return err
	}

	if dIR {
		ir.NewPrinter(errOut).PrintProgram(irProg)
	}

	analysis := liveness.Analyze(irProg)

	if dLiveness {
		dumpLiveness(irProg, analysis, errOut)
	}
	if dDom {
		dumpDominators(irProg, analysis, errOut)
	}

	cg := codegen.New(syms, analysis)
	prog, err := cg.EmitProgram(irProg)
	if err != nil {
		fmt.Fprintf(errOut, "kompilator: %s: %v\n", label, err)
		return err
	}

	if dAsm {
		vm.NewPrinter(errOut).PrintProgram(prog)
	}

	return writeAssembly(prog, out)
}

func writeAssembly(prog vm.Program, out io.Writer) error {
	if outputPath == "" {
		vm.NewPrinter(out).PrintProgram(prog)
		return nil
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", outputPath, err)
	}
	defer f.Close()
	vm.NewPrinter(f).PrintProgram(prog)
	return nil
}

func dumpTokens(src string, w io.Writer) {
	l := lexer.New(src)
	for {
		tok := l.NextToken()
		fmt.Fprintf(w, "%d:%d\t%s\t%q\n", tok.Line, tok.Column, tok.Type, tok.Literal)
		if tok.Type == lexer.TokenEOF {
			return
		}
	}
}

func dumpLiveness(prog ir.Program, analysis liveness.Result, w io.Writer) {
	names := blockNames(prog)
	for _, name := range names {
		fmt.Fprintf(w, "liveOut(%s) = %s\n", name, analysis.LiveOut[name])
	}
}

func dumpDominators(prog ir.Program, analysis liveness.Result, w io.Writer) {
	names := blockNames(prog)
	for _, name := range names {
		doms := analysis.Dominators[name]
		var list []string
		for d := range doms {
			list = append(list, d)
		}
		sort.Strings(list)
		fmt.Fprintf(w, "dom(%s) = %v\n", name, list)
	}
}

func blockNames(prog ir.Program) []string {
	names := make([]string, len(prog.Blocks))
	for i, b := range prog.Blocks {
		names[i] = b.Name
	}
	return names
}
