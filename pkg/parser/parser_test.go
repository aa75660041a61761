package parser

import (
	"testing"

	"github.com/repaj/kompilator/pkg/ast"
	"github.com/repaj/kompilator/pkg/lexer"
)

func parseProgram(t *testing.T, input string) *ast.Program {
	t.Helper()
	p := New(lexer.New(input))
	prog := p.ParseProgram()
	if len(p.Errors()) != 0 {
		t.Fatalf("parser errors: %v", p.Errors())
	}
	return prog
}

func TestParseScalarDecl(t *testing.T) {
	prog := parseProgram(t, `DECLARE x, y BEGIN x := 1; END`)

	if len(prog.Decls) != 2 {
		t.Fatalf("expected 2 decls, got %d", len(prog.Decls))
	}
	if prog.Decls[0].Name != "x" || prog.Decls[0].IsArray() {
		t.Errorf("decl[0] = %+v, want scalar x", prog.Decls[0])
	}
	if prog.Decls[1].Name != "y" || prog.Decls[1].IsArray() {
		t.Errorf("decl[1] = %+v, want scalar y", prog.Decls[1])
	}
}

func TestParseArrayDecl(t *testing.T) {
	prog := parseProgram(t, `DECLARE a[-3:3] BEGIN a[0] := 1; END`)

	if len(prog.Decls) != 1 {
		t.Fatalf("expected 1 decl, got %d", len(prog.Decls))
	}
	d := prog.Decls[0]
	if !d.IsArray() {
		t.Fatalf("decl %+v should be an array", d)
	}
	if d.Lo.Int64() != -3 || d.Hi.Int64() != 3 {
		t.Errorf("bounds = [%s:%s], want [-3:3]", d.Lo, d.Hi)
	}
}

func TestParseAssignArithmetic(t *testing.T) {
	prog := parseProgram(t, `BEGIN x := 1 + 2 * 3; END`)

	if len(prog.Body) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(prog.Body))
	}
	assign, ok := prog.Body[0].(ast.Assign)
	if !ok {
		t.Fatalf("statement is %T, want ast.Assign", prog.Body[0])
	}
	bin, ok := assign.Value.(ast.Binary)
	if !ok {
		t.Fatalf("value is %T, want ast.Binary", assign.Value)
	}
	if bin.Op != ast.OpAdd {
		t.Errorf("top-level op = %v, want OpAdd (precedence)", bin.Op)
	}
	rhs, ok := bin.Right.(ast.Binary)
	if !ok || rhs.Op != ast.OpMul {
		t.Errorf("right operand = %+v, want a multiplication", bin.Right)
	}
}

func TestParseIfElse(t *testing.T) {
	prog := parseProgram(t, `
		BEGIN
			IF x = 0 THEN
				y := 1;
			ELSE
				y := 2;
			ENDIF
		END`)

	ifStmt, ok := prog.Body[0].(ast.If)
	if !ok {
		t.Fatalf("statement is %T, want ast.If", prog.Body[0])
	}
	if ifStmt.Cond.Op != ast.RelEq {
		t.Errorf("cond op = %v, want RelEq", ifStmt.Cond.Op)
	}
	if len(ifStmt.Then) != 1 || len(ifStmt.Else) != 1 {
		t.Fatalf("then/else lengths = %d/%d, want 1/1", len(ifStmt.Then), len(ifStmt.Else))
	}
}

func TestParseWhile(t *testing.T) {
	prog := parseProgram(t, `
		BEGIN
			WHILE x != 0 DO
				x := x - 1;
			ENDWHILE
		END`)

	w, ok := prog.Body[0].(ast.While)
	if !ok {
		t.Fatalf("statement is %T, want ast.While", prog.Body[0])
	}
	if w.Cond.Op != ast.RelNe {
		t.Errorf("cond op = %v, want RelNe", w.Cond.Op)
	}
}

func TestParseForDownto(t *testing.T) {
	prog := parseProgram(t, `
		DECLARE a[0:9]
		BEGIN
			FOR i FROM 9 DOWNTO 0 DO
				a[i] := i;
			ENDFOR
		END`)

	f, ok := prog.Body[0].(ast.For)
	if !ok {
		t.Fatalf("statement is %T, want ast.For", prog.Body[0])
	}
	if !f.Downto {
		t.Errorf("expected Downto=true")
	}
	if f.Var != "i" {
		t.Errorf("loop variable = %q, want i", f.Var)
	}
	assign, ok := f.Body[0].(ast.Assign)
	if !ok {
		t.Fatalf("body[0] is %T, want ast.Assign", f.Body[0])
	}
	if _, ok := assign.Target.(ast.Index); !ok {
		t.Errorf("target is %T, want ast.Index", assign.Target)
	}
}

func TestParseReadWrite(t *testing.T) {
	prog := parseProgram(t, `BEGIN READ x; WRITE x; END`)

	if _, ok := prog.Body[0].(ast.Read); !ok {
		t.Fatalf("statement[0] is %T, want ast.Read", prog.Body[0])
	}
	if _, ok := prog.Body[1].(ast.Write); !ok {
		t.Fatalf("statement[1] is %T, want ast.Write", prog.Body[1])
	}
}

func TestParseErrorOnMalformedAssign(t *testing.T) {
	p := New(lexer.New(`BEGIN x 1; END`))
	p.ParseProgram()
	if len(p.Errors()) == 0 {
		t.Fatalf("expected parse errors for malformed assignment")
	}
}
