package codegen

import (
	"math/big"
	"strings"
	"testing"

	"github.com/repaj/kompilator/pkg/ir"
	"github.com/repaj/kompilator/pkg/liveness"
	"github.com/repaj/kompilator/pkg/symtab"
	"github.com/repaj/kompilator/pkg/vm"
)

func bi(v int64) *big.Int { return big.NewInt(v) }

func run(t *testing.T, prog ir.Program, syms *symtab.Table, input []*big.Int) []*big.Int {
	t.Helper()
	analysis := liveness.Analyze(prog)
	cg := New(syms, analysis)
	mprog, err := cg.EmitProgram(prog)
	if err != nil {
		t.Fatalf("EmitProgram: %v", err)
	}
	sim := vm.NewSim(input)
	if err := sim.Run(mprog); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return sim.Output()
}

func wantInts(t *testing.T, got []*big.Int, want ...int64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("output length = %d, want %d (got %v)", len(got), len(want), got)
	}
	for i, w := range want {
		if got[i].Int64() != w {
			t.Errorf("output[%d] = %s, want %d", i, got[i], w)
		}
	}
}

// Scenario 1: Get a; Get b; Add a,b,t; Put t; Halt.  6, 7 -> 13.
func TestScenarioAddition(t *testing.T) {
	syms := symtab.New()
	a, b := ir.NameScalar{Name: "a"}, ir.NameScalar{Name: "b"}
	tmp := ir.NameTemp{ID: 0}
	syms.DeclareScalar("a")
	syms.DeclareScalar("b")

	prog := ir.Program{Blocks: []ir.Block{{
		Name: "entry",
		Instrs: []ir.Instruction{
			ir.Get{Dst: a},
			ir.Get{Dst: b},
			ir.Binary{Op: ir.Add, Left: a, Right: b, Dst: tmp},
			ir.Put{Src: tmp},
		},
		Term: ir.Halt{},
	}}}

	wantInts(t, run(t, prog, syms, []*big.Int{bi(6), bi(7)}), 13)
}

// Scenario 2: Get a; Get b; Mul a,b,t; Put t; Halt.  12, 17 -> 204.
func TestScenarioMultiplication(t *testing.T) {
	syms := symtab.New()
	a, b := ir.NameScalar{Name: "a"}, ir.NameScalar{Name: "b"}
	tmp := ir.NameTemp{ID: 0}
	syms.DeclareScalar("a")
	syms.DeclareScalar("b")

	prog := ir.Program{Blocks: []ir.Block{{
		Name: "entry",
		Instrs: []ir.Instruction{
			ir.Get{Dst: a},
			ir.Get{Dst: b},
			ir.Binary{Op: ir.Mul, Left: a, Right: b, Dst: tmp},
			ir.Put{Src: tmp},
		},
		Term: ir.Halt{},
	}}}

	wantInts(t, run(t, prog, syms, []*big.Int{bi(12), bi(17)}), 204)
}

// Scenario 3: Get a; Get b; Div a,b,q; Rem a,b,r; Put q; Put r; Halt.
// 100, 7 -> 14, 2.
func TestScenarioDivRem(t *testing.T) {
	syms := symtab.New()
	a, b := ir.NameScalar{Name: "a"}, ir.NameScalar{Name: "b"}
	q, r := ir.NameTemp{ID: 0}, ir.NameTemp{ID: 1}
	syms.DeclareScalar("a")
	syms.DeclareScalar("b")

	prog := ir.Program{Blocks: []ir.Block{{
		Name: "entry",
		Instrs: []ir.Instruction{
			ir.Get{Dst: a},
			ir.Get{Dst: b},
			ir.Binary{Op: ir.Div, Left: a, Right: b, Dst: q},
			ir.Binary{Op: ir.Rem, Left: a, Right: b, Dst: r},
			ir.Put{Src: q},
			ir.Put{Src: r},
		},
		Term: ir.Halt{},
	}}}

	wantInts(t, run(t, prog, syms, []*big.Int{bi(100), bi(7)}), 14, 2)
}

// Scenario 4: Get a; Div a, Const(0), q; Put q; Halt.  42 -> 0.
func TestScenarioDivByZero(t *testing.T) {
	syms := symtab.New()
	a := ir.NameScalar{Name: "a"}
	q := ir.NameTemp{ID: 0}
	syms.DeclareScalar("a")

	prog := ir.Program{Blocks: []ir.Block{{
		Name: "entry",
		Instrs: []ir.Instruction{
			ir.Get{Dst: a},
			ir.Binary{Op: ir.Div, Left: a, Right: ir.Const{Value: bi(0)}, Dst: q},
			ir.Put{Src: q},
		},
		Term: ir.Halt{},
	}}}

	wantInts(t, run(t, prog, syms, []*big.Int{bi(42)}), 0)
}

// Scenario 5: array T[-3..3]; store 9 at T[-3]; load T[-3]; put it.  -> 9.
func TestScenarioArrayStoreLoad(t *testing.T) {
	syms := symtab.New()
	arr := ir.NameArray{Name: "T"}
	v := ir.NameTemp{ID: 0}
	syms.DeclareArray("T", -3, 7)

	prog := ir.Program{Blocks: []ir.Block{{
		Name: "entry",
		Instrs: []ir.Instruction{
			ir.IndexedStore{Src: ir.Const{Value: bi(9)}, Base: arr, Offset: ir.Const{Value: bi(-3)}},
			ir.IndexedLoad{Base: arr, Offset: ir.Const{Value: bi(-3)}, Dst: v},
			ir.Put{Src: v},
		},
		Term: ir.Halt{},
	}}}

	wantInts(t, run(t, prog, syms, nil), 9)
}

// Scenario 6: Get a; Get b; JumpIf(Lt(a,b), L1, L2); L1: Put Const(1); Halt;
// L2: Put Const(2); Halt.  Run with (3,5) then (5,3).
func scenarioLt() (ir.Program, *symtab.Table) {
	syms := symtab.New()
	a, b := ir.NameScalar{Name: "a"}, ir.NameScalar{Name: "b"}
	syms.DeclareScalar("a")
	syms.DeclareScalar("b")

	prog := ir.Program{Blocks: []ir.Block{
		{
			Name:   "entry",
			Instrs: []ir.Instruction{ir.Get{Dst: a}, ir.Get{Dst: b}},
			Term:   ir.JumpIf{Cond: ir.Lt, Left: a, Right: b, IfTrue: "L1", IfFalse: "L2"},
		},
		{
			Name:   "L1",
			Instrs: []ir.Instruction{ir.Put{Src: ir.Const{Value: bi(1)}}},
			Term:   ir.Halt{},
		},
		{
			Name:   "L2",
			Instrs: []ir.Instruction{ir.Put{Src: ir.Const{Value: bi(2)}}},
			Term:   ir.Halt{},
		},
	}}
	return prog, syms
}

func TestScenarioConditionalLessThan(t *testing.T) {
	prog, syms := scenarioLt()
	wantInts(t, run(t, prog, syms, []*big.Int{bi(3), bi(5)}), 1)

	prog2, syms2 := scenarioLt()
	wantInts(t, run(t, prog2, syms2, []*big.Int{bi(5), bi(3)}), 2)
}

// Constant-materialization table: the value each sequence leaves in the
// target register.
func TestConstantMaterializationTable(t *testing.T) {
	cases := []int64{0, 1, 5, 7, 1024, 1_000_000_000}
	for _, v := range cases {
		sink := vm.NewSink()
		NewConstantEmitter(sink).EmitInt64(vm.B, v)
		sink.Emit(vm.PUT{R: vm.B})
		sink.Emit(vm.HALT{})

		sim := vm.NewSim(nil)
		if err := sim.Run(sink.Program()); err != nil {
			t.Fatalf("v=%d: run: %v", v, err)
		}
		out := sim.Output()
		if len(out) != 1 || out[0].Int64() != v {
			t.Fatalf("v=%d: materialized %v, want [%d]", v, out, v)
		}
	}
}

func TestConstantMaterializationHugeValue(t *testing.T) {
	v := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 64), big.NewInt(1)) // 2^64 - 1
	sink := vm.NewSink()
	NewConstantEmitter(sink).Emit(vm.B, v)
	sink.Emit(vm.PUT{R: vm.B})
	sink.Emit(vm.HALT{})

	sim := vm.NewSim(nil)
	if err := sim.Run(sink.Program()); err != nil {
		t.Fatalf("run: %v", err)
	}
	out := sim.Output()
	if len(out) != 1 || out[0].Cmp(v) != 0 {
		t.Fatalf("materialized %v, want %s", out, v)
	}
}

// Comparison correctness across a spread of pairs and every relational op.
func TestComparisonJumpsCorrectness(t *testing.T) {
	pairs := [][2]int64{{3, 5}, {5, 3}, {4, 4}, {0, 0}, {0, 9}, {9, 0}}
	ops := []struct {
		name string
		cond ir.Cond
		want func(l, r int64) bool
	}{
		{"le", ir.Le, func(l, r int64) bool { return l <= r }},
		{"ge", ir.Ge, func(l, r int64) bool { return l >= r }},
		{"lt", ir.Lt, func(l, r int64) bool { return l < r }},
		{"gt", ir.Gt, func(l, r int64) bool { return l > r }},
		{"ne", ir.Ne, func(l, r int64) bool { return l != r }},
		{"eq", ir.Eq, func(l, r int64) bool { return l == r }},
	}

	for _, op := range ops {
		for _, pair := range pairs {
			syms := symtab.New()
			a, b := ir.NameScalar{Name: "a"}, ir.NameScalar{Name: "b"}
			syms.DeclareScalar("a")
			syms.DeclareScalar("b")

			prog := ir.Program{Blocks: []ir.Block{
				{
					Name:   "entry",
					Instrs: []ir.Instruction{ir.Get{Dst: a}, ir.Get{Dst: b}},
					Term:   ir.JumpIf{Cond: op.cond, Left: a, Right: b, IfTrue: "T", IfFalse: "F"},
				},
				{Name: "T", Instrs: []ir.Instruction{ir.Put{Src: ir.Const{Value: bi(1)}}}, Term: ir.Halt{}},
				{Name: "F", Instrs: []ir.Instruction{ir.Put{Src: ir.Const{Value: bi(0)}}}, Term: ir.Halt{}},
			}}

			out := run(t, prog, syms, []*big.Int{bi(pair[0]), bi(pair[1])})
			want := int64(0)
			if op.want(pair[0], pair[1]) {
				want = 1
			}
			if len(out) != 1 || out[0].Int64() != want {
				t.Errorf("%s(%d,%d) = %v, want [%d]", op.name, pair[0], pair[1], out, want)
			}
		}
	}
}

// Determinism: emitting the same block sequence twice from scratch yields
// byte-identical output.
func TestDeterministicEmission(t *testing.T) {
	build := func() (ir.Program, *symtab.Table) {
		syms := symtab.New()
		a, b := ir.NameScalar{Name: "a"}, ir.NameScalar{Name: "b"}
		tmp := ir.NameTemp{ID: 0}
		syms.DeclareScalar("a")
		syms.DeclareScalar("b")
		prog := ir.Program{Blocks: []ir.Block{{
			Name: "entry",
			Instrs: []ir.Instruction{
				ir.Get{Dst: a},
				ir.Get{Dst: b},
				ir.Binary{Op: ir.Mul, Left: a, Right: b, Dst: tmp},
				ir.Put{Src: tmp},
			},
			Term: ir.Halt{},
		}}}
		return prog, syms
	}

	render := func() string {
		prog, syms := build()
		analysis := liveness.Analyze(prog)
		cg := New(syms, analysis)
		mprog, err := cg.EmitProgram(prog)
		if err != nil {
			t.Fatalf("EmitProgram: %v", err)
		}
		var buf strings.Builder
		vm.NewPrinter(&buf).PrintProgram(mprog)
		return buf.String()
	}

	first := render()
	second := render()
	if first != second {
		t.Fatalf("emission is not deterministic:\n%s\n---\n%s", first, second)
	}
}
