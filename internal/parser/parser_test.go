package parser

import (
	"testing"

	"memprobe/internal/ast"
	"memprobe/internal/lexer"
	"memprobe/internal/symtab"
	"memprobe/internal/types"
)

func parse(t *testing.T, src string) ast.Expr {
	t.Helper()
	toks, err := lexer.ScanTokens(src)
	if err != nil {
		t.Fatalf("lex %q: %v", src, err)
	}
	syms := symtab.New()
	syms.Add("addr", types.U32)
	syms.Add("value", types.S32)
	syms.Add("prev", types.S32)
	p := New(toks, syms, src)
	expr, err := p.Parse()
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	return expr
}

func TestParsePrecedenceMulBindsTighterThanAdd(t *testing.T) {
	expr := parse(t, "1 + 2 * 3")
	bin, ok := expr.(*ast.Binary)
	if !ok || bin.Op != ast.BinAdd {
		t.Fatalf("top node = %+v, want + at the root", expr)
	}
	rhs, ok := bin.Right.(*ast.Binary)
	if !ok || rhs.Op != ast.BinMul {
		t.Fatalf("right operand = %+v, want * nested under +", bin.Right)
	}
}

func TestParseRelationalYieldsS32(t *testing.T) {
	expr := parse(t, "value > 0")
	if expr.Type() != types.S32 {
		t.Fatalf("value > 0 result type = %v, want s32", expr.Type())
	}
}

func TestParseLogicalAndIsSeparateFromBitwiseAnd(t *testing.T) {
	expr := parse(t, "value > 0 && value < 10")
	if _, ok := expr.(*ast.Logical); !ok {
		t.Fatalf("top node = %T, want *ast.Logical", expr)
	}
}

func TestParseCastBindsTighterThanMul(t *testing.T) {
	expr := parse(t, "(s8)value * 2")
	bin, ok := expr.(*ast.Binary)
	if !ok || bin.Op != ast.BinMul {
		t.Fatalf("top node = %+v, want * at the root", expr)
	}
	cast, ok := bin.Left.(*ast.Cast)
	if !ok || cast.Target != types.S8 {
		t.Fatalf("left operand = %+v, want cast to s8", bin.Left)
	}
}

func TestParseShiftResultTypeIsLeftOperand(t *testing.T) {
	expr := parse(t, "addr << 1")
	bin := expr.(*ast.Binary)
	if bin.ResultType != types.U32 {
		t.Fatalf("addr << 1 result type = %v, want u32 (addr's type)", bin.ResultType)
	}
}

func TestParseDerefProducesDerefNode(t *testing.T) {
	expr := parse(t, "*(s32*)addr == 0")
	bin, ok := expr.(*ast.Binary)
	if !ok || bin.Op != ast.BinEq {
		t.Fatalf("top node = %+v, want ==", expr)
	}
	deref, ok := bin.Left.(*ast.Deref)
	if !ok || deref.ResultType != types.S32 {
		t.Fatalf("left operand = %+v, want *s32 deref", bin.Left)
	}
	if _, ok := deref.Child.(*ast.Var); !ok {
		t.Fatalf("deref child = %T, want the addr Var", deref.Child)
	}
}

func TestParseUnaryNegBindsThroughCast(t *testing.T) {
	expr := parse(t, "-(s32)value")
	unary, ok := expr.(*ast.Unary)
	if !ok || unary.Op != ast.UnaryNeg {
		t.Fatalf("top node = %+v, want unary -", expr)
	}
	if _, ok := unary.Child.(*ast.Cast); !ok {
		t.Fatalf("child = %T, want *ast.Cast", unary.Child)
	}
}

func TestParseUndefinedSymbolFails(t *testing.T) {
	toks, err := lexer.ScanTokens("nope")
	if err != nil {
		t.Fatal(err)
	}
	p := New(toks, symtab.New(), "nope")
	if _, err := p.Parse(); err == nil {
		t.Fatal("expected parse error for undefined symbol")
	}
}

func TestParseBitwiseOnFloatFails(t *testing.T) {
	toks, err := lexer.ScanTokens("1.0 & 2")
	if err != nil {
		t.Fatal(err)
	}
	p := New(toks, symtab.New(), "1.0 & 2")
	if _, err := p.Parse(); err == nil {
		t.Fatal("expected parse error for bitwise op on float")
	}
}

func TestParseChainedEqualityFails(t *testing.T) {
	toks, err := lexer.ScanTokens("1 == 2 == 3")
	if err != nil {
		t.Fatal(err)
	}
	p := New(toks, symtab.New(), "1 == 2 == 3")
	if _, err := p.Parse(); err == nil {
		t.Fatal("expected parse error for chained ==, equality allows only one application")
	}
}

func TestParseChainedRelationalFails(t *testing.T) {
	toks, err := lexer.ScanTokens("1 < 2 < 3")
	if err != nil {
		t.Fatal(err)
	}
	p := New(toks, symtab.New(), "1 < 2 < 3")
	if _, err := p.Parse(); err == nil {
		t.Fatal("expected parse error for chained <, relational allows only one application")
	}
}

func TestParseShortCircuitTreeShapeOrBindsLowerThanAnd(t *testing.T) {
	expr := parse(t, "value > 0 && value < 10 || addr == 0")
	top, ok := expr.(*ast.Logical)
	if !ok || top.Op != ast.LogicalOr {
		t.Fatalf("top node = %+v, want || at the root", expr)
	}
	if _, ok := top.Left.(*ast.Logical); !ok {
		t.Fatalf("left operand = %T, want nested && Logical", top.Left)
	}
}
