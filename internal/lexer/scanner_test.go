package lexer

import (
	"testing"

	"memprobe/internal/types"
)

func tokenTypes(toks []Token) []TokenType {
	out := make([]TokenType, len(toks))
	for i, t := range toks {
		out[i] = t.Type
	}
	return out
}

func TestScanOperators(t *testing.T) {
	toks, err := ScanTokens("value == 1337 && prev != 0")
	if err != nil {
		t.Fatal(err)
	}
	want := []TokenType{TokenIdent, TokenEqEq, TokenNumber, TokenAndAnd, TokenIdent, TokenNotEq, TokenNumber, TokenEOF}
	got := tokenTypes(toks)
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestScanLongestMatch(t *testing.T) {
	toks, err := ScanTokens("a << b")
	if err != nil {
		t.Fatal(err)
	}
	if toks[1].Type != TokenShl {
		t.Fatalf("'<<' lexed as %v, want TokenShl", toks[1].Type)
	}
}

func TestScanBareEqualsStopsOnError(t *testing.T) {
	toks, err := ScanTokens("a<<=b")
	if err == nil {
		t.Fatal("expected lex error for bare '=' following '<<'")
	}
	if len(toks) != 2 || toks[0].Type != TokenIdent || toks[1].Type != TokenShl {
		t.Fatalf("tokens scanned before error = %v, want [IDENT, <<]", tokenTypes(toks))
	}
}

func TestScanBareEqualsIsError(t *testing.T) {
	if _, err := ScanTokens("value = 1"); err == nil {
		t.Fatal("expected lex error for bare '='")
	}
}

func TestScanHexLiteral(t *testing.T) {
	toks, err := ScanTokens("0xFF")
	if err != nil {
		t.Fatal(err)
	}
	if toks[0].NumValue.AsU64() != 255 {
		t.Fatalf("0xFF = %d, want 255", toks[0].NumValue.AsU64())
	}
}

func TestScanOctalRejects89(t *testing.T) {
	if _, err := ScanTokens("019"); err == nil {
		t.Fatal("expected lex error for octal literal containing 9")
	}
}

func TestScanOctalLiteral(t *testing.T) {
	toks, err := ScanTokens("017")
	if err != nil {
		t.Fatal(err)
	}
	if toks[0].NumValue.AsU64() != 15 {
		t.Fatalf("017 = %d, want 15", toks[0].NumValue.AsU64())
	}
}

func TestScanUnsignedSuffix(t *testing.T) {
	toks, err := ScanTokens("10u")
	if err != nil {
		t.Fatal(err)
	}
	if toks[0].NumValue.Tag != types.U32 {
		t.Fatalf("10u tag = %v, want u32", toks[0].NumValue.Tag)
	}
}

func TestScanFloatLiteral(t *testing.T) {
	toks, err := ScanTokens("3.25")
	if err != nil {
		t.Fatal(err)
	}
	if toks[0].NumValue.Tag != types.F64 {
		t.Fatalf("3.25 tag = %v, want double", toks[0].NumValue.Tag)
	}
	if toks[0].NumValue.AsF64() != 3.25 {
		t.Fatalf("3.25 = %v, want 3.25", toks[0].NumValue.AsF64())
	}
}

func TestScanFloatExponent(t *testing.T) {
	toks, err := ScanTokens("1e3")
	if err != nil {
		t.Fatal(err)
	}
	if toks[0].NumValue.AsF64() != 1000 {
		t.Fatalf("1e3 = %v, want 1000", toks[0].NumValue.AsF64())
	}
}

func TestScanNulTerminatesExpression(t *testing.T) {
	toks, err := ScanTokens("value\x00garbage")
	if err != nil {
		t.Fatal(err)
	}
	if len(toks) != 2 || toks[1].Type != TokenEOF {
		t.Fatalf("expected ident+EOF, got %v", tokenTypes(toks))
	}
}
