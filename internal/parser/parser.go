// Package parser implements the expression grammar's recursive-descent
// parser: one function per precedence level, from the logical-or level
// down through unary and factor. Each production decides its node's
// result type as it builds the node, so the tree the parser hands back
// is already fully typed.
package parser

import (
	"fmt"

	"memprobe/internal/ast"
	"memprobe/internal/errors"
	"memprobe/internal/lexer"
	"memprobe/internal/symtab"
	"memprobe/internal/types"
)

// Parser consumes a token stream produced by the lexer and resolves
// identifiers against a caller-supplied symbol table.
type Parser struct {
	tokens  []lexer.Token
	current int
	symbols *symtab.Table
	source  string
}

func New(tokens []lexer.Token, symbols *symtab.Table, source string) *Parser {
	return &Parser{tokens: tokens, symbols: symbols, source: source}
}

// Parse parses the full token stream as a single expression. Any
// syntax or type error aborts parsing immediately — expressions are
// short, so there is no value in resynchronizing and reporting a
// second error the way a multi-statement program's parser would.
func (p *Parser) Parse() (expr ast.Expr, err error) {
	defer func() {
		if r := recover(); r != nil {
			pe, ok := r.(*errors.ProbeError)
			if !ok {
				panic(r)
			}
			err = pe.WithSource(p.source)
			expr = nil
		}
	}()
	expr = p.expression()
	if !p.isAtEnd() {
		p.fail(fmt.Sprintf("unexpected trailing input %q", p.peek().Lexeme))
	}
	return expr, nil
}

// --- Grammar, low to high precedence ---
//
//	expression  -> conditional
//	conditional -> logicOr
//	logicOr     -> logicAnd ( '||' logicAnd )*
//	logicAnd    -> bitOr ( '&&' bitOr )*
//	bitOr       -> bitXor ( '|' bitXor )*
//	bitXor      -> bitAnd ( '^' bitAnd )*
//	bitAnd      -> equality ( '&' equality )*
//	equality    -> relational ( ('=='|'!=') relational )?
//	relational  -> shift ( ('<'|'>'|'<='|'>=') shift )?
//	shift       -> addSub ( ('<<'|'>>') addSub )*
//	addSub      -> mulDiv ( ('+'|'-') mulDiv )*
//	mulDiv      -> cast ( ('*'|'/'|'%') cast )*
//	cast        -> '(' type_name ')' cast | unary
//	unary       -> '*' '(' type_name '*' ')' cast | ('-'|'!'|'~') cast | factor
//	factor      -> NUMBER | IDENT | '(' expression ')'

func (p *Parser) expression() ast.Expr { return p.conditional() }

// conditional keeps the name the grammar gives this level even though
// it no longer holds a ternary: the source grammar groups && and ||
// into one "conditional" production, a naming choice inherited here
// from the level immediately below logicOr/logicAnd splitting it in
// two for short-circuit distinctness.
func (p *Parser) conditional() ast.Expr {
	return p.logicOr()
}

func (p *Parser) logicOr() ast.Expr {
	left := p.logicAnd()
	for p.match(lexer.TokenOrOr) {
		right := p.logicAnd()
		left = &ast.Logical{Op: ast.LogicalOr, Left: left, Right: right}
	}
	return left
}

func (p *Parser) logicAnd() ast.Expr {
	left := p.bitOr()
	for p.match(lexer.TokenAndAnd) {
		right := p.bitOr()
		left = &ast.Logical{Op: ast.LogicalAnd, Left: left, Right: right}
	}
	return left
}

func (p *Parser) bitOr() ast.Expr {
	left := p.bitXor()
	for p.match(lexer.TokenPipe) {
		right := p.bitXor()
		left = p.binary(ast.BinOr, left, right)
	}
	return left
}

func (p *Parser) bitXor() ast.Expr {
	left := p.bitAnd()
	for p.match(lexer.TokenCaret) {
		right := p.bitAnd()
		left = p.binary(ast.BinXor, left, right)
	}
	return left
}

func (p *Parser) bitAnd() ast.Expr {
	left := p.equality()
	for p.match(lexer.TokenAmp) {
		right := p.equality()
		left = p.binary(ast.BinAnd, left, right)
	}
	return left
}

// equality allows at most one '=='/'!=' application: the grammar caps
// this level at one optional comparison rather than chaining like the
// levels above it, so "a == b == c" is not a valid expression.
func (p *Parser) equality() ast.Expr {
	left := p.relational()
	switch {
	case p.match(lexer.TokenEqEq):
		return p.binary(ast.BinEq, left, p.relational())
	case p.match(lexer.TokenNotEq):
		return p.binary(ast.BinNeq, left, p.relational())
	default:
		return left
	}
}

// relational allows at most one application, for the same reason as
// equality: "a < b < c" is not a valid expression.
func (p *Parser) relational() ast.Expr {
	left := p.shift()
	switch {
	case p.match(lexer.TokenLt):
		return p.binary(ast.BinLt, left, p.shift())
	case p.match(lexer.TokenGt):
		return p.binary(ast.BinGt, left, p.shift())
	case p.match(lexer.TokenLe):
		return p.binary(ast.BinLe, left, p.shift())
	case p.match(lexer.TokenGe):
		return p.binary(ast.BinGe, left, p.shift())
	default:
		return left
	}
}

func (p *Parser) shift() ast.Expr {
	left := p.addSub()
	for {
		switch {
		case p.match(lexer.TokenShl):
			left = p.shiftNode(ast.BinShl, left, p.addSub())
		case p.match(lexer.TokenShr):
			left = p.shiftNode(ast.BinShr, left, p.addSub())
		default:
			return left
		}
	}
}

func (p *Parser) addSub() ast.Expr {
	left := p.mulDiv()
	for {
		switch {
		case p.match(lexer.TokenPlus):
			left = p.binary(ast.BinAdd, left, p.mulDiv())
		case p.match(lexer.TokenMinus):
			left = p.binary(ast.BinSub, left, p.mulDiv())
		default:
			return left
		}
	}
}

func (p *Parser) mulDiv() ast.Expr {
	left := p.cast()
	for {
		switch {
		case p.match(lexer.TokenStar):
			left = p.binary(ast.BinMul, left, p.cast())
		case p.match(lexer.TokenSlash):
			left = p.binary(ast.BinDiv, left, p.cast())
		case p.match(lexer.TokenPercent):
			left = p.binary(ast.BinMod, left, p.cast())
		default:
			return left
		}
	}
}

// cast recognizes the C-style "(type) expr" prefix. It needs two
// tokens of lookahead past the '(' to tell a cast from a parenthesized
// sub-expression, since both start the same way.
func (p *Parser) cast() ast.Expr {
	if p.check(lexer.TokenLParen) && p.checkNext(lexer.TokenIdent) {
		if target, ok := types.TagByName(p.tokens[p.current+1].Lexeme); ok {
			if p.current+2 < len(p.tokens) && p.tokens[p.current+2].Type == lexer.TokenRParen {
				p.advance() // (
				p.advance() // type name
				p.advance() // )
				child := p.cast()
				return &ast.Cast{Target: target, Child: child}
			}
		}
	}
	return p.unary()
}

// pointerCastType parses the "(type*)" prefix that always follows a
// dereference operator: '*' is the only place a pointer-tagged type
// name appears in this grammar, so there is no standalone pointer
// value in the value algebra, only this one fixed production.
func (p *Parser) pointerCastType() types.Tag {
	p.consume(lexer.TokenLParen, "expect '(' after '*'")
	nameTok := p.consume(lexer.TokenIdent, "expect a type name in pointer cast")
	target, ok := types.TagByName(nameTok.Lexeme)
	if !ok {
		p.failAt(fmt.Sprintf("unknown cast type %q", nameTok.Lexeme), nameTok.Column)
	}
	p.consume(lexer.TokenStar, "expect '*' after type name in pointer cast")
	p.consume(lexer.TokenRParen, "expect ')' after pointer cast")
	return target
}

func (p *Parser) unary() ast.Expr {
	switch {
	case p.match(lexer.TokenStar):
		target := p.pointerCastType()
		child := p.cast()
		if !types.IsInt(child.Type()) {
			p.fail("dereferenced address must be an integer expression")
		}
		return &ast.Deref{ResultType: target, Child: child}
	case p.match(lexer.TokenMinus):
		child := p.cast()
		if !types.IsInt(child.Type()) && !types.IsFloat(child.Type()) {
			p.fail("unary '-' requires a numeric operand")
		}
		return &ast.Unary{Op: ast.UnaryNeg, Child: child, ResultType: child.Type()}
	case p.match(lexer.TokenBang):
		child := p.cast()
		return &ast.Unary{Op: ast.UnaryNot, Child: child, ResultType: types.S32}
	case p.match(lexer.TokenTilde):
		child := p.cast()
		if !types.IsInt(child.Type()) {
			p.fail("unary '~' requires an integer operand")
		}
		return &ast.Unary{Op: ast.UnaryCompl, Child: child, ResultType: child.Type()}
	default:
		return p.factor()
	}
}

func (p *Parser) factor() ast.Expr {
	tok := p.advance()
	switch tok.Type {
	case lexer.TokenNumber:
		return &ast.Literal{Value: tok.NumValue}
	case lexer.TokenIdent:
		return p.variable(tok)
	case lexer.TokenLParen:
		expr := p.expression()
		p.consume(lexer.TokenRParen, "expect ')' after expression")
		return expr
	default:
		p.failAt(fmt.Sprintf("unexpected token %q in expression", tok.Lexeme), tok.Column)
		return nil // unreachable, failAt panics
	}
}

func (p *Parser) variable(tok lexer.Token) ast.Expr {
	sym, ok := p.symbols.Lookup(tok.Lexeme)
	if !ok {
		p.failAt(fmt.Sprintf("undefined symbol %q", tok.Lexeme), tok.Column)
	}
	return &ast.Var{Name: sym.Name, Index: sym.Index, ResultType: sym.Type}
}

// binary applies the operator dispatch policy's result-type rule:
// the result type is the higher-ranked of the two operand types,
// except for relational operators, whose result is always s32.
func (p *Parser) binary(op ast.BinaryOp, left, right ast.Expr) ast.Expr {
	if err := checkOperands(op, left.Type(), right.Type()); err != "" {
		p.fail(err)
	}
	var resultType types.Tag
	if isRelationalOp(op) {
		resultType = types.S32
	} else {
		resultType = widerOf(left.Type(), right.Type())
	}
	return &ast.Binary{Op: op, Left: left, Right: right, ResultType: resultType}
}

// shiftNode special-cases shift: its result type is the left operand's
// type, not the wider of the two, matching C's independent integer
// promotion of each shift operand.
func (p *Parser) shiftNode(op ast.BinaryOp, left, right ast.Expr) ast.Expr {
	if !types.IsInt(left.Type()) || !types.IsInt(right.Type()) {
		p.fail("shift operators require integer operands")
	}
	return &ast.Binary{Op: op, Left: left, Right: right, ResultType: left.Type()}
}

func isRelationalOp(op ast.BinaryOp) bool {
	switch op {
	case ast.BinEq, ast.BinNeq, ast.BinLt, ast.BinGt, ast.BinLe, ast.BinGe:
		return true
	}
	return false
}

func checkOperands(op ast.BinaryOp, l, r types.Tag) string {
	switch op {
	case ast.BinAnd, ast.BinXor, ast.BinOr:
		if types.IsFloat(l) || types.IsFloat(r) {
			return "bitwise operators require integer operands"
		}
	case ast.BinMod:
		if types.IsFloat(l) || types.IsFloat(r) {
			return "'%' is not defined on floating-point operands"
		}
	}
	return ""
}

func widerOf(a, b types.Tag) types.Tag {
	if types.Rank(a) >= types.Rank(b) {
		return a
	}
	return b
}

// --- token helpers, in the teacher's consume/check/advance style ---

func (p *Parser) match(t lexer.TokenType) bool {
	if p.check(t) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) consume(t lexer.TokenType, msg string) lexer.Token {
	if p.check(t) {
		return p.advance()
	}
	p.fail(fmt.Sprintf("%s (got %q)", msg, p.peek().Lexeme))
	return lexer.Token{}
}

func (p *Parser) check(t lexer.TokenType) bool {
	if p.isAtEnd() {
		return t == lexer.TokenEOF
	}
	return p.peek().Type == t
}

func (p *Parser) checkNext(t lexer.TokenType) bool {
	if p.current+1 >= len(p.tokens) {
		return false
	}
	return p.tokens[p.current+1].Type == t
}

func (p *Parser) advance() lexer.Token {
	tok := p.tokens[p.current]
	if !p.isAtEnd() {
		p.current++
	}
	return tok
}

func (p *Parser) peek() lexer.Token { return p.tokens[p.current] }

func (p *Parser) isAtEnd() bool { return p.tokens[p.current].Type == lexer.TokenEOF }

func (p *Parser) fail(msg string) {
	p.failAt(msg, p.peek().Column)
}

func (p *Parser) failAt(msg string, column int) {
	panic(errors.NewParseError(msg, column))
}
