// Package ast defines the expression tree the parser builds, the
// optimizer rewrites, and the evaluator walks. Every node implements
// Expr via the visitor pattern rather than a type switch at each call
// site, and every node carries the value type it was given at parse
// time — evaluation never has to re-derive a node's result type.
package ast

import "memprobe/internal/types"

// Expr is any node in the expression tree.
type Expr interface {
	Accept(v Visitor) (interface{}, error)
	Type() types.Tag
}

// Visitor dispatches over the concrete node set. Each Visit method
// returns the value produced by evaluating (or rewriting) that node.
type Visitor interface {
	VisitLiteral(n *Literal) (interface{}, error)
	VisitVar(n *Var) (interface{}, error)
	VisitCast(n *Cast) (interface{}, error)
	VisitDeref(n *Deref) (interface{}, error)
	VisitUnary(n *Unary) (interface{}, error)
	VisitBinary(n *Binary) (interface{}, error)
	VisitLogical(n *Logical) (interface{}, error)
}

// Literal is a constant: a numeric token read at parse time, or a
// constant subtree the optimizer folded.
type Literal struct {
	Value types.Value
}

func (n *Literal) Accept(v Visitor) (interface{}, error) { return v.VisitLiteral(n) }
func (n *Literal) Type() types.Tag                       { return n.Value.Tag }

// Var reads a predefined symbol (addr, value, prev) by its 1-based
// index into the driver's cell table, rather than by name — the name
// lookup happens once, at parse time.
type Var struct {
	Name       string
	Index      int
	ResultType types.Tag
}

func (n *Var) Accept(v Visitor) (interface{}, error) { return v.VisitVar(n) }
func (n *Var) Type() types.Tag                       { return n.ResultType }

// Cast is an explicit "(type) expr" conversion.
type Cast struct {
	Target types.Tag
	Child  Expr
}

func (n *Cast) Accept(v Visitor) (interface{}, error) { return v.VisitCast(n) }
func (n *Cast) Type() types.Tag                       { return n.Target }

// Deref reads ResultType-sized, ResultType-typed memory from the
// target process at the address Child evaluates to. Pointer casts
// produce a Deref's Child, not a Value of their own: pointers are an
// addressing mode, not a storage type in the value algebra.
type Deref struct {
	ResultType types.Tag
	Child      Expr
}

func (n *Deref) Accept(v Visitor) (interface{}, error) { return v.VisitDeref(n) }
func (n *Deref) Type() types.Tag                       { return n.ResultType }

// UnaryOp identifies which unary operator a Unary node applies.
type UnaryOp int

const (
	UnaryNeg UnaryOp = iota
	UnaryNot
	UnaryCompl
)

type Unary struct {
	Op         UnaryOp
	Child      Expr
	ResultType types.Tag
}

func (n *Unary) Accept(v Visitor) (interface{}, error) { return v.VisitUnary(n) }
func (n *Unary) Type() types.Tag                       { return n.ResultType }

// BinaryOp identifies which arithmetic, bitwise, shift, or relational
// operator a Binary node applies. Logical && and || are not here —
// they need short-circuit evaluation and live on Logical instead.
type BinaryOp int

const (
	BinAdd BinaryOp = iota
	BinSub
	BinMul
	BinDiv
	BinMod
	BinAnd
	BinXor
	BinOr
	BinShl
	BinShr
	BinEq
	BinNeq
	BinLt
	BinGt
	BinLe
	BinGe
)

type Binary struct {
	Op         BinaryOp
	Left       Expr
	Right      Expr
	ResultType types.Tag
}

func (n *Binary) Accept(v Visitor) (interface{}, error) { return v.VisitBinary(n) }
func (n *Binary) Type() types.Tag                       { return n.ResultType }

// LogicalOp is && or ||.
type LogicalOp int

const (
	LogicalAnd LogicalOp = iota
	LogicalOr
)

// Logical is && or ||: the right operand must not be evaluated unless
// the left operand's value alone already decides the result.
type Logical struct {
	Op    LogicalOp
	Left  Expr
	Right Expr
}

func (n *Logical) Accept(v Visitor) (interface{}, error) { return v.VisitLogical(n) }
func (n *Logical) Type() types.Tag                       { return types.S32 }
