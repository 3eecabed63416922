// Package eval tree-walks a parsed, typed expression against a set of
// bound symbol cells and an optional memory reader, producing the
// typed Value it denotes.
package eval

import (
	"fmt"

	"memprobe/internal/ast"
	"memprobe/internal/types"
)

// MemReader reads a typed value directly out of the target process at
// addr, used to evaluate Deref nodes. It reports false if the address
// could not be read (unmapped, permission denied, or simply outside
// every region the driver is tracking).
type MemReader func(addr uint64, t types.Tag) (types.Value, bool)

// Eval evaluates expr. cells holds one Value per symbol-table entry,
// indexed the same way ast.Var.Index is (1-based; cells[i-1] is the
// cell for symbol index i). read may be nil if expr contains no Deref
// node.
func Eval(expr ast.Expr, cells []types.Value, read MemReader) (types.Value, error) {
	v := &visitor{cells: cells, read: read}
	result, err := expr.Accept(v)
	if err != nil {
		return types.Value{}, err
	}
	return result.(types.Value), nil
}

type visitor struct {
	cells []types.Value
	read  MemReader
}

func (v *visitor) VisitLiteral(n *ast.Literal) (interface{}, error) {
	return n.Value, nil
}

func (v *visitor) VisitVar(n *ast.Var) (interface{}, error) {
	if n.Index < 1 || n.Index > len(v.cells) {
		return nil, fmt.Errorf("eval: symbol %q has no bound cell", n.Name)
	}
	return v.cells[n.Index-1], nil
}

func (v *visitor) VisitCast(n *ast.Cast) (interface{}, error) {
	child, err := evalChild(v, n.Child)
	if err != nil {
		return nil, err
	}
	return child.CastTo(n.Target), nil
}

func (v *visitor) VisitDeref(n *ast.Deref) (interface{}, error) {
	addrVal, err := evalChild(v, n.Child)
	if err != nil {
		return nil, err
	}
	if v.read == nil {
		return nil, fmt.Errorf("eval: dereference requires a memory reader")
	}
	result, ok := v.read(addrVal.AsU64(), n.ResultType)
	if !ok {
		return nil, fmt.Errorf("eval: could not read memory at 0x%x", addrVal.AsU64())
	}
	return result, nil
}

func (v *visitor) VisitUnary(n *ast.Unary) (interface{}, error) {
	child, err := evalChild(v, n.Child)
	if err != nil {
		return nil, err
	}
	var op types.Op
	switch n.Op {
	case ast.UnaryNeg:
		op = types.Neg
	case ast.UnaryNot:
		op = types.Not
	case ast.UnaryCompl:
		op = types.Compl
	}
	result, err := types.UnaryOp(op, child)
	if err != nil {
		return nil, err
	}
	return result.CastTo(n.ResultType), nil
}

var binOps = map[ast.BinaryOp]types.Op{
	ast.BinAdd: types.Add,
	ast.BinSub: types.Sub,
	ast.BinMul: types.Mul,
	ast.BinDiv: types.Div,
	ast.BinMod: types.Mod,
	ast.BinAnd: types.BitAnd,
	ast.BinXor: types.BitXor,
	ast.BinOr:  types.BitOr,
	ast.BinShl: types.Shl,
	ast.BinShr: types.Shr,
	ast.BinEq:  types.Eq,
	ast.BinNeq: types.Neq,
	ast.BinLt:  types.Lt,
	ast.BinGt:  types.Gt,
	ast.BinLe:  types.Le,
	ast.BinGe:  types.Ge,
}

func (v *visitor) VisitBinary(n *ast.Binary) (interface{}, error) {
	left, err := evalChild(v, n.Left)
	if err != nil {
		return nil, err
	}
	right, err := evalChild(v, n.Right)
	if err != nil {
		return nil, err
	}
	result, err := types.BinaryOp(binOps[n.Op], left, right)
	if err != nil {
		return nil, err
	}
	// Relational results are already s32 0/1; arithmetic and bitwise
	// results still need truncating down to the node's declared type
	// (they come back from types.BinaryOp at the promoted dispatch
	// width, per the promotion law).
	return result.CastTo(n.ResultType), nil
}

// VisitLogical implements && and || with strict short-circuit
// evaluation: the right operand is never evaluated when the left
// operand alone determines the result.
func (v *visitor) VisitLogical(n *ast.Logical) (interface{}, error) {
	left, err := evalChild(v, n.Left)
	if err != nil {
		return nil, err
	}
	leftTrue := !left.IsZero()
	if n.Op == ast.LogicalAnd && !leftTrue {
		return types.NewS32(0), nil
	}
	if n.Op == ast.LogicalOr && leftTrue {
		return types.NewS32(1), nil
	}
	right, err := evalChild(v, n.Right)
	if err != nil {
		return nil, err
	}
	if !right.IsZero() {
		return types.NewS32(1), nil
	}
	return types.NewS32(0), nil
}

func evalChild(v *visitor, e ast.Expr) (types.Value, error) {
	result, err := e.Accept(v)
	if err != nil {
		return types.Value{}, err
	}
	return result.(types.Value), nil
}
