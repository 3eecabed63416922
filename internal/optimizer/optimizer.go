// Package optimizer folds constant subexpressions of a parsed tree
// before it reaches the search driver's inner loop. A subtree folds
// only when it contains neither a Var nor a Deref: folding across a
// memory read would bake in a value that differs per scanned address.
package optimizer

import (
	"memprobe/internal/ast"
	"memprobe/internal/eval"
)

// Fold rewrites expr bottom-up, replacing any subtree with no Var or
// Deref node by the Literal its value evaluates to. The rewrite
// produces a new tree; expr itself is left untouched.
func Fold(expr ast.Expr) ast.Expr {
	folded, _ := fold(expr)
	return folded
}

// fold returns the rewritten node and whether it is itself a constant
// (so its parent can attempt to fold around it too).
func fold(expr ast.Expr) (ast.Expr, bool) {
	switch n := expr.(type) {
	case *ast.Literal:
		return n, true

	case *ast.Var:
		return n, false

	case *ast.Deref:
		child, _ := fold(n.Child)
		return &ast.Deref{ResultType: n.ResultType, Child: child}, false

	case *ast.Cast:
		child, childConst := fold(n.Child)
		node := &ast.Cast{Target: n.Target, Child: child}
		return foldIfConst(node, childConst)

	case *ast.Unary:
		child, childConst := fold(n.Child)
		node := &ast.Unary{Op: n.Op, Child: child, ResultType: n.ResultType}
		return foldIfConst(node, childConst)

	case *ast.Binary:
		left, leftConst := fold(n.Left)
		right, rightConst := fold(n.Right)
		node := &ast.Binary{Op: n.Op, Left: left, Right: right, ResultType: n.ResultType}
		return foldIfConst(node, leftConst && rightConst)

	case *ast.Logical:
		// && and || fold only when both operands are constant. Folding
		// evaluates the node through eval, which applies the same
		// short-circuit rule, so the folded Literal is the value the
		// driver would have computed; a constant left operand beside a
		// non-constant right one leaves the node unfolded.
		left, leftConst := fold(n.Left)
		right, rightConst := fold(n.Right)
		node := &ast.Logical{Op: n.Op, Left: left, Right: right}
		return foldIfConst(node, leftConst && rightConst)

	default:
		return expr, false
	}
}

func foldIfConst(node ast.Expr, childrenConst bool) (ast.Expr, bool) {
	if !childrenConst {
		return node, false
	}
	v, err := eval.Eval(node, nil, nil)
	if err != nil {
		// A constant subexpression that fails at fold time (division
		// by zero, for instance) still fails the same way once the
		// search driver reaches it; leave it unfolded and let the
		// driver's own evaluation report the error in context.
		return node, false
	}
	return &ast.Literal{Value: v}, true
}
