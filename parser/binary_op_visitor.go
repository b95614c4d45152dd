package parser

import (
	pair "github.com/notEpsilon/go-pair"
	"github.com/pingcap/parser/ast"
	"github.com/pingcap/parser/opcode"

	"github.com/minirel/MinirelDB/types"
)

// BinaryOpVisitor accepts a WHERE clause of the form column = literal, in
// either order. the heap only supports lookups by equality on one field.
type BinaryOpVisitor struct {
	Predicate_ *pair.Pair[string, *types.Value]
	err        error
}

func (v *BinaryOpVisitor) Enter(in ast.Node) (ast.Node, bool) {
	switch node := in.(type) {
	case *ast.ParenthesesExpr:
		return in, false
	case *ast.BinaryOperationExpr:
		if node.Op != opcode.EQ {
			v.err = unsupported(ErrUnsupportedExpression, "WHERE supports only column = value, got operator %s", node.Op)
			return in, true
		}
		col, lit := node.L, node.R
		if _, ok := col.(*ast.ColumnNameExpr); !ok {
			col, lit = lit, col
		}
		colExpr, ok := col.(*ast.ColumnNameExpr)
		if !ok {
			v.err = unsupported(ErrUnsupportedExpression, "WHERE needs a column on one side")
			return in, true
		}
		val, err := exprToValue(lit)
		if err != nil {
			v.err = err
			return in, true
		}
		v.Predicate_ = &pair.Pair[string, *types.Value]{First: colExpr.Name.Name.O, Second: val}
		return in, true
	default:
		v.err = unsupported(ErrUnsupportedExpression, "WHERE supports only column = value, got %T", in)
	}
	return in, true
}

func (v *BinaryOpVisitor) Leave(in ast.Node) (ast.Node, bool) {
	return in, true
}
