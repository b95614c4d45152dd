package parser

import (
	"github.com/pingcap/parser/ast"

	"github.com/minirel/MinirelDB/types"
)

// AssignVisitor extracts one "column = literal" of an UPDATE SET list
type AssignVisitor struct {
	Colname_ *string
	Value_   *types.Value
	err      error
}

func (v *AssignVisitor) Enter(in ast.Node) (ast.Node, bool) {
	switch node := in.(type) {
	case *ast.Assignment:
		colname := node.Column.Name.O
		v.Colname_ = &colname
		v.Value_, v.err = exprToValue(node.Expr)
		return in, true
	default:
	}

	return in, false
}

func (v *AssignVisitor) Leave(in ast.Node) (ast.Node, bool) {
	return in, true
}
