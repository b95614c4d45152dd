package parser

import (
	"github.com/pingcap/parser/ast"

	"github.com/minirel/MinirelDB/types"
)

// ChildDataVisitor collects the literals of an INSERT VALUES row
type ChildDataVisitor struct {
	ChildDatas_ []*types.Value
	err         error
}

func (v *ChildDataVisitor) Enter(in ast.Node) (ast.Node, bool) {
	if v.err != nil {
		return in, true
	}
	expr, ok := in.(ast.ExprNode)
	if !ok {
		v.err = unsupported(ErrUnsupportedExpression, "%T in VALUES", in)
		return in, true
	}
	val, err := exprToValue(expr)
	if err != nil {
		v.err = err
		return in, true
	}
	v.ChildDatas_ = append(v.ChildDatas_, val)
	return in, true
}

func (v *ChildDataVisitor) Leave(in ast.Node) (ast.Node, bool) {
	return in, true
}
