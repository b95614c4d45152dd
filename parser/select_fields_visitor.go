package parser

import (
	"github.com/pingcap/parser/ast"
)

type SelectFieldsVisitor struct {
	QueryInfo_ *QueryInfo
	err        error
}

func (v *SelectFieldsVisitor) Enter(in ast.Node) (ast.Node, bool) {
	switch node := in.(type) {
	case *ast.FieldList:
		return in, false
	case *ast.SelectField:
		// when specifed wildcard
		if node.WildCard != nil {
			colname := "*"
			v.QueryInfo_.SelectFields_ = append(v.QueryInfo_.SelectFields_, &colname)
			return in, true
		}
		if colExpr, ok := node.Expr.(*ast.ColumnNameExpr); ok {
			colname := colExpr.Name.Name.O
			v.QueryInfo_.SelectFields_ = append(v.QueryInfo_.SelectFields_, &colname)
			return in, true
		}
		v.err = unsupported(ErrUnsupportedExpression, "only column names can be selected")
	default:
	}
	return in, true
}

func (v *SelectFieldsVisitor) Leave(in ast.Node) (ast.Node, bool) {
	return in, true
}
