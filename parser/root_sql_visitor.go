package parser

import (
	"github.com/pingcap/parser/ast"

	"github.com/minirel/MinirelDB/types"
)

type RootSQLVisitor struct {
	QueryInfo_ *QueryInfo
	err        error
}

func NewRootSQLVisitor() *RootSQLVisitor {
	ret := new(RootSQLVisitor)
	qinfo := new(QueryInfo)
	qinfo.SelectFields_ = make([]*string, 0)
	qinfo.SetExpressions_ = make([]*SetExpression, 0)
	qinfo.ColDefExpressions_ = make([]*ColDefExpression, 0)
	qinfo.TargetCols_ = make([]*string, 0)
	qinfo.Values_ = make([][]*types.Value, 0)
	ret.QueryInfo_ = qinfo

	return ret
}

func (v *RootSQLVisitor) setTable(name string, err error) bool {
	if err != nil {
		v.err = err
		return false
	}
	v.QueryInfo_.TableName_ = &name
	return true
}

func (v *RootSQLVisitor) setWhere(where ast.ExprNode, required bool) {
	if where == nil {
		if required {
			v.err = unsupported(ErrUnsupportedExpression, "%s needs a WHERE column = value clause", v.QueryInfo_.QueryType_)
		}
		return
	}
	bv := new(BinaryOpVisitor)
	where.Accept(bv)
	if bv.err != nil {
		v.err = bv.err
		return
	}
	v.QueryInfo_.WhereExpression_ = bv.Predicate_
}

// Enter handles each statement at its root and skips the children, which
// the statement specific visitors walk themselves.
func (v *RootSQLVisitor) Enter(in ast.Node) (ast.Node, bool) {
	switch node := in.(type) {
	case *ast.SelectStmt:
		v.QueryInfo_.QueryType_ = SELECT
		if !v.setTable(tableNameOf(node.From)) {
			return in, true
		}
		if node.GroupBy != nil || node.Having != nil || node.OrderBy != nil || node.Limit != nil {
			v.err = unsupported(ErrUnsupportedStatement, "SELECT supports only a column list and WHERE")
			return in, true
		}
		sv := &SelectFieldsVisitor{QueryInfo_: v.QueryInfo_}
		node.Fields.Accept(sv)
		if sv.err != nil {
			v.err = sv.err
			return in, true
		}
		v.setWhere(node.Where, false)
	case *ast.CreateTableStmt:
		v.QueryInfo_.QueryType_ = CREATE_TABLE
		tbname := node.Table.Name.O
		v.QueryInfo_.TableName_ = &tbname
		if len(node.Constraints) > 0 {
			v.err = unsupported(ErrUnsupportedStatement, "indexes and constraints are not supported")
			return in, true
		}
		for _, col := range node.Cols {
			cdef, err := columnDefToExpr(col)
			if err != nil {
				v.err = err
				return in, true
			}
			v.QueryInfo_.ColDefExpressions_ = append(v.QueryInfo_.ColDefExpressions_, cdef)
		}
	case *ast.DropTableStmt:
		v.QueryInfo_.QueryType_ = DROP_TABLE
		if len(node.Tables) != 1 {
			v.err = unsupported(ErrUnsupportedStatement, "DROP TABLE takes exactly one table")
			return in, true
		}
		tbname := node.Tables[0].Name.O
		v.QueryInfo_.TableName_ = &tbname
	case *ast.InsertStmt:
		v.QueryInfo_.QueryType_ = INSERT
		if node.IsReplace || node.Select != nil || len(node.Setlist) > 0 || len(node.OnDuplicate) > 0 {
			v.err = unsupported(ErrUnsupportedStatement, "only INSERT ... VALUES is supported")
			return in, true
		}
		if !v.setTable(tableNameOf(node.Table)) {
			return in, true
		}
		for _, col := range node.Columns {
			cname := col.Name.O
			v.QueryInfo_.TargetCols_ = append(v.QueryInfo_.TargetCols_, &cname)
		}
		for _, list := range node.Lists {
			cdv := &ChildDataVisitor{make([]*types.Value, 0), nil}
			for _, expr := range list {
				expr.Accept(cdv)
			}
			if cdv.err != nil {
				v.err = cdv.err
				return in, true
			}
			v.QueryInfo_.Values_ = append(v.QueryInfo_.Values_, cdv.ChildDatas_)
		}
	case *ast.DeleteStmt:
		v.QueryInfo_.QueryType_ = DELETE
		if node.IsMultiTable {
			v.err = unsupported(ErrUnsupportedStatement, "multi table DELETE is not supported")
			return in, true
		}
		if !v.setTable(tableNameOf(node.TableRefs)) {
			return in, true
		}
		v.setWhere(node.Where, true)
	case *ast.UpdateStmt:
		v.QueryInfo_.QueryType_ = UPDATE
		if !v.setTable(tableNameOf(node.TableRefs)) {
			return in, true
		}
		for _, assignment := range node.List {
			av := new(AssignVisitor)
			assignment.Accept(av)
			if av.err != nil {
				v.err = av.err
				return in, true
			}
			setExp := new(SetExpression)
			setExp.ColName_ = av.Colname_
			setExp.UpdateValue_ = av.Value_
			v.QueryInfo_.SetExpressions_ = append(v.QueryInfo_.SetExpressions_, setExp)
		}
		v.setWhere(node.Where, true)
	case *ast.BeginStmt:
		v.QueryInfo_.QueryType_ = BEGIN
	case *ast.CommitStmt:
		v.QueryInfo_.QueryType_ = COMMIT
	case *ast.RollbackStmt:
		v.QueryInfo_.QueryType_ = ROLLBACK
	default:
		v.err = unsupported(ErrUnsupportedStatement, "%T", in)
	}
	return in, true
}

func (v *RootSQLVisitor) Leave(in ast.Node) (ast.Node, bool) {
	return in, true
}
