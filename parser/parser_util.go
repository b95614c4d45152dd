package parser

import (
	"fmt"
	"math"

	"github.com/pingcap/parser/ast"
	"github.com/pingcap/parser/mysql"
	"github.com/pingcap/parser/opcode"
	ptypes "github.com/pingcap/parser/types"
	driver "github.com/pingcap/tidb/types/parser_driver"

	"github.com/minirel/MinirelDB/errors"
	"github.com/minirel/MinirelDB/types"
)

const ErrUnsupportedStatement = errors.Error("unsupported statement")
const ErrUnsupportedExpression = errors.Error("unsupported expression")
const ErrUnsupportedColumnType = errors.Error("unsupported column type")

type QueryType int32

const (
	SELECT QueryType = iota
	CREATE_TABLE
	DROP_TABLE
	INSERT
	DELETE
	UPDATE
	BEGIN
	COMMIT
	ROLLBACK
)

func (queryType QueryType) String() string {
	switch queryType {
	case SELECT:
		return "SELECT"
	case CREATE_TABLE:
		return "CREATE TABLE"
	case DROP_TABLE:
		return "DROP TABLE"
	case INSERT:
		return "INSERT"
	case DELETE:
		return "DELETE"
	case UPDATE:
		return "UPDATE"
	case BEGIN:
		return "BEGIN"
	case COMMIT:
		return "COMMIT"
	case ROLLBACK:
		return "ROLLBACK"
	}
	return fmt.Sprintf("QueryType(%d)", int32(queryType))
}

const (
	defaultIntLength  = 11
	defaultBoolLength = 5
	defaultCharLength = 1
)

type SetExpression struct {
	ColName_     *string
	UpdateValue_ *types.Value
}

type ColDefExpression struct {
	ColName_ *string
	ColType_ types.FieldType
	Length_  int32
}

func unsupported(sentinel error, format string, args ...interface{}) error {
	return errors.Validation(errors.Wrapf(sentinel, format, args...))
}

// ValueExprToValue converts a literal. NULL has no representation in a heap
// record and is rejected.
func ValueExprToValue(expr *driver.ValueExpr) (*types.Value, error) {
	var ret types.Value
	switch val := expr.GetValue().(type) {
	case int64:
		ret = types.NewInteger(val)
	case uint64:
		if val > math.MaxInt64 {
			return nil, unsupported(ErrUnsupportedExpression, "integer literal %d out of range", val)
		}
		ret = types.NewInteger(int64(val))
	case string:
		ret = types.NewVarchar(val)
	case []byte:
		ret = types.NewVarchar(string(val))
	case nil:
		return nil, unsupported(ErrUnsupportedExpression, "NULL literal")
	default:
		// decimals and floats are kept as text and checked against the field
		ret = types.NewVarchar(fmt.Sprint(val))
	}
	return &ret, nil
}

// exprToValue accepts a literal, optionally negated
func exprToValue(expr ast.ExprNode) (*types.Value, error) {
	switch node := expr.(type) {
	case *driver.ValueExpr:
		return ValueExprToValue(node)
	case *ast.UnaryOperationExpr:
		if node.Op != opcode.Minus {
			break
		}
		val, err := exprToValue(node.V)
		if err != nil {
			return nil, err
		}
		if val.ValueType() != types.Integer {
			break
		}
		ret := types.NewInteger(-val.ToInteger())
		return &ret, nil
	case *ast.ParenthesesExpr:
		return exprToValue(node.Expr)
	}
	return nil, unsupported(ErrUnsupportedExpression, "only literals are accepted, got %T", expr)
}

// tableNameOf returns the single table a clause refers to. joins are rejected.
func tableNameOf(refs *ast.TableRefsClause) (string, error) {
	if refs == nil || refs.TableRefs == nil {
		return "", unsupported(ErrUnsupportedStatement, "no table given")
	}
	join := refs.TableRefs
	if join.Right != nil {
		return "", unsupported(ErrUnsupportedStatement, "joins are not supported")
	}
	switch src := join.Left.(type) {
	case *ast.TableSource:
		if tbl, ok := src.Source.(*ast.TableName); ok {
			return tbl.Name.O, nil
		}
	case *ast.TableName:
		return src.Name.O, nil
	}
	return "", unsupported(ErrUnsupportedStatement, "sub queries are not supported")
}

// columnDefToExpr maps a column definition onto the heap field types:
// CHAR is str, VARCHAR is varstr, BOOL and TINYINT(1) are bool and the other
// integer types are int.
func columnDefToExpr(node *ast.ColumnDef) (*ColDefExpression, error) {
	cname := node.Name.Name.O
	cdef := &ColDefExpression{ColName_: &cname}
	tp := node.Tp
	length := tp.Flen

	switch tp.Tp {
	case mysql.TypeString:
		cdef.ColType_ = types.Str
		if length == ptypes.UnspecifiedLength {
			length = defaultCharLength
		}
	case mysql.TypeVarchar, mysql.TypeVarString:
		cdef.ColType_ = types.VarStr
	case mysql.TypeTiny, mysql.TypeShort, mysql.TypeInt24, mysql.TypeLong, mysql.TypeLonglong:
		if tp.Tp == mysql.TypeTiny && length == 1 {
			cdef.ColType_ = types.Bool
			length = defaultBoolLength
		} else {
			cdef.ColType_ = types.Int
			if length == ptypes.UnspecifiedLength {
				length = defaultIntLength
			}
		}
	default:
		return nil, unsupported(ErrUnsupportedColumnType, "column %s: %s", cname, tp.String())
	}
	if length <= 0 {
		return nil, unsupported(ErrUnsupportedColumnType, "column %s needs a length", cname)
	}
	cdef.Length_ = int32(length)
	return cdef, nil
}
