package parser

import (
	pair "github.com/notEpsilon/go-pair"
	"github.com/pingcap/parser"
	"github.com/pingcap/parser/ast"
	_ "github.com/pingcap/tidb/types/parser_driver"

	"github.com/minirel/MinirelDB/common"
	"github.com/minirel/MinirelDB/errors"
	"github.com/minirel/MinirelDB/types"
)

const ErrSyntax = errors.Error("sql syntax error")
const ErrEmptyStatement = errors.Error("no sql statement given")
const ErrMultipleStatements = errors.Error("exactly one sql statement expected")

// QueryInfo is what the front-end extracts from one statement. each
// QueryInfo is owned by its caller and shares nothing with the parser.
type QueryInfo struct {
	QueryType_         QueryType
	TableName_         *string                          // all but BEGIN, COMMIT and ROLLBACK
	SelectFields_      []*string                        // SELECT, "*" for a wildcard
	SetExpressions_    []*SetExpression                 // UPDATE
	ColDefExpressions_ []*ColDefExpression              // CREATE TABLE
	TargetCols_        []*string                        // INSERT, empty when no column list is given
	Values_            [][]*types.Value                 // INSERT, one entry per row
	WhereExpression_   *pair.Pair[string, *types.Value] // SELECT, UPDATE, DELETE: column = literal
}

func extractInfoFromAST(rootNode ast.StmtNode) (*QueryInfo, error) {
	if common.ActiveLogKindSetting&common.DEBUGGING > 0 {
		rootNode.Accept(NewPrintNodesVisitor())
	}
	v := NewRootSQLVisitor()
	rootNode.Accept(v)
	if v.err != nil {
		return nil, v.err
	}
	return v.QueryInfo_, nil
}

func parse(sql string) ([]ast.StmtNode, error) {
	p := parser.New()

	stmtNodes, _, err := p.Parse(sql, "", "")
	if err != nil {
		return nil, errors.Validation(errors.Wrapf(ErrSyntax, "%v", err))
	}
	if len(stmtNodes) == 0 {
		return nil, errors.Validation(ErrEmptyStatement)
	}
	return stmtNodes, nil
}

// ProcessSQLStr parses a single statement
func ProcessSQLStr(sqlStr *string) (*QueryInfo, error) {
	stmtNodes, err := parse(*sqlStr)
	if err != nil {
		return nil, err
	}
	if len(stmtNodes) != 1 {
		return nil, errors.Validation(errors.Wrapf(ErrMultipleStatements, "got %d", len(stmtNodes)))
	}
	return extractInfoFromAST(stmtNodes[0])
}

// ProcessSQLScript parses ';' separated statements in order. nothing is
// returned when any of them is rejected.
func ProcessSQLScript(sqlStr *string) ([]*QueryInfo, error) {
	stmtNodes, err := parse(*sqlStr)
	if err != nil {
		return nil, err
	}
	ret := make([]*QueryInfo, 0, len(stmtNodes))
	for i, stmtNode := range stmtNodes {
		queryInfo, err := extractInfoFromAST(stmtNode)
		if err != nil {
			return nil, errors.Wrapf(err, "statement %d", i+1)
		}
		ret = append(ret, queryInfo)
	}
	return ret, nil
}
