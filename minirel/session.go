package minirel

import (
	"fmt"
	"strings"

	"github.com/minirel/MinirelDB/common"
	"github.com/minirel/MinirelDB/errors"
	"github.com/minirel/MinirelDB/parser"
	"github.com/minirel/MinirelDB/storage/access"
	"github.com/minirel/MinirelDB/storage/page"
	"github.com/minirel/MinirelDB/storage/tuple"
	"github.com/minirel/MinirelDB/types"
)

const ErrTxnInProgress = errors.Error("a transaction is already in progress")
const ErrNoTxn = errors.Error("no transaction in progress")
const ErrColumnMismatch = errors.Error("columns do not match the table")

// ResultSet is the outcome of one statement. Rows is set for SELECT only.
type ResultSet struct {
	Columns []string
	Rows    [][]*types.Value
	Message string
}

/**
 * Session carries the state of one client: the transaction opened by
 * BEGIN, if any. statements that change data outside of BEGIN ... COMMIT
 * run in a transaction of their own that commits on success and aborts
 * on failure. a Session must not be shared between goroutines.
 */
type Session struct {
	db     *MinirelDB
	txn_id types.TxnID
}

func (s *Session) InTransaction() bool {
	return s.txn_id != common.InvalidTxnID
}

// GetTxnId returns the id of the explicit transaction, or InvalidTxnID
func (s *Session) GetTxnId() types.TxnID {
	return s.txn_id
}

// ExecuteSQL runs the statements of sqlStr in order and stops at the first
// failure. results of the statements run before the failure are returned.
func (s *Session) ExecuteSQL(sqlStr string) ([]*ResultSet, error) {
	queryInfos, err := parser.ProcessSQLScript(&sqlStr)
	if err != nil {
		return nil, err
	}
	ret := make([]*ResultSet, 0, len(queryInfos))
	for _, queryInfo := range queryInfos {
		result, err := s.execute(queryInfo)
		if err != nil {
			return ret, err
		}
		ret = append(ret, result)
	}
	return ret, nil
}

func (s *Session) execute(queryInfo *parser.QueryInfo) (*ResultSet, error) {
	switch queryInfo.QueryType_ {
	case parser.BEGIN:
		return s.begin()
	case parser.COMMIT:
		return s.commit()
	case parser.ROLLBACK:
		return s.rollback()
	case parser.CREATE_TABLE:
		return s.createTable(queryInfo)
	case parser.DROP_TABLE:
		if err := s.db.DropTable(*queryInfo.TableName_); err != nil {
			return nil, err
		}
		return &ResultSet{Message: fmt.Sprintf("table %s dropped", *queryInfo.TableName_)}, nil
	case parser.SELECT:
		return s.selectRows(queryInfo)
	case parser.INSERT:
		return s.inTransaction(queryInfo, s.insertRows)
	case parser.DELETE:
		return s.inTransaction(queryInfo, s.deleteRow)
	case parser.UPDATE:
		return s.inTransaction(queryInfo, s.updateRow)
	}
	return nil, errors.Validation(errors.Wrapf(parser.ErrUnsupportedStatement, "%s", queryInfo.QueryType_))
}

func (s *Session) begin() (*ResultSet, error) {
	if s.InTransaction() {
		return nil, errors.Validation(errors.Wrapf(ErrTxnInProgress, "txn %d", s.txn_id))
	}
	txn_id, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	s.txn_id = txn_id
	return &ResultSet{Message: fmt.Sprintf("txn %d started", txn_id)}, nil
}

func (s *Session) commit() (*ResultSet, error) {
	if !s.InTransaction() {
		return nil, errors.Validation(ErrNoTxn)
	}
	txn_id := s.txn_id
	if _, err := s.db.Commit(txn_id); err != nil {
		return nil, err
	}
	s.txn_id = common.InvalidTxnID
	return &ResultSet{Message: fmt.Sprintf("txn %d committed", txn_id)}, nil
}

func (s *Session) rollback() (*ResultSet, error) {
	if !s.InTransaction() {
		return nil, errors.Validation(ErrNoTxn)
	}
	txn_id := s.txn_id
	if _, err := s.db.Abort(txn_id); err != nil {
		return nil, err
	}
	s.txn_id = common.InvalidTxnID
	return &ResultSet{Message: fmt.Sprintf("txn %d aborted; its changes stay in the tables", txn_id)}, nil
}

// inTransaction runs fn in the explicit transaction, or in one of its own
// when there is none
func (s *Session) inTransaction(queryInfo *parser.QueryInfo, fn func(*parser.QueryInfo, *access.PageStore, types.TxnID) (*ResultSet, error)) (*ResultSet, error) {
	ps, err := s.db.OpenTable(*queryInfo.TableName_)
	if err != nil {
		return nil, err
	}
	if s.InTransaction() {
		return fn(queryInfo, ps, s.txn_id)
	}

	txn_id, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	result, err := fn(queryInfo, ps, txn_id)
	if err != nil {
		if _, aerr := s.db.Abort(txn_id); aerr != nil {
			err = errors.CombineErrors(err, aerr)
		}
		return nil, err
	}
	if _, err = s.db.Commit(txn_id); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Session) createTable(queryInfo *parser.QueryInfo) (*ResultSet, error) {
	fields := make([]page.FieldDef, 0, len(queryInfo.ColDefExpressions_))
	for _, cdef := range queryInfo.ColDefExpressions_ {
		fields = append(fields, page.NewFieldDef(*cdef.ColName_, cdef.ColType_, cdef.Length_))
	}
	if _, err := s.db.CreateTable(*queryInfo.TableName_, fields); err != nil {
		return nil, err
	}
	return &ResultSet{Message: fmt.Sprintf("table %s created", *queryInfo.TableName_)}, nil
}

func fieldIndex(fields []page.FieldDef, name string) int {
	for i, field := range fields {
		if strings.TrimSpace(field.Name) == name {
			return i
		}
	}
	return -1
}

func unknownField(ps *access.PageStore, name string) error {
	return errors.Validation(errors.Wrapf(access.ErrUnknownField, "%s in table %s", name, ps.GetTableName()))
}

// rowValues orders the literals of one VALUES row by field
func rowValues(fields []page.FieldDef, targetCols []*string, row []*types.Value, ps *access.PageStore) ([]string, error) {
	values := make([]string, len(fields))
	if len(targetCols) == 0 {
		if len(row) != len(fields) {
			return nil, errors.Validation(errors.Wrapf(ErrColumnMismatch, "%d values for %d fields", len(row), len(fields)))
		}
		for i, val := range row {
			values[i] = val.ToString()
		}
		return values, nil
	}

	// every field needs a value: records have no NULL
	if len(targetCols) != len(fields) || len(row) != len(targetCols) {
		return nil, errors.Validation(errors.Wrapf(ErrColumnMismatch, "%d columns and %d values for %d fields", len(targetCols), len(row), len(fields)))
	}
	seen := make([]bool, len(fields))
	for i, col := range targetCols {
		idx := fieldIndex(fields, *col)
		if idx < 0 {
			return nil, unknownField(ps, *col)
		}
		if seen[idx] {
			return nil, errors.Validation(errors.Wrapf(ErrColumnMismatch, "column %s given twice", *col))
		}
		seen[idx] = true
		values[idx] = row[i].ToString()
	}
	return values, nil
}

func (s *Session) insertRows(queryInfo *parser.QueryInfo, ps *access.PageStore, txn_id types.TxnID) (*ResultSet, error) {
	fields := ps.GetFieldList()
	rows := make([][]string, 0, len(queryInfo.Values_))
	for _, row := range queryInfo.Values_ {
		values, err := rowValues(fields, queryInfo.TargetCols_, row, ps)
		if err != nil {
			return nil, err
		}
		// reject the statement before any row is written
		if _, _, err = tuple.EncodeContent(values, fields); err != nil {
			return nil, err
		}
		rows = append(rows, values)
	}
	for _, values := range rows {
		if _, err := ps.InsertRecord(values, txn_id); err != nil {
			return nil, err
		}
	}
	return &ResultSet{Message: fmt.Sprintf("%d row(s) inserted", len(rows))}, nil
}

func whereArg(queryInfo *parser.QueryInfo) string {
	return queryInfo.WhereExpression_.First + ":" + queryInfo.WhereExpression_.Second.ToString()
}

func (s *Session) deleteRow(queryInfo *parser.QueryInfo, ps *access.PageStore, txn_id types.TxnID) (*ResultSet, error) {
	deleted, err := ps.DeleteRecord(whereArg(queryInfo), txn_id)
	if err != nil {
		return nil, err
	}
	if !deleted {
		return &ResultSet{Message: "0 row(s) deleted"}, nil
	}
	return &ResultSet{Message: "1 row(s) deleted"}, nil
}

// matches returns a filter for the WHERE clause of queryInfo, which may be empty
func matches(queryInfo *parser.QueryInfo, ps *access.PageStore) (func(*tuple.Tuple) bool, error) {
	if queryInfo.WhereExpression_ == nil {
		return func(*tuple.Tuple) bool { return true }, nil
	}
	fields := ps.GetFieldList()
	idx := fieldIndex(fields, queryInfo.WhereExpression_.First)
	if idx < 0 {
		return nil, unknownField(ps, queryInfo.WhereExpression_.First)
	}
	keyword, err := types.ParseValue(fields[idx].Type.RuntimeType(), queryInfo.WhereExpression_.Second.ToString())
	if err != nil {
		return nil, err
	}
	return func(record *tuple.Tuple) bool {
		return record.GetValue(idx).CompareEquals(keyword)
	}, nil
}

/*
 * updateRow replaces the first record matching WHERE: the record is
 * deleted and the changed copy inserted at the end of the table, both in
 * txn_id. the new values are validated before anything is written.
 */
func (s *Session) updateRow(queryInfo *parser.QueryInfo, ps *access.PageStore, txn_id types.TxnID) (*ResultSet, error) {
	filter, err := matches(queryInfo, ps)
	if err != nil {
		return nil, err
	}
	fields := ps.GetFieldList()
	for _, setExp := range queryInfo.SetExpressions_ {
		if fieldIndex(fields, *setExp.ColName_) < 0 {
			return nil, unknownField(ps, *setExp.ColName_)
		}
	}

	for it := access.NewPageStoreIterator(ps); !it.End(); it.Next() {
		record := it.Current()
		if !filter(record) {
			continue
		}
		values := record.Strings()
		for _, setExp := range queryInfo.SetExpressions_ {
			values[fieldIndex(fields, *setExp.ColName_)] = setExp.UpdateValue_.ToString()
		}
		if _, _, err = tuple.EncodeContent(values, fields); err != nil {
			return nil, err
		}
		deleted, err := ps.DeleteRecordAt(*record.GetRID(), txn_id)
		if err != nil {
			return nil, err
		}
		if !deleted {
			break
		}
		if _, err = ps.InsertRecord(values, txn_id); err != nil {
			return nil, err
		}
		return &ResultSet{Message: "1 row(s) updated"}, nil
	}
	return &ResultSet{Message: "0 row(s) updated"}, nil
}

func (s *Session) selectRows(queryInfo *parser.QueryInfo) (*ResultSet, error) {
	ps, err := s.db.OpenTable(*queryInfo.TableName_)
	if err != nil {
		return nil, err
	}
	filter, err := matches(queryInfo, ps)
	if err != nil {
		return nil, err
	}

	fields := ps.GetFieldList()
	columns := make([]string, 0)
	projection := make([]int, 0)
	for _, col := range queryInfo.SelectFields_ {
		if *col == "*" {
			for i, field := range fields {
				columns = append(columns, strings.TrimSpace(field.Name))
				projection = append(projection, i)
			}
			continue
		}
		idx := fieldIndex(fields, *col)
		if idx < 0 {
			return nil, unknownField(ps, *col)
		}
		columns = append(columns, *col)
		projection = append(projection, idx)
	}

	rows := make([][]*types.Value, 0)
	for it := access.NewPageStoreIterator(ps); !it.End(); it.Next() {
		record := it.Current()
		if !filter(record) {
			continue
		}
		row := make([]*types.Value, 0, len(projection))
		for _, idx := range projection {
			val := record.GetValue(idx)
			row = append(row, &val)
		}
		rows = append(rows, row)
	}
	return &ResultSet{Columns: columns, Rows: rows, Message: fmt.Sprintf("%d row(s)", len(rows))}, nil
}
