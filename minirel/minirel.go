package minirel

import (
	"strings"

	"github.com/sasha-s/go-deadlock"

	"github.com/minirel/MinirelDB/common"
	"github.com/minirel/MinirelDB/errors"
	"github.com/minirel/MinirelDB/recovery"
	"github.com/minirel/MinirelDB/storage/access"
	"github.com/minirel/MinirelDB/storage/disk"
	"github.com/minirel/MinirelDB/storage/page"
	"github.com/minirel/MinirelDB/types"
)

const ErrTableExists = errors.Error("table already exists")
const ErrShutdown = errors.Error("database is shut down")
const ErrTableNameInLog = errors.Error("table name is still referenced by the transaction log")

// MinirelDB is the embedding entry point: one data directory, its open
// tables and the transactions running against them
type MinirelDB struct {
	mi_     *MinirelInstance
	tables_ map[string]*access.PageStore
	mutex   *deadlock.Mutex
	closed  bool
}

func NewMinirelDB(cfg *common.Config) (*MinirelDB, error) {
	mi, err := NewMinirelInstance(cfg)
	if err != nil {
		return nil, err
	}
	return newMinirelDB(mi), nil
}

// NewMinirelDBOnFileSystem opens dir on fs. tests pass a virtual file system
// and reopen it to simulate a restart.
func NewMinirelDBOnFileSystem(fs disk.FileSystem, dir string) (*MinirelDB, error) {
	mi, err := NewMinirelInstanceOnFileSystem(fs, dir, common.LogFileName)
	if err != nil {
		return nil, err
	}
	return newMinirelDB(mi), nil
}

func newMinirelDB(mi *MinirelInstance) *MinirelDB {
	return &MinirelDB{mi, make(map[string]*access.PageStore), new(deadlock.Mutex), false}
}

func (mdb *MinirelDB) GetInstance() *MinirelInstance {
	return mdb.mi_
}

func (mdb *MinirelDB) GetRecoveryReport() *recovery.RecoveryReport {
	return mdb.mi_.GetRecoveryReport()
}

// CreateTable creates the heap file of a new table. creation is not logged.
// a dropped table whose name appears in INSERT/DELETE log records cannot be
// created again, since the log is never truncated.
func (mdb *MinirelDB) CreateTable(table_name string, fields []page.FieldDef) (*access.PageStore, error) {
	mdb.mutex.Lock()
	defer mdb.mutex.Unlock()
	if mdb.closed {
		return nil, ErrShutdown
	}
	if err := access.ValidateTableName(table_name); err != nil {
		return nil, err
	}
	if _, ok := mdb.tables_[table_name]; ok || mdb.mi_.fs.Exists(access.TableFileName(mdb.mi_.dir, table_name)) {
		return nil, errors.Validation(errors.Wrapf(ErrTableExists, "%s", table_name))
	}
	// recovery would replay the records of a dropped table into the new file
	if mdb.mi_.log_manager.HasTableRecords(table_name) {
		return nil, errors.Validation(errors.Wrapf(ErrTableNameInLog, "%s", table_name))
	}
	if len(fields) == 0 {
		return nil, errors.Validation(errors.Wrapf(access.ErrNoFieldDefinitions, "table %s", table_name))
	}
	ps, err := access.NewPageStore(mdb.mi_.fs, mdb.mi_.dir, table_name, fields, mdb.mi_.log_manager)
	if err != nil {
		return nil, err
	}
	mdb.tables_[table_name] = ps
	return ps, nil
}

// OpenTable returns the open store of an existing table
func (mdb *MinirelDB) OpenTable(table_name string) (*access.PageStore, error) {
	mdb.mutex.Lock()
	defer mdb.mutex.Unlock()
	if mdb.closed {
		return nil, ErrShutdown
	}
	if ps, ok := mdb.tables_[table_name]; ok {
		return ps, nil
	}
	if err := access.ValidateTableName(table_name); err != nil {
		return nil, err
	}
	if !mdb.mi_.fs.Exists(access.TableFileName(mdb.mi_.dir, table_name)) {
		return nil, errors.Validation(errors.Wrapf(access.ErrTableNotFound, "%s", table_name))
	}
	ps, err := access.NewPageStore(mdb.mi_.fs, mdb.mi_.dir, table_name, nil, mdb.mi_.log_manager)
	if err != nil {
		return nil, err
	}
	mdb.tables_[table_name] = ps
	return ps, nil
}

// DropTable removes the heap file. log records of the table stay in the log
// and are reported, not applied, by later recoveries.
func (mdb *MinirelDB) DropTable(table_name string) error {
	ps, err := mdb.OpenTable(table_name)
	if err != nil {
		return err
	}
	mdb.mutex.Lock()
	defer mdb.mutex.Unlock()
	delete(mdb.tables_, table_name)
	if err = ps.DeleteTableData(); err != nil {
		return err
	}
	common.ShPrintf(common.INFO, "dropped table %s\n", table_name)
	return nil
}

// TableNames lists the tables of the data directory in name order
func (mdb *MinirelDB) TableNames() ([]string, error) {
	files, err := mdb.mi_.fs.List(mdb.mi_.dir, common.TableFileSuffix)
	if err != nil {
		return nil, err
	}
	ret := make([]string, 0, len(files))
	for _, file := range files {
		ret = append(ret, strings.TrimSuffix(file, common.TableFileSuffix))
	}
	return ret, nil
}

func (mdb *MinirelDB) Begin() (types.TxnID, error) {
	return mdb.mi_.transaction_manager.Begin()
}

func (mdb *MinirelDB) Commit(txn_id types.TxnID) (bool, error) {
	return mdb.mi_.transaction_manager.Commit(txn_id)
}

func (mdb *MinirelDB) Abort(txn_id types.TxnID) (bool, error) {
	return mdb.mi_.transaction_manager.Abort(txn_id)
}

func (mdb *MinirelDB) NewSession() *Session {
	return &Session{db: mdb, txn_id: common.InvalidTxnID}
}

/*
 * Shutdown closes every table and the log. transactions still active
 * are left open in the log and rolled back by the next recovery.
 */
func (mdb *MinirelDB) Shutdown() error {
	mdb.mutex.Lock()
	defer mdb.mutex.Unlock()
	if mdb.closed {
		return nil
	}
	mdb.closed = true
	if active := mdb.mi_.transaction_manager.GetActiveTxns(); len(active) > 0 {
		common.ShPrintf(common.WARN, "shutdown with %d active transactions: %v\n", len(active), active)
	}
	var err error
	for name, ps := range mdb.tables_ {
		err = errors.CombineErrors(err, ps.Close())
		delete(mdb.tables_, name)
	}
	return errors.CombineErrors(err, mdb.mi_.Shutdown(false))
}

// CrashForTesting drops every handle without closing anything, the way a
// killed process would. only durable (synced) bytes survive, which on the
// virtual file system are all written bytes.
func (mdb *MinirelDB) CrashForTesting() {
	mdb.mutex.Lock()
	defer mdb.mutex.Unlock()
	mdb.closed = true
	mdb.tables_ = make(map[string]*access.PageStore)
}
