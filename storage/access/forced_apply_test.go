package access

import (
	"bytes"
	"testing"

	"github.com/minirel/MinirelDB/common"
	"github.com/minirel/MinirelDB/errors"
	"github.com/minirel/MinirelDB/recovery"
	"github.com/minirel/MinirelDB/storage/disk"
	"github.com/minirel/MinirelDB/storage/page"
	"github.com/minirel/MinirelDB/storage/tuple"
	testingpkg "github.com/minirel/MinirelDB/testing/testing_assert"
	"github.com/minirel/MinirelDB/types"
)

const testLog = "/db/transaction.log"

func openForced(t *testing.T, fs disk.FileSystem, table_name string) *forcedStore {
	applier, err := NewRecoveryOpener(fs, testDir)(table_name)
	testingpkg.Ok(t, err)
	return applier.(*forcedStore)
}

func heapBytes(t *testing.T, fs disk.FileSystem, table_name string) []byte {
	file, err := fs.OpenFile(TableFileName(testDir, table_name))
	testingpkg.Ok(t, err)
	defer file.Close()
	size, err := file.Size()
	testingpkg.Ok(t, err)
	buf := make([]byte, size)
	testingpkg.Ok(t, disk.ReadFull(file, buf, 0))
	return buf
}

func reload(t *testing.T, fs disk.FileSystem, table_name string) [][]string {
	ps, err := NewPageStore(fs, testDir, table_name, nil, nil)
	testingpkg.Ok(t, err)
	defer ps.Close()
	return liveStrings(ps.GetRecord())
}

func TestRecoveryOpenerNeedsHeapFile(t *testing.T) {
	fs := disk.NewVirtualFileSystem()
	_, err := NewRecoveryOpener(fs, testDir)("users")
	testingpkg.Assert(t, errors.Is(err, ErrTableNotFound), "expected ErrTableNotFound, got %v", err)
	testingpkg.AssertFalse(t, fs.Exists(TableFileName(testDir, "users")), "opener must not create heap files")
}

func TestForceInsertAllocatesBlocks(t *testing.T) {
	fs := disk.NewVirtualFileSystem()
	newUsers(t, fs, nil).Close()

	fstore := openForced(t, fs, "users")
	testingpkg.Ok(t, fstore.ForceInsertAt(2, 0, []byte("     alice  30")))
	testingpkg.Equals(t, int32(2), fstore.GetDataBlockCount())

	err := fstore.ForceInsertAt(1, 0, []byte("short"))
	testingpkg.Assert(t, errors.Is(err, tuple.ErrContentSize), "expected a content size error, got %v", err)
	err = fstore.ForceInsertAt(0, 0, []byte("     alice  30"))
	testingpkg.Assert(t, errors.Is(err, ErrInvalidSlot), "expected ErrInvalidSlot, got %v", err)
	testingpkg.Ok(t, fstore.Close())

	// block 1 was allocated through the counter only and holds no slots
	testingpkg.Equals(t, [][]string{{"alice", "30"}}, reload(t, fs, "users"))
}

func TestForceDeleteAndUndelete(t *testing.T) {
	fs := disk.NewVirtualFileSystem()
	ps := newUsers(t, fs, nil)
	_, err := ps.InsertRecord([]string{"alice", "30"}, common.InvalidTxnID)
	testingpkg.Ok(t, err)
	ps.Close()

	fstore := openForced(t, fs, "users")
	testingpkg.Ok(t, fstore.ForceDeleteAt(1, 0))
	testingpkg.Equals(t, [][]string{nil}, liveStrings(fstore.GetRecord()))
	// applying twice leaves the same state
	testingpkg.Ok(t, fstore.ForceDeleteAt(1, 0))
	testingpkg.Equals(t, [][]string{nil}, reload(t, fs, "users"))

	testingpkg.Ok(t, fstore.ForceUndeleteAt(1, 0, []byte("alice,30")))
	testingpkg.Equals(t, [][]string{{"alice", "30"}}, liveStrings(fstore.GetRecord()))
	testingpkg.Equals(t, page.NewRID(1, 0), *fstore.GetRecord()[0].GetRID())

	// an unusable pre-image falls back to the stored content
	testingpkg.Ok(t, fstore.ForceDeleteAt(1, 0))
	testingpkg.Ok(t, fstore.ForceUndeleteAt(1, 0, []byte("garbage")))
	testingpkg.Equals(t, [][]string{{"alice", "30"}}, reload(t, fs, "users"))

	err = fstore.ForceDeleteAt(3, 0)
	testingpkg.Assert(t, errors.Is(err, ErrInvalidSlot), "expected ErrInvalidSlot, got %v", err)
	err = fstore.ForceDeleteAt(1, 1)
	testingpkg.Assert(t, errors.Is(err, ErrInvalidSlot), "expected ErrInvalidSlot, got %v", err)
	testingpkg.Ok(t, fstore.Close())
}

// crashAfter runs a committed insert of alice, then an uncommitted insert of
// bob during which only budget heap writes reach the disk
func crashAfter(t *testing.T, budget int) disk.FileSystem {
	base := disk.NewVirtualFileSystem()
	crashing := disk.NewCrashingFileSystem(base, common.TableFileSuffix, 1<<30)
	log_manager, err := recovery.NewLogManager(crashing, testLog)
	testingpkg.Ok(t, err)
	transaction_manager := NewTransactionManager(log_manager)
	ps := newUsers(t, crashing, log_manager)

	txn_id, err := transaction_manager.Begin()
	testingpkg.Ok(t, err)
	_, err = ps.InsertRecord([]string{"alice", "30"}, txn_id)
	testingpkg.Ok(t, err)
	_, err = transaction_manager.Commit(txn_id)
	testingpkg.Ok(t, err)

	txn_id, err = transaction_manager.Begin()
	testingpkg.Ok(t, err)
	crashing.SetBudget(budget)
	_, err = ps.InsertRecord([]string{"bob", "25"}, txn_id)
	testingpkg.Assert(t, errors.Is(err, disk.ErrInjectedCrash), "expected ErrInjectedCrash, got %v", err)
	return base
}

func recoverDir(t *testing.T, fs disk.FileSystem) *recovery.RecoveryReport {
	log_manager, err := recovery.NewLogManager(fs, testLog)
	testingpkg.Ok(t, err)
	defer log_manager.Close()
	report, err := log_manager.Recover(NewRecoveryOpener(fs, testDir))
	testingpkg.Ok(t, err)
	return report
}

func TestRedoRepairsLostCommittedInsert(t *testing.T) {
	base := disk.NewVirtualFileSystem()
	crashing := disk.NewCrashingFileSystem(base, common.TableFileSuffix, 1<<30)
	log_manager, err := recovery.NewLogManager(crashing, testLog)
	testingpkg.Ok(t, err)
	transaction_manager := NewTransactionManager(log_manager)
	ps := newUsers(t, crashing, log_manager)

	txn_id, err := transaction_manager.Begin()
	testingpkg.Ok(t, err)
	// the INSERT record is synced, no heap write lands
	crashing.SetBudget(0)
	_, err = ps.InsertRecord([]string{"alice", "30"}, txn_id)
	testingpkg.Assert(t, errors.Is(err, disk.ErrInjectedCrash), "expected ErrInjectedCrash, got %v", err)
	ok, err := transaction_manager.Commit(txn_id)
	testingpkg.Ok(t, err)
	testingpkg.SimpleAssert(t, ok)
	testingpkg.Ok(t, log_manager.Close())
	testingpkg.Equals(t, [][]string{}, reload(t, base, "users"))

	report := recoverDir(t, base)
	testingpkg.Equals(t, []types.TxnID{txn_id}, report.CommittedTxns)
	testingpkg.Equals(t, 1, report.RedoCount)
	testingpkg.Equals(t, 0, len(report.UndoneTxns))
	testingpkg.Equals(t, 0, len(report.Errors))
	testingpkg.Equals(t, [][]string{{"alice", "30"}}, reload(t, base, "users"))
}

func TestRecoveryUndoesPartialInsert(t *testing.T) {
	// slot entry written, record bytes lost
	fs := crashAfter(t, 3)
	testingpkg.Equals(t, [][]string{{"alice", "30"}, nil}, reload(t, fs, "users"))

	report := recoverDir(t, fs)
	testingpkg.Equals(t, 1, len(report.CommittedTxns))
	testingpkg.Equals(t, 1, len(report.UndoneTxns))
	testingpkg.Equals(t, 1, report.RedoCount)
	testingpkg.Equals(t, 1, report.UndoCount)
	testingpkg.Equals(t, 0, len(report.Errors))
	testingpkg.Equals(t, [][]string{{"alice", "30"}}, reload(t, fs, "users"))

	digest := heapBytes(t, fs, "users")
	report = recoverDir(t, fs)
	testingpkg.Equals(t, 0, len(report.UndoneTxns))
	testingpkg.SimpleAssert(t, bytes.Equal(digest, heapBytes(t, fs, "users")))
}

func TestRecoveryReportsUnwrittenSlot(t *testing.T) {
	// counter and block header written, slot entry lost
	fs := crashAfter(t, 2)

	report := recoverDir(t, fs)
	testingpkg.Equals(t, 1, len(report.UndoneTxns))
	testingpkg.Equals(t, 1, len(report.Errors))
	testingpkg.Assert(t, errors.Is(report.Errors[0], ErrInvalidSlot), "expected ErrInvalidSlot, got %v", report.Errors[0])
	testingpkg.Equals(t, [][]string{{"alice", "30"}}, reload(t, fs, "users"))
}

func TestRecoveryRestoresUncommittedDelete(t *testing.T) {
	fs := disk.NewVirtualFileSystem()
	log_manager, err := recovery.NewLogManager(fs, testLog)
	testingpkg.Ok(t, err)
	transaction_manager := NewTransactionManager(log_manager)
	ps := newUsers(t, fs, log_manager)

	txn_id, err := transaction_manager.Begin()
	testingpkg.Ok(t, err)
	_, err = ps.InsertRecord([]string{"alice", "30"}, txn_id)
	testingpkg.Ok(t, err)
	_, err = ps.InsertRecord([]string{"bob", "25"}, txn_id)
	testingpkg.Ok(t, err)
	_, err = transaction_manager.Commit(txn_id)
	testingpkg.Ok(t, err)

	txn_id, err = transaction_manager.Begin()
	testingpkg.Ok(t, err)
	ok, err := ps.DeleteRecord("name:alice", txn_id)
	testingpkg.Ok(t, err)
	testingpkg.SimpleAssert(t, ok)
	testingpkg.Equals(t, [][]string{nil, {"bob", "25"}}, reload(t, fs, "users"))

	// the process dies before COMMIT
	report := recoverDir(t, fs)
	testingpkg.Equals(t, []types.TxnID{txn_id}, report.UndoneTxns)
	testingpkg.Equals(t, 2, report.RedoCount)
	testingpkg.Equals(t, [][]string{{"alice", "30"}, {"bob", "25"}}, reload(t, fs, "users"))
}

func TestRecoverySkipsDroppedTable(t *testing.T) {
	fs := disk.NewVirtualFileSystem()
	log_manager, err := recovery.NewLogManager(fs, testLog)
	testingpkg.Ok(t, err)
	transaction_manager := NewTransactionManager(log_manager)
	ps := newUsers(t, fs, log_manager)

	txn_id, err := transaction_manager.Begin()
	testingpkg.Ok(t, err)
	_, err = ps.InsertRecord([]string{"alice", "30"}, txn_id)
	testingpkg.Ok(t, err)
	_, err = transaction_manager.Commit(txn_id)
	testingpkg.Ok(t, err)
	testingpkg.Ok(t, ps.DeleteTableData())

	report := recoverDir(t, fs)
	testingpkg.Equals(t, 0, report.RedoCount)
	testingpkg.Equals(t, 1, len(report.Errors))
	testingpkg.Assert(t, errors.Is(report.Errors[0], ErrTableNotFound), "expected ErrTableNotFound, got %v", report.Errors[0])
	testingpkg.AssertFalse(t, fs.Exists(TableFileName(testDir, "users")), "recovery must not recreate dropped tables")
}
