package access

import (
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/sasha-s/go-deadlock"
	"golang.org/x/exp/slices"

	"github.com/minirel/MinirelDB/common"
	"github.com/minirel/MinirelDB/recovery"
	"github.com/minirel/MinirelDB/types"
)

/**
 * TransactionManager hands out transaction ids and writes the BEGIN, COMMIT
 * and ABORT records. it does not isolate transactions from each other and
 * Abort leaves heap changes in place; only crash recovery undoes them.
 */
type TransactionManager struct {
	next_txn_id types.TxnID
	log_manager *recovery.LogManager
	active_txns mapset.Set[types.TxnID]
	// guards next_txn_id
	mutex *deadlock.Mutex
}

// NewTransactionManager seeds the id counter with the current unix time
func NewTransactionManager(log_manager *recovery.LogManager) *TransactionManager {
	return NewTransactionManagerWithSeed(log_manager, 0)
}

// NewTransactionManagerWithSeed seeds the id counter with the larger of the
// current unix time and greatest, the largest id found in the log, so ids
// never repeat across restarts.
func NewTransactionManagerWithSeed(log_manager *recovery.LogManager, greatest types.TxnID) *TransactionManager {
	seed := types.TxnID(time.Now().Unix())
	if greatest > seed {
		seed = greatest
	}
	return &TransactionManager{seed, log_manager, mapset.NewSet[types.TxnID](), new(deadlock.Mutex)}
}

func (transaction_manager *TransactionManager) Begin() (types.TxnID, error) {
	transaction_manager.mutex.Lock()
	transaction_manager.next_txn_id += 1
	txn_id := transaction_manager.next_txn_id
	transaction_manager.mutex.Unlock()

	transaction_manager.active_txns.Add(txn_id)
	if transaction_manager.log_manager != nil {
		if _, err := transaction_manager.log_manager.Log(txn_id, recovery.BEGIN, nil); err != nil {
			transaction_manager.active_txns.Remove(txn_id)
			return common.InvalidTxnID, err
		}
	}
	common.ShPrintf(common.DEBUG_INFO, "txn %d began\n", txn_id)
	return txn_id, nil
}

// Commit writes COMMIT for an active transaction. an unknown id only
// produces a warning and false.
func (transaction_manager *TransactionManager) Commit(txn_id types.TxnID) (bool, error) {
	return transaction_manager.finish(txn_id, recovery.COMMIT)
}

// Abort writes ABORT for an active transaction. heap changes made by it are
// not reverted.
func (transaction_manager *TransactionManager) Abort(txn_id types.TxnID) (bool, error) {
	return transaction_manager.finish(txn_id, recovery.ABORT)
}

func (transaction_manager *TransactionManager) finish(txn_id types.TxnID, log_record_type recovery.LogRecordType) (bool, error) {
	if !transaction_manager.active_txns.Contains(txn_id) {
		common.ShPrintf(common.WARN, "%s of txn %d ignored: not active\n", log_record_type, txn_id)
		return false, nil
	}
	if transaction_manager.log_manager != nil {
		if _, err := transaction_manager.log_manager.Log(txn_id, log_record_type, nil); err != nil {
			return false, err
		}
	}
	transaction_manager.active_txns.Remove(txn_id)
	common.ShPrintf(common.DEBUG_INFO, "txn %d finished with %s\n", txn_id, log_record_type)
	return true, nil
}

func (transaction_manager *TransactionManager) IsActive(txn_id types.TxnID) bool {
	return transaction_manager.active_txns.Contains(txn_id)
}

// GetActiveTxns returns the active ids in ascending order
func (transaction_manager *TransactionManager) GetActiveTxns() []types.TxnID {
	ret := transaction_manager.active_txns.ToSlice()
	slices.Sort(ret)
	return ret
}
