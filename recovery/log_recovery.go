package recovery

import (
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/golang-collections/collections/stack"
	"github.com/minirel/MinirelDB/common"
	"github.com/minirel/MinirelDB/errors"
	"github.com/minirel/MinirelDB/types"
	"golang.org/x/exp/slices"
)

// ForcedApplier re-applies logged operations on one table. implementations
// skip validation and logging; only recovery holds one.
type ForcedApplier interface {
	ForceDeleteAt(block_id types.BlockID, slot_id types.SlotID) error
	// ForceUndeleteAt clears the delete flag and restores the in memory
	// tuple from pre_image, the comma joined form logged by DELETE
	ForceUndeleteAt(block_id types.BlockID, slot_id types.SlotID, pre_image []byte) error
	ForceInsertAt(block_id types.BlockID, slot_id types.SlotID, content []byte) error
	Close() error
}

// ApplierOpener opens the forced applier of a table by name
type ApplierOpener func(table_name string) (ForcedApplier, error)

type RecoveryReport struct {
	// committed transactions whose operations were redone
	CommittedTxns []types.TxnID
	// transactions active at the crash; undone and closed with an ABORT record
	UndoneTxns     []types.TxnID
	RedoCount      int
	UndoCount      int
	GreatestTxnID  types.TxnID
	ScannedRecords int
	// bytes of an incomplete trailing record dropped from the log
	TruncatedBytes int64
	// forced apply failures. the affected slots are left as they were
	Errors []error
}

/**
 * Read log file, analyse, redo and undo.
 * redo and undo are blind: heap blocks carry no LSN, so replaying an
 * operation always overwrites the slot it names.
 */
type LogRecovery struct {
	log_manager *LogManager
	opener      ApplierOpener
	appliers    map[string]ForcedApplier
	open_errors map[string]error

	active_txn    mapset.Set[types.TxnID]
	committed_txn mapset.Set[types.TxnID]

	log_data  []byte
	valid_end int64
	report    *RecoveryReport
}

func NewLogRecovery(log_manager *LogManager, opener ApplierOpener) *LogRecovery {
	return &LogRecovery{
		log_manager:   log_manager,
		opener:        opener,
		appliers:      make(map[string]ForcedApplier),
		open_errors:   make(map[string]error),
		active_txn:    mapset.NewSet[types.TxnID](),
		committed_txn: mapset.NewSet[types.TxnID](),
		report:        &RecoveryReport{},
	}
}

func (log_recovery *LogRecovery) Recover() (*RecoveryReport, error) {
	data, err := log_recovery.log_manager.ReadLog()
	if err != nil {
		return nil, err
	}
	log_recovery.log_data = data
	defer log_recovery.closeAppliers()

	if err = log_recovery.Analysis(); err != nil {
		return nil, err
	}
	if err = log_recovery.Redo(); err != nil {
		return nil, err
	}
	if err = log_recovery.Undo(); err != nil {
		return nil, err
	}

	if torn := int64(len(log_recovery.log_data)) - log_recovery.valid_end; torn > 0 {
		common.ShPrintf(common.WARN, "recovery: dropping %d bytes of an incomplete log record at offset %d\n", torn, log_recovery.valid_end)
		if err = log_recovery.log_manager.Truncate(log_recovery.valid_end); err != nil {
			return nil, err
		}
		log_recovery.report.TruncatedBytes = torn
	}

	if err = log_recovery.abortActiveTxns(); err != nil {
		return nil, err
	}
	common.ShPrintf(common.RECOVERY, "recovery: %d records, redo %d, undo %d, %d txns aborted, %d errors\n",
		log_recovery.report.ScannedRecords, log_recovery.report.RedoCount, log_recovery.report.UndoCount,
		len(log_recovery.report.UndoneTxns), len(log_recovery.report.Errors))
	return log_recovery.report, nil
}

func (log_recovery *LogRecovery) scan(fn func(log_record *LogRecord) error) error {
	valid_end, err := IterateLogRecords(log_recovery.log_data, fn, nil)
	log_recovery.valid_end = valid_end
	return err
}

// Analysis builds the active and committed transaction sets
func (log_recovery *LogRecovery) Analysis() error {
	valid_end, err := IterateLogRecords(log_recovery.log_data, func(log_record *LogRecord) error {
		log_recovery.report.ScannedRecords++
		if log_record.Txn_id > log_recovery.report.GreatestTxnID {
			log_recovery.report.GreatestTxnID = log_record.Txn_id
		}
		switch log_record.Log_record_type {
		case BEGIN:
			log_recovery.active_txn.Add(log_record.Txn_id)
		case COMMIT:
			// a COMMIT without BEGIN still marks the transaction committed
			log_recovery.active_txn.Remove(log_record.Txn_id)
			log_recovery.committed_txn.Add(log_record.Txn_id)
		case ABORT:
			log_recovery.active_txn.Remove(log_record.Txn_id)
		}
		return nil
	}, func(offset int64, err error) {
		log_recovery.reportError(errors.Wrapf(err, "log record at offset %d skipped", offset))
	})
	log_recovery.valid_end = valid_end
	if err != nil {
		return err
	}

	log_recovery.report.CommittedTxns = sortedTxnIDs(log_recovery.committed_txn)
	common.ShPrintf(common.RECOVERY, "recovery analysis: committed=%v active=%v\n", log_recovery.report.CommittedTxns, sortedTxnIDs(log_recovery.active_txn))
	return nil
}

// Redo re-applies INSERT and DELETE records of committed transactions in log order
func (log_recovery *LogRecovery) Redo() error {
	return log_recovery.scan(func(log_record *LogRecord) error {
		if !log_record.IsDataRecord() || !log_recovery.committed_txn.Contains(log_record.Txn_id) {
			return nil
		}
		applier := log_recovery.applierFor(log_record)
		if applier == nil {
			return nil
		}
		var err error
		if log_record.Log_record_type == INSERT {
			err = applier.ForceInsertAt(log_record.Block_id, log_record.Slot_id, log_record.Record_data)
		} else {
			err = applier.ForceDeleteAt(log_record.Block_id, log_record.Slot_id)
		}
		if err != nil {
			log_recovery.reportError(errors.Wrapf(err, "redo %s txn=%d %s(%d,%d)", log_record.Log_record_type, log_record.Txn_id, log_record.Table_name, log_record.Block_id, log_record.Slot_id))
			return nil
		}
		log_recovery.report.RedoCount++
		common.RecoveryRedoTotal.Inc()
		return nil
	})
}

// Undo reverts INSERT and DELETE records of active transactions, most recent first
func (log_recovery *LogRecovery) Undo() error {
	undo_records := stack.New()
	err := log_recovery.scan(func(log_record *LogRecord) error {
		if log_record.IsDataRecord() && log_recovery.active_txn.Contains(log_record.Txn_id) {
			undo_records.Push(log_record)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for undo_records.Len() > 0 {
		log_record := undo_records.Pop().(*LogRecord)
		applier := log_recovery.applierFor(log_record)
		if applier == nil {
			continue
		}
		if log_record.Log_record_type == INSERT {
			err = applier.ForceDeleteAt(log_record.Block_id, log_record.Slot_id)
		} else {
			err = applier.ForceUndeleteAt(log_record.Block_id, log_record.Slot_id, log_record.Record_data)
		}
		if err != nil {
			log_recovery.reportError(errors.Wrapf(err, "undo %s txn=%d %s(%d,%d)", log_record.Log_record_type, log_record.Txn_id, log_record.Table_name, log_record.Block_id, log_record.Slot_id))
			continue
		}
		log_recovery.report.UndoCount++
		common.RecoveryUndoTotal.Inc()
	}
	return nil
}

func (log_recovery *LogRecovery) abortActiveTxns() error {
	undone := sortedTxnIDs(log_recovery.active_txn)
	for _, txn_id := range undone {
		if _, err := log_recovery.log_manager.AppendLogRecord(NewLogRecordTxn(txn_id, ABORT)); err != nil {
			return err
		}
		log_recovery.active_txn.Remove(txn_id)
	}
	log_recovery.report.UndoneTxns = undone
	return nil
}

func (log_recovery *LogRecovery) applierFor(log_record *LogRecord) ForcedApplier {
	name := log_record.Table_name
	if applier, ok := log_recovery.appliers[name]; ok {
		return applier
	}
	if err, failed := log_recovery.open_errors[name]; failed {
		log_recovery.reportError(errors.Wrapf(err, "%s txn=%d %s(%d,%d) not applied", log_record.Log_record_type, log_record.Txn_id, name, log_record.Block_id, log_record.Slot_id))
		return nil
	}
	applier, err := log_recovery.opener(name)
	if err != nil {
		log_recovery.open_errors[name] = err
		log_recovery.reportError(errors.Wrapf(err, "open table %s for recovery", name))
		return nil
	}
	log_recovery.appliers[name] = applier
	return applier
}

func (log_recovery *LogRecovery) closeAppliers() {
	for name, applier := range log_recovery.appliers {
		if err := applier.Close(); err != nil {
			log_recovery.reportError(errors.Wrapf(err, "close table %s", name))
		}
	}
	log_recovery.appliers = make(map[string]ForcedApplier)
}

func (log_recovery *LogRecovery) reportError(err error) {
	common.ShPrintf(common.ERROR, "recovery: %v\n", err)
	common.RecoveryErrorsTotal.Inc()
	log_recovery.report.Errors = append(log_recovery.report.Errors, err)
}

func sortedTxnIDs(set mapset.Set[types.TxnID]) []types.TxnID {
	ret := set.ToSlice()
	slices.Sort(ret)
	return ret
}
