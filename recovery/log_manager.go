package recovery

import (
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/sasha-s/go-deadlock"

	"github.com/minirel/MinirelDB/common"
	"github.com/minirel/MinirelDB/errors"
	"github.com/minirel/MinirelDB/storage/disk"
	"github.com/minirel/MinirelDB/types"
)

/**
 * LogManager owns the append only log file. every record is written and
 * synced before AppendLogRecord returns, so a caller may mutate heap
 * files right after logging.
 */
type LogManager struct {
	fs        disk.FileSystem
	file_name string
	log       disk.File
	// offset where the next record is appended
	offset     int64
	wlog_mutex *deadlock.Mutex
	// tables named by INSERT/DELETE records anywhere in the log
	logged_tables mapset.Set[string]
}

func NewLogManager(fs disk.FileSystem, file_name string) (*LogManager, error) {
	log, err := fs.OpenFile(file_name)
	if err != nil {
		return nil, errors.Wrap(err, "open log file")
	}
	size, err := log.Size()
	if err != nil {
		log.Close()
		return nil, err
	}
	log_manager := &LogManager{fs, file_name, log, size, new(deadlock.Mutex), mapset.NewSet[string]()}
	data, err := log_manager.ReadLog()
	if err != nil {
		log.Close()
		return nil, err
	}
	// a torn tail is left for recovery to report and cut
	IterateLogRecords(data, func(log_record *LogRecord) error {
		if log_record.IsDataRecord() {
			log_manager.logged_tables.Add(log_record.Table_name)
		}
		return nil
	}, nil)
	return log_manager, nil
}

// Log appends a record built from its parts. payload is empty for BEGIN,
// COMMIT and ABORT and an INSERT/DELETE payload otherwise.
func (log_manager *LogManager) Log(txn_id types.TxnID, log_record_type LogRecordType, payload []byte) (types.LSN, error) {
	log_record := NewLogRecordTxn(txn_id, log_record_type)
	if len(payload) > 0 {
		log_record.Size = HEADER_SIZE + uint32(len(payload))
		if err := log_record.decodePayload(payload); err != nil {
			return common.InvalidLSN, err
		}
	}
	return log_manager.AppendLogRecord(log_record)
}

/*
 * append a log record to the log file and sync it
 * @return: lsn (file offset) that is assigned to this log record
 */
func (log_manager *LogManager) AppendLogRecord(log_record *LogRecord) (types.LSN, error) {
	data := log_record.Serialize()

	log_manager.wlog_mutex.Lock()
	defer log_manager.wlog_mutex.Unlock()

	lsn := types.LSN(log_manager.offset)
	if _, err := log_manager.log.WriteAt(data, log_manager.offset); err != nil {
		return common.InvalidLSN, errors.Wrapf(err, "append %s record of txn %d", log_record.Log_record_type, log_record.Txn_id)
	}
	if err := log_manager.log.Sync(); err != nil {
		return common.InvalidLSN, errors.Wrap(err, "sync log file")
	}
	log_manager.offset += int64(len(data))
	log_record.Lsn = lsn
	if log_record.IsDataRecord() {
		log_manager.logged_tables.Add(log_record.Table_name)
	}
	log_record.Size = uint32(len(data))

	common.WALRecordsTotal.WithLabelValues(log_record.Log_record_type.String()).Inc()
	common.WALBytesTotal.Add(float64(len(data)))
	common.WALSyncsTotal.Inc()
	common.ShPrintf(common.DEBUG_INFO, "LogManager: appended %s txn=%d lsn=%d size=%d\n", log_record.Log_record_type, log_record.Txn_id, lsn, len(data))
	return lsn, nil
}

// ReadLog returns the whole content of the log file
func (log_manager *LogManager) ReadLog() ([]byte, error) {
	log_manager.wlog_mutex.Lock()
	defer log_manager.wlog_mutex.Unlock()

	data := make([]byte, log_manager.offset)
	if err := disk.ReadFull(log_manager.log, data, 0); err != nil {
		return nil, errors.Wrap(err, "read log file")
	}
	return data, nil
}

// GetLogRecords decodes every complete record. the second value is the
// offset just past the last complete record.
func (log_manager *LogManager) GetLogRecords() ([]*LogRecord, int64, error) {
	data, err := log_manager.ReadLog()
	if err != nil {
		return nil, 0, err
	}
	ret := make([]*LogRecord, 0)
	validEnd, err := IterateLogRecords(data, func(log_record *LogRecord) error {
		ret = append(ret, log_record)
		return nil
	}, nil)
	return ret, validEnd, err
}

func (log_manager *LogManager) GetLogFileSize() int64 {
	log_manager.wlog_mutex.Lock()
	defer log_manager.wlog_mutex.Unlock()
	return log_manager.offset
}

// Truncate cuts the log file at size. used to drop a torn tail left by a crash.
func (log_manager *LogManager) Truncate(size int64) error {
	log_manager.wlog_mutex.Lock()
	defer log_manager.wlog_mutex.Unlock()

	if err := log_manager.log.Truncate(size); err != nil {
		return errors.Wrap(err, "truncate log file")
	}
	if err := log_manager.log.Sync(); err != nil {
		return errors.Wrap(err, "sync log file")
	}
	log_manager.offset = size
	return nil
}

// Recover runs analysis, redo and undo over the whole log. it must finish
// before any new transaction starts.
func (log_manager *LogManager) Recover(opener ApplierOpener) (*RecoveryReport, error) {
	return NewLogRecovery(log_manager, opener).Recover()
}

// HasTableRecords reports whether the log holds INSERT or DELETE records of
// table_name. recovery replays them into whatever file carries that name.
func (log_manager *LogManager) HasTableRecords(table_name string) bool {
	return log_manager.logged_tables.Contains(table_name)
}

func (log_manager *LogManager) GetFileName() string {
	return log_manager.file_name
}

func (log_manager *LogManager) Close() error {
	log_manager.wlog_mutex.Lock()
	defer log_manager.wlog_mutex.Unlock()
	return log_manager.log.Close()
}
