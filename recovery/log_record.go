package recovery

import (
	"encoding/binary"

	"github.com/minirel/MinirelDB/errors"
	"github.com/minirel/MinirelDB/types"
)

const HEADER_SIZE uint32 = 13

const ErrIncompleteLogRecord = errors.Error("log record is cut off")
const ErrCorruptLogRecord = errors.Error("log record is corrupt")
const ErrMalformedPayload = errors.Error("log record payload is malformed")

type LogRecordType uint8

/** The type of the log record. */
const (
	BEGIN LogRecordType = iota
	COMMIT
	ABORT
	INSERT
	DELETE
)

func (t LogRecordType) String() string {
	switch t {
	case BEGIN:
		return "BEGIN"
	case COMMIT:
		return "COMMIT"
	case ABORT:
		return "ABORT"
	case INSERT:
		return "INSERT"
	case DELETE:
		return "DELETE"
	}
	return "UNKNOWN"
}

/**
 * Every log record starts with a 13 byte header (big endian).
 *-----------------------------------------
 * | size (4) | txn id (8) | log type (1) |
 *-----------------------------------------
 * BEGIN, COMMIT and ABORT carry nothing else.
 * INSERT and DELETE carry
 *----------------------------------------------------------------------------------------
 * | HEADER | name len (4) | table name | block (4) | slot (4) | data len (4) | record data |
 *----------------------------------------------------------------------------------------
 * record data is the record content for INSERT and the comma joined
 * pre-image of the deleted tuple for DELETE.
 */
type LogRecord struct {
	// the length of log record(for serialization, in bytes)
	Size uint32
	// offset of the record in the log file. not serialized
	Lsn             types.LSN
	Txn_id          types.TxnID
	Log_record_type LogRecordType

	// INSERT and DELETE only
	Table_name  string
	Block_id    types.BlockID
	Slot_id     types.SlotID
	Record_data []byte
}

// constructor for Transaction type(BEGIN/COMMIT/ABORT)
func NewLogRecordTxn(txn_id types.TxnID, log_record_type LogRecordType) *LogRecord {
	return &LogRecord{Size: HEADER_SIZE, Lsn: types.LSN(-1), Txn_id: txn_id, Log_record_type: log_record_type}
}

// constructor for INSERT/DELETE type
func NewLogRecordInsertDelete(txn_id types.TxnID, log_record_type LogRecordType, table_name string, block_id types.BlockID, slot_id types.SlotID, record_data []byte) *LogRecord {
	ret := &LogRecord{
		Lsn:             types.LSN(-1),
		Txn_id:          txn_id,
		Log_record_type: log_record_type,
		Table_name:      table_name,
		Block_id:        block_id,
		Slot_id:         slot_id,
		Record_data:     record_data,
	}
	ret.Size = HEADER_SIZE + uint32(len(ret.payload()))
	return ret
}

func (log_record *LogRecord) GetLSN() types.LSN { return log_record.Lsn }
func (log_record *LogRecord) GetTxnId() types.TxnID { return log_record.Txn_id }
func (log_record *LogRecord) GetLogRecordType() LogRecordType { return log_record.Log_record_type }
func (log_record *LogRecord) IsDataRecord() bool { return log_record.Log_record_type == INSERT || log_record.Log_record_type == DELETE }

// EncodeInsertDeletePayload builds the payload of INSERT and DELETE records
func EncodeInsertDeletePayload(table_name string, block_id types.BlockID, slot_id types.SlotID, record_data []byte) []byte {
	buf := make([]byte, 16+len(table_name)+len(record_data))
	pos := 0
	binary.BigEndian.PutUint32(buf[pos:], uint32(len(table_name)))
	pos += 4
	pos += copy(buf[pos:], table_name)
	binary.BigEndian.PutUint32(buf[pos:], uint32(block_id))
	pos += 4
	binary.BigEndian.PutUint32(buf[pos:], uint32(slot_id))
	pos += 4
	binary.BigEndian.PutUint32(buf[pos:], uint32(len(record_data)))
	pos += 4
	copy(buf[pos:], record_data)
	return buf
}

func (log_record *LogRecord) payload() []byte {
	if !log_record.IsDataRecord() {
		return nil
	}
	return EncodeInsertDeletePayload(log_record.Table_name, log_record.Block_id, log_record.Slot_id, log_record.Record_data)
}

func (log_record *LogRecord) Serialize() []byte {
	payload := log_record.payload()
	buf := make([]byte, int(HEADER_SIZE)+len(payload))
	binary.BigEndian.PutUint32(buf[0:], uint32(len(buf)))
	binary.BigEndian.PutUint64(buf[4:], uint64(log_record.Txn_id))
	buf[12] = byte(log_record.Log_record_type)
	copy(buf[HEADER_SIZE:], payload)
	return buf
}

/*
 * deserialize a log record from data
 * ErrIncompleteLogRecord means data ends in the middle of the record,
 * ErrCorruptLogRecord means the header can not be trusted.
 * in both cases no later record can be located.
 */
func DeserializeLogRecord(data []byte) (*LogRecord, error) {
	if len(data) < int(HEADER_SIZE) {
		return nil, ErrIncompleteLogRecord
	}
	log_record := new(LogRecord)
	log_record.Size = binary.BigEndian.Uint32(data[0:])
	log_record.Txn_id = types.TxnID(binary.BigEndian.Uint64(data[4:]))
	log_record.Log_record_type = LogRecordType(data[12])

	if log_record.Size < HEADER_SIZE {
		return nil, errors.Wrapf(ErrCorruptLogRecord, "size %d is smaller than the header", log_record.Size)
	}
	if uint64(len(data)) < uint64(log_record.Size) {
		return nil, ErrIncompleteLogRecord
	}
	return log_record, log_record.decodePayload(data[HEADER_SIZE:log_record.Size])
}

// decodePayload fills the INSERT/DELETE fields. a failure here leaves the
// framing intact, so a scan can step over the record.
func (log_record *LogRecord) decodePayload(payload []byte) error {
	switch log_record.Log_record_type {
	case BEGIN, COMMIT, ABORT:
		return nil
	case INSERT, DELETE:
	default:
		return errors.Wrapf(ErrMalformedPayload, "unknown log record type %d", log_record.Log_record_type)
	}

	if len(payload) < 4 {
		return errors.Wrap(ErrMalformedPayload, "missing table name length")
	}
	pos := 0
	nameLen := int(binary.BigEndian.Uint32(payload[pos:]))
	pos += 4
	if nameLen < 0 || len(payload) < pos+nameLen+12 {
		return errors.Wrapf(ErrMalformedPayload, "table name length %d", nameLen)
	}
	log_record.Table_name = string(payload[pos : pos+nameLen])
	pos += nameLen
	log_record.Block_id = types.BlockID(binary.BigEndian.Uint32(payload[pos:]))
	pos += 4
	log_record.Slot_id = types.SlotID(binary.BigEndian.Uint32(payload[pos:]))
	pos += 4
	dataLen := int(binary.BigEndian.Uint32(payload[pos:]))
	pos += 4
	if dataLen < 0 || len(payload) != pos+dataLen {
		return errors.Wrapf(ErrMalformedPayload, "record data length %d, %d bytes left", dataLen, len(payload)-pos)
	}
	log_record.Record_data = append([]byte(nil), payload[pos:pos+dataLen]...)
	return nil
}

// IterateLogRecords calls fn for every complete record in data in log order.
// records whose payload is malformed are passed to onMalformed and skipped.
// it returns the offset just past the last complete record.
func IterateLogRecords(data []byte, fn func(log_record *LogRecord) error, onMalformed func(offset int64, err error)) (int64, error) {
	offset := int64(0)
	for offset < int64(len(data)) {
		log_record, err := DeserializeLogRecord(data[offset:])
		if log_record == nil {
			// torn tail or garbage header: nothing after this point is usable
			return offset, nil
		}
		log_record.Lsn = types.LSN(offset)
		if err != nil {
			if onMalformed != nil {
				onMalformed(offset, err)
			}
		} else if err = fn(log_record); err != nil {
			return offset, err
		}
		offset += int64(log_record.Size)
	}
	return offset, nil
}
