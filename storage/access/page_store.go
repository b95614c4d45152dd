package access

import (
	"encoding/binary"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	pair "github.com/notEpsilon/go-pair"
	"github.com/olekukonko/tablewriter"

	"github.com/minirel/MinirelDB/common"
	"github.com/minirel/MinirelDB/errors"
	"github.com/minirel/MinirelDB/recovery"
	"github.com/minirel/MinirelDB/storage/disk"
	"github.com/minirel/MinirelDB/storage/page"
	"github.com/minirel/MinirelDB/storage/tuple"
	"github.com/minirel/MinirelDB/types"
)

const ErrNoFieldDefinitions = errors.Error("table file is empty and no field definitions were given")
const ErrInvalidTableName = errors.Error("invalid table name")
const ErrMalformedDeleteArg = errors.Error("delete argument must look like field:keyword")
const ErrUnknownField = errors.Error("no such field")
const ErrCorruptBlock = errors.Error("data block is corrupt")
const ErrInvalidSlot = errors.Error("slot does not hold a record")
const ErrTableNotFound = errors.Error("table does not exist")
const ErrClosed = errors.Error("page store is closed")

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// TableFileName returns the heap file path of table inside dir
func TableFileName(dir string, table_name string) string {
	return filepath.Join(dir, table_name+common.TableFileSuffix)
}

func ValidateTableName(table_name string) error {
	if !tableNamePattern.MatchString(table_name) {
		return errors.Validation(errors.Wrapf(ErrInvalidTableName, "%q", table_name))
	}
	return nil
}

/**
 * PageStore owns the heap file of one table and keeps every record of it
 * in memory, in slot order. deleted records stay in the list as nil so
 * list indexes line up with positions.
 */
type PageStore struct {
	fs          disk.FileSystem
	table_name  string
	file_name   string
	file        disk.File
	catalog     *page.CatalogBlock
	log_manager *recovery.LogManager

	records        []*tuple.Tuple
	deleted        []bool
	positions      []page.RID
	position_index map[page.RID]int

	latch common.ReaderWriterLatch
}

// NewPageStore opens the heap file of table_name in dir, creating it with
// fields when it is empty. fields are ignored for a non empty file.
// log_manager may be nil, in which case nothing is logged.
func NewPageStore(fs disk.FileSystem, dir string, table_name string, fields []page.FieldDef, log_manager *recovery.LogManager) (*PageStore, error) {
	if err := ValidateTableName(table_name); err != nil {
		return nil, err
	}
	file_name := TableFileName(dir, table_name)
	existed := fs.Exists(file_name)
	file, err := fs.OpenFile(file_name)
	if err != nil {
		return nil, err
	}
	size, err := file.Size()
	if err != nil {
		file.Close()
		return nil, err
	}

	ps := &PageStore{
		fs:             fs,
		table_name:     table_name,
		file_name:      file_name,
		file:           file,
		log_manager:    log_manager,
		records:        make([]*tuple.Tuple, 0),
		deleted:        make([]bool, 0),
		positions:      make([]page.RID, 0),
		position_index: make(map[page.RID]int),
		latch:          common.NewRWLatch(),
	}

	if size == 0 {
		if err = ps.create(fields); err != nil {
			file.Close()
			if !existed {
				fs.Remove(file_name)
			}
			return nil, err
		}
		common.ShPrintf(common.INFO, "created table %s with %d fields\n", table_name, len(fields))
		return ps, nil
	}

	if err = ps.load(); err != nil {
		file.Close()
		return nil, errors.Wrapf(err, "load table %s", table_name)
	}
	return ps, nil
}

func (ps *PageStore) create(fields []page.FieldDef) error {
	if len(fields) == 0 {
		return errors.Validation(errors.Wrapf(ErrNoFieldDefinitions, "table %s", ps.table_name))
	}
	catalog, err := page.NewCatalogBlock(fields)
	if err != nil {
		return err
	}
	if err = ps.writeAt(catalog.Serialize(), 0, "catalog"); err != nil {
		return err
	}
	ps.catalog = catalog
	return nil
}

func (ps *PageStore) load() error {
	buf := make([]byte, common.BlockSize)
	if err := disk.ReadFull(ps.file, buf, 0); err != nil {
		return errors.Wrap(err, "read catalog block")
	}
	catalog, err := page.NewCatalogBlockFromBytes(buf)
	if err != nil {
		return err
	}
	ps.catalog = catalog

	capacity := catalog.Capacity()
	for block_id := types.BlockID(1); block_id <= types.BlockID(catalog.DataBlockCount); block_id++ {
		block, err := ps.readBlock(block_id)
		if err != nil {
			return err
		}
		count := block.GetRecordCount()
		if count < 0 || int(count) > capacity {
			return errors.Wrapf(ErrCorruptBlock, "block %d claims %d records, capacity is %d", block_id, count, capacity)
		}
		for slot_id := types.SlotID(0); slot_id < types.SlotID(count); slot_id++ {
			rid := page.NewRID(block_id, slot_id)
			record := ps.decodeSlot(block, &rid)
			ps.appendRecord(rid, record)
		}
	}
	common.ShPrintf(common.DEBUG_INFO, "loaded table %s: %d data blocks, %d slots\n", ps.table_name, catalog.DataBlockCount, len(ps.records))
	return nil
}

// decodeSlot returns the live tuple stored at rid, or nil for a deleted or
// unreadable slot
func (ps *PageStore) decodeSlot(block *page.DataBlock, rid *page.RID) *tuple.Tuple {
	offset := block.GetSlotOffset(rid.GetSlotNum())
	if !page.IsValidRecordOffset(offset, ps.catalog.RecordSize(), ps.catalog.Capacity()) {
		common.ShPrintf(common.WARN, "table %s: slot %v has invalid offset %d, treated as deleted\n", ps.table_name, rid, offset)
		return nil
	}
	header := block.GetRecordHeader(offset)
	if header.SchemaPointer != page.SchemaPointer || int(header.ContentLength) != ps.catalog.ContentSize() {
		common.ShPrintf(common.WARN, "table %s: slot %v has a corrupt header, treated as deleted\n", ps.table_name, rid)
		return nil
	}
	if header.IsDeleted() {
		return nil
	}
	record, err := tuple.NewTupleFromContent(rid, block.GetRecordContent(offset, ps.catalog.ContentSize()), ps.catalog.Fields)
	if err != nil {
		common.ShPrintf(common.WARN, "table %s: slot %v can not be decoded (%v), treated as deleted\n", ps.table_name, rid, err)
		return nil
	}
	return record
}

func (ps *PageStore) appendRecord(rid page.RID, record *tuple.Tuple) {
	ps.position_index[rid] = len(ps.positions)
	ps.positions = append(ps.positions, rid)
	ps.records = append(ps.records, record)
	ps.deleted = append(ps.deleted, record == nil)
}

func (ps *PageStore) readBlock(block_id types.BlockID) (*page.DataBlock, error) {
	buf := make([]byte, common.BlockSize)
	if err := disk.ReadFull(ps.file, buf, int64(block_id)*common.BlockSize); err != nil {
		return nil, errors.Wrapf(err, "read block %d of %s", block_id, ps.table_name)
	}
	return page.NewDataBlockFromBytes(buf), nil
}

// writeAt writes data at offset and syncs the file
func (ps *PageStore) writeAt(data []byte, offset int64, kind string) error {
	if ps.file == nil {
		return ErrClosed
	}
	if _, err := ps.file.WriteAt(data, offset); err != nil {
		return errors.Wrapf(err, "write %s of %s at %d", kind, ps.table_name, offset)
	}
	if err := ps.file.Sync(); err != nil {
		return errors.Wrapf(err, "sync %s", ps.file_name)
	}
	common.HeapWritesTotal.WithLabelValues(kind).Inc()
	return nil
}

// nextPosition returns where the next inserted record goes
func (ps *PageStore) nextPosition() (types.BlockID, types.SlotID) {
	if len(ps.positions) == 0 {
		return 1, 0
	}
	last := ps.positions[len(ps.positions)-1]
	if int(last.GetSlotNum())+1 >= ps.catalog.Capacity() {
		return last.GetBlockId() + 1, 0
	}
	return last.GetBlockId(), last.GetSlotNum() + 1
}

/*
 * InsertRecord validates values against the field list and appends them as
 * a new record. validation failures return false and a validation error
 * without touching the log or the heap file.
 * when txn_id is valid and a log manager is attached, an INSERT record is
 * synced before the first heap write.
 */
func (ps *PageStore) InsertRecord(values []string, txn_id types.TxnID) (bool, error) {
	content, _, err := tuple.EncodeContent(values, ps.catalog.Fields)
	if err != nil {
		return false, err
	}

	ps.latch.WLock()
	defer ps.latch.WUnlock()
	if ps.file == nil {
		return false, ErrClosed
	}

	block_id, slot_id := ps.nextPosition()
	if ps.log_manager != nil && txn_id != common.InvalidTxnID {
		payload := recovery.EncodeInsertDeletePayload(ps.table_name, block_id, slot_id, content)
		if _, err = ps.log_manager.Log(txn_id, recovery.INSERT, payload); err != nil {
			return false, err
		}
	}

	data_block_count := ps.catalog.DataBlockCount
	if int32(block_id) > data_block_count {
		data_block_count = int32(block_id)
	}
	counter := &page.CatalogBlock{DataBlockCount: data_block_count}
	if err = ps.writeAt(counter.SerializeCounter(), 0, "catalog"); err != nil {
		return false, err
	}
	ps.catalog.DataBlockCount = data_block_count

	block_base := int64(block_id) * common.BlockSize
	block_header := make([]byte, page.DataBlockHeaderSize)
	binary.BigEndian.PutUint32(block_header[0:], uint32(block_id))
	binary.BigEndian.PutUint32(block_header[page.OffsetRecordCount:], uint32(slot_id)+1)
	if err = ps.writeAt(block_header, block_base, "block_header"); err != nil {
		return false, err
	}

	offset := page.RecordOffset(slot_id, ps.catalog.RecordSize())
	slot_entry := make([]byte, 4)
	binary.BigEndian.PutUint32(slot_entry, uint32(offset))
	if err = ps.writeAt(slot_entry, block_base+int64(page.SlotEntryOffset(slot_id)), "slot"); err != nil {
		return false, err
	}

	header := page.NewRecordHeader(len(content), time.Now().Format(common.TimestampLayout), false)
	record := append(header.Serialize(), content...)
	if err = ps.writeAt(record, block_base+int64(offset), "record"); err != nil {
		return false, err
	}

	rid := page.NewRID(block_id, slot_id)
	inserted, err := tuple.NewTupleFromContent(&rid, content, ps.catalog.Fields)
	if err != nil {
		return false, err
	}
	ps.appendRecord(rid, inserted)
	common.ShPrintf(common.RDB_OP_FUNC_CALL, "table %s: inserted %v at %v txn=%d\n", ps.table_name, inserted, rid, txn_id)
	return true, nil
}

// parseDeleteArg splits "field:keyword" at the first ':'
func parseDeleteArg(arg string) (*pair.Pair[string, string], error) {
	idx := strings.Index(arg, ":")
	if idx < 0 {
		return nil, errors.Validation(errors.Wrapf(ErrMalformedDeleteArg, "%q", arg))
	}
	field := strings.TrimSpace(arg[:idx])
	if field == "" {
		return nil, errors.Validation(errors.Wrapf(ErrMalformedDeleteArg, "%q", arg))
	}
	return &pair.Pair[string, string]{First: field, Second: arg[idx+1:]}, nil
}

/*
 * DeleteRecord soft deletes the first live record whose field equals the
 * keyword, given as "field:keyword". the keyword is converted to the type
 * of the field before comparing.
 * no match returns false with a nil error and changes nothing.
 */
func (ps *PageStore) DeleteRecord(arg string, txn_id types.TxnID) (bool, error) {
	field_keyword, err := parseDeleteArg(arg)
	if err != nil {
		return false, err
	}
	field_idx := ps.catalog.FieldIndex(field_keyword.First)
	if field_idx < 0 {
		return false, errors.Validation(errors.Wrapf(ErrUnknownField, "%s in table %s", field_keyword.First, ps.table_name))
	}
	keyword, err := types.ParseValue(ps.catalog.Fields[field_idx].Type.RuntimeType(), field_keyword.Second)
	if err != nil {
		return false, err
	}

	ps.latch.WLock()
	defer ps.latch.WUnlock()
	if ps.file == nil {
		return false, ErrClosed
	}

	for i, record := range ps.records {
		if ps.deleted[i] || record == nil || !record.GetValue(field_idx).CompareEquals(keyword) {
			continue
		}
		return true, ps.deleteAt(i, txn_id)
	}
	return false, nil
}

// DeleteRecordAt soft deletes the live record at rid
func (ps *PageStore) DeleteRecordAt(rid page.RID, txn_id types.TxnID) (bool, error) {
	ps.latch.WLock()
	defer ps.latch.WUnlock()
	if ps.file == nil {
		return false, ErrClosed
	}
	i, ok := ps.position_index[rid]
	if !ok || ps.deleted[i] {
		return false, nil
	}
	return true, ps.deleteAt(i, txn_id)
}

func (ps *PageStore) deleteAt(i int, txn_id types.TxnID) error {
	rid := ps.positions[i]
	block, err := ps.readBlock(rid.GetBlockId())
	if err != nil {
		return err
	}
	offset := block.GetSlotOffset(rid.GetSlotNum())
	if !page.IsValidRecordOffset(offset, ps.catalog.RecordSize(), ps.catalog.Capacity()) {
		return errors.Wrapf(ErrInvalidSlot, "%v offset %d", rid, offset)
	}

	if ps.log_manager != nil && txn_id != common.InvalidTxnID {
		pre_image := []byte(ps.records[i].String())
		payload := recovery.EncodeInsertDeletePayload(ps.table_name, rid.GetBlockId(), rid.GetSlotNum(), pre_image)
		if _, err = ps.log_manager.Log(txn_id, recovery.DELETE, payload); err != nil {
			return err
		}
	}

	flag := make([]byte, 4)
	binary.BigEndian.PutUint32(flag, 1)
	if err = ps.writeAt(flag, int64(rid.GetBlockId())*common.BlockSize+int64(offset)+page.OffsetDeleteFlag, "delete_flag"); err != nil {
		return err
	}
	common.ShPrintf(common.RDB_OP_FUNC_CALL, "table %s: deleted %v at %v txn=%d\n", ps.table_name, ps.records[i], rid, txn_id)
	ps.records[i] = nil
	ps.deleted[i] = true
	return nil
}

func (ps *PageStore) GetTableName() string {
	return ps.table_name
}

// GetFieldList returns a copy of the field definitions in catalog order
func (ps *PageStore) GetFieldList() []page.FieldDef {
	ret := make([]page.FieldDef, len(ps.catalog.Fields))
	copy(ret, ps.catalog.Fields)
	return ret
}

// GetRecord returns every slot in position order; deleted slots are nil
func (ps *PageStore) GetRecord() []*tuple.Tuple {
	ps.latch.RLock()
	defer ps.latch.RUnlock()
	ret := make([]*tuple.Tuple, len(ps.records))
	copy(ret, ps.records)
	return ret
}

// GetLiveRecords returns the records that are not deleted
func (ps *PageStore) GetLiveRecords() []*tuple.Tuple {
	ps.latch.RLock()
	defer ps.latch.RUnlock()
	ret := make([]*tuple.Tuple, 0, len(ps.records))
	for i, record := range ps.records {
		if !ps.deleted[i] && record != nil {
			ret = append(ret, record)
		}
	}
	return ret
}

func (ps *PageStore) GetDataBlockCount() int32 {
	ps.latch.RLock()
	defer ps.latch.RUnlock()
	return ps.catalog.DataBlockCount
}

// ShowTableData prints the live records as a table
func (ps *PageStore) ShowTableData(w io.Writer) {
	header := make([]string, 0, len(ps.catalog.Fields))
	for _, field := range ps.catalog.Fields {
		header = append(header, field.Name)
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	for it := NewPageStoreIterator(ps); !it.End(); it.Next() {
		table.Append(it.Current().Strings())
	}
	table.Render()
}

func (ps *PageStore) Close() error {
	ps.latch.WLock()
	defer ps.latch.WUnlock()
	if ps.file == nil {
		return nil
	}
	err := ps.file.Close()
	ps.file = nil
	return err
}

// DeleteTableData closes the store and removes its heap file. it is not logged.
func (ps *PageStore) DeleteTableData() error {
	if err := ps.Close(); err != nil {
		return err
	}
	return ps.fs.Remove(ps.file_name)
}
