package access

import (
	"github.com/minirel/MinirelDB/common"
	"github.com/minirel/MinirelDB/errors"
	"github.com/minirel/MinirelDB/recovery"
	"github.com/minirel/MinirelDB/storage/disk"
	"github.com/minirel/MinirelDB/storage/page"
	"github.com/minirel/MinirelDB/storage/tuple"
	"github.com/minirel/MinirelDB/types"
)

// forcedStore is the recovery view of a PageStore. its operations write
// whole blocks, skip validation and never log.
type forcedStore struct {
	*PageStore
}

var _ recovery.ForcedApplier = (*forcedStore)(nil)

// NewRecoveryOpener returns the opener recovery uses to reach the heap files
// in dir. a table whose heap file is gone (dropped) can not be opened.
func NewRecoveryOpener(fs disk.FileSystem, dir string) recovery.ApplierOpener {
	return func(table_name string) (recovery.ForcedApplier, error) {
		if err := ValidateTableName(table_name); err != nil {
			return nil, err
		}
		if !fs.Exists(TableFileName(dir, table_name)) {
			return nil, errors.Wrapf(ErrTableNotFound, "%s", table_name)
		}
		ps, err := NewPageStore(fs, dir, table_name, nil, nil)
		if err != nil {
			return nil, err
		}
		return &forcedStore{ps}, nil
	}
}

func (fstore *forcedStore) writeBlock(block *page.DataBlock, block_id types.BlockID) error {
	return fstore.writeAt(block.Data(), int64(block_id)*common.BlockSize, "forced_block")
}

// slotOffset looks up the record offset of slot through the slot array
func (fstore *forcedStore) slotOffset(block *page.DataBlock, block_id types.BlockID, slot_id types.SlotID) (int32, error) {
	if block_id < 1 || int32(block_id) > fstore.catalog.DataBlockCount {
		return 0, errors.Wrapf(ErrInvalidSlot, "block %d of %s is not allocated", block_id, fstore.table_name)
	}
	if int(slot_id) >= fstore.catalog.Capacity() {
		return 0, errors.Wrapf(ErrInvalidSlot, "slot %d exceeds capacity %d", slot_id, fstore.catalog.Capacity())
	}
	offset := block.GetSlotOffset(slot_id)
	if !page.IsValidRecordOffset(offset, fstore.catalog.RecordSize(), fstore.catalog.Capacity()) {
		return 0, errors.Wrapf(ErrInvalidSlot, "(%d,%d) offset %d", block_id, slot_id, offset)
	}
	return offset, nil
}

func (fstore *forcedStore) setDeleteFlag(block_id types.BlockID, slot_id types.SlotID, deleted bool, restored *tuple.Tuple) error {
	fstore.latch.WLock()
	defer fstore.latch.WUnlock()

	block, err := fstore.readBlock(block_id)
	if err != nil {
		return err
	}
	offset, err := fstore.slotOffset(block, block_id, slot_id)
	if err != nil {
		return err
	}
	rid := page.NewRID(block_id, slot_id)
	if !deleted && restored == nil {
		// pre-image unusable: the content bytes survive a soft delete
		restored, err = tuple.NewTupleFromContent(&rid, block.GetRecordContent(offset, fstore.catalog.ContentSize()), fstore.catalog.Fields)
		if err != nil {
			return err
		}
	}

	block.SetDeleteFlag(offset, deleted)
	if err = fstore.writeBlock(block, block_id); err != nil {
		return err
	}

	if i, ok := fstore.position_index[rid]; ok {
		fstore.deleted[i] = deleted
		if deleted {
			fstore.records[i] = nil
		} else {
			restored.SetRID(&rid)
			fstore.records[i] = restored
		}
	}
	return nil
}

func (fstore *forcedStore) ForceDeleteAt(block_id types.BlockID, slot_id types.SlotID) error {
	return fstore.setDeleteFlag(block_id, slot_id, true, nil)
}

func (fstore *forcedStore) ForceUndeleteAt(block_id types.BlockID, slot_id types.SlotID, pre_image []byte) error {
	restored, err := tuple.ParsePreImage(string(pre_image), fstore.catalog.Fields)
	if err != nil {
		common.ShPrintf(common.WARN, "table %s: pre-image %q of (%d,%d) unusable (%v), decoding stored content\n", fstore.table_name, pre_image, block_id, slot_id, err)
		restored = nil
	}
	return fstore.setDeleteFlag(block_id, slot_id, false, restored)
}

/*
 * ForceInsertAt writes content at (block_id, slot_id), allocating the block
 * when it does not exist yet. the record count of the block becomes
 * slot_id+1. the in memory record list is left as it is.
 */
func (fstore *forcedStore) ForceInsertAt(block_id types.BlockID, slot_id types.SlotID, content []byte) error {
	fstore.latch.WLock()
	defer fstore.latch.WUnlock()

	if block_id < 1 {
		return errors.Wrapf(ErrInvalidSlot, "block %d is the catalog block", block_id)
	}
	if int(slot_id) >= fstore.catalog.Capacity() {
		return errors.Wrapf(ErrInvalidSlot, "slot %d exceeds capacity %d", slot_id, fstore.catalog.Capacity())
	}
	if len(content) != fstore.catalog.ContentSize() {
		return errors.Wrapf(tuple.ErrContentSize, "got %d bytes, want %d", len(content), fstore.catalog.ContentSize())
	}

	var block *page.DataBlock
	if int32(block_id) > fstore.catalog.DataBlockCount {
		block = page.NewDataBlock(block_id)
		counter := &page.CatalogBlock{DataBlockCount: int32(block_id)}
		if err := fstore.writeAt(counter.SerializeCounter(), 0, "catalog"); err != nil {
			return err
		}
		fstore.catalog.DataBlockCount = int32(block_id)
	} else {
		var err error
		if block, err = fstore.readBlock(block_id); err != nil {
			return err
		}
		block.SetBlockId(block_id)
	}

	offset := int32(page.RecordOffset(slot_id, fstore.catalog.RecordSize()))
	block.WriteRecord(offset, page.NewRecordHeader(len(content), common.RecoveryTimestamp, false), content)
	block.SetSlotOffset(slot_id, offset)
	block.SetRecordCount(int32(slot_id) + 1)
	return fstore.writeBlock(block, block_id)
}

func (fstore *forcedStore) Close() error {
	return fstore.PageStore.Close()
}
