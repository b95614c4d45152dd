package page

import (
	"encoding/binary"

	"github.com/minirel/MinirelDB/common"
	"github.com/minirel/MinirelDB/types"
)

// Data block format (size in bytes):
//
//	----------------------------------------------------------------------
//	| HEADER | SLOT ARRAY -> | ... FREE SPACE ... | <- INSERTED RECORDS |
//	----------------------------------------------------------------------
//	Header format:
//	----------------------------------
//	| BlockId (4) | RecordCount (4) |
//	----------------------------------
//	--------------------------------------------------
//	| Record_0 offset (4) | Record_1 offset (4) | ... |
//	--------------------------------------------------
const DataBlockHeaderSize = 8
const offsetDataBlockId = 0
const OffsetRecordCount = 4
const slotEntrySize = 4

type DataBlock struct {
	data []byte
}

// NewDataBlock returns a zero initialised block carrying blockId
func NewDataBlock(blockId types.BlockID) *DataBlock {
	block := &DataBlock{make([]byte, common.BlockSize)}
	block.SetBlockId(blockId)
	return block
}

// NewDataBlockFromBytes wraps data, which must be a whole block
func NewDataBlockFromBytes(data []byte) *DataBlock {
	common.SH_Assert(len(data) == common.BlockSize, "data block must be BlockSize bytes")
	return &DataBlock{data}
}

func (b *DataBlock) Data() []byte {
	return b.data
}

func (b *DataBlock) GetBlockId() types.BlockID {
	return types.BlockID(binary.BigEndian.Uint32(b.data[offsetDataBlockId:]))
}

func (b *DataBlock) SetBlockId(blockId types.BlockID) {
	binary.BigEndian.PutUint32(b.data[offsetDataBlockId:], uint32(blockId))
}

func (b *DataBlock) GetRecordCount() int32 {
	return int32(binary.BigEndian.Uint32(b.data[OffsetRecordCount:]))
}

func (b *DataBlock) SetRecordCount(count int32) {
	binary.BigEndian.PutUint32(b.data[OffsetRecordCount:], uint32(count))
}

// SlotEntryOffset is the position of the slot array entry of slot inside a block
func SlotEntryOffset(slot types.SlotID) int {
	return DataBlockHeaderSize + int(slot)*slotEntrySize
}

func (b *DataBlock) GetSlotOffset(slot types.SlotID) int32 {
	return int32(binary.BigEndian.Uint32(b.data[SlotEntryOffset(slot):]))
}

func (b *DataBlock) SetSlotOffset(slot types.SlotID, offset int32) {
	binary.BigEndian.PutUint32(b.data[SlotEntryOffset(slot):], uint32(offset))
}

// IsValidRecordOffset reports whether a record of recordSize can start at
// offset without overlapping the header and the slot array of capacity slots
func IsValidRecordOffset(offset int32, recordSize int, capacity int) bool {
	return int(offset) >= DataBlockHeaderSize+capacity*slotEntrySize && int(offset)+recordSize <= common.BlockSize
}

func (b *DataBlock) GetRecordHeader(offset int32) RecordHeader {
	return NewRecordHeaderFromBytes(b.data[offset : offset+RecordHeaderSize])
}

func (b *DataBlock) GetRecordContent(offset int32, contentSize int) []byte {
	start := int(offset) + RecordHeaderSize
	return b.data[start : start+contentSize]
}

func (b *DataBlock) WriteRecord(offset int32, header RecordHeader, content []byte) {
	copy(b.data[offset:], header.Serialize())
	copy(b.data[int(offset)+RecordHeaderSize:], content)
}

func (b *DataBlock) SetDeleteFlag(offset int32, deleted bool) {
	flag := uint32(0)
	if deleted {
		flag = 1
	}
	binary.BigEndian.PutUint32(b.data[int(offset)+OffsetDeleteFlag:], flag)
}
