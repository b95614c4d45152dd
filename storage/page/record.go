package page

import (
	"encoding/binary"

	"github.com/minirel/MinirelDB/common"
	"github.com/minirel/MinirelDB/types"
)

// Record format (size in bytes):
//
//	------------------------------------------------------------------------------------
//	| SchemaPointer (4) | ContentLength (4) | Timestamp (10) | DeleteFlag (4) | Content |
//	------------------------------------------------------------------------------------
const RecordHeaderSize = 22

// every record points back at the first field definition of the catalog block
const SchemaPointer = int32(12)

const offsetSchemaPointer = 0
const offsetContentLength = 4
const offsetTimestamp = 8
const OffsetDeleteFlag = 18

type RecordHeader struct {
	SchemaPointer int32
	ContentLength int32
	Timestamp     string
	DeleteFlag    int32
}

func NewRecordHeader(contentLength int, timestamp string, deleted bool) RecordHeader {
	header := RecordHeader{SchemaPointer, int32(contentLength), timestamp, 0}
	if deleted {
		header.DeleteFlag = 1
	}
	return header
}

func (h RecordHeader) IsDeleted() bool {
	return h.DeleteFlag != 0
}

func (h RecordHeader) Serialize() []byte {
	buf := make([]byte, RecordHeaderSize)
	binary.BigEndian.PutUint32(buf[offsetSchemaPointer:], uint32(h.SchemaPointer))
	binary.BigEndian.PutUint32(buf[offsetContentLength:], uint32(h.ContentLength))
	copy(buf[offsetTimestamp:offsetTimestamp+common.TimestampSize], padName(h.Timestamp, common.TimestampSize))
	binary.BigEndian.PutUint32(buf[OffsetDeleteFlag:], uint32(h.DeleteFlag))
	return buf
}

func NewRecordHeaderFromBytes(data []byte) RecordHeader {
	return RecordHeader{
		SchemaPointer: int32(binary.BigEndian.Uint32(data[offsetSchemaPointer:])),
		ContentLength: int32(binary.BigEndian.Uint32(data[offsetContentLength:])),
		Timestamp:     string(data[offsetTimestamp : offsetTimestamp+common.TimestampSize]),
		DeleteFlag:    int32(binary.BigEndian.Uint32(data[OffsetDeleteFlag:])),
	}
}

// RecordOffset is where the record of slot starts inside its block.
// records are packed from the end of the block towards the slot array.
func RecordOffset(slot types.SlotID, recordSize int) int {
	return common.BlockSize - (int(slot)+1)*recordSize
}

// BlockCapacity is the number of records of recordSize one data block holds
func BlockCapacity(recordSize int) int {
	return (common.BlockSize - DataBlockHeaderSize) / (recordSize + slotEntrySize)
}
