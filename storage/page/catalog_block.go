package page

import (
	"encoding/binary"
	"strings"

	"github.com/minirel/MinirelDB/common"
	"github.com/minirel/MinirelDB/errors"
	"github.com/minirel/MinirelDB/types"
)

const ErrCorruptCatalog = errors.Error("catalog block is corrupt")
const ErrInvalidFieldDef = errors.Error("invalid field definition")
const ErrRecordTooLarge = errors.Error("record does not fit in a data block")

// Catalog block format (size in bytes):
//
//	-----------------------------------------------------------------
//	| BlockId=0 (4) | DataBlockCount (4) | FieldCount (4) | Fields |
//	-----------------------------------------------------------------
//	Field format:
//	-------------------------------------
//	| Name (10) | Type (4) | Length (4) |
//	-------------------------------------
const offsetCatalogBlockId = 0
const OffsetDataBlockCount = 4
const offsetFieldCount = 8
const catalogHeaderSize = 12
const fieldDefSize = common.FieldNameSize + 8

// MaxFieldCount is the number of field definitions the catalog block holds
const MaxFieldCount = (common.BlockSize - catalogHeaderSize) / fieldDefSize

type FieldDef struct {
	Name   string
	Type   types.FieldType
	Length int32
}

func NewFieldDef(name string, fieldType types.FieldType, length int32) FieldDef {
	return FieldDef{name, fieldType, length}
}

type CatalogBlock struct {
	DataBlockCount int32
	Fields         []FieldDef
}

// NewCatalogBlock validates fields and returns the catalog of a table without data blocks
func NewCatalogBlock(fields []FieldDef) (*CatalogBlock, error) {
	if err := ValidateFieldDefs(fields); err != nil {
		return nil, err
	}
	copied := make([]FieldDef, len(fields))
	copy(copied, fields)
	return &CatalogBlock{0, copied}, nil
}

func ValidateFieldDefs(fields []FieldDef) error {
	if len(fields) == 0 {
		return errors.Validation(errors.Wrap(ErrInvalidFieldDef, "no fields"))
	}
	if len(fields) > MaxFieldCount {
		return errors.Validation(errors.Wrapf(ErrInvalidFieldDef, "%d fields exceed the limit of %d", len(fields), MaxFieldCount))
	}
	seen := make(map[string]bool)
	for _, field := range fields {
		name := strings.TrimSpace(field.Name)
		switch {
		case name == "":
			return errors.Validation(errors.Wrap(ErrInvalidFieldDef, "empty field name"))
		case len(name) > common.FieldNameSize:
			return errors.Validation(errors.Wrapf(ErrInvalidFieldDef, "field name %q is longer than %d bytes", name, common.FieldNameSize))
		case strings.ContainsAny(name, ":,"):
			return errors.Validation(errors.Wrapf(ErrInvalidFieldDef, "field name %q contains ':' or ','", name))
		case seen[name]:
			return errors.Validation(errors.Wrapf(ErrInvalidFieldDef, "duplicate field name %q", name))
		case !field.Type.IsValid():
			return errors.Validation(errors.Wrapf(ErrInvalidFieldDef, "field %q has unknown type code %d", name, field.Type))
		case field.Length <= 0:
			return errors.Validation(errors.Wrapf(ErrInvalidFieldDef, "field %q has non positive length %d", name, field.Length))
		}
		seen[name] = true
	}
	if BlockCapacity(recordSize(fields)) < 1 {
		return errors.Validation(errors.Wrapf(ErrRecordTooLarge, "record size %d", recordSize(fields)))
	}
	return nil
}

func contentSize(fields []FieldDef) int {
	size := 0
	for _, field := range fields {
		size += int(field.Length)
	}
	return size
}

func recordSize(fields []FieldDef) int {
	return RecordHeaderSize + contentSize(fields)
}

// ContentSize is the fixed byte width of a record content
func (c *CatalogBlock) ContentSize() int {
	return contentSize(c.Fields)
}

// RecordSize is the fixed byte width of a record including its header
func (c *CatalogBlock) RecordSize() int {
	return recordSize(c.Fields)
}

func (c *CatalogBlock) Capacity() int {
	return BlockCapacity(c.RecordSize())
}

// FieldIndex returns the position of the field named name, or -1
func (c *CatalogBlock) FieldIndex(name string) int {
	name = strings.TrimSpace(name)
	for i, field := range c.Fields {
		if strings.TrimSpace(field.Name) == name {
			return i
		}
	}
	return -1
}

func (c *CatalogBlock) Serialize() []byte {
	buf := make([]byte, common.BlockSize)
	binary.BigEndian.PutUint32(buf[offsetCatalogBlockId:], uint32(common.CatalogBlockID))
	binary.BigEndian.PutUint32(buf[OffsetDataBlockCount:], uint32(c.DataBlockCount))
	binary.BigEndian.PutUint32(buf[offsetFieldCount:], uint32(len(c.Fields)))
	offset := catalogHeaderSize
	for _, field := range c.Fields {
		copy(buf[offset:offset+common.FieldNameSize], padName(field.Name, common.FieldNameSize))
		binary.BigEndian.PutUint32(buf[offset+common.FieldNameSize:], uint32(field.Type))
		binary.BigEndian.PutUint32(buf[offset+common.FieldNameSize+4:], uint32(field.Length))
		offset += fieldDefSize
	}
	return buf
}

// SerializeCounter returns the leading block id and data block count, the only
// part of the catalog block rewritten after creation
func (c *CatalogBlock) SerializeCounter() []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint32(buf[offsetCatalogBlockId:], uint32(common.CatalogBlockID))
	binary.BigEndian.PutUint32(buf[OffsetDataBlockCount:], uint32(c.DataBlockCount))
	return buf
}

func NewCatalogBlockFromBytes(data []byte) (*CatalogBlock, error) {
	if len(data) < catalogHeaderSize {
		return nil, errors.Wrap(ErrCorruptCatalog, "short catalog block")
	}
	blockId := int32(binary.BigEndian.Uint32(data[offsetCatalogBlockId:]))
	dataBlockCount := int32(binary.BigEndian.Uint32(data[OffsetDataBlockCount:]))
	fieldCount := int32(binary.BigEndian.Uint32(data[offsetFieldCount:]))
	if blockId != common.CatalogBlockID || dataBlockCount < 0 || fieldCount <= 0 || int(fieldCount) > MaxFieldCount {
		return nil, errors.Wrapf(ErrCorruptCatalog, "block id %d, data blocks %d, fields %d", blockId, dataBlockCount, fieldCount)
	}
	if len(data) < catalogHeaderSize+int(fieldCount)*fieldDefSize {
		return nil, errors.Wrap(ErrCorruptCatalog, "field definitions are cut off")
	}

	fields := make([]FieldDef, 0, fieldCount)
	offset := catalogHeaderSize
	for i := int32(0); i < fieldCount; i++ {
		name := strings.TrimSpace(string(data[offset : offset+common.FieldNameSize]))
		fieldType := types.FieldType(binary.BigEndian.Uint32(data[offset+common.FieldNameSize:]))
		length := int32(binary.BigEndian.Uint32(data[offset+common.FieldNameSize+4:]))
		fields = append(fields, FieldDef{name, fieldType, length})
		offset += fieldDefSize
	}
	if err := ValidateFieldDefs(fields); err != nil {
		return nil, errors.Wrap(ErrCorruptCatalog, err.Error())
	}
	return &CatalogBlock{dataBlockCount, fields}, nil
}

// padName right aligns s in width bytes, padding with spaces
func padName(s string, width int) []byte {
	if len(s) >= width {
		return []byte(s[:width])
	}
	return []byte(strings.Repeat(" ", width-len(s)) + s)
}
