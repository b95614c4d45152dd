package types

// BlockID identifies a 4096 byte block inside a heap file. block 0 is the catalog block.
type BlockID uint32

// SlotID identifies a slot inside a data block
type SlotID uint32

// LSN is the byte offset of a log record inside the log file
type LSN int64
