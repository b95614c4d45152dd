package types

import (
	"encoding/binary"
)

// TxnID is the type of the transaction identifier
type TxnID uint64

// Serialize casts it to []byte
func (id TxnID) Serialize() []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(id))
	return buf
}

// NewTxnIDFromBytes creates a txn id from []byte
func NewTxnIDFromBytes(data []byte) TxnID {
	return TxnID(binary.BigEndian.Uint64(data))
}
