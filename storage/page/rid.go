package page

import (
	"fmt"

	"github.com/minirel/MinirelDB/types"
)

// RID is the record identifier for the given block identifier and slot number
type RID struct {
	blockId types.BlockID
	slotNum types.SlotID
}

func NewRID(blockId types.BlockID, slot types.SlotID) RID {
	return RID{blockId, slot}
}

// Set sets the recod identifier
func (r *RID) Set(blockId types.BlockID, slot types.SlotID) {
	r.blockId = blockId
	r.slotNum = slot
}

// GetBlockId gets the block id
func (r *RID) GetBlockId() types.BlockID {
	return r.blockId
}

// GetSlotNum gets the slot number
func (r *RID) GetSlotNum() types.SlotID {
	return r.slotNum
}

func (r RID) String() string {
	return fmt.Sprintf("(%d,%d)", r.blockId, r.slotNum)
}
