package bridge

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// custody tracks what the vault holds on behalf of transfers.
// locked covers pending escrows, released covers completed transfers whose
// value now backs the destination-side representation.
type custody struct {
	escrow   map[uint64]*uint256.Int
	locked   map[common.Address]*uint256.Int
	released map[common.Address]*uint256.Int
}

func newCustody() custody {
	return custody{
		escrow:   make(map[uint64]*uint256.Int),
		locked:   make(map[common.Address]*uint256.Int),
		released: make(map[common.Address]*uint256.Int),
	}
}

func (c *custody) lock(id uint64, asset common.Address, total *uint256.Int) {
	c.escrow[id] = total.Clone()
	c.locked[asset] = new(uint256.Int).Add(c.lockedOf(asset), total)
}

// release moves the escrow of a completed transfer to the released total
func (c *custody) release(id uint64, asset common.Address) *uint256.Int {
	total := c.take(id, asset)
	prev, ok := c.released[asset]
	if !ok {
		prev = new(uint256.Int)
	}
	c.released[asset] = new(uint256.Int).Add(prev, total)
	return total
}

// refund drops the escrow of a cancelled or failed transfer
func (c *custody) refund(id uint64, asset common.Address) *uint256.Int {
	return c.take(id, asset)
}

func (c *custody) take(id uint64, asset common.Address) *uint256.Int {
	total, ok := c.escrow[id]
	if !ok {
		return new(uint256.Int)
	}
	delete(c.escrow, id)
	c.locked[asset] = new(uint256.Int).Sub(c.lockedOf(asset), total)
	return total
}

func (c *custody) lockedOf(asset common.Address) *uint256.Int {
	if v, ok := c.locked[asset]; ok {
		return v
	}
	return new(uint256.Int)
}

func (c *custody) releasedOf(asset common.Address) *uint256.Int {
	if v, ok := c.released[asset]; ok {
		return v
	}
	return new(uint256.Int)
}

func (c *custody) escrowOf(id uint64) *uint256.Int {
	if v, ok := c.escrow[id]; ok {
		return v
	}
	return new(uint256.Int)
}
