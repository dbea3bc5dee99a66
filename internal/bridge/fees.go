package bridge

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"
)

// GetBridgeFee flat fee for a chain pair, zero when none is configured.
// asset is accepted for per-asset fees and currently ignored.
func (b *Bridge) GetBridgeFee(sourceChain, destChain uint64, asset common.Address) *uint256.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.feeOf(FeeKey{SourceChain: sourceChain, DestinationChain: destChain}).Clone()
}

// feeOf must be called with mu held
func (b *Bridge) feeOf(key FeeKey) *uint256.Int {
	if fee, ok := b.st.fees[key]; ok {
		return fee
	}
	return new(uint256.Int)
}

// UpdateBridgeFee sets the fee for a chain pair. Existing transfers keep their recorded fee.
func (b *Bridge) UpdateBridgeFee(ctx context.Context, caller common.Address, sourceChain, destChain uint64, fee *uint256.Int) error {
	const op = "UpdateBridgeFee"
	ctx, exit, err := b.enter(ctx, op)
	if err != nil {
		return err
	}
	defer exit()

	if fee == nil {
		fee = new(uint256.Int)
	}
	key := FeeKey{SourceChain: sourceChain, DestinationChain: destChain}

	b.mu.Lock()
	if err := b.requireRole(op, caller, RoleAdmin); err != nil {
		b.mu.Unlock()
		return err
	}
	old := b.feeOf(key).Clone()
	b.st.fees[key] = fee.Clone()
	b.mu.Unlock()

	b.logger.WithFields(logrus.Fields{
		"source":      sourceChain,
		"destination": destChain,
		"old_fee":     old.Dec(),
		"new_fee":     fee.Dec(),
	}).Info("💰 Bridge fee updated")
	b.emit(ctx, FeeUpdated{SourceChain: sourceChain, DestinationChain: destChain, OldFee: old, NewFee: fee.Clone()})
	return nil
}
