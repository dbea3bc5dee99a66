package bridge

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sirupsen/logrus"
)

// ConfirmTransfer records caller's confirmation of a pending transfer and
// completes it once RequiredConfirmations distinct validators confirmed.
// Returns true only for the call that completed the transfer.
func (b *Bridge) ConfirmTransfer(ctx context.Context, caller common.Address, id uint64, proof []byte) (bool, error) {
	const op = "ConfirmTransfer"
	ctx, exit, err := b.enter(ctx, op)
	if err != nil {
		return false, err
	}
	defer exit()

	b.mu.RLock()
	var snapshot Transfer
	switch {
	case b.st.stopped:
		err = ErrEmergencyStopped
	case !b.st.hasRole(RoleValidator, caller):
		err = ErrMissingRole
	default:
		var t *Transfer
		if t, err = b.pendingTransfer(id); err == nil {
			if b.st.confirmations[id][caller] {
				err = fmt.Errorf("%w: %s on %d", ErrAlreadyConfirmed, caller.Hex(), id)
			} else {
				snapshot = t.clone()
			}
		}
	}
	b.mu.RUnlock()
	if err != nil {
		return false, opErr(op, err)
	}

	if b.verifier != nil {
		ok, verr := b.verifier.Verify(ctx, snapshot, proof)
		if verr != nil {
			return false, internalErr(op, fmt.Errorf("proof verification: %w", verr))
		}
		if !ok {
			return false, opErr(op, ErrInvalidProof)
		}
	}

	now := b.now()
	after := snapshot.clone()
	after.ConfirmationCount++
	if after.ConfirmationCount >= b.required {
		after.Status = StatusCompleted
		after.CompletedAt = now
	}
	commit := Commit{
		Op:           op,
		Transfer:     after,
		Confirmation: &Confirmation{TransferID: id, Validator: caller},
		Proof:        append([]byte(nil), proof...),
	}
	if err := b.journal.Commit(ctx, commit, nil); err != nil {
		return false, internalErr(op, fmt.Errorf("journal: %w", err))
	}

	b.mu.Lock()
	t := b.st.transfers[id]
	if b.st.confirmations[id] == nil {
		b.st.confirmations[id] = make(map[common.Address]bool)
	}
	b.st.confirmations[id][caller] = true
	t.ConfirmationCount++
	count := t.ConfirmationCount
	finalized := count >= b.required
	var completed TransferCompleted
	if finalized {
		t.Status = StatusCompleted
		t.CompletedAt = now
		b.st.custody.release(id, t.Asset)
		completed = TransferCompleted{
			ID:          id,
			Recipient:   append(hexutil.Bytes(nil), t.Recipient...),
			Asset:       t.Asset,
			Amount:      t.Amount.Clone(),
			CompletedAt: now,
		}
	}
	b.mu.Unlock()

	log := b.logger.WithFields(logrus.Fields{
		"transfer_id":   id,
		"validator":     caller.Hex(),
		"confirmations": count,
		"required":      b.required,
	})
	log.Info("🖊️ Transfer confirmed")
	b.emit(ctx, TransferConfirmed{ID: id, Validator: caller, Confirmations: count, Proof: append(hexutil.Bytes(nil), proof...)})
	if finalized {
		log.Info("🎉 Transfer completed")
		b.emit(ctx, completed)
	}
	return finalized, nil
}

// HasConfirmed whether validator confirmed transfer id
func (b *Bridge) HasConfirmed(id uint64, validator common.Address) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.st.confirmations[id][validator]
}

// Confirmations validators that confirmed transfer id ordered by address
func (b *Bridge) Confirmations(id uint64) []common.Address {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return sortedAddresses(b.st.confirmations[id])
}
