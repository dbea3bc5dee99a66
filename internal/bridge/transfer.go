package bridge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"
)

// transferPlan everything CreateTransfer commits once custody succeeded
type transferPlan struct {
	transfer    Transfer
	route       RouteKey
	used        *uint256.Int
	windowStart time.Time
}

// CreateTransfer escrows amount plus fee from caller and registers a pending transfer.
// Nothing is mutated when any check or the custody pull fails.
func (b *Bridge) CreateTransfer(ctx context.Context, caller common.Address, req TransferRequest) (uint64, error) {
	const op = "CreateTransfer"
	ctx, exit, err := b.enter(ctx, op)
	if err != nil {
		return 0, err
	}
	defer exit()

	now := b.now()
	b.mu.RLock()
	plan, err := b.planTransfer(caller, req, now)
	b.mu.RUnlock()
	if err != nil {
		return 0, opErr(op, err)
	}
	total := plan.transfer.Total()

	balance, err := b.ledger.BalanceOf(ctx, req.Asset, caller)
	if err != nil {
		return 0, internalErr(op, fmt.Errorf("balance lookup: %w", err))
	}
	if balance.Lt(total) {
		return 0, opErr(op, fmt.Errorf("%w: balance %s, required %s", ErrInsufficientBalance, balance.Dec(), total.Dec()))
	}

	// calls are serialized, nothing else advances nextID or the route before the commit below
	b.mu.RLock()
	t := plan.transfer
	t.ID = b.st.nextID
	route := b.st.routes[plan.route].clone()
	b.mu.RUnlock()
	route.DailyTransferred = plan.used
	route.WindowStart = plan.windowStart

	commit := Commit{Op: op, Transfer: t.clone(), NextTransferID: t.ID + 1, Route: &route}
	move := func(ctx context.Context) error {
		return b.ledger.Transfer(ctx, req.Asset, caller, b.vault, total)
	}
	if err := b.journal.Commit(ctx, commit, move); err != nil {
		return 0, ledgerErr(op, err)
	}

	b.mu.Lock()
	b.st.nextID = t.ID + 1
	stored := b.st.routes[plan.route]
	stored.DailyTransferred = plan.used
	stored.WindowStart = plan.windowStart
	b.st.transfers[t.ID] = &t
	b.st.custody.lock(t.ID, t.Asset, total)
	ev := TransferInitiated{
		ID:               t.ID,
		Sender:           t.Initiator,
		Recipient:        append(hexutil.Bytes(nil), t.Recipient...),
		Asset:            t.Asset,
		Amount:           t.Amount.Clone(),
		Fee:              t.Fee.Clone(),
		SourceChain:      t.SourceChain,
		DestinationChain: t.DestinationChain,
		CreatedAt:        t.CreatedAt,
	}
	b.mu.Unlock()

	b.logger.WithFields(logrus.Fields{
		"transfer_id": ev.ID,
		"initiator":   caller.Hex(),
		"asset":       req.Asset.Hex(),
		"amount":      ev.Amount.Dec(),
		"fee":         ev.Fee.Dec(),
		"source":      ev.SourceChain,
		"destination": ev.DestinationChain,
	}).Info("📤 Transfer created")
	b.emit(ctx, ev)
	return ev.ID, nil
}

// planTransfer validates a request against current state, mu must be held.
// Checks run availability first, then input, registry, bounds and the daily limit.
func (b *Bridge) planTransfer(caller common.Address, req TransferRequest, now time.Time) (*transferPlan, error) {
	if b.st.stopped {
		return nil, ErrEmergencyStopped
	}
	if b.st.paused {
		return nil, ErrPaused
	}
	if isZeroAddress(caller) {
		return nil, ErrInvalidIdentity
	}
	if req.Amount == nil || req.Amount.IsZero() {
		return nil, ErrZeroAmount
	}
	if isZeroAddress(req.Asset) {
		return nil, ErrInvalidAsset
	}
	if len(req.Recipient) == 0 {
		return nil, ErrEmptyRecipient
	}
	if req.SourceChain == req.DestinationChain {
		return nil, ErrSameChain
	}
	src, ok := b.st.chains[req.SourceChain]
	if !ok || !src.Active {
		return nil, fmt.Errorf("%w: source %d", ErrUnsupportedChain, req.SourceChain)
	}
	if dst, ok := b.st.chains[req.DestinationChain]; !ok || !dst.Active {
		return nil, fmt.Errorf("%w: destination %d", ErrUnsupportedChain, req.DestinationChain)
	}
	key := RouteKey{Asset: req.Asset, DestinationChain: req.DestinationChain}
	route, ok := b.st.routes[key]
	if !ok || !route.Active {
		return nil, fmt.Errorf("%w: %s -> %d", ErrUnsupportedAsset, req.Asset.Hex(), req.DestinationChain)
	}
	if req.Amount.Lt(src.MinTransfer) || req.Amount.Gt(src.MaxTransfer) {
		return nil, fmt.Errorf("%w: %s not in [%s, %s]", ErrAmountOutOfBounds,
			req.Amount.Dec(), src.MinTransfer.Dec(), src.MaxTransfer.Dec())
	}
	used, windowStart, err := checkRateLimit(route, req.Amount, now)
	if err != nil {
		return nil, err
	}
	fee := b.feeOf(FeeKey{SourceChain: req.SourceChain, DestinationChain: req.DestinationChain}).Clone()
	if _, overflow := new(uint256.Int).AddOverflow(req.Amount, fee); overflow {
		return nil, ErrAmountOverflow
	}
	return &transferPlan{
		transfer: Transfer{
			Initiator:        caller,
			Recipient:        append(hexutil.Bytes(nil), req.Recipient...),
			Asset:            req.Asset,
			Amount:           req.Amount.Clone(),
			Fee:              fee,
			SourceChain:      req.SourceChain,
			DestinationChain: req.DestinationChain,
			Status:           StatusPending,
			CreatedAt:        now,
		},
		route:       key,
		used:        used,
		windowStart: windowStart,
	}, nil
}

// CancelTransfer refunds a pending transfer to its initiator
func (b *Bridge) CancelTransfer(ctx context.Context, caller common.Address, id uint64) (bool, error) {
	const op = "CancelTransfer"
	ctx, exit, err := b.enter(ctx, op)
	if err != nil {
		return false, err
	}
	defer exit()

	b.mu.RLock()
	t, ok := b.st.transfers[id]
	switch {
	case !ok:
		err = fmt.Errorf("%w: %d", ErrTransferNotFound, id)
	case t.Initiator != caller:
		err = ErrNotInitiator
	default:
		t, err = b.pendingTransfer(id)
	}
	if err == nil && b.lockCancel && t.ConfirmationCount > 0 {
		err = fmt.Errorf("%w: %d confirmations", ErrCancellationLocked, t.ConfirmationCount)
	}
	var snapshot Transfer
	if err == nil {
		snapshot = t.clone()
	}
	b.mu.RUnlock()
	if err != nil {
		return false, opErr(op, err)
	}

	now := b.now()
	refund, err := b.refund(ctx, op, snapshot, StatusCancelled, now, "")
	if err != nil {
		return false, err
	}

	b.mu.Lock()
	b.finish(id, StatusCancelled, now)
	b.mu.Unlock()

	b.logger.WithFields(logrus.Fields{
		"transfer_id": id,
		"initiator":   caller.Hex(),
		"refund":      refund.Dec(),
	}).Info("↩️ Transfer cancelled")
	b.emit(ctx, TransferCancelled{ID: id, Sender: caller, Refund: refund, CancelledAt: now})
	return true, nil
}

// MarkFailed refunds a pending transfer whose destination leg cannot complete
func (b *Bridge) MarkFailed(ctx context.Context, caller common.Address, id uint64, reason string) error {
	const op = "MarkFailed"
	ctx, exit, err := b.enter(ctx, op)
	if err != nil {
		return err
	}
	defer exit()

	reason = strings.TrimSpace(reason)
	b.mu.RLock()
	err = b.requireRole(op, caller, RoleAdmin, RoleValidator)
	if err == nil && reason == "" {
		err = opErr(op, ErrEmptyReason)
	}
	var snapshot Transfer
	if err == nil {
		var t *Transfer
		if t, err = b.pendingTransfer(id); err == nil {
			snapshot = t.clone()
		} else {
			err = opErr(op, err)
		}
	}
	b.mu.RUnlock()
	if err != nil {
		return err
	}

	now := b.now()
	refund, err := b.refund(ctx, op, snapshot, StatusFailed, now, reason)
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.finish(id, StatusFailed, now)
	b.mu.Unlock()

	b.logger.WithFields(logrus.Fields{
		"transfer_id": id,
		"marked_by":   caller.Hex(),
		"reason":      reason,
		"refund":      refund.Dec(),
	}).Warn("❌ Transfer marked failed")
	b.emit(ctx, TransferFailed{ID: id, Reason: reason, Refund: refund, MarkedBy: caller, FailedAt: now})
	return nil
}

// refund returns the escrow of t to its initiator and journals t in its terminal status
func (b *Bridge) refund(ctx context.Context, op string, t Transfer, status Status, now time.Time, reason string) (*uint256.Int, error) {
	total := t.Total()
	after := t.clone()
	after.Status = status
	after.CompletedAt = now
	move := func(ctx context.Context) error {
		return b.ledger.Transfer(ctx, t.Asset, b.vault, t.Initiator, total)
	}
	if err := b.journal.Commit(ctx, Commit{Op: op, Transfer: after, FailureReason: reason}, move); err != nil {
		return nil, ledgerErr(op, err)
	}
	return total, nil
}

// finish moves a pending transfer to a refunded terminal status, mu must be held
func (b *Bridge) finish(id uint64, status Status, now time.Time) {
	t := b.st.transfers[id]
	t.Status = status
	t.CompletedAt = now
	b.st.custody.refund(id, t.Asset)
}

// pendingTransfer mu must be held
func (b *Bridge) pendingTransfer(id uint64) (*Transfer, error) {
	t, ok := b.st.transfers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrTransferNotFound, id)
	}
	if t.Status != StatusPending {
		return nil, fmt.Errorf("%w: %d is %s", ErrInvalidStatus, id, t.Status)
	}
	return t, nil
}

// GetTransferStatus current status of a transfer
func (b *Bridge) GetTransferStatus(id uint64) (Status, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.st.transfers[id]
	if !ok {
		return 0, opErr("GetTransferStatus", fmt.Errorf("%w: %d", ErrTransferNotFound, id))
	}
	return t.Status, nil
}

// GetTransferDetails copy of the full transfer record
func (b *Bridge) GetTransferDetails(id uint64) (Transfer, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.st.transfers[id]
	if !ok {
		return Transfer{}, opErr("GetTransferDetails", fmt.Errorf("%w: %d", ErrTransferNotFound, id))
	}
	return t.clone(), nil
}

// NextTransferID id the next created transfer will get
func (b *Bridge) NextTransferID() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.st.nextID
}

// PendingTransfers pending transfers ordered by id
func (b *Bridge) PendingTransfers() []Transfer {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Transfer, 0)
	for id := uint64(1); id < b.st.nextID; id++ {
		if t, ok := b.st.transfers[id]; ok && t.Status == StatusPending {
			out = append(out, t.clone())
		}
	}
	return out
}
