package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"bridge-backend/internal/bridge"
	"bridge-backend/internal/models"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"gorm.io/gorm"
)

type txKey struct{}

// WithTx carries an open transaction to repositories reached through ctx
func WithTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// txFrom transaction started by a StateJournal commit, if any
func txFrom(ctx context.Context) (*gorm.DB, bool) {
	tx, ok := ctx.Value(txKey{}).(*gorm.DB)
	return tx, ok && tx != nil
}

// StateJournal is the bridge.Journal of database mode. The ledger move, the
// transfer row, its confirmation, route usage and next_transfer_id commit in
// one transaction, so a failed write leaves no debit without a transfer and
// no transfer id that a restart would hand out again.
type StateJournal struct {
	db *gorm.DB
}

var _ bridge.Journal = (*StateJournal)(nil)

func NewStateJournal(db *gorm.DB) *StateJournal {
	return &StateJournal{db: db}
}

func (j *StateJournal) Commit(ctx context.Context, c bridge.Commit, move func(ctx context.Context) error) error {
	return j.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if move != nil {
			if err := move(WithTx(ctx, tx)); err != nil {
				return err
			}
		}

		transfers := NewTransferRepository(tx)
		rec := models.NewTransferRecord(c.Transfer)
		rec.FailureReason = c.FailureReason
		rec.UpdatedAt = time.Now()
		if err := transfers.Upsert(ctx, rec); err != nil {
			return fmt.Errorf("save transfer %d: %w", c.Transfer.ID, err)
		}
		if c.FailureReason != "" {
			if err := transfers.SetFailureReason(ctx, c.Transfer.ID, c.FailureReason); err != nil {
				return fmt.Errorf("save failure reason %d: %w", c.Transfer.ID, err)
			}
		}

		if c.Confirmation != nil {
			conf := &models.ConfirmationRecord{
				TransferID: c.Confirmation.TransferID,
				Validator:  models.AddressString(c.Confirmation.Validator),
				CreatedAt:  time.Now(),
			}
			if len(c.Proof) > 0 {
				conf.Proof = hexutil.Encode(c.Proof)
			}
			if err := transfers.AddConfirmation(ctx, conf); err != nil {
				return fmt.Errorf("save confirmation: %w", err)
			}
		}

		if c.Route != nil {
			if err := NewRegistryRepository(tx).UpsertRoute(ctx, models.NewAssetRouteRecord(*c.Route)); err != nil {
				return fmt.Errorf("save route usage: %w", err)
			}
		}
		if c.NextTransferID != 0 {
			err := NewConfigRepository(tx).Set(ctx, models.ConfigKeyNextTransferID,
				strconv.FormatUint(c.NextTransferID, 10), c.Transfer.Initiator.Hex())
			if err != nil {
				return fmt.Errorf("save next transfer id: %w", err)
			}
		}
		return nil
	})
}
