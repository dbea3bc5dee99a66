package services

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"bridge-backend/internal/bridge"
	"bridge-backend/internal/events"
	"bridge-backend/internal/metrics"
	"bridge-backend/internal/models"
	"bridge-backend/internal/repository"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const persistTimeout = 5 * time.Second

// EventRecorder mirrors committed bridge state into the database.
// Each event is written together with the rows it changed in one transaction.
type EventRecorder struct {
	db     *gorm.DB
	core   atomic.Pointer[bridge.Bridge]
	logger *logrus.Logger
}

func NewEventRecorder(db *gorm.DB, logger *logrus.Logger) *EventRecorder {
	return &EventRecorder{db: db, logger: logger}
}

// Attach sets the bridge used to read the state an event refers to
func (r *EventRecorder) Attach(b *bridge.Bridge) {
	r.core.Store(b)
}

// Handle persists env. A failure never reaches the bridge call; it is logged and counted.
func (r *EventRecorder) Handle(ctx context.Context, env *events.Envelope) {
	// the bridge has already committed, so the write must not die with the request
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.apply(ctx, tx, env); err != nil {
			return err
		}
		payload, err := models.ToJSONB(env.Data)
		if err != nil {
			return fmt.Errorf("encode payload: %w", err)
		}
		return repository.NewEventRepository(tx).Append(ctx, &models.EventLog{
			ID:         env.ID,
			Name:       env.Name,
			TransferID: env.TransferID,
			Payload:    payload,
			CreatedAt:  env.EmittedAt,
		})
	})
	if err != nil {
		metrics.EventPersistFailures.WithLabelValues(env.Name).Inc()
		r.logger.WithError(err).WithFields(logrus.Fields{
			"event":    env.Name,
			"event_id": env.ID,
		}).Error("❌ Failed to persist bridge event")
	}
}

func (r *EventRecorder) apply(ctx context.Context, tx *gorm.DB, env *events.Envelope) error {
	b := r.core.Load()
	if b == nil {
		return fmt.Errorf("recorder not attached to a bridge")
	}
	transfers := repository.NewTransferRepository(tx)
	registry := repository.NewRegistryRepository(tx)
	configs := repository.NewConfigRepository(tx)

	switch ev := env.Data.(type) {
	case bridge.TransferInitiated:
		if err := r.saveTransfer(ctx, transfers, b, ev.ID); err != nil {
			return err
		}
		if route, ok := b.AssetRoute(ev.Asset, ev.DestinationChain); ok {
			if err := registry.UpsertRoute(ctx, models.NewAssetRouteRecord(route)); err != nil {
				return fmt.Errorf("save route usage: %w", err)
			}
		}
		return configs.Set(ctx, models.ConfigKeyNextTransferID, strconv.FormatUint(b.NextTransferID(), 10), ev.Sender.Hex())

	case bridge.TransferConfirmed:
		rec := &models.ConfirmationRecord{
			TransferID: ev.ID,
			Validator:  models.AddressString(ev.Validator),
			CreatedAt:  env.EmittedAt,
		}
		if len(ev.Proof) > 0 {
			rec.Proof = "0x" + hex.EncodeToString(ev.Proof)
		}
		if err := transfers.AddConfirmation(ctx, rec); err != nil {
			return fmt.Errorf("save confirmation: %w", err)
		}
		return r.saveTransfer(ctx, transfers, b, ev.ID)

	case bridge.TransferCompleted:
		return r.saveTransfer(ctx, transfers, b, ev.ID)

	case bridge.TransferCancelled:
		return r.saveTransfer(ctx, transfers, b, ev.ID)

	case bridge.TransferFailed:
		if err := r.saveTransfer(ctx, transfers, b, ev.ID); err != nil {
			return err
		}
		return transfers.SetFailureReason(ctx, ev.ID, ev.Reason)

	case bridge.ChainAdded:
		return r.saveChain(ctx, registry, b, ev.ChainID)

	case bridge.ChainStatusChanged:
		return r.saveChain(ctx, registry, b, ev.ChainID)

	case bridge.AssetRouteAdded:
		return r.saveRoute(ctx, registry, b, ev.Asset, ev.DestinationChain)

	case bridge.AssetRouteStatusChanged:
		return r.saveRoute(ctx, registry, b, ev.Asset, ev.DestinationChain)

	case bridge.FeeUpdated:
		return registry.UpsertFee(ctx, &models.FeeRecord{
			SourceChain:      ev.SourceChain,
			DestinationChain: ev.DestinationChain,
			Fee:              ev.NewFee.Dec(),
		})

	case bridge.RoleGranted:
		return registry.GrantRole(ctx, &models.RoleRecord{
			Role:      string(ev.Role),
			Account:   models.AddressString(ev.Account),
			GrantedBy: models.AddressString(ev.Sender),
		})

	case bridge.RoleRevoked:
		return registry.RevokeRole(ctx, string(ev.Role), models.AddressString(ev.Account))

	case bridge.Paused:
		return configs.Set(ctx, models.ConfigKeyPaused, strconv.FormatBool(ev.Paused), ev.Account.Hex())

	case bridge.EmergencyStop:
		return configs.Set(ctx, models.ConfigKeyEmergencyStop, strconv.FormatBool(ev.Stopped), ev.Account.Hex())
	}
	// ValidatorAdded / ValidatorRemoved travel with RoleGranted / RoleRevoked
	return nil
}

func (r *EventRecorder) saveTransfer(ctx context.Context, repo repository.TransferRepository, b *bridge.Bridge, id uint64) error {
	t, err := b.GetTransferDetails(id)
	if err != nil {
		return fmt.Errorf("read transfer %d: %w", id, err)
	}
	rec := models.NewTransferRecord(t)
	rec.UpdatedAt = time.Now()
	if err := repo.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("save transfer %d: %w", id, err)
	}
	return nil
}

func (r *EventRecorder) saveChain(ctx context.Context, repo repository.RegistryRepository, b *bridge.Bridge, chainID uint64) error {
	chain, ok := b.Chain(chainID)
	if !ok {
		return fmt.Errorf("chain %d not found", chainID)
	}
	return repo.UpsertChain(ctx, models.NewChainRecord(chain))
}

func (r *EventRecorder) saveRoute(ctx context.Context, repo repository.RegistryRepository, b *bridge.Bridge, asset common.Address, destChainID uint64) error {
	route, ok := b.AssetRoute(asset, destChainID)
	if !ok {
		return fmt.Errorf("route %s/%d not found", asset.Hex(), destChainID)
	}
	return repo.UpsertRoute(ctx, models.NewAssetRouteRecord(route))
}
