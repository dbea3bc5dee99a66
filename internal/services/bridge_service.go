package services

import (
	"context"
	"errors"
	"fmt"

	"bridge-backend/internal/bridge"
	"bridge-backend/internal/metrics"
	"bridge-backend/internal/models"
	"bridge-backend/internal/repository"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrHistoryUnavailable returned by DB backed queries when no database is configured
var ErrHistoryUnavailable = errors.New("transfer history requires a database")

// BridgeService is the entry point handlers use for every bridge operation.
// It logs each call and counts rejections by error kind.
type BridgeService struct {
	core      *bridge.Bridge
	transfers repository.TransferRepository
	events    repository.EventRepository
	logger    *logrus.Logger
}

// NewBridgeService repositories may be nil, DB backed queries then return ErrHistoryUnavailable
func NewBridgeService(core *bridge.Bridge, transfers repository.TransferRepository, events repository.EventRepository, logger *logrus.Logger) *BridgeService {
	return &BridgeService{core: core, transfers: transfers, events: events, logger: logger}
}

// Core exposes the read side of the bridge
func (s *BridgeService) Core() *bridge.Bridge { return s.core }

func (s *BridgeService) observe(op string, fields logrus.Fields, err error) error {
	entry := s.logger.WithFields(fields).WithField("operation", op)
	if err == nil {
		entry.Info("✅ Bridge operation succeeded")
		return nil
	}
	kind := bridge.KindOf(err)
	metrics.RejectedCalls.WithLabelValues(op, string(kind)).Inc()
	if kind == bridge.KindInternal || kind == bridge.KindReentrancy {
		entry.WithError(err).Error("❌ Bridge operation failed")
	} else {
		entry.WithError(err).Warn("⚠️ Bridge operation rejected")
	}
	return err
}

func (s *BridgeService) CreateTransfer(ctx context.Context, caller common.Address, req bridge.TransferRequest) (uint64, error) {
	id, err := s.core.CreateTransfer(ctx, caller, req)
	return id, s.observe("CreateTransfer", logrus.Fields{
		"caller":            caller.Hex(),
		"asset":             req.Asset.Hex(),
		"amount":            amountField(req.Amount),
		"source_chain":      req.SourceChain,
		"destination_chain": req.DestinationChain,
		"transfer_id":       id,
	}, err)
}

func (s *BridgeService) ConfirmTransfer(ctx context.Context, caller common.Address, id uint64, proof []byte) (bool, error) {
	completed, err := s.core.ConfirmTransfer(ctx, caller, id, proof)
	return completed, s.observe("ConfirmTransfer", logrus.Fields{
		"validator":   caller.Hex(),
		"transfer_id": id,
		"completed":   completed,
	}, err)
}

func (s *BridgeService) CancelTransfer(ctx context.Context, caller common.Address, id uint64) (bool, error) {
	ok, err := s.core.CancelTransfer(ctx, caller, id)
	return ok, s.observe("CancelTransfer", logrus.Fields{"caller": caller.Hex(), "transfer_id": id}, err)
}

func (s *BridgeService) MarkFailed(ctx context.Context, caller common.Address, id uint64, reason string) error {
	err := s.core.MarkFailed(ctx, caller, id, reason)
	return s.observe("MarkFailed", logrus.Fields{"caller": caller.Hex(), "transfer_id": id, "reason": reason}, err)
}

func (s *BridgeService) AddChain(ctx context.Context, caller common.Address, chainID uint64, name string, minTransfer, maxTransfer *uint256.Int) error {
	err := s.core.AddChain(ctx, caller, chainID, name, minTransfer, maxTransfer)
	return s.observe("AddChain", logrus.Fields{
		"caller":   caller.Hex(),
		"chain_id": chainID,
		"name":     name,
		"min":      amountField(minTransfer),
		"max":      amountField(maxTransfer),
	}, err)
}

func (s *BridgeService) SetChainActive(ctx context.Context, caller common.Address, chainID uint64, active bool) error {
	err := s.core.SetChainActive(ctx, caller, chainID, active)
	return s.observe("SetChainActive", logrus.Fields{"caller": caller.Hex(), "chain_id": chainID, "active": active}, err)
}

func (s *BridgeService) AddAssetRoute(ctx context.Context, caller, asset common.Address, destChainID uint64, dailyLimit *uint256.Int) error {
	err := s.core.AddAssetRoute(ctx, caller, asset, destChainID, dailyLimit)
	return s.observe("AddAssetRoute", logrus.Fields{
		"caller":            caller.Hex(),
		"asset":             asset.Hex(),
		"destination_chain": destChainID,
		"daily_limit":       amountField(dailyLimit),
	}, err)
}

func (s *BridgeService) SetAssetRouteActive(ctx context.Context, caller, asset common.Address, destChainID uint64, active bool) error {
	err := s.core.SetAssetRouteActive(ctx, caller, asset, destChainID, active)
	return s.observe("SetAssetRouteActive", logrus.Fields{
		"caller":            caller.Hex(),
		"asset":             asset.Hex(),
		"destination_chain": destChainID,
		"active":            active,
	}, err)
}

func (s *BridgeService) UpdateBridgeFee(ctx context.Context, caller common.Address, sourceChain, destChain uint64, fee *uint256.Int) error {
	err := s.core.UpdateBridgeFee(ctx, caller, sourceChain, destChain, fee)
	return s.observe("UpdateBridgeFee", logrus.Fields{
		"caller":            caller.Hex(),
		"source_chain":      sourceChain,
		"destination_chain": destChain,
		"fee":               amountField(fee),
	}, err)
}

func (s *BridgeService) AddValidator(ctx context.Context, caller, validator common.Address) error {
	err := s.core.AddValidator(ctx, caller, validator)
	return s.observe("AddValidator", logrus.Fields{"caller": caller.Hex(), "validator": validator.Hex()}, err)
}

func (s *BridgeService) RemoveValidator(ctx context.Context, caller, validator common.Address) error {
	err := s.core.RemoveValidator(ctx, caller, validator)
	return s.observe("RemoveValidator", logrus.Fields{"caller": caller.Hex(), "validator": validator.Hex()}, err)
}

func (s *BridgeService) GrantRole(ctx context.Context, caller common.Address, role bridge.Role, account common.Address) error {
	err := s.core.GrantRole(ctx, caller, role, account)
	return s.observe("GrantRole", logrus.Fields{"caller": caller.Hex(), "role": role, "account": account.Hex()}, err)
}

func (s *BridgeService) RevokeRole(ctx context.Context, caller common.Address, role bridge.Role, account common.Address) error {
	err := s.core.RevokeRole(ctx, caller, role, account)
	return s.observe("RevokeRole", logrus.Fields{"caller": caller.Hex(), "role": role, "account": account.Hex()}, err)
}

func (s *BridgeService) Pause(ctx context.Context, caller common.Address) error {
	return s.observe("Pause", logrus.Fields{"caller": caller.Hex()}, s.core.Pause(ctx, caller))
}

func (s *BridgeService) Unpause(ctx context.Context, caller common.Address) error {
	return s.observe("Unpause", logrus.Fields{"caller": caller.Hex()}, s.core.Unpause(ctx, caller))
}

func (s *BridgeService) SetEmergencyStop(ctx context.Context, caller common.Address, stopped bool) error {
	err := s.core.SetEmergencyStop(ctx, caller, stopped)
	return s.observe("SetEmergencyStop", logrus.Fields{"caller": caller.Hex(), "stopped": stopped}, err)
}

// ListTransfers paged transfer history from the database
func (s *BridgeService) ListTransfers(ctx context.Context, filter repository.TransferFilter) ([]bridge.Transfer, int64, error) {
	if s.transfers == nil {
		return nil, 0, ErrHistoryUnavailable
	}
	records, total, err := s.transfers.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list transfers: %w", err)
	}
	out := make([]bridge.Transfer, 0, len(records))
	for _, rec := range records {
		t, err := rec.ToTransfer()
		if err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	return out, total, nil
}

// FailureReason reason recorded by MarkFailed, empty when none
func (s *BridgeService) FailureReason(ctx context.Context, id uint64) (string, error) {
	if s.transfers == nil {
		return "", ErrHistoryUnavailable
	}
	rec, err := s.transfers.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return rec.FailureReason, nil
}

// TransferHistory every event recorded for a transfer, oldest first
func (s *BridgeService) TransferHistory(ctx context.Context, id uint64) ([]*models.EventLog, error) {
	if s.events == nil {
		return nil, ErrHistoryUnavailable
	}
	return s.events.ByTransfer(ctx, id)
}

// ListEvents paged event log, newest first
func (s *BridgeService) ListEvents(ctx context.Context, filter repository.EventFilter) ([]*models.EventLog, int64, error) {
	if s.events == nil {
		return nil, 0, ErrHistoryUnavailable
	}
	return s.events.List(ctx, filter)
}

// ConfirmationRecords persisted confirmations of a transfer, with the proofs validators submitted
func (s *BridgeService) ConfirmationRecords(ctx context.Context, id uint64) ([]*models.ConfirmationRecord, error) {
	if s.transfers == nil {
		return nil, ErrHistoryUnavailable
	}
	return s.transfers.ListConfirmations(ctx, id)
}

// TransferStats number of persisted transfers per status
func (s *BridgeService) TransferStats(ctx context.Context) (map[string]int64, error) {
	if s.transfers == nil {
		return nil, ErrHistoryUnavailable
	}
	return s.transfers.CountByStatus(ctx)
}

func amountField(v *uint256.Int) string {
	if v == nil {
		return "<nil>"
	}
	return v.Dec()
}
