package repository

import (
	"context"
	"fmt"
	"strconv"

	"bridge-backend/internal/bridge"
	"bridge-backend/internal/models"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"
)

// StateStore loads and saves a whole bridge.State across the bridge tables
type StateStore struct {
	db *gorm.DB
}

func NewStateStore(db *gorm.DB) *StateStore {
	return &StateStore{db: db}
}

// Load reads the persisted state. found is false when no role holder exists,
// which means the database was never bootstrapped.
func (s *StateStore) Load(ctx context.Context) (st bridge.State, found bool, err error) {
	registry := NewRegistryRepository(s.db)
	transfers := NewTransferRepository(s.db)
	configs := NewConfigRepository(s.db)

	roles, err := registry.Roles(ctx)
	if err != nil {
		return st, false, fmt.Errorf("load roles: %w", err)
	}
	if len(roles) == 0 {
		return st, false, nil
	}
	for _, rec := range roles {
		role := bridge.Role(rec.Role)
		if !role.Valid() {
			return st, false, fmt.Errorf("load roles: unknown role %q", rec.Role)
		}
		st.Roles = append(st.Roles, bridge.RoleAssignment{Role: role, Account: common.HexToAddress(rec.Account)})
	}

	chains, err := registry.Chains(ctx)
	if err != nil {
		return st, false, fmt.Errorf("load chains: %w", err)
	}
	for _, rec := range chains {
		chain, err := rec.ToChain()
		if err != nil {
			return st, false, err
		}
		st.Chains = append(st.Chains, chain)
	}

	routes, err := registry.Routes(ctx)
	if err != nil {
		return st, false, fmt.Errorf("load routes: %w", err)
	}
	for _, rec := range routes {
		route, err := rec.ToAssetRoute()
		if err != nil {
			return st, false, err
		}
		st.Routes = append(st.Routes, route)
	}

	fees, err := registry.Fees(ctx)
	if err != nil {
		return st, false, fmt.Errorf("load fees: %w", err)
	}
	for _, rec := range fees {
		fee, err := models.ParseAmount(rec.Fee)
		if err != nil {
			return st, false, fmt.Errorf("fee %d->%d: %w", rec.SourceChain, rec.DestinationChain, err)
		}
		st.Fees = append(st.Fees, bridge.FeeEntry{SourceChain: rec.SourceChain, DestinationChain: rec.DestinationChain, Fee: fee})
	}

	records, err := transfers.All(ctx)
	if err != nil {
		return st, false, fmt.Errorf("load transfers: %w", err)
	}
	for _, rec := range records {
		t, err := rec.ToTransfer()
		if err != nil {
			return st, false, err
		}
		st.Transfers = append(st.Transfers, t)
	}

	confirmations, err := transfers.AllConfirmations(ctx)
	if err != nil {
		return st, false, fmt.Errorf("load confirmations: %w", err)
	}
	for _, rec := range confirmations {
		st.Confirmations = append(st.Confirmations, bridge.Confirmation{
			TransferID: rec.TransferID,
			Validator:  common.HexToAddress(rec.Validator),
		})
	}

	if st.NextTransferID, err = configs.GetUint64(ctx, models.ConfigKeyNextTransferID); err != nil {
		return st, false, fmt.Errorf("load %s: %w", models.ConfigKeyNextTransferID, err)
	}
	if st.Paused, err = configs.GetBool(ctx, models.ConfigKeyPaused); err != nil {
		return st, false, fmt.Errorf("load %s: %w", models.ConfigKeyPaused, err)
	}
	if st.Stopped, err = configs.GetBool(ctx, models.ConfigKeyEmergencyStop); err != nil {
		return st, false, fmt.Errorf("load %s: %w", models.ConfigKeyEmergencyStop, err)
	}
	return st, true, nil
}

// Save writes every part of st in one transaction
func (s *StateStore) Save(ctx context.Context, st bridge.State, updatedBy string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		registry := NewRegistryRepository(tx)
		transfers := NewTransferRepository(tx)
		configs := NewConfigRepository(tx)

		for _, chain := range st.Chains {
			if err := registry.UpsertChain(ctx, models.NewChainRecord(chain)); err != nil {
				return fmt.Errorf("save chain %d: %w", chain.ID, err)
			}
		}
		for _, route := range st.Routes {
			if err := registry.UpsertRoute(ctx, models.NewAssetRouteRecord(route)); err != nil {
				return fmt.Errorf("save route: %w", err)
			}
		}
		for _, fee := range st.Fees {
			rec := &models.FeeRecord{SourceChain: fee.SourceChain, DestinationChain: fee.DestinationChain, Fee: fee.Fee.Dec()}
			if err := registry.UpsertFee(ctx, rec); err != nil {
				return fmt.Errorf("save fee: %w", err)
			}
		}
		for _, role := range st.Roles {
			rec := &models.RoleRecord{Role: string(role.Role), Account: models.AddressString(role.Account), GrantedBy: updatedBy}
			if err := registry.GrantRole(ctx, rec); err != nil {
				return fmt.Errorf("save role: %w", err)
			}
		}
		for _, t := range st.Transfers {
			if err := transfers.Upsert(ctx, models.NewTransferRecord(t)); err != nil {
				return fmt.Errorf("save transfer %d: %w", t.ID, err)
			}
		}
		for _, c := range st.Confirmations {
			rec := &models.ConfirmationRecord{TransferID: c.TransferID, Validator: models.AddressString(c.Validator)}
			if err := transfers.AddConfirmation(ctx, rec); err != nil {
				return fmt.Errorf("save confirmation: %w", err)
			}
		}

		flags := []struct{ key, value string }{
			{models.ConfigKeyNextTransferID, strconv.FormatUint(st.NextTransferID, 10)},
			{models.ConfigKeyPaused, strconv.FormatBool(st.Paused)},
			{models.ConfigKeyEmergencyStop, strconv.FormatBool(st.Stopped)},
		}
		for _, flag := range flags {
			if err := configs.Set(ctx, flag.key, flag.value, updatedBy); err != nil {
				return fmt.Errorf("save %s: %w", flag.key, err)
			}
		}
		return nil
	})
}
