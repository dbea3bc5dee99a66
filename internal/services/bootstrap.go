package services

import (
	"context"
	"fmt"

	"bridge-backend/internal/bridge"
	"bridge-backend/internal/config"
	"bridge-backend/internal/repository"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// StateSource loads and saves the full bridge state
type StateSource interface {
	Load(ctx context.Context) (bridge.State, bool, error)
	Save(ctx context.Context, st bridge.State, updatedBy string) error
}

// BridgeAware collaborators that need the bridge once it exists
type BridgeAware interface {
	Attach(b *bridge.Bridge)
}

// BootstrapParams inputs of LoadOrBootstrap
type BootstrapParams struct {
	Config config.BridgeConfig
	Store  StateSource // nil keeps state in memory only
	Ledger bridge.TokenLedger
	Attach []BridgeAware
	Opts   []bridge.Option
	Logger *logrus.Logger
}

// LoadOrBootstrap restores the bridge from the store, or on first boot creates it
// from configuration and registers the seeded chains, routes and fees.
func LoadOrBootstrap(ctx context.Context, p BootstrapParams) (*bridge.Bridge, error) {
	coreCfg, err := p.Config.CoreConfig()
	if err != nil {
		return nil, err
	}

	if p.Store != nil {
		st, found, err := p.Store.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("load bridge state: %w", err)
		}
		if found {
			b, err := bridge.Restore(coreCfg, st, p.Ledger, p.Opts...)
			if err != nil {
				return nil, fmt.Errorf("restore bridge state: %w", err)
			}
			attach(b, p.Attach)
			p.Logger.WithFields(logrus.Fields{
				"transfers":        len(st.Transfers),
				"chains":           len(st.Chains),
				"routes":           len(st.Routes),
				"next_transfer_id": b.NextTransferID(),
			}).Info("✅ Bridge state restored from database")
			return b, nil
		}
	}

	b, err := bridge.New(coreCfg, p.Ledger, p.Opts...)
	if err != nil {
		return nil, err
	}
	attach(b, p.Attach)
	p.Logger.Info("🚀 No persisted bridge state, bootstrapping from configuration")

	seeds, err := p.Config.Seeds()
	if err != nil {
		return nil, err
	}
	if err := applySeeds(ctx, b, coreCfg.Admin, seeds); err != nil {
		return nil, err
	}
	if err := mintDevBalances(ctx, p.Ledger, seeds.Mints, p.Logger); err != nil {
		return nil, err
	}

	if p.Store != nil {
		// bootstrap roles are not announced by events, persist the whole state once
		if err := p.Store.Save(ctx, b.Snapshot(), "bootstrap"); err != nil {
			return nil, fmt.Errorf("save bootstrap state: %w", err)
		}
	}
	p.Logger.WithFields(logrus.Fields{
		"chains": len(seeds.Chains),
		"routes": len(seeds.Routes),
		"fees":   len(seeds.Fees),
	}).Info("✅ Bridge bootstrapped")
	return b, nil
}

func attach(b *bridge.Bridge, targets []BridgeAware) {
	for _, t := range targets {
		t.Attach(b)
	}
}

func applySeeds(ctx context.Context, b *bridge.Bridge, admin common.Address, seeds *config.Seeds) error {
	for _, c := range seeds.Chains {
		if err := b.AddChain(ctx, admin, c.ChainID, c.Name, c.Min, c.Max); err != nil {
			return fmt.Errorf("seed chain %d: %w", c.ChainID, err)
		}
	}
	for _, r := range seeds.Routes {
		if err := b.AddAssetRoute(ctx, admin, r.Asset, r.Destination, r.DailyLimit); err != nil {
			return fmt.Errorf("seed route %s/%d: %w", r.Asset.Hex(), r.Destination, err)
		}
	}
	for _, f := range seeds.Fees {
		if err := b.UpdateBridgeFee(ctx, admin, f.Source, f.Destination, f.Fee); err != nil {
			return fmt.Errorf("seed fee %d->%d: %w", f.Source, f.Destination, err)
		}
	}
	return nil
}

func mintDevBalances(ctx context.Context, ledger bridge.TokenLedger, mints []config.SeedMint, logger *logrus.Logger) error {
	for _, m := range mints {
		var err error
		switch l := ledger.(type) {
		case *bridge.MemoryLedger:
			err = l.Mint(m.Asset, m.Holder, m.Amount)
		case *repository.BalanceLedger:
			err = l.Mint(ctx, m.Asset, m.Holder, m.Amount)
		default:
			return fmt.Errorf("ledger %T does not support dev mints", ledger)
		}
		if err != nil {
			return fmt.Errorf("dev mint %s to %s: %w", m.Amount.Dec(), m.Holder.Hex(), err)
		}
		logger.Warnf("🧪 Dev mint: %s of %s to %s", m.Amount.Dec(), m.Asset.Hex(), m.Holder.Hex())
	}
	return nil
}
