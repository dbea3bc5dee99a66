package bridge

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"
)

// AddChain registers a chain or updates an existing one, re-activating it
func (b *Bridge) AddChain(ctx context.Context, caller common.Address, chainID uint64, name string, minTransfer, maxTransfer *uint256.Int) error {
	const op = "AddChain"
	ctx, exit, err := b.enter(ctx, op)
	if err != nil {
		return err
	}
	defer exit()

	name = strings.TrimSpace(name)
	b.mu.Lock()
	if err := b.requireRole(op, caller, RoleAdmin); err != nil {
		b.mu.Unlock()
		return err
	}
	if chainID == 0 || name == "" || minTransfer == nil || maxTransfer == nil {
		b.mu.Unlock()
		return opErr(op, fmt.Errorf("%w: chain id and name are required", ErrInvalidChain))
	}
	if minTransfer.Gt(maxTransfer) {
		b.mu.Unlock()
		return opErr(op, fmt.Errorf("%w: min %s exceeds max %s", ErrInvalidChain, minTransfer.Dec(), maxTransfer.Dec()))
	}
	ev := ChainAdded{ChainID: chainID, ChainName: name, MinTransfer: minTransfer.Clone(), MaxTransfer: maxTransfer.Clone()}
	if prev, ok := b.st.chains[chainID]; ok {
		ev.Updated = true
		ev.PreviousMinTransfer = prev.MinTransfer.Clone()
		ev.PreviousMaxTransfer = prev.MaxTransfer.Clone()
	}
	b.st.chains[chainID] = &Chain{
		ID:          chainID,
		Name:        name,
		Active:      true,
		MinTransfer: minTransfer.Clone(),
		MaxTransfer: maxTransfer.Clone(),
	}
	b.mu.Unlock()

	b.logger.WithFields(logrus.Fields{
		"chain_id": chainID,
		"name":     name,
		"min":      minTransfer.Dec(),
		"max":      maxTransfer.Dec(),
	}).Info("🔗 Chain registered")
	b.emit(ctx, ev)
	return nil
}

// SetChainActive activates or deactivates a registered chain
func (b *Bridge) SetChainActive(ctx context.Context, caller common.Address, chainID uint64, active bool) error {
	const op = "SetChainActive"
	ctx, exit, err := b.enter(ctx, op)
	if err != nil {
		return err
	}
	defer exit()

	b.mu.Lock()
	if err := b.requireRole(op, caller, RoleAdmin); err != nil {
		b.mu.Unlock()
		return err
	}
	chain, ok := b.st.chains[chainID]
	if !ok {
		b.mu.Unlock()
		return opErr(op, fmt.Errorf("%w: %d", ErrChainNotFound, chainID))
	}
	chain.Active = active
	b.mu.Unlock()

	b.emit(ctx, ChainStatusChanged{ChainID: chainID, Active: active})
	return nil
}

// AddAssetRoute enables asset towards destChainID with a daily limit.
// Updating an existing route keeps its current window usage.
func (b *Bridge) AddAssetRoute(ctx context.Context, caller, asset common.Address, destChainID uint64, dailyLimit *uint256.Int) error {
	const op = "AddAssetRoute"
	ctx, exit, err := b.enter(ctx, op)
	if err != nil {
		return err
	}
	defer exit()

	b.mu.Lock()
	if err := b.requireRole(op, caller, RoleAdmin); err != nil {
		b.mu.Unlock()
		return err
	}
	if isZeroAddress(asset) {
		b.mu.Unlock()
		return opErr(op, ErrInvalidAsset)
	}
	if dailyLimit == nil || dailyLimit.IsZero() {
		b.mu.Unlock()
		return opErr(op, ErrInvalidLimit)
	}
	if _, ok := b.st.chains[destChainID]; !ok {
		b.mu.Unlock()
		return opErr(op, fmt.Errorf("%w: %d", ErrChainNotFound, destChainID))
	}
	key := RouteKey{Asset: asset, DestinationChain: destChainID}
	ev := AssetRouteAdded{Asset: asset, DestinationChain: destChainID, DailyLimit: dailyLimit.Clone()}
	if route, ok := b.st.routes[key]; ok {
		ev.Updated = true
		ev.PreviousDailyLimit = route.DailyLimit.Clone()
		route.Active = true
		route.DailyLimit = dailyLimit.Clone()
	} else {
		b.st.routes[key] = &AssetRoute{
			Asset:            asset,
			DestinationChain: destChainID,
			Active:           true,
			DailyLimit:       dailyLimit.Clone(),
			DailyTransferred: new(uint256.Int),
			WindowStart:      b.now(),
		}
	}
	b.mu.Unlock()

	b.logger.WithFields(logrus.Fields{
		"asset":       asset.Hex(),
		"destination": destChainID,
		"daily_limit": dailyLimit.Dec(),
	}).Info("🪙 Asset route registered")
	b.emit(ctx, ev)
	return nil
}

func (b *Bridge) SetAssetRouteActive(ctx context.Context, caller, asset common.Address, destChainID uint64, active bool) error {
	const op = "SetAssetRouteActive"
	ctx, exit, err := b.enter(ctx, op)
	if err != nil {
		return err
	}
	defer exit()

	b.mu.Lock()
	if err := b.requireRole(op, caller, RoleAdmin); err != nil {
		b.mu.Unlock()
		return err
	}
	route, ok := b.st.routes[RouteKey{Asset: asset, DestinationChain: destChainID}]
	if !ok {
		b.mu.Unlock()
		return opErr(op, fmt.Errorf("%w: %s -> %d", ErrRouteNotFound, asset.Hex(), destChainID))
	}
	route.Active = active
	b.mu.Unlock()

	b.emit(ctx, AssetRouteStatusChanged{Asset: asset, DestinationChain: destChainID, Active: active})
	return nil
}

// IsChainSupported chain is registered and active
func (b *Bridge) IsChainSupported(chainID uint64) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	chain, ok := b.st.chains[chainID]
	return ok && chain.Active
}

// IsAssetSupported route is registered and active
func (b *Bridge) IsAssetSupported(asset common.Address, destChainID uint64) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	route, ok := b.st.routes[RouteKey{Asset: asset, DestinationChain: destChainID}]
	return ok && route.Active
}

func (b *Bridge) Chain(chainID uint64) (Chain, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	chain, ok := b.st.chains[chainID]
	if !ok {
		return Chain{}, false
	}
	return chain.clone(), true
}

// Chains all registered chains ordered by id
func (b *Bridge) Chains() []Chain {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Chain, 0, len(b.st.chains))
	for _, chain := range b.st.chains {
		out = append(out, chain.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (b *Bridge) AssetRoute(asset common.Address, destChainID uint64) (AssetRoute, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	route, ok := b.st.routes[RouteKey{Asset: asset, DestinationChain: destChainID}]
	if !ok {
		return AssetRoute{}, false
	}
	return route.clone(), true
}

// AssetRoutes all registered routes ordered by asset then destination
func (b *Bridge) AssetRoutes() []AssetRoute {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]AssetRoute, 0, len(b.st.routes))
	for _, route := range b.st.routes {
		out = append(out, route.clone())
	}
	sortRoutes(out)
	return out
}

func sortRoutes(routes []AssetRoute) {
	sort.Slice(routes, func(i, j int) bool {
		if c := routes[i].Asset.Cmp(routes[j].Asset); c != 0 {
			return c < 0
		}
		return routes[i].DestinationChain < routes[j].DestinationChain
	})
}
