package bridge

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// RateLimitWindow length of the rolling daily window
const RateLimitWindow = 24 * time.Hour

// usageAt usage and window start of the route as seen at now, with an expired window reset
func (r *AssetRoute) usageAt(now time.Time) (*uint256.Int, time.Time) {
	if !now.Before(r.WindowStart.Add(RateLimitWindow)) {
		return new(uint256.Int), now
	}
	return r.DailyTransferred.Clone(), r.WindowStart
}

// checkRateLimit returns the usage and window start to commit if amount fits the daily limit.
// Nothing is mutated.
func checkRateLimit(r *AssetRoute, amount *uint256.Int, now time.Time) (*uint256.Int, time.Time, error) {
	used, start := r.usageAt(now)
	candidate, overflow := new(uint256.Int).AddOverflow(used, amount)
	if overflow || candidate.Gt(r.DailyLimit) {
		return nil, time.Time{}, fmt.Errorf("%w: used %s + %s > limit %s",
			ErrDailyLimitExceeded, used.Dec(), amount.Dec(), r.DailyLimit.Dec())
	}
	return candidate, start, nil
}

// RemainingDailyCapacity amount that can still move over the route in the current window
func (b *Bridge) RemainingDailyCapacity(asset common.Address, destChainID uint64) *uint256.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	route, ok := b.st.routes[RouteKey{Asset: asset, DestinationChain: destChainID}]
	if !ok {
		return new(uint256.Int)
	}
	used, _ := route.usageAt(b.now())
	if used.Gt(route.DailyLimit) {
		return new(uint256.Int)
	}
	return new(uint256.Int).Sub(route.DailyLimit, used)
}
