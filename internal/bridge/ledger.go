package bridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// TokenLedger is the asset ledger custody moves funds on.
// Implementations receive the ctx of the bridge call and must pass it on to
// any callback that may reach back into the bridge.
type TokenLedger interface {
	BalanceOf(ctx context.Context, asset, holder common.Address) (*uint256.Int, error)
	Transfer(ctx context.Context, asset, from, to common.Address, amount *uint256.Int) error
}

// TransferHook runs after a MemoryLedger transfer has been applied.
// Returning an error rolls the transfer back.
type TransferHook func(ctx context.Context, asset, from, to common.Address, amount *uint256.Int) error

// MemoryLedger in-process TokenLedger
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[common.Address]map[common.Address]*uint256.Int
	hook     TransferHook
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		balances: make(map[common.Address]map[common.Address]*uint256.Int),
	}
}

// OnTransfer installs a hook invoked after each transfer, outside the ledger lock
func (l *MemoryLedger) OnTransfer(hook TransferHook) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hook = hook
}

// Mint credits holder with amount of asset
func (l *MemoryLedger) Mint(asset, holder common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	bal := l.balance(asset, holder)
	sum, overflow := new(uint256.Int).AddOverflow(bal, amount)
	if overflow {
		return ErrAmountOverflow
	}
	l.set(asset, holder, sum)
	return nil
}

func (l *MemoryLedger) BalanceOf(_ context.Context, asset, holder common.Address) (*uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance(asset, holder).Clone(), nil
}

func (l *MemoryLedger) Transfer(ctx context.Context, asset, from, to common.Address, amount *uint256.Int) error {
	if err := l.move(asset, from, to, amount); err != nil {
		return err
	}

	l.mu.Lock()
	hook := l.hook
	l.mu.Unlock()
	if hook == nil {
		return nil
	}
	if err := hook(ctx, asset, from, to, amount); err != nil {
		if rbErr := l.move(asset, to, from, amount); rbErr != nil {
			return fmt.Errorf("transfer hook: %w (rollback failed: %v)", err, rbErr)
		}
		return fmt.Errorf("transfer hook: %w", err)
	}
	return nil
}

func (l *MemoryLedger) move(asset, from, to common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	fromBal := l.balance(asset, from)
	if fromBal.Lt(amount) {
		return fmt.Errorf("%w: %s holds %s of %s, needs %s",
			ErrInsufficientBalance, from.Hex(), fromBal.Dec(), asset.Hex(), amount.Dec())
	}
	if from == to {
		return nil
	}
	toBal := l.balance(asset, to)
	credited, overflow := new(uint256.Int).AddOverflow(toBal, amount)
	if overflow {
		return ErrAmountOverflow
	}
	l.set(asset, from, new(uint256.Int).Sub(fromBal, amount))
	l.set(asset, to, credited)
	return nil
}

func (l *MemoryLedger) balance(asset, holder common.Address) *uint256.Int {
	if holders, ok := l.balances[asset]; ok {
		if bal, ok := holders[holder]; ok {
			return bal
		}
	}
	return new(uint256.Int)
}

func (l *MemoryLedger) set(asset, holder common.Address, amount *uint256.Int) {
	holders, ok := l.balances[asset]
	if !ok {
		holders = make(map[common.Address]*uint256.Int)
		l.balances[asset] = holders
	}
	holders[holder] = amount
}
