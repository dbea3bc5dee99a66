package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"bridge-backend/internal/bridge"
	"bridge-backend/internal/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BalanceLedger is a bridge.TokenLedger kept in bridge_token_balances.
// Every transfer runs in one transaction holding row locks on both balances.
type BalanceLedger struct {
	db *gorm.DB
}

var _ bridge.TokenLedger = (*BalanceLedger)(nil)

func NewBalanceLedger(db *gorm.DB) *BalanceLedger {
	return &BalanceLedger{db: db}
}

// BalanceOf returns 0 for unknown holders
func (l *BalanceLedger) BalanceOf(ctx context.Context, asset, holder common.Address) (*uint256.Int, error) {
	conn := l.db.WithContext(ctx)
	if tx, ok := txFrom(ctx); ok {
		conn = tx
	}
	rec, err := findBalance(conn, asset, holder, false)
	if err != nil {
		return nil, err
	}
	return balanceAmount(rec)
}

// Transfer moves amount from one holder to another. Inside a StateJournal
// commit it joins the journal's transaction.
func (l *BalanceLedger) Transfer(ctx context.Context, asset, from, to common.Address, amount *uint256.Int) error {
	if tx, ok := txFrom(ctx); ok {
		return l.transfer(tx, asset, from, to, amount)
	}
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return l.transfer(tx, asset, from, to, amount)
	})
}

func (l *BalanceLedger) transfer(tx *gorm.DB, asset, from, to common.Address, amount *uint256.Int) error {
	// lock in address order so concurrent opposite transfers cannot deadlock
	first, second := from, to
	if bytes.Compare(first.Bytes(), second.Bytes()) > 0 {
		first, second = second, first
	}
	locked := make(map[common.Address]*uint256.Int, 2)
	for _, holder := range []common.Address{first, second} {
		if _, ok := locked[holder]; ok {
			continue
		}
		rec, err := findBalance(tx, asset, holder, true)
		if err != nil {
			return err
		}
		bal, err := balanceAmount(rec)
		if err != nil {
			return err
		}
		locked[holder] = bal
	}

	src := locked[from]
	if src.Lt(amount) {
		return fmt.Errorf("%w: %s holds %s, needs %s", bridge.ErrInsufficientBalance, from.Hex(), src.Dec(), amount.Dec())
	}
	if from == to {
		return nil
	}
	dst, overflow := new(uint256.Int).AddOverflow(locked[to], amount)
	if overflow {
		return bridge.ErrAmountOverflow
	}
	if err := writeBalance(tx, asset, from, new(uint256.Int).Sub(src, amount)); err != nil {
		return err
	}
	return writeBalance(tx, asset, to, dst)
}

// Mint credits holder, used for development seeding and test setups
func (l *BalanceLedger) Mint(ctx context.Context, asset, holder common.Address, amount *uint256.Int) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := findBalance(tx, asset, holder, true)
		if err != nil {
			return err
		}
		bal, err := balanceAmount(rec)
		if err != nil {
			return err
		}
		sum, overflow := new(uint256.Int).AddOverflow(bal, amount)
		if overflow {
			return bridge.ErrAmountOverflow
		}
		return writeBalance(tx, asset, holder, sum)
	})
}

func findBalance(db *gorm.DB, asset, holder common.Address, forUpdate bool) (*models.TokenBalance, error) {
	query := db
	if forUpdate {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var rec models.TokenBalance
	err := query.
		Where("asset = ? AND holder = ?", models.AddressString(asset), models.AddressString(holder)).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func balanceAmount(rec *models.TokenBalance) (*uint256.Int, error) {
	if rec == nil {
		return new(uint256.Int), nil
	}
	v, err := models.ParseAmount(rec.Amount)
	if err != nil {
		return nil, fmt.Errorf("balance %s/%s: %w", rec.Asset, rec.Holder, err)
	}
	return v, nil
}

func writeBalance(tx *gorm.DB, asset, holder common.Address, amount *uint256.Int) error {
	rec := models.TokenBalance{
		Asset:     models.AddressString(asset),
		Holder:    models.AddressString(holder),
		Amount:    amount.Dec(),
		UpdatedAt: time.Now(),
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "asset"}, {Name: "holder"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount", "updated_at"}),
	}).Create(&rec).Error
}
