package models

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"bridge-backend/internal/bridge"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Global config keys holding bridge flags
const (
	ConfigKeyPaused         = "paused"
	ConfigKeyEmergencyStop  = "emergency_stop"
	ConfigKeyNextTransferID = "next_transfer_id"
)

// TransferRecord persisted copy of a bridge transfer
// Amounts are stored as decimal strings (max 78 digits for uint256)
type TransferRecord struct {
	ID                uint64     `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Initiator         string     `json:"initiator" gorm:"not null;size:42;index"`
	Recipient         string     `json:"recipient" gorm:"not null;type:text"` // 0x hex of the opaque destination recipient
	Asset             string     `json:"asset" gorm:"not null;size:42;index"`
	Amount            string     `json:"amount" gorm:"not null;size:78"`
	Fee               string     `json:"fee" gorm:"not null;size:78"`
	SourceChain       uint64     `json:"source_chain" gorm:"not null;index"`
	DestinationChain  uint64     `json:"destination_chain" gorm:"not null;index"`
	Status            string     `json:"status" gorm:"not null;size:16;index"`
	ConfirmationCount uint64     `json:"confirmation_count" gorm:"not null"`
	FailureReason     string     `json:"failure_reason,omitempty" gorm:"type:text"`
	CreatedAt         time.Time  `json:"created_at" gorm:"index"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func (TransferRecord) TableName() string { return "bridge_transfers" }

// ConfirmationRecord write-once validator confirmation
type ConfirmationRecord struct {
	ID         uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	TransferID uint64    `json:"transfer_id" gorm:"not null;uniqueIndex:idx_transfer_validator"`
	Validator  string    `json:"validator" gorm:"not null;size:42;uniqueIndex:idx_transfer_validator"`
	Proof      string    `json:"proof,omitempty" gorm:"type:text"`
	CreatedAt  time.Time `json:"created_at"`
}

func (ConfirmationRecord) TableName() string { return "bridge_confirmations" }

// ChainRecord registered chain
type ChainRecord struct {
	ChainID     uint64    `json:"chain_id" gorm:"primaryKey;autoIncrement:false"`
	Name        string    `json:"name" gorm:"not null;size:50"`
	Active      bool      `json:"active" gorm:"not null"`
	MinTransfer string    `json:"min_transfer" gorm:"not null;size:78"`
	MaxTransfer string    `json:"max_transfer" gorm:"not null;size:78"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (ChainRecord) TableName() string { return "bridge_chains" }

// AssetRouteRecord asset route with its rolling window usage
type AssetRouteRecord struct {
	ID               uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	Asset            string    `json:"asset" gorm:"not null;size:42;uniqueIndex:idx_asset_route"`
	DestinationChain uint64    `json:"destination_chain" gorm:"not null;uniqueIndex:idx_asset_route"`
	Active           bool      `json:"active" gorm:"not null"`
	DailyLimit       string    `json:"daily_limit" gorm:"not null;size:78"`
	DailyTransferred string    `json:"daily_transferred" gorm:"not null;size:78"`
	WindowStart      time.Time `json:"window_start"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (AssetRouteRecord) TableName() string { return "bridge_asset_routes" }

// FeeRecord flat fee per chain pair
type FeeRecord struct {
	ID               uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	SourceChain      uint64    `json:"source_chain" gorm:"not null;uniqueIndex:idx_fee_route"`
	DestinationChain uint64    `json:"destination_chain" gorm:"not null;uniqueIndex:idx_fee_route"`
	Fee              string    `json:"fee" gorm:"not null;size:78"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (FeeRecord) TableName() string { return "bridge_fees" }

// RoleRecord role holder
type RoleRecord struct {
	ID        uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	Role      string    `json:"role" gorm:"not null;size:16;uniqueIndex:idx_role_account"`
	Account   string    `json:"account" gorm:"not null;size:42;uniqueIndex:idx_role_account"`
	GrantedBy string    `json:"granted_by" gorm:"size:42"`
	CreatedAt time.Time `json:"created_at"`
}

func (RoleRecord) TableName() string { return "bridge_roles" }

// GlobalConfig stores global system configuration (bridge flags and counters)
type GlobalConfig struct {
	ID          uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	ConfigKey   string    `json:"config_key" gorm:"uniqueIndex;not null;size:50"` // e.g., "paused"
	ConfigValue string    `json:"config_value" gorm:"not null;size:200"`          // Configuration value
	Description string    `json:"description" gorm:"size:200"`                    // Description of this config
	UpdatedBy   string    `json:"updated_by" gorm:"size:50"`                      // Who updated this config
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// EventLog append-only audit trail of emitted bridge events
type EventLog struct {
	ID         string    `json:"id" gorm:"primaryKey;size:36"` // uuid, also used as the NATS message id
	Name       string    `json:"name" gorm:"not null;size:64;index"`
	TransferID *uint64   `json:"transfer_id,omitempty" gorm:"index"`
	Payload    JSONB     `json:"payload" gorm:"type:jsonb"`
	CreatedAt  time.Time `json:"created_at" gorm:"index"`
}

func (EventLog) TableName() string { return "bridge_event_logs" }

// TokenBalance ledger balance used by the database backed TokenLedger
type TokenBalance struct {
	ID        uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	Asset     string    `json:"asset" gorm:"not null;size:42;uniqueIndex:idx_asset_holder"`
	Holder    string    `json:"holder" gorm:"not null;size:42;uniqueIndex:idx_asset_holder"`
	Amount    string    `json:"amount" gorm:"not null;size:78"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (TokenBalance) TableName() string { return "bridge_token_balances" }

// AllModels tables managed by AutoMigrate
func AllModels() []interface{} {
	return []interface{}{
		&TransferRecord{},
		&ConfirmationRecord{},
		&ChainRecord{},
		&AssetRouteRecord{},
		&FeeRecord{},
		&RoleRecord{},
		&GlobalConfig{},
		&EventLog{},
		&TokenBalance{},
	}
}

// AddressString canonical lower-case form used in every address column
func AddressString(a common.Address) string {
	return strings.ToLower(a.Hex())
}

// NewTransferRecord converts a bridge transfer
func NewTransferRecord(t bridge.Transfer) *TransferRecord {
	rec := &TransferRecord{
		ID:                t.ID,
		Initiator:         AddressString(t.Initiator),
		Recipient:         "0x" + hex.EncodeToString(t.Recipient),
		Asset:             AddressString(t.Asset),
		Amount:            amountString(t.Amount),
		Fee:               amountString(t.Fee),
		SourceChain:       t.SourceChain,
		DestinationChain:  t.DestinationChain,
		Status:            t.Status.String(),
		ConfirmationCount: t.ConfirmationCount,
		CreatedAt:         t.CreatedAt,
	}
	if !t.CompletedAt.IsZero() {
		completed := t.CompletedAt
		rec.CompletedAt = &completed
	}
	return rec
}

// ToTransfer converts back to the bridge representation
func (r *TransferRecord) ToTransfer() (bridge.Transfer, error) {
	status, err := bridge.ParseStatus(r.Status)
	if err != nil {
		return bridge.Transfer{}, err
	}
	amount, err := ParseAmount(r.Amount)
	if err != nil {
		return bridge.Transfer{}, fmt.Errorf("transfer %d amount: %w", r.ID, err)
	}
	fee, err := ParseAmount(r.Fee)
	if err != nil {
		return bridge.Transfer{}, fmt.Errorf("transfer %d fee: %w", r.ID, err)
	}
	recipient, err := hex.DecodeString(strings.TrimPrefix(r.Recipient, "0x"))
	if err != nil {
		return bridge.Transfer{}, fmt.Errorf("transfer %d recipient: %w", r.ID, err)
	}
	t := bridge.Transfer{
		ID:                r.ID,
		Initiator:         common.HexToAddress(r.Initiator),
		Recipient:         recipient,
		Asset:             common.HexToAddress(r.Asset),
		Amount:            amount,
		Fee:               fee,
		SourceChain:       r.SourceChain,
		DestinationChain:  r.DestinationChain,
		Status:            status,
		CreatedAt:         r.CreatedAt.UTC(),
		ConfirmationCount: r.ConfirmationCount,
	}
	if r.CompletedAt != nil {
		t.CompletedAt = r.CompletedAt.UTC()
	}
	return t, nil
}

func NewChainRecord(c bridge.Chain) *ChainRecord {
	return &ChainRecord{
		ChainID:     c.ID,
		Name:        c.Name,
		Active:      c.Active,
		MinTransfer: amountString(c.MinTransfer),
		MaxTransfer: amountString(c.MaxTransfer),
	}
}

func (r *ChainRecord) ToChain() (bridge.Chain, error) {
	lo, err := ParseAmount(r.MinTransfer)
	if err != nil {
		return bridge.Chain{}, fmt.Errorf("chain %d min: %w", r.ChainID, err)
	}
	hi, err := ParseAmount(r.MaxTransfer)
	if err != nil {
		return bridge.Chain{}, fmt.Errorf("chain %d max: %w", r.ChainID, err)
	}
	return bridge.Chain{ID: r.ChainID, Name: r.Name, Active: r.Active, MinTransfer: lo, MaxTransfer: hi}, nil
}

func NewAssetRouteRecord(r bridge.AssetRoute) *AssetRouteRecord {
	return &AssetRouteRecord{
		Asset:            AddressString(r.Asset),
		DestinationChain: r.DestinationChain,
		Active:           r.Active,
		DailyLimit:       amountString(r.DailyLimit),
		DailyTransferred: amountString(r.DailyTransferred),
		WindowStart:      r.WindowStart,
	}
}

func (r *AssetRouteRecord) ToAssetRoute() (bridge.AssetRoute, error) {
	limit, err := ParseAmount(r.DailyLimit)
	if err != nil {
		return bridge.AssetRoute{}, fmt.Errorf("route %s/%d limit: %w", r.Asset, r.DestinationChain, err)
	}
	used, err := ParseAmount(r.DailyTransferred)
	if err != nil {
		return bridge.AssetRoute{}, fmt.Errorf("route %s/%d usage: %w", r.Asset, r.DestinationChain, err)
	}
	return bridge.AssetRoute{
		Asset:            common.HexToAddress(r.Asset),
		DestinationChain: r.DestinationChain,
		Active:           r.Active,
		DailyLimit:       limit,
		DailyTransferred: used,
		WindowStart:      r.WindowStart.UTC(),
	}, nil
}

func amountString(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

// ParseAmount parses a decimal amount column
func ParseAmount(v string) (*uint256.Int, error) {
	if v == "" {
		return new(uint256.Int), nil
	}
	return uint256.FromDecimal(v)
}
