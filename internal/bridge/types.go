package bridge

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

// Status transfer lifecycle state
type Status uint8

const (
	StatusPending Status = iota
	StatusCompleted
	StatusCancelled
	StatusFailed
)

var statusNames = map[Status]string{
	StatusPending:   "pending",
	StatusCompleted: "completed",
	StatusCancelled: "cancelled",
	StatusFailed:    "failed",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// IsTerminal terminal states never transition again
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusFailed
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseStatus parses the lower-case status name
func ParseStatus(v string) (Status, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	for status, name := range statusNames {
		if name == v {
			return status, nil
		}
	}
	return 0, fmt.Errorf("unknown transfer status %q", v)
}

// Role access control role
type Role string

const (
	RoleAdmin     Role = "admin"
	RolePauser    Role = "pauser"
	RoleValidator Role = "validator"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RolePauser, RoleValidator:
		return true
	}
	return false
}

// Chain a registered chain and its per-transfer bounds
type Chain struct {
	ID          uint64       `json:"chain_id"`
	Name        string       `json:"name"`
	Active      bool         `json:"active"`
	MinTransfer *uint256.Int `json:"min_transfer"`
	MaxTransfer *uint256.Int `json:"max_transfer"`
}

func (c *Chain) clone() Chain {
	out := *c
	out.MinTransfer = cloneAmount(c.MinTransfer)
	out.MaxTransfer = cloneAmount(c.MaxTransfer)
	return out
}

// RouteKey identifies an asset route
type RouteKey struct {
	Asset            common.Address
	DestinationChain uint64
}

// AssetRoute enablement and rolling daily limit for an asset towards one destination chain
type AssetRoute struct {
	Asset            common.Address `json:"asset"`
	DestinationChain uint64         `json:"destination_chain"`
	Active           bool           `json:"active"`
	DailyLimit       *uint256.Int   `json:"daily_limit"`
	DailyTransferred *uint256.Int   `json:"daily_transferred"`
	WindowStart      time.Time      `json:"window_start"`
}

func (r *AssetRoute) key() RouteKey {
	return RouteKey{Asset: r.Asset, DestinationChain: r.DestinationChain}
}

func (r *AssetRoute) clone() AssetRoute {
	out := *r
	out.DailyLimit = cloneAmount(r.DailyLimit)
	out.DailyTransferred = cloneAmount(r.DailyTransferred)
	return out
}

// FeeKey identifies a fee table entry
type FeeKey struct {
	SourceChain      uint64
	DestinationChain uint64
}

// Transfer a single cross-chain transfer record
type Transfer struct {
	ID                uint64         `json:"id"`
	Initiator         common.Address `json:"initiator"`
	Recipient         hexutil.Bytes  `json:"recipient"`
	Asset             common.Address `json:"asset"`
	Amount            *uint256.Int   `json:"amount"`
	Fee               *uint256.Int   `json:"fee"`
	SourceChain       uint64         `json:"source_chain"`
	DestinationChain  uint64         `json:"destination_chain"`
	Status            Status         `json:"status"`
	CreatedAt         time.Time      `json:"created_at"`
	CompletedAt       time.Time      `json:"completed_at"`
	ConfirmationCount uint64         `json:"confirmation_count"`
}

// Total amount plus fee, the value held in custody for the transfer
func (t *Transfer) Total() *uint256.Int {
	return new(uint256.Int).Add(t.Amount, t.Fee)
}

func (t *Transfer) clone() Transfer {
	out := *t
	out.Recipient = append(hexutil.Bytes(nil), t.Recipient...)
	out.Amount = cloneAmount(t.Amount)
	out.Fee = cloneAmount(t.Fee)
	return out
}

// TransferRequest user input for CreateTransfer
type TransferRequest struct {
	SourceChain      uint64
	DestinationChain uint64
	Asset            common.Address
	Amount           *uint256.Int
	Recipient        []byte
}

func cloneAmount(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v.Clone()
}

func isZeroAddress(a common.Address) bool {
	return a == (common.Address{})
}
