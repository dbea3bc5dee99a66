package dto

import (
	"time"

	"bridge-backend/internal/bridge"
)

// ==================== Transfer DTOs ====================
// Amounts are base-10 strings, recipient and proof are 0x hex.

// CreateTransferRequest POST /api/transfers
type CreateTransferRequest struct {
	SourceChain      uint64 `json:"source_chain"`
	DestinationChain uint64 `json:"destination_chain"`
	Asset            string `json:"asset" binding:"required"`
	Amount           string `json:"amount" binding:"required"`
	Recipient        string `json:"recipient"`
}

// ConfirmTransferRequest POST /api/transfers/:id/confirm
type ConfirmTransferRequest struct {
	Proof string `json:"proof"`
}

// FailTransferRequest POST /api/transfers/:id/fail
type FailTransferRequest struct {
	Reason string `json:"reason"`
}

// TransferView transfer plus data only the service layer knows
type TransferView struct {
	bridge.Transfer
	Total         string   `json:"total"`
	Confirmations []string `json:"confirmations"`
	FailureReason string   `json:"failure_reason,omitempty"`
}

// NewTransferView builds the API representation of t
func NewTransferView(t bridge.Transfer, confirmations []string, reason string) TransferView {
	if confirmations == nil {
		confirmations = []string{}
	}
	return TransferView{
		Transfer:      t,
		Total:         t.Total().Dec(),
		Confirmations: confirmations,
		FailureReason: reason,
	}
}

// TransferListResponse GET /api/transfers
type TransferListResponse struct {
	Success   bool              `json:"success"`
	Transfers []bridge.Transfer `json:"transfers"`
	Total     int64             `json:"total"`
	Page      int               `json:"page"`
	PageSize  int               `json:"page_size"`
}

// EventView one persisted bridge event
type EventView struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	EmittedAt time.Time              `json:"emitted_at"`
	Data      map[string]interface{} `json:"data"`
}

// EventListResponse GET /api/events
type EventListResponse struct {
	Success  bool        `json:"success"`
	Events   []EventView `json:"events"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

// ConfirmationView persisted validator confirmation
type ConfirmationView struct {
	Validator   string    `json:"validator"`
	Proof       string    `json:"proof,omitempty"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

// ==================== Admin DTOs ====================

// AddChainRequest POST /api/admin/chains
type AddChainRequest struct {
	ChainID     uint64 `json:"chain_id"`
	Name        string `json:"name"`
	MinTransfer string `json:"min_transfer" binding:"required"`
	MaxTransfer string `json:"max_transfer" binding:"required"`
}

// SetActiveRequest PUT .../status
type SetActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// AddAssetRouteRequest POST /api/admin/routes
type AddAssetRouteRequest struct {
	Asset            string `json:"asset" binding:"required"`
	DestinationChain uint64 `json:"destination_chain"`
	DailyLimit       string `json:"daily_limit" binding:"required"`
}

// UpdateFeeRequest PUT /api/admin/fees
type UpdateFeeRequest struct {
	SourceChain      uint64 `json:"source_chain"`
	DestinationChain uint64 `json:"destination_chain"`
	Fee              string `json:"fee" binding:"required"`
}

// ValidatorRequest POST /api/admin/validators
type ValidatorRequest struct {
	Address string `json:"address" binding:"required"`
}

// RoleRequest POST /api/admin/roles
type RoleRequest struct {
	Role    string `json:"role" binding:"required"`
	Account string `json:"account" binding:"required"`
}

// EmergencyStopRequest POST /api/admin/emergency-stop
type EmergencyStopRequest struct {
	Stopped *bool `json:"stopped" binding:"required"`
}
