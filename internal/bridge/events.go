package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

// Event is emitted after a state change has been committed
type Event interface {
	Name() string
}

// TransferEvent is implemented by events that concern a single transfer
type TransferEvent interface {
	Event
	TransferID() uint64
}

// EventSink receives events synchronously and in order.
// Sinks must not call mutating Bridge methods with the ctx they receive.
type EventSink interface {
	Emit(ctx context.Context, ev Event)
}

// EventSinkFunc adapts a function to EventSink
type EventSinkFunc func(ctx context.Context, ev Event)

func (f EventSinkFunc) Emit(ctx context.Context, ev Event) { f(ctx, ev) }

// Fanout delivers each event to every sink in order
type Fanout []EventSink

func (f Fanout) Emit(ctx context.Context, ev Event) {
	for _, sink := range f {
		if sink != nil {
			sink.Emit(ctx, ev)
		}
	}
}

type discardSink struct{}

func (discardSink) Emit(context.Context, Event) {}

// Recorder keeps every emitted event in memory
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of the recorded events
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Names returns recorded event names in emission order
func (r *Recorder) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.events))
	for i, ev := range r.events {
		names[i] = ev.Name()
	}
	return names
}

// Count number of recorded events with the given name
func (r *Recorder) Count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Name() == name {
			n++
		}
	}
	return n
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

type TransferInitiated struct {
	ID               uint64         `json:"id"`
	Sender           common.Address `json:"sender"`
	Recipient        hexutil.Bytes  `json:"recipient"`
	Asset            common.Address `json:"asset"`
	Amount           *uint256.Int   `json:"amount"`
	Fee              *uint256.Int   `json:"fee"`
	SourceChain      uint64         `json:"source_chain"`
	DestinationChain uint64         `json:"destination_chain"`
	CreatedAt        time.Time      `json:"created_at"`
}

func (TransferInitiated) Name() string         { return "TransferInitiated" }
func (e TransferInitiated) TransferID() uint64 { return e.ID }

type TransferConfirmed struct {
	ID            uint64         `json:"id"`
	Validator     common.Address `json:"validator"`
	Confirmations uint64         `json:"confirmations"`
	Proof         hexutil.Bytes  `json:"proof,omitempty"`
}

func (TransferConfirmed) Name() string         { return "TransferConfirmed" }
func (e TransferConfirmed) TransferID() uint64 { return e.ID }

type TransferCompleted struct {
	ID          uint64         `json:"id"`
	Recipient   hexutil.Bytes  `json:"recipient"`
	Asset       common.Address `json:"asset"`
	Amount      *uint256.Int   `json:"amount"`
	CompletedAt time.Time      `json:"completed_at"`
}

func (TransferCompleted) Name() string         { return "TransferCompleted" }
func (e TransferCompleted) TransferID() uint64 { return e.ID }

type TransferCancelled struct {
	ID          uint64         `json:"id"`
	Sender      common.Address `json:"sender"`
	Refund      *uint256.Int   `json:"refund"`
	CancelledAt time.Time      `json:"cancelled_at"`
}

func (TransferCancelled) Name() string         { return "TransferCancelled" }
func (e TransferCancelled) TransferID() uint64 { return e.ID }

type TransferFailed struct {
	ID       uint64         `json:"id"`
	Reason   string         `json:"reason"`
	Refund   *uint256.Int   `json:"refund"`
	MarkedBy common.Address `json:"marked_by"`
	FailedAt time.Time      `json:"failed_at"`
}

func (TransferFailed) Name() string         { return "TransferFailed" }
func (e TransferFailed) TransferID() uint64 { return e.ID }

// ChainAdded carries the previous bounds when an existing chain was updated
type ChainAdded struct {
	ChainID             uint64       `json:"chain_id"`
	ChainName           string       `json:"name"`
	MinTransfer         *uint256.Int `json:"min_transfer"`
	MaxTransfer         *uint256.Int `json:"max_transfer"`
	Updated             bool         `json:"updated"`
	PreviousMinTransfer *uint256.Int `json:"previous_min_transfer,omitempty"`
	PreviousMaxTransfer *uint256.Int `json:"previous_max_transfer,omitempty"`
}

func (ChainAdded) Name() string { return "ChainAdded" }

type ChainStatusChanged struct {
	ChainID uint64 `json:"chain_id"`
	Active  bool   `json:"active"`
}

func (ChainStatusChanged) Name() string { return "ChainStatusChanged" }

type AssetRouteAdded struct {
	Asset              common.Address `json:"asset"`
	DestinationChain   uint64         `json:"destination_chain"`
	DailyLimit         *uint256.Int   `json:"daily_limit"`
	Updated            bool           `json:"updated"`
	PreviousDailyLimit *uint256.Int   `json:"previous_daily_limit,omitempty"`
}

func (AssetRouteAdded) Name() string { return "AssetRouteAdded" }

type AssetRouteStatusChanged struct {
	Asset            common.Address `json:"asset"`
	DestinationChain uint64         `json:"destination_chain"`
	Active           bool           `json:"active"`
}

func (AssetRouteStatusChanged) Name() string { return "AssetRouteStatusChanged" }

type ValidatorAdded struct {
	Validator common.Address `json:"validator"`
	Count     uint64         `json:"count"`
}

func (ValidatorAdded) Name() string { return "ValidatorAdded" }

type ValidatorRemoved struct {
	Validator common.Address `json:"validator"`
	Count     uint64         `json:"count"`
}

func (ValidatorRemoved) Name() string { return "ValidatorRemoved" }

type RoleGranted struct {
	Role    Role           `json:"role"`
	Account common.Address `json:"account"`
	Sender  common.Address `json:"sender"`
}

func (RoleGranted) Name() string { return "RoleGranted" }

type RoleRevoked struct {
	Role    Role           `json:"role"`
	Account common.Address `json:"account"`
	Sender  common.Address `json:"sender"`
}

func (RoleRevoked) Name() string { return "RoleRevoked" }

type FeeUpdated struct {
	SourceChain      uint64       `json:"source_chain"`
	DestinationChain uint64       `json:"destination_chain"`
	OldFee           *uint256.Int `json:"old_fee"`
	NewFee           *uint256.Int `json:"new_fee"`
}

func (FeeUpdated) Name() string { return "FeeUpdated" }

type Paused struct {
	Paused  bool           `json:"paused"`
	Account common.Address `json:"account"`
}

func (Paused) Name() string { return "Paused" }

type EmergencyStop struct {
	Stopped bool           `json:"stopped"`
	Account common.Address `json:"account"`
}

func (EmergencyStop) Name() string { return "EmergencyStop" }
