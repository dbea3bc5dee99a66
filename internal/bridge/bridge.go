// Package bridge implements the custody and transfer lifecycle of a
// cross-chain bridge instance: chain and asset registry, fee table, rolling
// daily limits, escrow custody, the transfer state machine, validator quorum
// and role based administration.
//
// All mutating calls on a Bridge are serialized. Fund-moving calls hand a
// guarded context to the TokenLedger; any mutating call that comes back with
// that context before the outer call returned fails with ErrReentrantCall.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"
)

// Config construction parameters of a bridge instance
type Config struct {
	// RequiredConfirmations fixed quorum threshold, must be > 0
	RequiredConfirmations uint64
	// Vault custody account on the TokenLedger
	Vault common.Address
	// Bootstrap role holders, ignored by Restore
	Admin      common.Address
	Pausers    []common.Address
	Validators []common.Address
	// LockCancelAfterConfirmation rejects cancellation once a validator confirmed
	LockCancelAfterConfirmation bool
	// CallWait how long a mutating call waits for the one in progress, DefaultCallWait when zero
	CallWait time.Duration
}

// DefaultCallWait bound on waiting for a running mutating call. A call that
// re-enters without the guarded ctx can never be admitted, so it fails with
// ErrReentrantCall once the wait expires.
const DefaultCallWait = 5 * time.Second

// ProofVerifier decides whether a validator's proof is acceptable for a transfer
type ProofVerifier interface {
	Verify(ctx context.Context, t Transfer, proof []byte) (bool, error)
}

// ProofVerifierFunc adapts a function to ProofVerifier
type ProofVerifierFunc func(ctx context.Context, t Transfer, proof []byte) (bool, error)

func (f ProofVerifierFunc) Verify(ctx context.Context, t Transfer, proof []byte) (bool, error) {
	return f(ctx, t, proof)
}

// Option configures optional collaborators
type Option func(*Bridge)

func WithEventSink(sink EventSink) Option {
	return func(b *Bridge) {
		if sink != nil {
			b.sink = sink
		}
	}
}

func WithProofVerifier(v ProofVerifier) Option {
	return func(b *Bridge) { b.verifier = v }
}

func WithClock(clock func() time.Time) Option {
	return func(b *Bridge) {
		if clock != nil {
			b.clock = clock
		}
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(b *Bridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

type state struct {
	chains        map[uint64]*Chain
	routes        map[RouteKey]*AssetRoute
	fees          map[FeeKey]*uint256.Int
	roles         map[Role]map[common.Address]bool
	transfers     map[uint64]*Transfer
	confirmations map[uint64]map[common.Address]bool
	custody       custody
	nextID        uint64
	paused        bool
	stopped       bool
}

func newState() *state {
	return &state{
		chains:        make(map[uint64]*Chain),
		routes:        make(map[RouteKey]*AssetRoute),
		fees:          make(map[FeeKey]*uint256.Int),
		roles:         map[Role]map[common.Address]bool{RoleAdmin: {}, RolePauser: {}, RoleValidator: {}},
		transfers:     make(map[uint64]*Transfer),
		confirmations: make(map[uint64]map[common.Address]bool),
		custody:       newCustody(),
		nextID:        1,
	}
}

func (s *state) hasRole(role Role, account common.Address) bool {
	return s.roles[role][account]
}

// Bridge a single bridge instance
type Bridge struct {
	// calls is a one slot semaphore serializing mutating calls,
	// mu guards st and is never held across ledger calls
	calls    chan struct{}
	callWait time.Duration
	mu       sync.RWMutex
	st       *state
	busy     atomic.Bool

	ledger     TokenLedger
	vault      common.Address
	required   uint64
	lockCancel bool

	sink     EventSink
	journal  Journal
	verifier ProofVerifier
	clock    func() time.Time
	logger   logrus.FieldLogger
}

type guardKey struct{}

// New creates a bridge with empty registries and the bootstrap roles from cfg
func New(cfg Config, ledger TokenLedger, opts ...Option) (*Bridge, error) {
	if isZeroAddress(cfg.Admin) {
		return nil, opErr("New", ErrInvalidIdentity)
	}
	st := State{NextTransferID: 1}
	st.Roles = append(st.Roles, RoleAssignment{Role: RoleAdmin, Account: cfg.Admin})
	for _, p := range cfg.Pausers {
		st.Roles = append(st.Roles, RoleAssignment{Role: RolePauser, Account: p})
	}
	for _, v := range cfg.Validators {
		st.Roles = append(st.Roles, RoleAssignment{Role: RoleValidator, Account: v})
	}
	return Restore(cfg, st, ledger, opts...)
}

func newBridge(cfg Config, ledger TokenLedger, opts []Option) (*Bridge, error) {
	if cfg.RequiredConfirmations == 0 {
		return nil, opErr("New", errors.New("required confirmations must be greater than zero"))
	}
	if isZeroAddress(cfg.Vault) {
		return nil, opErr("New", ErrInvalidIdentity)
	}
	if ledger == nil {
		return nil, opErr("New", errors.New("token ledger is required"))
	}
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)
	callWait := cfg.CallWait
	if callWait <= 0 {
		callWait = DefaultCallWait
	}
	b := &Bridge{
		calls:      make(chan struct{}, 1),
		callWait:   callWait,
		st:         newState(),
		ledger:     ledger,
		vault:      cfg.Vault,
		required:   cfg.RequiredConfirmations,
		lockCancel: cfg.LockCancelAfterConfirmation,
		sink:       discardSink{},
		journal:    directJournal{},
		clock:      time.Now,
		logger:     quiet,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// enter serializes a mutating call and marks ctx with the instance guard.
// A call carrying the guard of a running call is rejected at once. Any other
// call waits at most callWait for the running one, so a callback that comes
// back with a fresh ctx is rejected instead of blocking the instance forever.
// The returned exit func must be deferred.
func (b *Bridge) enter(ctx context.Context, op string) (context.Context, func(), error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if owner, ok := ctx.Value(guardKey{}).(*Bridge); ok && owner == b && b.busy.Load() {
		b.logger.WithField("op", op).Warn("⚠️ Reentrant bridge call rejected")
		return ctx, func() {}, opErr(op, ErrReentrantCall)
	}

	select {
	case b.calls <- struct{}{}:
	default:
		timer := time.NewTimer(b.callWait)
		defer timer.Stop()
		select {
		case b.calls <- struct{}{}:
		case <-timer.C:
			b.logger.WithFields(logrus.Fields{"op": op, "waited": b.callWait}).Warn("⚠️ Bridge call still busy, rejecting as reentrant")
			return ctx, func() {}, opErr(op, fmt.Errorf("%w: call in progress for %s", ErrReentrantCall, b.callWait))
		case <-ctx.Done():
			return ctx, func() {}, internalErr(op, ctx.Err())
		}
	}
	b.busy.Store(true)
	exit := func() {
		b.busy.Store(false)
		<-b.calls
	}
	return context.WithValue(ctx, guardKey{}, b), exit, nil
}

func (b *Bridge) emit(ctx context.Context, events ...Event) {
	for _, ev := range events {
		b.sink.Emit(ctx, ev)
	}
}

func (b *Bridge) now() time.Time {
	return b.clock().UTC()
}

// requireRole must be called with mu held
func (b *Bridge) requireRole(op string, caller common.Address, roles ...Role) error {
	for _, role := range roles {
		if b.st.hasRole(role, caller) {
			return nil
		}
	}
	return opErr(op, ErrMissingRole)
}

// ledgerErr keeps policy and reentrancy rejections from the ledger, anything else is internal
func ledgerErr(op string, err error) error {
	if errors.Is(err, ErrInsufficientBalance) || errors.Is(err, ErrReentrantCall) {
		return opErr(op, err)
	}
	return internalErr(op, err)
}

// Vault custody account
func (b *Bridge) Vault() common.Address { return b.vault }

func (b *Bridge) RequiredConfirmations() uint64 { return b.required }

func (b *Bridge) LockCancelAfterConfirmation() bool { return b.lockCancel }

func (b *Bridge) IsPaused() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.st.paused
}

func (b *Bridge) IsStopped() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.st.stopped
}

// CustodyBalance value of asset currently locked for pending transfers
func (b *Bridge) CustodyBalance(asset common.Address) *uint256.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.st.custody.lockedOf(asset).Clone()
}

// ReleasedBalance value of asset released to destination chains by completed transfers
func (b *Bridge) ReleasedBalance(asset common.Address) *uint256.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.st.custody.releasedOf(asset).Clone()
}

// Escrowed value held for a pending transfer, zero once it is terminal
func (b *Bridge) Escrowed(id uint64) *uint256.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.st.custody.escrowOf(id).Clone()
}
