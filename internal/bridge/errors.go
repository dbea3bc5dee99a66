package bridge

import (
	"errors"
)

// ErrorKind classifies a rejection so callers can map it to a transport status
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindPolicy        ErrorKind = "policy"
	KindAuthorization ErrorKind = "authorization"
	KindState         ErrorKind = "state"
	KindAvailability  ErrorKind = "availability"
	KindReentrancy    ErrorKind = "reentrancy"
	KindInternal      ErrorKind = "internal"
)

// sentinel is a kinded error value compared with errors.Is
type sentinel struct {
	kind ErrorKind
	msg  string
}

func (s *sentinel) Error() string { return s.msg }

func newSentinel(kind ErrorKind, msg string) error {
	return &sentinel{kind: kind, msg: msg}
}

// Validation errors
var (
	ErrZeroAmount        = newSentinel(KindValidation, "amount must be greater than zero")
	ErrAmountOverflow    = newSentinel(KindValidation, "amount overflows 256 bits")
	ErrInvalidIdentity   = newSentinel(KindValidation, "identity must not be the zero address")
	ErrInvalidAsset      = newSentinel(KindValidation, "asset must not be the zero address")
	ErrEmptyRecipient    = newSentinel(KindValidation, "recipient must not be empty")
	ErrSameChain         = newSentinel(KindValidation, "source and destination chain must differ")
	ErrInvalidChain      = newSentinel(KindValidation, "invalid chain definition")
	ErrInvalidLimit      = newSentinel(KindValidation, "daily limit must be greater than zero")
	ErrInvalidRole       = newSentinel(KindValidation, "unknown role")
	ErrEmptyReason       = newSentinel(KindValidation, "failure reason must not be empty")
	ErrAmountOutOfBounds = newSentinel(KindValidation, "amount outside chain transfer bounds")
	ErrUnsupportedChain  = newSentinel(KindValidation, "chain not supported")
	ErrUnsupportedAsset  = newSentinel(KindValidation, "asset route not supported")
)

// Policy errors
var (
	ErrDailyLimitExceeded  = newSentinel(KindPolicy, "daily limit exceeded")
	ErrInsufficientBalance = newSentinel(KindPolicy, "insufficient balance")
	ErrCancellationLocked  = newSentinel(KindPolicy, "transfer already has confirmations and cannot be cancelled")
	ErrInvalidProof        = newSentinel(KindPolicy, "proof rejected by verifier")
	ErrLastAdmin           = newSentinel(KindPolicy, "cannot revoke the last admin")
)

// Authorization errors
var (
	ErrMissingRole      = newSentinel(KindAuthorization, "caller lacks required role")
	ErrNotInitiator     = newSentinel(KindAuthorization, "caller is not the transfer initiator")
	ErrAlreadyConfirmed = newSentinel(KindAuthorization, "validator already confirmed this transfer")
)

// State errors
var (
	ErrTransferNotFound  = newSentinel(KindState, "transfer not found")
	ErrInvalidStatus     = newSentinel(KindState, "transfer is not pending")
	ErrChainNotFound     = newSentinel(KindState, "chain not found")
	ErrRouteNotFound     = newSentinel(KindState, "asset route not found")
	ErrValidatorExists   = newSentinel(KindState, "validator already registered")
	ErrValidatorNotFound = newSentinel(KindState, "validator not registered")
	ErrAlreadyPaused     = newSentinel(KindState, "bridge already paused")
	ErrNotPaused         = newSentinel(KindState, "bridge not paused")
)

// Availability and reentrancy errors
var (
	ErrPaused           = newSentinel(KindAvailability, "bridge is paused")
	ErrEmergencyStopped = newSentinel(KindAvailability, "bridge is in emergency stop")
	ErrReentrantCall    = newSentinel(KindReentrancy, "reentrant call rejected")
)

// Error records the operation that rejected a call.
// Kind is only set when it overrides the kind of the wrapped sentinel.
type Error struct {
	Op   string
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return "bridge: " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func opErr(op string, err error) error {
	return &Error{Op: op, Err: err}
}

func internalErr(op string, err error) error {
	return &Error{Op: op, Kind: KindInternal, Err: err}
}

// KindOf returns the kind of a bridge error, KindInternal for foreign errors
// and "" for nil.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Kind != "" {
		return e.Kind
	}
	var s *sentinel
	if errors.As(err, &s) {
		return s.kind
	}
	return KindInternal
}
