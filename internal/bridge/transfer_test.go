package bridge

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTransferEscrowsAmountPlusFee(t *testing.T) {
	f := newFixture(t)

	id := f.create(100)
	assert.Equal(t, uint64(1), id)
	assert.Equal(t, uint64(2), f.b.NextTransferID())

	tr, err := f.b.GetTransferDetails(id)
	require.NoError(t, err)
	assert.Equal(t, alice, tr.Initiator)
	assert.Equal(t, StatusPending, tr.Status)
	assert.Equal(t, uint64(100), tr.Amount.Uint64())
	assert.Equal(t, uint64(10), tr.Fee.Uint64())
	assert.Equal(t, f.now, tr.CreatedAt)
	assert.True(t, tr.CompletedAt.IsZero())

	assert.Equal(t, uint64(890), f.balance(alice))
	assert.Equal(t, uint64(110), f.balance(vault))
	assert.Equal(t, uint64(110), f.b.Escrowed(id).Uint64())
	assert.Equal(t, uint64(110), f.b.CustodyBalance(token).Uint64())

	require.Equal(t, []string{"TransferInitiated"}, f.events.Names())
	ev := f.events.Events()[0].(TransferInitiated)
	assert.Equal(t, id, ev.ID)
	assert.Equal(t, alice, ev.Sender)
	assert.Equal(t, recipient, []byte(ev.Recipient))
	assert.Equal(t, token, ev.Asset)
	assert.Equal(t, uint64(100), ev.Amount.Uint64())
	assert.Equal(t, uint64(10), ev.Fee.Uint64())
	assert.Equal(t, chainEthereum, ev.SourceChain)
	assert.Equal(t, chainPolygon, ev.DestinationChain)

	route, ok := f.b.AssetRoute(token, chainPolygon)
	require.True(t, ok)
	assert.Equal(t, uint64(100), route.DailyTransferred.Uint64())
	assert.Equal(t, uint64(50), f.b.RemainingDailyCapacity(token, chainPolygon).Uint64())
	f.assertConserved()
}

func TestCreateTransferValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.ledger.Mint(token, bob, u(10)))

	cases := []struct {
		name   string
		caller common.Address
		mutate func(*TransferRequest)
		want   error
		kind   ErrorKind
	}{
		{"zero caller", common.Address{}, nil, ErrInvalidIdentity, KindValidation},
		{"zero amount", alice, func(r *TransferRequest) { r.Amount = u(0) }, ErrZeroAmount, KindValidation},
		{"nil amount", alice, func(r *TransferRequest) { r.Amount = nil }, ErrZeroAmount, KindValidation},
		{"zero asset", alice, func(r *TransferRequest) { r.Asset = common.Address{} }, ErrInvalidAsset, KindValidation},
		{"empty recipient", alice, func(r *TransferRequest) { r.Recipient = nil }, ErrEmptyRecipient, KindValidation},
		{"same chain", alice, func(r *TransferRequest) { r.DestinationChain = chainEthereum }, ErrSameChain, KindValidation},
		{"unknown source", alice, func(r *TransferRequest) { r.SourceChain = chainArbitrum }, ErrUnsupportedChain, KindValidation},
		{"unknown destination", alice, func(r *TransferRequest) { r.DestinationChain = chainArbitrum }, ErrUnsupportedChain, KindValidation},
		{"unknown asset", alice, func(r *TransferRequest) { r.Asset = stranger }, ErrUnsupportedAsset, KindValidation},
		{"above max", alice, func(r *TransferRequest) { r.Amount = u(1_001) }, ErrAmountOutOfBounds, KindValidation},
		{"insufficient balance", bob, nil, ErrInsufficientBalance, KindPolicy},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := f.request(100)
			if tc.mutate != nil {
				tc.mutate(&req)
			}
			id, err := f.b.CreateTransfer(ctx, tc.caller, req)
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, tc.kind, KindOf(err))
			assert.Zero(t, id)
		})
	}

	assert.Equal(t, uint64(1), f.b.NextTransferID())
	assert.Equal(t, uint64(1_000), f.balance(alice))
	assert.Equal(t, uint64(10), f.balance(bob))
	assert.Empty(t, f.events.Events())
	route, _ := f.b.AssetRoute(token, chainPolygon)
	assert.True(t, route.DailyTransferred.IsZero())
}

func TestCreateTransferRejectsInactiveRegistry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.b.SetAssetRouteActive(ctx, admin, token, chainPolygon, false))
	_, err := f.b.CreateTransfer(ctx, alice, f.request(100))
	assert.ErrorIs(t, err, ErrUnsupportedAsset)

	require.NoError(t, f.b.SetAssetRouteActive(ctx, admin, token, chainPolygon, true))
	require.NoError(t, f.b.SetChainActive(ctx, admin, chainEthereum, false))
	_, err = f.b.CreateTransfer(ctx, alice, f.request(100))
	assert.ErrorIs(t, err, ErrUnsupportedChain)
}

// daily limit 150: a second transfer of 60 after 100 is rejected without side effects
func TestDailyLimitExceeded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.create(100)
	before := f.balance(alice)

	_, err := f.b.CreateTransfer(ctx, alice, f.request(60))
	assert.ErrorIs(t, err, ErrDailyLimitExceeded)
	assert.Equal(t, KindPolicy, KindOf(err))

	assert.Equal(t, before, f.balance(alice))
	assert.Equal(t, uint64(2), f.b.NextTransferID())
	route, _ := f.b.AssetRoute(token, chainPolygon)
	assert.Equal(t, uint64(100), route.DailyTransferred.Uint64())

	// exactly reaching the limit is allowed
	f.create(50)
	assert.True(t, f.b.RemainingDailyCapacity(token, chainPolygon).IsZero())
}

func TestDailyWindowResetsAfter24h(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	start := f.now
	f.create(100)
	f.advance(23 * time.Hour)
	_, err := f.b.CreateTransfer(ctx, alice, f.request(60))
	require.ErrorIs(t, err, ErrDailyLimitExceeded)

	// a rejected call must not move the window
	route, _ := f.b.AssetRoute(token, chainPolygon)
	assert.Equal(t, start, route.WindowStart)

	f.advance(time.Hour)
	f.create(60)
	route, _ = f.b.AssetRoute(token, chainPolygon)
	assert.Equal(t, uint64(60), route.DailyTransferred.Uint64())
	assert.Equal(t, f.now, route.WindowStart)
}

// below min_transfer is a validation error and consumes no id
func TestAmountBelowMinimum(t *testing.T) {
	f := newFixture(t)

	_, err := f.b.CreateTransfer(context.Background(), alice, f.request(4))
	assert.ErrorIs(t, err, ErrAmountOutOfBounds)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Equal(t, uint64(1), f.b.NextTransferID())
	_, err = f.b.GetTransferDetails(1)
	assert.ErrorIs(t, err, ErrTransferNotFound)
}

func TestInsufficientForFee(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ledger.Mint(token, bob, u(100)))

	_, err := f.b.CreateTransfer(context.Background(), bob, f.request(100))
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, uint64(100), f.balance(bob))
}

// three validators are needed, the third confirmation completes exactly once
func TestQuorumCompletesOnThreshold(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.RequiredConfirmations = 3 })
	ctx := context.Background()
	id := f.create(100)

	done, err := f.b.ConfirmTransfer(ctx, val1, id, nil)
	require.NoError(t, err)
	assert.False(t, done)
	done, err = f.b.ConfirmTransfer(ctx, val2, id, []byte("proof"))
	require.NoError(t, err)
	assert.False(t, done)

	tr, _ := f.b.GetTransferDetails(id)
	assert.Equal(t, StatusPending, tr.Status)
	assert.Equal(t, uint64(2), tr.ConfirmationCount)

	done, err = f.b.ConfirmTransfer(ctx, val3, id, nil)
	require.NoError(t, err)
	assert.True(t, done)

	tr, _ = f.b.GetTransferDetails(id)
	assert.Equal(t, StatusCompleted, tr.Status)
	assert.Equal(t, uint64(3), tr.ConfirmationCount)
	assert.Equal(t, f.now, tr.CompletedAt)
	assert.Equal(t, 1, f.events.Count("TransferCompleted"))
	assert.Equal(t, 3, f.events.Count("TransferConfirmed"))
	assert.Equal(t, []common.Address{val1, val2, val3}, f.b.Confirmations(id))

	assert.True(t, f.b.Escrowed(id).IsZero())
	assert.True(t, f.b.CustodyBalance(token).IsZero())
	assert.Equal(t, uint64(110), f.b.ReleasedBalance(token).Uint64())
	f.assertConserved()

	_, err = f.b.ConfirmTransfer(ctx, val1, id, nil)
	assert.ErrorIs(t, err, ErrInvalidStatus)
	assert.Equal(t, 1, f.events.Count("TransferCompleted"))
}

func TestConfirmIsIdempotentPerValidator(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.create(100)

	_, err := f.b.ConfirmTransfer(ctx, val1, id, nil)
	require.NoError(t, err)
	_, err = f.b.ConfirmTransfer(ctx, val1, id, nil)
	assert.ErrorIs(t, err, ErrAlreadyConfirmed)
	assert.Equal(t, KindAuthorization, KindOf(err))

	tr, _ := f.b.GetTransferDetails(id)
	assert.Equal(t, uint64(1), tr.ConfirmationCount)
	assert.True(t, f.b.HasConfirmed(id, val1))
	assert.False(t, f.b.HasConfirmed(id, val2))
}

// a non-validator confirmation is an authorization error and changes nothing
func TestConfirmRequiresValidator(t *testing.T) {
	f := newFixture(t)
	id := f.create(100)

	_, err := f.b.ConfirmTransfer(context.Background(), stranger, id, nil)
	assert.ErrorIs(t, err, ErrMissingRole)
	assert.Equal(t, KindAuthorization, KindOf(err))
	tr, _ := f.b.GetTransferDetails(id)
	assert.Zero(t, tr.ConfirmationCount)

	_, err = f.b.ConfirmTransfer(context.Background(), val1, 99, nil)
	assert.ErrorIs(t, err, ErrTransferNotFound)
}

func TestRemovedValidatorConfirmationsStillCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.create(100)

	_, err := f.b.ConfirmTransfer(ctx, val1, id, nil)
	require.NoError(t, err)
	require.NoError(t, f.b.RemoveValidator(ctx, admin, val1))

	_, err = f.b.ConfirmTransfer(ctx, val1, id, nil)
	assert.ErrorIs(t, err, ErrMissingRole)

	done, err := f.b.ConfirmTransfer(ctx, val2, id, nil)
	require.NoError(t, err)
	assert.True(t, done)
}

// cancel after one confirmation refunds amount plus fee and blocks later confirmations
func TestCancelAfterConfirmation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.create(100)

	_, err := f.b.ConfirmTransfer(ctx, val1, id, nil)
	require.NoError(t, err)

	_, err = f.b.CancelTransfer(ctx, bob, id)
	assert.ErrorIs(t, err, ErrNotInitiator)

	ok, err := f.b.CancelTransfer(ctx, alice, id)
	require.NoError(t, err)
	assert.True(t, ok)

	status, err := f.b.GetTransferStatus(id)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, status)
	assert.Equal(t, uint64(1_000), f.balance(alice))
	assert.Zero(t, f.balance(vault))
	assert.True(t, f.b.CustodyBalance(token).IsZero())

	ev := f.events.Events()[len(f.events.Events())-1].(TransferCancelled)
	assert.Equal(t, uint64(110), ev.Refund.Uint64())
	assert.Equal(t, alice, ev.Sender)

	_, err = f.b.ConfirmTransfer(ctx, val2, id, nil)
	assert.ErrorIs(t, err, ErrInvalidStatus)
	assert.Equal(t, KindState, KindOf(err))

	_, err = f.b.CancelTransfer(ctx, alice, id)
	assert.ErrorIs(t, err, ErrInvalidStatus)
	f.assertConserved()
}

func TestCancelLockedAfterConfirmation(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.LockCancelAfterConfirmation = true })
	ctx := context.Background()

	first := f.create(50)
	second := f.create(50)
	_, err := f.b.ConfirmTransfer(ctx, val1, first, nil)
	require.NoError(t, err)

	_, err = f.b.CancelTransfer(ctx, alice, first)
	assert.ErrorIs(t, err, ErrCancellationLocked)
	assert.Equal(t, KindPolicy, KindOf(err))

	ok, err := f.b.CancelTransfer(ctx, alice, second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMarkFailed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.create(100)

	assert.ErrorIs(t, f.b.MarkFailed(ctx, stranger, id, "destination reverted"), ErrMissingRole)
	assert.ErrorIs(t, f.b.MarkFailed(ctx, val1, id, "  "), ErrEmptyReason)
	assert.ErrorIs(t, f.b.MarkFailed(ctx, val1, 42, "gone"), ErrTransferNotFound)

	require.NoError(t, f.b.MarkFailed(ctx, val1, id, "destination reverted"))
	status, _ := f.b.GetTransferStatus(id)
	assert.Equal(t, StatusFailed, status)
	assert.Equal(t, uint64(1_000), f.balance(alice))

	ev := f.events.Events()[len(f.events.Events())-1].(TransferFailed)
	assert.Equal(t, "destination reverted", ev.Reason)
	assert.Equal(t, uint64(110), ev.Refund.Uint64())
	assert.Equal(t, val1, ev.MarkedBy)

	assert.ErrorIs(t, f.b.MarkFailed(ctx, admin, id, "again"), ErrInvalidStatus)
	f.assertConserved()
}

func TestPauseBlocksCreateOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.create(50)

	assert.ErrorIs(t, f.b.Pause(ctx, alice), ErrMissingRole)
	require.NoError(t, f.b.Pause(ctx, pauser))
	assert.True(t, f.b.IsPaused())
	assert.ErrorIs(t, f.b.Pause(ctx, pauser), ErrAlreadyPaused)

	_, err := f.b.CreateTransfer(ctx, alice, f.request(50))
	assert.ErrorIs(t, err, ErrPaused)
	assert.Equal(t, KindAvailability, KindOf(err))

	_, err = f.b.ConfirmTransfer(ctx, val1, id, nil)
	assert.NoError(t, err)
	_, err = f.b.CancelTransfer(ctx, alice, id)
	assert.NoError(t, err)

	require.NoError(t, f.b.Unpause(ctx, pauser))
	assert.ErrorIs(t, f.b.Unpause(ctx, pauser), ErrNotPaused)
	f.create(50)
}

func TestEmergencyStop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.create(50)
	second := f.create(50)

	assert.ErrorIs(t, f.b.SetEmergencyStop(ctx, pauser, true), ErrMissingRole)
	require.NoError(t, f.b.SetEmergencyStop(ctx, admin, true))
	require.NoError(t, f.b.Pause(ctx, pauser))
	assert.True(t, f.b.IsStopped())

	_, err := f.b.CreateTransfer(ctx, alice, f.request(10))
	assert.ErrorIs(t, err, ErrEmergencyStopped)
	_, err = f.b.ConfirmTransfer(ctx, val1, first, nil)
	assert.ErrorIs(t, err, ErrEmergencyStopped)
	assert.Equal(t, KindAvailability, KindOf(err))

	// funds stay recoverable
	_, err = f.b.CancelTransfer(ctx, alice, first)
	require.NoError(t, err)
	require.NoError(t, f.b.MarkFailed(ctx, admin, second, "halted"))
	assert.Equal(t, uint64(1_000), f.balance(alice))

	require.NoError(t, f.b.SetEmergencyStop(ctx, admin, false))
	assert.Equal(t, 2, f.events.Count("EmergencyStop"))
}

func TestProofVerifier(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.b.verifier = ProofVerifierFunc(func(_ context.Context, tr Transfer, proof []byte) (bool, error) {
		if bytes.Equal(proof, []byte("boom")) {
			return false, errors.New("verifier offline")
		}
		return bytes.HasPrefix(proof, []byte("ok")), nil
	})
	id := f.create(100)

	_, err := f.b.ConfirmTransfer(ctx, val1, id, []byte("bad"))
	assert.ErrorIs(t, err, ErrInvalidProof)
	_, err = f.b.ConfirmTransfer(ctx, val1, id, []byte("boom"))
	assert.Equal(t, KindInternal, KindOf(err))
	assert.False(t, f.b.HasConfirmed(id, val1))

	_, err = f.b.ConfirmTransfer(ctx, val1, id, []byte("ok-1"))
	require.NoError(t, err)
	assert.True(t, f.b.HasConfirmed(id, val1))
}

func TestReentrantCallFromLedgerIsRejected(t *testing.T) {
	f := newFixture(t)
	first := f.create(50)

	var (
		reentryErr   error
		statusDuring Status
	)
	f.ledger.OnTransfer(func(ctx context.Context, _, _, _ common.Address, _ *uint256.Int) error {
		_, reentryErr = f.b.CancelTransfer(ctx, alice, first)
		statusDuring, _ = f.b.GetTransferStatus(first)
		return nil
	})

	id := f.create(50)
	assert.ErrorIs(t, reentryErr, ErrReentrantCall)
	assert.Equal(t, KindReentrancy, KindOf(reentryErr))
	assert.Equal(t, StatusPending, statusDuring)

	status, _ := f.b.GetTransferStatus(first)
	assert.Equal(t, StatusPending, status)
	status, _ = f.b.GetTransferStatus(id)
	assert.Equal(t, StatusPending, status)

	// the guard is released once the outer call returns
	f.ledger.OnTransfer(nil)
	_, err := f.b.CancelTransfer(context.Background(), alice, first)
	assert.NoError(t, err)
}

// a callback that comes back without the guarded ctx cannot wait for the call it runs inside
func TestReentrantCallWithFreshContextIsRejected(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.CallWait = 20 * time.Millisecond })
	first := f.create(50)

	var reentryErr error
	f.ledger.OnTransfer(func(_ context.Context, _, _, _ common.Address, _ *uint256.Int) error {
		_, reentryErr = f.b.CancelTransfer(context.Background(), alice, first)
		return nil
	})

	done := make(chan uint64)
	go func() {
		id, err := f.b.CreateTransfer(context.Background(), alice, f.request(50))
		assert.NoError(t, err)
		done <- id
	}()
	var second uint64
	select {
	case second = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("CreateTransfer did not return")
	}

	assert.ErrorIs(t, reentryErr, ErrReentrantCall)
	assert.Equal(t, KindReentrancy, KindOf(reentryErr))
	status, _ := f.b.GetTransferStatus(first)
	assert.Equal(t, StatusPending, status)
	status, _ = f.b.GetTransferStatus(second)
	assert.Equal(t, StatusPending, status)

	// later calls are admitted again
	f.ledger.OnTransfer(nil)
	_, err := f.b.CancelTransfer(context.Background(), alice, first)
	require.NoError(t, err)
	require.NoError(t, f.b.Pause(context.Background(), pauser))
	f.assertConserved()
}

func TestConcurrentCallsAreSerialized(t *testing.T) {
	f := newFixture(t)
	release := make(chan struct{})
	entered := make(chan struct{})
	f.ledger.OnTransfer(func(_ context.Context, _, _, _ common.Address, _ *uint256.Int) error {
		select {
		case entered <- struct{}{}:
			<-release
		default:
		}
		return nil
	})

	go func() {
		_, err := f.b.CreateTransfer(context.Background(), alice, f.request(20))
		assert.NoError(t, err)
	}()
	<-entered

	second := make(chan error)
	go func() {
		_, err := f.b.CreateTransfer(context.Background(), alice, f.request(20))
		second <- err
	}()
	time.Sleep(10 * time.Millisecond)
	close(release)

	require.NoError(t, <-second)
	assert.Equal(t, uint64(3), f.b.NextTransferID())
}

func TestEnterHonoursContextCancellation(t *testing.T) {
	f := newFixture(t)
	release := make(chan struct{})
	entered := make(chan struct{})
	f.ledger.OnTransfer(func(_ context.Context, _, _, _ common.Address, _ *uint256.Int) error {
		close(entered)
		<-release
		return nil
	})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		_, _ = f.b.CreateTransfer(context.Background(), alice, f.request(20))
	}()
	<-entered

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := f.b.Pause(ctx, pauser)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, KindInternal, KindOf(err))

	close(release)
	<-finished
	assert.False(t, f.b.IsPaused())
}

// authorization is decided before the transfer status is looked at
func TestCancelChecksInitiatorBeforeStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.create(100)
	for _, v := range []common.Address{val1, val2} {
		_, err := f.b.ConfirmTransfer(ctx, v, id, nil)
		require.NoError(t, err)
	}

	_, err := f.b.CancelTransfer(ctx, bob, id)
	assert.ErrorIs(t, err, ErrNotInitiator)
	assert.Equal(t, KindAuthorization, KindOf(err))

	_, err = f.b.CancelTransfer(ctx, alice, id)
	assert.ErrorIs(t, err, ErrInvalidStatus)
	assert.Equal(t, KindState, KindOf(err))

	_, err = f.b.CancelTransfer(ctx, bob, 99)
	assert.ErrorIs(t, err, ErrTransferNotFound)
}

func TestReentrancyFailureRollsBackCreate(t *testing.T) {
	f := newFixture(t)
	f.ledger.OnTransfer(func(ctx context.Context, _, _, _ common.Address, _ *uint256.Int) error {
		_, err := f.b.CreateTransfer(ctx, alice, f.request(10))
		return err
	})

	_, err := f.b.CreateTransfer(context.Background(), alice, f.request(50))
	assert.ErrorIs(t, err, ErrReentrantCall)
	assert.Equal(t, KindReentrancy, KindOf(err))

	assert.Equal(t, uint64(1), f.b.NextTransferID())
	assert.Equal(t, uint64(1_000), f.balance(alice))
	assert.Zero(t, f.balance(vault))
	route, _ := f.b.AssetRoute(token, chainPolygon)
	assert.True(t, route.DailyTransferred.IsZero())
	assert.Empty(t, f.events.Events())
}

func TestSinkCannotMutateDuringEmit(t *testing.T) {
	f := newFixture(t)
	var sinkErr error
	f.b.sink = EventSinkFunc(func(ctx context.Context, ev Event) {
		if _, ok := ev.(TransferInitiated); ok {
			sinkErr = f.b.Pause(ctx, pauser)
		}
	})

	f.create(50)
	assert.ErrorIs(t, sinkErr, ErrReentrantCall)
	assert.False(t, f.b.IsPaused())
}

func TestInvariantsHoldAcrossMixedOperations(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.RequiredConfirmations = 2 })
	ctx := context.Background()
	require.NoError(t, f.b.AddAssetRoute(ctx, admin, token, chainPolygon, u(10_000)))
	require.NoError(t, f.ledger.Mint(token, alice, u(10_000)))

	var ids []uint64
	for i := 0; i < 12; i++ {
		ids = append(ids, f.create(uint64(10+i)))
	}
	validators := []common.Address{val1, val2, val3}
	for i, id := range ids {
		switch i % 4 {
		case 0:
			_, _ = f.b.ConfirmTransfer(ctx, validators[i%3], id, nil)
			_, _ = f.b.ConfirmTransfer(ctx, validators[(i+1)%3], id, nil)
		case 1:
			_, _ = f.b.ConfirmTransfer(ctx, validators[i%3], id, nil)
			_, _ = f.b.CancelTransfer(ctx, alice, id)
		case 2:
			_ = f.b.MarkFailed(ctx, val2, id, "timeout")
		}
		// repeated confirmations never change a terminal transfer
		_, _ = f.b.ConfirmTransfer(ctx, val3, id, nil)
	}

	terminalSeen := map[Status]int{}
	for _, id := range ids {
		tr, err := f.b.GetTransferDetails(id)
		require.NoError(t, err)
		assert.Equal(t, tr.ConfirmationCount, uint64(len(f.b.Confirmations(id))), "transfer %d", id)
		if tr.Status == StatusPending {
			assert.Less(t, tr.ConfirmationCount, f.b.RequiredConfirmations())
			assert.Equal(t, tr.Total(), f.b.Escrowed(id))
		} else {
			terminalSeen[tr.Status]++
			assert.True(t, f.b.Escrowed(id).IsZero())
		}
	}
	assert.NotZero(t, terminalSeen[StatusCompleted])
	assert.NotZero(t, terminalSeen[StatusCancelled])
	assert.NotZero(t, terminalSeen[StatusFailed])

	route, _ := f.b.AssetRoute(token, chainPolygon)
	assert.False(t, route.DailyTransferred.Gt(route.DailyLimit))
	f.assertConserved()
}
