package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	chainEthereum uint64 = 1
	chainPolygon  uint64 = 137
	chainArbitrum uint64 = 42161
)

var (
	admin    = common.HexToAddress("0x00000000000000000000000000000000000a0001")
	pauser   = common.HexToAddress("0x00000000000000000000000000000000000a0002")
	vault    = common.HexToAddress("0x00000000000000000000000000000000000b0001")
	alice    = common.HexToAddress("0x00000000000000000000000000000000000c0001")
	bob      = common.HexToAddress("0x00000000000000000000000000000000000c0002")
	val1     = common.HexToAddress("0x00000000000000000000000000000000000d0001")
	val2     = common.HexToAddress("0x00000000000000000000000000000000000d0002")
	val3     = common.HexToAddress("0x00000000000000000000000000000000000d0003")
	token    = common.HexToAddress("0x00000000000000000000000000000000000e0001")
	stranger = common.HexToAddress("0x00000000000000000000000000000000000f0001")

	recipient = []byte{0xde, 0xad, 0xbe, 0xef}
)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

type fixture struct {
	t      *testing.T
	b      *Bridge
	ledger *MemoryLedger
	events *Recorder
	now    time.Time
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

// newFixture returns a bridge with ethereum and polygon registered, a token
// route to polygon limited to 150 per day, a fee of 10 and alice funded.
func newFixture(t *testing.T, mutate ...func(*Config)) *fixture {
	t.Helper()
	cfg := Config{
		RequiredConfirmations: 2,
		Vault:                 vault,
		Admin:                 admin,
		Pausers:               []common.Address{pauser},
		Validators:            []common.Address{val1, val2, val3},
	}
	for _, m := range mutate {
		m(&cfg)
	}
	f := &fixture{
		t:      t,
		ledger: NewMemoryLedger(),
		events: &Recorder{},
		now:    time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	b, err := New(cfg, f.ledger, WithEventSink(f.events), WithClock(func() time.Time { return f.now }))
	require.NoError(t, err)
	f.b = b

	ctx := context.Background()
	require.NoError(t, b.AddChain(ctx, admin, chainEthereum, "ethereum", u(5), u(1_000)))
	require.NoError(t, b.AddChain(ctx, admin, chainPolygon, "polygon", u(1), u(1_000)))
	require.NoError(t, b.AddAssetRoute(ctx, admin, token, chainPolygon, u(150)))
	require.NoError(t, b.UpdateBridgeFee(ctx, admin, chainEthereum, chainPolygon, u(10)))
	require.NoError(t, f.ledger.Mint(token, alice, u(1_000)))
	f.events.Reset()
	return f
}

func (f *fixture) request(amount uint64) TransferRequest {
	return TransferRequest{
		SourceChain:      chainEthereum,
		DestinationChain: chainPolygon,
		Asset:            token,
		Amount:           u(amount),
		Recipient:        recipient,
	}
}

func (f *fixture) create(amount uint64) uint64 {
	f.t.Helper()
	id, err := f.b.CreateTransfer(context.Background(), alice, f.request(amount))
	require.NoError(f.t, err)
	return id
}

func (f *fixture) balance(holder common.Address) uint64 {
	f.t.Helper()
	bal, err := f.ledger.BalanceOf(context.Background(), token, holder)
	require.NoError(f.t, err)
	return bal.Uint64()
}

// assertConserved vault balance equals locked plus released custody
func (f *fixture) assertConserved() {
	f.t.Helper()
	locked := f.b.CustodyBalance(token)
	released := f.b.ReleasedBalance(token)
	assert.Equal(f.t, f.balance(vault), new(uint256.Int).Add(locked, released).Uint64())
}

func TestNewValidatesConfig(t *testing.T) {
	ledger := NewMemoryLedger()

	_, err := New(Config{RequiredConfirmations: 0, Vault: vault, Admin: admin}, ledger)
	assert.Error(t, err)

	_, err = New(Config{RequiredConfirmations: 1, Vault: vault}, ledger)
	assert.ErrorIs(t, err, ErrInvalidIdentity)

	_, err = New(Config{RequiredConfirmations: 1, Admin: admin}, ledger)
	assert.ErrorIs(t, err, ErrInvalidIdentity)

	_, err = New(Config{RequiredConfirmations: 1, Vault: vault, Admin: admin}, nil)
	assert.Error(t, err)

	b, err := New(Config{RequiredConfirmations: 3, Vault: vault, Admin: admin, Validators: []common.Address{val1}}, ledger)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), b.RequiredConfirmations())
	assert.True(t, b.HasRole(RoleAdmin, admin))
	assert.Equal(t, uint64(1), b.ValidatorCount())
	assert.Equal(t, uint64(1), b.NextTransferID())
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, ErrorKind(""), KindOf(nil))
	assert.Equal(t, KindValidation, KindOf(opErr("x", ErrZeroAmount)))
	assert.Equal(t, KindPolicy, KindOf(opErr("x", ErrDailyLimitExceeded)))
	assert.Equal(t, KindAuthorization, KindOf(opErr("x", ErrMissingRole)))
	assert.Equal(t, KindState, KindOf(opErr("x", ErrTransferNotFound)))
	assert.Equal(t, KindAvailability, KindOf(opErr("x", ErrPaused)))
	assert.Equal(t, KindReentrancy, KindOf(opErr("x", ErrReentrantCall)))
	assert.Equal(t, KindInternal, KindOf(internalErr("x", ErrZeroAmount)))
	assert.Equal(t, KindInternal, KindOf(assert.AnError))

	err := opErr("CreateTransfer", ErrZeroAmount)
	assert.EqualError(t, err, "bridge: CreateTransfer: amount must be greater than zero")
}

func TestRegistry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.True(t, f.b.IsChainSupported(chainEthereum))
	assert.False(t, f.b.IsChainSupported(chainArbitrum))
	assert.True(t, f.b.IsAssetSupported(token, chainPolygon))
	assert.False(t, f.b.IsAssetSupported(token, chainEthereum))

	err := f.b.AddChain(ctx, stranger, chainArbitrum, "arbitrum", u(1), u(10))
	assert.ErrorIs(t, err, ErrMissingRole)
	assert.Equal(t, KindAuthorization, KindOf(err))

	assert.ErrorIs(t, f.b.AddChain(ctx, admin, 0, "zero", u(1), u(10)), ErrInvalidChain)
	assert.ErrorIs(t, f.b.AddChain(ctx, admin, chainArbitrum, " ", u(1), u(10)), ErrInvalidChain)
	assert.ErrorIs(t, f.b.AddChain(ctx, admin, chainArbitrum, "arbitrum", u(11), u(10)), ErrInvalidChain)

	require.NoError(t, f.b.SetChainActive(ctx, admin, chainPolygon, false))
	assert.False(t, f.b.IsChainSupported(chainPolygon))
	assert.ErrorIs(t, f.b.SetChainActive(ctx, admin, chainArbitrum, false), ErrChainNotFound)

	// re-adding updates bounds and reactivates
	require.NoError(t, f.b.AddChain(ctx, admin, chainPolygon, "polygon-pos", u(2), u(500)))
	chain, ok := f.b.Chain(chainPolygon)
	require.True(t, ok)
	assert.True(t, chain.Active)
	assert.Equal(t, "polygon-pos", chain.Name)
	assert.Equal(t, uint64(500), chain.MaxTransfer.Uint64())

	added, ok := f.events.Events()[1].(ChainAdded)
	require.True(t, ok)
	assert.True(t, added.Updated)
	assert.Equal(t, uint64(1_000), added.PreviousMaxTransfer.Uint64())

	assert.ErrorIs(t, f.b.AddAssetRoute(ctx, admin, common.Address{}, chainPolygon, u(1)), ErrInvalidAsset)
	assert.ErrorIs(t, f.b.AddAssetRoute(ctx, admin, token, chainPolygon, u(0)), ErrInvalidLimit)
	assert.ErrorIs(t, f.b.AddAssetRoute(ctx, admin, token, chainArbitrum, u(1)), ErrChainNotFound)

	require.NoError(t, f.b.SetAssetRouteActive(ctx, admin, token, chainPolygon, false))
	assert.False(t, f.b.IsAssetSupported(token, chainPolygon))
	assert.ErrorIs(t, f.b.SetAssetRouteActive(ctx, admin, token, chainArbitrum, true), ErrRouteNotFound)

	assert.Len(t, f.b.Chains(), 2)
	assert.Len(t, f.b.AssetRoutes(), 1)
}

func TestFees(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.Equal(t, uint64(10), f.b.GetBridgeFee(chainEthereum, chainPolygon, token).Uint64())
	assert.True(t, f.b.GetBridgeFee(chainPolygon, chainEthereum, token).IsZero())

	assert.ErrorIs(t, f.b.UpdateBridgeFee(ctx, alice, chainEthereum, chainPolygon, u(1)), ErrMissingRole)

	require.NoError(t, f.b.UpdateBridgeFee(ctx, admin, chainEthereum, chainPolygon, u(25)))
	ev, ok := f.events.Events()[0].(FeeUpdated)
	require.True(t, ok)
	assert.Equal(t, uint64(10), ev.OldFee.Uint64())
	assert.Equal(t, uint64(25), ev.NewFee.Uint64())
}

func TestFeeChangeIsNotRetroactive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := f.create(100)
	require.NoError(t, f.b.UpdateBridgeFee(ctx, admin, chainEthereum, chainPolygon, u(40)))

	tr, err := f.b.GetTransferDetails(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), tr.Fee.Uint64())

	ok, err := f.b.CancelTransfer(ctx, alice, id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(1_000), f.balance(alice))
}

func TestQueriesReturnCopies(t *testing.T) {
	f := newFixture(t)
	id := f.create(100)

	tr, err := f.b.GetTransferDetails(id)
	require.NoError(t, err)
	tr.Amount.SetUint64(1)
	tr.Recipient[0] = 0x00

	again, err := f.b.GetTransferDetails(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), again.Amount.Uint64())
	assert.Equal(t, recipient, []byte(again.Recipient))

	fee := f.b.GetBridgeFee(chainEthereum, chainPolygon, token)
	fee.SetUint64(99)
	assert.Equal(t, uint64(10), f.b.GetBridgeFee(chainEthereum, chainPolygon, token).Uint64())
}
