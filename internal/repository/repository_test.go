package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"bridge-backend/internal/bridge"
	"bridge-backend/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	testAsset = common.HexToAddress("0x00000000000000000000000000000000000e0001")
	holderA   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	holderB   = common.HexToAddress("0x00000000000000000000000000000000000000b1")
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		DisableAutomaticPing:   true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return gdb, mock
}

func transferColumns() []string {
	return []string{"id", "initiator", "recipient", "asset", "amount", "fee", "source_chain",
		"destination_chain", "status", "confirmation_count", "failure_reason", "created_at", "completed_at", "updated_at"}
}

func TestTransferRepositoryGetByID(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewTransferRepository(gdb)
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(`SELECT \* FROM "bridge_transfers" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows(transferColumns()).AddRow(
			7, models.AddressString(holderA), "0xbeef", models.AddressString(testAsset), "100", "10",
			1, 137, "pending", 1, "", created, nil, created))

	rec, err := repo.GetByID(context.Background(), 7)
	require.NoError(t, err)

	transfer, err := rec.ToTransfer()
	require.NoError(t, err)
	assert.Equal(t, uint64(7), transfer.ID)
	assert.Equal(t, holderA, transfer.Initiator)
	assert.Equal(t, []byte{0xbe, 0xef}, []byte(transfer.Recipient))
	assert.Equal(t, bridge.StatusPending, transfer.Status)
	assert.Equal(t, uint64(110), transfer.Total().Uint64())
	assert.True(t, transfer.CompletedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferRepositoryUpsert(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewTransferRepository(gdb)

	mock.ExpectExec(`INSERT INTO "bridge_transfers" .* ON CONFLICT \("id"\) DO UPDATE SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := models.NewTransferRecord(bridge.Transfer{
		ID:               3,
		Initiator:        holderA,
		Recipient:        []byte{1, 2},
		Asset:            testAsset,
		Amount:           uint256.NewInt(50),
		SourceChain:      1,
		DestinationChain: 137,
		Status:           bridge.StatusCompleted,
		CreatedAt:        time.Now().UTC(),
		CompletedAt:      time.Now().UTC(),
	})
	assert.Equal(t, "0", rec.Fee)
	require.NotNil(t, rec.CompletedAt)

	require.NoError(t, repo.Upsert(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferRepositoryCountByStatus(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewTransferRepository(gdb)

	mock.ExpectQuery(`SELECT status, COUNT\(\*\) AS count FROM "bridge_transfers" GROUP BY "status"`).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).AddRow("pending", 4).AddRow("completed", 9))

	counts, err := repo.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"pending": 4, "completed": 9}, counts)
}

func TestConfigRepositoryMissingKey(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewConfigRepository(gdb)

	mock.ExpectQuery(`SELECT \* FROM "global_configs" WHERE config_key = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "config_key", "config_value"}))

	paused, err := repo.GetBool(context.Background(), models.ConfigKeyPaused)
	require.NoError(t, err)
	assert.False(t, paused)

	mock.ExpectQuery(`SELECT \* FROM "global_configs" WHERE config_key = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "config_key", "config_value"}).AddRow(1, models.ConfigKeyNextTransferID, "42"))

	next, err := repo.GetUint64(context.Background(), models.ConfigKeyNextTransferID)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), next)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func balanceRows(amount string) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "asset", "holder", "amount", "updated_at"})
	if amount != "" {
		rows.AddRow(1, models.AddressString(testAsset), models.AddressString(holderA), amount, time.Now())
	}
	return rows
}

func TestBalanceLedgerTransfer(t *testing.T) {
	gdb, mock := newMockDB(t)
	ledger := NewBalanceLedger(gdb)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "bridge_token_balances" .* FOR UPDATE`).WillReturnRows(balanceRows("150"))
	mock.ExpectQuery(`SELECT \* FROM "bridge_token_balances" .* FOR UPDATE`).WillReturnRows(balanceRows(""))
	mock.ExpectQuery(`INSERT INTO "bridge_token_balances" .* ON CONFLICT`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery(`INSERT INTO "bridge_token_balances" .* ON CONFLICT`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
	mock.ExpectCommit()

	require.NoError(t, ledger.Transfer(context.Background(), testAsset, holderA, holderB, uint256.NewInt(100)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBalanceLedgerInsufficient(t *testing.T) {
	gdb, mock := newMockDB(t)
	ledger := NewBalanceLedger(gdb)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WillReturnRows(balanceRows("50"))
	mock.ExpectQuery(`FOR UPDATE`).WillReturnRows(balanceRows(""))
	mock.ExpectRollback()

	err := ledger.Transfer(context.Background(), testAsset, holderA, holderB, uint256.NewInt(100))
	assert.ErrorIs(t, err, bridge.ErrInsufficientBalance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBalanceLedgerBalanceOfUnknownHolder(t *testing.T) {
	gdb, mock := newMockDB(t)
	mock.ExpectQuery(`SELECT \* FROM "bridge_token_balances"`).WillReturnRows(balanceRows(""))

	bal, err := NewBalanceLedger(gdb).BalanceOf(context.Background(), testAsset, holderB)
	require.NoError(t, err)
	assert.True(t, bal.IsZero())
}

func TestStateStoreLoadEmpty(t *testing.T) {
	gdb, mock := newMockDB(t)
	mock.ExpectQuery(`SELECT \* FROM "bridge_roles"`).WillReturnRows(sqlmock.NewRows([]string{"id", "role", "account"}))

	_, found, err := NewStateStore(gdb).Load(context.Background())
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepositoryList(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewEventRepository(gdb)
	emitted := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	id := uint64(5)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "bridge_event_logs" WHERE name = \$1 AND transfer_id = \$2`).
		WithArgs("TransferCompleted", id).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT \* FROM "bridge_event_logs" WHERE name = \$1 AND transfer_id = \$2 ORDER BY created_at DESC LIMIT`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "transfer_id", "payload", "created_at"}).
			AddRow("0b0e6f6e-6c0f-4b7a-9d55-8f1d2f3a4b5c", "TransferCompleted", id, []byte(`{"amount":"100"}`), emitted))

	events, total, err := repo.List(context.Background(), EventFilter{Name: "TransferCompleted", TransferID: &id, Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, events, 1)
	assert.Equal(t, "100", events[0].Payload["amount"])
	require.NotNil(t, events[0].TransferID)
	assert.Equal(t, id, *events[0].TransferID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransferRepositoryListConfirmations(t *testing.T) {
	gdb, mock := newMockDB(t)
	repo := NewTransferRepository(gdb)
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT \* FROM "bridge_confirmations" WHERE transfer_id = \$1 ORDER BY id ASC`).
		WithArgs(uint64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "transfer_id", "validator", "proof", "created_at"}).
			AddRow(1, 9, models.AddressString(holderA), "0x01", at).
			AddRow(2, 9, models.AddressString(holderB), "", at))

	confirmations, err := repo.ListConfirmations(context.Background(), 9)
	require.NoError(t, err)
	require.Len(t, confirmations, 2)
	assert.Equal(t, models.AddressString(holderA), confirmations[0].Validator)
	assert.Equal(t, "0x01", confirmations[0].Proof)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func journalCommit() bridge.Commit {
	now := time.Now().UTC()
	return bridge.Commit{
		Op: "CreateTransfer",
		Transfer: bridge.Transfer{
			ID:               4,
			Initiator:        holderA,
			Recipient:        []byte{0xca, 0xfe},
			Asset:            testAsset,
			Amount:           uint256.NewInt(90),
			Fee:              uint256.NewInt(10),
			SourceChain:      1,
			DestinationChain: 137,
			Status:           bridge.StatusPending,
			CreatedAt:        now,
		},
		NextTransferID: 5,
		Route: &bridge.AssetRoute{
			Asset:            testAsset,
			DestinationChain: 137,
			Active:           true,
			DailyLimit:       uint256.NewInt(500),
			DailyTransferred: uint256.NewInt(90),
			WindowStart:      now,
		},
	}
}

func TestStateJournalCommitsMoveAndRowsTogether(t *testing.T) {
	gdb, mock := newMockDB(t)
	ledger := NewBalanceLedger(gdb)
	journal := NewStateJournal(gdb)
	c := journalCommit()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "bridge_token_balances" .* FOR UPDATE`).WillReturnRows(balanceRows("150"))
	mock.ExpectQuery(`SELECT \* FROM "bridge_token_balances" .* FOR UPDATE`).WillReturnRows(balanceRows(""))
	mock.ExpectQuery(`INSERT INTO "bridge_token_balances"`).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery(`INSERT INTO "bridge_token_balances"`).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
	mock.ExpectExec(`INSERT INTO "bridge_transfers" .* ON CONFLICT`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO "bridge_asset_routes" .* ON CONFLICT`).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery(`INSERT INTO "global_configs" .* ON CONFLICT`).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
	mock.ExpectCommit()

	err := journal.Commit(context.Background(), c, func(ctx context.Context) error {
		return ledger.Transfer(ctx, testAsset, holderA, holderB, c.Transfer.Total())
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// a failed transfer row write takes the custody debit and the id counter down with it
func TestStateJournalRollsBackMoveWhenTransferInsertFails(t *testing.T) {
	gdb, mock := newMockDB(t)
	ledger := NewBalanceLedger(gdb)
	journal := NewStateJournal(gdb)
	c := journalCommit()

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WillReturnRows(balanceRows("150"))
	mock.ExpectQuery(`FOR UPDATE`).WillReturnRows(balanceRows(""))
	mock.ExpectQuery(`INSERT INTO "bridge_token_balances"`).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery(`INSERT INTO "bridge_token_balances"`).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
	mock.ExpectExec(`INSERT INTO "bridge_transfers"`).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := journal.Commit(context.Background(), c, func(ctx context.Context) error {
		return ledger.Transfer(ctx, testAsset, holderA, holderB, c.Transfer.Total())
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save transfer 4")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStateJournalKeepsLedgerRejection(t *testing.T) {
	gdb, mock := newMockDB(t)
	ledger := NewBalanceLedger(gdb)
	c := journalCommit()

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WillReturnRows(balanceRows("50"))
	mock.ExpectQuery(`FOR UPDATE`).WillReturnRows(balanceRows(""))
	mock.ExpectRollback()

	err := NewStateJournal(gdb).Commit(context.Background(), c, func(ctx context.Context) error {
		return ledger.Transfer(ctx, testAsset, holderA, holderB, c.Transfer.Total())
	})
	assert.ErrorIs(t, err, bridge.ErrInsufficientBalance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStateJournalRecordsConfirmationAndFailureReason(t *testing.T) {
	gdb, mock := newMockDB(t)
	c := journalCommit()
	c.Op = "MarkFailed"
	c.Route, c.NextTransferID = nil, 0
	c.Transfer.Status = bridge.StatusFailed
	c.FailureReason = "destination reverted"
	c.Confirmation = &bridge.Confirmation{TransferID: 4, Validator: holderB}
	c.Proof = []byte{0x01, 0x02}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "bridge_transfers"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "bridge_transfers" SET "failure_reason"=\$1`).
		WithArgs("destination reverted", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO "bridge_confirmations" .* ON CONFLICT .*DO NOTHING`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	require.NoError(t, NewStateJournal(gdb).Commit(context.Background(), c, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}
