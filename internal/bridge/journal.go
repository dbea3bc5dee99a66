package bridge

import (
	"context"
)

// Commit is the durable outcome of a transfer call: the transfer as it reads
// once the call returns and whatever else the call advanced.
type Commit struct {
	Op       string
	Transfer Transfer
	// NextTransferID and Route are set by CreateTransfer
	NextTransferID uint64
	Route          *AssetRoute
	// Confirmation and Proof are set by ConfirmTransfer
	Confirmation *Confirmation
	Proof        []byte
	// FailureReason is set by MarkFailed
	FailureReason string
}

// Journal makes transfer state durable together with the ledger movement
// that produced it. Commit runs move, nil when the call moves no funds, and
// then records c. When either step fails nothing may be kept; the bridge
// leaves its own state untouched and the call fails.
type Journal interface {
	Commit(ctx context.Context, c Commit, move func(ctx context.Context) error) error
}

// JournalFunc adapts a function to Journal
type JournalFunc func(ctx context.Context, c Commit, move func(ctx context.Context) error) error

func (f JournalFunc) Commit(ctx context.Context, c Commit, move func(ctx context.Context) error) error {
	return f(ctx, c, move)
}

// WithJournal installs a durable journal. Without one, moves run directly on the ledger.
func WithJournal(j Journal) Option {
	return func(b *Bridge) {
		if j != nil {
			b.journal = j
		}
	}
}

type directJournal struct{}

func (directJournal) Commit(ctx context.Context, _ Commit, move func(ctx context.Context) error) error {
	if move == nil {
		return nil
	}
	return move(ctx)
}
