package reports

import (
	"context"

	"github.com/meridian-erp/meridian/internal/ledger"
	"github.com/meridian-erp/meridian/internal/ledger/balance"
)

// SnapshotFunc runs fn against one consistent view of the book. Both
// sources handed to fn must serve the same snapshot. Builders read them
// sequentially, since a snapshot handle need not be safe for concurrent
// use.
type SnapshotFunc func(ctx context.Context, fn func(AccountSource, BalanceSource) error) error

// RepositorySnapshots adapts the ledger repository into a SnapshotFunc.
// Each report build then runs inside one read-only repeatable-read
// transaction: every account total comes from the same MVCC snapshot, so a
// commit landing mid-build cannot make a book of validated entries look
// out of balance.
func RepositorySnapshots(repo *ledger.Repository) SnapshotFunc {
	return func(ctx context.Context, fn func(AccountSource, BalanceSource) error) error {
		return repo.WithSnapshot(ctx, func(ctx context.Context, snap *ledger.Repository) error {
			return fn(snap, balance.NewCalculator(snap))
		})
	}
}
