package reports

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian/internal/ledger"
	"github.com/meridian-erp/meridian/internal/ledger/balance"
)

type stubAccounts []ledger.Account

func (s stubAccounts) ListAccounts(ctx context.Context) ([]ledger.Account, error) {
	return s, nil
}

type stubBalances map[int64]balance.PointBalance

func (s stubBalances) PointBalanceFor(ctx context.Context, accountID int64, asOf time.Time, includeChildren bool) (balance.PointBalance, error) {
	pb := s[accountID]
	pb.AccountID = accountID
	pb.AsOf = asOf
	return pb, nil
}

func amt(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func asOfDate() time.Time { return time.Date(2025, time.June, 30, 0, 0, 0, 0, time.UTC) }

func TestTrialBalanceBalancedBook(t *testing.T) {
	accounts := stubAccounts{
		{ID: 1, Code: "1000", Name: "Cash", Type: ledger.AccountTypeAsset},
		{ID: 2, Code: "2000", Name: "Payables", Type: ledger.AccountTypeLiability},
		{ID: 3, Code: "3000", Name: "Share capital", Type: ledger.AccountTypeEquity},
	}
	balances := stubBalances{
		1: {Side: ledger.NormalSideDebit, Balance: amt("1000.00")},
		2: {Side: ledger.NormalSideCredit, Balance: amt("400.00")},
		3: {Side: ledger.NormalSideCredit, Balance: amt("600.00")},
	}

	report, err := NewTrialBalanceBuilder(accounts, balances, false).Build(context.Background(), asOfDate())
	require.NoError(t, err)

	assert.True(t, report.Balanced)
	assert.Empty(t, report.Inconsistencies)
	assert.True(t, report.TotalDebits.Equal(amt("1000.00")))
	assert.True(t, report.TotalCredits.Equal(amt("1000.00")))
	assert.True(t, report.Variance().IsZero())

	require.Len(t, report.Rows, 3)
	// Rows sort by code.
	assert.Equal(t, "1000", report.Rows[0].Code)
	assert.True(t, report.Rows[0].Debit.Equal(amt("1000.00")))
	assert.True(t, report.Rows[0].Credit.IsZero())
	assert.True(t, report.Rows[1].Credit.Equal(amt("400.00")))
}

func TestTrialBalanceContraBalanceFlipsColumn(t *testing.T) {
	accounts := stubAccounts{
		{ID: 1, Code: "1500", Name: "Accumulated depreciation", Type: ledger.AccountTypeAsset},
		{ID: 2, Code: "2000", Name: "Payables", Type: ledger.AccountTypeLiability},
	}
	balances := stubBalances{
		// Debit-normal account with a credit-heavy (negative) balance.
		1: {Side: ledger.NormalSideDebit, Balance: amt("-200.00")},
		2: {Side: ledger.NormalSideCredit, Balance: amt("-200.00")},
	}

	report, err := NewTrialBalanceBuilder(accounts, balances, false).Build(context.Background(), asOfDate())
	require.NoError(t, err)

	require.Len(t, report.Rows, 2)
	assert.True(t, report.Rows[0].Debit.IsZero())
	assert.True(t, report.Rows[0].Credit.Equal(amt("200.00")), "contra asset lands in the credit column")
	assert.True(t, report.Rows[1].Debit.Equal(amt("200.00")), "contra liability lands in the debit column")
	assert.True(t, report.Balanced)
}

func TestTrialBalanceImbalanceIsReportedNotCorrected(t *testing.T) {
	accounts := stubAccounts{
		{ID: 1, Code: "1000", Name: "Cash", Type: ledger.AccountTypeAsset},
		{ID: 2, Code: "2000", Name: "Payables", Type: ledger.AccountTypeLiability},
	}
	balances := stubBalances{
		1: {Side: ledger.NormalSideDebit, Balance: amt("500.00")},
		2: {Side: ledger.NormalSideCredit, Balance: amt("499.00")},
	}

	report, err := NewTrialBalanceBuilder(accounts, balances, false).Build(context.Background(), asOfDate())
	require.NoError(t, err)

	assert.False(t, report.Balanced)
	assert.True(t, report.Variance().Equal(amt("1.00")))
	require.Len(t, report.Inconsistencies, 1)
	assert.Contains(t, report.Inconsistencies[0], "out of balance")
	assert.Len(t, report.Rows, 2, "rows still render alongside the finding")
}

func TestTrialBalanceSkipZero(t *testing.T) {
	accounts := stubAccounts{
		{ID: 1, Code: "1000", Name: "Cash", Type: ledger.AccountTypeAsset},
		{ID: 2, Code: "1100", Name: "Dormant", Type: ledger.AccountTypeAsset},
	}
	balances := stubBalances{
		1: {Side: ledger.NormalSideDebit, Balance: amt("10.00")},
		2: {Side: ledger.NormalSideDebit, Balance: decimal.Zero},
	}

	report, err := NewTrialBalanceBuilder(accounts, balances, true).Build(context.Background(), asOfDate())
	require.NoError(t, err)
	require.Len(t, report.Rows, 1)
	assert.Equal(t, "1000", report.Rows[0].Code)
}

// driftingBalances serves a pre-commit total on the first read and
// post-commit totals on every later read, the interleaving a concurrent
// writer produces when reads come from independent snapshots.
type driftingBalances struct {
	mu     sync.Mutex
	reads  int
	before stubBalances
	after  stubBalances
}

func (d *driftingBalances) PointBalanceFor(ctx context.Context, accountID int64, asOf time.Time, includeChildren bool) (balance.PointBalance, error) {
	d.mu.Lock()
	src := d.after
	if d.reads == 0 {
		src = d.before
	}
	d.reads++
	d.mu.Unlock()
	return src.PointBalanceFor(ctx, accountID, asOf, includeChildren)
}

// sequentialBalances fails the test if two reads ever overlap, which a
// shared transaction handle cannot tolerate.
type sequentialBalances struct {
	t        *testing.T
	inner    stubBalances
	inFlight atomic.Int32
}

func (s *sequentialBalances) PointBalanceFor(ctx context.Context, accountID int64, asOf time.Time, includeChildren bool) (balance.PointBalance, error) {
	if s.inFlight.Add(1) > 1 {
		s.t.Error("snapshot reads overlapped")
	}
	defer s.inFlight.Add(-1)
	time.Sleep(time.Millisecond)
	return s.inner.PointBalanceFor(ctx, accountID, asOf, includeChildren)
}

func TestTrialBalanceSnapshotSeesOneConsistentBook(t *testing.T) {
	accounts := stubAccounts{
		{ID: 1, Code: "1000", Name: "Cash", Type: ledger.AccountTypeAsset},
		{ID: 2, Code: "2000", Name: "Payables", Type: ledger.AccountTypeLiability},
		{ID: 3, Code: "3000", Name: "Share capital", Type: ledger.AccountTypeEquity},
	}
	before := stubBalances{
		1: {Side: ledger.NormalSideDebit, Balance: amt("1000.00")},
		2: {Side: ledger.NormalSideCredit, Balance: amt("400.00")},
		3: {Side: ledger.NormalSideCredit, Balance: amt("600.00")},
	}
	// A writer commits {Dr 500 Cash / Cr 500 Share capital} mid-build.
	// Both states balance on their own; only a mixed read does not.
	after := stubBalances{
		1: {Side: ledger.NormalSideDebit, Balance: amt("1500.00")},
		2: {Side: ledger.NormalSideCredit, Balance: amt("400.00")},
		3: {Side: ledger.NormalSideCredit, Balance: amt("1100.00")},
	}
	live := &driftingBalances{before: before, after: after}

	builder := NewTrialBalanceBuilder(accounts, live, false)
	snapshot := &sequentialBalances{t: t, inner: before}
	builder.WithSnapshots(func(ctx context.Context, fn func(AccountSource, BalanceSource) error) error {
		return fn(accounts, snapshot)
	})

	report, err := builder.Build(context.Background(), asOfDate())
	require.NoError(t, err)

	assert.True(t, report.Balanced, "snapshot reads must all come from one state")
	assert.Empty(t, report.Inconsistencies)
	assert.True(t, report.TotalDebits.Equal(amt("1000.00")))
	assert.Zero(t, live.reads, "builds must bypass the pool-level sources once a snapshot is set")
}

func TestTrialBalanceRepeatedBuildsAreIdentical(t *testing.T) {
	accounts := stubAccounts{
		{ID: 4, Code: "5000", Name: "Rent", Type: ledger.AccountTypeExpense},
		{ID: 1, Code: "1000", Name: "Cash", Type: ledger.AccountTypeAsset},
		{ID: 6, Code: "4000", Name: "Sales", Type: ledger.AccountTypeRevenue},
		{ID: 2, Code: "2000", Name: "Payables", Type: ledger.AccountTypeLiability},
		{ID: 5, Code: "1500", Name: "Accumulated depreciation", Type: ledger.AccountTypeAsset},
		{ID: 3, Code: "3000", Name: "Share capital", Type: ledger.AccountTypeEquity},
	}
	balances := stubBalances{
		1: {Side: ledger.NormalSideDebit, Balance: amt("900.00")},
		2: {Side: ledger.NormalSideCredit, Balance: amt("400.00")},
		3: {Side: ledger.NormalSideCredit, Balance: amt("500.00")},
		4: {Side: ledger.NormalSideDebit, Balance: amt("150.00")},
		5: {Side: ledger.NormalSideDebit, Balance: amt("-200.00")},
		6: {Side: ledger.NormalSideCredit, Balance: amt("350.00")},
	}

	builder := NewTrialBalanceBuilder(accounts, balances, false)
	first, err := builder.Build(context.Background(), asOfDate())
	require.NoError(t, err)
	second, err := builder.Build(context.Background(), asOfDate())
	require.NoError(t, err)

	// Same log, same as-of date: byte-identical report, regardless of the
	// order the concurrent per-account reads complete in.
	assert.Equal(t, first, second)
}

func TestColumns(t *testing.T) {
	debit, credit := Columns(ledger.NormalSideDebit, amt("5.00"))
	assert.True(t, debit.Equal(amt("5.00")) && credit.IsZero())

	debit, credit = Columns(ledger.NormalSideDebit, amt("-5.00"))
	assert.True(t, debit.IsZero() && credit.Equal(amt("5.00")))

	debit, credit = Columns(ledger.NormalSideCredit, amt("5.00"))
	assert.True(t, debit.IsZero() && credit.Equal(amt("5.00")))

	debit, credit = Columns(ledger.NormalSideCredit, amt("-5.00"))
	assert.True(t, debit.Equal(amt("5.00")) && credit.IsZero())
}
