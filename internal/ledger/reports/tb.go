// Package reports builds full-book financial reports from the entry log.
// Builders return plain data structures; rendering and transport belong to
// callers. Report-time inconsistencies ride alongside the report, never in
// place of it.
package reports

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-erp/meridian/internal/ledger"
	"github.com/meridian-erp/meridian/internal/ledger/balance"
)

// AccountSource lists the chart of accounts.
type AccountSource interface {
	ListAccounts(ctx context.Context) ([]ledger.Account, error)
}

// BalanceSource computes point-in-time balances.
type BalanceSource interface {
	PointBalanceFor(ctx context.Context, accountID int64, asOf time.Time, includeChildren bool) (balance.PointBalance, error)
}

// TrialBalanceRow presents one account as debit/credit columns per its
// normal-balance convention.
type TrialBalanceRow struct {
	Code   string
	Name   string
	Type   ledger.AccountType
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

// TrialBalance is the full-book report. TotalDebits == TotalCredits iff
// every posted entry passed validation, so the report doubles as a
// continuous integrity audit of the log.
type TrialBalance struct {
	AsOf            time.Time
	Rows            []TrialBalanceRow
	TotalDebits     decimal.Decimal
	TotalCredits    decimal.Decimal
	Balanced        bool
	Inconsistencies []string
}

// Variance returns the absolute debit/credit gap.
func (tb TrialBalance) Variance() decimal.Decimal {
	return tb.TotalDebits.Sub(tb.TotalCredits).Abs()
}

// TrialBalanceBuilder assembles trial balances.
type TrialBalanceBuilder struct {
	accounts    AccountSource
	balances    BalanceSource
	snapshots   SnapshotFunc
	skipZero    bool
	concurrency int
}

// NewTrialBalanceBuilder constructs a builder. skipZero drops accounts with
// a zero balance from the rows (totals are unaffected by definition).
func NewTrialBalanceBuilder(accounts AccountSource, balances BalanceSource, skipZero bool) *TrialBalanceBuilder {
	return &TrialBalanceBuilder{accounts: accounts, balances: balances, skipZero: skipZero, concurrency: 8}
}

// WithSnapshots routes every build through one consistent read snapshot
// instead of the constructor sources.
func (b *TrialBalanceBuilder) WithSnapshots(fn SnapshotFunc) {
	b.snapshots = fn
}

// Build computes every account's point balance as of the date. Each account
// contributes its own lines only; parents are not expanded, which keeps the
// book total free of double counting.
func (b *TrialBalanceBuilder) Build(ctx context.Context, asOf time.Time) (TrialBalance, error) {
	if b.snapshots != nil {
		var report TrialBalance
		err := b.snapshots(ctx, func(accounts AccountSource, balances BalanceSource) error {
			var err error
			report, err = b.build(ctx, accounts, balances, 1, asOf)
			return err
		})
		return report, err
	}
	return b.build(ctx, b.accounts, b.balances, b.concurrency, asOf)
}

// limit 1 keeps reads sequential when the sources share one transaction
// handle.
func (b *TrialBalanceBuilder) build(ctx context.Context, accountSrc AccountSource, balanceSrc BalanceSource, limit int, asOf time.Time) (TrialBalance, error) {
	accounts, err := accountSrc.ListAccounts(ctx)
	if err != nil {
		return TrialBalance{}, err
	}

	results := make([]balance.PointBalance, len(accounts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, account := range accounts {
		i, account := i, account
		g.Go(func() error {
			pb, err := balanceSrc.PointBalanceFor(gctx, account.ID, asOf, false)
			if err != nil {
				return err
			}
			results[i] = pb
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return TrialBalance{}, err
	}

	report := TrialBalance{AsOf: asOf, TotalDebits: decimal.Zero, TotalCredits: decimal.Zero}
	for i, account := range accounts {
		pb := results[i]
		if b.skipZero && pb.Balance.IsZero() {
			continue
		}
		row := TrialBalanceRow{Code: account.Code, Name: account.Name, Type: account.Type}
		row.Debit, row.Credit = Columns(pb.Side, pb.Balance)
		report.Rows = append(report.Rows, row)
		report.TotalDebits = report.TotalDebits.Add(row.Debit)
		report.TotalCredits = report.TotalCredits.Add(row.Credit)
	}
	sort.Slice(report.Rows, func(i, j int) bool { return report.Rows[i].Code < report.Rows[j].Code })

	report.Balanced = report.TotalDebits.Equal(report.TotalCredits)
	if !report.Balanced {
		report.Inconsistencies = append(report.Inconsistencies,
			fmt.Sprintf("trial balance out of balance: debits %s, credits %s, variance %s",
				report.TotalDebits.StringFixed(ledger.Scale),
				report.TotalCredits.StringFixed(ledger.Scale),
				report.Variance().StringFixed(ledger.Scale)))
	}
	return report, nil
}

// Columns places a signed balance on its normal side; a contra balance
// flips to the opposite column.
func Columns(side ledger.NormalSide, signed decimal.Decimal) (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	switch {
	case side == ledger.NormalSideDebit && signed.Sign() >= 0:
		debit = signed
	case side == ledger.NormalSideDebit:
		credit = signed.Neg()
	case signed.Sign() >= 0:
		credit = signed
	default:
		debit = signed.Neg()
	}
	return debit, credit
}
