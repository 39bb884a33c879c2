// Package balance computes point-in-time and running balances over the
// entry log. All arithmetic is fixed-point decimal; floats never enter a
// summation.
package balance

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian/internal/ledger"
)

// Store is the read path the calculator depends on. Implementations should
// serve one consistent snapshot per call sequence.
type Store interface {
	Account(ctx context.Context, id int64) (ledger.Account, error)
	ChildAccounts(ctx context.Context, parentID int64) ([]ledger.Account, error)
	LineTotals(ctx context.Context, accountID int64, asOf time.Time) (debit, credit decimal.Decimal, err error)
	OrderedLines(ctx context.Context, accountID int64, from, to time.Time) ([]ledger.EntryLine, error)
	OpeningBalance(ctx context.Context, accountID int64, fiscalYear int) (decimal.Decimal, error)
}

// PointBalance is the result of a point-in-time balance query. Debit and
// Credit are raw totals; Balance is signed per the account's normal side.
type PointBalance struct {
	AccountID int64
	AsOf      time.Time
	Side      ledger.NormalSide
	Debit     decimal.Decimal
	Credit    decimal.Decimal
	Balance   decimal.Decimal
}

// RunningLine pairs a line with the cumulative balance after it.
type RunningLine struct {
	Line         ledger.EntryLine
	BalanceAfter decimal.Decimal
}

// maxTreeDepth bounds descendant traversal, mirroring the chart's cycle
// guard.
const maxTreeDepth = 64

// Calculator derives balances from the entry log.
type Calculator struct {
	store Store
}

// NewCalculator constructs a Calculator.
func NewCalculator(store Store) *Calculator {
	return &Calculator{store: store}
}

// PointBalanceFor sums all posted lines for the account up to asOf. With
// includeChildren, descendants' raw debit/credit totals are folded into the
// parent's raw totals before the sign is applied; already-signed child
// balances are never aggregated, so mixed debit/credit subtrees stay exact.
func (c *Calculator) PointBalanceFor(ctx context.Context, accountID int64, asOf time.Time, includeChildren bool) (PointBalance, error) {
	account, err := c.store.Account(ctx, accountID)
	if err != nil {
		return PointBalance{}, err
	}
	side, err := account.NormalSide()
	if err != nil {
		return PointBalance{}, err
	}
	debit, credit, err := c.rawTotals(ctx, accountID, asOf, includeChildren, 0)
	if err != nil {
		return PointBalance{}, err
	}
	return PointBalance{
		AccountID: accountID,
		AsOf:      asOf,
		Side:      side,
		Debit:     debit,
		Credit:    credit,
		Balance:   Signed(side, debit, credit),
	}, nil
}

func (c *Calculator) rawTotals(ctx context.Context, accountID int64, asOf time.Time, includeChildren bool, depth int) (decimal.Decimal, decimal.Decimal, error) {
	if depth > maxTreeDepth {
		return decimal.Zero, decimal.Zero, fmt.Errorf("balance: account %d exceeds tree depth %d", accountID, maxTreeDepth)
	}
	debit, credit, err := c.store.LineTotals(ctx, accountID, asOf)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if !includeChildren {
		return debit, credit, nil
	}
	children, err := c.store.ChildAccounts(ctx, accountID)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	for _, child := range children {
		childDebit, childCredit, err := c.rawTotals(ctx, child.ID, asOf, true, depth+1)
		if err != nil {
			return decimal.Zero, decimal.Zero, err
		}
		debit = debit.Add(childDebit)
		credit = credit.Add(childCredit)
	}
	return debit, credit, nil
}

// RunningBalance folds lines into a deterministic sequence of cumulative
// balances. Lines are ordered by (date, id) so tied dates always resolve
// the same way. The input slice is not mutated.
func RunningBalance(side ledger.NormalSide, lines []ledger.EntryLine, opening decimal.Decimal) []RunningLine {
	ordered := make([]ledger.EntryLine, len(lines))
	copy(ordered, lines)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].Date.Equal(ordered[j].Date) {
			return ordered[i].Date.Before(ordered[j].Date)
		}
		return ordered[i].ID < ordered[j].ID
	})

	out := make([]RunningLine, 0, len(ordered))
	running := opening
	for _, line := range ordered {
		running = running.Add(Signed(side, line.Debit, line.Credit))
		out = append(out, RunningLine{Line: line, BalanceAfter: running})
	}
	return out
}

// RunningBalanceFor loads an account's posted lines for [from, to] and
// computes the running sequence on top of the period opening balance.
func (c *Calculator) RunningBalanceFor(ctx context.Context, accountID int64, from, to time.Time) ([]RunningLine, error) {
	account, err := c.store.Account(ctx, accountID)
	if err != nil {
		return nil, err
	}
	side, err := account.NormalSide()
	if err != nil {
		return nil, err
	}
	opening, err := c.OpeningBalanceForPeriod(ctx, accountID, from)
	if err != nil {
		return nil, err
	}
	lines, err := c.store.OrderedLines(ctx, accountID, from, to)
	if err != nil {
		return nil, err
	}
	return RunningBalance(side, lines, opening), nil
}

// OpeningBalanceForPeriod is the fiscal-year opening balance plus the
// signed net movement from year start up to, not including, periodStart.
// Two steps because opening balances are recorded once per fiscal year.
func (c *Calculator) OpeningBalanceForPeriod(ctx context.Context, accountID int64, periodStart time.Time) (decimal.Decimal, error) {
	account, err := c.store.Account(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	side, err := account.NormalSide()
	if err != nil {
		return decimal.Zero, err
	}
	opening, err := c.store.OpeningBalance(ctx, accountID, periodStart.Year())
	if err != nil {
		return decimal.Zero, err
	}
	yearStart := time.Date(periodStart.Year(), time.January, 1, 0, 0, 0, 0, periodStart.Location())
	if !periodStart.After(yearStart) {
		return opening, nil
	}
	debit, credit, err := c.store.LineTotals(ctx, accountID, periodStart.AddDate(0, 0, -1))
	if err != nil {
		return decimal.Zero, err
	}
	yearDebit, yearCredit := decimal.Zero, decimal.Zero
	if yearStart.AddDate(0, 0, -1).After(time.Time{}) {
		yearDebit, yearCredit, err = c.store.LineTotals(ctx, accountID, yearStart.AddDate(0, 0, -1))
		if err != nil {
			return decimal.Zero, err
		}
	}
	movement := Signed(side, debit.Sub(yearDebit), credit.Sub(yearCredit))
	return opening.Add(movement), nil
}

// Signed applies the normal-balance convention to raw totals.
func Signed(side ledger.NormalSide, debit, credit decimal.Decimal) decimal.Decimal {
	if side == ledger.NormalSideDebit {
		return debit.Sub(credit)
	}
	return credit.Sub(debit)
}
