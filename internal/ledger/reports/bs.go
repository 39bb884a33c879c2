package reports

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-erp/meridian/internal/ledger"
	"github.com/meridian-erp/meridian/internal/ledger/classify"
)

// BalanceSheetLine is one account inside a section. Tier records which
// classifier step placed it there, for audit.
type BalanceSheetLine struct {
	Code   string
	Name   string
	Amount decimal.Decimal
	Tier   classify.Tier
}

// BalanceSheetSection holds the lines and total for one bucket.
type BalanceSheetSection struct {
	Label string
	Lines []BalanceSheetLine
	Total decimal.Decimal
}

// BalanceSheet partitions the book into the five standard sections, with
// current-period net income folded into equity as an explicit line.
type BalanceSheet struct {
	AsOf                  time.Time
	CurrentAssets         BalanceSheetSection
	NonCurrentAssets      BalanceSheetSection
	CurrentLiabilities    BalanceSheetSection
	NonCurrentLiabilities BalanceSheetSection
	Equity                BalanceSheetSection
	NetIncome             decimal.Decimal
	TotalAssets           decimal.Decimal
	TotalLiabilities      decimal.Decimal
	TotalEquity           decimal.Decimal
	Balanced              bool
	Variance              decimal.Decimal
	Inconsistencies       []string
}

// BalanceSheetBuilder assembles balance sheets.
type BalanceSheetBuilder struct {
	accounts    AccountSource
	balances    BalanceSource
	snapshots   SnapshotFunc
	classifier  *classify.Classifier
	epsilon     decimal.Decimal
	concurrency int
}

// NewBalanceSheetBuilder constructs a builder. epsilon is the rounding
// tolerance for the A == L + E identity.
func NewBalanceSheetBuilder(accounts AccountSource, balances BalanceSource, classifier *classify.Classifier, epsilon decimal.Decimal) *BalanceSheetBuilder {
	if classifier == nil {
		classifier = classify.NewClassifier()
	}
	if epsilon.IsZero() {
		epsilon = decimal.New(1, -ledger.Scale)
	}
	return &BalanceSheetBuilder{accounts: accounts, balances: balances, classifier: classifier, epsilon: epsilon, concurrency: 8}
}

// WithSnapshots routes every build through one consistent read snapshot
// instead of the constructor sources.
func (b *BalanceSheetBuilder) WithSnapshots(fn SnapshotFunc) {
	b.snapshots = fn
}

// Build partitions accounts via the classifier, sums each section and folds
// net income (revenue minus expense balances, computed the same way as any
// point balance) into equity. Without the fold the sheet cannot balance.
// An identity violation is reported alongside the sheet, never corrected.
func (b *BalanceSheetBuilder) Build(ctx context.Context, asOf time.Time) (BalanceSheet, error) {
	if b.snapshots != nil {
		var report BalanceSheet
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
func (b *BalanceSheetBuilder) build(ctx context.Context, accountSrc AccountSource, balanceSrc BalanceSource, limit int, asOf time.Time) (BalanceSheet, error) {
	accounts, err := accountSrc.ListAccounts(ctx)
	if err != nil {
		return BalanceSheet{}, err
	}

	balances := make([]decimal.Decimal, len(accounts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, account := range accounts {
		i, account := i, account
		g.Go(func() error {
			pb, err := balanceSrc.PointBalanceFor(gctx, account.ID, asOf, false)
			if err != nil {
				return err
			}
			balances[i] = pb.Balance
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return BalanceSheet{}, err
	}

	report := BalanceSheet{
		AsOf:                  asOf,
		CurrentAssets:         BalanceSheetSection{Label: "Current Assets"},
		NonCurrentAssets:      BalanceSheetSection{Label: "Non-Current Assets"},
		CurrentLiabilities:    BalanceSheetSection{Label: "Current Liabilities"},
		NonCurrentLiabilities: BalanceSheetSection{Label: "Non-Current Liabilities"},
		Equity:                BalanceSheetSection{Label: "Equity"},
		NetIncome:             decimal.Zero,
	}

	for i, account := range accounts {
		amount := balances[i]
		switch account.Type {
		case ledger.AccountTypeRevenue:
			report.NetIncome = report.NetIncome.Add(amount)
			continue
		case ledger.AccountTypeExpense:
			report.NetIncome = report.NetIncome.Sub(amount)
			continue
		}
		decision, err := b.classifier.Classify(account)
		if err != nil {
			return BalanceSheet{}, fmt.Errorf("classify %s: %w", account.Code, err)
		}
		if decision.Tier == classify.TierDefault {
			report.Inconsistencies = append(report.Inconsistencies,
				fmt.Sprintf("account %s (%s) classified into %s by fallback default", account.Code, account.Name, decision.Section))
		}
		if amount.IsZero() {
			continue
		}
		line := BalanceSheetLine{Code: account.Code, Name: account.Name, Amount: amount, Tier: decision.Tier}
		section := report.section(decision.Section)
		section.Lines = append(section.Lines, line)
		section.Total = section.Total.Add(amount)
	}

	if !report.NetIncome.IsZero() {
		report.Equity.Lines = append(report.Equity.Lines, BalanceSheetLine{
			Code:   "",
			Name:   "Net income (current period)",
			Amount: report.NetIncome,
			Tier:   classify.TierKeyword,
		})
		report.Equity.Total = report.Equity.Total.Add(report.NetIncome)
	}

	for _, section := range report.sections() {
		sort.Slice(section.Lines, func(i, j int) bool { return section.Lines[i].Code < section.Lines[j].Code })
	}

	report.TotalAssets = report.CurrentAssets.Total.Add(report.NonCurrentAssets.Total)
	report.TotalLiabilities = report.CurrentLiabilities.Total.Add(report.NonCurrentLiabilities.Total)
	report.TotalEquity = report.Equity.Total
	report.Variance = report.TotalAssets.Sub(report.TotalLiabilities.Add(report.TotalEquity))
	report.Balanced = report.Variance.Abs().LessThanOrEqual(b.epsilon)
	if !report.Balanced {
		report.Inconsistencies = append(report.Inconsistencies,
			fmt.Sprintf("balance sheet identity violated: assets %s != liabilities %s + equity %s (variance %s)",
				report.TotalAssets.StringFixed(ledger.Scale),
				report.TotalLiabilities.StringFixed(ledger.Scale),
				report.TotalEquity.StringFixed(ledger.Scale),
				report.Variance.StringFixed(ledger.Scale)))
	}
	return report, nil
}

func (bs *BalanceSheet) section(s classify.Section) *BalanceSheetSection {
	switch s {
	case classify.SectionCurrentAsset:
		return &bs.CurrentAssets
	case classify.SectionNonCurrentAsset:
		return &bs.NonCurrentAssets
	case classify.SectionCurrentLiability:
		return &bs.CurrentLiabilities
	case classify.SectionNonCurrentLiability:
		return &bs.NonCurrentLiabilities
	default:
		return &bs.Equity
	}
}

func (bs *BalanceSheet) sections() []*BalanceSheetSection {
	return []*BalanceSheetSection{
		&bs.CurrentAssets, &bs.NonCurrentAssets,
		&bs.CurrentLiabilities, &bs.NonCurrentLiabilities, &bs.Equity,
	}
}
