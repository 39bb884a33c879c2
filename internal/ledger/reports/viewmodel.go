package reports

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/meridian-erp/meridian/internal/ledger"
)

// TrialBalanceViewModel wraps the report with display-ready totals.
type TrialBalanceViewModel struct {
	PeriodLabel  string       `json:"period_label"`
	TotalDebits  string       `json:"total_debits"`
	TotalCredits string       `json:"total_credits"`
	Variance     string       `json:"variance"`
	Report       TrialBalance `json:"report"`
}

// NewTrialBalanceViewModel builds the presentation wrapper.
func NewTrialBalanceViewModel(report TrialBalance) TrialBalanceViewModel {
	return TrialBalanceViewModel{
		PeriodLabel:  report.AsOf.Format("2006-01-02"),
		TotalDebits:  FormatAmount(report.TotalDebits),
		TotalCredits: FormatAmount(report.TotalCredits),
		Variance:     FormatAmount(report.Variance()),
		Report:       report,
	}
}

// BalanceSheetViewModel wraps the report with display-ready totals.
type BalanceSheetViewModel struct {
	PeriodLabel      string       `json:"period_label"`
	TotalAssets      string       `json:"total_assets"`
	TotalLiabilities string       `json:"total_liabilities"`
	TotalEquity      string       `json:"total_equity"`
	NetIncome        string       `json:"net_income"`
	Report           BalanceSheet `json:"report"`
}

// NewBalanceSheetViewModel builds the presentation wrapper.
func NewBalanceSheetViewModel(report BalanceSheet) BalanceSheetViewModel {
	return BalanceSheetViewModel{
		PeriodLabel:      report.AsOf.Format("2006-01-02"),
		TotalAssets:      FormatAmount(report.TotalAssets),
		TotalLiabilities: FormatAmount(report.TotalLiabilities),
		TotalEquity:      FormatAmount(report.TotalEquity),
		NetIncome:        FormatAmount(report.NetIncome),
		Report:           report,
	}
}

var printer = message.NewPrinter(language.English)

// FormatAmount renders an amount with thousands separators at ledger scale,
// e.g. "1,234,567.89". Formatting only; amounts are never summed as floats.
func FormatAmount(amount decimal.Decimal) string {
	f, _ := amount.Round(ledger.Scale).Float64()
	return printer.Sprintf("%.2f", f)
}
