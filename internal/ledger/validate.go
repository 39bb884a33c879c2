package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Issue describes a single validation finding. Line is the zero-based index
// of the offending line, or -1 when the finding concerns the header.
type Issue struct {
	Code    string
	Line    int
	Message string
}

func (i Issue) Error() string {
	if i.Line < 0 {
		return fmt.Sprintf("%s: %s", i.Code, i.Message)
	}
	return fmt.Sprintf("%s [line %d]: %s", i.Code, i.Line, i.Message)
}

// Issue codes produced by the validator.
const (
	IssueNoLines       = "NO_LINES"
	IssueUnbalanced    = "UNBALANCED"
	IssueBothSides     = "BOTH_SIDES"
	IssueZeroAmount    = "ZERO_AMOUNT"
	IssueNegative      = "NEGATIVE_AMOUNT"
	IssueBadScale      = "BAD_SCALE"
	IssueUnknownAcct   = "UNKNOWN_ACCOUNT"
	IssueFutureDated   = "FUTURE_DATED"
	IssueDateOrder     = "DATE_ORDER"
	IssueMissingTag    = "MISSING_REPORTING_TAG"
	IssueLargeAmount   = "ANOMALOUS_AMOUNT"
	IssueParentPosting = "PARENT_ACCOUNT_POSTING"
)

// Result carries every finding from a validation pass. Errors block commit;
// warnings never do.
type Result struct {
	Errors   []Issue
	Warnings []Issue
}

// OK reports whether the entry may be committed.
func (r Result) OK() bool { return len(r.Errors) == 0 }

func (r *Result) fail(code string, line int, format string, args ...any) {
	r.Errors = append(r.Errors, Issue{Code: code, Line: line, Message: fmt.Sprintf(format, args...)})
}

func (r *Result) warn(code string, line int, format string, args ...any) {
	r.Warnings = append(r.Warnings, Issue{Code: code, Line: line, Message: fmt.Sprintf(format, args...)})
}

// AccountDirectory resolves accounts referenced by entry lines.
type AccountDirectory interface {
	Lookup(id int64) (Account, bool)
}

// ValidatorConfig tunes optional validator behaviour.
type ValidatorConfig struct {
	// RequireReportingTags downgrades a missing tag to a warning when set;
	// tags are never a hard error.
	RequireReportingTags bool
	// AnomalyThreshold flags single-line amounts at or above this value.
	// Zero disables the heuristic.
	AnomalyThreshold decimal.Decimal
}

// Validator checks an entry against the double-entry contract. All checks
// run in full so every problem is reported in one pass.
type Validator struct {
	cfg ValidatorConfig
	now func() time.Time
}

// NewValidator constructs a Validator.
func NewValidator(cfg ValidatorConfig) *Validator {
	return &Validator{cfg: cfg, now: time.Now}
}

// WithNow overrides the clock for testing.
func (v *Validator) WithNow(now func() time.Time) {
	if now != nil {
		v.now = now
	}
}

// Validate runs every check against the header and its lines. A rejected
// entry must not be committed; the caller owns rollback.
func (v *Validator) Validate(entry Entry, lines []EntryLine, accounts AccountDirectory) Result {
	var res Result

	if len(lines) == 0 {
		res.fail(IssueNoLines, -1, "entry has no lines")
	}

	centScale := decimal.New(1, Scale)
	for idx, line := range lines {
		hasDebit := !line.Debit.IsZero()
		hasCredit := !line.Credit.IsZero()
		switch {
		case hasDebit && hasCredit:
			res.fail(IssueBothSides, idx, "line carries both debit %s and credit %s", line.Debit.StringFixed(Scale), line.Credit.StringFixed(Scale))
		case !hasDebit && !hasCredit:
			res.warn(IssueZeroAmount, idx, "line carries no amount")
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			res.fail(IssueNegative, idx, "amounts must not be negative")
		}
		for _, amount := range []decimal.Decimal{line.Debit, line.Credit} {
			if !amount.Mul(centScale).Equal(amount.Mul(centScale).Floor()) {
				res.fail(IssueBadScale, idx, "amount %s exceeds %d decimal places", amount.String(), Scale)
			}
		}
		if accounts != nil {
			account, ok := accounts.Lookup(line.AccountID)
			if !ok {
				res.fail(IssueUnknownAcct, idx, "unknown account %d", line.AccountID)
				continue
			}
			if account.IsParent {
				res.warn(IssueParentPosting, idx, "account %s is a parent; lines usually target leaves", account.Code)
			}
			if v.cfg.RequireReportingTags && strings.TrimSpace(account.ReportingTag) == "" {
				res.warn(IssueMissingTag, idx, "account %s has no reporting tag; classifier fallback will apply", account.Code)
			}
		}
		if !v.cfg.AnomalyThreshold.IsZero() {
			if line.Debit.GreaterThanOrEqual(v.cfg.AnomalyThreshold) || line.Credit.GreaterThanOrEqual(v.cfg.AnomalyThreshold) {
				res.warn(IssueLargeAmount, idx, "amount at or above anomaly threshold %s", v.cfg.AnomalyThreshold.StringFixed(Scale))
			}
		}
	}

	debit, credit := SumLines(lines)
	if !debit.Equal(credit) {
		res.fail(IssueUnbalanced, -1, "debits (%s) != credits (%s)", debit.StringFixed(Scale), credit.StringFixed(Scale))
	}

	now := v.now()
	if entry.PostedDate.After(now) {
		res.fail(IssueFutureDated, -1, "posted date %s is in the future", entry.PostedDate.Format("2006-01-02"))
	}
	if entry.PreparedDate.After(entry.PostedDate) {
		res.fail(IssueDateOrder, -1, "prepared date %s is after posted date %s",
			entry.PreparedDate.Format("2006-01-02"), entry.PostedDate.Format("2006-01-02"))
	}

	return res
}

// ValidationFailedError wraps a failed Result so callers can inspect every
// finding behind a single error value.
type ValidationFailedError struct {
	Result Result
}

func (e *ValidationFailedError) Error() string {
	msgs := make([]string, 0, len(e.Result.Errors))
	for _, issue := range e.Result.Errors {
		msgs = append(msgs, issue.Error())
	}
	return "ledger: validation failed: " + strings.Join(msgs, "; ")
}

// Is lets errors.Is match the coarse sentinels for the findings the result
// carries, so callers can branch on the common rejections without reading
// issue codes.
func (e *ValidationFailedError) Is(target error) bool {
	for _, issue := range e.Result.Errors {
		switch issue.Code {
		case IssueUnbalanced:
			if target == ErrUnbalanced {
				return true
			}
		case IssueNoLines:
			if target == ErrNoLines {
				return true
			}
		}
	}
	return false
}
