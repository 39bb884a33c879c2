package ledger

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountType enumerates chart-of-accounts categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// Valid reports whether the type is one of the five known categories.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// NormalSide identifies the side on which an account naturally increases.
type NormalSide string

const (
	NormalSideDebit  NormalSide = "DEBIT"
	NormalSideCredit NormalSide = "CREDIT"
)

// ErrUnknownAccountType indicates a type outside the closed enum.
var ErrUnknownAccountType = errors.New("ledger: unknown account type")

// NormalBalanceOf maps each account type to its normal balance side.
// The mapping is exhaustive over the five types; anything else is an error.
func NormalBalanceOf(t AccountType) (NormalSide, error) {
	switch t {
	case AccountTypeAsset:
		return NormalSideDebit, nil
	case AccountTypeExpense:
		return NormalSideDebit, nil
	case AccountTypeLiability:
		return NormalSideCredit, nil
	case AccountTypeEquity:
		return NormalSideCredit, nil
	case AccountTypeRevenue:
		return NormalSideCredit, nil
	}
	return "", ErrUnknownAccountType
}

// EntryStatus enumerates transaction lifecycle values.
type EntryStatus string

const (
	EntryStatusDraft  EntryStatus = "DRAFT"
	EntryStatusPosted EntryStatus = "POSTED"
)

// Account models a chart of accounts node. The TotalDebit, TotalCredit and
// Balance columns are a rebuildable projection over posted lines; balance
// truth always derives from the entry log.
type Account struct {
	ID           int64
	Code         string
	Name         string
	Type         AccountType
	Category     string
	ParentID     *int64
	IsParent     bool
	ReportingTag string
	Currency     string
	TotalDebit   decimal.Decimal
	TotalCredit  decimal.Decimal
	Balance      decimal.Decimal
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NormalSide returns the account's normal balance side.
func (a Account) NormalSide() (NormalSide, error) {
	return NormalBalanceOf(a.Type)
}

// Entry captures posting metadata for a transaction header.
type Entry struct {
	ID           int64
	Number       int64
	CompanyID    int64
	PreparedDate time.Time
	PostedDate   time.Time
	Memo         string
	SourceModule string
	SourceID     uuid.UUID
	Status       EntryStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Lines        []EntryLine
}

// EntryLine stores a debit or credit amount against one account.
// Exactly one of Debit/Credit is non-zero on a well-formed line.
type EntryLine struct {
	ID          int64
	EntryID     int64
	AccountID   int64
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Date        time.Time
	Description string
	Reference   string
	SourceTag   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

var (
	// ErrUnbalanced indicates sum(debit) != sum(credit).
	ErrUnbalanced = errors.New("ledger: entry lines must balance")
	// ErrNoLines indicates an entry without any lines.
	ErrNoLines = errors.New("ledger: entry requires at least one line")
	// ErrAccountNotFound indicates a missing account.
	ErrAccountNotFound = errors.New("ledger: account not found")
	// ErrEntryNotFound indicates a missing entry.
	ErrEntryNotFound = errors.New("ledger: entry not found")
	// ErrDuplicateCode indicates a chart code collision.
	ErrDuplicateCode = errors.New("ledger: account code already exists")
	// ErrCyclicParent indicates a reparent that would create a cycle.
	ErrCyclicParent = errors.New("ledger: account cannot be its own ancestor")
	// ErrHasChildren blocks detaching an account that still has children.
	ErrHasChildren = errors.New("ledger: account has child accounts")
	// ErrHasPostedLines blocks detaching an account with posted lines.
	ErrHasPostedLines = errors.New("ledger: account has posted lines")
	// ErrSourceAlreadyLinked indicates an idempotency conflict.
	ErrSourceAlreadyLinked = errors.New("ledger: source already linked")
	// ErrInvalidStatus indicates the action cannot proceed from the current status.
	ErrInvalidStatus = errors.New("ledger: invalid status transition")
)

// Scale is the fixed number of fractional digits carried by all amounts.
const Scale = 2

// SumLines returns the debit and credit totals over a set of lines.
func SumLines(lines []EntryLine) (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, line := range lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	return debit, credit
}
