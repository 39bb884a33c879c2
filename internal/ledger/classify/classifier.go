// Package classify maps accounts into standardized balance-sheet sections.
// Resolution is a strict, ordered, total function: reporting-tag prefix,
// then a curated per-code override table, then a keyword heuristic, then a
// current-bucket default. Every Asset/Liability/Equity account lands in
// exactly one section.
package classify

import (
	"fmt"
	"strings"

	"github.com/meridian-erp/meridian/internal/ledger"
)

// Section identifies a balance-sheet bucket.
type Section string

const (
	SectionCurrentAsset        Section = "CURRENT_ASSET"
	SectionNonCurrentAsset     Section = "NON_CURRENT_ASSET"
	SectionCurrentLiability    Section = "CURRENT_LIABILITY"
	SectionNonCurrentLiability Section = "NON_CURRENT_LIABILITY"
	SectionEquity              Section = "EQUITY"
)

// Tier identifies which resolution step produced a decision, for audit.
type Tier string

const (
	TierTag      Tier = "TAG"
	TierOverride Tier = "OVERRIDE"
	TierKeyword  Tier = "KEYWORD"
	TierDefault  Tier = "DEFAULT"
)

// Decision pairs a section with the tier that resolved it.
type Decision struct {
	Section Section
	Tier    Tier
}

// ErrNotClassifiable is returned for Revenue and Expense accounts, which
// are not balance-sheet buckets; reports fold their net into equity.
var ErrNotClassifiable = fmt.Errorf("classify: account type has no balance-sheet section")

// Classifier resolves accounts to sections.
type Classifier struct {
	overrides map[string]Section

	currentAssetWords    []string
	nonCurrentAssetWords []string
	currentLiabWords     []string
	nonCurrentLiabWords  []string
}

// Option customises a Classifier.
type Option func(*Classifier)

// WithOverride adds a per-code override.
func WithOverride(code string, section Section) Option {
	return func(c *Classifier) {
		c.overrides[code] = section
	}
}

// NewClassifier builds a classifier with the curated default keyword lists.
func NewClassifier(opts ...Option) *Classifier {
	c := &Classifier{
		overrides: map[string]Section{},
		currentAssetWords: []string{
			"cash", "bank", "receivable", "inventory", "inventories", "prepaid",
			"marketable", "short-term deposit", "petty",
		},
		nonCurrentAssetWords: []string{
			"equipment", "property", "plant", "vehicle", "building", "land",
			"intangible", "goodwill", "accumulated depreciation", "long-term",
			"fixture", "machinery",
		},
		currentLiabWords: []string{
			"payable", "accrued", "tax", "wages", "salaries", "overdraft",
			"deferred revenue", "unearned", "short-term loan",
		},
		nonCurrentLiabWords: []string{
			"loan", "bond", "mortgage", "lease", "debenture", "long-term",
			"provision", "pension",
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify resolves one account. Only Asset, Liability and Equity types
// have a section; Revenue/Expense return ErrNotClassifiable.
func (c *Classifier) Classify(account ledger.Account) (Decision, error) {
	switch account.Type {
	case ledger.AccountTypeAsset, ledger.AccountTypeLiability, ledger.AccountTypeEquity:
	case ledger.AccountTypeRevenue, ledger.AccountTypeExpense:
		return Decision{}, ErrNotClassifiable
	default:
		return Decision{}, ledger.ErrUnknownAccountType
	}

	if section, ok := sectionFromTag(account.ReportingTag); ok {
		return Decision{Section: section, Tier: TierTag}, nil
	}
	if section, ok := c.overrides[account.Code]; ok {
		return Decision{Section: section, Tier: TierOverride}, nil
	}
	if account.Type == ledger.AccountTypeEquity {
		return Decision{Section: SectionEquity, Tier: TierKeyword}, nil
	}
	if section, ok := c.sectionFromKeywords(account); ok {
		return Decision{Section: section, Tier: TierKeyword}, nil
	}
	// Unmatched accounts default to the current bucket so no account is
	// ever dropped from the sheet.
	if account.Type == ledger.AccountTypeAsset {
		return Decision{Section: SectionCurrentAsset, Tier: TierDefault}, nil
	}
	return Decision{Section: SectionCurrentLiability, Tier: TierDefault}, nil
}

// sectionFromTag resolves the reporting-tag prefix tier. Tags look like
// "A1", "A2.1", "L1.3", "E" or "E2".
func sectionFromTag(tag string) (Section, bool) {
	tag = strings.ToUpper(strings.TrimSpace(tag))
	if tag == "" {
		return "", false
	}
	switch {
	case tag == "A1" || strings.HasPrefix(tag, "A1."):
		return SectionCurrentAsset, true
	case tag == "A2" || strings.HasPrefix(tag, "A2."):
		return SectionNonCurrentAsset, true
	case tag == "L1" || strings.HasPrefix(tag, "L1."):
		return SectionCurrentLiability, true
	case tag == "L2" || strings.HasPrefix(tag, "L2."):
		return SectionNonCurrentLiability, true
	case strings.HasPrefix(tag, "E"):
		return SectionEquity, true
	}
	return "", false
}

func (c *Classifier) sectionFromKeywords(account ledger.Account) (Section, bool) {
	haystack := strings.ToLower(account.Name + " " + account.Category)
	switch account.Type {
	case ledger.AccountTypeAsset:
		// Non-current wins over current on a shared match ("long-term
		// receivable" is non-current).
		if matchesAny(haystack, c.nonCurrentAssetWords) {
			return SectionNonCurrentAsset, true
		}
		if matchesAny(haystack, c.currentAssetWords) {
			return SectionCurrentAsset, true
		}
	case ledger.AccountTypeLiability:
		// Non-current wins over current on a shared match, mirroring the
		// asset tier ("long-term notes payable" is non-current). An explicit
		// short-term qualifier overrides that.
		if strings.Contains(haystack, "short-term") {
			return SectionCurrentLiability, true
		}
		if matchesAny(haystack, c.nonCurrentLiabWords) {
			return SectionNonCurrentLiability, true
		}
		if matchesAny(haystack, c.currentLiabWords) {
			return SectionCurrentLiability, true
		}
	}
	return "", false
}

func matchesAny(haystack string, words []string) bool {
	for _, word := range words {
		if strings.Contains(haystack, word) {
			return true
		}
	}
	return false
}

// Audit classifies a batch and records the tier that fired per account,
// keyed by code.
func (c *Classifier) Audit(accounts []ledger.Account) map[string]Decision {
	out := make(map[string]Decision, len(accounts))
	for _, account := range accounts {
		decision, err := c.Classify(account)
		if err != nil {
			continue
		}
		out[account.Code] = decision
	}
	return out
}
