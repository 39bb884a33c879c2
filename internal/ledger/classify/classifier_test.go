package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian/internal/ledger"
)

func classifyOne(t *testing.T, c *Classifier, account ledger.Account) Decision {
	t.Helper()
	decision, err := c.Classify(account)
	require.NoError(t, err)
	return decision
}

func TestClassifyTagTierWinsOverEverything(t *testing.T) {
	c := NewClassifier(WithOverride("1500", SectionCurrentAsset))

	// Tag says non-current even though the override and the name ("cash")
	// both point at current.
	decision := classifyOne(t, c, ledger.Account{
		Code: "1500", Name: "Cash reserve", Type: ledger.AccountTypeAsset, ReportingTag: "A2.3",
	})
	assert.Equal(t, SectionNonCurrentAsset, decision.Section)
	assert.Equal(t, TierTag, decision.Tier)
}

func TestClassifyTagPrefixes(t *testing.T) {
	c := NewClassifier()
	cases := []struct {
		tag     string
		typ     ledger.AccountType
		section Section
	}{
		{"A1", ledger.AccountTypeAsset, SectionCurrentAsset},
		{"a1.2", ledger.AccountTypeAsset, SectionCurrentAsset},
		{"A2", ledger.AccountTypeAsset, SectionNonCurrentAsset},
		{"L1.9", ledger.AccountTypeLiability, SectionCurrentLiability},
		{"L2", ledger.AccountTypeLiability, SectionNonCurrentLiability},
		{"E", ledger.AccountTypeEquity, SectionEquity},
		{"E2", ledger.AccountTypeEquity, SectionEquity},
	}
	for _, tc := range cases {
		decision := classifyOne(t, c, ledger.Account{Code: "x", Name: "x", Type: tc.typ, ReportingTag: tc.tag})
		assert.Equal(t, tc.section, decision.Section, "tag %s", tc.tag)
		assert.Equal(t, TierTag, decision.Tier, "tag %s", tc.tag)
	}
}

func TestClassifyOverrideTier(t *testing.T) {
	c := NewClassifier(WithOverride("1800", SectionNonCurrentAsset))
	decision := classifyOne(t, c, ledger.Account{Code: "1800", Name: "Sundry", Type: ledger.AccountTypeAsset})
	assert.Equal(t, SectionNonCurrentAsset, decision.Section)
	assert.Equal(t, TierOverride, decision.Tier)
}

func TestClassifyKeywordTier(t *testing.T) {
	c := NewClassifier()
	cases := []struct {
		name    string
		typ     ledger.AccountType
		section Section
	}{
		{"Petty cash", ledger.AccountTypeAsset, SectionCurrentAsset},
		{"Accounts receivable", ledger.AccountTypeAsset, SectionCurrentAsset},
		{"Plant and machinery", ledger.AccountTypeAsset, SectionNonCurrentAsset},
		{"Accumulated depreciation", ledger.AccountTypeAsset, SectionNonCurrentAsset},
		// Shared match: non-current wins for assets.
		{"Long-term receivable", ledger.AccountTypeAsset, SectionNonCurrentAsset},
		{"Accounts payable", ledger.AccountTypeLiability, SectionCurrentLiability},
		{"Accrued wages", ledger.AccountTypeLiability, SectionCurrentLiability},
		{"Mortgage on warehouse", ledger.AccountTypeLiability, SectionNonCurrentLiability},
		{"Debenture 2031", ledger.AccountTypeLiability, SectionNonCurrentLiability},
		// Shared match: non-current wins for liabilities too.
		{"Long-term notes payable", ledger.AccountTypeLiability, SectionNonCurrentLiability},
		// Unless the name says short-term outright.
		{"Short-term loan", ledger.AccountTypeLiability, SectionCurrentLiability},
	}
	for _, tc := range cases {
		decision := classifyOne(t, c, ledger.Account{Code: "x", Name: tc.name, Type: tc.typ})
		assert.Equal(t, tc.section, decision.Section, "name %q", tc.name)
		assert.Equal(t, TierKeyword, decision.Tier, "name %q", tc.name)
	}
}

func TestClassifyEquityAlwaysEquity(t *testing.T) {
	c := NewClassifier()
	decision := classifyOne(t, c, ledger.Account{Code: "3000", Name: "Completely unmatched name", Type: ledger.AccountTypeEquity})
	assert.Equal(t, SectionEquity, decision.Section)
}

func TestClassifyDefaultsToCurrentBucket(t *testing.T) {
	c := NewClassifier()

	asset := classifyOne(t, c, ledger.Account{Code: "1999", Name: "Zzz misc", Type: ledger.AccountTypeAsset})
	assert.Equal(t, SectionCurrentAsset, asset.Section)
	assert.Equal(t, TierDefault, asset.Tier)

	liab := classifyOne(t, c, ledger.Account{Code: "2999", Name: "Zzz misc", Type: ledger.AccountTypeLiability})
	assert.Equal(t, SectionCurrentLiability, liab.Section)
	assert.Equal(t, TierDefault, liab.Tier)
}

func TestClassifyIsTotalForBalanceSheetTypes(t *testing.T) {
	c := NewClassifier()
	for _, typ := range []ledger.AccountType{ledger.AccountTypeAsset, ledger.AccountTypeLiability, ledger.AccountTypeEquity} {
		_, err := c.Classify(ledger.Account{Code: "x", Name: "", Type: typ})
		assert.NoError(t, err, "type %s must always classify", typ)
	}
}

func TestClassifyRejectsIncomeStatementTypes(t *testing.T) {
	c := NewClassifier()
	for _, typ := range []ledger.AccountType{ledger.AccountTypeRevenue, ledger.AccountTypeExpense} {
		_, err := c.Classify(ledger.Account{Code: "x", Name: "x", Type: typ})
		assert.ErrorIs(t, err, ErrNotClassifiable, "type %s", typ)
	}
	_, err := c.Classify(ledger.Account{Code: "x", Name: "x", Type: ledger.AccountType("WEIRD")})
	assert.ErrorIs(t, err, ledger.ErrUnknownAccountType)
}

func TestAuditRecordsTierPerCode(t *testing.T) {
	c := NewClassifier()
	out := c.Audit([]ledger.Account{
		{Code: "1000", Name: "Cash", Type: ledger.AccountTypeAsset},
		{Code: "4000", Name: "Sales", Type: ledger.AccountTypeRevenue},
	})
	require.Contains(t, out, "1000")
	assert.Equal(t, TierKeyword, out["1000"].Tier)
	assert.NotContains(t, out, "4000")
}
