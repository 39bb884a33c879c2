package ledger

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestNormalBalanceOf(t *testing.T) {
	cases := []struct {
		accountType AccountType
		want        NormalSide
	}{
		{AccountTypeAsset, NormalSideDebit},
		{AccountTypeExpense, NormalSideDebit},
		{AccountTypeLiability, NormalSideCredit},
		{AccountTypeEquity, NormalSideCredit},
		{AccountTypeRevenue, NormalSideCredit},
	}
	for _, tc := range cases {
		got, err := NormalBalanceOf(tc.accountType)
		if err != nil {
			t.Fatalf("NormalBalanceOf(%s): %v", tc.accountType, err)
		}
		if got != tc.want {
			t.Errorf("NormalBalanceOf(%s) = %s, want %s", tc.accountType, got, tc.want)
		}
	}
}

func TestNormalBalanceOfUnknownType(t *testing.T) {
	if _, err := NormalBalanceOf(AccountType("PROFIT")); !errors.Is(err, ErrUnknownAccountType) {
		t.Fatalf("expected ErrUnknownAccountType, got %v", err)
	}
}

func TestAccountTypeValid(t *testing.T) {
	for _, valid := range []AccountType{AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense} {
		if !valid.Valid() {
			t.Errorf("%s should be valid", valid)
		}
	}
	if AccountType("asset").Valid() {
		t.Error("lowercase type must not be valid")
	}
}

func TestSumLines(t *testing.T) {
	lines := []EntryLine{
		{Debit: decimal.RequireFromString("100.00")},
		{Credit: decimal.RequireFromString("60.00")},
		{Credit: decimal.RequireFromString("40.00")},
	}
	debit, credit := SumLines(lines)
	if !debit.Equal(decimal.RequireFromString("100.00")) {
		t.Errorf("debit sum = %s, want 100.00", debit)
	}
	if !credit.Equal(decimal.RequireFromString("100.00")) {
		t.Errorf("credit sum = %s, want 100.00", credit)
	}
}
