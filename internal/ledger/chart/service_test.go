package chart

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian/internal/ledger"
)

type memChartRepo struct {
	accounts map[int64]ledger.Account
	posted   map[int64]bool
	nextID   int64
}

func newMemChartRepo() *memChartRepo {
	return &memChartRepo{accounts: map[int64]ledger.Account{}, posted: map[int64]bool{}}
}

func (r *memChartRepo) Create(ctx context.Context, account ledger.Account) (ledger.Account, error) {
	r.nextID++
	account.ID = r.nextID
	r.accounts[account.ID] = account
	return account, nil
}

func (r *memChartRepo) Update(ctx context.Context, account ledger.Account) error {
	if _, ok := r.accounts[account.ID]; !ok {
		return ledger.ErrAccountNotFound
	}
	r.accounts[account.ID] = account
	return nil
}

func (r *memChartRepo) GetByID(ctx context.Context, id int64) (ledger.Account, error) {
	a, ok := r.accounts[id]
	if !ok {
		return ledger.Account{}, ledger.ErrAccountNotFound
	}
	return a, nil
}

func (r *memChartRepo) GetByCode(ctx context.Context, code string) (ledger.Account, error) {
	for _, a := range r.accounts {
		if a.Code == code {
			return a, nil
		}
	}
	return ledger.Account{}, ledger.ErrAccountNotFound
}

func (r *memChartRepo) List(ctx context.Context) ([]ledger.Account, error) {
	out := make([]ledger.Account, 0, len(r.accounts))
	for _, a := range r.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r *memChartRepo) HasChildren(ctx context.Context, id int64) (bool, error) {
	for _, a := range r.accounts {
		if a.ParentID != nil && *a.ParentID == id {
			return true, nil
		}
	}
	return false, nil
}

func (r *memChartRepo) HasPostedLines(ctx context.Context, id int64) (bool, error) {
	return r.posted[id], nil
}

func (r *memChartRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.accounts[id]; !ok {
		return ledger.ErrAccountNotFound
	}
	delete(r.accounts, id)
	return nil
}

func TestCreateAccount(t *testing.T) {
	repo := newMemChartRepo()
	svc := NewService(repo)

	created, err := svc.Create(context.Background(), CreateInput{
		Code: "1000", Name: "Cash", Type: ledger.AccountTypeAsset,
		Category: "cash and equivalents", ReportingTag: "A1.1",
	})
	require.NoError(t, err)
	assert.Equal(t, "1000", created.Code)
	assert.True(t, created.IsActive)
	assert.False(t, created.IsParent)
}

func TestCreateRejectsDuplicateCode(t *testing.T) {
	repo := newMemChartRepo()
	svc := NewService(repo)

	_, err := svc.Create(context.Background(), CreateInput{Code: "1000", Name: "Cash", Type: ledger.AccountTypeAsset})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateInput{Code: "1000", Name: "Cash Again", Type: ledger.AccountTypeAsset})
	require.ErrorIs(t, err, ledger.ErrDuplicateCode)
}

func TestCreateRejectsBadTypeAndCategory(t *testing.T) {
	repo := newMemChartRepo()
	svc := NewService(repo)

	_, err := svc.Create(context.Background(), CreateInput{Code: "9000", Name: "Mystery", Type: ledger.AccountType("CONTRA")})
	require.ErrorIs(t, err, ledger.ErrUnknownAccountType)

	_, err = svc.Create(context.Background(), CreateInput{Code: "9001", Name: "Odd", Type: ledger.AccountTypeAsset, Category: "operating revenue"})
	require.Error(t, err)
}

func TestCreateChildMarksParentAndChecksType(t *testing.T) {
	repo := newMemChartRepo()
	svc := NewService(repo)

	parent, err := svc.Create(context.Background(), CreateInput{Code: "1", Name: "Assets", Type: ledger.AccountTypeAsset})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateInput{Code: "2000", Name: "Payables", Type: ledger.AccountTypeLiability, ParentID: &parent.ID})
	require.Error(t, err, "child type must match parent type")

	child, err := svc.Create(context.Background(), CreateInput{Code: "1000", Name: "Cash", Type: ledger.AccountTypeAsset, ParentID: &parent.ID})
	require.NoError(t, err)
	require.NotNil(t, child.ParentID)

	stored, err := svc.Get(context.Background(), parent.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsParent, "parent flag must flip on first child")
}

func TestAttachChildRejectsCycles(t *testing.T) {
	repo := newMemChartRepo()
	svc := NewService(repo)

	a, err := svc.Create(context.Background(), CreateInput{Code: "1", Name: "Assets", Type: ledger.AccountTypeAsset})
	require.NoError(t, err)
	b, err := svc.Create(context.Background(), CreateInput{Code: "10", Name: "Current Assets", Type: ledger.AccountTypeAsset, ParentID: &a.ID})
	require.NoError(t, err)
	c, err := svc.Create(context.Background(), CreateInput{Code: "100", Name: "Cash", Type: ledger.AccountTypeAsset, ParentID: &b.ID})
	require.NoError(t, err)

	require.ErrorIs(t, svc.AttachChild(context.Background(), a.ID, a.ID), ledger.ErrCyclicParent)
	require.ErrorIs(t, svc.AttachChild(context.Background(), c.ID, a.ID), ledger.ErrCyclicParent)
	require.ErrorIs(t, svc.AttachChild(context.Background(), b.ID, a.ID), ledger.ErrCyclicParent)
}

func TestDetachGuards(t *testing.T) {
	repo := newMemChartRepo()
	svc := NewService(repo)

	parent, err := svc.Create(context.Background(), CreateInput{Code: "1", Name: "Assets", Type: ledger.AccountTypeAsset})
	require.NoError(t, err)
	child, err := svc.Create(context.Background(), CreateInput{Code: "1000", Name: "Cash", Type: ledger.AccountTypeAsset, ParentID: &parent.ID})
	require.NoError(t, err)

	require.ErrorIs(t, svc.Detach(context.Background(), parent.ID), ledger.ErrHasChildren)

	repo.posted[child.ID] = true
	require.ErrorIs(t, svc.Detach(context.Background(), child.ID), ledger.ErrHasPostedLines)

	repo.posted[child.ID] = false
	require.NoError(t, svc.Detach(context.Background(), child.ID))

	stored, err := svc.Get(context.Background(), parent.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsParent, "parent flag must clear when last child detaches")

	require.ErrorIs(t, svc.Detach(context.Background(), 999), ledger.ErrAccountNotFound)
}
