package chart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/meridian-erp/meridian/internal/ledger"
)

// maxDepth bounds the ancestor walk during cycle checks. Real charts are a
// handful of levels deep; anything past this is treated as a cycle.
const maxDepth = 64

// Repository persists chart-of-accounts nodes.
type Repository interface {
	Create(ctx context.Context, account ledger.Account) (ledger.Account, error)
	Update(ctx context.Context, account ledger.Account) error
	GetByID(ctx context.Context, id int64) (ledger.Account, error)
	GetByCode(ctx context.Context, code string) (ledger.Account, error)
	List(ctx context.Context) ([]ledger.Account, error)
	HasChildren(ctx context.Context, id int64) (bool, error)
	HasPostedLines(ctx context.Context, id int64) (bool, error)
	Delete(ctx context.Context, id int64) error
}

// Service manages account identity and the parent/child tree.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService constructs the chart service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateInput carries the fields for a new account.
type CreateInput struct {
	Code         string
	Name         string
	Type         ledger.AccountType
	Category     string
	ParentID     *int64
	ReportingTag string
	Currency     string
}

// typeCategories restricts category labels per type. An empty category is
// always allowed; unknown pairings are rejected at creation.
var typeCategories = map[ledger.AccountType][]string{
	ledger.AccountTypeAsset:     {"current assets", "fixed assets", "trade receivables", "inventories", "cash and equivalents", "intangible assets", "other assets"},
	ledger.AccountTypeLiability: {"current liabilities", "long-term liabilities", "trade payables", "accrued liabilities", "loans", "other liabilities"},
	ledger.AccountTypeEquity:    {"share capital", "retained earnings", "reserves", "owner equity"},
	ledger.AccountTypeRevenue:   {"operating revenue", "other income"},
	ledger.AccountTypeExpense:   {"cost of sales", "operating expenses", "financial expenses", "other expenses"},
}

func validCategory(t ledger.AccountType, category string) bool {
	if strings.TrimSpace(category) == "" {
		return true
	}
	for _, allowed := range typeCategories[t] {
		if strings.EqualFold(category, allowed) {
			return true
		}
	}
	return false
}

// Create validates and stores a new account. Duplicate codes, unknown
// types, invalid type/category pairings and bad parent references are all
// rejected before anything is written.
func (s *Service) Create(ctx context.Context, input CreateInput) (ledger.Account, error) {
	code := strings.TrimSpace(input.Code)
	if code == "" {
		return ledger.Account{}, errors.New("chart: account code required")
	}
	if strings.TrimSpace(input.Name) == "" {
		return ledger.Account{}, errors.New("chart: account name required")
	}
	if !input.Type.Valid() {
		return ledger.Account{}, ledger.ErrUnknownAccountType
	}
	if !validCategory(input.Type, input.Category) {
		return ledger.Account{}, fmt.Errorf("chart: category %q not valid for type %s", input.Category, input.Type)
	}
	if _, err := s.repo.GetByCode(ctx, code); err == nil {
		return ledger.Account{}, ledger.ErrDuplicateCode
	} else if !errors.Is(err, ledger.ErrAccountNotFound) {
		return ledger.Account{}, err
	}

	account := ledger.Account{
		Code:         code,
		Name:         strings.TrimSpace(input.Name),
		Type:         input.Type,
		Category:     input.Category,
		ReportingTag: strings.TrimSpace(input.ReportingTag),
		Currency:     input.Currency,
		IsActive:     true,
	}
	if input.ParentID != nil {
		parent, err := s.repo.GetByID(ctx, *input.ParentID)
		if err != nil {
			return ledger.Account{}, err
		}
		if parent.Type != input.Type {
			return ledger.Account{}, fmt.Errorf("chart: parent %s is %s, child must match", parent.Code, parent.Type)
		}
		account.ParentID = input.ParentID
	}

	created, err := s.repo.Create(ctx, account)
	if err != nil {
		return ledger.Account{}, err
	}
	if account.ParentID != nil {
		if err := s.markParent(ctx, *account.ParentID); err != nil {
			return ledger.Account{}, err
		}
	}
	return created, nil
}

// AttachChild reparents child under parent, rejecting self references and
// cycles, and flips the parent's is_parent flag.
func (s *Service) AttachChild(ctx context.Context, parentID, childID int64) error {
	if parentID == childID {
		return ledger.ErrCyclicParent
	}
	child, err := s.repo.GetByID(ctx, childID)
	if err != nil {
		return err
	}
	parent, err := s.repo.GetByID(ctx, parentID)
	if err != nil {
		return err
	}
	if parent.Type != child.Type {
		return fmt.Errorf("chart: parent %s is %s, child %s is %s", parent.Code, parent.Type, child.Code, child.Type)
	}
	// Bounded ancestor walk from the prospective parent; finding the child
	// there means the reparent would close a loop.
	cursor := parent
	for depth := 0; cursor.ParentID != nil; depth++ {
		if depth >= maxDepth {
			return ledger.ErrCyclicParent
		}
		if *cursor.ParentID == childID {
			return ledger.ErrCyclicParent
		}
		cursor, err = s.repo.GetByID(ctx, *cursor.ParentID)
		if err != nil {
			return err
		}
	}

	child.ParentID = &parentID
	child.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, child); err != nil {
		return err
	}
	return s.markParent(ctx, parentID)
}

// Detach removes an account from the chart. Accounts with children or
// posted lines are never deleted.
func (s *Service) Detach(ctx context.Context, id int64) error {
	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	hasChildren, err := s.repo.HasChildren(ctx, id)
	if err != nil {
		return err
	}
	if hasChildren {
		return ledger.ErrHasChildren
	}
	hasLines, err := s.repo.HasPostedLines(ctx, id)
	if err != nil {
		return err
	}
	if hasLines {
		return ledger.ErrHasPostedLines
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if account.ParentID != nil {
		stillParent, err := s.repo.HasChildren(ctx, *account.ParentID)
		if err != nil {
			return err
		}
		if !stillParent {
			return s.clearParentFlag(ctx, *account.ParentID)
		}
	}
	return nil
}

// Get fetches one account.
func (s *Service) Get(ctx context.Context, id int64) (ledger.Account, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns the full chart ordered by code.
func (s *Service) List(ctx context.Context) ([]ledger.Account, error) {
	return s.repo.List(ctx)
}

func (s *Service) markParent(ctx context.Context, id int64) error {
	parent, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if parent.IsParent {
		return nil
	}
	parent.IsParent = true
	parent.UpdatedAt = s.now()
	return s.repo.Update(ctx, parent)
}

func (s *Service) clearParentFlag(ctx context.Context, id int64) error {
	parent, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !parent.IsParent {
		return nil
	}
	parent.IsParent = false
	parent.UpdatedAt = s.now()
	return s.repo.Update(ctx, parent)
}
