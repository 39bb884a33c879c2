package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian/internal/shared"
)

// RepositoryPort abstracts transactional repository behaviour. Everything
// inside fn observes one transaction; an error rolls the whole scope back.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// AuditPort records ledger events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort receives posting outcomes. Implementations must be cheap and
// never fail the caller.
type MetricsPort interface {
	PostingAccepted()
	PostingRejected()
}

// PostingLineInput describes one line of a posting request.
type PostingLineInput struct {
	AccountID   int64
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Date        time.Time
	Description string
	Reference   string
	SourceTag   string
}

// PostingInput groups fields required to post an entry.
type PostingInput struct {
	CompanyID    int64
	PreparedDate time.Time
	PostedDate   time.Time
	Memo         string
	SourceModule string
	SourceID     uuid.UUID
	PostedBy     int64
	Lines        []PostingLineInput
}

// ReverseInput wraps parameters for reversal.
type ReverseInput struct {
	EntryID int64
	ActorID int64
	Memo    string
	Date    *time.Time
}

// Service coordinates validation, atomic commit, projection refresh and
// audit for the entry log.
type Service struct {
	repo      RepositoryPort
	audit     AuditPort
	validator *Validator
	metrics   MetricsPort
	now       func() time.Time
}

// NewService constructs the posting service.
func NewService(repo RepositoryPort, audit AuditPort, validator *Validator) *Service {
	if validator == nil {
		validator = NewValidator(ValidatorConfig{})
	}
	return &Service{repo: repo, audit: audit, validator: validator, now: time.Now}
}

// WithMetrics attaches a posting-outcome recorder.
func (s *Service) WithMetrics(m MetricsPort) {
	s.metrics = m
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
		s.validator.WithNow(now)
	}
}

type directory map[int64]Account

func (d directory) Lookup(id int64) (Account, bool) {
	a, ok := d[id]
	return a, ok
}

// PostEntry validates and atomically persists a new entry. The returned
// Result carries warnings even on success; on validation failure the error
// is a *ValidationFailedError and the log is left unchanged.
func (s *Service) PostEntry(ctx context.Context, input PostingInput) (Entry, Result, error) {
	if input.SourceModule == "" {
		return Entry{}, Result{}, errors.New("ledger: source module required")
	}
	if input.SourceID == uuid.Nil {
		return Entry{}, Result{}, errors.New("ledger: source id required")
	}
	if input.PostedDate.IsZero() {
		input.PostedDate = s.now()
	}
	if input.PreparedDate.IsZero() {
		input.PreparedDate = input.PostedDate
	}

	var entry Entry
	var result Result
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		accounts, err := tx.GetAccountsForUpdate(ctx, accountIDs(input.Lines))
		if err != nil {
			return err
		}
		candidate := Entry{
			CompanyID:    input.CompanyID,
			PreparedDate: input.PreparedDate,
			PostedDate:   input.PostedDate,
			Memo:         input.Memo,
			SourceModule: input.SourceModule,
			SourceID:     input.SourceID,
			Status:       EntryStatusPosted,
		}
		lines := toEntryLines(0, input.Lines, input.PostedDate, s.now())
		result = s.validator.Validate(candidate, lines, directory(accounts))
		if !result.OK() {
			return &ValidationFailedError{Result: result}
		}
		inserted, err := tx.InsertEntry(ctx, input)
		if err != nil {
			return err
		}
		if err := tx.InsertLines(ctx, inserted.ID, input.Lines, input.PostedDate); err != nil {
			return err
		}
		if err := tx.LinkSource(ctx, input.SourceModule, input.SourceID, inserted.ID); err != nil {
			if errors.Is(err, ErrSourceConflict) {
				return ErrSourceAlreadyLinked
			}
			return err
		}
		if err := tx.RefreshAccountAggregates(ctx, accountIDs(input.Lines)); err != nil {
			return err
		}
		inserted.Lines = toEntryLines(inserted.ID, input.Lines, input.PostedDate, s.now())
		entry = inserted
		return nil
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.PostingRejected()
		}
		var vErr *ValidationFailedError
		if errors.As(err, &vErr) {
			return Entry{}, vErr.Result, err
		}
		return Entry{}, result, err
	}
	if s.metrics != nil {
		s.metrics.PostingAccepted()
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.PostedBy,
			Action:   "ledger.post",
			Entity:   "entry",
			EntityID: fmt.Sprintf("%d", entry.ID),
			Meta: map[string]any{
				"number":        entry.Number,
				"source_module": input.SourceModule,
				"source_id":     input.SourceID.String(),
				"warnings":      len(result.Warnings),
			},
			At: s.now(),
		})
	}
	return entry, result, nil
}

// ReverseEntry posts a new entry with the original's debits and credits
// swapped. Posted entries are immutable; this is the only correction path.
func (s *Service) ReverseEntry(ctx context.Context, input ReverseInput) (Entry, error) {
	if input.EntryID == 0 {
		return Entry{}, errors.New("ledger: entry id required")
	}
	var original Entry
	var lines []EntryLine
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		original, lines, err = tx.GetEntryWithLines(ctx, input.EntryID)
		if err != nil {
			return err
		}
		if original.Status != EntryStatusPosted {
			return ErrInvalidStatus
		}
		return nil
	})
	if err != nil {
		return Entry{}, err
	}

	date := s.now()
	if input.Date != nil {
		date = *input.Date
	}
	posting := PostingInput{
		CompanyID:    original.CompanyID,
		PreparedDate: date,
		PostedDate:   date,
		Memo:         defaultReversalMemo(input.Memo, original.Number),
		SourceModule: original.SourceModule + ":REVERSAL",
		SourceID:     uuid.New(),
		PostedBy:     input.ActorID,
		Lines:        reverseLines(lines),
	}
	reversal, _, err := s.PostEntry(ctx, posting)
	if err != nil {
		return Entry{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "ledger.reverse",
			Entity:   "entry",
			EntityID: fmt.Sprintf("%d", input.EntryID),
			Meta: map[string]any{
				"reversal_id":     reversal.ID,
				"reversal_number": reversal.Number,
			},
			At: s.now(),
		})
	}
	return reversal, nil
}

// ListEntries retrieves all posted entries.
func (s *Service) ListEntries(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entries, err = tx.ListEntries(ctx)
		return err
	})
	return entries, err
}

// GetEntry fetches one entry with its lines.
func (s *Service) GetEntry(ctx context.Context, id int64) (Entry, error) {
	var entry Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var lines []EntryLine
		var err error
		entry, lines, err = tx.GetEntryWithLines(ctx, id)
		entry.Lines = lines
		return err
	})
	if err != nil {
		return Entry{}, err
	}
	return entry, nil
}

func accountIDs(lines []PostingLineInput) []int64 {
	seen := make(map[int64]struct{}, len(lines))
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.AccountID]; ok {
			continue
		}
		seen[line.AccountID] = struct{}{}
		ids = append(ids, line.AccountID)
	}
	return ids
}

func reverseLines(lines []EntryLine) []PostingLineInput {
	out := make([]PostingLineInput, 0, len(lines))
	for _, line := range lines {
		out = append(out, PostingLineInput{
			AccountID:   line.AccountID,
			Debit:       line.Credit,
			Credit:      line.Debit,
			Description: line.Description,
			Reference:   line.Reference,
			SourceTag:   line.SourceTag,
		})
	}
	return out
}

func toEntryLines(entryID int64, lines []PostingLineInput, fallbackDate, ts time.Time) []EntryLine {
	out := make([]EntryLine, 0, len(lines))
	for _, line := range lines {
		date := line.Date
		if date.IsZero() {
			date = fallbackDate
		}
		out = append(out, EntryLine{
			EntryID:     entryID,
			AccountID:   line.AccountID,
			Debit:       line.Debit,
			Credit:      line.Credit,
			Date:        date,
			Description: line.Description,
			Reference:   line.Reference,
			SourceTag:   line.SourceTag,
			CreatedAt:   ts,
			UpdatedAt:   ts,
		})
	}
	return out
}

func defaultReversalMemo(memo string, number int64) string {
	if memo != "" {
		return memo
	}
	return fmt.Sprintf("Reversal of entry %d", number)
}
