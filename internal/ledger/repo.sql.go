package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian/internal/platform/db"
)

// querier is the subset of pgxpool.Pool and pgx.Tx the read path needs, so
// the same queries serve both pool-level and snapshot reads.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists ledger entities.
type Repository struct {
	pool *pgxpool.Pool
	q    querier
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, q: pool}
}

// TxRepository exposes transactional write operations.
type TxRepository interface {
	GetAccountsForUpdate(ctx context.Context, ids []int64) (map[int64]Account, error)
	InsertEntry(ctx context.Context, in PostingInput) (Entry, error)
	InsertLines(ctx context.Context, entryID int64, lines []PostingLineInput, fallbackDate time.Time) error
	LinkSource(ctx context.Context, module string, ref uuid.UUID, entryID int64) error
	GetEntryWithLines(ctx context.Context, entryID int64) (Entry, []EntryLine, error)
	ListEntries(ctx context.Context) ([]Entry, error)
	RefreshAccountAggregates(ctx context.Context, ids []int64) error
}

type txRepository struct {
	tx pgx.Tx
}

// ErrSourceConflict indicates the source link already exists.
var ErrSourceConflict = errors.New("ledger: source link conflict")

// WithTx executes fn within a repeatable-read transaction. fn returning an
// error rolls back every write, leaving the log byte-for-byte unchanged.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("ledger repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// WithSnapshot executes fn against a read-only repeatable-read transaction.
// Every read the passed repository serves comes from the same MVCC
// snapshot, so totals summed across accounts cannot interleave with a
// concurrent commit. The snapshot repository must not be used after fn
// returns, and its reads must stay sequential.
func (r *Repository) WithSnapshot(ctx context.Context, fn func(context.Context, *Repository) error) error {
	if r == nil {
		return errors.New("ledger repository not initialised")
	}
	return db.WithReadTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &Repository{pool: r.pool, q: tx})
	})
}

const accountColumns = `id, code, name, type, category, parent_id, is_parent, reporting_tag, currency, total_debit, total_credit, balance, is_active, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.Category, &a.ParentID, &a.IsParent, &a.ReportingTag,
		&a.Currency, &a.TotalDebit, &a.TotalCredit, &a.Balance, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

// GetAccountsForUpdate locks the referenced account rows in id order so
// concurrent postings against the same account serialize at the store.
func (r *txRepository) GetAccountsForUpdate(ctx context.Context, ids []int64) (map[int64]Account, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	accounts := make(map[int64]Account, len(ids))
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts[a.ID] = a
	}
	return accounts, rows.Err()
}

func (r *txRepository) InsertEntry(ctx context.Context, in PostingInput) (Entry, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO entries (company_id, prepared_date, posted_date, memo, source_module, source_id, posted_by, status)
VALUES ($1,$2,$3,$4,$5,$6,$7,'POSTED') RETURNING id, number, created_at, updated_at`,
		in.CompanyID, in.PreparedDate, in.PostedDate, in.Memo, in.SourceModule, in.SourceID, nullInt(in.PostedBy))
	entry := Entry{
		CompanyID:    in.CompanyID,
		PreparedDate: in.PreparedDate,
		PostedDate:   in.PostedDate,
		Memo:         in.Memo,
		SourceModule: in.SourceModule,
		SourceID:     in.SourceID,
		Status:       EntryStatusPosted,
	}
	if err := row.Scan(&entry.ID, &entry.Number, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

func (r *txRepository) InsertLines(ctx context.Context, entryID int64, lines []PostingLineInput, fallbackDate time.Time) error {
	for _, line := range lines {
		date := line.Date
		if date.IsZero() {
			date = fallbackDate
		}
		if _, err := r.tx.Exec(ctx, `INSERT INTO entry_lines (entry_id, account_id, debit, credit, line_date, description, reference, source_tag)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			entryID, line.AccountID, line.Debit.StringFixed(Scale), line.Credit.StringFixed(Scale), date, line.Description, line.Reference, line.SourceTag); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) LinkSource(ctx context.Context, module string, ref uuid.UUID, entryID int64) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO source_links (module, ref_id, entry_id) VALUES ($1,$2,$3)`, module, ref, entryID)
	if err != nil {
		if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.ConstraintName == "uq_source_links" {
			return ErrSourceConflict
		}
		return err
	}
	return nil
}

const entryColumns = `id, number, company_id, prepared_date, posted_date, memo, source_module, source_id, status, created_at, updated_at`

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.Number, &e.CompanyID, &e.PreparedDate, &e.PostedDate, &e.Memo,
		&e.SourceModule, &e.SourceID, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

func (r *txRepository) GetEntryWithLines(ctx context.Context, entryID int64) (Entry, []EntryLine, error) {
	entry, err := scanEntry(r.tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM entries WHERE id=$1`, entryID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, nil, ErrEntryNotFound
		}
		return Entry{}, nil, err
	}
	rows, err := r.tx.Query(ctx, `SELECT id, entry_id, account_id, debit, credit, line_date, description, reference, source_tag, created_at, updated_at
FROM entry_lines WHERE entry_id=$1 ORDER BY id ASC`, entryID)
	if err != nil {
		return Entry{}, nil, err
	}
	defer rows.Close()
	var lines []EntryLine
	for rows.Next() {
		var line EntryLine
		if err := rows.Scan(&line.ID, &line.EntryID, &line.AccountID, &line.Debit, &line.Credit, &line.Date,
			&line.Description, &line.Reference, &line.SourceTag, &line.CreatedAt, &line.UpdatedAt); err != nil {
			return Entry{}, nil, err
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return Entry{}, nil, err
	}
	return entry, lines, nil
}

func (r *txRepository) ListEntries(ctx context.Context) ([]Entry, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+entryColumns+` FROM entries ORDER BY number DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// RefreshAccountAggregates recomputes the cached per-account projection from
// the entry log. The cached columns are never read as a source of truth.
func (r *txRepository) RefreshAccountAggregates(ctx context.Context, ids []int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE accounts a SET
  total_debit  = COALESCE(l.debit_sum, 0),
  total_credit = COALESCE(l.credit_sum, 0),
  balance      = CASE WHEN a.type IN ('ASSET','EXPENSE')
                      THEN COALESCE(l.debit_sum, 0) - COALESCE(l.credit_sum, 0)
                      ELSE COALESCE(l.credit_sum, 0) - COALESCE(l.debit_sum, 0) END,
  updated_at   = NOW()
FROM (
  SELECT account_id, SUM(debit) AS debit_sum, SUM(credit) AS credit_sum
  FROM entry_lines WHERE account_id = ANY($1) GROUP BY account_id
) l
WHERE a.id = l.account_id AND a.id = ANY($1)`, ids)
	return err
}

// --- read path, used by the balance calculator and reports. Served from
// the pool by default, or from one read transaction under WithSnapshot. ---

// Account fetches one account by id.
func (r *Repository) Account(ctx context.Context, id int64) (Account, error) {
	a, err := scanAccount(r.q.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

// ListAccounts returns the full chart ordered by code.
func (r *Repository) ListAccounts(ctx context.Context) ([]Account, error) {
	rows, err := r.q.Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// ChildAccounts lists the direct children of a parent account.
func (r *Repository) ChildAccounts(ctx context.Context, parentID int64) ([]Account, error) {
	rows, err := r.q.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE parent_id=$1 ORDER BY code`, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// LineTotals sums posted debits and credits for one account up to and
// including asOf. The entry_lines (account_id, line_date) index serves this.
func (r *Repository) LineTotals(ctx context.Context, accountID int64, asOf time.Time) (debit, credit decimal.Decimal, err error) {
	err = r.q.QueryRow(ctx, `SELECT COALESCE(SUM(l.debit),0), COALESCE(SUM(l.credit),0)
FROM entry_lines l JOIN entries e ON e.id = l.entry_id
WHERE l.account_id=$1 AND l.line_date <= $2 AND e.status='POSTED'`, accountID, asOf).Scan(&debit, &credit)
	return debit, credit, err
}

// OrderedLines returns posted lines for an account within [from, to],
// ordered by (line_date, id) for deterministic running balances.
func (r *Repository) OrderedLines(ctx context.Context, accountID int64, from, to time.Time) ([]EntryLine, error) {
	rows, err := r.q.Query(ctx, `SELECT l.id, l.entry_id, l.account_id, l.debit, l.credit, l.line_date, l.description, l.reference, l.source_tag, l.created_at, l.updated_at
FROM entry_lines l JOIN entries e ON e.id = l.entry_id
WHERE l.account_id=$1 AND l.line_date >= $2 AND l.line_date <= $3 AND e.status='POSTED'
ORDER BY l.line_date ASC, l.id ASC`, accountID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []EntryLine
	for rows.Next() {
		var line EntryLine
		if err := rows.Scan(&line.ID, &line.EntryID, &line.AccountID, &line.Debit, &line.Credit, &line.Date,
			&line.Description, &line.Reference, &line.SourceTag, &line.CreatedAt, &line.UpdatedAt); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// OpeningBalance returns the recorded fiscal-year opening balance for an
// account, or zero when none was recorded.
func (r *Repository) OpeningBalance(ctx context.Context, accountID int64, fiscalYear int) (decimal.Decimal, error) {
	var amount decimal.Decimal
	err := r.q.QueryRow(ctx, `SELECT amount FROM opening_balances WHERE account_id=$1 AND fiscal_year=$2`, accountID, fiscalYear).Scan(&amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return amount, nil
}

func nullInt(val int64) any {
	if val == 0 {
		return nil
	}
	return val
}
