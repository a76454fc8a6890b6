package journals

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/accounting/fiscal"
	"github.com/meridian-erp/meridian-erp/internal/accounting/shared"
)

// Repository encapsulates DB operations for journal entries. Every mutating
// operation runs inside WithTx so that ledger rows, balance deltas and status
// updates commit as one unit.
type Repository interface {
	Get(ctx context.Context, tenantID uuid.UUID, entryID int64) (JournalEntry, error)
	List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]JournalEntry, error)
	Count(ctx context.Context, tenantID uuid.UUID) (int, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the statements available within a transaction.
type TxRepository interface {
	InsertEntry(ctx context.Context, tenantID uuid.UUID, in CreateEntryInput, totalDebit, totalCredit decimal.Decimal) (JournalEntry, error)
	ReplaceLines(ctx context.Context, entryID int64, lines []LineInput) ([]JournalLine, error)
	GetEntryForUpdate(ctx context.Context, tenantID uuid.UUID, entryID int64) (JournalEntry, error)
	GetLines(ctx context.Context, entryID int64) ([]JournalLine, error)
	UpdateDraft(ctx context.Context, tenantID uuid.UUID, in UpdateEntryInput, totalDebit, totalCredit decimal.Decimal) error
	DeleteEntry(ctx context.Context, tenantID uuid.UUID, entryID int64) error
	MarkPosted(ctx context.Context, entryID int64, periodID *int64, postedAt time.Time) error
	MarkVoided(ctx context.Context, entryID int64, reason *string, voidedAt time.Time) error

	// FindPeriodCovering resolves the fiscal period containing the date by
	// range containment, locking it against a concurrent close. Returns
	// shared.ErrPeriodNotFound when no period covers the date.
	FindPeriodCovering(ctx context.Context, tenantID uuid.UUID, date time.Time) (fiscal.Period, error)

	InsertLedgerEntries(ctx context.Context, entries []LedgerEntry) error
	DeleteLedgerEntries(ctx context.Context, entryID int64) (int64, error)

	// ApplyAccountDelta adds delta to the account balance counter. The UPDATE
	// takes a row lock held until commit, serialising concurrent postings
	// that touch the same account.
	ApplyAccountDelta(ctx context.Context, tenantID uuid.UUID, accountID int64, delta decimal.Decimal) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const entryColumns = `id, tenant_id, entry_number, entry_date, description, status, total_debit, total_credit, currency, source_type, source_id, fiscal_period_id, posted_at, voided_at, voided_reason, created_at, updated_at`

func scanEntry(row pgx.Row) (JournalEntry, error) {
	var e JournalEntry
	err := row.Scan(&e.ID, &e.TenantID, &e.EntryNumber, &e.EntryDate, &e.Description, &e.Status,
		&e.TotalDebit, &e.TotalCredit, &e.Currency, &e.SourceType, &e.SourceID, &e.FiscalPeriodID,
		&e.PostedAt, &e.VoidedAt, &e.VoidedReason, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

func (r *repository) Get(ctx context.Context, tenantID uuid.UUID, entryID int64) (JournalEntry, error) {
	entry, err := scanEntry(r.db.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE tenant_id=$1 AND id=$2`, tenantID, entryID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, shared.ErrEntryNotFound
		}
		return JournalEntry{}, err
	}
	lines, err := queryLines(ctx, r.db, entryID)
	if err != nil {
		return JournalEntry{}, err
	}
	entry.Lines = lines
	return entry, nil
}

func (r *repository) List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]JournalEntry, error) {
	rows, err := r.db.Query(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE tenant_id=$1 ORDER BY entry_number DESC LIMIT $2 OFFSET $3`, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *repository) Count(ctx context.Context, tenantID uuid.UUID) (int, error) {
	var total int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM journal_entries WHERE tenant_id=$1`, tenantID).Scan(&total)
	return total, err
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepository{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryLines(ctx context.Context, q querier, entryID int64) ([]JournalLine, error) {
	rows, err := q.Query(ctx, `SELECT id, journal_entry_id, line_number, account_id, description, debit_amount, credit_amount
FROM journal_lines WHERE journal_entry_id=$1 ORDER BY line_number ASC`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []JournalLine
	for rows.Next() {
		var line JournalLine
		if err := rows.Scan(&line.ID, &line.EntryID, &line.LineNumber, &line.AccountID, &line.Description, &line.Debit, &line.Credit); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) InsertEntry(ctx context.Context, tenantID uuid.UUID, in CreateEntryInput, totalDebit, totalCredit decimal.Decimal) (JournalEntry, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO journal_entries (tenant_id, entry_number, entry_date, description, status, total_debit, total_credit, currency, source_type, source_id)
VALUES ($1, (SELECT COALESCE(MAX(entry_number),0)+1 FROM journal_entries WHERE tenant_id=$1), $2, $3, 'DRAFT', $4, $5, $6, $7, $8)
RETURNING `+entryColumns, tenantID, in.EntryDate, in.Description, totalDebit, totalCredit, in.Currency, in.SourceType, in.SourceID)
	entry, err := scanEntry(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return JournalEntry{}, shared.ErrDuplicateEntryNumber
		}
		return JournalEntry{}, err
	}
	return entry, nil
}

func (r *txRepository) ReplaceLines(ctx context.Context, entryID int64, lines []LineInput) ([]JournalLine, error) {
	if _, err := r.tx.Exec(ctx, `DELETE FROM journal_lines WHERE journal_entry_id=$1`, entryID); err != nil {
		return nil, err
	}
	out := make([]JournalLine, 0, len(lines))
	for idx, line := range lines {
		inserted := JournalLine{
			EntryID:     entryID,
			LineNumber:  idx + 1,
			AccountID:   line.AccountID,
			Description: line.Description,
			Debit:       line.Debit,
			Credit:      line.Credit,
		}
		err := r.tx.QueryRow(ctx, `INSERT INTO journal_lines (journal_entry_id, line_number, account_id, description, debit_amount, credit_amount)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`, entryID, inserted.LineNumber, inserted.AccountID, inserted.Description, inserted.Debit, inserted.Credit).Scan(&inserted.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, inserted)
	}
	return out, nil
}

func (r *txRepository) GetEntryForUpdate(ctx context.Context, tenantID uuid.UUID, entryID int64) (JournalEntry, error) {
	entry, err := scanEntry(r.tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE tenant_id=$1 AND id=$2 FOR UPDATE`, tenantID, entryID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, shared.ErrEntryNotFound
		}
		return JournalEntry{}, err
	}
	return entry, nil
}

func (r *txRepository) GetLines(ctx context.Context, entryID int64) ([]JournalLine, error) {
	return queryLines(ctx, r.tx, entryID)
}

func (r *txRepository) UpdateDraft(ctx context.Context, tenantID uuid.UUID, in UpdateEntryInput, totalDebit, totalCredit decimal.Decimal) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET entry_date=$3, description=$4, total_debit=$5, total_credit=$6, currency=$7, updated_at=NOW()
WHERE tenant_id=$1 AND id=$2`, tenantID, in.EntryID, in.EntryDate, in.Description, totalDebit, totalCredit, in.Currency)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrEntryNotFound
	}
	return nil
}

func (r *txRepository) DeleteEntry(ctx context.Context, tenantID uuid.UUID, entryID int64) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM journal_lines WHERE journal_entry_id=$1`, entryID); err != nil {
		return err
	}
	cmd, err := r.tx.Exec(ctx, `DELETE FROM journal_entries WHERE tenant_id=$1 AND id=$2`, tenantID, entryID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrEntryNotFound
	}
	return nil
}

func (r *txRepository) MarkPosted(ctx context.Context, entryID int64, periodID *int64, postedAt time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET status='POSTED', fiscal_period_id=$2, posted_at=$3, updated_at=NOW() WHERE id=$1`, entryID, periodID, postedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrEntryNotFound
	}
	return nil
}

func (r *txRepository) MarkVoided(ctx context.Context, entryID int64, reason *string, voidedAt time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET status='VOIDED', voided_reason=$2, voided_at=$3, updated_at=NOW() WHERE id=$1`, entryID, reason, voidedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrEntryNotFound
	}
	return nil
}

func (r *txRepository) FindPeriodCovering(ctx context.Context, tenantID uuid.UUID, date time.Time) (fiscal.Period, error) {
	var p fiscal.Period
	err := r.tx.QueryRow(ctx, `SELECT id, tenant_id, fiscal_year_id, name, start_date, end_date, status, closed_at, created_at, updated_at
FROM fiscal_periods WHERE tenant_id=$1 AND $2 BETWEEN start_date AND end_date ORDER BY start_date LIMIT 1 FOR UPDATE`, tenantID, date).
		Scan(&p.ID, &p.TenantID, &p.FiscalYear, &p.Name, &p.StartDate, &p.EndDate, &p.Status, &p.ClosedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fiscal.Period{}, shared.ErrPeriodNotFound
		}
		return fiscal.Period{}, err
	}
	return p, nil
}

func (r *txRepository) InsertLedgerEntries(ctx context.Context, entries []LedgerEntry) error {
	for _, entry := range entries {
		if _, err := r.tx.Exec(ctx, `INSERT INTO ledger_entries (tenant_id, account_id, journal_line_id, fiscal_period_id, entry_date, description, debit_amount, credit_amount)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`, entry.TenantID, entry.AccountID, entry.JournalLineID, entry.FiscalPeriodID, entry.EntryDate, entry.Description, entry.Debit, entry.Credit); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) DeleteLedgerEntries(ctx context.Context, entryID int64) (int64, error) {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM ledger_entries WHERE journal_line_id IN (SELECT id FROM journal_lines WHERE journal_entry_id=$1)`, entryID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *txRepository) ApplyAccountDelta(ctx context.Context, tenantID uuid.UUID, accountID int64, delta decimal.Decimal) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE accounts SET current_balance = current_balance + $3, updated_at=NOW() WHERE tenant_id=$1 AND id=$2`, tenantID, accountID, delta)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrAccountNotFound
	}
	return nil
}
