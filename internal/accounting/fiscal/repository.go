package fiscal

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
	"github.com/meridian-erp/meridian-erp/internal/accounting/shared"
)

// AccountActivity aggregates the in-year ledger movement of one revenue or
// expense account.
type AccountActivity struct {
	AccountID int64
	Code      string
	Category  accounts.AccountCategory
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// ClosingLine is one synthesized line of the year-end closing entry. The
// closer writes these directly, bypassing the posting engine.
type ClosingLine struct {
	AccountID   int64
	Description string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
}

// Repository encapsulates DB operations for fiscal periods and years.
type Repository interface {
	ListPeriods(ctx context.Context, tenantID uuid.UUID) ([]Period, error)
	GetPeriod(ctx context.Context, tenantID uuid.UUID, periodID int64) (Period, error)
	InsertPeriod(ctx context.Context, tenantID uuid.UUID, in CreatePeriodInput) (Period, error)
	PeriodRangeConflict(ctx context.Context, tenantID uuid.UUID, start, end time.Time) (bool, error)
	GetYear(ctx context.Context, tenantID uuid.UUID, yearID int64) (Year, error)
	InsertYear(ctx context.Context, tenantID uuid.UUID, in CreateYearInput) (Year, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the statements available within a close transaction.
type TxRepository interface {
	GetPeriodForUpdate(ctx context.Context, tenantID uuid.UUID, periodID int64) (Period, error)
	UpdatePeriodStatus(ctx context.Context, tenantID uuid.UUID, periodID int64, status PeriodStatus, closedAt *time.Time) error
	GetYearForUpdate(ctx context.Context, tenantID uuid.UUID, yearID int64) (Year, error)
	YearOfPeriod(ctx context.Context, tenantID uuid.UUID, periodID int64) (Year, error)
	ForceCloseOpenPeriods(ctx context.Context, tenantID uuid.UUID, yearID int64, closedAt time.Time) (int, error)

	// RevenueExpenseActivity scans ledger entries dated within [start, end]
	// grouped by revenue/expense account. A full aggregate, run once per
	// year-end close.
	RevenueExpenseActivity(ctx context.Context, tenantID uuid.UUID, start, end time.Time) ([]AccountActivity, error)

	GetAccountByCodeForUpdate(ctx context.Context, tenantID uuid.UUID, code string) (accounts.Account, error)
	FindPeriodID(ctx context.Context, tenantID uuid.UUID, date time.Time) (*int64, error)

	InsertClosingEntry(ctx context.Context, tenantID uuid.UUID, entryDate time.Time, description string, totalDebit, totalCredit decimal.Decimal, postedAt time.Time, periodID *int64) (int64, int64, error)
	InsertClosingLines(ctx context.Context, tenantID uuid.UUID, entryID int64, periodID *int64, entryDate time.Time, lines []ClosingLine) error

	// SetAccountBalance writes the balance counter to an exact value. The
	// year-end close uses absolute sets, not deltas, so revenue and expense
	// accounts land on precisely zero.
	SetAccountBalance(ctx context.Context, tenantID uuid.UUID, accountID int64, balance decimal.Decimal) error

	MarkYearClosed(ctx context.Context, tenantID uuid.UUID, yearID int64, closedAt time.Time) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const periodColumns = `id, tenant_id, fiscal_year_id, name, start_date, end_date, status, closed_at, created_at, updated_at`

func scanPeriod(row pgx.Row) (Period, error) {
	var p Period
	err := row.Scan(&p.ID, &p.TenantID, &p.FiscalYear, &p.Name, &p.StartDate, &p.EndDate, &p.Status, &p.ClosedAt, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

const yearColumns = `id, tenant_id, name, start_date, end_date, is_closed, closed_at, created_at, updated_at`

func scanYear(row pgx.Row) (Year, error) {
	var y Year
	err := row.Scan(&y.ID, &y.TenantID, &y.Name, &y.StartDate, &y.EndDate, &y.IsClosed, &y.ClosedAt, &y.CreatedAt, &y.UpdatedAt)
	return y, err
}

func (r *repository) ListPeriods(ctx context.Context, tenantID uuid.UUID) ([]Period, error) {
	rows, err := r.db.Query(ctx, `SELECT `+periodColumns+` FROM fiscal_periods WHERE tenant_id=$1 ORDER BY start_date`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repository) GetPeriod(ctx context.Context, tenantID uuid.UUID, periodID int64) (Period, error) {
	p, err := scanPeriod(r.db.QueryRow(ctx, `SELECT `+periodColumns+` FROM fiscal_periods WHERE tenant_id=$1 AND id=$2`, tenantID, periodID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, shared.ErrPeriodNotFound
		}
		return Period{}, err
	}
	return p, nil
}

func (r *repository) InsertPeriod(ctx context.Context, tenantID uuid.UUID, in CreatePeriodInput) (Period, error) {
	p, err := scanPeriod(r.db.QueryRow(ctx, `INSERT INTO fiscal_periods (tenant_id, fiscal_year_id, name, start_date, end_date, status)
VALUES ($1,$2,$3,$4,$5,'OPEN') RETURNING `+periodColumns, tenantID, in.FiscalYearID, in.Name, in.StartDate, in.EndDate))
	if err != nil {
		return Period{}, err
	}
	return p, nil
}

func (r *repository) PeriodRangeConflict(ctx context.Context, tenantID uuid.UUID, start, end time.Time) (bool, error) {
	var conflict bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM fiscal_periods WHERE tenant_id=$1 AND start_date <= $3 AND end_date >= $2)`, tenantID, start, end).Scan(&conflict)
	return conflict, err
}

func (r *repository) GetYear(ctx context.Context, tenantID uuid.UUID, yearID int64) (Year, error) {
	y, err := scanYear(r.db.QueryRow(ctx, `SELECT `+yearColumns+` FROM fiscal_years WHERE tenant_id=$1 AND id=$2`, tenantID, yearID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Year{}, shared.ErrYearNotFound
		}
		return Year{}, err
	}
	return y, nil
}

func (r *repository) InsertYear(ctx context.Context, tenantID uuid.UUID, in CreateYearInput) (Year, error) {
	y, err := scanYear(r.db.QueryRow(ctx, `INSERT INTO fiscal_years (tenant_id, name, start_date, end_date, is_closed, is_active)
VALUES ($1,$2,$3,$4,false,true) RETURNING `+yearColumns, tenantID, in.Name, in.StartDate, in.EndDate))
	if err != nil {
		return Year{}, err
	}
	return y, nil
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

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetPeriodForUpdate(ctx context.Context, tenantID uuid.UUID, periodID int64) (Period, error) {
	p, err := scanPeriod(r.tx.QueryRow(ctx, `SELECT `+periodColumns+` FROM fiscal_periods WHERE tenant_id=$1 AND id=$2 FOR UPDATE`, tenantID, periodID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, shared.ErrPeriodNotFound
		}
		return Period{}, err
	}
	return p, nil
}

func (r *txRepository) UpdatePeriodStatus(ctx context.Context, tenantID uuid.UUID, periodID int64, status PeriodStatus, closedAt *time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE fiscal_periods SET status=$3, closed_at=$4, updated_at=NOW() WHERE tenant_id=$1 AND id=$2`, tenantID, periodID, status, closedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrPeriodNotFound
	}
	return nil
}

func (r *txRepository) GetYearForUpdate(ctx context.Context, tenantID uuid.UUID, yearID int64) (Year, error) {
	y, err := scanYear(r.tx.QueryRow(ctx, `SELECT `+yearColumns+` FROM fiscal_years WHERE tenant_id=$1 AND id=$2 FOR UPDATE`, tenantID, yearID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Year{}, shared.ErrYearNotFound
		}
		return Year{}, err
	}
	return y, nil
}

func (r *txRepository) YearOfPeriod(ctx context.Context, tenantID uuid.UUID, periodID int64) (Year, error) {
	y, err := scanYear(r.tx.QueryRow(ctx, `SELECT y.id, y.tenant_id, y.name, y.start_date, y.end_date, y.is_closed, y.closed_at, y.created_at, y.updated_at
FROM fiscal_years y JOIN fiscal_periods p ON p.fiscal_year_id = y.id WHERE p.tenant_id=$1 AND p.id=$2`, tenantID, periodID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Year{}, shared.ErrYearNotFound
		}
		return Year{}, err
	}
	return y, nil
}

func (r *txRepository) ForceCloseOpenPeriods(ctx context.Context, tenantID uuid.UUID, yearID int64, closedAt time.Time) (int, error) {
	cmd, err := r.tx.Exec(ctx, `UPDATE fiscal_periods SET status='CLOSED', closed_at=$3, updated_at=NOW()
WHERE tenant_id=$1 AND fiscal_year_id=$2 AND status='OPEN'`, tenantID, yearID, closedAt)
	if err != nil {
		return 0, err
	}
	return int(cmd.RowsAffected()), nil
}

func (r *txRepository) RevenueExpenseActivity(ctx context.Context, tenantID uuid.UUID, start, end time.Time) ([]AccountActivity, error) {
	rows, err := r.tx.Query(ctx, `SELECT a.id, a.code, a.category, COALESCE(SUM(l.debit_amount),0), COALESCE(SUM(l.credit_amount),0)
FROM ledger_entries l JOIN accounts a ON a.id = l.account_id
WHERE l.tenant_id=$1 AND a.category IN ('REVENUE','EXPENSE') AND l.entry_date BETWEEN $2 AND $3
GROUP BY a.id, a.code, a.category ORDER BY a.id`, tenantID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountActivity
	for rows.Next() {
		var a AccountActivity
		if err := rows.Scan(&a.AccountID, &a.Code, &a.Category, &a.Debit, &a.Credit); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *txRepository) GetAccountByCodeForUpdate(ctx context.Context, tenantID uuid.UUID, code string) (accounts.Account, error) {
	var a accounts.Account
	err := r.tx.QueryRow(ctx, `SELECT id, tenant_id, code, name, category, parent_id, is_active, is_header, current_balance, created_at, updated_at
FROM accounts WHERE tenant_id=$1 AND code=$2 FOR UPDATE`, tenantID, code).
		Scan(&a.ID, &a.TenantID, &a.Code, &a.Name, &a.Category, &a.ParentID, &a.IsActive, &a.IsHeader, &a.CurrentBalance, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return accounts.Account{}, shared.ErrAccountNotFound
		}
		return accounts.Account{}, err
	}
	return a, nil
}

func (r *txRepository) FindPeriodID(ctx context.Context, tenantID uuid.UUID, date time.Time) (*int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `SELECT id FROM fiscal_periods WHERE tenant_id=$1 AND $2 BETWEEN start_date AND end_date ORDER BY start_date LIMIT 1`, tenantID, date).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &id, nil
}

func (r *txRepository) InsertClosingEntry(ctx context.Context, tenantID uuid.UUID, entryDate time.Time, description string, totalDebit, totalCredit decimal.Decimal, postedAt time.Time, periodID *int64) (int64, int64, error) {
	var id, number int64
	err := r.tx.QueryRow(ctx, `INSERT INTO journal_entries (tenant_id, entry_number, entry_date, description, status, total_debit, total_credit, currency, source_type, fiscal_period_id, posted_at)
VALUES ($1, (SELECT COALESCE(MAX(entry_number),0)+1 FROM journal_entries WHERE tenant_id=$1), $2, $3, 'POSTED', $4, $5, 'USD', 'year_end_close', $6, $7)
RETURNING id, entry_number`, tenantID, entryDate, description, totalDebit, totalCredit, periodID, postedAt).Scan(&id, &number)
	if err != nil {
		return 0, 0, err
	}
	return id, number, nil
}

func (r *txRepository) InsertClosingLines(ctx context.Context, tenantID uuid.UUID, entryID int64, periodID *int64, entryDate time.Time, lines []ClosingLine) error {
	for idx, line := range lines {
		var lineID int64
		err := r.tx.QueryRow(ctx, `INSERT INTO journal_lines (journal_entry_id, line_number, account_id, description, debit_amount, credit_amount)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`, entryID, idx+1, line.AccountID, line.Description, line.Debit, line.Credit).Scan(&lineID)
		if err != nil {
			return err
		}
		if _, err := r.tx.Exec(ctx, `INSERT INTO ledger_entries (tenant_id, account_id, journal_line_id, fiscal_period_id, entry_date, description, debit_amount, credit_amount)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`, tenantID, line.AccountID, lineID, periodID, entryDate, line.Description, line.Debit, line.Credit); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) SetAccountBalance(ctx context.Context, tenantID uuid.UUID, accountID int64, balance decimal.Decimal) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE accounts SET current_balance=$3, updated_at=NOW() WHERE tenant_id=$1 AND id=$2`, tenantID, accountID, balance)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrAccountNotFound
	}
	return nil
}

func (r *txRepository) MarkYearClosed(ctx context.Context, tenantID uuid.UUID, yearID int64, closedAt time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE fiscal_years SET is_closed=true, is_active=false, closed_at=$3, updated_at=NOW() WHERE tenant_id=$1 AND id=$2`, tenantID, yearID, closedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrYearNotFound
	}
	return nil
}
