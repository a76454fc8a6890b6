package accounts

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/accounting/shared"
)

// Repository encapsulates DB operations for the chart of accounts.
type Repository interface {
	List(ctx context.Context, tenantID uuid.UUID) ([]Account, error)
	Get(ctx context.Context, tenantID uuid.UUID, id int64) (Account, error)
	GetMany(ctx context.Context, tenantID uuid.UUID, ids []int64) (map[int64]Account, error)
	GetByCode(ctx context.Context, tenantID uuid.UUID, code string) (Account, error)
	// LedgerBalance folds every ledger entry referencing the account into a
	// recomputed balance. Entries of voided journals carry no ledger rows, so
	// the fold naturally covers posted activity only.
	LedgerBalance(ctx context.Context, tenantID uuid.UUID, id int64) (decimal.Decimal, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const accountColumns = `id, tenant_id, code, name, category, parent_id, is_active, is_header, current_balance, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.TenantID, &a.Code, &a.Name, &a.Category, &a.ParentID, &a.IsActive, &a.IsHeader, &a.CurrentBalance, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *repository) List(ctx context.Context, tenantID uuid.UUID) ([]Account, error) {
	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE tenant_id=$1 ORDER BY code`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *repository) Get(ctx context.Context, tenantID uuid.UUID, id int64) (Account, error) {
	a, err := scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE tenant_id=$1 AND id=$2`, tenantID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func (r *repository) GetMany(ctx context.Context, tenantID uuid.UUID, ids []int64) (map[int64]Account, error) {
	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE tenant_id=$1 AND id = ANY($2)`, tenantID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]Account, len(ids))
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out[a.ID] = a
	}
	return out, rows.Err()
}

func (r *repository) GetByCode(ctx context.Context, tenantID uuid.UUID, code string) (Account, error) {
	a, err := scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE tenant_id=$1 AND code=$2`, tenantID, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func (r *repository) LedgerBalance(ctx context.Context, tenantID uuid.UUID, id int64) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(debit_amount - credit_amount), 0)
FROM ledger_entries WHERE tenant_id=$1 AND account_id=$2`, tenantID, id).Scan(&balance)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return balance, nil
}
