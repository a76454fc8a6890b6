package accounts

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/accounting/shared"
)

type stubRepo struct {
	accounts map[int64]Account
	folds    map[int64]decimal.Decimal
}

func (r stubRepo) List(ctx context.Context, tenantID uuid.UUID) ([]Account, error) {
	var out []Account
	for _, a := range r.accounts {
		out = append(out, a)
	}
	return out, nil
}

func (r stubRepo) Get(ctx context.Context, tenantID uuid.UUID, id int64) (Account, error) {
	a, ok := r.accounts[id]
	if !ok {
		return Account{}, shared.ErrAccountNotFound
	}
	return a, nil
}

func (r stubRepo) GetMany(ctx context.Context, tenantID uuid.UUID, ids []int64) (map[int64]Account, error) {
	out := make(map[int64]Account)
	for _, id := range ids {
		if a, ok := r.accounts[id]; ok {
			out[id] = a
		}
	}
	return out, nil
}

func (r stubRepo) GetByCode(ctx context.Context, tenantID uuid.UUID, code string) (Account, error) {
	for _, a := range r.accounts {
		if a.Code == code {
			return a, nil
		}
	}
	return Account{}, shared.ErrAccountNotFound
}

func (r stubRepo) LedgerBalance(ctx context.Context, tenantID uuid.UUID, id int64) (decimal.Decimal, error) {
	return r.folds[id], nil
}

func TestReconcile(t *testing.T) {
	repo := stubRepo{
		accounts: map[int64]Account{
			1: {ID: 1, Code: "1000", Category: CategoryAsset, CurrentBalance: decimal.RequireFromString("150")},
			2: {ID: 2, Code: "4000", Category: CategoryRevenue, CurrentBalance: decimal.RequireFromString("-90")},
		},
		folds: map[int64]decimal.Decimal{
			1: decimal.RequireFromString("150"),
			2: decimal.RequireFromString("-100"),
		},
	}
	service := NewService(repo)
	tenant := uuid.New()

	clean, err := service.Reconcile(context.Background(), tenant, 1)
	require.NoError(t, err)
	require.True(t, clean.InSync())

	drifted, err := service.Reconcile(context.Background(), tenant, 2)
	require.NoError(t, err)
	require.False(t, drifted.InSync())
	require.True(t, drifted.Drift.Equal(decimal.RequireFromString("10")), "got %s", drifted.Drift)

	_, err = service.Reconcile(context.Background(), tenant, 99)
	require.ErrorIs(t, err, shared.ErrAccountNotFound)
}

func TestReconcileAll(t *testing.T) {
	repo := stubRepo{
		accounts: map[int64]Account{
			1: {ID: 1, Code: "1000", Category: CategoryAsset, CurrentBalance: decimal.RequireFromString("25")},
		},
		folds: map[int64]decimal.Decimal{1: decimal.RequireFromString("25")},
	}
	service := NewService(repo)

	all, err := service.ReconcileAll(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.True(t, all[0].InSync())
}
