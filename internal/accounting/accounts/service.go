package accounts

import (
	"context"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, tenantID uuid.UUID) ([]Account, error) {
	return s.repo.List(ctx, tenantID)
}

func (s *Service) Get(ctx context.Context, tenantID uuid.UUID, id int64) (Account, error) {
	return s.repo.Get(ctx, tenantID, id)
}

// Reconcile recomputes an account balance from its ledger entries and compares
// it against the incrementally maintained counter. The stored counter stays
// authoritative for reads; this is the audit path for detecting drift.
func (s *Service) Reconcile(ctx context.Context, tenantID uuid.UUID, id int64) (Reconciliation, error) {
	account, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return Reconciliation{}, err
	}
	computed, err := s.repo.LedgerBalance(ctx, tenantID, id)
	if err != nil {
		return Reconciliation{}, err
	}
	return Reconciliation{
		AccountID: id,
		Stored:    account.CurrentBalance,
		Computed:  computed,
		Drift:     account.CurrentBalance.Sub(computed),
	}, nil
}

// ReconcileAll audits every account of the tenant.
func (s *Service) ReconcileAll(ctx context.Context, tenantID uuid.UUID) ([]Reconciliation, error) {
	list, err := s.repo.List(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	out := make([]Reconciliation, 0, len(list))
	for _, account := range list {
		rec, err := s.Reconcile(ctx, tenantID, account.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
