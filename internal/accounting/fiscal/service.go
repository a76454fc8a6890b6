package fiscal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
	"github.com/meridian-erp/meridian-erp/internal/accounting/shared"
)

// EventPublisher receives close notifications after commit, best-effort.
type EventPublisher interface {
	PublishClosingEntryPosted(ctx context.Context, tenantID uuid.UUID, entryID, entryNumber int64, amount decimal.Decimal) error
	PublishYearClosed(ctx context.Context, tenantID uuid.UUID, yearID int64, netIncome decimal.Decimal) error
}

// Service orchestrates the fiscal period lifecycle and the year-end close.
type Service struct {
	repo                 Repository
	retainedEarningsCode string
	publisher            EventPublisher
	logger               *slog.Logger
	now                  func() time.Time
}

func NewService(repo Repository, retainedEarningsCode string, publisher EventPublisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:                 repo,
		retainedEarningsCode: retainedEarningsCode,
		publisher:            publisher,
		logger:               logger,
		now:                  time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) ListPeriods(ctx context.Context, tenantID uuid.UUID) ([]Period, error) {
	return s.repo.ListPeriods(ctx, tenantID)
}

func (s *Service) GetPeriod(ctx context.Context, tenantID uuid.UUID, periodID int64) (Period, error) {
	return s.repo.GetPeriod(ctx, tenantID, periodID)
}

// CreatePeriod inserts a new open period after validating range overlap.
func (s *Service) CreatePeriod(ctx context.Context, tenantID uuid.UUID, in CreatePeriodInput) (Period, error) {
	if err := in.Validate(); err != nil {
		return Period{}, err
	}
	conflict, err := s.repo.PeriodRangeConflict(ctx, tenantID, in.StartDate, in.EndDate)
	if err != nil {
		return Period{}, err
	}
	if conflict {
		return Period{}, shared.ErrPeriodOverlap
	}
	return s.repo.InsertPeriod(ctx, tenantID, in)
}

func (s *Service) CreateYear(ctx context.Context, tenantID uuid.UUID, in CreateYearInput) (Year, error) {
	if err := in.Validate(); err != nil {
		return Year{}, err
	}
	return s.repo.InsertYear(ctx, tenantID, in)
}

func (s *Service) GetYear(ctx context.Context, tenantID uuid.UUID, yearID int64) (Year, error) {
	return s.repo.GetYear(ctx, tenantID, yearID)
}

// ClosePeriod transitions an open period to CLOSED.
func (s *Service) ClosePeriod(ctx context.Context, tenantID uuid.UUID, periodID int64) (Period, error) {
	var period Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetPeriodForUpdate(ctx, tenantID, periodID)
		if err != nil {
			return err
		}
		if current.Status == PeriodStatusClosed {
			return shared.ErrInvalidStatus
		}
		closedAt := s.now()
		if err := tx.UpdatePeriodStatus(ctx, tenantID, periodID, PeriodStatusClosed, &closedAt); err != nil {
			return err
		}
		current.Status = PeriodStatusClosed
		current.ClosedAt = &closedAt
		period = current
		return nil
	})
	if err != nil {
		return Period{}, err
	}
	return period, nil
}

// ReopenPeriod transitions a closed period back to OPEN. Reopening is
// forbidden once the enclosing fiscal year has been closed.
func (s *Service) ReopenPeriod(ctx context.Context, tenantID uuid.UUID, periodID int64) (Period, error) {
	var period Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetPeriodForUpdate(ctx, tenantID, periodID)
		if err != nil {
			return err
		}
		if current.Status == PeriodStatusOpen {
			return shared.ErrInvalidStatus
		}
		year, err := tx.YearOfPeriod(ctx, tenantID, periodID)
		if err != nil {
			return err
		}
		if year.IsClosed {
			return shared.ErrYearClosed
		}
		if err := tx.UpdatePeriodStatus(ctx, tenantID, periodID, PeriodStatusOpen, nil); err != nil {
			return err
		}
		current.Status = PeriodStatusOpen
		current.ClosedAt = nil
		period = current
		return nil
	})
	if err != nil {
		return Period{}, err
	}
	return period, nil
}

// CloseYear runs the year-end close in one transaction: every open period of
// the year is force-closed, net income is computed from the year's ledger
// activity, a closing entry zeroing each revenue and expense account is
// synthesized in already-POSTED state with mirrored ledger rows, the affected
// balance counters are set to their exact final values, and the year is
// marked closed. A missing retained earnings account aborts with a conflict
// before anything is written.
func (s *Service) CloseYear(ctx context.Context, tenantID uuid.UUID, yearID int64) (CloseResult, error) {
	var result CloseResult
	var closingNumber int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		year, err := tx.GetYearForUpdate(ctx, tenantID, yearID)
		if err != nil {
			return err
		}
		if year.IsClosed {
			return shared.ErrYearClosed
		}

		activity, err := tx.RevenueExpenseActivity(ctx, tenantID, year.StartDate, year.EndDate)
		if err != nil {
			return err
		}
		lines, netIncome := buildClosingLines(activity, year)

		var retained accounts.Account
		if !netIncome.IsZero() {
			retained, err = tx.GetAccountByCodeForUpdate(ctx, tenantID, s.retainedEarningsCode)
			if err != nil {
				if errors.Is(err, shared.ErrAccountNotFound) {
					return shared.ErrRetainedEarningsMissing
				}
				return err
			}
			line := ClosingLine{
				AccountID:   retained.ID,
				Description: fmt.Sprintf("Net income for %s", year.Name),
			}
			if netIncome.IsPositive() {
				line.Credit = netIncome
			} else {
				line.Debit = netIncome.Abs()
			}
			lines = append(lines, line)
		}

		closedAt := s.now()
		closed, err := tx.ForceCloseOpenPeriods(ctx, tenantID, yearID, closedAt)
		if err != nil {
			return err
		}

		var entryID int64
		if len(lines) > 0 {
			periodID, err := tx.FindPeriodID(ctx, tenantID, year.EndDate)
			if err != nil {
				return err
			}
			var totalDebit, totalCredit decimal.Decimal
			for _, line := range lines {
				totalDebit = totalDebit.Add(line.Debit)
				totalCredit = totalCredit.Add(line.Credit)
			}
			entryID, closingNumber, err = tx.InsertClosingEntry(ctx, tenantID, year.EndDate,
				fmt.Sprintf("Year-end closing %s", year.Name), totalDebit, totalCredit, closedAt, periodID)
			if err != nil {
				return err
			}
			if err := tx.InsertClosingLines(ctx, tenantID, entryID, periodID, year.EndDate, lines); err != nil {
				return err
			}
			for _, a := range activity {
				if err := tx.SetAccountBalance(ctx, tenantID, a.AccountID, decimal.Zero); err != nil {
					return err
				}
			}
			if !netIncome.IsZero() {
				if err := tx.SetAccountBalance(ctx, tenantID, retained.ID, retained.CurrentBalance.Add(netIncome)); err != nil {
					return err
				}
			}
		}

		if err := tx.MarkYearClosed(ctx, tenantID, yearID, closedAt); err != nil {
			return err
		}
		year.IsClosed = true
		year.ClosedAt = &closedAt
		result = CloseResult{
			Year:           year,
			NetIncome:      netIncome,
			ClosingEntryID: entryID,
			ClosedPeriods:  closed,
		}
		return nil
	})
	if err != nil {
		return CloseResult{}, err
	}
	s.publishClose(ctx, tenantID, result, closingNumber)
	return result, nil
}

// buildClosingLines turns per-account year activity into zeroing lines:
// a debit offsetting each revenue account's credit balance and a credit
// offsetting each expense account's debit balance. Contra balances flip to
// the opposite side. Returns the lines and the year's net income.
func buildClosingLines(activity []AccountActivity, year Year) ([]ClosingLine, decimal.Decimal) {
	var lines []ClosingLine
	var netIncome decimal.Decimal
	for _, a := range activity {
		var closeAmount decimal.Decimal
		switch a.Category {
		case accounts.CategoryRevenue:
			closeAmount = a.Credit.Sub(a.Debit)
			netIncome = netIncome.Add(closeAmount)
		case accounts.CategoryExpense:
			closeAmount = a.Debit.Sub(a.Credit)
			netIncome = netIncome.Sub(closeAmount)
		default:
			continue
		}
		if closeAmount.IsZero() {
			continue
		}
		line := ClosingLine{
			AccountID:   a.AccountID,
			Description: fmt.Sprintf("Closing %s for %s", a.Code, year.Name),
		}
		debitSide := a.Category == accounts.CategoryRevenue
		if closeAmount.IsNegative() {
			debitSide = !debitSide
			closeAmount = closeAmount.Abs()
		}
		if debitSide {
			line.Debit = closeAmount
		} else {
			line.Credit = closeAmount
		}
		lines = append(lines, line)
	}
	return lines, netIncome
}

func (s *Service) publishClose(ctx context.Context, tenantID uuid.UUID, result CloseResult, entryNumber int64) {
	if s.publisher == nil {
		return
	}
	if result.ClosingEntryID != 0 {
		amount := result.NetIncome.Abs()
		if err := s.publisher.PublishClosingEntryPosted(ctx, tenantID, result.ClosingEntryID, entryNumber, amount); err != nil {
			s.logger.Warn("closing entry event publish failed",
				slog.Int64("entry_id", result.ClosingEntryID), slog.Any("error", err))
		}
	}
	if err := s.publisher.PublishYearClosed(ctx, tenantID, result.Year.ID, result.NetIncome); err != nil {
		s.logger.Warn("year closed event publish failed",
			slog.Int64("year_id", result.Year.ID), slog.Any("error", err))
	}
}
