package journals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/accounting/fiscal"
	"github.com/meridian-erp/meridian-erp/internal/accounting/shared"
)

// Service implements the journal entry lifecycle: draft creation and
// mutation, posting into the ledger, and voiding. Posting and voiding are
// not idempotent; replaying either against an already transitioned entry
// fails with ErrInvalidStatus, which callers use as their dedup signal.
type Service struct {
	repo      Repository
	validator *Validator
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(repo Repository, validator *Validator, publisher Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, validator: validator, publisher: publisher, logger: logger, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) Get(ctx context.Context, tenantID uuid.UUID, entryID int64) (JournalEntry, error) {
	return s.repo.Get(ctx, tenantID, entryID)
}

func (s *Service) List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]JournalEntry, error) {
	return s.repo.List(ctx, tenantID, limit, offset)
}

func (s *Service) Count(ctx context.Context, tenantID uuid.UUID) (int, error) {
	return s.repo.Count(ctx, tenantID)
}

// CreateDraft validates the request in one pass and persists the entry with
// its lines in DRAFT status.
func (s *Service) CreateDraft(ctx context.Context, tenantID uuid.UUID, in CreateEntryInput) (JournalEntry, error) {
	if err := in.Validate(); err != nil {
		return JournalEntry{}, err
	}
	if err := s.validator.ValidateEntry(ctx, tenantID, in.Lines); err != nil {
		return JournalEntry{}, err
	}
	debit, credit := totals(in.Lines)
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inserted, err := tx.InsertEntry(ctx, tenantID, in, debit, credit)
		if err != nil {
			return err
		}
		lines, err := tx.ReplaceLines(ctx, inserted.ID, in.Lines)
		if err != nil {
			return err
		}
		inserted.Lines = lines
		entry = inserted
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.publish(ctx, entryEvent(EventEntryCreated, entry))
	return entry, nil
}

// UpdateDraft replaces a draft's header fields and lines wholesale.
// Posted and voided entries are immutable.
func (s *Service) UpdateDraft(ctx context.Context, tenantID uuid.UUID, in UpdateEntryInput) (JournalEntry, error) {
	if err := in.Validate(); err != nil {
		return JournalEntry{}, err
	}
	if err := s.validator.ValidateEntry(ctx, tenantID, in.Lines); err != nil {
		return JournalEntry{}, err
	}
	debit, credit := totals(in.Lines)
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEntryForUpdate(ctx, tenantID, in.EntryID)
		if err != nil {
			return err
		}
		if current.Status != StatusDraft {
			return shared.ErrInvalidStatus
		}
		if err := tx.UpdateDraft(ctx, tenantID, in, debit, credit); err != nil {
			return err
		}
		lines, err := tx.ReplaceLines(ctx, current.ID, in.Lines)
		if err != nil {
			return err
		}
		current.EntryDate = in.EntryDate
		current.Description = in.Description
		current.Currency = in.Currency
		current.TotalDebit = debit
		current.TotalCredit = credit
		current.Lines = lines
		entry = current
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

// DeleteDraft removes a draft entry and its lines. Posted and voided entries
// may never be deleted.
func (s *Service) DeleteDraft(ctx context.Context, tenantID uuid.UUID, entryID int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEntryForUpdate(ctx, tenantID, entryID)
		if err != nil {
			return err
		}
		if current.Status != StatusDraft {
			return shared.ErrInvalidStatus
		}
		return tx.DeleteEntry(ctx, tenantID, entryID)
	})
}

// Post transitions a draft to POSTED: ledger rows are written 1:1 with the
// lines and each account balance absorbs the line deltas, all inside one
// transaction. Balance is re-checked from the stored lines; cached totals are
// never trusted. When no fiscal period covers the entry date the posting
// proceeds with a NULL fiscal_period_id (the untracked-period policy); a
// covering period that is closed fails with ErrPeriodClosed before any write.
func (s *Service) Post(ctx context.Context, tenantID uuid.UUID, entryID int64) (JournalEntry, error) {
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEntryForUpdate(ctx, tenantID, entryID)
		if err != nil {
			return err
		}
		if current.Status != StatusDraft {
			return shared.ErrInvalidStatus
		}
		lines, err := tx.GetLines(ctx, current.ID)
		if err != nil {
			return err
		}
		if len(lines) < 2 {
			return shared.ErrTooFewLines
		}
		var debit, credit decimal.Decimal
		for _, line := range lines {
			debit = debit.Add(line.Debit)
			credit = credit.Add(line.Credit)
		}
		if !Balanced(debit, credit) {
			return shared.ErrUnbalanced
		}

		var periodID *int64
		period, err := tx.FindPeriodCovering(ctx, tenantID, current.EntryDate)
		switch {
		case err == nil:
			if period.Status == fiscal.PeriodStatusClosed {
				return shared.ErrPeriodClosed
			}
			id := period.ID
			periodID = &id
		case errors.Is(err, shared.ErrPeriodNotFound):
			// No covering period configured: post untracked.
		default:
			return err
		}

		ledger := make([]LedgerEntry, 0, len(lines))
		for _, line := range lines {
			description := line.Description
			if description == "" {
				description = current.Description
			}
			ledger = append(ledger, LedgerEntry{
				TenantID:       tenantID,
				AccountID:      line.AccountID,
				JournalLineID:  line.ID,
				FiscalPeriodID: periodID,
				EntryDate:      current.EntryDate,
				Description:    description,
				Debit:          line.Debit,
				Credit:         line.Credit,
			})
		}
		if err := tx.InsertLedgerEntries(ctx, ledger); err != nil {
			return err
		}
		if err := applyDeltas(ctx, tx, tenantID, lines, false); err != nil {
			return err
		}
		postedAt := s.now()
		if err := tx.MarkPosted(ctx, current.ID, periodID, postedAt); err != nil {
			return err
		}
		current.Status = StatusPosted
		current.FiscalPeriodID = periodID
		current.PostedAt = &postedAt
		current.TotalDebit = debit
		current.TotalCredit = credit
		current.Lines = lines
		entry = current
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.publish(ctx, entryEvent(EventEntryPosted, entry))
	return entry, nil
}

// Void transitions a posted entry to VOIDED: every account balance is
// restored by the exact inverse delta, the ledger rows are removed, and the
// reason is kept as structured metadata. VOIDED is terminal.
func (s *Service) Void(ctx context.Context, tenantID uuid.UUID, in VoidInput) (JournalEntry, error) {
	if in.EntryID == 0 {
		return JournalEntry{}, errors.New("accounting: entry id required")
	}
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEntryForUpdate(ctx, tenantID, in.EntryID)
		if err != nil {
			return err
		}
		if current.Status != StatusPosted {
			return shared.ErrInvalidStatus
		}
		lines, err := tx.GetLines(ctx, current.ID)
		if err != nil {
			return err
		}
		if err := applyDeltas(ctx, tx, tenantID, lines, true); err != nil {
			return err
		}
		removed, err := tx.DeleteLedgerEntries(ctx, current.ID)
		if err != nil {
			return err
		}
		if removed != int64(len(lines)) {
			return fmt.Errorf("accounting: entry %d has %d ledger rows for %d lines", current.ID, removed, len(lines))
		}
		voidedAt := s.now()
		var reason *string
		if in.Reason != "" {
			reason = &in.Reason
		}
		if err := tx.MarkVoided(ctx, current.ID, reason, voidedAt); err != nil {
			return err
		}
		current.Status = StatusVoided
		current.VoidedAt = &voidedAt
		current.VoidedReason = reason
		current.Lines = lines
		entry = current
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.publish(ctx, entryEvent(EventEntryVoided, entry))
	return entry, nil
}

// applyDeltas folds line amounts per account and applies each aggregate in
// ascending account order, so two postings sharing accounts always take their
// row locks in the same sequence.
func applyDeltas(ctx context.Context, tx TxRepository, tenantID uuid.UUID, lines []JournalLine, inverse bool) error {
	deltas := make(map[int64]decimal.Decimal, len(lines))
	for _, line := range lines {
		delta := line.Delta()
		if inverse {
			delta = delta.Neg()
		}
		deltas[line.AccountID] = deltas[line.AccountID].Add(delta)
	}
	ids := make([]int64, 0, len(deltas))
	for id := range deltas {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if err := tx.ApplyAccountDelta(ctx, tenantID, id, deltas[id]); err != nil {
			return err
		}
	}
	return nil
}

// publish runs after the transaction has committed; failures are logged and
// swallowed so event delivery can never undo a committed posting.
func (s *Service) publish(ctx context.Context, event EntryEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("event publish failed",
			slog.String("event", event.Name),
			slog.Int64("entry_id", event.EntryID),
			slog.Any("error", err))
	}
}
