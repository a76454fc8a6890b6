package journals

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/accounting/fiscal"
	"github.com/meridian-erp/meridian-erp/internal/accounting/shared"
)

// memoryRepo implements Repository/TxRepository against maps. The mutex held
// for the duration of each transaction stands in for the row locks the SQL
// implementation takes; the snapshot/restore pair stands in for rollback.
type memoryRepo struct {
	mu          sync.Mutex
	entries     map[int64]JournalEntry
	lines       map[int64][]JournalLine
	ledger      map[int64][]LedgerEntry
	balances    map[int64]decimal.Decimal
	periods     []fiscal.Period
	nextEntryID int64
	nextLineID  int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		entries:  make(map[int64]JournalEntry),
		lines:    make(map[int64][]JournalLine),
		ledger:   make(map[int64][]LedgerEntry),
		balances: make(map[int64]decimal.Decimal),
	}
}

type repoSnapshot struct {
	entries  map[int64]JournalEntry
	lines    map[int64][]JournalLine
	ledger   map[int64][]LedgerEntry
	balances map[int64]decimal.Decimal
}

func (r *memoryRepo) snapshot() repoSnapshot {
	s := repoSnapshot{
		entries:  make(map[int64]JournalEntry, len(r.entries)),
		lines:    make(map[int64][]JournalLine, len(r.lines)),
		ledger:   make(map[int64][]LedgerEntry, len(r.ledger)),
		balances: make(map[int64]decimal.Decimal, len(r.balances)),
	}
	for k, v := range r.entries {
		s.entries[k] = v
	}
	for k, v := range r.lines {
		s.lines[k] = append([]JournalLine(nil), v...)
	}
	for k, v := range r.ledger {
		s.ledger[k] = append([]LedgerEntry(nil), v...)
	}
	for k, v := range r.balances {
		s.balances[k] = v
	}
	return s
}

func (r *memoryRepo) restore(s repoSnapshot) {
	r.entries = s.entries
	r.lines = s.lines
	r.ledger = s.ledger
	r.balances = s.balances
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	saved := r.snapshot()
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.restore(saved)
		return err
	}
	return nil
}

func (r *memoryRepo) Get(ctx context.Context, tenantID uuid.UUID, entryID int64) (JournalEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[entryID]
	if !ok {
		return JournalEntry{}, shared.ErrEntryNotFound
	}
	entry.Lines = append([]JournalLine(nil), r.lines[entryID]...)
	return entry, nil
}

func (r *memoryRepo) List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]JournalEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []JournalEntry
	for _, e := range r.entries {
		out = append(out, e)
	}
	return out, nil
}

func (r *memoryRepo) Count(ctx context.Context, tenantID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries), nil
}

type memoryTx struct {
	repo *memoryRepo
}

func (tx *memoryTx) InsertEntry(ctx context.Context, tenantID uuid.UUID, in CreateEntryInput, totalDebit, totalCredit decimal.Decimal) (JournalEntry, error) {
	r := tx.repo
	r.nextEntryID++
	entry := JournalEntry{
		ID:          r.nextEntryID,
		TenantID:    tenantID,
		EntryNumber: r.nextEntryID,
		EntryDate:   in.EntryDate,
		Description: in.Description,
		Status:      StatusDraft,
		TotalDebit:  totalDebit,
		TotalCredit: totalCredit,
		Currency:    in.Currency,
		SourceType:  in.SourceType,
		SourceID:    in.SourceID,
	}
	r.entries[entry.ID] = entry
	return entry, nil
}

func (tx *memoryTx) ReplaceLines(ctx context.Context, entryID int64, lines []LineInput) ([]JournalLine, error) {
	r := tx.repo
	out := make([]JournalLine, 0, len(lines))
	for idx, line := range lines {
		r.nextLineID++
		out = append(out, JournalLine{
			ID:          r.nextLineID,
			EntryID:     entryID,
			LineNumber:  idx + 1,
			AccountID:   line.AccountID,
			Description: line.Description,
			Debit:       line.Debit,
			Credit:      line.Credit,
		})
	}
	r.lines[entryID] = out
	return out, nil
}

func (tx *memoryTx) GetEntryForUpdate(ctx context.Context, tenantID uuid.UUID, entryID int64) (JournalEntry, error) {
	entry, ok := tx.repo.entries[entryID]
	if !ok {
		return JournalEntry{}, shared.ErrEntryNotFound
	}
	return entry, nil
}

func (tx *memoryTx) GetLines(ctx context.Context, entryID int64) ([]JournalLine, error) {
	return append([]JournalLine(nil), tx.repo.lines[entryID]...), nil
}

func (tx *memoryTx) UpdateDraft(ctx context.Context, tenantID uuid.UUID, in UpdateEntryInput, totalDebit, totalCredit decimal.Decimal) error {
	entry, ok := tx.repo.entries[in.EntryID]
	if !ok {
		return shared.ErrEntryNotFound
	}
	entry.EntryDate = in.EntryDate
	entry.Description = in.Description
	entry.Currency = in.Currency
	entry.TotalDebit = totalDebit
	entry.TotalCredit = totalCredit
	tx.repo.entries[in.EntryID] = entry
	return nil
}

func (tx *memoryTx) DeleteEntry(ctx context.Context, tenantID uuid.UUID, entryID int64) error {
	if _, ok := tx.repo.entries[entryID]; !ok {
		return shared.ErrEntryNotFound
	}
	delete(tx.repo.entries, entryID)
	delete(tx.repo.lines, entryID)
	return nil
}

func (tx *memoryTx) MarkPosted(ctx context.Context, entryID int64, periodID *int64, postedAt time.Time) error {
	entry, ok := tx.repo.entries[entryID]
	if !ok {
		return shared.ErrEntryNotFound
	}
	entry.Status = StatusPosted
	entry.FiscalPeriodID = periodID
	entry.PostedAt = &postedAt
	tx.repo.entries[entryID] = entry
	return nil
}

func (tx *memoryTx) MarkVoided(ctx context.Context, entryID int64, reason *string, voidedAt time.Time) error {
	entry, ok := tx.repo.entries[entryID]
	if !ok {
		return shared.ErrEntryNotFound
	}
	entry.Status = StatusVoided
	entry.VoidedReason = reason
	entry.VoidedAt = &voidedAt
	tx.repo.entries[entryID] = entry
	return nil
}

func (tx *memoryTx) FindPeriodCovering(ctx context.Context, tenantID uuid.UUID, date time.Time) (fiscal.Period, error) {
	for _, p := range tx.repo.periods {
		if p.Covers(date) {
			return p, nil
		}
	}
	return fiscal.Period{}, shared.ErrPeriodNotFound
}

func (tx *memoryTx) InsertLedgerEntries(ctx context.Context, entries []LedgerEntry) error {
	for _, entry := range entries {
		entryID := int64(0)
		for id, lines := range tx.repo.lines {
			for _, line := range lines {
				if line.ID == entry.JournalLineID {
					entryID = id
				}
			}
		}
		tx.repo.ledger[entryID] = append(tx.repo.ledger[entryID], entry)
	}
	return nil
}

func (tx *memoryTx) DeleteLedgerEntries(ctx context.Context, entryID int64) (int64, error) {
	removed := int64(len(tx.repo.ledger[entryID]))
	delete(tx.repo.ledger, entryID)
	return removed, nil
}

func (tx *memoryTx) ApplyAccountDelta(ctx context.Context, tenantID uuid.UUID, accountID int64, delta decimal.Decimal) error {
	tx.repo.balances[accountID] = tx.repo.balances[accountID].Add(delta)
	return nil
}

type capturePublisher struct {
	mu     sync.Mutex
	events []EntryEvent
}

func (p *capturePublisher) Publish(ctx context.Context, event EntryEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.Name)
	}
	return out
}

func newTestService(t *testing.T, repo *memoryRepo) (*Service, *capturePublisher) {
	t.Helper()
	publisher := &capturePublisher{}
	service := NewService(repo, NewValidator(testChart()), publisher, nil)
	service.WithNow(func() time.Time { return time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC) })
	return service, publisher
}

func draftInput(date time.Time) CreateEntryInput {
	return CreateEntryInput{
		EntryDate:   date,
		Description: "Office rent",
		Currency:    "USD",
		SourceType:  "manual",
		Lines: []LineInput{
			{AccountID: 1, Debit: dec("100")},
			{AccountID: 2, Credit: dec("100")},
		},
	}
}

func TestPostDraft(t *testing.T) {
	repo := newMemoryRepo()
	service, publisher := newTestService(t, repo)
	tenant := uuid.New()
	ctx := context.Background()

	entry, err := service.CreateDraft(ctx, tenant, draftInput(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	require.Equal(t, StatusDraft, entry.Status)

	posted, err := service.Post(ctx, tenant, entry.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPosted, posted.Status)
	require.NotNil(t, posted.PostedAt)
	require.Nil(t, posted.FiscalPeriodID, "no period configured: untracked posting")

	require.Len(t, repo.ledger[entry.ID], 2)
	require.True(t, repo.balances[1].Equal(dec("100")))
	require.True(t, repo.balances[2].Equal(dec("-100")))

	require.Equal(t, []string{EventEntryCreated, EventEntryPosted}, publisher.names())
}

func TestPostRequiresDraft(t *testing.T) {
	repo := newMemoryRepo()
	service, _ := newTestService(t, repo)
	tenant := uuid.New()
	ctx := context.Background()

	entry, err := service.CreateDraft(ctx, tenant, draftInput(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	_, err = service.Post(ctx, tenant, entry.ID)
	require.NoError(t, err)

	_, err = service.Post(ctx, tenant, entry.ID)
	require.ErrorIs(t, err, shared.ErrInvalidStatus)

	_, err = service.Post(ctx, tenant, 9999)
	require.ErrorIs(t, err, shared.ErrEntryNotFound)
}

func TestPostRevalidatesStoredLines(t *testing.T) {
	repo := newMemoryRepo()
	service, _ := newTestService(t, repo)
	tenant := uuid.New()
	ctx := context.Background()

	entry, err := service.CreateDraft(ctx, tenant, draftInput(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	// Tamper with the stored lines; the cached totals still balance.
	repo.lines[entry.ID][0].Debit = dec("150")

	_, err = service.Post(ctx, tenant, entry.ID)
	require.ErrorIs(t, err, shared.ErrUnbalanced)
	require.Empty(t, repo.ledger[entry.ID])
	require.True(t, repo.balances[1].IsZero())
}

func TestPostIntoClosedPeriod(t *testing.T) {
	repo := newMemoryRepo()
	repo.periods = []fiscal.Period{{
		ID:        7,
		StartDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		Status:    fiscal.PeriodStatusClosed,
	}}
	service, publisher := newTestService(t, repo)
	tenant := uuid.New()
	ctx := context.Background()

	entry, err := service.CreateDraft(ctx, tenant, draftInput(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	_, err = service.Post(ctx, tenant, entry.ID)
	require.ErrorIs(t, err, shared.ErrPeriodClosed)

	// No partial write observable.
	require.Equal(t, StatusDraft, repo.entries[entry.ID].Status)
	require.Empty(t, repo.ledger[entry.ID])
	require.True(t, repo.balances[1].IsZero())
	require.True(t, repo.balances[2].IsZero())
	require.Equal(t, []string{EventEntryCreated}, publisher.names())
}

func TestPostResolvesOpenPeriod(t *testing.T) {
	repo := newMemoryRepo()
	repo.periods = []fiscal.Period{{
		ID:        7,
		StartDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		Status:    fiscal.PeriodStatusOpen,
	}}
	service, _ := newTestService(t, repo)
	tenant := uuid.New()
	ctx := context.Background()

	entry, err := service.CreateDraft(ctx, tenant, draftInput(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	posted, err := service.Post(ctx, tenant, entry.ID)
	require.NoError(t, err)
	require.NotNil(t, posted.FiscalPeriodID)
	require.Equal(t, int64(7), *posted.FiscalPeriodID)
}

func TestVoidRestoresBalances(t *testing.T) {
	repo := newMemoryRepo()
	service, publisher := newTestService(t, repo)
	tenant := uuid.New()
	ctx := context.Background()

	entry, err := service.CreateDraft(ctx, tenant, draftInput(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	_, err = service.Post(ctx, tenant, entry.ID)
	require.NoError(t, err)

	voided, err := service.Void(ctx, tenant, VoidInput{EntryID: entry.ID, Reason: "duplicate"})
	require.NoError(t, err)
	require.Equal(t, StatusVoided, voided.Status)
	require.NotNil(t, voided.VoidedAt)
	require.NotNil(t, voided.VoidedReason)
	require.Equal(t, "duplicate", *voided.VoidedReason)
	require.Equal(t, "Office rent", voided.Description, "description must stay untouched")

	require.True(t, repo.balances[1].IsZero())
	require.True(t, repo.balances[2].IsZero())
	require.Empty(t, repo.ledger[entry.ID])

	// Voiding twice fails: the terminal state doubles as the dedup signal.
	_, err = service.Void(ctx, tenant, VoidInput{EntryID: entry.ID})
	require.ErrorIs(t, err, shared.ErrInvalidStatus)

	require.Equal(t, []string{EventEntryCreated, EventEntryPosted, EventEntryVoided}, publisher.names())
}

func TestVoidRequiresPosted(t *testing.T) {
	repo := newMemoryRepo()
	service, _ := newTestService(t, repo)
	tenant := uuid.New()
	ctx := context.Background()

	entry, err := service.CreateDraft(ctx, tenant, draftInput(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	_, err = service.Void(ctx, tenant, VoidInput{EntryID: entry.ID})
	require.ErrorIs(t, err, shared.ErrInvalidStatus)
}

func TestDraftLifecycle(t *testing.T) {
	repo := newMemoryRepo()
	service, _ := newTestService(t, repo)
	tenant := uuid.New()
	ctx := context.Background()

	entry, err := service.CreateDraft(ctx, tenant, draftInput(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	updated, err := service.UpdateDraft(ctx, tenant, UpdateEntryInput{
		EntryID:     entry.ID,
		EntryDate:   entry.EntryDate,
		Description: "Office rent (corrected)",
		Currency:    "USD",
		Lines: []LineInput{
			{AccountID: 1, Debit: dec("250")},
			{AccountID: 2, Credit: dec("250")},
		},
	})
	require.NoError(t, err)
	require.True(t, updated.TotalDebit.Equal(dec("250")))
	require.Len(t, repo.lines[entry.ID], 2)

	require.NoError(t, service.DeleteDraft(ctx, tenant, entry.ID))
	_, err = service.Get(ctx, tenant, entry.ID)
	require.ErrorIs(t, err, shared.ErrEntryNotFound)
}

func TestDeleteRejectsPosted(t *testing.T) {
	repo := newMemoryRepo()
	service, _ := newTestService(t, repo)
	tenant := uuid.New()
	ctx := context.Background()

	entry, err := service.CreateDraft(ctx, tenant, draftInput(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	_, err = service.Post(ctx, tenant, entry.ID)
	require.NoError(t, err)

	err = service.DeleteDraft(ctx, tenant, entry.ID)
	require.ErrorIs(t, err, shared.ErrInvalidStatus)

	_, err = service.UpdateDraft(ctx, tenant, UpdateEntryInput{
		EntryID:     entry.ID,
		EntryDate:   entry.EntryDate,
		Description: "tamper",
		Currency:    "USD",
		Lines: []LineInput{
			{AccountID: 1, Debit: dec("1")},
			{AccountID: 2, Credit: dec("1")},
		},
	})
	require.ErrorIs(t, err, shared.ErrInvalidStatus)
}

func TestConcurrentPostingsSameAccount(t *testing.T) {
	repo := newMemoryRepo()
	service, _ := newTestService(t, repo)
	tenant := uuid.New()
	ctx := context.Background()
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	const postings = 20
	ids := make([]int64, 0, postings)
	for i := 0; i < postings; i++ {
		entry, err := service.CreateDraft(ctx, tenant, draftInput(date))
		require.NoError(t, err)
		ids = append(ids, entry.ID)
	}

	errs := make(chan error, postings)
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(entryID int64) {
			defer wg.Done()
			_, err := service.Post(ctx, tenant, entryID)
			errs <- err
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	// Every delta applied exactly once, regardless of interleaving.
	require.True(t, repo.balances[1].Equal(dec("2000")), "got %s", repo.balances[1])
	require.True(t, repo.balances[2].Equal(dec("-2000")), "got %s", repo.balances[2])
}

func TestConcurrentPostingsDisjointAccounts(t *testing.T) {
	repo := newMemoryRepo()
	service, _ := newTestService(t, repo)
	tenant := uuid.New()
	ctx := context.Background()
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	first, err := service.CreateDraft(ctx, tenant, draftInput(date))
	require.NoError(t, err)
	second, err := service.CreateDraft(ctx, tenant, CreateEntryInput{
		EntryDate:   date,
		Description: "Consulting revenue",
		Currency:    "USD",
		SourceType:  "manual",
		Lines: []LineInput{
			{AccountID: 1, Debit: dec("40")},
			{AccountID: 2, Credit: dec("40")},
		},
	})
	require.NoError(t, err)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for _, id := range []int64{first.ID, second.ID} {
		wg.Add(1)
		go func(entryID int64) {
			defer wg.Done()
			_, err := service.Post(ctx, tenant, entryID)
			errs <- err
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	require.True(t, repo.balances[1].Equal(dec("140")))
	require.True(t, repo.balances[2].Equal(dec("-140")))
}
