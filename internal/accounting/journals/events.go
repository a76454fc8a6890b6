package journals

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event names emitted by the engine.
const (
	EventEntryCreated = "journal_entries.created"
	EventEntryPosted  = "journal_entries.posted"
	EventEntryVoided  = "journal_entries.voided"
)

// EntryEvent carries the notification payload for journal lifecycle events.
type EntryEvent struct {
	Name        string          `json:"name"`
	TenantID    uuid.UUID       `json:"tenant_id"`
	EntryID     int64           `json:"entry_id"`
	EntryNumber int64           `json:"entry_number"`
	Amount      decimal.Decimal `json:"amount"`
}

// Publisher delivers engine events to downstream consumers. Delivery is
// best-effort and at-least-once; implementations must never block or fail the
// originating transaction, which has already committed by the time Publish
// runs.
type Publisher interface {
	Publish(ctx context.Context, event EntryEvent) error
}

func entryEvent(name string, entry JournalEntry) EntryEvent {
	return EntryEvent{
		Name:        name,
		TenantID:    entry.TenantID,
		EntryID:     entry.ID,
		EntryNumber: entry.EntryNumber,
		Amount:      entry.TotalDebit,
	}
}
