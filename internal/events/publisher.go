// Package events delivers engine notifications to downstream consumers over
// Redis streams. Delivery is best-effort and at-least-once: the originating
// transaction has already committed, so failures surface to the caller for
// logging and nothing else.
package events

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/accounting/journals"
)

const (
	// StreamJournalEntries receives journal lifecycle events.
	StreamJournalEntries = "events:journal_entries"
	// StreamFiscalYears receives year-end close events.
	StreamFiscalYears = "events:fiscal_years"

	// EventYearClosed is emitted once per successful year-end close.
	EventYearClosed = "fiscal_years.closed"
)

// RedisPublisher appends events to Redis streams with XADD.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// Publish implements journals.Publisher.
func (p *RedisPublisher) Publish(ctx context.Context, event journals.EntryEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamJournalEntries,
		Values: map[string]any{"name": event.Name, "payload": payload},
	}).Err()
}

// PublishClosingEntryPosted implements fiscal.EventPublisher for the
// synthesized year-end closing entry.
func (p *RedisPublisher) PublishClosingEntryPosted(ctx context.Context, tenantID uuid.UUID, entryID, entryNumber int64, amount decimal.Decimal) error {
	return p.Publish(ctx, journals.EntryEvent{
		Name:        journals.EventEntryPosted,
		TenantID:    tenantID,
		EntryID:     entryID,
		EntryNumber: entryNumber,
		Amount:      amount,
	})
}

// YearClosedEvent carries the year-end close notification payload.
type YearClosedEvent struct {
	Name      string          `json:"name"`
	TenantID  uuid.UUID       `json:"tenant_id"`
	YearID    int64           `json:"year_id"`
	NetIncome decimal.Decimal `json:"net_income"`
}

// PublishYearClosed implements fiscal.EventPublisher.
func (p *RedisPublisher) PublishYearClosed(ctx context.Context, tenantID uuid.UUID, yearID int64, netIncome decimal.Decimal) error {
	payload, err := json.Marshal(YearClosedEvent{
		Name:      EventYearClosed,
		TenantID:  tenantID,
		YearID:    yearID,
		NetIncome: netIncome,
	})
	if err != nil {
		return err
	}
	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamFiscalYears,
		Values: map[string]any{"name": EventYearClosed, "payload": payload},
	}).Err()
}

// NopPublisher discards every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, journals.EntryEvent) error { return nil }

func (NopPublisher) PublishClosingEntryPosted(context.Context, uuid.UUID, int64, int64, decimal.Decimal) error {
	return nil
}

func (NopPublisher) PublishYearClosed(context.Context, uuid.UUID, int64, decimal.Decimal) error {
	return nil
}
