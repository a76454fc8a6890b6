package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/accounting/journals"
)

func newTestPublisher(t *testing.T) (*RedisPublisher, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisPublisher(client), client
}

func TestPublishEntryEvent(t *testing.T) {
	publisher, client := newTestPublisher(t)
	ctx := context.Background()
	tenant := uuid.New()

	err := publisher.Publish(ctx, journals.EntryEvent{
		Name:        journals.EventEntryPosted,
		TenantID:    tenant,
		EntryID:     42,
		EntryNumber: 7,
		Amount:      decimal.RequireFromString("150.25"),
	})
	require.NoError(t, err)

	messages, err := client.XRange(ctx, StreamJournalEntries, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.Equal(t, journals.EventEntryPosted, messages[0].Values["name"])

	var event journals.EntryEvent
	require.NoError(t, json.Unmarshal([]byte(messages[0].Values["payload"].(string)), &event))
	require.Equal(t, tenant, event.TenantID)
	require.Equal(t, int64(42), event.EntryID)
	require.Equal(t, int64(7), event.EntryNumber)
	require.True(t, event.Amount.Equal(decimal.RequireFromString("150.25")))
}

func TestPublishYearClosed(t *testing.T) {
	publisher, client := newTestPublisher(t)
	ctx := context.Background()
	tenant := uuid.New()

	err := publisher.PublishYearClosed(ctx, tenant, 3, decimal.RequireFromString("-150"))
	require.NoError(t, err)

	messages, err := client.XRange(ctx, StreamFiscalYears, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.Equal(t, EventYearClosed, messages[0].Values["name"])

	var event YearClosedEvent
	require.NoError(t, json.Unmarshal([]byte(messages[0].Values["payload"].(string)), &event))
	require.Equal(t, tenant, event.TenantID)
	require.Equal(t, int64(3), event.YearID)
	require.True(t, event.NetIncome.Equal(decimal.RequireFromString("-150")))
}

func TestPublishClosingEntryPosted(t *testing.T) {
	publisher, client := newTestPublisher(t)
	ctx := context.Background()

	err := publisher.PublishClosingEntryPosted(ctx, uuid.New(), 9, 12, decimal.RequireFromString("300"))
	require.NoError(t, err)

	messages, err := client.XRange(ctx, StreamJournalEntries, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.Equal(t, journals.EventEntryPosted, messages[0].Values["name"])
}
