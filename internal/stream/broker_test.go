package stream

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBroker(t *testing.T) *Broker {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewBroker(client, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func waitForEvent(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case evt, ok := <-events:
		require.True(t, ok, "event channel closed early")
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestBrokerPublishReachesSubscriber(t *testing.T) {
	broker := newTestBroker(t)
	ctx := context.Background()

	events, cancel, err := broker.Subscribe(ctx)
	require.NoError(t, err)
	defer cancel()

	published := Event{
		Type: EventSaleStatusChanged,
		Sale: SaleSummary{ID: 4, SaleDate: "2026-08-29", Status: "in_progress"},
		At:   time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, broker.Publish(ctx, published))

	got := waitForEvent(t, events)
	assert.Equal(t, published.Type, got.Type)
	assert.Equal(t, published.Sale, got.Sale)
	assert.True(t, published.At.Equal(got.At))
}

func TestBrokerStampsMissingTimestamp(t *testing.T) {
	broker := newTestBroker(t)
	ctx := context.Background()

	events, cancel, err := broker.Subscribe(ctx)
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, broker.Publish(ctx, Event{
		Type: EventSaleCreated,
		Sale: SaleSummary{ID: 1, SaleDate: "2026-08-29", Status: "draft"},
	}))

	got := waitForEvent(t, events)
	assert.False(t, got.At.IsZero())
}

func TestBrokerFansOutToAllSubscribers(t *testing.T) {
	broker := newTestBroker(t)
	ctx := context.Background()

	first, cancelFirst, err := broker.Subscribe(ctx)
	require.NoError(t, err)
	defer cancelFirst()
	second, cancelSecond, err := broker.Subscribe(ctx)
	require.NoError(t, err)
	defer cancelSecond()

	require.NoError(t, broker.Publish(ctx, Event{
		Type: EventSaleOrdersChanged,
		Sale: SaleSummary{ID: 2, SaleDate: "2026-08-29", Status: "draft"},
	}))

	assert.Equal(t, int64(2), waitForEvent(t, first).Sale.ID)
	assert.Equal(t, int64(2), waitForEvent(t, second).Sale.ID)
}

func TestBrokerCancelClosesChannel(t *testing.T) {
	broker := newTestBroker(t)

	events, cancel, err := broker.Subscribe(context.Background())
	require.NoError(t, err)

	cancel()
	cancel() // safe to call twice

	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("channel did not close after cancel")
	}
}

func TestBrokerContextCancelClosesChannel(t *testing.T) {
	broker := newTestBroker(t)
	ctx, stop := context.WithCancel(context.Background())

	events, cancel, err := broker.Subscribe(ctx)
	require.NoError(t, err)
	defer cancel()

	stop()

	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("channel did not close after context cancel")
	}
}
