package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherFirstSnapshotIsSilent(t *testing.T) {
	w := NewWatcher()

	out := w.ApplySnapshot([]SaleSummary{
		{ID: 1, SaleDate: "2026-08-29", Status: "draft"},
		{ID: 2, SaleDate: "2026-08-22", Status: "completed"},
	})

	assert.Empty(t, out)
	assert.True(t, w.Primed())
}

func TestWatcherNotifiesNewSale(t *testing.T) {
	w := NewWatcher()
	w.ApplySnapshot([]SaleSummary{{ID: 1, SaleDate: "2026-08-22", Status: "completed"}})

	out := w.ApplySnapshot([]SaleSummary{
		{ID: 1, SaleDate: "2026-08-22", Status: "completed"},
		{ID: 2, SaleDate: "2026-08-29", Status: "draft"},
	})

	require.Len(t, out, 1)
	assert.Equal(t, NotificationNewSale, out[0].Kind)
	assert.Equal(t, int64(2), out[0].SaleID)
	assert.Equal(t, "2026-08-29", out[0].SaleDate)
}

func TestWatcherNotifiesDeliveryStarted(t *testing.T) {
	w := NewWatcher()
	w.ApplySnapshot([]SaleSummary{{ID: 1, SaleDate: "2026-08-29", Status: "closed"}})

	out := w.ApplySnapshot([]SaleSummary{{ID: 1, SaleDate: "2026-08-29", Status: "in_progress"}})

	require.Len(t, out, 1)
	assert.Equal(t, NotificationDeliveryStarted, out[0].Kind)
	assert.Equal(t, int64(1), out[0].SaleID)
}

func TestWatcherIgnoresOtherTransitions(t *testing.T) {
	w := NewWatcher()
	w.ApplySnapshot([]SaleSummary{{ID: 1, SaleDate: "2026-08-29", Status: "draft"}})

	assert.Empty(t, w.ApplySnapshot([]SaleSummary{{ID: 1, SaleDate: "2026-08-29", Status: "closed"}}))
	assert.Empty(t, w.ApplySnapshot([]SaleSummary{{ID: 1, SaleDate: "2026-08-29", Status: "closed"}}))
}

func TestWatcherNewSaleAlreadyInProgress(t *testing.T) {
	w := NewWatcher()
	w.ApplySnapshot(nil)

	out := w.ApplySnapshot([]SaleSummary{{ID: 3, SaleDate: "2026-08-29", Status: "in_progress"}})

	require.Len(t, out, 2)
	assert.Equal(t, NotificationNewSale, out[0].Kind)
	assert.Equal(t, NotificationDeliveryStarted, out[1].Kind)
}

func TestWatcherForgetsAbsentSales(t *testing.T) {
	w := NewWatcher()
	w.ApplySnapshot([]SaleSummary{{ID: 1, SaleDate: "2026-08-22", Status: "completed"}})

	assert.Empty(t, w.ApplySnapshot(nil))

	// Reappearing after removal counts as new again.
	out := w.ApplySnapshot([]SaleSummary{{ID: 1, SaleDate: "2026-08-22", Status: "completed"}})
	require.Len(t, out, 1)
	assert.Equal(t, NotificationNewSale, out[0].Kind)
}

func TestWatcherDeliveryStartedFiresOnce(t *testing.T) {
	w := NewWatcher()
	w.ApplySnapshot([]SaleSummary{{ID: 1, SaleDate: "2026-08-29", Status: "closed"}})

	first := w.ApplySnapshot([]SaleSummary{{ID: 1, SaleDate: "2026-08-29", Status: "in_progress"}})
	require.Len(t, first, 1)

	again := w.ApplySnapshot([]SaleSummary{{ID: 1, SaleDate: "2026-08-29", Status: "in_progress"}})
	assert.Empty(t, again)
}
