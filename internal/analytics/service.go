package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/reparto-app/reparto/internal/platform/httpx"
	"github.com/reparto-app/reparto/internal/stream"
	"github.com/reparto-app/reparto/jobs"
)

const topLimit = 10

// Service assembles dashboard reports, cached per range.
type Service struct {
	store Store
	cache *Cache
}

// NewService constructs an analytics service.
func NewService(store Store, cache *Cache) *Service {
	return &Service{store: store, cache: cache}
}

// Report builds the dashboard payload for a date range.
func (s *Service) Report(ctx context.Context, rng DateRange) (*Report, error) {
	if rng.From != nil && rng.To != nil && rng.To.Before(*rng.From) {
		return nil, fmt.Errorf("%w: range end before start", httpx.ErrValidation)
	}

	key, err := s.cache.BuildKey(ctx, keyReport(rng)...)
	if err != nil {
		return nil, err
	}

	var report Report
	err = s.cache.FetchJSON(ctx, key, &report, func(ctx context.Context) (any, error) {
		return s.build(ctx, rng)
	})
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (s *Service) build(ctx context.Context, rng DateRange) (*Report, error) {
	summary, err := s.store.Summary(ctx, rng)
	if err != nil {
		return nil, err
	}
	byStatus, err := s.store.SalesByStatus(ctx, rng)
	if err != nil {
		return nil, err
	}
	products, err := s.store.TopProducts(ctx, rng, topLimit)
	if err != nil {
		return nil, err
	}
	customers, err := s.store.TopCustomers(ctx, rng, topLimit)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Summary:       summary,
		SalesByStatus: byStatus,
		TopProducts:   products,
		TopCustomers:  customers,
	}
	if rng.From != nil {
		report.From = rng.From.Format("2006-01-02")
	}
	if rng.To != nil {
		report.To = rng.To.Format("2006-01-02")
	}
	return report, nil
}

// Invalidate drops every cached report.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

// EventSource is the subscription side of the stream broker.
type EventSource interface {
	Subscribe(ctx context.Context) (<-chan stream.Event, func(), error)
}

// WatchEvents blocks until the context is cancelled, bumping the cache
// version whenever a sale changes so the next report request rebuilds.
// It resubscribes with backoff when the broker connection drops.
func (s *Service) WatchEvents(ctx context.Context, source EventSource, logger *slog.Logger) error {
	backoff := time.Second
	for {
		if err := s.watch(ctx, source); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("analytics watcher disconnected", slog.Any("error", err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > 30*time.Second {
			backoff = 30 * time.Second
		}
	}
}

func (s *Service) watch(ctx context.Context, source EventSource) error {
	events, cancel, err := source.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-events:
			if !ok {
				return context.Canceled
			}
			if err := s.Invalidate(ctx); err != nil {
				return err
			}
		}
	}
}

// DailyDigest supplies the end-of-day report job.
func (s *Service) DailyDigest(ctx context.Context, day time.Time) (*jobs.DigestStats, error) {
	figures, err := s.store.DayFigures(ctx, day)
	if err != nil {
		return nil, err
	}
	return &jobs.DigestStats{
		Day:             day.Format("2006-01-02"),
		SalesCompleted:  figures.SalesCompleted,
		TotalRevenue:    figures.TotalRevenue,
		TotalCollected:  figures.TotalCollected,
		DeliveriesDone:  figures.DeliveriesDone,
		DeliveriesSkips: figures.DeliveriesSkips,
	}, nil
}
