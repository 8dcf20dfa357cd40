package notify

import (
	"context"
	"log/slog"
	"math/rand"
	"strconv"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/text/language"

	"github.com/reparto-app/reparto/internal/orders"
	"github.com/reparto-app/reparto/internal/stream"
	"github.com/reparto-app/reparto/jobs"
)

// EventSource is the subscription side of the stream broker.
type EventSource interface {
	Subscribe(ctx context.Context) (<-chan stream.Event, func(), error)
}

// Enqueuer hands push deliveries to the job queue. Satisfied by
// jobs.Client.
type Enqueuer interface {
	EnqueueSendPush(ctx context.Context, payload jobs.SendPushPayload) (*asynq.TaskInfo, error)
}

// SnapshotFunc supplies the current sale snapshot for diffing.
type SnapshotFunc func(ctx context.Context) ([]stream.SaleSummary, error)

// Dispatcher listens to sale events and fans push notifications out to
// every registered device. Notifications come from diffing consecutive
// snapshots, so a dispatcher that reconnects after downtime never replays
// changes it already announced.
type Dispatcher struct {
	source   EventSource
	snapshot SnapshotFunc
	devices  Store
	queue    Enqueuer
	logger   *slog.Logger
}

// NewDispatcher constructs a dispatcher.
func NewDispatcher(source EventSource, snapshot SnapshotFunc, devices Store, queue Enqueuer, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		source:   source,
		snapshot: snapshot,
		devices:  devices,
		queue:    queue,
		logger:   logger,
	}
}

// Run blocks until the context is cancelled, resubscribing with backoff
// when the broker connection drops.
func (d *Dispatcher) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if err := d.listen(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			d.logger.Warn("dispatcher disconnected", slog.Any("error", err))
		}

		sleep := backoff + time.Duration(rand.Int63n(int64(backoff/2)+1))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
		backoff *= 2
		if backoff > 30*time.Second {
			backoff = 30 * time.Second
		}
	}
}

func (d *Dispatcher) listen(ctx context.Context) error {
	events, cancel, err := d.source.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	watcher := stream.NewWatcher()
	if err := d.applySnapshot(ctx, watcher); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-events:
			if !ok {
				return context.Canceled
			}
			if err := d.applySnapshot(ctx, watcher); err != nil {
				d.logger.Warn("snapshot diff", slog.Any("error", err))
			}
		}
	}
}

func (d *Dispatcher) applySnapshot(ctx context.Context, watcher *stream.Watcher) error {
	snapshot, err := d.snapshot(ctx)
	if err != nil {
		return err
	}
	for _, notification := range watcher.ApplySnapshot(snapshot) {
		d.dispatch(ctx, notification)
	}
	return nil
}

func (d *Dispatcher) dispatch(ctx context.Context, notification stream.Notification) {
	var code string
	switch notification.Kind {
	case stream.NotificationNewSale:
		code = orders.CodeNewSaleAvailable
	case stream.NotificationDeliveryStarted:
		code = orders.CodeDeliveryStarted
	default:
		return
	}
	body := orders.Message(code, language.Spanish)

	devices, err := d.devices.ListAll(ctx)
	if err != nil {
		d.logger.Error("list devices", slog.Any("error", err))
		return
	}
	for _, device := range devices {
		payload := jobs.SendPushPayload{
			DeviceToken: device.PushToken,
			Platform:    device.Platform,
			Title:       "Reparto",
			Body:        body,
			Data: map[string]string{
				"code":      code,
				"sale_id":   strconv.FormatInt(notification.SaleID, 10),
				"sale_date": notification.SaleDate,
			},
		}
		if _, err := d.queue.EnqueueSendPush(ctx, payload); err != nil {
			d.logger.Warn("enqueue push", slog.Any("error", err), slog.Int64("device_id", device.ID))
		}
	}
}
