package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendPush delivers one push notification to one device.
	TaskTypeSendPush = "push:send"
	// TaskTypeDailyDigest builds the end-of-day sales digest.
	TaskTypeDailyDigest = "report:digest"
)

// SendPushPayload describes one push notification delivery.
type SendPushPayload struct {
	DeviceToken string            `json:"device_token"`
	Platform    string            `json:"platform"`
	Title       string            `json:"title"`
	Body        string            `json:"body"`
	Data        map[string]string `json:"data,omitempty"`
}

// NewSendPushTask constructs an Asynq task for a push delivery.
func NewSendPushTask(payload SendPushPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendPush, data), nil
}

// PushSender delivers a notification to a device. Implementations wrap the
// platform push gateways.
type PushSender interface {
	Send(ctx context.Context, payload SendPushPayload) error
}

// LogSender is the development sender: it records deliveries instead of
// calling a gateway.
type LogSender struct {
	Logger *slog.Logger
}

// Send logs the notification.
func (s *LogSender) Send(_ context.Context, payload SendPushPayload) error {
	s.Logger.Info("push delivered",
		slog.String("platform", payload.Platform),
		slog.String("title", payload.Title),
		slog.String("body", payload.Body))
	return nil
}

// PushJob processes TaskTypeSendPush tasks.
type PushJob struct {
	sender PushSender
	logger *slog.Logger
}

// NewPushJob constructs a push job.
func NewPushJob(sender PushSender, logger *slog.Logger) *PushJob {
	return &PushJob{sender: sender, logger: logger}
}

// Handle delivers one notification. Malformed payloads are dropped rather
// than retried.
func (j *PushJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload SendPushPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		j.logger.Error("push payload", slog.Any("error", err))
		return asynq.SkipRetry
	}
	if err := j.sender.Send(ctx, payload); err != nil {
		j.logger.Warn("push send", slog.Any("error", err), slog.String("platform", payload.Platform))
		return err
	}
	return nil
}

// DigestStats are the figures in the end-of-day digest.
type DigestStats struct {
	Day             string  `json:"day"`
	SalesCompleted  int     `json:"sales_completed"`
	TotalRevenue    float64 `json:"total_revenue"`
	TotalCollected  float64 `json:"total_collected"`
	DeliveriesDone  int     `json:"deliveries_done"`
	DeliveriesSkips int     `json:"deliveries_skipped"`
}

// DigestSource supplies the day's figures for the report digest.
type DigestSource interface {
	DailyDigest(ctx context.Context, day time.Time) (*DigestStats, error)
}

// NewDailyDigestTask constructs the scheduled digest task.
func NewDailyDigestTask() *asynq.Task {
	return asynq.NewTask(TaskTypeDailyDigest, nil)
}

// DigestJob processes TaskTypeDailyDigest tasks.
type DigestJob struct {
	source DigestSource
	logger *slog.Logger
}

// NewDigestJob constructs a digest job.
func NewDigestJob(source DigestSource, logger *slog.Logger) *DigestJob {
	return &DigestJob{source: source, logger: logger}
}

// Handle computes and logs the previous day's digest.
func (j *DigestJob) Handle(ctx context.Context, _ *asynq.Task) error {
	day := time.Now().UTC().AddDate(0, 0, -1)
	stats, err := j.source.DailyDigest(ctx, day)
	if err != nil {
		return err
	}
	j.logger.Info("daily digest",
		slog.String("day", stats.Day),
		slog.Int("sales_completed", stats.SalesCompleted),
		slog.Float64("total_revenue", stats.TotalRevenue),
		slog.Float64("total_collected", stats.TotalCollected),
		slog.Int("deliveries_done", stats.DeliveriesDone),
		slog.Int("deliveries_skipped", stats.DeliveriesSkips))
	return nil
}
