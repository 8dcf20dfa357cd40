package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// heartbeatInterval keeps intermediaries from closing an idle stream.
const heartbeatInterval = 25 * time.Second

// SnapshotFunc supplies the current sale list for the opening snapshot.
type SnapshotFunc func(ctx context.Context) ([]SaleSummary, error)

// Handler serves the server-sent-events endpoint.
type Handler struct {
	logger   *slog.Logger
	broker   *Broker
	snapshot SnapshotFunc
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, broker *Broker, snapshot SnapshotFunc) *Handler {
	return &Handler{logger: logger, broker: broker, snapshot: snapshot}
}

// MountRoutes registers the stream routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/sales", h.stream)
}

// stream opens an SSE connection: one snapshot event up front, then live
// sale events until the client goes away.
func (h *Handler) stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()

	events, cancel, err := h.broker.Subscribe(ctx)
	if err != nil {
		h.logger.Error("stream subscribe", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	snapshot, err := h.snapshot(ctx)
	if err != nil {
		h.logger.Error("stream snapshot", slog.Any("error", err))
		return
	}
	if err := writeSSE(w, "snapshot", snapshot); err != nil {
		return
	}
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case evt, ok := <-events:
			if !ok {
				return
			}
			if err := writeSSE(w, string(evt.Type), evt); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
