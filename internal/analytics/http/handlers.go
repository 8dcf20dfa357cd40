// Package analytichttp exposes the dashboard endpoints over HTTP.
package analytichttp

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/reparto-app/reparto/internal/analytics"
	"github.com/reparto-app/reparto/internal/analytics/export"
	"github.com/reparto-app/reparto/internal/platform/httpx"
)

// Handler serves the report and its CSV export.
type Handler struct {
	logger  *slog.Logger
	service *analytics.Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *analytics.Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers analytics routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.report)
	r.Get("/export.csv", h.exportCSV)
}

func (h *Handler) report(w http.ResponseWriter, r *http.Request) {
	rng, err := parseRange(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	report, err := h.service.Report(r.Context(), rng)
	if err != nil {
		h.logger.Error("analytics report", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	rng, err := parseRange(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	report, err := h.service.Report(r.Context(), rng)
	if err != nil {
		h.logger.Error("analytics export", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="sales-report.csv"`)
	if err := export.WriteReportCSV(w, report); err != nil {
		h.logger.Error("write csv", slog.Any("error", err))
	}
}

func parseRange(r *http.Request) (analytics.DateRange, error) {
	var rng analytics.DateRange
	if raw := r.URL.Query().Get("from"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return rng, fmt.Errorf("%w: invalid from date", httpx.ErrValidation)
		}
		rng.From = &t
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return rng, fmt.Errorf("%w: invalid to date", httpx.ErrValidation)
		}
		rng.To = &t
	}
	return rng, nil
}
