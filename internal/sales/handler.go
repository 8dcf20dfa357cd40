package sales

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/reparto-app/reparto/internal/platform/httpx"
	"github.com/reparto-app/reparto/internal/shared"
)

// Handler manages sale endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers sale routes. The /{saleID}/route subtree is owned
// by the delivery handler and mounted next to these in the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{saleID}", h.show)
	r.Patch("/{saleID}/status", h.changeStatus)
	r.Delete("/{saleID}", h.remove)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	limit, offset, page := shared.ParsePagination(r)
	req := ListSalesRequest{Limit: limit, Offset: offset}
	if status := r.URL.Query().Get("status"); status != "" {
		st := Status(status)
		req.Status = &st
	}

	sales, total, err := h.service.ListSales(r.Context(), req)
	if err != nil {
		h.logger.Error("list sales", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]any{
		"sales":      sales,
		"pagination": shared.NewPagination(page, limit, total),
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateSaleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}

	sale, err := h.service.CreateSale(r.Context(), req)
	if err != nil {
		h.logger.Error("create sale", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sale)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := saleID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid sale id")
		return
	}

	detail, err := h.service.GetSale(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, detail)
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request) {
	id, err := saleID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid sale id")
		return
	}

	var req ChangeStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}

	sale, err := h.service.ChangeStatus(r.Context(), id, req)
	if err != nil {
		h.logger.Error("change sale status", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := saleID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid sale id")
		return
	}

	if err := h.service.DeleteSale(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func saleID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "saleID"), 10, 64)
}
