package delivery

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/reparto-app/reparto/internal/customers"
	"github.com/reparto-app/reparto/internal/platform/httpx"
)

// Handler exposes route management and the progress engine.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountAdminRoutes registers the admin route endpoints. Mounted under
// /api/sales/{saleID}/route.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Get("/", h.show)
	r.Put("/", h.save)
	r.Post("/move", h.move)
	r.Post("/{customerID}/next", h.selectNext)
	r.Post("/{customerID}/complete", h.complete)
	r.Post("/{customerID}/skip", h.skip)
	r.Post("/{customerID}/reset", h.reset)
}

// MountCustomerRoutes registers the token-scoped delivery view. Mounted
// under /customer/{token} behind the token middleware. The bare route
// targets the current sale; /sales/{saleID}/delivery-status addresses one
// round explicitly.
func (h *Handler) MountCustomerRoutes(r chi.Router) {
	r.Get("/delivery-status", h.customerStatus)
	r.Get("/sales/{saleID}/delivery-status", h.customerStatus)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := saleID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid sale id")
		return
	}

	route, err := h.service.GetRoute(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, route)
}

func (h *Handler) save(w http.ResponseWriter, r *http.Request) {
	id, err := saleID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid sale id")
		return
	}

	var req SaveRouteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}

	route, err := h.service.SaveRoute(r.Context(), id, req)
	if err != nil {
		h.logger.Error("save route", slog.Any("error", err), slog.Int64("sale_id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, route)
}

func (h *Handler) move(w http.ResponseWriter, r *http.Request) {
	id, err := saleID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid sale id")
		return
	}

	var req MoveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}

	route, err := h.service.MoveEntry(r.Context(), id, req)
	if err != nil {
		h.logger.Error("move route entry", slog.Any("error", err), slog.Int64("sale_id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, route)
}

func (h *Handler) selectNext(w http.ResponseWriter, r *http.Request) {
	saleID, customerID, ok := h.routeIDs(w, r)
	if !ok {
		return
	}

	route, err := h.service.SelectNext(r.Context(), saleID, customerID)
	if err != nil {
		h.logger.Error("select next delivery", slog.Any("error", err), slog.Int64("sale_id", saleID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, route)
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	saleID, customerID, ok := h.routeIDs(w, r)
	if !ok {
		return
	}

	// Body is optional: an empty request collects the frozen amount.
	var req CompleteRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
			return
		}
	}

	route, err := h.service.Complete(r.Context(), saleID, customerID, req)
	if err != nil {
		h.logger.Error("complete delivery", slog.Any("error", err), slog.Int64("sale_id", saleID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, route)
}

func (h *Handler) skip(w http.ResponseWriter, r *http.Request) {
	saleID, customerID, ok := h.routeIDs(w, r)
	if !ok {
		return
	}

	var req SkipRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}

	route, err := h.service.Skip(r.Context(), saleID, customerID, req)
	if err != nil {
		h.logger.Error("skip delivery", slog.Any("error", err), slog.Int64("sale_id", saleID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, route)
}

func (h *Handler) reset(w http.ResponseWriter, r *http.Request) {
	saleID, customerID, ok := h.routeIDs(w, r)
	if !ok {
		return
	}

	route, err := h.service.Reset(r.Context(), saleID, customerID)
	if err != nil {
		h.logger.Error("reset delivery", slog.Any("error", err), slog.Int64("sale_id", saleID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, route)
}

func (h *Handler) customerStatus(w http.ResponseWriter, r *http.Request) {
	customer := customers.FromContext(r.Context())
	if customer == nil {
		httpx.RespondError(w, httpx.ErrInvalidToken)
		return
	}

	var id int64
	if raw := chi.URLParam(r, "saleID"); raw != "" {
		parsed, err := saleID(r)
		if err != nil || parsed <= 0 {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid sale id")
			return
		}
		id = parsed
	}

	status, err := h.service.CustomerStatus(r.Context(), customer.ID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, status)
}

func (h *Handler) routeIDs(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	saleID, err := saleID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid sale id")
		return 0, 0, false
	}
	customerID, err := strconv.ParseInt(chi.URLParam(r, "customerID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid customer id")
		return 0, 0, false
	}
	return saleID, customerID, true
}

func saleID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "saleID"), 10, 64)
}
