package notify

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/reparto-app/reparto/internal/customers"
	"github.com/reparto-app/reparto/internal/platform/httpx"
)

// Handler exposes token-scoped device registration.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountCustomerRoutes registers device endpoints. Mounted under
// /customer/{token} behind the token middleware.
func (h *Handler) MountCustomerRoutes(r chi.Router) {
	r.Get("/devices", h.list)
	r.Post("/devices", h.register)
	r.Delete("/devices/{deviceID}", h.unregister)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	customer := customers.FromContext(r.Context())
	if customer == nil {
		httpx.RespondError(w, httpx.ErrInvalidToken)
		return
	}

	devices, err := h.service.ListDevices(r.Context(), customer.ID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"devices": devices})
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	customer := customers.FromContext(r.Context())
	if customer == nil {
		httpx.RespondError(w, httpx.ErrInvalidToken)
		return
	}

	var req RegisterDeviceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}

	device, err := h.service.RegisterDevice(r.Context(), customer.ID, req)
	if err != nil {
		h.logger.Error("register device", slog.Any("error", err), slog.Int64("customer_id", customer.ID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, device)
}

func (h *Handler) unregister(w http.ResponseWriter, r *http.Request) {
	customer := customers.FromContext(r.Context())
	if customer == nil {
		httpx.RespondError(w, httpx.ErrInvalidToken)
		return
	}

	deviceID, err := strconv.ParseInt(chi.URLParam(r, "deviceID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid device id")
		return
	}

	if err := h.service.UnregisterDevice(r.Context(), customer.ID, deviceID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
