package customers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/reparto-app/reparto/internal/platform/httpx"
	"github.com/reparto-app/reparto/internal/shared"
)

// Handler manages customer endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers customer routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{customerID}", h.show)
	r.Patch("/{customerID}", h.update)
	r.Delete("/{customerID}", h.remove)
	r.Post("/{customerID}/token/rotate", h.rotateToken)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	limit, offset, page := shared.ParsePagination(r)
	req := ListCustomersRequest{
		Search: r.URL.Query().Get("search"),
		Limit:  limit,
		Offset: offset,
	}

	customers, total, err := h.service.ListCustomers(r.Context(), req)
	if err != nil {
		h.logger.Error("list customers", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]any{
		"customers":  customers,
		"pagination": shared.NewPagination(page, limit, total),
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateCustomerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}

	customer, err := h.service.CreateCustomer(r.Context(), req)
	if err != nil {
		h.logger.Error("create customer", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, customer)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := customerID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid customer id")
		return
	}

	customer, err := h.service.GetCustomer(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, customer)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := customerID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid customer id")
		return
	}

	var req UpdateCustomerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}

	customer, err := h.service.UpdateCustomer(r.Context(), id, req)
	if err != nil {
		h.logger.Error("update customer", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, customer)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := customerID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid customer id")
		return
	}

	if err := h.service.DeleteCustomer(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) rotateToken(w http.ResponseWriter, r *http.Request) {
	id, err := customerID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid customer id")
		return
	}

	customer, err := h.service.RotateToken(r.Context(), id)
	if err != nil {
		h.logger.Error("rotate token", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"access_token": customer.AccessToken})
}

func customerID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "customerID"), 10, 64)
}
