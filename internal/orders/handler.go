package orders

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"golang.org/x/text/language"

	"github.com/reparto-app/reparto/internal/customers"
	"github.com/reparto-app/reparto/internal/platform/httpx"
)

// Handler exposes the token-scoped order editor.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountCustomerRoutes registers the order endpoints. Mounted under
// /customer/{token} behind the token middleware. The bare /order routes
// are a convenience alias for the most recent sale; /sales/{saleID}/order
// addresses one round explicitly.
func (h *Handler) MountCustomerRoutes(r chi.Router) {
	r.Get("/order", h.show)
	r.Put("/order", h.update)
	r.Get("/sales/{saleID}/order", h.show)
	r.Put("/sales/{saleID}/order", h.update)
}

// saleIDParam reads the optional {saleID} path parameter. Zero means the
// route did not address a specific sale.
func saleIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "saleID")
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid sale id", httpx.ErrValidation)
	}
	return id, nil
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	customer := customers.FromContext(r.Context())
	if customer == nil {
		httpx.RespondError(w, httpx.ErrInvalidToken)
		return
	}
	lang := MatchLanguage(r.Header.Get("Accept-Language"))
	saleID, err := saleIDParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	view, err := h.service.GetOrder(r.Context(), customer, saleID, lang)
	if err != nil {
		h.respondError(w, err, lang)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	customer := customers.FromContext(r.Context())
	if customer == nil {
		httpx.RespondError(w, httpx.ErrInvalidToken)
		return
	}
	lang := MatchLanguage(r.Header.Get("Accept-Language"))
	saleID, err := saleIDParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	var req SubmitOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}

	result, err := h.service.SubmitOrder(r.Context(), customer, saleID, req, lang)
	if err != nil {
		h.logger.Error("submit order", slog.Any("error", err), slog.Int64("customer_id", customer.ID))
		h.respondError(w, err, lang)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

// respondError attaches the message code for the order-specific failures
// the client renders, deferring to the shared mapping otherwise.
func (h *Handler) respondError(w http.ResponseWriter, err error, lang language.Tag) {
	switch {
	case errors.Is(err, ErrNoActiveSale), errors.Is(err, ErrSaleNotFound):
		httpx.ProblemCode(w, http.StatusNotFound, "Not Found",
			Message(CodeSaleNotFound, lang), CodeSaleNotFound)
	case errors.Is(err, ErrOrdersLocked):
		httpx.ProblemCode(w, http.StatusConflict, "Invalid State",
			Message(CodeSaleClosedNoModify, lang), CodeSaleClosedNoModify)
	case errors.Is(err, ErrProductNotFound):
		httpx.ProblemCode(w, http.StatusNotFound, "Not Found",
			Message(CodeProductNotFound, lang), CodeProductNotFound)
	default:
		httpx.RespondError(w, err)
	}
}
