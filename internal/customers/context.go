package customers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/reparto-app/reparto/internal/platform/httpx"
)

type customerContextKey struct{}

// ContextWithCustomer stores the authenticated customer in context.
func ContextWithCustomer(ctx context.Context, c *Customer) context.Context {
	return context.WithValue(ctx, customerContextKey{}, c)
}

// FromContext extracts the authenticated customer from context.
func FromContext(ctx context.Context) *Customer {
	c, _ := ctx.Value(customerContextKey{}).(*Customer)
	return c
}

// TokenAuth resolves the {token} path parameter into a customer and stores
// it in the request context. Unknown tokens get a 401 with the
// invalid_token code.
func TokenAuth(logger *slog.Logger, service *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := chi.URLParam(r, "token")
			customer, err := service.ResolveToken(r.Context(), token)
			if err != nil {
				logger.Debug("token rejected", slog.String("path", r.URL.Path))
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithCustomer(r.Context(), customer)))
		})
	}
}
