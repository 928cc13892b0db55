package handlers

import (
	"net/http"
	"strings"

	domain "github.com/bloom-bouquet/api/internal/domain"
	"github.com/bloom-bouquet/api/internal/platform/requestctx"
)

// Identity headers set by the authenticating gateway in front of this service.
// Admin identity wins when both are present.
const (
	adminIdentityHeader    = "X-Admin-ID"
	customerIdentityHeader = "X-Customer-ID"
)

// ActorMiddleware stashes the upstream-authenticated identity on the request
// context so the services layer can attribute transitions without reading
// authentication state itself.
func ActorMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if adminID := strings.TrimSpace(r.Header.Get(adminIdentityHeader)); adminID != "" {
				ctx = requestctx.WithActor(ctx, domain.Actor{Kind: domain.ActorKindAdmin, ID: adminID})
			} else if customerID := strings.TrimSpace(r.Header.Get(customerIdentityHeader)); customerID != "" {
				ctx = requestctx.WithActor(ctx, domain.Actor{Kind: domain.ActorKindCustomer, ID: customerID})
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
