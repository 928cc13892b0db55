package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/bloom-bouquet/api/internal/platform/httpx"
)

const defaultTokenHeader = "X-Service-Token"

// ServiceTokenGuard restricts a route group to callers holding a shared
// static token, such as the payment gateway bridge posting normalized
// callbacks. Full gateway signature verification happens upstream; this
// guard only keeps the callback surface off the open admin network.
type ServiceTokenGuard struct {
	token  string
	header string
}

// GuardOption customises the guard.
type GuardOption func(*ServiceTokenGuard)

// WithTokenHeader overrides the header carrying the service token.
func WithTokenHeader(name string) GuardOption {
	return func(g *ServiceTokenGuard) {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			g.header = trimmed
		}
	}
}

// NewServiceTokenGuard constructs a guard for the given shared token. An
// empty token disables the guard, for local development against emulators.
func NewServiceTokenGuard(token string, opts ...GuardOption) *ServiceTokenGuard {
	guard := &ServiceTokenGuard{
		token:  strings.TrimSpace(token),
		header: defaultTokenHeader,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(guard)
		}
	}
	return guard
}

// Require rejects requests whose token header does not match the shared token.
func (g *ServiceTokenGuard) Require() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if g.token == "" {
				next.ServeHTTP(w, r)
				return
			}
			presented := strings.TrimSpace(r.Header.Get(g.header))
			if presented == "" {
				httpx.WriteError(r.Context(), w, httpx.NewError("service_token_missing", "service token header missing", http.StatusUnauthorized))
				return
			}
			if subtle.ConstantTimeCompare([]byte(presented), []byte(g.token)) != 1 {
				httpx.WriteError(r.Context(), w, httpx.NewError("service_token_invalid", "service token rejected", http.StatusUnauthorized))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
