package auth

import (
	"errors"
	"net/http"

	"github.com/gatehouse-io/gatehouse/internal/identity"
	"github.com/gatehouse-io/gatehouse/internal/platform/httpx"
	"github.com/gatehouse-io/gatehouse/internal/shared"
)

// RequireUser authenticates the request via its bearer token and stores the
// resolved user in the request context. Requests without a valid token never
// reach the wrapped handler.
func RequireUser(resolver *Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := resolver.Resolve(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				// An unissued token is an authentication failure here, not a
				// missing resource.
				if errors.Is(err, shared.ErrNotFound) {
					err = shared.ErrUnauthorized
				}
				httpx.RespondError(w, err)
				return
			}
			ctx := identity.ContextWithUser(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
