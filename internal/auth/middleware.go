package auth

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/filehaven/filehaven/internal/authz"
	"github.com/filehaven/filehaven/internal/shared"
	"github.com/filehaven/filehaven/internal/users"
)

// PrincipalMiddleware resolves the session user into an authz.Principal and
// stores it in the request context. Requests without a valid session pass
// through without a principal; role gates downstream reject those.
func PrincipalMiddleware(service *Service, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := shared.SessionFromContext(r.Context())
			if sess == nil || sess.User() == "" {
				next.ServeHTTP(w, r)
				return
			}
			id, err := strconv.ParseInt(sess.User(), 10, 64)
			if err != nil {
				if logger != nil {
					logger.Warn("session carries invalid user id", slog.String("value", sess.User()))
				}
				next.ServeHTTP(w, r)
				return
			}
			user, err := service.LookupUser(r.Context(), id)
			if err != nil || !user.IsActive {
				next.ServeHTTP(w, r)
				return
			}
			ctx := authz.ContextWithPrincipal(r.Context(), users.Principal(user))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
