package auth

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/compasshq/compass/internal/shared"
)

// PrincipalMiddleware resolves the session's user into an authorization
// principal and stores it in the request context. Requests without a valid
// session continue as anonymous; individual handlers decide whether that is
// acceptable.
func PrincipalMiddleware(service *Service, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := shared.SessionFromContext(r.Context())
			if sess == nil || sess.User() == "" {
				next.ServeHTTP(w, r)
				return
			}
			userID, err := strconv.ParseInt(sess.User(), 10, 64)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			user, err := service.UserByID(r.Context(), userID)
			if err != nil || !user.IsActive {
				if err != nil {
					logger.Warn("resolve principal", slog.Int64("user_id", userID), slog.Any("error", err))
				}
				next.ServeHTTP(w, r)
				return
			}
			ctx := shared.ContextWithPrincipal(r.Context(), user.Principal())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
