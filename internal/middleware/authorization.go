package middleware

import (
	"net/http"

	"gamestore/internal/domain"

	"go.uber.org/zap"
)

// RequireAdmin middleware ensures the user has the Admin role
func RequireAdmin(logger *zap.Logger) func(http.Handler) http.Handler {
	return RequireRole(logger, domain.RoleAdmin)
}

// RequireRole middleware ensures the user holds at least one of the allowed roles
func RequireRole(logger *zap.Logger, allowedRoles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFrom(r.Context())
			if !ok {
				logger.Warn("Identity not found in context", zap.String("path", r.URL.Path))
				RespondWithError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			for _, role := range allowedRoles {
				if identity.HasRole(role) {
					next.ServeHTTP(w, r)
					return
				}
			}

			logger.Warn("User role not authorized",
				zap.String("user_id", identity.UserID.String()),
				zap.Strings("roles", identity.Roles),
				zap.Strings("allowed_roles", allowedRoles),
			)
			RespondWithError(w, http.StatusForbidden, "insufficient permissions")
		})
	}
}
