package transport

import (
	"errors"
	"net/http"

	"gamestore/internal/middleware"
	"gamestore/internal/repository"
	"gamestore/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Routes are the route-level middlewares handlers attach to their groups
type Routes struct {
	// Authenticated accepts a session cookie or a bearer token
	Authenticated func(http.Handler) http.Handler
	// Admin must run after Authenticated
	Admin func(http.Handler) http.Handler
	// Session accepts the storefront session cookie only
	Session   func(http.Handler) http.Handler
	RateLimit func(http.Handler) http.Handler
}

var (
	notFoundErrors = []error{
		repository.ErrProductNotFound,
		repository.ErrImageNotFound,
		repository.ErrCategoryNotFound,
		repository.ErrReviewNotFound,
		repository.ErrUserNotFound,
	}
	conflictErrors = []error{
		repository.ErrCategoryAlreadyExists,
		repository.ErrUserAlreadyExists,
		service.ErrAlreadyReviewed,
	}
	badRequestErrors = []error{
		service.ErrInvalidPrice,
		service.ErrInvalidRating,
		service.ErrInvalidRole,
	}
)

// respondServiceError maps a service error to its status. Unknown errors are
// logged and answered with a generic 500 naming the failed action.
func respondServiceError(w http.ResponseWriter, logger *zap.Logger, err error, action string) {
	switch {
	case isAny(err, notFoundErrors):
		middleware.RespondWithError(w, http.StatusNotFound, err.Error())
	case isAny(err, conflictErrors):
		middleware.RespondWithError(w, http.StatusConflict, err.Error())
	case isAny(err, badRequestErrors):
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		middleware.RespondWithError(w, http.StatusUnauthorized, "invalid email or password")
	case errors.Is(err, service.ErrTokenExpired):
		middleware.RespondWithError(w, http.StatusUnauthorized, "token expired")
	case errors.Is(err, service.ErrInvalidToken):
		middleware.RespondWithError(w, http.StatusUnauthorized, "invalid token")
	default:
		logger.Error("Request failed", zap.String("action", action), zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to "+action)
	}
}

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// uuidParam reads a UUID path parameter, answering 400 when it is malformed
func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// currentIdentity returns the authenticated caller or answers 401
func currentIdentity(w http.ResponseWriter, r *http.Request) (*middleware.Identity, bool) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "authentication required")
		return nil, false
	}
	return identity, true
}
