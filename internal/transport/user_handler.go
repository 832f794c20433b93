package transport

import (
	"net/http"

	"gamestore/internal/middleware"
	"gamestore/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// UpdateUserRequest is what an administrator may change on an account
type UpdateUserRequest struct {
	FirstName string   `json:"first_name" validate:"required,max=100"`
	LastName  string   `json:"last_name" validate:"required,max=100"`
	Roles     []string `json:"roles" validate:"required,min=1,dive,oneof=Admin Customer"`
}

// UserHandler handles administrative user management
type UserHandler struct {
	userService service.UserService
	logger      *zap.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userService service.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		logger:      logger,
	}
}

// RegisterRoutes registers the admin-only user routes
func (h *UserHandler) RegisterRoutes(r chi.Router, routes Routes) {
	r.Route("/api/users", func(r chi.Router) {
		r.Use(routes.Authenticated, routes.Admin)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.ListUsers(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err, "list users")
		return
	}

	profiles := make([]UserProfile, 0, len(users))
	for _, user := range users {
		profiles = append(profiles, newUserProfile(user))
	}
	middleware.RespondWithJSON(w, http.StatusOK, profiles)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	user, err := h.userService.GetUserByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "get user")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, newUserProfile(user))
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req UpdateUserRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	user, err := h.userService.UpdateUser(r.Context(), id, service.UserUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Roles:     req.Roles,
	})
	if err != nil {
		respondServiceError(w, h.logger, err, "update user")
		return
	}

	h.logger.Info("User updated", zap.String("user_id", id.String()), zap.Strings("roles", user.Roles))
	middleware.RespondWithJSON(w, http.StatusOK, newUserProfile(user))
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	if identity, ok := middleware.IdentityFrom(r.Context()); ok && identity.UserID == id {
		middleware.RespondWithError(w, http.StatusBadRequest, "administrators cannot delete their own account")
		return
	}

	if err := h.userService.DeleteUser(r.Context(), id); err != nil {
		respondServiceError(w, h.logger, err, "delete user")
		return
	}

	h.logger.Info("User deleted", zap.String("user_id", id.String()))
	w.WriteHeader(http.StatusNoContent)
}
