package transport

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"gamestore/internal/domain"
	"gamestore/internal/middleware"
	"gamestore/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// RegisterRequest represents the registration request payload
type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest represents the token refresh request payload
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// LoginResponse is the body of a JWT login
type LoginResponse struct {
	*service.TokenPair
	User UserProfile `json:"user"`
}

// UserProfile represents user profile data
type UserProfile struct {
	ID        string   `json:"id"`
	Email     string   `json:"email"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Roles     []string `json:"roles"`
}

func newUserProfile(user *domain.User) UserProfile {
	return UserProfile{
		ID:        user.ID.String(),
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Roles:     user.Roles,
	}
}

// SessionCookie describes the storefront session cookie
type SessionCookie struct {
	Name   string
	TTL    time.Duration
	Secure bool
}

// AuthHandler serves both login schemes: session cookies for the storefront
// and bearer tokens for the admin SPA
type AuthHandler struct {
	userService    service.UserService
	sessionService service.SessionService
	cookie         SessionCookie
	logger         *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(userService service.UserService, sessionService service.SessionService, cookie SessionCookie, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		userService:    userService,
		sessionService: sessionService,
		cookie:         cookie,
		logger:         logger,
	}
}

// RegisterRoutes registers all auth routes
func (h *AuthHandler) RegisterRoutes(r chi.Router, routes Routes) {
	r.Route("/api/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(routes.RateLimit)
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/loginJwt", h.LoginJWT)
			r.Post("/refresh", h.Refresh)
			r.Post("/logout", h.Logout)
		})

		r.With(routes.Authenticated).Get("/me", h.Me)
	})
}

// Register handles customer registration
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Registration validation failed", zap.Error(err))
		middleware.RespondWithDecodeError(w, err)
		return
	}

	user, err := h.userService.Register(r.Context(), req.Email, req.Password, req.FirstName, req.LastName)
	if err != nil {
		respondServiceError(w, h.logger, err, "register user")
		return
	}

	h.logger.Info("User registered successfully", zap.String("user_id", user.ID.String()))
	middleware.RespondWithJSON(w, http.StatusCreated, newUserProfile(user))
}

// Login authenticates a storefront customer and sets the session cookie
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Login validation failed", zap.Error(err))
		middleware.RespondWithDecodeError(w, err)
		return
	}

	user, err := h.userService.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Debug("Login failed", zap.Error(err))
		respondServiceError(w, h.logger, err, "login")
		return
	}

	session, err := h.sessionService.Start(r.Context(), user)
	if err != nil {
		respondServiceError(w, h.logger, err, "login")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    session.ID,
		Path:     "/",
		Expires:  session.ExpiresAt,
		MaxAge:   int(h.cookie.TTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	h.logger.Info("User logged in", zap.String("user_id", user.ID.String()), zap.String("scheme", middleware.SchemeCookie))
	middleware.RespondWithJSON(w, http.StatusOK, newUserProfile(user))
}

// LoginJWT authenticates an admin SPA user and returns a token pair
func (h *AuthHandler) LoginJWT(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Login validation failed", zap.Error(err))
		middleware.RespondWithDecodeError(w, err)
		return
	}

	pair, user, err := h.userService.LoginJWT(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Debug("Login failed", zap.Error(err))
		respondServiceError(w, h.logger, err, "login")
		return
	}

	h.logger.Info("User logged in", zap.String("user_id", user.ID.String()), zap.String("scheme", middleware.SchemeBearer))
	middleware.RespondWithJSON(w, http.StatusOK, LoginResponse{TokenPair: pair, User: newUserProfile(user)})
}

// Refresh rotates a refresh token into a new pair
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Refresh token validation failed", zap.Error(err))
		middleware.RespondWithDecodeError(w, err)
		return
	}

	pair, err := h.userService.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.logger.Debug("Token refresh failed", zap.Error(err))
		respondServiceError(w, h.logger, err, "refresh token")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, pair)
}

// Logout ends the session named by the cookie and revokes the refresh token
// in the body. Both are optional.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Debug("Logout decode failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if cookie, err := r.Cookie(h.cookie.Name); err == nil && cookie.Value != "" {
		if err := h.sessionService.End(r.Context(), cookie.Value); err != nil {
			respondServiceError(w, h.logger, err, "logout")
			return
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	if req.RefreshToken != "" {
		if err := h.userService.Logout(r.Context(), req.RefreshToken); err != nil {
			respondServiceError(w, h.logger, err, "logout")
			return
		}
	}

	h.logger.Info("User logged out successfully")
	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "logged out successfully"})
}

// Me returns the profile of the caller, whichever scheme authenticated it
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := currentIdentity(w, r)
	if !ok {
		return
	}

	user, err := h.userService.GetUserByID(r.Context(), identity.UserID)
	if err != nil {
		respondServiceError(w, h.logger, err, "get user profile")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, newUserProfile(user))
}
