package middleware

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	"gamestore/internal/auth"
	"gamestore/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	SchemeCookie = "cookie"
	SchemeBearer = "bearer"
)

// ErrNoCredentials means the request carries nothing for this scheme
var ErrNoCredentials = errors.New("no credentials")

type contextKey string

const identityKey contextKey = "identity"

// Identity is the authenticated caller, whichever scheme proved it
type Identity struct {
	UserID    uuid.UUID
	Email     string
	Roles     []string
	Scheme    string
	SessionID string
}

// HasRole reports whether the caller holds role
func (i *Identity) HasRole(role string) bool {
	return slices.Contains(i.Roles, role)
}

// Authenticator proves an identity from one kind of credential
type Authenticator interface {
	Authenticate(r *http.Request) (*Identity, error)
}

// TokenValidator parses access tokens
type TokenValidator interface {
	ValidateToken(tokenString string) (*auth.Claims, error)
}

// SessionResolver looks up live storefront sessions
type SessionResolver interface {
	Resolve(ctx context.Context, id string) (*domain.Session, error)
}

// BearerAuthenticator accepts "Authorization: Bearer <jwt>" as used by the admin SPA
type BearerAuthenticator struct {
	Tokens TokenValidator
}

func (a BearerAuthenticator) Authenticate(r *http.Request) (*Identity, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, ErrNoCredentials
	}

	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return nil, errors.New("invalid authorization header format")
	}

	claims, err := a.Tokens.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	return &Identity{UserID: claims.UserID, Email: claims.Email, Roles: claims.Roles, Scheme: SchemeBearer}, nil
}

// CookieAuthenticator accepts the storefront session cookie
type CookieAuthenticator struct {
	CookieName string
	Sessions   SessionResolver
}

func (a CookieAuthenticator) Authenticate(r *http.Request) (*Identity, error) {
	cookie, err := r.Cookie(a.CookieName)
	if err != nil || cookie.Value == "" {
		return nil, ErrNoCredentials
	}

	session, err := a.Sessions.Resolve(r.Context(), cookie.Value)
	if err != nil {
		return nil, err
	}
	return &Identity{
		UserID:    session.UserID,
		Email:     session.Email,
		Roles:     session.Roles,
		Scheme:    SchemeCookie,
		SessionID: session.ID,
	}, nil
}

// AuthMiddleware requires an identity from one of the authenticators, tried in order
func AuthMiddleware(logger *zap.Logger, authenticators ...Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := authenticate(r, authenticators)
			if err != nil {
				logger.Debug("Authentication failed", zap.Error(err), zap.String("path", r.URL.Path))
				if errors.Is(err, auth.ErrTokenExpired) {
					RespondWithError(w, http.StatusUnauthorized, "token expired")
					return
				}
				RespondWithError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			logger.Debug("User authenticated",
				zap.String("user_id", identity.UserID.String()),
				zap.String("scheme", identity.Scheme),
			)

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// OptionalAuth attaches an identity when one is present and never rejects
func OptionalAuth(authenticators ...Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if identity, err := authenticate(r, authenticators); err == nil {
				r = r.WithContext(WithIdentity(r.Context(), identity))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func authenticate(r *http.Request, authenticators []Authenticator) (*Identity, error) {
	lastErr := ErrNoCredentials
	for _, a := range authenticators {
		identity, err := a.Authenticate(r)
		if err == nil {
			return identity, nil
		}
		if !errors.Is(err, ErrNoCredentials) {
			lastErr = err
		}
	}
	return nil, lastErr
}

// WithIdentity stores the caller in ctx
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFrom extracts the caller from ctx
func IdentityFrom(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityKey).(*Identity)
	return identity, ok
}
