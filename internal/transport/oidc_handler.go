package transport

import (
	"errors"
	"net/http"
	"net/url"

	"gamestore/internal/middleware"
	"gamestore/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// OAuthErrorResponse is the RFC 6749 error body
type OAuthErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// OIDCHandler exposes the authorization code flow for the storefront client
type OIDCHandler struct {
	authorizationService service.AuthorizationService
	logger               *zap.Logger
}

// NewOIDCHandler creates a new OIDCHandler
func NewOIDCHandler(authorizationService service.AuthorizationService, logger *zap.Logger) *OIDCHandler {
	return &OIDCHandler{
		authorizationService: authorizationService,
		logger:               logger,
	}
}

func (h *OIDCHandler) RegisterRoutes(r chi.Router, routes Routes) {
	r.Get("/.well-known/openid-configuration", h.Discovery)

	r.Route("/connect", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(routes.Session)
			r.Get("/authorize", h.Authorize)
			r.Post("/authorize", h.Authorize)
		})
		r.Post("/token", h.Token)
	})
}

// Authorize accepts the request as a query or a form post and redirects back
// to the client with a code or a redirectable error
func (h *OIDCHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	identity, ok := currentIdentity(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		h.respondOAuthError(w, &service.OAuthError{Code: service.OAuthInvalidRequest, Description: "malformed request"})
		return
	}

	req := service.AuthorizeRequest{
		ClientID:            r.Form.Get("client_id"),
		RedirectURI:         r.Form.Get("redirect_uri"),
		ResponseType:        r.Form.Get("response_type"),
		Scope:               r.Form.Get("scope"),
		State:               r.Form.Get("state"),
		Nonce:               r.Form.Get("nonce"),
		CodeChallenge:       r.Form.Get("code_challenge"),
		CodeChallengeMethod: r.Form.Get("code_challenge_method"),
	}

	location, err := h.authorizationService.Authorize(r.Context(), identity.UserID, req)
	if err != nil {
		var oauthErr *service.OAuthError
		if errors.As(err, &oauthErr) && oauthErr.Redirectable {
			location = service.RedirectWith(req.RedirectURI, url.Values{
				"error":             {oauthErr.Code},
				"error_description": {oauthErr.Description},
			}, req.State)
			http.Redirect(w, r, location, http.StatusFound)
			return
		}
		h.respondOAuthError(w, err)
		return
	}

	h.logger.Info("Authorization code issued",
		zap.String("user_id", identity.UserID.String()),
		zap.String("client_id", req.ClientID),
	)
	http.Redirect(w, r, location, http.StatusFound)
}

// Token redeems an authorization code. The body is form encoded.
func (h *OIDCHandler) Token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.respondOAuthError(w, &service.OAuthError{Code: service.OAuthInvalidRequest, Description: "malformed form body"})
		return
	}

	resp, err := h.authorizationService.Exchange(r.Context(), service.TokenRequest{
		GrantType:    r.PostForm.Get("grant_type"),
		Code:         r.PostForm.Get("code"),
		RedirectURI:  r.PostForm.Get("redirect_uri"),
		ClientID:     r.PostForm.Get("client_id"),
		CodeVerifier: r.PostForm.Get("code_verifier"),
	})
	if err != nil {
		h.respondOAuthError(w, err)
		return
	}

	middleware.RespondRaw(w, http.StatusOK, resp)
}

func (h *OIDCHandler) Discovery(w http.ResponseWriter, r *http.Request) {
	middleware.RespondRaw(w, http.StatusOK, h.authorizationService.Discovery())
}

// respondOAuthError writes a 400 OAuth error body. Anything that is not an
// OAuthError is a server_error.
func (h *OIDCHandler) respondOAuthError(w http.ResponseWriter, err error) {
	var oauthErr *service.OAuthError
	if !errors.As(err, &oauthErr) {
		h.logger.Error("OIDC request failed", zap.Error(err))
		middleware.RespondRaw(w, http.StatusInternalServerError, OAuthErrorResponse{
			Error:            service.OAuthServerError,
			ErrorDescription: "internal server error",
		})
		return
	}

	h.logger.Debug("OIDC request rejected", zap.String("error", oauthErr.Code), zap.String("description", oauthErr.Description))
	middleware.RespondRaw(w, http.StatusBadRequest, OAuthErrorResponse{
		Error:            oauthErr.Code,
		ErrorDescription: oauthErr.Description,
	})
}
