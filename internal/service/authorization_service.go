package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"gamestore/internal/auth"
	"gamestore/internal/config"
	"gamestore/internal/domain"
	"gamestore/internal/repository"

	"github.com/google/uuid"
)

// OAuth error codes from RFC 6749
const (
	OAuthInvalidRequest          = "invalid_request"
	OAuthInvalidClient           = "invalid_client"
	OAuthInvalidGrant            = "invalid_grant"
	OAuthUnsupportedGrantType    = "unsupported_grant_type"
	OAuthUnsupportedResponseType = "unsupported_response_type"
	OAuthInvalidScope            = "invalid_scope"
	OAuthServerError             = "server_error"
)

const (
	pkceMethodS256 = "S256"
	scopeOpenID    = "openid"
)

// OAuthError is an error reported in the OAuth wire format. Redirectable errors
// go back to the client's redirect_uri; the rest are shown to the user agent.
type OAuthError struct {
	Code         string
	Description  string
	Redirectable bool
}

func (e *OAuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// AuthorizeRequest is the query of /connect/authorize
type AuthorizeRequest struct {
	ClientID            string
	RedirectURI         string
	ResponseType        string
	Scope               string
	State               string
	Nonce               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// TokenRequest is the form posted to /connect/token
type TokenRequest struct {
	GrantType    string
	Code         string
	RedirectURI  string
	ClientID     string
	CodeVerifier string
}

// TokenResponse is the successful /connect/token body
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	IDToken     string `json:"id_token,omitempty"`
	Scope       string `json:"scope,omitempty"`
}

// Discovery is the OpenID provider metadata document
type Discovery struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	SubjectTypesSupported             []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported  []string `json:"id_token_signing_alg_values_supported"`
	ScopesSupported                   []string `json:"scopes_supported"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
}

// AuthorizationService implements the authorization code flow with PKCE for
// the storefront client
type AuthorizationService interface {
	Authorize(ctx context.Context, userID uuid.UUID, req AuthorizeRequest) (string, error)
	Exchange(ctx context.Context, req TokenRequest) (*TokenResponse, error)
	Discovery() *Discovery
}

type authorizationService struct {
	codes    repository.AuthorizationCodeRepository
	userRepo repository.UserRepository
	tokens   *auth.TokenIssuer
	oidc     config.OIDCConfig
	now      func() time.Time
}

// NewAuthorizationService creates a new instance of AuthorizationService
func NewAuthorizationService(
	codes repository.AuthorizationCodeRepository,
	userRepo repository.UserRepository,
	tokens *auth.TokenIssuer,
	oidc config.OIDCConfig,
) AuthorizationService {
	return &authorizationService{
		codes:    codes,
		userRepo: userRepo,
		tokens:   tokens,
		oidc:     oidc,
		now:      time.Now,
	}
}

// Authorize issues a single-use code for the signed-in user and returns the
// URL to redirect the user agent to
func (s *authorizationService) Authorize(ctx context.Context, userID uuid.UUID, req AuthorizeRequest) (string, error) {
	if req.ClientID != s.oidc.ClientID {
		return "", &OAuthError{Code: OAuthInvalidClient, Description: "unknown client_id"}
	}
	if !slices.Contains(s.oidc.RedirectURIs, req.RedirectURI) {
		return "", &OAuthError{Code: OAuthInvalidRequest, Description: "redirect_uri is not registered"}
	}

	if req.ResponseType != "code" {
		return "", &OAuthError{Code: OAuthUnsupportedResponseType, Description: "only response_type=code is supported", Redirectable: true}
	}
	if !slices.Contains(strings.Fields(req.Scope), scopeOpenID) {
		return "", &OAuthError{Code: OAuthInvalidScope, Description: "scope must include openid", Redirectable: true}
	}
	if req.CodeChallenge == "" || req.CodeChallengeMethod != pkceMethodS256 {
		return "", &OAuthError{Code: OAuthInvalidRequest, Description: "code_challenge with code_challenge_method=S256 is required", Redirectable: true}
	}

	value, err := randomToken()
	if err != nil {
		return "", err
	}
	code := &domain.AuthorizationCode{
		Code:                value,
		ClientID:            req.ClientID,
		RedirectURI:         req.RedirectURI,
		UserID:              userID,
		Scope:               req.Scope,
		Nonce:               req.Nonce,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		ExpiresAt:           s.now().Add(time.Duration(s.oidc.CodeTTL) * time.Second),
	}
	if err := s.codes.Save(ctx, code); err != nil {
		return "", err
	}

	return RedirectWith(req.RedirectURI, url.Values{"code": {value}}, req.State), nil
}

// Exchange redeems an authorization code for an access and identity token
func (s *authorizationService) Exchange(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	if req.GrantType != "authorization_code" {
		return nil, &OAuthError{Code: OAuthUnsupportedGrantType, Description: "only authorization_code is supported"}
	}
	if req.Code == "" || req.CodeVerifier == "" {
		return nil, &OAuthError{Code: OAuthInvalidRequest, Description: "code and code_verifier are required"}
	}
	if req.ClientID != s.oidc.ClientID {
		return nil, &OAuthError{Code: OAuthInvalidClient, Description: "unknown client_id"}
	}

	code, err := s.codes.Consume(ctx, req.Code)
	if err != nil {
		if errors.Is(err, repository.ErrAuthorizationCodeNotFound) {
			return nil, &OAuthError{Code: OAuthInvalidGrant, Description: "authorization code is invalid or already used"}
		}
		return nil, err
	}

	switch {
	case !s.now().Before(code.ExpiresAt):
		return nil, &OAuthError{Code: OAuthInvalidGrant, Description: "authorization code has expired"}
	case code.ClientID != req.ClientID || code.RedirectURI != req.RedirectURI:
		return nil, &OAuthError{Code: OAuthInvalidGrant, Description: "client_id or redirect_uri does not match the authorization request"}
	case !VerifyPKCE(req.CodeVerifier, code.CodeChallenge):
		return nil, &OAuthError{Code: OAuthInvalidGrant, Description: "code_verifier does not match code_challenge"}
	}

	user, err := s.userRepo.FindByID(ctx, code.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, &OAuthError{Code: OAuthInvalidGrant, Description: "user no longer exists"}
		}
		return nil, err
	}

	accessToken, err := s.tokens.IssueAccessToken(user, code.ClientID)
	if err != nil {
		return nil, err
	}
	idToken, err := s.tokens.IssueIDToken(user, code.ClientID, code.Nonce)
	if err != nil {
		return nil, err
	}

	return &TokenResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.tokens.AccessTTL().Seconds()),
		IDToken:     idToken,
		Scope:       code.Scope,
	}, nil
}

func (s *authorizationService) Discovery() *Discovery {
	issuer := strings.TrimSuffix(s.oidc.Issuer, "/")
	return &Discovery{
		Issuer:                            issuer,
		AuthorizationEndpoint:             issuer + "/connect/authorize",
		TokenEndpoint:                     issuer + "/connect/token",
		ResponseTypesSupported:            []string{"code"},
		GrantTypesSupported:               []string{"authorization_code"},
		SubjectTypesSupported:             []string{"public"},
		IDTokenSigningAlgValuesSupported:  []string{"HS256"},
		ScopesSupported:                   []string{scopeOpenID, "profile", "email"},
		CodeChallengeMethodsSupported:     []string{pkceMethodS256},
		TokenEndpointAuthMethodsSupported: []string{"none"},
	}
}

// VerifyPKCE checks an S256 code_verifier against its code_challenge
func VerifyPKCE(verifier, challenge string) bool {
	sum := sha256.Sum256([]byte(verifier))
	computed := base64.RawURLEncoding.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) == 1
}

// RedirectWith appends params and state to a redirect URI
func RedirectWith(redirectURI string, params url.Values, state string) string {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return redirectURI
	}
	query := u.Query()
	for key, values := range params {
		for _, v := range values {
			query.Add(key, v)
		}
	}
	if state != "" {
		query.Set("state", state)
	}
	u.RawQuery = query.Encode()
	return u.String()
}
