// Package auth issues and verifies the signed tokens handed to the admin SPA
// and to OpenID Connect clients.
package auth

import (
	"errors"
	"fmt"
	"time"

	"gamestore/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token has expired")
)

// Claims are carried by every access token
type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email,omitempty"`
	Roles  []string  `json:"roles"`
	jwt.RegisteredClaims
}

// IDClaims are carried by OpenID Connect identity tokens
type IDClaims struct {
	Email     string `json:"email,omitempty"`
	GivenName string `json:"given_name,omitempty"`
	Family    string `json:"family_name,omitempty"`
	Nonce     string `json:"nonce,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and parses HS256 tokens
type TokenIssuer struct {
	secret    []byte
	issuer    string
	accessTTL time.Duration
	now       func() time.Time
}

// NewTokenIssuer creates an issuer signing with secret
func NewTokenIssuer(secret, issuer string, accessTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret:    []byte(secret),
		issuer:    issuer,
		accessTTL: accessTTL,
		now:       time.Now,
	}
}

// AccessTTL is the lifetime of issued access tokens
func (i *TokenIssuer) AccessTTL() time.Duration {
	return i.accessTTL
}

// IssueAccessToken generates an access token with the user's id and roles
func (i *TokenIssuer) IssueAccessToken(user *domain.User, audience ...string) (string, error) {
	now := i.now()
	claims := &Claims{
		UserID: user.ID,
		Email:  user.Email,
		Roles:  user.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   user.ID.String(),
			Audience:  audience,
			ExpiresAt: jwt.NewNumericDate(now.Add(i.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	return i.sign(claims)
}

// IssueIDToken generates an identity token for an OpenID Connect client
func (i *TokenIssuer) IssueIDToken(user *domain.User, clientID, nonce string) (string, error) {
	now := i.now()
	claims := &IDClaims{
		Email:     user.Email,
		GivenName: user.FirstName,
		Family:    user.LastName,
		Nonce:     nonce,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   user.ID.String(),
			Audience:  jwt.ClaimStrings{clientID},
			ExpiresAt: jwt.NewNumericDate(now.Add(i.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return i.sign(claims)
}

// Parse verifies the signature, issuer and expiry of an access token
func (i *TokenIssuer) Parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithIssuer(i.issuer), jwt.WithTimeFunc(i.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == uuid.Nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (i *TokenIssuer) sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
