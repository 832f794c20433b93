package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gamestore/internal/domain"

	"github.com/redis/go-redis/v9"
)

var ErrAuthorizationCodeNotFound = errors.New("authorization code not found")

// AuthorizationCodeRepository stores single-use OpenID Connect codes
type AuthorizationCodeRepository interface {
	Save(ctx context.Context, code *domain.AuthorizationCode) error
	// Consume returns the code and removes it atomically, so a code is redeemed once
	Consume(ctx context.Context, code string) (*domain.AuthorizationCode, error)
}

type authorizationCodeRepository struct {
	client *redis.Client
	prefix string
}

// NewAuthorizationCodeRepository creates a Redis-backed code repository
func NewAuthorizationCodeRepository(client *redis.Client) AuthorizationCodeRepository {
	return &authorizationCodeRepository{
		client: client,
		prefix: "oidc:code:",
	}
}

func (r *authorizationCodeRepository) Save(ctx context.Context, code *domain.AuthorizationCode) error {
	ttl := time.Until(code.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("authorization code already expired")
	}

	payload, err := json.Marshal(code)
	if err != nil {
		return fmt.Errorf("failed to encode authorization code: %w", err)
	}

	if err := r.client.Set(ctx, r.prefix+code.Code, payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save authorization code: %w", err)
	}
	return nil
}

func (r *authorizationCodeRepository) Consume(ctx context.Context, code string) (*domain.AuthorizationCode, error) {
	result, err := r.client.GetDel(ctx, r.prefix+code).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrAuthorizationCodeNotFound
		}
		return nil, fmt.Errorf("failed to consume authorization code: %w", err)
	}

	var authCode domain.AuthorizationCode
	if err := json.Unmarshal(result, &authCode); err != nil {
		return nil, fmt.Errorf("failed to decode authorization code: %w", err)
	}
	return &authCode, nil
}
