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

var ErrSessionNotFound = errors.New("session not found")

// SessionRepository stores storefront cookie sessions
type SessionRepository interface {
	Get(ctx context.Context, id string) (*domain.Session, error)
	Save(ctx context.Context, session *domain.Session) error
	Delete(ctx context.Context, id string) error
}

type sessionRepository struct {
	client *redis.Client
	prefix string
}

// NewSessionRepository creates a Redis-backed session repository
func NewSessionRepository(client *redis.Client) SessionRepository {
	return &sessionRepository{
		client: client,
		prefix: "session:",
	}
}

func (r *sessionRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	result, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal(result, &session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &session, nil
}

// Save stores the session until its ExpiresAt
func (r *sessionRepository) Save(ctx context.Context, session *domain.Session) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session %s already expired", session.ID)
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	if err := r.client.Set(ctx, r.key(session.ID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (r *sessionRepository) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (r *sessionRepository) key(id string) string {
	return r.prefix + id
}
