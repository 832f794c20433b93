package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"gamestore/internal/domain"
	"gamestore/internal/repository"
)

// SessionService manages storefront cookie sessions
type SessionService interface {
	Start(ctx context.Context, user *domain.User) (*domain.Session, error)
	Resolve(ctx context.Context, id string) (*domain.Session, error)
	End(ctx context.Context, id string) error
}

type sessionService struct {
	sessions repository.SessionRepository
	ttl      time.Duration
	now      func() time.Time
}

// NewSessionService creates a new instance of SessionService
func NewSessionService(sessions repository.SessionRepository, ttl time.Duration) SessionService {
	return &sessionService{
		sessions: sessions,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Start opens a session for an authenticated user
func (s *sessionService) Start(ctx context.Context, user *domain.User) (*domain.Session, error) {
	id, err := randomToken()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	session := &domain.Session{
		ID:        id,
		UserID:    user.ID,
		Email:     user.Email,
		Roles:     user.Roles,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Resolve returns the live session with id or repository.ErrSessionNotFound
func (s *sessionService) Resolve(ctx context.Context, id string) (*domain.Session, error) {
	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.now().Before(session.ExpiresAt) {
		return nil, repository.ErrSessionNotFound
	}
	return session, nil
}

func (s *sessionService) End(ctx context.Context, id string) error {
	return s.sessions.Delete(ctx, id)
}

// randomToken returns 32 random bytes, base64url encoded
func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
