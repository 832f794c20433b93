package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gamestore/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenRevoked  = errors.New("refresh token has been revoked")
)

// RefreshTokenRepository defines the interface for refresh token data access
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *domain.RefreshToken) error
	FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error)
	Revoke(ctx context.Context, token string) error
	RevokeForUser(ctx context.Context, userID uuid.UUID) error
}

type refreshTokenRepository struct {
	db DBTX
}

// NewRefreshTokenRepository creates a new instance of RefreshTokenRepository
func NewRefreshTokenRepository(db DBTX) RefreshTokenRepository {
	return &refreshTokenRepository{db: db}
}

// Create stores a newly issued refresh token
func (r *refreshTokenRepository) Create(ctx context.Context, token *domain.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (id, user_id, token, expires_at, created_at, revoked)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query, token.ID, token.UserID, token.Token, token.ExpiresAt, token.CreatedAt, token.Revoked)
	if err != nil {
		if constraintViolation(err, pgForeignKeyViolation, "fk_refresh_tokens_user") {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to create refresh token: %w", err)
	}

	return nil
}

// FindByToken returns an unrevoked token. Expiry is left to the caller.
func (r *refreshTokenRepository) FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	query := `
		SELECT id, user_id, token, expires_at, created_at, revoked
		FROM refresh_tokens
		WHERE token = $1
	`

	refreshToken := &domain.RefreshToken{}
	err := r.db.QueryRowContext(ctx, query, token).Scan(
		&refreshToken.ID,
		&refreshToken.UserID,
		&refreshToken.Token,
		&refreshToken.ExpiresAt,
		&refreshToken.CreatedAt,
		&refreshToken.Revoked,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRefreshTokenNotFound
		}
		return nil, fmt.Errorf("failed to find refresh token: %w", err)
	}

	if refreshToken.Revoked {
		return nil, ErrRefreshTokenRevoked
	}

	return refreshToken, nil
}

// Revoke marks a single refresh token as revoked
func (r *refreshTokenRepository) Revoke(ctx context.Context, token string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = TRUE WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return expectRow(result, ErrRefreshTokenNotFound)
}

// RevokeForUser revokes every outstanding token of a user
func (r *refreshTokenRepository) RevokeForUser(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = TRUE WHERE user_id = $1 AND NOT revoked`, userID)
	if err != nil {
		return fmt.Errorf("failed to revoke refresh tokens: %w", err)
	}
	return nil
}
