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
	ErrReviewNotFound      = errors.New("review not found")
	ErrReviewAlreadyExists = errors.New("user has already reviewed this product")
)

// ReviewRepository defines the interface for product review reads
type ReviewRepository interface {
	Exists(ctx context.Context, userID, productID uuid.UUID) (bool, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.ProductReview, error)
	ListByProduct(ctx context.Context, productID uuid.UUID) ([]*domain.ProductReview, error)
}

type reviewRepository struct {
	db DBTX
}

// NewReviewRepository creates a new instance of ReviewRepository
func NewReviewRepository(db DBTX) ReviewRepository {
	return &reviewRepository{db: db}
}

// Exists reports whether userID has already reviewed productID
func (r *reviewRepository) Exists(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM product_reviews WHERE user_id = $1 AND product_id = $2)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, userID, productID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check review: %w", err)
	}
	return exists, nil
}

// FindByID retrieves a review by ID
func (r *reviewRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.ProductReview, error) {
	query := `
		SELECT id, product_id, user_id, rating, title, text, created_at, updated_at
		FROM product_reviews
		WHERE id = $1
	`

	review, err := scanReview(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReviewNotFound
		}
		return nil, fmt.Errorf("failed to find review by ID: %w", err)
	}
	return review, nil
}

// ListByProduct returns a product's reviews, newest first
func (r *reviewRepository) ListByProduct(ctx context.Context, productID uuid.UUID) ([]*domain.ProductReview, error) {
	query := `
		SELECT id, product_id, user_id, rating, title, text, created_at, updated_at
		FROM product_reviews
		WHERE product_id = $1
		ORDER BY created_at DESC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	reviews := []*domain.ProductReview{}
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, review)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reviews: %w", err)
	}

	return reviews, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReview(row rowScanner) (*domain.ProductReview, error) {
	review := &domain.ProductReview{}
	var title, text sql.NullString
	err := row.Scan(
		&review.ID,
		&review.ProductID,
		&review.UserID,
		&review.Rating,
		&title,
		&text,
		&review.CreatedAt,
		&review.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if title.Valid {
		review.Title = &title.String
	}
	if text.Valid {
		review.Text = &text.String
	}
	return review, nil
}

func insertReview(ctx context.Context, q DBTX, rv *domain.ProductReview) error {
	query := `
		INSERT INTO product_reviews (id, product_id, user_id, rating, title, text, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := q.ExecContext(ctx, query, rv.ID, rv.ProductID, rv.UserID, rv.Rating, rv.Title, rv.Text, rv.CreatedAt, rv.UpdatedAt)
	if err != nil {
		switch {
		case constraintViolation(err, pgUniqueViolation, "uq_product_reviews_user_product"):
			return ErrReviewAlreadyExists
		case constraintViolation(err, pgForeignKeyViolation, "fk_product_reviews_product"):
			return ErrProductNotFound
		case constraintViolation(err, pgForeignKeyViolation, "fk_product_reviews_user"):
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to create review: %w", err)
	}
	return nil
}

func updateReview(ctx context.Context, q DBTX, rv *domain.ProductReview) error {
	query := `
		UPDATE product_reviews
		SET rating = $2, title = $3, text = $4, updated_at = $5
		WHERE id = $1
	`
	result, err := q.ExecContext(ctx, query, rv.ID, rv.Rating, rv.Title, rv.Text, rv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update review: %w", err)
	}
	return expectRow(result, ErrReviewNotFound)
}

func deleteReview(ctx context.Context, q DBTX, rv *domain.ProductReview) error {
	result, err := q.ExecContext(ctx, `DELETE FROM product_reviews WHERE id = $1`, rv.ID)
	if err != nil {
		return fmt.Errorf("failed to delete review: %w", err)
	}
	return expectRow(result, ErrReviewNotFound)
}
