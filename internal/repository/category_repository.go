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
	ErrCategoryNotFound      = errors.New("category not found")
	ErrCategoryAlreadyExists = errors.New("category with this name already exists")
)

// CategoryRepository defines the interface for category reads
type CategoryRepository interface {
	List(ctx context.Context) ([]*domain.Category, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Category, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Category, error)
}

type categoryRepository struct {
	db DBTX
}

// NewCategoryRepository creates a new instance of CategoryRepository
func NewCategoryRepository(db DBTX) CategoryRepository {
	return &categoryRepository{db: db}
}

// List retrieves all categories ordered by name
func (r *categoryRepository) List(ctx context.Context) ([]*domain.Category, error) {
	query := `
		SELECT id, name, description, created_at, updated_at
		FROM categories
		ORDER BY name ASC
	`

	return r.query(ctx, query)
}

// FindByID retrieves a category by ID
func (r *categoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	query := `
		SELECT id, name, description, created_at, updated_at
		FROM categories
		WHERE id = $1
	`

	category := &domain.Category{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&category.ID,
		&category.Name,
		&category.Description,
		&category.CreatedAt,
		&category.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("failed to find category by ID: %w", err)
	}

	return category, nil
}

// FindByIDs returns the categories among ids that exist
func (r *categoryRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Category, error) {
	if len(ids) == 0 {
		return []*domain.Category{}, nil
	}

	query := fmt.Sprintf(`
		SELECT id, name, description, created_at, updated_at
		FROM categories
		WHERE id IN (%s)
		ORDER BY name ASC
	`, placeholders(1, len(ids)))

	return r.query(ctx, query, uuidArgs(ids)...)
}

func (r *categoryRepository) query(ctx context.Context, query string, args ...interface{}) ([]*domain.Category, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	categories := []*domain.Category{}
	for rows.Next() {
		category := &domain.Category{}
		err := rows.Scan(
			&category.ID,
			&category.Name,
			&category.Description,
			&category.CreatedAt,
			&category.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, category)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	return categories, nil
}

func insertCategory(ctx context.Context, q DBTX, c *domain.Category) error {
	query := `
		INSERT INTO categories (id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := q.ExecContext(ctx, query, c.ID, c.Name, c.Description, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if constraintViolation(err, pgUniqueViolation, "categories_name_key") {
			return ErrCategoryAlreadyExists
		}
		return fmt.Errorf("failed to create category: %w", err)
	}
	return nil
}

func updateCategory(ctx context.Context, q DBTX, c *domain.Category) error {
	query := `
		UPDATE categories
		SET name = $2, description = $3, updated_at = $4
		WHERE id = $1
	`
	result, err := q.ExecContext(ctx, query, c.ID, c.Name, c.Description, c.UpdatedAt)
	if err != nil {
		if constraintViolation(err, pgUniqueViolation, "categories_name_key") {
			return ErrCategoryAlreadyExists
		}
		return fmt.Errorf("failed to update category: %w", err)
	}
	return expectRow(result, ErrCategoryNotFound)
}

// deleteCategory removes the category; its product links go with it
func deleteCategory(ctx context.Context, q DBTX, c *domain.Category) error {
	result, err := q.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, c.ID)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	return expectRow(result, ErrCategoryNotFound)
}
