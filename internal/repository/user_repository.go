package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"gamestore/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user with this email already exists")
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	List(ctx context.Context) ([]*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type userRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new instance of UserRepository
func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

const selectUser = `
	SELECT u.id, u.email, u.password_hash, u.first_name, u.last_name,
	       COALESCE(string_agg(r.role, ',' ORDER BY r.role), ''),
	       u.created_at, u.updated_at
	FROM users u
	LEFT JOIN user_roles r ON r.user_id = u.id
`

// Create inserts a new user and its roles in one transaction
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO users (id, email, password_hash, first_name, last_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = tx.ExecContext(
		ctx,
		query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if constraintViolation(err, pgUniqueViolation, "users_email_key") {
			return ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	if err := insertRoles(ctx, tx, user.ID, user.Roles); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// FindByEmail retrieves a user by email
func (r *userRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := selectUser + `WHERE u.email = $1 GROUP BY u.id`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}

	return user, nil
}

// FindByID retrieves a user by ID
func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := selectUser + `WHERE u.id = $1 GROUP BY u.id`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	return user, nil
}

// List returns every user ordered by email
func (r *userRepository) List(ctx context.Context) ([]*domain.User, error) {
	query := selectUser + `GROUP BY u.id ORDER BY u.email ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []*domain.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

// Update rewrites the profile columns and replaces the role set
func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE users
		SET email = $2, password_hash = $3, first_name = $4, last_name = $5, updated_at = $6
		WHERE id = $1
	`
	result, err := tx.ExecContext(ctx, query, user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName, user.UpdatedAt)
	if err != nil {
		if constraintViolation(err, pgUniqueViolation, "users_email_key") {
			return ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	if err := expectRow(result, ErrUserNotFound); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_roles WHERE user_id = $1`, user.ID); err != nil {
		return fmt.Errorf("failed to clear user roles: %w", err)
	}
	if err := insertRoles(ctx, tx, user.ID, user.Roles); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Delete removes a user together with its roles, tokens and reviews
func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return expectRow(result, ErrUserNotFound)
}

func insertRoles(ctx context.Context, q DBTX, userID uuid.UUID, roles []string) error {
	for _, role := range roles {
		_, err := q.ExecContext(ctx, `INSERT INTO user_roles (user_id, role) VALUES ($1, $2) ON CONFLICT DO NOTHING`, userID, role)
		if err != nil {
			return fmt.Errorf("failed to assign role %q: %w", role, err)
		}
	}
	return nil
}

func scanUser(row rowScanner) (*domain.User, error) {
	user := &domain.User{}
	var roles string
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&roles,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.Roles = []string{}
	if roles != "" {
		user.Roles = strings.Split(roles, ",")
	}
	return user, nil
}
