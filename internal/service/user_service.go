package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gamestore/internal/auth"
	"gamestore/internal/domain"
	"gamestore/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the cost factor for bcrypt hashing
const BcryptCost = 10

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = auth.ErrInvalidToken
	ErrTokenExpired       = auth.ErrTokenExpired
	ErrInvalidRole        = errors.New("unknown role")
)

// TokenPair is what the admin SPA receives on login and refresh
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// UserUpdate carries the fields an administrator may change
type UserUpdate struct {
	FirstName string
	LastName  string
	Roles     []string
}

// UserService defines the interface for user business logic
type UserService interface {
	Register(ctx context.Context, email, password, firstName, lastName string) (*domain.User, error)
	Authenticate(ctx context.Context, email, password string) (*domain.User, error)
	LoginJWT(ctx context.Context, email, password string) (*TokenPair, *domain.User, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	ValidateToken(tokenString string) (*auth.Claims, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	ListUsers(ctx context.Context) ([]*domain.User, error)
	UpdateUser(ctx context.Context, userID uuid.UUID, update UserUpdate) (*domain.User, error)
	DeleteUser(ctx context.Context, userID uuid.UUID) error
	EnsureAdmin(ctx context.Context, email, password string) error
}

type userService struct {
	userRepo         repository.UserRepository
	refreshTokenRepo repository.RefreshTokenRepository
	tokens           *auth.TokenIssuer
	refreshTTL       time.Duration
	now              func() time.Time
}

// NewUserService creates a new instance of UserService
func NewUserService(
	userRepo repository.UserRepository,
	refreshTokenRepo repository.RefreshTokenRepository,
	tokens *auth.TokenIssuer,
	refreshTTL time.Duration,
) UserService {
	return &userService{
		userRepo:         userRepo,
		refreshTokenRepo: refreshTokenRepo,
		tokens:           tokens,
		refreshTTL:       refreshTTL,
		now:              time.Now,
	}
}

// Register creates a customer account with a hashed password
func (s *userService) Register(ctx context.Context, email, password, firstName, lastName string) (*domain.User, error) {
	return s.create(ctx, email, password, firstName, lastName, []string{domain.RoleCustomer})
}

func (s *userService) create(ctx context.Context, email, password, firstName, lastName string, roles []string) (*domain.User, error) {
	existingUser, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existingUser != nil {
		return nil, repository.ErrUserAlreadyExists
	}

	hashedPassword, err := s.hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now().UTC()
	user := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hashedPassword,
		FirstName:    firstName,
		LastName:     lastName,
		Roles:        roles,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// Authenticate checks a password. Unknown emails and wrong passwords fail alike.
func (s *userService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if err := s.verifyPassword(user.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// LoginJWT authenticates a user and returns an access and refresh token
func (s *userService) LoginJWT(ctx context.Context, email, password string) (*TokenPair, *domain.User, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, nil, err
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return pair, user, nil
}

// Refresh exchanges a refresh token for a new pair. The old refresh token is
// revoked so each one is usable once.
func (s *userService) Refresh(ctx context.Context, refreshTokenString string) (*TokenPair, error) {
	refreshToken, err := s.refreshTokenRepo.FindByToken(ctx, refreshTokenString)
	if err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) || errors.Is(err, repository.ErrRefreshTokenRevoked) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to find refresh token: %w", err)
	}

	if s.now().After(refreshToken.ExpiresAt) {
		return nil, ErrTokenExpired
	}

	user, err := s.userRepo.FindByID(ctx, refreshToken.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if err := s.refreshTokenRepo.Revoke(ctx, refreshTokenString); err != nil {
		return nil, fmt.Errorf("failed to revoke refresh token: %w", err)
	}

	return s.issuePair(ctx, user)
}

// Logout invalidates the refresh token
func (s *userService) Logout(ctx context.Context, refreshToken string) error {
	if err := s.refreshTokenRepo.Revoke(ctx, refreshToken); err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			// already logged out
			return nil
		}
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

// ValidateToken validates an access token and returns its claims
func (s *userService) ValidateToken(tokenString string) (*auth.Claims, error) {
	return s.tokens.Parse(tokenString)
}

// GetUserByID retrieves a user by ID
func (s *userService) GetUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return s.userRepo.FindByID(ctx, userID)
}

func (s *userService) ListUsers(ctx context.Context) ([]*domain.User, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// UpdateUser changes names and roles. Removing roles revokes outstanding
// refresh tokens so stale roles cannot be refreshed into new access tokens.
func (s *userService) UpdateUser(ctx context.Context, userID uuid.UUID, update UserUpdate) (*domain.User, error) {
	for _, role := range update.Roles {
		if !domain.ValidRole(role) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidRole, role)
		}
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	dropped := false
	for _, role := range user.Roles {
		if !containsRole(update.Roles, role) {
			dropped = true
		}
	}

	user.FirstName = update.FirstName
	user.LastName = update.LastName
	user.Roles = dedupeRoles(update.Roles)
	user.UpdatedAt = s.now().UTC()

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	if dropped {
		if err := s.refreshTokenRepo.RevokeForUser(ctx, userID); err != nil {
			return nil, err
		}
	}
	return user, nil
}

func (s *userService) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	if err := s.userRepo.Delete(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// EnsureAdmin creates the bootstrap administrator, or grants the Admin role
// to an existing account with that email
func (s *userService) EnsureAdmin(ctx context.Context, email, password string) error {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repository.ErrUserNotFound) {
			return fmt.Errorf("failed to find admin: %w", err)
		}
		_, err = s.create(ctx, email, password, "Store", "Admin", []string{domain.RoleAdmin, domain.RoleCustomer})
		return err
	}

	if user.HasRole(domain.RoleAdmin) {
		return nil
	}
	user.Roles = append(user.Roles, domain.RoleAdmin)
	user.UpdatedAt = s.now().UTC()
	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to promote admin: %w", err)
	}
	return nil
}

func (s *userService) hashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

func (s *userService) verifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

func (s *userService) issuePair(ctx context.Context, user *domain.User) (*TokenPair, error) {
	accessToken, err := s.tokens.IssueAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := s.generateRefreshToken(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.tokens.AccessTTL().Seconds()),
	}, nil
}

// generateRefreshToken generates a refresh token and stores it in the database
func (s *userService) generateRefreshToken(ctx context.Context, user *domain.User) (string, error) {
	tokenString := uuid.New().String()
	now := s.now().UTC()

	refreshToken := &domain.RefreshToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		Token:     tokenString,
		ExpiresAt: now.Add(s.refreshTTL),
		CreatedAt: now,
	}

	if err := s.refreshTokenRepo.Create(ctx, refreshToken); err != nil {
		return "", err
	}

	return tokenString, nil
}

func containsRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

func dedupeRoles(roles []string) []string {
	out := make([]string, 0, len(roles))
	for _, role := range roles {
		if !containsRole(out, role) {
			out = append(out, role)
		}
	}
	return out
}
