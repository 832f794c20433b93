package service

import (
	"context"
	"errors"
	"fmt"

	"gamestore/internal/domain"
	"gamestore/internal/repository"
	"gamestore/internal/tracking"

	"github.com/google/uuid"
)

var (
	ErrAlreadyReviewed = errors.New("you have already reviewed this product")
	ErrInvalidRating   = fmt.Errorf("rating must be between %d and %d", domain.MinRating, domain.MaxRating)
)

// ReviewInput is a customer's review of one product
type ReviewInput struct {
	ProductID uuid.UUID
	Rating    int
	Title     *string
	Text      *string
}

// ReviewService defines the interface for review business logic
type ReviewService interface {
	Create(ctx context.Context, userID uuid.UUID, input ReviewInput) (*domain.ProductReview, error)
	ListForProduct(ctx context.Context, productID uuid.UUID) ([]*domain.ProductReview, error)
}

type reviewService struct {
	reviewRepo  repository.ReviewRepository
	productRepo repository.ProductRepository
	uow         repository.UnitOfWork
	newTracker  func() *tracking.Tracker
}

// NewReviewService creates a new instance of ReviewService
func NewReviewService(
	reviewRepo repository.ReviewRepository,
	productRepo repository.ProductRepository,
	uow repository.UnitOfWork,
) ReviewService {
	return &reviewService{
		reviewRepo:  reviewRepo,
		productRepo: productRepo,
		uow:         uow,
		newTracker:  tracking.New,
	}
}

// Create stores a review. A user reviews a product at most once; a second
// attempt fails with ErrAlreadyReviewed and writes nothing.
func (s *reviewService) Create(ctx context.Context, userID uuid.UUID, input ReviewInput) (*domain.ProductReview, error) {
	if input.Rating < domain.MinRating || input.Rating > domain.MaxRating {
		return nil, ErrInvalidRating
	}

	exists, err := s.productRepo.Exists(ctx, input.ProductID)
	if err != nil {
		return nil, fmt.Errorf("failed to check product: %w", err)
	}
	if !exists {
		return nil, repository.ErrProductNotFound
	}

	reviewed, err := s.reviewRepo.Exists(ctx, userID, input.ProductID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing review: %w", err)
	}
	if reviewed {
		return nil, ErrAlreadyReviewed
	}

	review := &domain.ProductReview{
		Base:      domain.Base{ID: uuid.New()},
		ProductID: input.ProductID,
		UserID:    userID,
		Rating:    input.Rating,
		Title:     input.Title,
		Text:      input.Text,
	}

	tracker := s.newTracker()
	tracker.Add(review)
	if err := s.uow.SaveChanges(ctx, tracker); err != nil {
		// lost a race with a concurrent review by the same user
		if errors.Is(err, repository.ErrReviewAlreadyExists) {
			return nil, ErrAlreadyReviewed
		}
		return nil, fmt.Errorf("failed to create review: %w", err)
	}
	return review, nil
}

// ListForProduct returns the product's reviews, newest first
func (s *reviewService) ListForProduct(ctx context.Context, productID uuid.UUID) ([]*domain.ProductReview, error) {
	exists, err := s.productRepo.Exists(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to check product: %w", err)
	}
	if !exists {
		return nil, repository.ErrProductNotFound
	}

	reviews, err := s.reviewRepo.ListByProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	return reviews, nil
}
