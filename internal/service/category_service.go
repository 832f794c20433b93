package service

import (
	"context"
	"fmt"

	"gamestore/internal/domain"
	"gamestore/internal/repository"
	"gamestore/internal/tracking"

	"github.com/google/uuid"
)

// CategoryService defines the interface for category business logic
type CategoryService interface {
	List(ctx context.Context) ([]*domain.Category, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Category, error)
	Create(ctx context.Context, name, description string) (*domain.Category, error)
	Update(ctx context.Context, id uuid.UUID, name, description string) (*domain.Category, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type categoryService struct {
	categoryRepo repository.CategoryRepository
	uow          repository.UnitOfWork
	newTracker   func() *tracking.Tracker
}

// NewCategoryService creates a new instance of CategoryService
func NewCategoryService(categoryRepo repository.CategoryRepository, uow repository.UnitOfWork) CategoryService {
	return &categoryService{
		categoryRepo: categoryRepo,
		uow:          uow,
		newTracker:   tracking.New,
	}
}

func (s *categoryService) List(ctx context.Context) ([]*domain.Category, error) {
	categories, err := s.categoryRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

func (s *categoryService) Get(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	return s.categoryRepo.FindByID(ctx, id)
}

func (s *categoryService) Create(ctx context.Context, name, description string) (*domain.Category, error) {
	category := &domain.Category{
		Base:        domain.Base{ID: uuid.New()},
		Name:        name,
		Description: description,
	}

	tracker := s.newTracker()
	tracker.Add(category)
	if err := s.uow.SaveChanges(ctx, tracker); err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}
	return category, nil
}

func (s *categoryService) Update(ctx context.Context, id uuid.UUID, name, description string) (*domain.Category, error) {
	category, err := s.categoryRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	category.Name = name
	category.Description = description

	tracker := s.newTracker()
	tracker.Update(category)
	if err := s.uow.SaveChanges(ctx, tracker); err != nil {
		return nil, fmt.Errorf("failed to update category: %w", err)
	}
	return category, nil
}

// Delete removes the category. Linked products stay in the catalog and only
// lose the link.
func (s *categoryService) Delete(ctx context.Context, id uuid.UUID) error {
	tracker := s.newTracker()
	tracker.Remove(&domain.Category{Base: domain.Base{ID: id}})
	if err := s.uow.SaveChanges(ctx, tracker); err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	return nil
}
