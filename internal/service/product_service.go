package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gamestore/internal/config"
	"gamestore/internal/domain"
	"gamestore/internal/repository"
	"gamestore/internal/tracking"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrInvalidPrice = errors.New("price must be greater than zero")

// ProductQuery is a catalog page request as it arrives from the client
type ProductQuery struct {
	Page        int
	PageSize    int
	CategoryIDs []uuid.UUID
}

// ImageInput describes one image of a product being written
type ImageInput struct {
	URL       string
	IsPrimary bool
}

// ProductInput carries the writable attributes of a product aggregate
type ProductInput struct {
	Name        string
	Price       decimal.Decimal
	IsFeatured  bool
	Description string
	Warranty    string
	Images      []ImageInput
	CategoryIDs []uuid.UUID
}

// ProductService defines the interface for catalog business logic
type ProductService interface {
	List(ctx context.Context, query ProductQuery) (*domain.ProductPage, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	Create(ctx context.Context, input ProductInput) (*domain.Product, error)
	Update(ctx context.Context, id uuid.UUID, input ProductInput) (*domain.Product, error)
	Delete(ctx context.Context, id uuid.UUID) error
	SetPrimaryImage(ctx context.Context, productID, imageID uuid.UUID) (*domain.Product, error)
}

type productService struct {
	productRepo  repository.ProductRepository
	categoryRepo repository.CategoryRepository
	uow          repository.UnitOfWork
	catalog      config.CatalogConfig
	newTracker   func() *tracking.Tracker
}

// NewProductService creates a new instance of ProductService
func NewProductService(
	productRepo repository.ProductRepository,
	categoryRepo repository.CategoryRepository,
	uow repository.UnitOfWork,
	catalog config.CatalogConfig,
) ProductService {
	return &productService{
		productRepo:  productRepo,
		categoryRepo: categoryRepo,
		uow:          uow,
		catalog:      catalog,
		newTracker:   tracking.New,
	}
}

// List returns one page of the catalog. Page is clamped to [1, math.MaxInt/size]
// and page size to [1, MaxPageSize]; zero means the default size.
func (s *productService) List(ctx context.Context, query ProductQuery) (*domain.ProductPage, error) {
	size := s.pageSize(query.PageSize)
	filter := repository.ProductFilter{
		CategoryIDs: dedupe(query.CategoryIDs),
		Page:        min(max(query.Page, 1), math.MaxInt/size),
		PageSize:    size,
	}

	items, total, err := s.productRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	return domain.NewProductPage(items, filter.Page, filter.PageSize, total), nil
}

func (s *productService) pageSize(requested int) int {
	if requested <= 0 {
		requested = s.catalog.DefaultPageSize
	}
	return min(max(requested, 1), s.catalog.MaxPageSize)
}

// Get loads a product with its detail, images, categories and reviews
func (s *productService) Get(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return s.productRepo.FindByID(ctx, id)
}

// Create persists a new product aggregate in one unit of work
func (s *productService) Create(ctx context.Context, input ProductInput) (*domain.Product, error) {
	if !input.Price.IsPositive() {
		return nil, ErrInvalidPrice
	}
	categoryIDs := dedupe(input.CategoryIDs)
	if err := s.requireCategories(ctx, categoryIDs); err != nil {
		return nil, err
	}

	tracker := s.newTracker()
	product := &domain.Product{
		Base:       domain.Base{ID: uuid.New()},
		Name:       input.Name,
		Price:      input.Price,
		IsFeatured: input.IsFeatured,
	}
	tracker.Add(product)

	product.Detail = &domain.ProductDetail{
		Base:        domain.Base{ID: uuid.New()},
		ProductID:   product.ID,
		Description: input.Description,
		Warranty:    input.Warranty,
	}
	tracker.Add(product.Detail)

	s.addImages(tracker, product, input.Images)
	for _, categoryID := range categoryIDs {
		s.link(tracker, product, categoryID)
	}

	if err := s.uow.SaveChanges(ctx, tracker); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	product.Reviews = []*domain.ProductReview{}
	return product, nil
}

// Update rewrites the product's attributes. Images and category links are
// cleared and re-added from the input, never patched.
func (s *productService) Update(ctx context.Context, id uuid.UUID, input ProductInput) (*domain.Product, error) {
	if !input.Price.IsPositive() {
		return nil, ErrInvalidPrice
	}
	categoryIDs := dedupe(input.CategoryIDs)
	if err := s.requireCategories(ctx, categoryIDs); err != nil {
		return nil, err
	}

	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	tracker := s.newTracker()
	product.Name = input.Name
	product.Price = input.Price
	product.IsFeatured = input.IsFeatured
	tracker.Update(product)

	if product.Detail == nil {
		product.Detail = &domain.ProductDetail{Base: domain.Base{ID: uuid.New()}, ProductID: product.ID}
		tracker.Add(product.Detail)
	} else {
		tracker.Update(product.Detail)
	}
	product.Detail.Description = input.Description
	product.Detail.Warranty = input.Warranty

	for _, img := range product.Images {
		tracker.Remove(img)
	}
	product.Images = nil
	s.addImages(tracker, product, input.Images)

	for _, link := range product.Categories {
		tracker.Remove(link)
	}
	product.Categories = nil
	for _, categoryID := range categoryIDs {
		s.link(tracker, product, categoryID)
	}

	if err := s.uow.SaveChanges(ctx, tracker); err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	return product, nil
}

// Delete removes a product; its detail, images, links and reviews go with it
func (s *productService) Delete(ctx context.Context, id uuid.UUID) error {
	tracker := s.newTracker()
	tracker.Remove(&domain.Product{Base: domain.Base{ID: id}})
	if err := s.uow.SaveChanges(ctx, tracker); err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return nil
}

// SetPrimaryImage makes imageID the product's only primary image. The
// product's UpdatedAt moves whenever a flag actually changes.
func (s *productService) SetPrimaryImage(ctx context.Context, productID, imageID uuid.UUID) (*domain.Product, error) {
	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	found := false
	for _, img := range product.Images {
		if img.ID == imageID {
			found = true
		}
	}
	if !found {
		return nil, repository.ErrImageNotFound
	}

	tracker := s.newTracker()
	tracker.Attach(product)
	for _, img := range product.Images {
		primary := img.ID == imageID
		if img.IsPrimary != primary {
			img.IsPrimary = primary
			tracker.Update(img)
		}
	}

	if err := s.uow.SaveChanges(ctx, tracker); err != nil {
		return nil, fmt.Errorf("failed to set primary image: %w", err)
	}
	return product, nil
}

func (s *productService) addImages(tracker *tracking.Tracker, product *domain.Product, inputs []ImageInput) {
	images := make([]*domain.ProductImage, 0, len(inputs))
	for i, in := range inputs {
		images = append(images, &domain.ProductImage{
			Base:      domain.Base{ID: uuid.New()},
			ProductID: product.ID,
			URL:       in.URL,
			IsPrimary: in.IsPrimary,
			Position:  i,
		})
	}
	domain.NormalizePrimary(images)
	for _, img := range images {
		tracker.Add(img)
	}
	product.Images = images
}

func (s *productService) link(tracker *tracking.Tracker, product *domain.Product, categoryID uuid.UUID) {
	link := &domain.ProductCategory{ProductID: product.ID, CategoryID: categoryID}
	tracker.Add(link)
	product.Categories = append(product.Categories, link)
}

func (s *productService) requireCategories(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	found, err := s.categoryRepo.FindByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to look up categories: %w", err)
	}
	if len(found) != len(ids) {
		return repository.ErrCategoryNotFound
	}
	return nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
