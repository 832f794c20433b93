package service

import (
	"context"
	"sort"
	"time"

	"gamestore/internal/domain"
	"gamestore/internal/repository"
	"gamestore/internal/tracking"

	"github.com/google/uuid"
)

// memoryStore is an in-memory catalog backing the product, category and
// review repositories and the unit of work. It stores copies so callers
// cannot mutate persisted state without saving.
type memoryStore struct {
	products   map[uuid.UUID]*domain.Product
	details    map[uuid.UUID]*domain.ProductDetail
	images     map[uuid.UUID]*domain.ProductImage
	links      map[[2]uuid.UUID]*domain.ProductCategory
	reviews    map[uuid.UUID]*domain.ProductReview
	categories map[uuid.UUID]*domain.Category
	saves      int
	lastFilter repository.ProductFilter
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		products:   make(map[uuid.UUID]*domain.Product),
		details:    make(map[uuid.UUID]*domain.ProductDetail),
		images:     make(map[uuid.UUID]*domain.ProductImage),
		links:      make(map[[2]uuid.UUID]*domain.ProductCategory),
		reviews:    make(map[uuid.UUID]*domain.ProductReview),
		categories: make(map[uuid.UUID]*domain.Category),
	}
}

// steppingTrackers returns a tracker factory whose clock advances a second per save
func steppingTrackers() func() *tracking.Tracker {
	current := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() *tracking.Tracker {
		return tracking.NewWithClock(func() time.Time {
			current = current.Add(time.Second)
			return current
		})
	}
}

func (s *memoryStore) SaveChanges(ctx context.Context, t *tracking.Tracker) error {
	if err := t.DetectChanges(); err != nil {
		return err
	}
	if !t.HasChanges() {
		return nil
	}
	for _, entry := range t.Entries() {
		if err := s.apply(entry); err != nil {
			return err
		}
	}
	s.saves++
	t.AcceptChanges()
	return nil
}

func (s *memoryStore) apply(entry *tracking.Entry) error {
	switch e := entry.Entity.(type) {
	case *domain.Product:
		switch entry.State {
		case tracking.Added:
			root := domain.Product{Base: e.Base, Name: e.Name, Price: e.Price, IsFeatured: e.IsFeatured}
			s.products[e.ID] = &root
		case tracking.Modified:
			existing, ok := s.products[e.ID]
			if !ok {
				return repository.ErrProductNotFound
			}
			if !entry.Stub {
				existing.Name, existing.Price, existing.IsFeatured = e.Name, e.Price, e.IsFeatured
			}
			existing.UpdatedAt = e.UpdatedAt
		case tracking.Deleted:
			if _, ok := s.products[e.ID]; !ok {
				return repository.ErrProductNotFound
			}
			s.deleteProduct(e.ID)
		}
	case *domain.ProductDetail:
		if entry.State == tracking.Deleted {
			delete(s.details, e.ProductID)
		} else {
			detail := *e
			s.details[e.ProductID] = &detail
		}
	case *domain.ProductImage:
		if entry.State == tracking.Deleted {
			delete(s.images, e.ID)
		} else {
			img := *e
			s.images[e.ID] = &img
		}
	case *domain.ProductCategory:
		key := [2]uuid.UUID{e.ProductID, e.CategoryID}
		switch entry.State {
		case tracking.Deleted:
			delete(s.links, key)
		default:
			if _, ok := s.categories[e.CategoryID]; !ok {
				return repository.ErrCategoryNotFound
			}
			link := *e
			s.links[key] = &link
		}
	case *domain.ProductReview:
		switch entry.State {
		case tracking.Added:
			for _, r := range s.reviews {
				if r.UserID == e.UserID && r.ProductID == e.ProductID {
					return repository.ErrReviewAlreadyExists
				}
			}
			fallthrough
		case tracking.Modified:
			review := *e
			s.reviews[e.ID] = &review
		case tracking.Deleted:
			delete(s.reviews, e.ID)
		}
	case *domain.Category:
		switch entry.State {
		case tracking.Added, tracking.Modified:
			for _, c := range s.categories {
				if c.Name == e.Name && c.ID != e.ID {
					return repository.ErrCategoryAlreadyExists
				}
			}
			category := *e
			s.categories[e.ID] = &category
		case tracking.Deleted:
			if _, ok := s.categories[e.ID]; !ok {
				return repository.ErrCategoryNotFound
			}
			delete(s.categories, e.ID)
			for key := range s.links {
				if key[1] == e.ID {
					delete(s.links, key)
				}
			}
		}
	}
	return nil
}

func (s *memoryStore) deleteProduct(id uuid.UUID) {
	delete(s.products, id)
	delete(s.details, id)
	for imgID, img := range s.images {
		if img.ProductID == id {
			delete(s.images, imgID)
		}
	}
	for key := range s.links {
		if key[0] == id {
			delete(s.links, key)
		}
	}
	for reviewID, r := range s.reviews {
		if r.ProductID == id {
			delete(s.reviews, reviewID)
		}
	}
}

// ProductRepository

func (s *memoryStore) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	root, ok := s.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	product := *root
	if detail, ok := s.details[id]; ok {
		d := *detail
		product.Detail = &d
	}
	product.Images = []*domain.ProductImage{}
	for _, img := range s.images {
		if img.ProductID == id {
			i := *img
			product.Images = append(product.Images, &i)
		}
	}
	sort.Slice(product.Images, func(i, j int) bool { return product.Images[i].Position < product.Images[j].Position })
	product.Categories = []*domain.ProductCategory{}
	for key, link := range s.links {
		if key[0] == id {
			l := *link
			product.Categories = append(product.Categories, &l)
		}
	}
	product.Reviews, _ = s.ListByProduct(ctx, id)
	return &product, nil
}

func (s *memoryStore) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, ok := s.products[id]
	return ok, nil
}

func (s *memoryStore) List(ctx context.Context, filter repository.ProductFilter) ([]*domain.ProductSummary, int, error) {
	s.lastFilter = filter
	matched := []*domain.Product{}
	for id, p := range s.products {
		if len(filter.CategoryIDs) == 0 || s.inAny(id, filter.CategoryIDs) {
			matched = append(matched, p)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].ID.String() < matched[j].ID.String()
	})

	total := len(matched)
	start := min(filter.Offset(), total)
	end := min(start+filter.PageSize, total)

	items := []*domain.ProductSummary{}
	for _, p := range matched[start:end] {
		full, _ := s.FindByID(context.Background(), p.ID)
		items = append(items, &domain.ProductSummary{
			ID:            p.ID,
			Name:          p.Name,
			Price:         p.Price,
			IsFeatured:    p.IsFeatured,
			ThumbnailURL:  full.ThumbnailURL(),
			AverageRating: full.AverageRating(),
			ReviewCount:   len(full.Reviews),
			Timestamps:    p.Timestamps,
		})
	}
	return items, total, nil
}

func (s *memoryStore) inAny(productID uuid.UUID, categoryIDs []uuid.UUID) bool {
	for _, categoryID := range categoryIDs {
		if _, ok := s.links[[2]uuid.UUID{productID, categoryID}]; ok {
			return true
		}
	}
	return false
}

// ReviewRepository and CategoryRepository share method names with
// ProductRepository, so they are exposed through thin views.

type reviewView struct{ *memoryStore }

func (v reviewView) Exists(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	for _, r := range v.reviews {
		if r.UserID == userID && r.ProductID == productID {
			return true, nil
		}
	}
	return false, nil
}

func (v reviewView) FindByID(ctx context.Context, id uuid.UUID) (*domain.ProductReview, error) {
	r, ok := v.reviews[id]
	if !ok {
		return nil, repository.ErrReviewNotFound
	}
	review := *r
	return &review, nil
}

func (s *memoryStore) ListByProduct(ctx context.Context, productID uuid.UUID) ([]*domain.ProductReview, error) {
	reviews := []*domain.ProductReview{}
	for _, r := range s.reviews {
		if r.ProductID == productID {
			review := *r
			reviews = append(reviews, &review)
		}
	}
	sort.Slice(reviews, func(i, j int) bool { return reviews[i].CreatedAt.After(reviews[j].CreatedAt) })
	return reviews, nil
}

type categoryView struct{ *memoryStore }

func (v categoryView) List(ctx context.Context) ([]*domain.Category, error) {
	categories := []*domain.Category{}
	for _, c := range v.categories {
		category := *c
		categories = append(categories, &category)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].Name < categories[j].Name })
	return categories, nil
}

func (v categoryView) FindByID(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	c, ok := v.categories[id]
	if !ok {
		return nil, repository.ErrCategoryNotFound
	}
	category := *c
	return &category, nil
}

func (v categoryView) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Category, error) {
	categories := []*domain.Category{}
	for _, id := range ids {
		if c, ok := v.categories[id]; ok {
			category := *c
			categories = append(categories, &category)
		}
	}
	return categories, nil
}
