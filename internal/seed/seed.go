package seed

import (
	"context"
	"fmt"
	"strings"

	"gamestore/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const ProductsPerCategory = 20

// Categories are the demo catalog's categories, in creation order
var Categories = []struct {
	Name        string
	Description string
}{
	{"Consoles", "Home and handheld gaming consoles"},
	{"Controllers", "Gamepads, arcade sticks and racing wheels"},
	{"Headsets", "Wired and wireless gaming headsets"},
	{"Keyboards", "Mechanical and membrane gaming keyboards"},
	{"Mice", "Gaming mice and mouse pads"},
	{"Monitors", "High refresh rate gaming monitors"},
	{"Chairs", "Gaming chairs and desks"},
	{"Games", "Physical editions for every platform"},
}

// Seeder fills an empty catalog with demo data through the services, so
// seeded rows are stamped like any other write
type Seeder struct {
	products   service.ProductService
	categories service.CategoryService
	logger     *zap.Logger
}

func New(products service.ProductService, categories service.CategoryService, logger *zap.Logger) *Seeder {
	return &Seeder{
		products:   products,
		categories: categories,
		logger:     logger,
	}
}

// Run seeds every category with ProductsPerCategory products unless the
// catalog already has products. It reports whether anything was written.
func (s *Seeder) Run(ctx context.Context) (bool, error) {
	page, err := s.products.List(ctx, service.ProductQuery{Page: 1, PageSize: 1})
	if err != nil {
		return false, fmt.Errorf("failed to check catalog: %w", err)
	}
	if page.TotalItems > 0 {
		s.logger.Info("Catalog already populated, skipping seed", zap.Int("products", page.TotalItems))
		return false, nil
	}

	for i, c := range Categories {
		category, err := s.categories.Create(ctx, c.Name, c.Description)
		if err != nil {
			return false, fmt.Errorf("failed to seed category %q: %w", c.Name, err)
		}

		for j := 0; j < ProductsPerCategory; j++ {
			if _, err := s.products.Create(ctx, demoProduct(i, j, c.Name, category.ID)); err != nil {
				return false, fmt.Errorf("failed to seed product %d of %q: %w", j+1, c.Name, err)
			}
		}
		s.logger.Debug("Seeded category", zap.String("category", c.Name), zap.Int("products", ProductsPerCategory))
	}

	s.logger.Info("Catalog seeded",
		zap.Int("categories", len(Categories)),
		zap.Int("products", len(Categories)*ProductsPerCategory),
	)
	return true, nil
}

func demoProduct(categoryIndex, n int, categoryName string, categoryID uuid.UUID) service.ProductInput {
	slug := strings.ToLower(categoryName)
	// 19.99 .. 98.99, stable per product
	price := decimal.NewFromInt(int64(19 + (categoryIndex*ProductsPerCategory+n)%80)).Add(decimal.New(99, -2))

	return service.ProductInput{
		Name:        fmt.Sprintf("%s Model %02d", strings.TrimSuffix(categoryName, "s"), n+1),
		Price:       price,
		IsFeatured:  n < 2,
		Description: fmt.Sprintf("Demo %s item number %d.", slug, n+1),
		Warranty:    fmt.Sprintf("%d year manufacturer warranty", 1+n%3),
		Images: []service.ImageInput{
			{URL: fmt.Sprintf("https://images.gamestore.example/%s/%02d.png", slug, n+1), IsPrimary: true},
			{URL: fmt.Sprintf("https://images.gamestore.example/%s/%02d-side.png", slug, n+1)},
		},
		CategoryIDs: []uuid.UUID{categoryID},
	}
}
