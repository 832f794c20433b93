package seed

import (
	"context"
	"testing"

	"gamestore/internal/domain"
	"gamestore/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingProducts struct {
	existing int
	created  []service.ProductInput
}

func (r *recordingProducts) List(ctx context.Context, query service.ProductQuery) (*domain.ProductPage, error) {
	return domain.NewProductPage(nil, query.Page, query.PageSize, r.existing+len(r.created)), nil
}

func (r *recordingProducts) Get(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return nil, nil
}

func (r *recordingProducts) Create(ctx context.Context, input service.ProductInput) (*domain.Product, error) {
	r.created = append(r.created, input)
	return &domain.Product{Base: domain.Base{ID: uuid.New()}, Name: input.Name, Price: input.Price}, nil
}

func (r *recordingProducts) Update(ctx context.Context, id uuid.UUID, input service.ProductInput) (*domain.Product, error) {
	return nil, nil
}

func (r *recordingProducts) Delete(ctx context.Context, id uuid.UUID) error {
	return nil
}

func (r *recordingProducts) SetPrimaryImage(ctx context.Context, productID, imageID uuid.UUID) (*domain.Product, error) {
	return nil, nil
}

type recordingCategories struct {
	created []*domain.Category
}

func (r *recordingCategories) List(ctx context.Context) ([]*domain.Category, error) {
	return r.created, nil
}

func (r *recordingCategories) Get(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	return nil, nil
}

func (r *recordingCategories) Create(ctx context.Context, name, description string) (*domain.Category, error) {
	category := &domain.Category{Base: domain.Base{ID: uuid.New()}, Name: name, Description: description}
	r.created = append(r.created, category)
	return category, nil
}

func (r *recordingCategories) Update(ctx context.Context, id uuid.UUID, name, description string) (*domain.Category, error) {
	return nil, nil
}

func (r *recordingCategories) Delete(ctx context.Context, id uuid.UUID) error {
	return nil
}

func TestSeeder_SeedsEmptyCatalog(t *testing.T) {
	products := &recordingProducts{}
	categories := &recordingCategories{}

	seeded, err := New(products, categories, zap.NewNop()).Run(context.Background())

	require.NoError(t, err)
	assert.True(t, seeded)
	require.Len(t, categories.created, 8)
	require.Len(t, products.created, 8*ProductsPerCategory)

	perCategory := map[uuid.UUID]int{}
	for _, input := range products.created {
		require.Len(t, input.CategoryIDs, 1, "seeded categories do not overlap")
		perCategory[input.CategoryIDs[0]]++

		assert.True(t, input.Price.IsPositive())
		assert.NotEmpty(t, input.Description)
		primaries := 0
		for _, img := range input.Images {
			if img.IsPrimary {
				primaries++
			}
		}
		assert.Equal(t, 1, primaries)
	}
	for _, c := range categories.created {
		assert.Equal(t, ProductsPerCategory, perCategory[c.ID], c.Name)
	}
}

func TestSeeder_SkipsPopulatedCatalog(t *testing.T) {
	products := &recordingProducts{existing: 3}
	categories := &recordingCategories{}

	seeded, err := New(products, categories, zap.NewNop()).Run(context.Background())

	require.NoError(t, err)
	assert.False(t, seeded)
	assert.Empty(t, categories.created)
	assert.Empty(t, products.created)
}

func TestSeeder_SecondRunIsNoop(t *testing.T) {
	products := &recordingProducts{}
	seeder := New(products, &recordingCategories{}, zap.NewNop())

	_, err := seeder.Run(context.Background())
	require.NoError(t, err)
	seeded, err := seeder.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, seeded)
	assert.Len(t, products.created, 8*ProductsPerCategory)
}
