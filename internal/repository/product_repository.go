package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"gamestore/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrImageNotFound   = errors.New("product image not found")
)

// ProductFilter selects one page of the catalog. A product matches when it
// belongs to any of CategoryIDs; no ids match everything.
type ProductFilter struct {
	CategoryIDs []uuid.UUID
	Page        int
	PageSize    int
}

// Offset returns the number of rows skipped before the page. It saturates at
// math.MaxInt instead of wrapping, so a page past the end stays empty.
func (f ProductFilter) Offset() int {
	if f.Page <= 1 || f.PageSize <= 0 {
		return 0
	}
	if f.Page-1 > math.MaxInt/f.PageSize {
		return math.MaxInt
	}
	return (f.Page - 1) * f.PageSize
}

// ProductRepository defines the interface for product reads. Writes go through UnitOfWork.
type ProductRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	List(ctx context.Context, filter ProductFilter) ([]*domain.ProductSummary, int, error)
}

type productRepository struct {
	db DBTX
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db DBTX) ProductRepository {
	return &productRepository{db: db}
}

// FindByID loads the whole product aggregate
func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := `
		SELECT id, name, price, is_featured, created_at, updated_at
		FROM products
		WHERE id = $1
	`

	product := &domain.Product{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&product.ID,
		&product.Name,
		&product.Price,
		&product.IsFeatured,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}

	if product.Detail, err = r.findDetail(ctx, id); err != nil {
		return nil, err
	}
	if product.Images, err = r.findImages(ctx, id); err != nil {
		return nil, err
	}
	if product.Categories, err = r.findCategoryLinks(ctx, id); err != nil {
		return nil, err
	}
	if product.Reviews, err = NewReviewRepository(r.db).ListByProduct(ctx, id); err != nil {
		return nil, err
	}

	return product, nil
}

// Exists reports whether a product with id exists
func (r *productRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check product: %w", err)
	}
	return exists, nil
}

// List returns one page of product summaries in creation order and the
// number of products matching the filter before pagination
func (r *productRepository) List(ctx context.Context, filter ProductFilter) ([]*domain.ProductSummary, int, error) {
	whereClause := ""
	args := []interface{}{}
	argIndex := 1

	if len(filter.CategoryIDs) > 0 {
		whereClause = fmt.Sprintf(`
		WHERE EXISTS (
			SELECT 1 FROM product_categories pc
			WHERE pc.product_id = p.id AND pc.category_id IN (%s)
		)`, placeholders(argIndex, len(filter.CategoryIDs)))
		args = append(args, uuidArgs(filter.CategoryIDs)...)
		argIndex += len(filter.CategoryIDs)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM products p %s", whereClause)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	if total == 0 {
		return []*domain.ProductSummary{}, 0, nil
	}

	query := fmt.Sprintf(`
		SELECT p.id, p.name, p.price, p.is_featured, p.created_at, p.updated_at,
		       COALESCE(img.url, ''),
		       COALESCE(rv.average_rating, 0),
		       COALESCE(rv.review_count, 0)
		FROM products p
		LEFT JOIN LATERAL (
			SELECT url FROM product_images
			WHERE product_id = p.id
			ORDER BY is_primary DESC, position ASC, id ASC
			LIMIT 1
		) img ON TRUE
		LEFT JOIN LATERAL (
			SELECT AVG(rating)::float8 AS average_rating, COUNT(*) AS review_count
			FROM product_reviews
			WHERE product_id = p.id
		) rv ON TRUE
		%s
		ORDER BY p.created_at ASC, p.id ASC
		LIMIT $%d OFFSET $%d
	`, whereClause, argIndex, argIndex+1)

	args = append(args, filter.PageSize, filter.Offset())

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []*domain.ProductSummary{}
	for rows.Next() {
		p := &domain.ProductSummary{}
		err := rows.Scan(
			&p.ID,
			&p.Name,
			&p.Price,
			&p.IsFeatured,
			&p.CreatedAt,
			&p.UpdatedAt,
			&p.ThumbnailURL,
			&p.AverageRating,
			&p.ReviewCount,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating products: %w", err)
	}

	return products, total, nil
}

func (r *productRepository) findDetail(ctx context.Context, productID uuid.UUID) (*domain.ProductDetail, error) {
	query := `
		SELECT id, product_id, description, warranty, created_at, updated_at
		FROM product_details
		WHERE product_id = $1
	`

	detail := &domain.ProductDetail{}
	err := r.db.QueryRowContext(ctx, query, productID).Scan(
		&detail.ID,
		&detail.ProductID,
		&detail.Description,
		&detail.Warranty,
		&detail.CreatedAt,
		&detail.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find product detail: %w", err)
	}
	return detail, nil
}

func (r *productRepository) findImages(ctx context.Context, productID uuid.UUID) ([]*domain.ProductImage, error) {
	query := `
		SELECT id, product_id, url, is_primary, position, created_at, updated_at
		FROM product_images
		WHERE product_id = $1
		ORDER BY position ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list product images: %w", err)
	}
	defer rows.Close()

	images := []*domain.ProductImage{}
	for rows.Next() {
		img := &domain.ProductImage{}
		if err := rows.Scan(&img.ID, &img.ProductID, &img.URL, &img.IsPrimary, &img.Position, &img.CreatedAt, &img.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product image: %w", err)
		}
		images = append(images, img)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating product images: %w", err)
	}
	return images, nil
}

func (r *productRepository) findCategoryLinks(ctx context.Context, productID uuid.UUID) ([]*domain.ProductCategory, error) {
	query := `
		SELECT product_id, category_id, created_at, updated_at
		FROM product_categories
		WHERE product_id = $1
		ORDER BY created_at ASC, category_id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list product categories: %w", err)
	}
	defer rows.Close()

	links := []*domain.ProductCategory{}
	for rows.Next() {
		link := &domain.ProductCategory{}
		if err := rows.Scan(&link.ProductID, &link.CategoryID, &link.CreatedAt, &link.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product category: %w", err)
		}
		links = append(links, link)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating product categories: %w", err)
	}
	return links, nil
}

func insertProduct(ctx context.Context, q DBTX, p *domain.Product) error {
	query := `
		INSERT INTO products (id, name, price, is_featured, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := q.ExecContext(ctx, query, p.ID, p.Name, p.Price, p.IsFeatured, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// updateProduct writes every column except created_at
func updateProduct(ctx context.Context, q DBTX, p *domain.Product) error {
	query := `
		UPDATE products
		SET name = $2, price = $3, is_featured = $4, updated_at = $5
		WHERE id = $1
	`
	result, err := q.ExecContext(ctx, query, p.ID, p.Name, p.Price, p.IsFeatured, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	return expectRow(result, ErrProductNotFound)
}

// touchProduct refreshes updated_at of a product known only by id
func touchProduct(ctx context.Context, q DBTX, p *domain.Product) error {
	result, err := q.ExecContext(ctx, `UPDATE products SET updated_at = $2 WHERE id = $1`, p.ID, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to touch product: %w", err)
	}
	return expectRow(result, ErrProductNotFound)
}

func deleteProduct(ctx context.Context, q DBTX, id uuid.UUID) error {
	result, err := q.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return expectRow(result, ErrProductNotFound)
}

func insertDetail(ctx context.Context, q DBTX, d *domain.ProductDetail) error {
	query := `
		INSERT INTO product_details (id, product_id, description, warranty, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := q.ExecContext(ctx, query, d.ID, d.ProductID, d.Description, d.Warranty, d.CreatedAt, d.UpdatedAt); err != nil {
		return fmt.Errorf("failed to create product detail: %w", err)
	}
	return nil
}

func updateDetail(ctx context.Context, q DBTX, d *domain.ProductDetail) error {
	query := `
		UPDATE product_details
		SET description = $2, warranty = $3, updated_at = $4
		WHERE id = $1
	`
	if _, err := q.ExecContext(ctx, query, d.ID, d.Description, d.Warranty, d.UpdatedAt); err != nil {
		return fmt.Errorf("failed to update product detail: %w", err)
	}
	return nil
}

func deleteDetail(ctx context.Context, q DBTX, d *domain.ProductDetail) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM product_details WHERE id = $1`, d.ID); err != nil {
		return fmt.Errorf("failed to delete product detail: %w", err)
	}
	return nil
}

func insertImage(ctx context.Context, q DBTX, img *domain.ProductImage) error {
	query := `
		INSERT INTO product_images (id, product_id, url, is_primary, position, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := q.ExecContext(ctx, query, img.ID, img.ProductID, img.URL, img.IsPrimary, img.Position, img.CreatedAt, img.UpdatedAt); err != nil {
		return fmt.Errorf("failed to create product image: %w", err)
	}
	return nil
}

func updateImage(ctx context.Context, q DBTX, img *domain.ProductImage) error {
	query := `
		UPDATE product_images
		SET url = $2, is_primary = $3, position = $4, updated_at = $5
		WHERE id = $1
	`
	result, err := q.ExecContext(ctx, query, img.ID, img.URL, img.IsPrimary, img.Position, img.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update product image: %w", err)
	}
	return expectRow(result, ErrImageNotFound)
}

func deleteImage(ctx context.Context, q DBTX, img *domain.ProductImage) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM product_images WHERE id = $1`, img.ID); err != nil {
		return fmt.Errorf("failed to delete product image: %w", err)
	}
	return nil
}

func insertProductCategory(ctx context.Context, q DBTX, link *domain.ProductCategory) error {
	query := `
		INSERT INTO product_categories (product_id, category_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := q.ExecContext(ctx, query, link.ProductID, link.CategoryID, link.CreatedAt, link.UpdatedAt)
	if err != nil {
		if constraintViolation(err, pgForeignKeyViolation, "fk_product_categories_category") {
			return ErrCategoryNotFound
		}
		return fmt.Errorf("failed to link product to category: %w", err)
	}
	return nil
}

func updateProductCategory(ctx context.Context, q DBTX, link *domain.ProductCategory) error {
	query := `
		UPDATE product_categories SET updated_at = $3
		WHERE product_id = $1 AND category_id = $2
	`
	if _, err := q.ExecContext(ctx, query, link.ProductID, link.CategoryID, link.UpdatedAt); err != nil {
		return fmt.Errorf("failed to update product category: %w", err)
	}
	return nil
}

func deleteProductCategory(ctx context.Context, q DBTX, link *domain.ProductCategory) error {
	query := `DELETE FROM product_categories WHERE product_id = $1 AND category_id = $2`
	if _, err := q.ExecContext(ctx, query, link.ProductID, link.CategoryID); err != nil {
		return fmt.Errorf("failed to unlink product from category: %w", err)
	}
	return nil
}
