package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is the catalog aggregate root
type Product struct {
	Base
	Name       string             `json:"name" db:"name"`
	Price      decimal.Decimal    `json:"price" db:"price"`
	IsFeatured bool               `json:"is_featured" db:"is_featured"`
	Detail     *ProductDetail     `json:"detail,omitempty"`
	Images     []*ProductImage    `json:"images,omitempty"`
	Reviews    []*ProductReview   `json:"reviews,omitempty"`
	Categories []*ProductCategory `json:"categories,omitempty"`
}

// ProductDetail holds the long-form description of a product, one per product
type ProductDetail struct {
	Base
	ProductID   uuid.UUID `json:"product_id" db:"product_id"`
	Description string    `json:"description" db:"description"`
	Warranty    string    `json:"warranty" db:"warranty"`
}

func (d *ProductDetail) OwnerProductID() uuid.UUID { return d.ProductID }

// ProductImage is a product picture; exactly one image per product is primary
type ProductImage struct {
	Base
	ProductID uuid.UUID `json:"product_id" db:"product_id"`
	URL       string    `json:"url" db:"url"`
	IsPrimary bool      `json:"is_primary" db:"is_primary"`
	Position  int       `json:"position" db:"position"`
}

func (i *ProductImage) OwnerProductID() uuid.UUID { return i.ProductID }

// ProductCategory links a product to a category
type ProductCategory struct {
	Timestamps
	ProductID  uuid.UUID `json:"product_id" db:"product_id"`
	CategoryID uuid.UUID `json:"category_id" db:"category_id"`
}

func (pc *ProductCategory) OwnerProductID() uuid.UUID { return pc.ProductID }

// ProductSummary is the list projection of a product with its derived figures
type ProductSummary struct {
	ID            uuid.UUID       `json:"id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	IsFeatured    bool            `json:"is_featured"`
	ThumbnailURL  string          `json:"thumbnail_url"`
	AverageRating float64         `json:"average_rating"`
	ReviewCount   int             `json:"review_count"`
	Timestamps
}

// ProductPage is one page of a filtered product listing
type ProductPage struct {
	Items      []*ProductSummary `json:"items"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
	TotalItems int               `json:"total_items"`
	TotalPages int               `json:"total_pages"`
}

// NewProductPage derives the page count from the total item count
func NewProductPage(items []*ProductSummary, page, pageSize, total int) *ProductPage {
	if items == nil {
		items = []*ProductSummary{}
	}
	totalPages := 0
	if pageSize > 0 {
		totalPages = (total + pageSize - 1) / pageSize
	}
	return &ProductPage{
		Items:      items,
		Page:       page,
		PageSize:   pageSize,
		TotalItems: total,
		TotalPages: totalPages,
	}
}

// CategoryIDs returns the ids of the categories the product is linked to
func (p *Product) CategoryIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(p.Categories))
	for _, link := range p.Categories {
		ids = append(ids, link.CategoryID)
	}
	return ids
}

// ThumbnailURL returns the primary image URL, falling back to the first image
// and then to an empty string
func (p *Product) ThumbnailURL() string {
	return ThumbnailURL(p.Images)
}

// ThumbnailURL picks the display image of an image set
func ThumbnailURL(images []*ProductImage) string {
	for _, img := range images {
		if img.IsPrimary {
			return img.URL
		}
	}
	if len(images) > 0 {
		return images[0].URL
	}
	return ""
}

// NormalizePrimary leaves exactly one image flagged primary: the first flagged
// one, or the first image when none is flagged
func NormalizePrimary(images []*ProductImage) {
	primary := -1
	for i, img := range images {
		if img.IsPrimary && primary < 0 {
			primary = i
		}
	}
	if primary < 0 {
		primary = 0
	}
	for i, img := range images {
		img.IsPrimary = i == primary
	}
}

// AverageRating returns the product's mean rating, 0 without reviews
func (p *Product) AverageRating() float64 {
	return AverageRating(p.Reviews)
}
