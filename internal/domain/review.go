package domain

import (
	"github.com/google/uuid"
)

const (
	MinRating = 1
	MaxRating = 5
)

// ProductReview is a customer's rating of a product. A user reviews a product at most once.
type ProductReview struct {
	Base
	ProductID uuid.UUID `json:"product_id" db:"product_id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Rating    int       `json:"rating" db:"rating"`
	Title     *string   `json:"title,omitempty" db:"title"`
	Text      *string   `json:"text,omitempty" db:"text"`
}

func (r *ProductReview) OwnerProductID() uuid.UUID { return r.ProductID }

// AverageRating is the arithmetic mean of the ratings, or 0 when there are none
func AverageRating(reviews []*ProductReview) float64 {
	if len(reviews) == 0 {
		return 0
	}
	sum := 0
	for _, r := range reviews {
		sum += r.Rating
	}
	return float64(sum) / float64(len(reviews))
}
