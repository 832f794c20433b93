package domain

import (
	"time"

	"github.com/google/uuid"
)

// Timestamps holds the creation and modification times of a persisted entity
type Timestamps struct {
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Stamps returns the timestamps so the unit of work can assign them at save time
func (t *Timestamps) Stamps() *Timestamps {
	return t
}

// Base is embedded by every entity that has its own identity
type Base struct {
	ID uuid.UUID `json:"id" db:"id"`
	Timestamps
}

// Entity is anything the unit of work can stamp
type Entity interface {
	Stamps() *Timestamps
}

// ProductOwned is implemented by entities whose lifecycle belongs to a product.
// Saving one of them refreshes the owning product's UpdatedAt.
type ProductOwned interface {
	Entity
	OwnerProductID() uuid.UUID
}
