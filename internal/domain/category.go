package domain

// Category groups products; products link to it through ProductCategory rows
type Category struct {
	Base
	Name        string `json:"name" db:"name"`
	Description string `json:"description" db:"description"`
}
