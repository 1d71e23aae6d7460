package models

import (
	"github.com/shopspring/decimal"
)

// ProductStatus controls catalog visibility.
type ProductStatus string

const (
	ProductActive   ProductStatus = "active"
	ProductInactive ProductStatus = "inactive"
)

// Valid reports whether s is a known product status.
func (s ProductStatus) Valid() bool {
	return s == ProductActive || s == ProductInactive
}

type Product struct {
	BaseModel
	Name        string          `json:"name"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2)" json:"price"`
	Description string          `json:"description"`
	ImageURL    string          `json:"image_url"`
	Status      ProductStatus   `gorm:"type:varchar(16);index;default:active" json:"status"`
	Stock       int             `json:"stock"`
}
