package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderProcessing OrderStatus = "processing"
	OrderFinalized  OrderStatus = "finalized"
)

// Valid reports whether s is a persisted order state.
func (s OrderStatus) Valid() bool {
	return s == OrderProcessing || s == OrderFinalized
}

type Order struct {
	BaseModel
	UserID uuid.UUID       `gorm:"type:uuid;index" json:"user_id"`
	Items  []OrderItem     `gorm:"constraint:OnDelete:CASCADE" json:"items"`
	Total  decimal.Decimal `gorm:"type:numeric(12,2)" json:"total"`
	Status OrderStatus     `gorm:"type:varchar(16);index" json:"status"`
}

type OrderItem struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	OrderID   uuid.UUID `gorm:"type:uuid;index" json:"-"`
	Position  int       `json:"-"`
	ProductID uuid.UUID `gorm:"type:uuid" json:"product_id"`
	Quantity  int       `json:"quantity"`
}

// OrderDetail is an order with its owner and products resolved for display.
type OrderDetail struct {
	ID               uuid.UUID         `json:"id"`
	Status           OrderStatus       `json:"status"`
	Total            decimal.Decimal   `json:"total"`
	Owner            OrderOwner        `json:"user"`
	Items            []OrderItemDetail `json:"items"`
	CreatedAt        time.Time         `json:"created_at"`
	CreatedAtDisplay string            `json:"created_at_display"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

type OrderOwner struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

type OrderItemDetail struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}
