package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order status values. An order is created directly in StatusPaid by
// settlement; the remaining states are driven by admin updates.
const (
	OrderStatusPending   = "PENDING"
	OrderStatusPaid      = "PAID"
	OrderStatusShipped   = "SHIPPED"
	OrderStatusDelivered = "DELIVERED"
	OrderStatusCancelled = "CANCELLED"
)

// ValidOrderStatus reports whether s is a known order status.
func ValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// OrderItem is a single line within an order. PriceAtPurchase is the product
// price snapshotted at settlement time and is never updated afterwards.
type OrderItem struct {
	ID              uint            `json:"id" gorm:"primaryKey"`
	OrderID         string          `json:"order_id" gorm:"type:varchar(36);index;not null"`
	ProductID       string          `json:"product_id" gorm:"type:varchar(36);not null"`
	Quantity        int             `json:"quantity" gorm:"not null"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase" gorm:"type:numeric(12,2);not null"`
}

// Order represents a settled customer order. PaymentReference is the payment
// processor's session id and is unique: a duplicate webhook delivery for the
// same reference must never create a second order.
type Order struct {
	ID               string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID           *string         `json:"user_id,omitempty" gorm:"type:varchar(36);index"` // nil for guest checkout
	PaymentReference string          `json:"payment_reference" gorm:"uniqueIndex;type:varchar(255);not null"`
	TotalAmount      decimal.Decimal `json:"total_amount" gorm:"type:numeric(12,2);not null"`
	Status           string          `json:"status" gorm:"type:varchar(20);not null"`
	Items            []OrderItem     `json:"items" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// CheckoutItem is one line of a client-submitted cart. DisplayName and
// DisplayImage are cosmetic; pricing always comes from the catalog.
type CheckoutItem struct {
	ProductID    string `json:"product_id" validate:"required"`
	Quantity     int    `json:"quantity" validate:"required,min=1"`
	DisplayName  string `json:"display_name" validate:"omitempty,max=200"`
	DisplayImage string `json:"display_image" validate:"omitempty,url"`
}
