package repositories

import (
	"storefront/internal/models"
)

// StockDecrement is one inventory mutation applied during settlement.
type StockDecrement struct {
	ProductID string
	Quantity  int
}

// OrderRepository defines the interface for order data access.
type OrderRepository interface {
	GetAll() ([]models.Order, error)
	GetByID(id string) (*models.Order, error)
	// GetByPaymentReference looks up the order settled for a processor
	// payment reference; ErrNotFound if none exists.
	GetByPaymentReference(ref string) (*models.Order, error)
	ListByUser(userID string) ([]models.Order, error)
	// CreateSettled atomically persists the order with its items and applies
	// every stock decrement, each guarded so stock cannot go negative. On any
	// failure nothing is persisted. Returns ErrDuplicatePaymentReference if
	// an order already exists for order.PaymentReference, and ErrStockConflict
	// if a decrement would overdraw stock.
	CreateSettled(order *models.Order, decrements []StockDecrement) error
	UpdateStatus(id string, status string) error
}
