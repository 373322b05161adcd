package repositories

import (
	"fmt"
	"sync"
	"time"

	"storefront/internal/models"

	"github.com/google/uuid"
)

// MockOrderRepository is an in-memory implementation of OrderRepository.
// It needs a product repository to honor CreateSettled's stock semantics.
type MockOrderRepository struct {
	orders   map[string]models.Order
	byRef    map[string]string // payment reference -> order ID
	products *MockProductRepository
	mu       sync.RWMutex
}

// NewMockOrderRepository creates a new instance of MockOrderRepository.
// products may be nil if CreateSettled is never exercised.
func NewMockOrderRepository(products *MockProductRepository) *MockOrderRepository {
	return &MockOrderRepository{
		orders:   make(map[string]models.Order),
		byRef:    make(map[string]string),
		products: products,
	}
}

// GetAll returns all orders.
func (r *MockOrderRepository) GetAll() ([]models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	orderList := make([]models.Order, 0, len(r.orders))
	for _, order := range r.orders {
		orderList = append(orderList, order)
	}
	return orderList, nil
}

// GetByID returns an order by its ID.
func (r *MockOrderRepository) GetByID(id string) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, fmt.Errorf("order with ID %s: %w", id, ErrNotFound)
	}
	return &order, nil
}

// GetByPaymentReference returns the order settled for a payment reference.
func (r *MockOrderRepository) GetByPaymentReference(ref string) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byRef[ref]
	if !ok {
		return nil, fmt.Errorf("order with payment reference %s: %w", ref, ErrNotFound)
	}
	order := r.orders[id]
	return &order, nil
}

// ListByUser returns all orders placed by a user.
func (r *MockOrderRepository) ListByUser(userID string) ([]models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var orderList []models.Order
	for _, order := range r.orders {
		if order.UserID != nil && *order.UserID == userID {
			orderList = append(orderList, order)
		}
	}
	return orderList, nil
}

// CreateSettled mirrors the transactional GORM implementation: the payment
// reference must be unused and every decrement must fit within current
// stock, otherwise nothing is applied.
func (r *MockOrderRepository) CreateSettled(order *models.Order, decrements []StockDecrement) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byRef[order.PaymentReference]; exists {
		return fmt.Errorf("order for payment reference %s: %w",
			order.PaymentReference, ErrDuplicatePaymentReference)
	}

	r.products.mu.Lock()
	defer r.products.mu.Unlock()

	// Validate every decrement before applying any, so a conflict on one
	// line leaves all stock untouched.
	for _, d := range decrements {
		product, ok := r.products.products[d.ProductID]
		if !ok {
			return fmt.Errorf("product with ID %s: %w", d.ProductID, ErrNotFound)
		}
		if product.Stock < d.Quantity {
			return fmt.Errorf("product %s: %w", d.ProductID, ErrStockConflict)
		}
	}
	for _, d := range decrements {
		product := r.products.products[d.ProductID]
		product.Stock -= d.Quantity
		r.products.products[d.ProductID] = product
	}

	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	order.CreatedAt = time.Now()
	order.UpdatedAt = time.Now()
	r.orders[order.ID] = *order
	r.byRef[order.PaymentReference] = order.ID
	return nil
}

// UpdateStatus updates the status of an order.
func (r *MockOrderRepository) UpdateStatus(id string, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return fmt.Errorf("order with ID %s not found for status update: %w", id, ErrNotFound)
	}
	order.Status = status
	order.UpdatedAt = time.Now()
	r.orders[id] = order
	return nil
}
