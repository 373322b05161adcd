package services

import (
	"fmt"

	"storefront/internal/models"
	"storefront/internal/repositories"
)

// Requester is the identity and role attached to a query. It is passed
// explicitly into each operation rather than read from ambient state.
type Requester struct {
	UserID string
	Role   string
}

// IsAdmin reports whether the requester has the admin role.
func (r Requester) IsAdmin() bool { return r.Role == models.RoleAdmin }

// OrderService handles the read-only order surface and admin status updates.
// Order creation happens exclusively in SettlementService.
type OrderService struct {
	orderRepo repositories.OrderRepository
}

// NewOrderService creates a new OrderService.
func NewOrderService(orderRepo repositories.OrderRepository) *OrderService {
	return &OrderService{
		orderRepo: orderRepo,
	}
}

// GetAllOrders retrieves all orders. Admin only.
func (s *OrderService) GetAllOrders(req Requester) ([]models.Order, error) {
	if !req.IsAdmin() {
		return nil, fmt.Errorf("listing all orders: %w", ErrForbidden)
	}
	return s.orderRepo.GetAll()
}

// ListUserOrders retrieves the requester's own orders.
func (s *OrderService) ListUserOrders(req Requester) ([]models.Order, error) {
	return s.orderRepo.ListByUser(req.UserID)
}

// GetOrderByID retrieves a single order, gated to its owner or an admin.
// Guest orders (no owning user) are visible to admins only.
func (s *OrderService) GetOrderByID(id string, req Requester) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(order, req); err != nil {
		return nil, err
	}
	return order, nil
}

// ResolveOrderByPaymentReference maps a payment reference to the settled
// order's ID, with the same owner-or-admin gating as GetOrderByID. Used by
// the post-checkout success page.
func (s *OrderService) ResolveOrderByPaymentReference(ref string, req Requester) (string, error) {
	order, err := s.orderRepo.GetByPaymentReference(ref)
	if err != nil {
		return "", err
	}
	if err := s.authorize(order, req); err != nil {
		return "", err
	}
	return order.ID, nil
}

// UpdateOrderStatus updates the status of an existing order. Admin only.
func (s *OrderService) UpdateOrderStatus(id string, status string, req Requester) error {
	if !req.IsAdmin() {
		return fmt.Errorf("updating order status: %w", ErrForbidden)
	}
	if !models.ValidOrderStatus(status) {
		return fmt.Errorf("invalid order status: %s", status)
	}
	if err := s.orderRepo.UpdateStatus(id, status); err != nil {
		return fmt.Errorf("failed to update order status for order %s: %w", id, err)
	}
	return nil
}

func (s *OrderService) authorize(order *models.Order, req Requester) error {
	if req.IsAdmin() {
		return nil
	}
	if order.UserID == nil || *order.UserID != req.UserID {
		return fmt.Errorf("order %s: %w", order.ID, ErrForbidden)
	}
	return nil
}
