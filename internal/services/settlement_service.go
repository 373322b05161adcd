package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/pkg/payment"
	"storefront/pkg/rabbitmq"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SettlementService turns a confirmed payment into a durable order plus the
// matching stock decrements, all in one transaction. It is the only writer of
// Product.Stock besides admin edits.
type SettlementService struct {
	orderRepo   repositories.OrderRepository
	productRepo repositories.ProductRepository
	mqClient    *rabbitmq.Client // optional; nil disables event publishing
}

// NewSettlementService creates a new SettlementService.
func NewSettlementService(orderRepo repositories.OrderRepository, productRepo repositories.ProductRepository, mqClient *rabbitmq.Client) *SettlementService {
	return &SettlementService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		mqClient:    mqClient,
	}
}

// Settle creates the order for a confirmed payment.
//
// Prices are re-derived from the catalog at this moment: if a price drifted
// since the checkout intent was built, the settlement-time price is the one
// recorded. Lines whose product no longer exists are dropped with a
// reconciliation warning in the log, since the processor already charged the
// intent-time amount. A duplicate delivery for the same payment reference is
// a no-op that returns the already-settled order.
func (s *SettlementService) Settle(conf payment.Confirmation) (*models.Order, error) {
	if conf.PaymentReference == "" {
		return nil, fmt.Errorf("confirmation has no payment reference")
	}
	if len(conf.Lines) == 0 {
		return nil, fmt.Errorf("confirmation for %s: %w", conf.PaymentReference, ErrNothingToSettle)
	}

	ids := make([]string, 0, len(conf.Lines))
	for _, line := range conf.Lines {
		ids = append(ids, line.ProductID)
	}
	products, err := s.productRepo.GetByIDs(ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load products for settlement: %w", err)
	}
	byID := make(map[string]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	totalAmount := decimal.Zero
	items := make([]models.OrderItem, 0, len(conf.Lines))
	decrements := make([]repositories.StockDecrement, 0, len(conf.Lines))

	for _, line := range conf.Lines {
		product, ok := byID[line.ProductID]
		if !ok {
			// The charged amount now exceeds the recorded total; flag it for
			// reconciliation instead of failing the whole settlement.
			log.Printf("reconciliation: product %s vanished between checkout and settlement of %s, dropping line (qty %d)",
				line.ProductID, conf.PaymentReference, line.Quantity)
			continue
		}
		items = append(items, models.OrderItem{
			ProductID:       product.ID,
			Quantity:        line.Quantity,
			PriceAtPurchase: product.Price,
		})
		totalAmount = totalAmount.Add(product.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		decrements = append(decrements, repositories.StockDecrement{
			ProductID: product.ID,
			Quantity:  line.Quantity,
		})
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("settlement of %s: %w", conf.PaymentReference, ErrNothingToSettle)
	}

	order := &models.Order{
		ID:               uuid.New().String(),
		PaymentReference: conf.PaymentReference,
		TotalAmount:      totalAmount,
		Status:           models.OrderStatusPaid,
		Items:            items,
	}
	if conf.UserID != "" {
		userID := conf.UserID
		order.UserID = &userID
	}

	if err := s.orderRepo.CreateSettled(order, decrements); err != nil {
		if errors.Is(err, repositories.ErrDuplicatePaymentReference) {
			// Duplicate delivery: the first settlement already committed.
			existing, lookupErr := s.orderRepo.GetByPaymentReference(conf.PaymentReference)
			if lookupErr != nil {
				return nil, fmt.Errorf("duplicate settlement of %s but lookup failed: %w",
					conf.PaymentReference, lookupErr)
			}
			log.Printf("duplicate confirmation for %s ignored, order %s already settled",
				conf.PaymentReference, existing.ID)
			return existing, nil
		}
		return nil, fmt.Errorf("failed to settle order for %s: %w", conf.PaymentReference, err)
	}

	s.publishSettled(order)
	return order, nil
}

// publishSettled emits an order.settled event. Publishing is best effort;
// the order is already durable and consumers can reconcile from the DB.
func (s *SettlementService) publishSettled(order *models.Order) {
	if s.mqClient == nil {
		log.Println("RabbitMQ client is not initialized. Skipping order.settled publication.")
		return
	}

	event := map[string]interface{}{
		"orderID":          order.ID,
		"paymentReference": order.PaymentReference,
		"status":           order.Status,
		"total":            order.TotalAmount,
	}
	if order.UserID != nil {
		event["userID"] = *order.UserID
	}

	body, err := json.Marshal(event)
	if err != nil {
		log.Printf("Failed to marshal order.settled event: %v", err)
		return
	}
	if err := s.mqClient.PublishOrderSettled(body); err != nil {
		log.Printf("Warning: Failed to publish order.settled event for order %s: %v", order.ID, err)
		return
	}
	log.Printf("Successfully published order.settled event for order %s", order.ID)
}
