package services

import (
	"fmt"

	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/pkg/payment"

	"github.com/shopspring/decimal"
)

var centsPerUnit = decimal.NewFromInt(100)

// CheckoutService builds checkout intents: it validates a submitted cart
// against the live catalog and opens a hosted checkout session with the
// payment processor. Nothing is persisted and no stock is reserved here; the
// stock check is advisory and the authoritative check happens at settlement.
type CheckoutService struct {
	productRepo repositories.ProductRepository
	gateway     payment.Gateway
}

// NewCheckoutService creates a new CheckoutService.
func NewCheckoutService(productRepo repositories.ProductRepository, gateway payment.Gateway) *CheckoutService {
	return &CheckoutService{
		productRepo: productRepo,
		gateway:     gateway,
	}
}

// BuildIntent validates the cart and creates a checkout session, returning
// the redirect URL for the buyer. userID may be empty for guest checkout.
//
// Pricing always comes from the catalog; any price the client may have seen
// or submitted is ignored. The session metadata carries only product IDs and
// quantities so settlement re-derives prices itself.
func (s *CheckoutService) BuildIntent(items []models.CheckoutItem, userID string) (string, error) {
	if len(items) == 0 {
		return "", fmt.Errorf("checkout rejected: %w", ErrEmptyCart)
	}

	lineItems := make([]payment.LineItem, 0, len(items))
	cartLines := make([]payment.CartLine, 0, len(items))

	for _, item := range items {
		product, err := s.productRepo.GetByID(item.ProductID)
		if err != nil {
			return "", fmt.Errorf("product %s: %w", item.ProductID, ErrProductNotFound)
		}
		if product.Stock < item.Quantity {
			return "", fmt.Errorf("%w for %s: requested %d, only %d left",
				ErrInsufficientStock, product.Name, item.Quantity, product.Stock)
		}

		imageURL := product.ImageURL
		if imageURL == "" {
			imageURL = item.DisplayImage
		}
		lineItems = append(lineItems, payment.LineItem{
			Name:       product.Name,
			ImageURL:   imageURL,
			UnitAmount: product.Price.Mul(centsPerUnit).Round(0).IntPart(),
			Quantity:   item.Quantity,
		})
		cartLines = append(cartLines, payment.CartLine{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}

	session, err := s.gateway.CreateCheckoutSession(payment.CheckoutRequest{
		UserID: userID,
		Items:  lineItems,
		Cart:   cartLines,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create checkout session: %w", err)
	}
	return session.URL, nil
}
