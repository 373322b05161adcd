package handlers

import (
	"errors"
	"log"

	"storefront/internal/services"
	"storefront/pkg/payment"

	"github.com/gofiber/fiber/v2"
)

// WebhookHandler receives asynchronous payment confirmations from the
// payment processor and hands completed payments to settlement.
//
// Response codes steer the processor's redelivery: 400 for anything that must
// never be retried (forged signature, missing secret), 200 for events that
// were handled or deliberately ignored, 500 for settlement failures the
// processor should retry later. This handler performs no retries itself.
type WebhookHandler struct {
	gateway    payment.Gateway
	settlement *services.SettlementService
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(gateway payment.Gateway, settlement *services.SettlementService) *WebhookHandler {
	return &WebhookHandler{
		gateway:    gateway,
		settlement: settlement,
	}
}

// RegisterRoutes registers the webhook route with the Fiber app.
func (h *WebhookHandler) RegisterRoutes(router fiber.Router) {
	router.Post("/webhooks/payment", h.HandlePaymentWebhook)
}

// HandlePaymentWebhook verifies and dispatches one webhook delivery.
func (h *WebhookHandler) HandlePaymentWebhook(c *fiber.Ctx) error {
	event, err := h.gateway.ParseWebhookEvent(c.Body(), c.Get(payment.SignatureHeader))
	if err != nil {
		log.Printf("Webhook rejected: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid webhook payload or signature",
		})
	}

	if event.Kind != payment.EventCheckoutCompleted {
		// Acknowledge so the processor stops redelivering event types this
		// system does not act on.
		log.Printf("Ignoring webhook event type %q", event.Type)
		return c.JSON(fiber.Map{"received": true})
	}

	order, err := h.settlement.Settle(*event.Confirmation)
	if err != nil {
		if errors.Is(err, services.ErrNothingToSettle) {
			// Every product in the cart vanished before settlement. Retrying
			// cannot help, so acknowledge; the reconciliation log already
			// carries the dropped lines.
			log.Printf("Acknowledging unsettleable confirmation: %v", err)
			return c.JSON(fiber.Map{"received": true})
		}
		log.Printf("Settlement failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "settlement failed",
		})
	}

	return c.JSON(fiber.Map{
		"received": true,
		"order_id": order.ID,
	})
}
