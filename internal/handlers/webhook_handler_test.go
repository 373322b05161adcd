package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"storefront/internal/handlers"
	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/services"
	"storefront/pkg/payment"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubGateway returns canned webhook parse results and records checkout
// session requests.
type stubGateway struct {
	event    *payment.Event
	parseErr error

	session    *payment.Session
	sessionErr error
	lastReq    *payment.CheckoutRequest
}

func (g *stubGateway) CreateCheckoutSession(req payment.CheckoutRequest) (*payment.Session, error) {
	g.lastReq = &req
	if g.sessionErr != nil {
		return nil, g.sessionErr
	}
	return g.session, nil
}

func (g *stubGateway) ParseWebhookEvent(payload []byte, sigHeader string) (*payment.Event, error) {
	if g.parseErr != nil {
		return nil, g.parseErr
	}
	return g.event, nil
}

func setupWebhookApp(gateway payment.Gateway) (*fiber.App, *repositories.MockProductRepository, *repositories.MockOrderRepository) {
	productRepo := repositories.NewMockProductRepository()
	orderRepo := repositories.NewMockOrderRepository(productRepo)
	settlement := services.NewSettlementService(orderRepo, productRepo, nil)

	app := fiber.New()
	handlers.NewWebhookHandler(gateway, settlement).RegisterRoutes(app.Group("/api/v1"))
	return app, productRepo, orderRepo
}

func postWebhook(t *testing.T, app *fiber.App) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/v1/webhooks/payment", bytes.NewBufferString(`{}`))
	req.Header.Set(payment.SignatureHeader, "t=0,v1=stub")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]interface{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &body))
	return resp.StatusCode, body
}

func TestWebhookHandler_RejectsUnverifiedPayload(t *testing.T) {
	app, _, orderRepo := setupWebhookApp(&stubGateway{
		parseErr: fmt.Errorf("webhook signature verification failed"),
	})

	status, body := postWebhook(t, app)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Contains(t, body["error"], "invalid webhook")

	orders, _ := orderRepo.GetAll()
	assert.Empty(t, orders)
}

func TestWebhookHandler_AcknowledgesIgnoredEvents(t *testing.T) {
	app, _, orderRepo := setupWebhookApp(&stubGateway{
		event: &payment.Event{Kind: payment.EventIgnored, Type: "payment_intent.created"},
	})

	status, body := postWebhook(t, app)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["received"])
	assert.NotContains(t, body, "order_id")

	orders, _ := orderRepo.GetAll()
	assert.Empty(t, orders)
}

func TestWebhookHandler_SettlesCompletedPayment(t *testing.T) {
	app, productRepo, orderRepo := setupWebhookApp(&stubGateway{
		event: &payment.Event{
			Kind: payment.EventCheckoutCompleted,
			Type: "checkout.session.completed",
			Confirmation: &payment.Confirmation{
				PaymentReference: "cs_settle_1",
				UserID:           "user-1",
				Lines:            []payment.CartLine{{ProductID: "p1", Quantity: 2}},
			},
		},
	})
	require.NoError(t, productRepo.Create(&models.Product{
		ID: "p1", Name: "Widget", Price: decimal.NewFromFloat(10.00), Stock: 5,
	}))

	status, body := postWebhook(t, app)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["received"])
	assert.NotEmpty(t, body["order_id"])

	order, err := orderRepo.GetByPaymentReference("cs_settle_1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, order.Status)

	p1, err := productRepo.GetByID("p1")
	require.NoError(t, err)
	assert.Equal(t, 3, p1.Stock)
}

func TestWebhookHandler_DuplicateDeliveryReturnsSameOrder(t *testing.T) {
	app, productRepo, orderRepo := setupWebhookApp(&stubGateway{
		event: &payment.Event{
			Kind: payment.EventCheckoutCompleted,
			Type: "checkout.session.completed",
			Confirmation: &payment.Confirmation{
				PaymentReference: "cs_dup",
				Lines:            []payment.CartLine{{ProductID: "p1", Quantity: 1}},
			},
		},
	})
	require.NoError(t, productRepo.Create(&models.Product{
		ID: "p1", Name: "Widget", Price: decimal.NewFromFloat(10.00), Stock: 5,
	}))

	status, first := postWebhook(t, app)
	assert.Equal(t, fiber.StatusOK, status)

	status, second := postWebhook(t, app)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, first["order_id"], second["order_id"])

	orders, _ := orderRepo.GetAll()
	assert.Len(t, orders, 1)

	p1, err := productRepo.GetByID("p1")
	require.NoError(t, err)
	assert.Equal(t, 4, p1.Stock, "stock decremented exactly once")
}

func TestWebhookHandler_StockConflictAsksForRetry(t *testing.T) {
	app, productRepo, orderRepo := setupWebhookApp(&stubGateway{
		event: &payment.Event{
			Kind: payment.EventCheckoutCompleted,
			Type: "checkout.session.completed",
			Confirmation: &payment.Confirmation{
				PaymentReference: "cs_conflict",
				Lines:            []payment.CartLine{{ProductID: "p1", Quantity: 10}},
			},
		},
	})
	require.NoError(t, productRepo.Create(&models.Product{
		ID: "p1", Name: "Scarce", Price: decimal.NewFromFloat(10.00), Stock: 1,
	}))

	status, body := postWebhook(t, app)
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Contains(t, body["error"], "settlement failed")

	orders, _ := orderRepo.GetAll()
	assert.Empty(t, orders)
	p1, err := productRepo.GetByID("p1")
	require.NoError(t, err)
	assert.Equal(t, 1, p1.Stock)
}

func TestWebhookHandler_AcknowledgesWhenNothingToSettle(t *testing.T) {
	// All cart products gone from the catalog: retrying cannot help, so the
	// delivery is acknowledged without creating an order.
	app, _, orderRepo := setupWebhookApp(&stubGateway{
		event: &payment.Event{
			Kind: payment.EventCheckoutCompleted,
			Type: "checkout.session.completed",
			Confirmation: &payment.Confirmation{
				PaymentReference: "cs_vanished",
				Lines:            []payment.CartLine{{ProductID: "ghost", Quantity: 1}},
			},
		},
	})

	status, body := postWebhook(t, app)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["received"])

	orders, _ := orderRepo.GetAll()
	assert.Empty(t, orders)
}
