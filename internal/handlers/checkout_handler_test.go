package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"storefront/internal/handlers"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/services"
	"storefront/pkg/payment"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupCheckoutApp wires the checkout route behind a middleware that plants
// the given identity, standing in for the optional-auth middleware.
func setupCheckoutApp(gateway *stubGateway, userID string) (*fiber.App, *repositories.MockProductRepository) {
	productRepo := repositories.NewMockProductRepository()
	service := services.NewCheckoutService(productRepo, gateway)

	app := fiber.New()
	group := app.Group("/api/v1", func(c *fiber.Ctx) error {
		if userID != "" {
			c.Locals(middleware.LocalUserID, userID)
		}
		return c.Next()
	})
	handlers.NewCheckoutHandler(service).RegisterRoutes(group)
	return app, productRepo
}

func postCheckout(t *testing.T, app *fiber.App, body string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/v1/checkout", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var parsed map[string]interface{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &parsed))
	return resp.StatusCode, parsed
}

func TestCheckoutHandler_ReturnsRedirectURL(t *testing.T) {
	gateway := &stubGateway{session: &payment.Session{ID: "cs_1", URL: "https://pay.example/cs_1"}}
	app, productRepo := setupCheckoutApp(gateway, "user-1")

	require.NoError(t, productRepo.Create(&models.Product{
		ID: "p1", Name: "Laptop", Price: decimal.NewFromFloat(1200.00), Stock: 10,
	}))

	status, body := postCheckout(t, app, `{"items":[{"product_id":"p1","quantity":2}]}`)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "https://pay.example/cs_1", body["url"])

	require.NotNil(t, gateway.lastReq)
	assert.Equal(t, "user-1", gateway.lastReq.UserID)
	require.Len(t, gateway.lastReq.Items, 1)
	assert.Equal(t, int64(120000), gateway.lastReq.Items[0].UnitAmount)
	assert.Equal(t, []payment.CartLine{{ProductID: "p1", Quantity: 2}}, gateway.lastReq.Cart)
}

func TestCheckoutHandler_GuestCheckout(t *testing.T) {
	gateway := &stubGateway{session: &payment.Session{ID: "cs_2", URL: "https://pay.example/cs_2"}}
	app, productRepo := setupCheckoutApp(gateway, "")

	require.NoError(t, productRepo.Create(&models.Product{
		ID: "p1", Name: "Mouse", Price: decimal.NewFromFloat(25.00), Stock: 10,
	}))

	status, _ := postCheckout(t, app, `{"items":[{"product_id":"p1","quantity":1}]}`)
	assert.Equal(t, fiber.StatusOK, status)
	require.NotNil(t, gateway.lastReq)
	assert.Empty(t, gateway.lastReq.UserID)
}

func TestCheckoutHandler_RejectsMalformedBody(t *testing.T) {
	app, _ := setupCheckoutApp(&stubGateway{}, "")

	status, _ := postCheckout(t, app, `{"items":`)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestCheckoutHandler_RejectsEmptyCart(t *testing.T) {
	app, _ := setupCheckoutApp(&stubGateway{}, "")

	status, _ := postCheckout(t, app, `{"items":[]}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestCheckoutHandler_RejectsInvalidLine(t *testing.T) {
	app, _ := setupCheckoutApp(&stubGateway{}, "")

	status, _ := postCheckout(t, app, `{"items":[{"product_id":"p1","quantity":0}]}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestCheckoutHandler_UnknownProduct(t *testing.T) {
	gateway := &stubGateway{}
	app, _ := setupCheckoutApp(gateway, "")

	status, body := postCheckout(t, app, `{"items":[{"product_id":"ghost","quantity":1}]}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Contains(t, body["error"], "not found")
	assert.Nil(t, gateway.lastReq, "gateway must not be called for a rejected cart")
}

func TestCheckoutHandler_InsufficientStock(t *testing.T) {
	gateway := &stubGateway{}
	app, productRepo := setupCheckoutApp(gateway, "")

	require.NoError(t, productRepo.Create(&models.Product{
		ID: "p1", Name: "Rare Item", Price: decimal.NewFromFloat(5.00), Stock: 3,
	}))

	status, body := postCheckout(t, app, `{"items":[{"product_id":"p1","quantity":10}]}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Contains(t, body["error"], "Rare Item")
	assert.Contains(t, body["error"], "3 left")
	assert.Nil(t, gateway.lastReq)
}
