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

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupOrderApp wires the order routes behind a middleware that plants the
// given identity, standing in for the JWT middleware.
func setupOrderApp(userID, role string) (*fiber.App, *repositories.MockOrderRepository, *repositories.MockProductRepository) {
	productRepo := repositories.NewMockProductRepository()
	orderRepo := repositories.NewMockOrderRepository(productRepo)
	service := services.NewOrderService(orderRepo)

	app := fiber.New()
	group := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Locals(middleware.LocalUserID, userID)
		c.Locals(middleware.LocalRole, role)
		return c.Next()
	})
	handlers.NewOrderHandler(service).RegisterRoutes(group)
	return app, orderRepo, productRepo
}

// settleOrder creates an order through the repository the same way settlement
// does, so the fixtures carry real references and stock effects.
func settleOrder(t *testing.T, orderRepo *repositories.MockOrderRepository, productRepo *repositories.MockProductRepository, ref, userID string) *models.Order {
	t.Helper()
	require.NoError(t, productRepo.Create(&models.Product{
		ID: "prod-" + ref, Name: "Fixture", Price: decimal.NewFromFloat(10.00), Stock: 10,
	}))

	order := &models.Order{
		PaymentReference: ref,
		TotalAmount:      decimal.NewFromFloat(10.00),
		Status:           models.OrderStatusPaid,
		Items: []models.OrderItem{
			{ProductID: "prod-" + ref, Quantity: 1, PriceAtPurchase: decimal.NewFromFloat(10.00)},
		},
	}
	if userID != "" {
		order.UserID = &userID
	}
	require.NoError(t, orderRepo.CreateSettled(order, []repositories.StockDecrement{
		{ProductID: "prod-" + ref, Quantity: 1},
	}))
	return order
}

func doOrderRequest(t *testing.T, app *fiber.App, method, path, body string) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func TestOrderHandler_ListOwnOrders(t *testing.T) {
	app, orderRepo, productRepo := setupOrderApp("user-1", models.RoleUser)
	settleOrder(t, orderRepo, productRepo, "cs_mine", "user-1")
	settleOrder(t, orderRepo, productRepo, "cs_theirs", "user-2")

	status, raw := doOrderRequest(t, app, "GET", "/api/v1/orders/", "")
	assert.Equal(t, fiber.StatusOK, status)

	var orders []models.Order
	require.NoError(t, json.Unmarshal(raw, &orders))
	require.Len(t, orders, 1)
	assert.Equal(t, "cs_mine", orders[0].PaymentReference)
}

func TestOrderHandler_GetAllOrders_AdminOnly(t *testing.T) {
	app, orderRepo, productRepo := setupOrderApp("user-1", models.RoleUser)
	settleOrder(t, orderRepo, productRepo, "cs_1", "user-1")

	status, _ := doOrderRequest(t, app, "GET", "/api/v1/orders/all", "")
	assert.Equal(t, fiber.StatusForbidden, status)

	adminApp, adminOrderRepo, adminProductRepo := setupOrderApp("admin-1", models.RoleAdmin)
	settleOrder(t, adminOrderRepo, adminProductRepo, "cs_2", "user-1")
	settleOrder(t, adminOrderRepo, adminProductRepo, "cs_3", "")

	status, raw := doOrderRequest(t, adminApp, "GET", "/api/v1/orders/all", "")
	assert.Equal(t, fiber.StatusOK, status)
	var orders []models.Order
	require.NoError(t, json.Unmarshal(raw, &orders))
	assert.Len(t, orders, 2)
}

func TestOrderHandler_GetOrderByID_OwnershipGate(t *testing.T) {
	app, orderRepo, productRepo := setupOrderApp("user-1", models.RoleUser)
	mine := settleOrder(t, orderRepo, productRepo, "cs_mine", "user-1")
	theirs := settleOrder(t, orderRepo, productRepo, "cs_theirs", "user-2")
	guest := settleOrder(t, orderRepo, productRepo, "cs_guest", "")

	status, _ := doOrderRequest(t, app, "GET", "/api/v1/orders/"+mine.ID, "")
	assert.Equal(t, fiber.StatusOK, status)

	// Another user's order and a guest order are both off-limits.
	status, _ = doOrderRequest(t, app, "GET", "/api/v1/orders/"+theirs.ID, "")
	assert.Equal(t, fiber.StatusForbidden, status)
	status, _ = doOrderRequest(t, app, "GET", "/api/v1/orders/"+guest.ID, "")
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = doOrderRequest(t, app, "GET", "/api/v1/orders/nonexistent", "")
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestOrderHandler_GetOrderByID_AdminSeesEverything(t *testing.T) {
	app, orderRepo, productRepo := setupOrderApp("admin-1", models.RoleAdmin)
	theirs := settleOrder(t, orderRepo, productRepo, "cs_theirs", "user-2")
	guest := settleOrder(t, orderRepo, productRepo, "cs_guest", "")

	status, _ := doOrderRequest(t, app, "GET", "/api/v1/orders/"+theirs.ID, "")
	assert.Equal(t, fiber.StatusOK, status)
	status, _ = doOrderRequest(t, app, "GET", "/api/v1/orders/"+guest.ID, "")
	assert.Equal(t, fiber.StatusOK, status)
}

func TestOrderHandler_GetOrderByReference(t *testing.T) {
	app, orderRepo, productRepo := setupOrderApp("user-1", models.RoleUser)
	mine := settleOrder(t, orderRepo, productRepo, "cs_ref_1", "user-1")
	settleOrder(t, orderRepo, productRepo, "cs_ref_2", "user-2")

	status, raw := doOrderRequest(t, app, "GET", "/api/v1/orders/by-reference/cs_ref_1", "")
	assert.Equal(t, fiber.StatusOK, status)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, mine.ID, body["order_id"])

	status, _ = doOrderRequest(t, app, "GET", "/api/v1/orders/by-reference/cs_ref_2", "")
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = doOrderRequest(t, app, "GET", "/api/v1/orders/by-reference/cs_unknown", "")
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestOrderHandler_UpdateOrderStatus(t *testing.T) {
	app, orderRepo, productRepo := setupOrderApp("admin-1", models.RoleAdmin)
	order := settleOrder(t, orderRepo, productRepo, "cs_ship", "user-1")

	status, _ := doOrderRequest(t, app, "PATCH", "/api/v1/orders/"+order.ID+"/status", `{"status":"SHIPPED"}`)
	assert.Equal(t, fiber.StatusOK, status)

	updated, err := orderRepo.GetByID(order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusShipped, updated.Status)

	// Unknown status value is rejected.
	status, _ = doOrderRequest(t, app, "PATCH", "/api/v1/orders/"+order.ID+"/status", `{"status":"TELEPORTED"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)

	// Missing status is rejected.
	status, _ = doOrderRequest(t, app, "PATCH", "/api/v1/orders/"+order.ID+"/status", `{}`)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = doOrderRequest(t, app, "PATCH", "/api/v1/orders/nonexistent/status", `{"status":"SHIPPED"}`)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestOrderHandler_UpdateOrderStatus_ForbiddenForNonAdmin(t *testing.T) {
	app, orderRepo, productRepo := setupOrderApp("user-1", models.RoleUser)
	order := settleOrder(t, orderRepo, productRepo, "cs_noperm", "user-1")

	status, _ := doOrderRequest(t, app, "PATCH", "/api/v1/orders/"+order.ID+"/status", `{"status":"SHIPPED"}`)
	assert.Equal(t, fiber.StatusForbidden, status)
}
