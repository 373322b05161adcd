package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/streadway/amqp"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"storefront/internal/handlers"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/services"
	"storefront/pkg/payment"
	"storefront/pkg/rabbitmq"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

func main() {
	// --- Configuration ---
	// Viper reads from environment variables with sensible dev defaults.
	viper.SetDefault("APP_PORT", ":8080")
	viper.SetDefault("APP_URL", "http://localhost:8080")
	viper.SetDefault("DATABASE_URL", "")
	viper.SetDefault("SQLITE_PATH", "storefront.db")
	viper.SetDefault("JWT_SECRET", "dev-jwt-secret")
	viper.SetDefault("STRIPE_SECRET_KEY", "")
	viper.SetDefault("STRIPE_WEBHOOK_SECRET", "")
	viper.SetDefault("RABBITMQ_URL", "")
	viper.AutomaticEnv()

	appPort := viper.GetString("APP_PORT")
	appURL := viper.GetString("APP_URL")

	// --- Initialize Database ---
	db, err := openDatabase()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Category{},
		&models.Product{},
		&models.User{},
		&models.Order{},
		&models.OrderItem{},
	); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// --- Initialize RabbitMQ Client (optional) ---
	// Settlement publishes order.settled events when a broker is configured;
	// without one the events are skipped and settlement still works.
	var mqClient *rabbitmq.Client
	if rabbitMQURL := viper.GetString("RABBITMQ_URL"); rabbitMQURL != "" {
		mqClient, err = rabbitmq.NewClient(rabbitmq.Config{URL: rabbitMQURL})
		if err != nil {
			log.Fatalf("Failed to initialize RabbitMQ client: %v", err)
		}
		defer mqClient.Close()
	} else {
		log.Println("RABBITMQ_URL not set, order.settled events disabled")
	}

	// --- Initialize Payment Gateway ---
	gateway := payment.NewStripeGateway(
		viper.GetString("STRIPE_SECRET_KEY"),
		viper.GetString("STRIPE_WEBHOOK_SECRET"),
		appURL,
	)

	// --- Initialize Repositories ---
	productRepo := repositories.NewGORMProductRepository(db)
	categoryRepo := repositories.NewGORMCategoryRepository(db)
	orderRepo := repositories.NewGORMOrderRepository(db)
	userRepo := repositories.NewGORMUserRepository(db)

	seedProducts(productRepo)

	// --- Initialize Services ---
	productService := services.NewProductService(productRepo)
	categoryService := services.NewCategoryService(categoryRepo)
	checkoutService := services.NewCheckoutService(productRepo, gateway)
	settlementService := services.NewSettlementService(orderRepo, productRepo, mqClient)
	orderService := services.NewOrderService(orderRepo)
	authService := services.NewAuthService(userRepo, viper.GetString("JWT_SECRET"))

	// --- Initialize Handlers ---
	productHandler := handlers.NewProductHandler(productService)
	categoryHandler := handlers.NewCategoryHandler(categoryService)
	checkoutHandler := handlers.NewCheckoutHandler(checkoutService)
	webhookHandler := handlers.NewWebhookHandler(gateway, settlementService)
	orderHandler := handlers.NewOrderHandler(orderService)
	authHandler := handlers.NewAuthHandler(authService)

	// --- Initialize Fiber App ---
	app := fiber.New()

	// --- Middleware ---
	app.Use(logger.New()) // Request logger

	// --- API Routes ---
	apiV1 := app.Group("/api/v1")

	// Public routes: auth, catalog reads, and the payment webhook (it is
	// authenticated by its signature, not by a session).
	authHandler.RegisterRoutes(apiV1)
	productHandler.RegisterPublicRoutes(apiV1)
	categoryHandler.RegisterPublicRoutes(apiV1)
	webhookHandler.RegisterRoutes(apiV1)

	// Checkout allows guests; an authenticated identity is attached when present.
	checkoutGroup := apiV1.Group("", middleware.OptionalAuth(authService))
	checkoutHandler.RegisterRoutes(checkoutGroup)

	// Authenticated routes.
	protectedRoutes := apiV1.Group("", middleware.AuthRequired(authService))
	orderHandler.RegisterRoutes(protectedRoutes)
	productHandler.RegisterAdminRoutes(protectedRoutes)
	categoryHandler.RegisterAdminRoutes(protectedRoutes)

	// --- Health Check Endpoint ---
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// --- Start RabbitMQ Consumer in a Goroutine ---
	// Downstream processing of settled orders (fulfillment, notification).
	if mqClient != nil {
		go func() {
			log.Println("Starting RabbitMQ consumer for settled orders...")
			messageHandler := func(msg amqp.Delivery) error {
				log.Printf("Received order.settled event (Tag: %d): %s", msg.DeliveryTag, string(msg.Body))
				return nil // Return nil to acknowledge
			}
			if consumerErr := mqClient.ConsumeSettledOrders(messageHandler); consumerErr != nil {
				log.Printf("Failed to start RabbitMQ consumer: %v", consumerErr)
			}
		}()
	}

	// --- Start HTTP Server ---
	log.Printf("Starting server on port %s", appPort)

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Listen(appPort); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Printf("Error during Fiber shutdown: %v", err)
	}

	log.Println("Server gracefully stopped")
}

// openDatabase connects to Postgres when DATABASE_URL is set, otherwise to a
// local SQLite file for development.
func openDatabase() (*gorm.DB, error) {
	if dsn := viper.GetString("DATABASE_URL"); dsn != "" {
		return gorm.Open(postgres.Open(dsn), &gorm.Config{})
	}
	path := viper.GetString("SQLITE_PATH")
	log.Printf("DATABASE_URL not set, using SQLite at %s", path)
	return gorm.Open(sqlite.Open(path), &gorm.Config{})
}

// seedProducts populates an empty catalog with some initial data so a fresh
// dev instance has something to sell.
func seedProducts(repo repositories.ProductRepository) {
	existing, err := repo.GetAll()
	if err != nil || len(existing) > 0 {
		return
	}

	products := []models.Product{
		{ID: "prod-1", Name: "Laptop", Description: "High performance laptop", Price: decimal.NewFromFloat(1200.00), Stock: 10},
		{ID: "prod-2", Name: "Keyboard", Description: "Mechanical keyboard", Price: decimal.NewFromFloat(75.00), Stock: 25},
		{ID: "prod-3", Name: "Mouse", Description: "Ergonomic wireless mouse", Price: decimal.NewFromFloat(25.00), Stock: 50},
	}

	for i := range products {
		if err := repo.Create(&products[i]); err != nil {
			log.Printf("Error seeding product %s: %v", products[i].Name, err)
		} else {
			log.Printf("Seeded product: %s (ID: %s)", products[i].Name, products[i].ID)
		}
	}
}
