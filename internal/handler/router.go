package handler

import (
	"time"

	"sigef-backend/internal/middleware"
	"sigef-backend/internal/repository"
	"sigef-backend/internal/service"
	"sigef-backend/internal/ws"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
)

// Services bundles everything the HTTP layer needs.
type Services struct {
	Auth      service.AuthService
	Inventory service.InventoryService
	Debt      service.DebtService
	Report    service.ReportService
	Backup    service.BackupService
	Dashboard service.DashboardService

	Idempotency repository.IdempotencyRepository
	Hub         *ws.Hub
	Log         *logrus.Logger

	RequestTimeout  time.Duration
	RateLimitMax    int
	RateLimitWindow time.Duration
	AccessLog       bool
}

// NewApp builds the fiber application with every route mounted.
func NewApp(s Services) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "SIGEF v1.0",
		ErrorHandler: middleware.ErrorHandler(s.Log),
		BodyLimit:    16 * 1024 * 1024, // backups can be large
	})

	// Middleware
	if s.AccessLog {
		app.Use(fiberlogger.New()) // Logging request
	}
	app.Use(recover.New()) // Panic recovery
	app.Use(cors.New())    // CORS

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1", middleware.RequestTimeout(s.RequestTimeout))
	if s.RateLimitMax > 0 {
		api.Use(limiter.New(limiter.Config{
			Max:        s.RateLimitMax,
			Expiration: s.RateLimitWindow,
			LimitReached: func(c *fiber.Ctx) error {
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "Too many requests", "code": "rate_limited"})
			},
		}))
	}

	authHandler := NewAuthHandler(s.Auth)
	invHandler := NewInventoryHandler(s.Inventory)
	debtHandler := NewDebtHandler(s.Debt)
	reportHandler := NewReportHandler(s.Report)
	backupHandler := NewBackupHandler(s.Backup)
	dashHandler := NewDashboardHandler(s.Dashboard)

	// ============ PUBLIC ROUTES ============
	auth := api.Group("/auth")
	auth.Post("/login", authHandler.Login)

	// ============ PROTECTED ROUTES ============
	protected := api.Group("", middleware.RequireAuth(s.Auth))
	if s.Idempotency != nil {
		protected.Use(middleware.Idempotency(s.Idempotency, s.Log))
	}

	protected.Get("/auth/me", authHandler.Me)

	// Dashboard Routes
	protected.Get("/dashboard/stats", dashHandler.GetDashboardStats)
	protected.Get("/dashboard/stock-movement", dashHandler.GetStockMovement)

	// Product Routes
	protected.Get("/products", invHandler.GetProducts)
	protected.Get("/products/:id", invHandler.GetProduct)
	protected.Post("/products", invHandler.CreateProduct)
	protected.Put("/products/:id", invHandler.UpdateProduct)
	protected.Delete("/products/:id", invHandler.DeleteProduct)

	// Sale Routes
	protected.Get("/sales", invHandler.GetSales)
	protected.Get("/sales/:id", invHandler.GetSale)
	protected.Post("/sales", invHandler.RecordSale)
	protected.Delete("/sales/:id", invHandler.DeleteSale)

	// Debt Routes
	protected.Get("/debts", debtHandler.GetDebts)
	protected.Get("/debts/:id", debtHandler.GetDebt)
	protected.Post("/debts", debtHandler.CreateDebt)
	protected.Put("/debts/:id", debtHandler.UpdateDebt)
	protected.Post("/debts/:id/payments", debtHandler.RegisterPayment)
	protected.Post("/debts/:id/pay", debtHandler.MarkPaid)
	protected.Delete("/debts/:id", debtHandler.DeleteDebt)

	// Report Routes
	protected.Get("/reports", reportHandler.GetReport)
	protected.Get("/reports/analysis-input", reportHandler.GetAnalysisInput)
	protected.Get("/reports/snapshots", reportHandler.GetSnapshots)
	protected.Post("/reports/snapshots", reportHandler.SaveSnapshot)

	// Backup Routes
	protected.Get("/backup", backupHandler.Export)
	protected.Get("/backup/xlsx", backupHandler.ExportXLSX)
	protected.Post("/backup", backupHandler.Import)

	if s.Hub != nil {
		mountWebSocket(app, s.Hub)
	}
	return app
}

func mountWebSocket(app *fiber.App, hub *ws.Hub) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})
	app.Get("/ws", websocket.New(func(c *websocket.Conn) {
		if !hub.Join(c) {
			return
		}
		defer hub.Leave(c)

		for {
			// Keep alive loop
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
	}))
}
