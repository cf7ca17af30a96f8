package routes

import (
	"github.com/gofiber/fiber/v2"

	"govdata-backend/controllers"
	"govdata-backend/middlewares"
)

// Register wires all HTTP routes.
func Register(app *fiber.App) {
	// Public liveness probe (excluded from request counting)
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	// Protected endpoints (JWT auth)
	protected := api.Group("")
	protected.Use(middlewares.IsAuthenticatedHeader())

	// Idempotency guard for mutating admin calls
	protected.Use(middlewares.Idempotency())

	// External data proxy
	protected.Post("/data/:service", controllers.FetchServiceData)

	// Cache administration
	protected.Delete("/cache", controllers.ClearCache)
	protected.Post("/cache/sweep", controllers.SweepCache)

	// Analytics / dashboards
	protected.Get("/analytics/stats", controllers.GetStats)
	protected.Get("/analytics/top-endpoints", controllers.GetTopEndpoints)
	protected.Get("/analytics/top-users", controllers.GetTopUsers)
	protected.Get("/analytics/service-usage", controllers.GetServiceUsage)
	protected.Get("/analytics/timeline", controllers.GetTimeline)
	protected.Get("/analytics/dashboard", controllers.GetDashboard)

	// Service registry + credentials
	protected.Post("/services", controllers.CreateService)
	protected.Get("/services", controllers.GetServices)
	protected.Patch("/services/:id", controllers.UpdateService)
	protected.Post("/services/:id/credentials", controllers.CreateCredential)

	// Bulk export
	protected.Get("/export/call-logs", controllers.ExportCallLogs)
}
