package main

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerRoutes registers all API routes
func registerRoutes(app *fiber.App, deps *Dependencies) {
	deps.HealthHandler.RegisterRoutes(app)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api/v1")
	deps.ExperimentHandler.RegisterRoutes(api)
	deps.TraceHandler.RegisterRoutes(api)
	deps.DatasetHandler.RegisterRoutes(api)
}
