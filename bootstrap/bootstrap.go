package bootstrap

import (
	"farmetrics-backend/internal/app"
	"farmetrics-backend/internal/config"

	"github.com/gofiber/fiber/v2"
)

// New creates the Fiber app for embedding (e.g. serverless handlers) without
// exposing internal packages.
func New() (*fiber.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	a, _, _, err := app.CreateApp(cfg)
	return a, err
}
