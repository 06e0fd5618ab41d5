package health

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// DBPinger abstracts the database connection check. Nil reports disconnected.
type DBPinger interface {
	Ping() error
}

type Handlers struct {
	DB  DBPinger
	Rdb *redis.Client
}

// JSON handles GET /health/json with dependency status.
func (h *Handlers) JSON(c *fiber.Ctx) error {
	deps := fiber.Map{
		"database": h.databaseStatus(),
		"redis":    h.redisStatus(c.Context()),
	}
	status := "ok"
	for _, v := range deps {
		if v != "connected" {
			status = "degraded"
		}
	}
	return c.JSON(fiber.Map{
		"status":       status,
		"time":         time.Now().UTC().Format(time.RFC3339),
		"dependencies": deps,
	})
}

func (h *Handlers) databaseStatus() string {
	if h.DB == nil {
		return "not configured"
	}
	if err := h.DB.Ping(); err != nil {
		return "disconnected"
	}
	return "connected"
}

func (h *Handlers) redisStatus(ctx context.Context) string {
	if h.Rdb == nil {
		return "not configured"
	}
	if err := h.Rdb.Ping(ctx).Err(); err != nil {
		return "disconnected"
	}
	return "connected"
}
