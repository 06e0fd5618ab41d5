package proximity

import (
	"errors"

	"farmetrics-backend/internal/geo"
	"farmetrics-backend/internal/middleware"
	"farmetrics-backend/internal/pkg/response"
	"farmetrics-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *Service
}

// POST /api/v1/farms/nearby with body {latitude, longitude, radius_km}
func (h *Handlers) NearbyFarms(c *fiber.Ctx) error {
	orgID, err := middleware.OrgID(c)
	if err != nil {
		return response.Error(c, err.Error(), 403, nil)
	}

	var body struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
		RadiusKm  *float64 `json:"radius_km"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}
	if body.Latitude == nil || body.Longitude == nil {
		return response.Error(c, "Missing required fields: latitude, longitude", 400, nil)
	}
	if !validation.IsValidCoordinate(*body.Longitude, *body.Latitude) {
		return response.Error(c, "Invalid coordinates", 400, nil)
	}
	radiusKm := 5.0
	if body.RadiusKm != nil {
		radiusKm = *body.RadiusKm
	}

	center := geo.Point{Lon: *body.Longitude, Lat: *body.Latitude}
	results, err := h.Service.Nearby(c.Context(), orgID, center, radiusKm)
	if err != nil {
		if errors.Is(err, ErrInvalidRadius) {
			return response.Error(c, err.Error(), 400, nil)
		}
		return response.Error(c, "Internal Server Error", 500, nil)
	}

	return response.Success(c, "Nearby farms fetched successfully", fiber.Map{
		"count":     len(results),
		"radius_km": radiusKm,
		"center":    fiber.Map{"latitude": *body.Latitude, "longitude": *body.Longitude},
		"results":   results,
	}, nil)
}
