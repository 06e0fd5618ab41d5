package proximity

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"farmetrics-backend/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupProximityApp(t *testing.T) (*fiber.App, *Service, uuid.UUID) {
	svc, _ := setupProximityTest(t)
	h := &Handlers{Service: svc}

	app := fiber.New()
	app.Use(middleware.OrgContext())
	app.Post("/api/v1/farms/nearby", middleware.RequireOrg(), h.NearbyFarms)
	return app, svc, uuid.New()
}

func postNearby(t *testing.T, app *fiber.App, orgID uuid.UUID, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest("POST", "/api/v1/farms/nearby", &buf)
	req.Header.Set("Content-Type", "application/json")
	if orgID != uuid.Nil {
		req.Header.Set("X-Organization-Id", orgID.String())
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var envelope map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return resp.StatusCode, envelope
}

func TestNearbyFarmsHandler(t *testing.T) {
	app, svc, org := setupProximityApp(t)
	seedFarm(t, svc.DB, org, "FARM-2025-CLOSE", 0.001, 0.001)

	// Default radius of 5 km applies when none is given.
	status, envelope := postNearby(t, app, org, fiber.Map{"latitude": 0.0, "longitude": 0.0})
	require.Equal(t, 200, status)
	data := envelope["data"].(map[string]any)
	assert.Equal(t, float64(1), data["count"])
	assert.Equal(t, float64(5), data["radius_km"])
	results := data["results"].([]any)
	require.Len(t, results, 1)
	assert.Greater(t, results[0].(map[string]any)["distance_m"].(float64), 0.0)
}

func TestNearbyFarmsHandler_Validation(t *testing.T) {
	app, _, org := setupProximityApp(t)

	status, _ := postNearby(t, app, org, fiber.Map{"longitude": 0.0})
	assert.Equal(t, 400, status)

	status, _ = postNearby(t, app, org, fiber.Map{"latitude": 95.0, "longitude": 0.0})
	assert.Equal(t, 400, status)

	status, _ = postNearby(t, app, org, fiber.Map{"latitude": 0.0, "longitude": 0.0, "radius_km": 250.0})
	assert.Equal(t, 400, status)

	status, _ = postNearby(t, app, uuid.Nil, fiber.Map{"latitude": 0.0, "longitude": 0.0})
	assert.Equal(t, 403, status)
}
