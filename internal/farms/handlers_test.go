package farms

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"

	"farmetrics-backend/internal/domain"
	"farmetrics-backend/internal/middleware"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupFarmsApp(t *testing.T) (*fiber.App, *Service) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Farm{}, &domain.FarmBoundaryPoint{}))

	svc := &Service{DB: db}
	h := &Handlers{Service: svc}

	app := fiber.New()
	app.Use(middleware.OrgContext())
	group := app.Group("/api/v1/farms", middleware.RequireOrg())
	group.Post("/", h.CreateFarm)
	group.Get("/", h.ListFarms)
	group.Get("/:farm_id", h.GetFarm)
	group.Put("/:farm_id", h.UpdateFarm)
	group.Delete("/:farm_id", h.DeleteFarm)
	group.Post("/:farm_id/verify", h.VerifyFarm)
	group.Post("/:farm_id/transfer", h.TransferOwnership)
	group.Post("/:farm_id/boundary", h.AssignBoundary)
	group.Post("/:farm_id/boundary-points", h.AddBoundaryPoint)
	group.Get("/:farm_id/boundary-points", h.ListBoundaryPoints)
	group.Post("/:farm_id/boundary-points/build", h.BuildBoundary)
	return app, svc
}

func request(t *testing.T, app *fiber.App, method, target string, orgID uuid.UUID, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
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

func TestCreateFarmHandler(t *testing.T) {
	app, _ := setupFarmsApp(t)
	org := uuid.New()

	status, envelope := request(t, app, "POST", "/api/v1/farms/", org, fiber.Map{
		"name":     "Mensah Cocoa Farm",
		"owner_id": uuid.NewString(),
		"primary_location": fiber.Map{
			"type":        "Point",
			"coordinates": []float64{-1.62, 6.69},
		},
	})
	require.Equal(t, 201, status)
	data := envelope["data"].(map[string]any)
	assert.Equal(t, "pending_verification", data["status"])
	assert.Equal(t, "Cocoa", data["crop_type"])
	assert.Contains(t, data["farm_code"], "FARM-")

	loc := data["primary_location"].(map[string]any)
	coords := loc["coordinates"].([]any)
	assert.InDelta(t, -1.62, coords[0].(float64), 1e-9)
	assert.InDelta(t, 6.69, coords[1].(float64), 1e-9)
}

func TestCreateFarmHandler_Validation(t *testing.T) {
	app, _ := setupFarmsApp(t)
	org := uuid.New()

	// Missing primary location.
	status, _ := request(t, app, "POST", "/api/v1/farms/", org, fiber.Map{
		"name": "No Location Farm", "owner_id": uuid.NewString(),
	})
	assert.Equal(t, 400, status)

	// Out-of-range coordinates.
	status, _ = request(t, app, "POST", "/api/v1/farms/", org, fiber.Map{
		"name":     "Bad Coords Farm",
		"owner_id": uuid.NewString(),
		"primary_location": fiber.Map{
			"type":        "Point",
			"coordinates": []float64{-200, 95},
		},
	})
	assert.Equal(t, 400, status)

	// No organization header at all.
	status, _ = request(t, app, "POST", "/api/v1/farms/", uuid.Nil, fiber.Map{"name": "X"})
	assert.Equal(t, 403, status)
}

func TestAssignBoundaryHandler(t *testing.T) {
	app, svc := setupFarmsApp(t)
	org := uuid.New()

	farm := mustCreateFarm(t, svc, CreateFarmInput{OrganizationID: org})

	d := 100 / 111319.49079327358
	boundary := fiber.Map{
		"type": "MultiPolygon",
		"coordinates": [][][][]float64{{{
			{0, 0}, {d, 0}, {d, d}, {0, d}, {0, 0},
		}}},
	}

	status, envelope := request(t, app, "POST",
		fmt.Sprintf("/api/v1/farms/%s/boundary", farm.FarmID), org, fiber.Map{"boundary": boundary})
	require.Equal(t, 200, status)
	data := envelope["data"].(map[string]any)
	assert.InDelta(t, 10000, data["area_m2"].(float64), 1)

	// A bowtie is rejected with a 400.
	bad := fiber.Map{
		"type": "MultiPolygon",
		"coordinates": [][][][]float64{{{
			{0, 0}, {1, 1}, {1, 0}, {0, 1}, {0, 0},
		}}},
	}
	status, _ = request(t, app, "POST",
		fmt.Sprintf("/api/v1/farms/%s/boundary", farm.FarmID), org, fiber.Map{"boundary": bad})
	assert.Equal(t, 400, status)
}

func TestBoundaryPointsHandlers(t *testing.T) {
	app, svc := setupFarmsApp(t)
	org := uuid.New()

	farm := mustCreateFarm(t, svc, CreateFarmInput{OrganizationID: org})
	base := fmt.Sprintf("/api/v1/farms/%s/boundary-points", farm.FarmID)

	// Building before any points were collected fails.
	status, _ := request(t, app, "POST", base+"/build", org, nil)
	assert.Equal(t, 400, status)

	d := 100 / 111319.49079327358
	corners := [][]float64{{0, 0}, {d, 0}, {d, d}, {0, d}}
	for i, c := range corners {
		status, _ := request(t, app, "POST", base, org, fiber.Map{
			"point":    fiber.Map{"type": "Point", "coordinates": c},
			"sequence": i,
		})
		require.Equal(t, 201, status)
	}

	status, envelope := request(t, app, "GET", base, org, nil)
	require.Equal(t, 200, status)
	assert.Len(t, envelope["data"].([]any), 4)

	status, envelope = request(t, app, "POST", base+"/build", org, nil)
	require.Equal(t, 200, status)
	data := envelope["data"].(map[string]any)
	assert.InDelta(t, 10000, data["area_m2"].(float64), 1)
}

func TestTransferOwnershipHandler(t *testing.T) {
	app, svc := setupFarmsApp(t)
	org := uuid.New()

	farm := mustCreateFarm(t, svc, CreateFarmInput{OrganizationID: org})
	newOwner := uuid.New()

	status, envelope := request(t, app, "POST",
		fmt.Sprintf("/api/v1/farms/%s/transfer", farm.FarmID), org,
		fiber.Map{"new_owner_id": newOwner.String(), "reason": "sale"})
	require.Equal(t, 200, status)
	data := envelope["data"].(map[string]any)
	assert.Equal(t, newOwner.String(), data["owner_id"])

	status, _ = request(t, app, "POST",
		fmt.Sprintf("/api/v1/farms/%s/transfer", farm.FarmID), org, fiber.Map{"reason": "no owner"})
	assert.Equal(t, 400, status)
}

func TestFarmHandlers_NotFound(t *testing.T) {
	app, _ := setupFarmsApp(t)
	org := uuid.New()

	status, _ := request(t, app, "GET", fmt.Sprintf("/api/v1/farms/%s", uuid.New()), org, nil)
	assert.Equal(t, 404, status)

	status, _ = request(t, app, "GET", "/api/v1/farms/not-a-uuid", org, nil)
	assert.Equal(t, 400, status)
}
