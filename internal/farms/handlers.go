package farms

import (
	"errors"
	"time"

	"farmetrics-backend/internal/domain"
	"farmetrics-backend/internal/geo"
	"farmetrics-backend/internal/middleware"
	"farmetrics-backend/internal/pkg/codegen"
	"farmetrics-backend/internal/pkg/response"
	"farmetrics-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Handlers struct {
	Service *Service
}

type farmBody struct {
	FarmCode          string                  `json:"farm_code"`
	Name              *string                 `json:"name"`
	Description       *string                 `json:"description"`
	OwnerID           *uuid.UUID              `json:"owner_id"`
	RegionID          *uuid.UUID              `json:"region_id"`
	PrimaryLocation   *domain.GeoPoint        `json:"primary_location"`
	Boundary          *domain.GeoMultiPolygon `json:"boundary"`
	SoilType          *string                 `json:"soil_type"`
	CropType          *string                 `json:"crop_type"`
	PlantingDate      *time.Time              `json:"planting_date"`
	TreeCountEstimate *int                    `json:"tree_count_estimate"`
	Status            *string                 `json:"status"`
	Metadata          datatypes.JSONMap       `json:"metadata"`
	Reason            string                  `json:"reason"`
}

// POST /api/v1/farms
func (h *Handlers) CreateFarm(c *fiber.Ctx) error {
	orgID, err := middleware.OrgID(c)
	if err != nil {
		return response.Error(c, err.Error(), 403, nil)
	}

	var body farmBody
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}
	if body.Name == nil || *body.Name == "" {
		return response.Error(c, "Missing required field: name", 400, nil)
	}
	if body.OwnerID == nil {
		return response.Error(c, "Missing required field: owner_id", 400, nil)
	}
	if body.PrimaryLocation == nil {
		return response.Error(c, ErrMissingPrimaryLocation.Error(), 400, nil)
	}
	if !validation.IsValidCoordinate(body.PrimaryLocation.Lon, body.PrimaryLocation.Lat) {
		return response.Error(c, "Invalid primary_location coordinates", 400, nil)
	}

	farm, err := h.Service.CreateFarm(c.Context(), CreateFarmInput{
		OrganizationID:    orgID,
		FarmCode:          body.FarmCode,
		Name:              *body.Name,
		Description:       derefStr(body.Description),
		OwnerID:           *body.OwnerID,
		RegionID:          body.RegionID,
		PrimaryLocation:   *body.PrimaryLocation,
		Boundary:          body.Boundary,
		SoilType:          derefStr(body.SoilType),
		CropType:          derefStr(body.CropType),
		PlantingDate:      body.PlantingDate,
		TreeCountEstimate: body.TreeCountEstimate,
		Metadata:          body.Metadata,
		CreatedBy:         middleware.ActorID(c),
	})
	if err != nil {
		return farmError(c, err)
	}
	return response.SuccessCreated(c, "Farm created successfully", farm, nil)
}

// PUT /api/v1/farms/:farm_id
func (h *Handlers) UpdateFarm(c *fiber.Ctx) error {
	farmID, err := uuid.Parse(c.Params("farm_id"))
	if err != nil {
		return response.Error(c, "Invalid farm_id format", 400, nil)
	}

	var body farmBody
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}
	if body.PrimaryLocation != nil && !validation.IsValidCoordinate(body.PrimaryLocation.Lon, body.PrimaryLocation.Lat) {
		return response.Error(c, "Invalid primary_location coordinates", 400, nil)
	}

	farm, err := h.Service.UpdateFarm(c.Context(), farmID, UpdateFarmInput{
		Name:              body.Name,
		Description:       body.Description,
		RegionID:          body.RegionID,
		PrimaryLocation:   body.PrimaryLocation,
		Boundary:          body.Boundary,
		SoilType:          body.SoilType,
		CropType:          body.CropType,
		PlantingDate:      body.PlantingDate,
		TreeCountEstimate: body.TreeCountEstimate,
		Status:            body.Status,
		Metadata:          body.Metadata,
		UpdatedBy:         middleware.ActorID(c),
		Reason:            body.Reason,
	})
	if err != nil {
		return farmError(c, err)
	}
	return response.Success(c, "Farm updated successfully", farm, nil)
}

// GET /api/v1/farms/:farm_id
func (h *Handlers) GetFarm(c *fiber.Ctx) error {
	farmID, err := uuid.Parse(c.Params("farm_id"))
	if err != nil {
		return response.Error(c, "Invalid farm_id format", 400, nil)
	}
	farm, err := h.Service.GetFarm(c.Context(), farmID)
	if err != nil {
		return farmError(c, err)
	}
	return response.Success(c, "Farm fetched successfully", farm, nil)
}

// GET /api/v1/farms
func (h *Handlers) ListFarms(c *fiber.Ctx) error {
	orgID, err := middleware.OrgID(c)
	if err != nil {
		return response.Error(c, err.Error(), 403, nil)
	}
	list, err := h.Service.ListOrgFarms(c.Context(), orgID)
	if err != nil {
		return farmError(c, err)
	}
	return response.Success(c, "Farms fetched successfully", list, nil)
}

// DELETE /api/v1/farms/:farm_id
func (h *Handlers) DeleteFarm(c *fiber.Ctx) error {
	farmID, err := uuid.Parse(c.Params("farm_id"))
	if err != nil {
		return response.Error(c, "Invalid farm_id format", 400, nil)
	}
	if err := h.Service.SoftDelete(c.Context(), farmID); err != nil {
		return farmError(c, err)
	}
	return response.Success(c, "Farm deleted successfully", nil, nil)
}

// POST /api/v1/farms/:farm_id/verify
func (h *Handlers) VerifyFarm(c *fiber.Ctx) error {
	farmID, err := uuid.Parse(c.Params("farm_id"))
	if err != nil {
		return response.Error(c, "Invalid farm_id format", 400, nil)
	}
	farm, err := h.Service.VerifyFarm(c.Context(), farmID, middleware.ActorID(c))
	if err != nil {
		return farmError(c, err)
	}
	return response.Success(c, "Farm verified successfully", farm, nil)
}

// POST /api/v1/farms/:farm_id/transfer
func (h *Handlers) TransferOwnership(c *fiber.Ctx) error {
	farmID, err := uuid.Parse(c.Params("farm_id"))
	if err != nil {
		return response.Error(c, "Invalid farm_id format", 400, nil)
	}
	var body struct {
		NewOwnerID *uuid.UUID `json:"new_owner_id"`
		Reason     string     `json:"reason"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}
	if body.NewOwnerID == nil {
		return response.Error(c, "Missing required field: new_owner_id", 400, nil)
	}
	farm, err := h.Service.TransferOwnership(c.Context(), farmID, *body.NewOwnerID, middleware.ActorID(c), body.Reason)
	if err != nil {
		return farmError(c, err)
	}
	return response.Success(c, "Farm ownership transferred successfully", farm, nil)
}

// POST /api/v1/farms/:farm_id/boundary
func (h *Handlers) AssignBoundary(c *fiber.Ctx) error {
	farmID, err := uuid.Parse(c.Params("farm_id"))
	if err != nil {
		return response.Error(c, "Invalid farm_id format", 400, nil)
	}
	var body struct {
		Boundary *domain.GeoMultiPolygon `json:"boundary"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}
	if body.Boundary == nil {
		return response.Error(c, "Missing required field: boundary", 400, nil)
	}
	farm, err := h.Service.AssignBoundary(c.Context(), farmID, *body.Boundary, middleware.ActorID(c))
	if err != nil {
		return farmError(c, err)
	}
	return response.Success(c, "Farm boundary assigned successfully", farm, nil)
}

// POST /api/v1/farms/:farm_id/boundary-points
func (h *Handlers) AddBoundaryPoint(c *fiber.Ctx) error {
	farmID, err := uuid.Parse(c.Params("farm_id"))
	if err != nil {
		return response.Error(c, "Invalid farm_id format", 400, nil)
	}
	var body struct {
		Point     *domain.GeoPoint `json:"point"`
		Sequence  *int             `json:"sequence"`
		AccuracyM *float64         `json:"accuracy_m"`
		AltitudeM *float64         `json:"altitude_m"`
		Notes     string           `json:"notes"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}
	if body.Point == nil {
		return response.Error(c, "Missing required field: point", 400, nil)
	}
	if body.Sequence == nil {
		return response.Error(c, "Missing required field: sequence", 400, nil)
	}
	if !validation.IsValidCoordinate(body.Point.Lon, body.Point.Lat) {
		return response.Error(c, "Invalid point coordinates", 400, nil)
	}
	bp, err := h.Service.AddBoundaryPoint(c.Context(), farmID, *body.Point, *body.Sequence, body.AccuracyM, body.AltitudeM, middleware.ActorID(c), body.Notes)
	if err != nil {
		return farmError(c, err)
	}
	return response.SuccessCreated(c, "Boundary point recorded successfully", bp, nil)
}

// GET /api/v1/farms/:farm_id/boundary-points
func (h *Handlers) ListBoundaryPoints(c *fiber.Ctx) error {
	farmID, err := uuid.Parse(c.Params("farm_id"))
	if err != nil {
		return response.Error(c, "Invalid farm_id format", 400, nil)
	}
	points, err := h.Service.ListBoundaryPoints(c.Context(), farmID)
	if err != nil {
		return farmError(c, err)
	}
	return response.Success(c, "Boundary points fetched successfully", points, nil)
}

// POST /api/v1/farms/:farm_id/boundary-points/build
func (h *Handlers) BuildBoundary(c *fiber.Ctx) error {
	farmID, err := uuid.Parse(c.Params("farm_id"))
	if err != nil {
		return response.Error(c, "Invalid farm_id format", 400, nil)
	}
	farm, err := h.Service.BuildBoundaryFromPoints(c.Context(), farmID, middleware.ActorID(c))
	if err != nil {
		return farmError(c, err)
	}
	return response.Success(c, "Farm boundary built successfully", farm, nil)
}

func farmError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrFarmNotFound):
		return response.Error(c, err.Error(), 404, nil)
	case errors.Is(err, geo.ErrInvalidGeometry),
		errors.Is(err, ErrMissingPrimaryLocation),
		errors.Is(err, ErrInsufficientBoundaryPoints):
		return response.Error(c, err.Error(), 400, nil)
	case errors.Is(err, codegen.ErrExhausted):
		// Retryable: uniqueness retry budget exceeded, not a caller error.
		return response.Error(c, err.Error(), 503, nil)
	default:
		return response.Error(c, "Internal Server Error", 500, nil)
	}
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
