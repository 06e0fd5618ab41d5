package regions

import (
	"errors"

	"farmetrics-backend/internal/domain"
	"farmetrics-backend/internal/geo"
	"farmetrics-backend/internal/middleware"
	"farmetrics-backend/internal/pkg/response"
	"farmetrics-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Handlers struct {
	Service *Service
}

type regionBody struct {
	Code        *string                 `json:"code"`
	Name        *string                 `json:"name"`
	Description *string                 `json:"description"`
	ParentID    *uuid.UUID              `json:"parent_id"`
	ClearParent bool                    `json:"clear_parent"`
	LevelType   *string                 `json:"level_type"`
	Boundary    *domain.GeoMultiPolygon `json:"boundary"`
	IsActive    *bool                   `json:"is_active"`
	Metadata    datatypes.JSONMap       `json:"metadata"`
}

// POST /api/v1/regions
func (h *Handlers) CreateRegion(c *fiber.Ctx) error {
	orgID, err := middleware.OrgID(c)
	if err != nil {
		return response.Error(c, err.Error(), 403, nil)
	}

	var body regionBody
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}
	if body.Name == nil || *body.Name == "" {
		return response.Error(c, "Missing required field: name", 400, nil)
	}
	if body.Code == nil || !validation.IsValidRegionCode(*body.Code) {
		return response.Error(c, "Invalid region code", 400, nil)
	}
	levelType := domain.LevelTypeLocation
	if body.LevelType != nil {
		if !validation.IsValidLevelType(*body.LevelType) {
			return response.Error(c, "Invalid level_type", 400, nil)
		}
		levelType = *body.LevelType
	}

	region, err := h.Service.CreateRegion(c.Context(), CreateRegionInput{
		OrganizationID: orgID,
		Code:           *body.Code,
		Name:           *body.Name,
		Description:    deref(body.Description),
		ParentID:       body.ParentID,
		LevelType:      levelType,
		Boundary:       body.Boundary,
		Metadata:       body.Metadata,
	})
	if err != nil {
		return regionError(c, err)
	}
	return response.SuccessCreated(c, "Region created successfully", region, nil)
}

// PUT /api/v1/regions/:region_id
func (h *Handlers) UpdateRegion(c *fiber.Ctx) error {
	regionID, err := uuid.Parse(c.Params("region_id"))
	if err != nil {
		return response.Error(c, "Invalid region_id format", 400, nil)
	}

	var body regionBody
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}
	if body.LevelType != nil && !validation.IsValidLevelType(*body.LevelType) {
		return response.Error(c, "Invalid level_type", 400, nil)
	}

	region, err := h.Service.UpdateRegion(c.Context(), regionID, UpdateRegionInput{
		Name:        body.Name,
		Description: body.Description,
		ParentID:    body.ParentID,
		ClearParent: body.ClearParent,
		LevelType:   body.LevelType,
		Boundary:    body.Boundary,
		IsActive:    body.IsActive,
		Metadata:    body.Metadata,
	})
	if err != nil {
		return regionError(c, err)
	}
	return response.Success(c, "Region updated successfully", region, nil)
}

// GET /api/v1/regions/:region_id
func (h *Handlers) GetRegion(c *fiber.Ctx) error {
	regionID, err := uuid.Parse(c.Params("region_id"))
	if err != nil {
		return response.Error(c, "Invalid region_id format", 400, nil)
	}
	region, err := h.Service.GetRegion(c.Context(), regionID)
	if err != nil {
		return regionError(c, err)
	}
	return response.Success(c, "Region fetched successfully", region, nil)
}

// GET /api/v1/regions/:region_id/path
func (h *Handlers) GetRegionPath(c *fiber.Ctx) error {
	regionID, err := uuid.Parse(c.Params("region_id"))
	if err != nil {
		return response.Error(c, "Invalid region_id format", 400, nil)
	}
	region, err := h.Service.GetRegion(c.Context(), regionID)
	if err != nil {
		return regionError(c, err)
	}
	path, err := h.Service.FullPath(c.Context(), region)
	if err != nil {
		return regionError(c, err)
	}
	return response.Success(c, "Region path fetched successfully", fiber.Map{
		"region_id": region.RegionID,
		"full_path": path,
	}, nil)
}

// GET /api/v1/regions/:region_id/children
func (h *Handlers) GetRegionChildren(c *fiber.Ctx) error {
	regionID, err := uuid.Parse(c.Params("region_id"))
	if err != nil {
		return response.Error(c, "Invalid region_id format", 400, nil)
	}
	children, err := h.Service.Children(c.Context(), regionID)
	if err != nil {
		return regionError(c, err)
	}
	return response.Success(c, "Region children fetched successfully", children, nil)
}

// GET /api/v1/regions/hierarchy
func (h *Handlers) GetHierarchy(c *fiber.Ctx) error {
	orgID, err := middleware.OrgID(c)
	if err != nil {
		return response.Error(c, err.Error(), 403, nil)
	}
	tree, err := h.Service.HierarchyTree(c.Context(), orgID)
	if err != nil {
		return regionError(c, err)
	}
	return response.Success(c, "Region hierarchy fetched successfully", tree, nil)
}

// DELETE /api/v1/regions/:region_id
func (h *Handlers) DeleteRegion(c *fiber.Ctx) error {
	regionID, err := uuid.Parse(c.Params("region_id"))
	if err != nil {
		return response.Error(c, "Invalid region_id format", 400, nil)
	}
	if err := h.Service.Delete(c.Context(), regionID); err != nil {
		return regionError(c, err)
	}
	return response.Success(c, "Region deleted successfully", nil, nil)
}

func regionError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrRegionNotFound):
		return response.Error(c, err.Error(), 404, nil)
	case errors.Is(err, ErrInvalidHierarchy), errors.Is(err, ErrDuplicateCode), errors.Is(err, geo.ErrInvalidGeometry):
		return response.Error(c, err.Error(), 400, nil)
	case errors.Is(err, ErrHasDependents):
		return response.Error(c, err.Error(), 409, nil)
	default:
		return response.Error(c, "Internal Server Error", 500, nil)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
