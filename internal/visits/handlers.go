package visits

import (
	"errors"
	"time"

	"farmetrics-backend/internal/domain"
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

type visitBody struct {
	FarmID          *uuid.UUID        `json:"farm_id"`
	FieldOfficerID  *uuid.UUID        `json:"field_officer_id"`
	VisitDate       *time.Time        `json:"visit_date"`
	GPSLocation     *domain.GeoPoint  `json:"gps_location"`
	GPSAccuracyM    *float64          `json:"gps_accuracy_m"`
	ValidationNotes *string           `json:"validation_notes"`
	Status          *string           `json:"status"`
	Notes           *string           `json:"notes"`
	Metadata        datatypes.JSONMap `json:"metadata"`
}

// POST /api/v1/visits
func (h *Handlers) CreateVisit(c *fiber.Ctx) error {
	orgID, err := middleware.OrgID(c)
	if err != nil {
		return response.Error(c, err.Error(), 403, nil)
	}

	var body visitBody
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}
	if body.FarmID == nil {
		return response.Error(c, "Missing required field: farm_id", 400, nil)
	}
	if body.GPSLocation != nil && !validation.IsValidCoordinate(body.GPSLocation.Lon, body.GPSLocation.Lat) {
		return response.Error(c, "Invalid gps_location coordinates", 400, nil)
	}

	visit, err := h.Service.CreateVisit(c.Context(), orgID, SaveVisitInput{
		FarmID:          *body.FarmID,
		FieldOfficerID:  body.FieldOfficerID,
		VisitDate:       body.VisitDate,
		GPSLocation:     body.GPSLocation,
		GPSAccuracyM:    body.GPSAccuracyM,
		ValidationNotes: body.ValidationNotes,
		Status:          body.Status,
		Notes:           body.Notes,
		Metadata:        body.Metadata,
	})
	if err != nil {
		return visitError(c, err)
	}
	return response.SuccessCreated(c, "Visit created successfully", visit, nil)
}

// PUT /api/v1/visits/:visit_id
func (h *Handlers) UpdateVisit(c *fiber.Ctx) error {
	visitID, err := uuid.Parse(c.Params("visit_id"))
	if err != nil {
		return response.Error(c, "Invalid visit_id format", 400, nil)
	}

	var body visitBody
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", 400, nil)
	}
	if body.GPSLocation != nil && !validation.IsValidCoordinate(body.GPSLocation.Lon, body.GPSLocation.Lat) {
		return response.Error(c, "Invalid gps_location coordinates", 400, nil)
	}

	visit, err := h.Service.UpdateVisit(c.Context(), visitID, SaveVisitInput{
		FieldOfficerID:  body.FieldOfficerID,
		VisitDate:       body.VisitDate,
		GPSLocation:     body.GPSLocation,
		GPSAccuracyM:    body.GPSAccuracyM,
		ValidationNotes: body.ValidationNotes,
		Status:          body.Status,
		Notes:           body.Notes,
		Metadata:        body.Metadata,
	})
	if err != nil {
		return visitError(c, err)
	}
	return response.Success(c, "Visit updated successfully", visit, nil)
}

// GET /api/v1/visits/:visit_id
func (h *Handlers) GetVisit(c *fiber.Ctx) error {
	visitID, err := uuid.Parse(c.Params("visit_id"))
	if err != nil {
		return response.Error(c, "Invalid visit_id format", 400, nil)
	}
	visit, err := h.Service.GetVisit(c.Context(), visitID)
	if err != nil {
		return visitError(c, err)
	}
	return response.Success(c, "Visit fetched successfully", visit, nil)
}

func visitError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrVisitNotFound), errors.Is(err, ErrVisitFarmNotFound):
		return response.Error(c, err.Error(), 404, nil)
	case errors.Is(err, codegen.ErrExhausted):
		return response.Error(c, err.Error(), 503, nil)
	default:
		return response.Error(c, "Internal Server Error", 500, nil)
	}
}
