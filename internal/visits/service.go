package visits

import (
	"context"
	"errors"
	"time"

	"farmetrics-backend/internal/domain"
	"farmetrics-backend/internal/pkg/codegen"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const visitCodePrefix = "VISIT"

var ErrVisitNotFound = errors.New("Visit not found")
var ErrVisitFarmNotFound = errors.New("Farm not found for visit")

// Service persists visit GPS records. is_gps_validated is recomputed from the
// owning farm's boundary on every save and is never accepted from a caller.
type Service struct {
	DB *gorm.DB
}

type SaveVisitInput struct {
	FarmID          uuid.UUID
	FieldOfficerID  *uuid.UUID
	VisitDate       *time.Time
	GPSLocation     *domain.GeoPoint
	GPSAccuracyM    *float64
	ValidationNotes *string
	Status          *string
	Notes           *string
	Metadata        datatypes.JSONMap
}

// CreateVisit inserts a visit, generating its code and deriving the GPS
// validation flag.
func (s *Service) CreateVisit(ctx context.Context, orgID uuid.UUID, in SaveVisitInput) (*domain.Visit, error) {
	farm, err := s.loadFarm(ctx, in.FarmID)
	if err != nil {
		return nil, err
	}

	visit := &domain.Visit{
		OrganizationID: orgID,
		FarmID:         in.FarmID,
		FieldOfficerID: in.FieldOfficerID,
		VisitDate:      time.Now(),
		GPSLocation:    in.GPSLocation,
		GPSAccuracyM:   in.GPSAccuracyM,
		Status:         domain.VisitStatusDraft,
		Metadata:       in.Metadata,
	}
	if in.VisitDate != nil {
		visit.VisitDate = *in.VisitDate
	}
	if in.Status != nil {
		visit.Status = *in.Status
	}
	if in.Notes != nil {
		visit.Notes = *in.Notes
	}
	if in.ValidationNotes != nil {
		visit.ValidationNotes = *in.ValidationNotes
	}

	deriveValidation(visit, farm)
	stampSubmitted(visit)

	code, err := codegen.Unique(visitCodePrefix, func(code string) (bool, error) {
		var count int64
		err := s.DB.WithContext(ctx).Model(&domain.Visit{}).
			Where("visit_code = ?", code).
			Count(&count).Error
		return count > 0, err
	})
	if err != nil {
		return nil, err
	}
	visit.VisitCode = code

	if err := s.DB.WithContext(ctx).Create(visit).Error; err != nil {
		return nil, err
	}
	return visit, nil
}

// UpdateVisit applies changes and re-derives the GPS validation flag against
// the current farm boundary.
func (s *Service) UpdateVisit(ctx context.Context, visitID uuid.UUID, in SaveVisitInput) (*domain.Visit, error) {
	var visit domain.Visit
	if err := s.DB.WithContext(ctx).Where("visit_id = ?", visitID).First(&visit).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVisitNotFound
		}
		return nil, err
	}

	if in.FieldOfficerID != nil {
		visit.FieldOfficerID = in.FieldOfficerID
	}
	if in.VisitDate != nil {
		visit.VisitDate = *in.VisitDate
	}
	if in.GPSLocation != nil {
		visit.GPSLocation = in.GPSLocation
	}
	if in.GPSAccuracyM != nil {
		visit.GPSAccuracyM = in.GPSAccuracyM
	}
	if in.Status != nil {
		visit.Status = *in.Status
	}
	if in.Notes != nil {
		visit.Notes = *in.Notes
	}
	if in.ValidationNotes != nil {
		visit.ValidationNotes = *in.ValidationNotes
	}
	if in.Metadata != nil {
		visit.Metadata = in.Metadata
	}

	farm, err := s.loadFarm(ctx, visit.FarmID)
	if err != nil {
		return nil, err
	}
	deriveValidation(&visit, farm)
	stampSubmitted(&visit)

	if err := s.DB.WithContext(ctx).Save(&visit).Error; err != nil {
		return nil, err
	}
	return &visit, nil
}

// GetVisit loads one visit by id.
func (s *Service) GetVisit(ctx context.Context, visitID uuid.UUID) (*domain.Visit, error) {
	var visit domain.Visit
	if err := s.DB.WithContext(ctx).Where("visit_id = ?", visitID).First(&visit).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVisitNotFound
		}
		return nil, err
	}
	return &visit, nil
}

func (s *Service) loadFarm(ctx context.Context, farmID uuid.UUID) (*domain.Farm, error) {
	var farm domain.Farm
	if err := s.DB.WithContext(ctx).Where("farm_id = ?", farmID).First(&farm).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVisitFarmNotFound
		}
		return nil, err
	}
	return &farm, nil
}

func deriveValidation(visit *domain.Visit, farm *domain.Farm) {
	if visit.GPSLocation == nil {
		visit.IsGPSValidated = false
		return
	}
	visit.IsGPSValidated = Validate(farm, visit.GPSLocation.Point, visit.GPSAccuracyM)
}

// stampSubmitted sets submitted_at the first time the visit reaches the
// submitted status.
func stampSubmitted(visit *domain.Visit) {
	if visit.Status == domain.VisitStatusSubmitted && visit.SubmittedAt == nil {
		now := time.Now()
		visit.SubmittedAt = &now
	}
}
