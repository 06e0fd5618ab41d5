package farms

import (
	"context"
	"errors"
	"time"

	"farmetrics-backend/internal/domain"
	"farmetrics-backend/internal/geo"
	"farmetrics-backend/internal/history"
	"farmetrics-backend/internal/pkg/codegen"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const farmCodePrefix = "FARM"

// Square meters per acre.
const m2PerAcre = 4046.86

// Service owns farm records and their geometry-derived fields.
type Service struct {
	DB       *gorm.DB
	Recorder history.Recorder
}

type CreateFarmInput struct {
	OrganizationID    uuid.UUID
	FarmCode          string
	Name              string
	Description       string
	OwnerID           uuid.UUID
	RegionID          *uuid.UUID
	PrimaryLocation   domain.GeoPoint
	Boundary          *domain.GeoMultiPolygon
	SoilType          string
	CropType          string
	PlantingDate      *time.Time
	TreeCountEstimate *int
	Metadata          datatypes.JSONMap
	CreatedBy         *uuid.UUID
}

type UpdateFarmInput struct {
	Name              *string
	Description       *string
	RegionID          *uuid.UUID
	PrimaryLocation   *domain.GeoPoint
	Boundary          *domain.GeoMultiPolygon
	SoilType          *string
	CropType          *string
	PlantingDate      *time.Time
	TreeCountEstimate *int
	Status            *string
	Metadata          datatypes.JSONMap
	UpdatedBy         *uuid.UUID
	Reason            string
}

// CreateFarm inserts a farm. The farm code is generated when absent and all
// geometry-derived fields are computed before the row is written; a geometry
// failure rejects the save in full.
func (s *Service) CreateFarm(ctx context.Context, in CreateFarmInput) (*domain.Farm, error) {
	farm := &domain.Farm{
		OrganizationID:    in.OrganizationID,
		FarmCode:          in.FarmCode,
		Name:              in.Name,
		Description:       in.Description,
		OwnerID:           in.OwnerID,
		RegionID:          in.RegionID,
		PrimaryLocation:   in.PrimaryLocation,
		Boundary:          in.Boundary,
		SoilType:          defaultString(in.SoilType, "unknown"),
		CropType:          defaultString(in.CropType, "Cocoa"),
		PlantingDate:      in.PlantingDate,
		TreeCountEstimate: in.TreeCountEstimate,
		Status:            domain.FarmStatusPendingVerification,
		Metadata:          in.Metadata,
		CreatedBy:         in.CreatedBy,
	}

	if err := derive(farm); err != nil {
		return nil, err
	}

	if farm.FarmCode == "" {
		code, err := s.GenerateFarmCode(ctx)
		if err != nil {
			return nil, err
		}
		farm.FarmCode = code
	}

	if err := s.DB.WithContext(ctx).Create(farm).Error; err != nil {
		return nil, err
	}
	return farm, nil
}

// UpdateFarm applies changes, re-derives geometry fields and emits a change
// descriptor to the history collaborator. No field is persisted when the
// derive step fails.
func (s *Service) UpdateFarm(ctx context.Context, farmID uuid.UUID, in UpdateFarmInput) (*domain.Farm, error) {
	farm, err := s.GetFarm(ctx, farmID)
	if err != nil {
		return nil, err
	}
	old := *farm

	if in.Name != nil {
		farm.Name = *in.Name
	}
	if in.Description != nil {
		farm.Description = *in.Description
	}
	if in.RegionID != nil {
		farm.RegionID = in.RegionID
	}
	if in.PrimaryLocation != nil {
		farm.PrimaryLocation = *in.PrimaryLocation
	}
	if in.Boundary != nil {
		farm.Boundary = in.Boundary
	}
	if in.SoilType != nil {
		farm.SoilType = *in.SoilType
	}
	if in.CropType != nil {
		farm.CropType = *in.CropType
	}
	if in.PlantingDate != nil {
		farm.PlantingDate = in.PlantingDate
	}
	if in.TreeCountEstimate != nil {
		farm.TreeCountEstimate = in.TreeCountEstimate
	}
	if in.Status != nil {
		farm.Status = *in.Status
	}
	if in.Metadata != nil {
		farm.Metadata = in.Metadata
	}
	farm.LastUpdatedBy = in.UpdatedBy

	if err := derive(farm); err != nil {
		return nil, err
	}
	if err := s.DB.WithContext(ctx).Save(farm).Error; err != nil {
		return nil, err
	}

	s.record(ctx, domain.FarmChange{
		FarmID:      farm.FarmID,
		ChangeType:  classifyChange(&old, farm),
		OldSnapshot: &old,
		NewSnapshot: farm,
		ChangedBy:   in.UpdatedBy,
		Reason:      in.Reason,
	})
	return farm, nil
}

// classifyChange picks the most specific change type for the audit trail.
func classifyChange(old, new *domain.Farm) string {
	switch {
	case !boundaryEqual(old.Boundary, new.Boundary):
		return domain.ChangePolygonUpdate
	case old.OwnerID != new.OwnerID:
		return domain.ChangeOwnershipTransfer
	case old.Status != new.Status:
		return domain.ChangeStatusChange
	default:
		return domain.ChangeGeneralUpdate
	}
}

func boundaryEqual(a, b *domain.GeoMultiPolygon) bool {
	if a == nil || b == nil {
		return a == b
	}
	ab, err := a.MarshalJSON()
	if err != nil {
		return false
	}
	bb, err := b.MarshalJSON()
	if err != nil {
		return false
	}
	return string(ab) == string(bb)
}

// derive recomputes the geometry-owned fields from the current boundary and
// tree count. Idempotent: re-deriving an unchanged farm changes nothing.
func derive(farm *domain.Farm) error {
	if farm.Boundary == nil || len(farm.Boundary.MultiPolygon) == 0 {
		farm.AreaM2 = nil
		farm.AreaAcres = nil
		farm.TreeDensity = nil
		return nil
	}
	if err := geo.Validate(farm.Boundary.MultiPolygon); err != nil {
		return err
	}
	areaM2, err := geo.ProjectedArea(farm.Boundary.MultiPolygon)
	if err != nil {
		return err
	}
	acres := areaM2 / m2PerAcre
	farm.AreaM2 = &areaM2
	farm.AreaAcres = &acres

	if farm.TreeCountEstimate != nil && areaM2 > 0 {
		density := float64(*farm.TreeCountEstimate) / (areaM2 / 10000)
		farm.TreeDensity = &density
	} else {
		// Zero area: leave density unset rather than dividing by zero.
		farm.TreeDensity = nil
	}
	return nil
}

// AssignBoundary stores a boundary, re-derives area and density and emits a
// polygon_update change.
func (s *Service) AssignBoundary(ctx context.Context, farmID uuid.UUID, boundary domain.GeoMultiPolygon, changedBy *uuid.UUID) (*domain.Farm, error) {
	farm, err := s.GetFarm(ctx, farmID)
	if err != nil {
		return nil, err
	}
	old := *farm

	farm.Boundary = &boundary
	farm.LastUpdatedBy = changedBy
	if err := derive(farm); err != nil {
		return nil, err
	}
	if err := s.DB.WithContext(ctx).Save(farm).Error; err != nil {
		return nil, err
	}

	s.record(ctx, domain.FarmChange{
		FarmID:      farm.FarmID,
		ChangeType:  domain.ChangePolygonUpdate,
		OldSnapshot: &old,
		NewSnapshot: farm,
		ChangedBy:   changedBy,
	})
	return farm, nil
}

// TransferOwnership reassigns the owner reference. Geometry is untouched.
func (s *Service) TransferOwnership(ctx context.Context, farmID, newOwnerID uuid.UUID, changedBy *uuid.UUID, reason string) (*domain.Farm, error) {
	farm, err := s.GetFarm(ctx, farmID)
	if err != nil {
		return nil, err
	}
	old := *farm

	farm.OwnerID = newOwnerID
	farm.LastUpdatedBy = changedBy
	if err := s.DB.WithContext(ctx).Save(farm).Error; err != nil {
		return nil, err
	}

	s.record(ctx, domain.FarmChange{
		FarmID:      farm.FarmID,
		ChangeType:  domain.ChangeOwnershipTransfer,
		OldSnapshot: &old,
		NewSnapshot: farm,
		ChangedBy:   changedBy,
		Reason:      reason,
	})
	return farm, nil
}

// VerifyFarm marks a farm verified and stamps the verification metadata.
func (s *Service) VerifyFarm(ctx context.Context, farmID uuid.UUID, verifiedBy *uuid.UUID) (*domain.Farm, error) {
	farm, err := s.GetFarm(ctx, farmID)
	if err != nil {
		return nil, err
	}
	old := *farm

	now := time.Now()
	farm.Status = domain.FarmStatusVerified
	farm.VerifiedAt = &now
	farm.VerifiedBy = verifiedBy
	farm.LastUpdatedBy = verifiedBy
	if err := s.DB.WithContext(ctx).Save(farm).Error; err != nil {
		return nil, err
	}

	s.record(ctx, domain.FarmChange{
		FarmID:      farm.FarmID,
		ChangeType:  domain.ChangeStatusChange,
		OldSnapshot: &old,
		NewSnapshot: farm,
		ChangedBy:   verifiedBy,
	})
	return farm, nil
}

// SoftDelete hides a farm without erasing it.
func (s *Service) SoftDelete(ctx context.Context, farmID uuid.UUID) error {
	farm, err := s.GetFarm(ctx, farmID)
	if err != nil {
		return err
	}
	return s.DB.WithContext(ctx).Delete(farm).Error
}

// GetFarm loads one farm by id (soft-deleted rows excluded by gorm).
func (s *Service) GetFarm(ctx context.Context, farmID uuid.UUID) (*domain.Farm, error) {
	var farm domain.Farm
	if err := s.DB.WithContext(ctx).Where("farm_id = ?", farmID).First(&farm).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFarmNotFound
		}
		return nil, err
	}
	return &farm, nil
}

// GetFarmByCode loads one farm by farm code.
func (s *Service) GetFarmByCode(ctx context.Context, code string) (*domain.Farm, error) {
	var farm domain.Farm
	if err := s.DB.WithContext(ctx).Where("farm_code = ?", code).First(&farm).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFarmNotFound
		}
		return nil, err
	}
	return &farm, nil
}

// ListOrgFarms returns the organization's farms, newest first.
func (s *Service) ListOrgFarms(ctx context.Context, orgID uuid.UUID) ([]domain.Farm, error) {
	var out []domain.Farm
	err := s.DB.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}

// GenerateFarmCode produces a globally unique FARM-<year>-<suffix> code with
// a bounded retry budget.
func (s *Service) GenerateFarmCode(ctx context.Context) (string, error) {
	return codegen.Unique(farmCodePrefix, func(code string) (bool, error) {
		var count int64
		err := s.DB.WithContext(ctx).Model(&domain.Farm{}).
			Where("farm_code = ?", code).
			Count(&count).Error
		return count > 0, err
	})
}

// AddBoundaryPoint appends a raw GPS capture to the farm's boundary walk.
func (s *Service) AddBoundaryPoint(ctx context.Context, farmID uuid.UUID, point domain.GeoPoint, sequence int, accuracyM, altitudeM *float64, collectedBy *uuid.UUID, notes string) (*domain.FarmBoundaryPoint, error) {
	if _, err := s.GetFarm(ctx, farmID); err != nil {
		return nil, err
	}
	bp := &domain.FarmBoundaryPoint{
		FarmID:      farmID,
		Point:       point,
		Sequence:    sequence,
		AccuracyM:   accuracyM,
		AltitudeM:   altitudeM,
		CollectedBy: collectedBy,
		Notes:       notes,
	}
	if err := s.DB.WithContext(ctx).Create(bp).Error; err != nil {
		return nil, err
	}
	return bp, nil
}

// ListBoundaryPoints returns the farm's collected points in capture order.
func (s *Service) ListBoundaryPoints(ctx context.Context, farmID uuid.UUID) ([]domain.FarmBoundaryPoint, error) {
	var out []domain.FarmBoundaryPoint
	err := s.DB.WithContext(ctx).
		Where("farm_id = ?", farmID).
		Order("sequence ASC").
		Find(&out).Error
	return out, err
}

// BuildBoundaryFromPoints closes the collected points into a single-ring
// boundary and assigns it. Requires at least 3 points.
func (s *Service) BuildBoundaryFromPoints(ctx context.Context, farmID uuid.UUID, changedBy *uuid.UUID) (*domain.Farm, error) {
	points, err := s.ListBoundaryPoints(ctx, farmID)
	if err != nil {
		return nil, err
	}
	if len(points) < 3 {
		return nil, ErrInsufficientBoundaryPoints
	}
	ring := make(geo.Ring, 0, len(points))
	for _, bp := range points {
		ring = append(ring, bp.Point.Point)
	}
	boundary := domain.GeoMultiPolygon{MultiPolygon: geo.MultiPolygon{{Exterior: ring}}}
	return s.AssignBoundary(ctx, farmID, boundary, changedBy)
}

func (s *Service) record(ctx context.Context, change domain.FarmChange) {
	if s.Recorder == nil {
		return
	}
	if err := s.Recorder.Record(ctx, change); err != nil {
		log.Warn().Err(err).Str("farm_id", change.FarmID.String()).Msg("Farm change not recorded")
	}
}

func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
