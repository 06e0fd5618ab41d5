package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Farm lifecycle states.
const (
	FarmStatusActive              = "active"
	FarmStatusInactive            = "inactive"
	FarmStatusPendingVerification = "pending_verification"
	FarmStatusVerified            = "verified"
	FarmStatusFlagged             = "flagged"
)

// Farm is an agricultural parcel with geospatial data. AreaM2, AreaAcres and
// TreeDensity are derived from the boundary and tree count on every save;
// they are never accepted from a caller.
type Farm struct {
	FarmID         uuid.UUID `gorm:"column:farm_id;type:uuid;primaryKey" json:"farm_id"`
	OrganizationID uuid.UUID `gorm:"column:organization_id;type:uuid;not null;index:idx_farms_org_status" json:"organization_id"`
	FarmCode       string    `gorm:"column:farm_code;type:varchar(50);not null;uniqueIndex" json:"farm_code"`
	Name           string    `gorm:"column:name;not null;index" json:"name"`
	Description    string    `gorm:"column:description" json:"description"`

	// Opaque references owned by external collaborators.
	OwnerID  uuid.UUID  `gorm:"column:owner_id;type:uuid;not null;index" json:"owner_id"`
	RegionID *uuid.UUID `gorm:"column:region_id;type:uuid;index" json:"region_id"`

	PrimaryLocation GeoPoint         `gorm:"column:primary_location;type:text;not null" json:"primary_location"`
	Boundary        *GeoMultiPolygon `gorm:"column:boundary;type:text" json:"boundary"`
	AreaM2          *float64         `gorm:"column:area_m2" json:"area_m2"`
	AreaAcres       *float64         `gorm:"column:area_acres" json:"area_acres"`

	SoilType          string         `gorm:"column:soil_type;type:varchar(20);default:'unknown'" json:"soil_type"`
	CropType          string         `gorm:"column:crop_type;type:varchar(100);default:'Cocoa'" json:"crop_type"`
	OtherCrops        datatypes.JSON `gorm:"column:other_crops" json:"other_crops"`
	PlantingDate      *time.Time     `gorm:"column:planting_date" json:"planting_date"`
	TreeCountEstimate *int           `gorm:"column:tree_count_estimate" json:"tree_count_estimate"`
	TreeDensity       *float64       `gorm:"column:tree_density" json:"tree_density"`

	Status     string     `gorm:"column:status;type:varchar(30);default:'pending_verification';index:idx_farms_org_status" json:"status"`
	VerifiedAt *time.Time `gorm:"column:verified_at" json:"verified_at"`
	VerifiedBy *uuid.UUID `gorm:"column:verified_by;type:uuid" json:"verified_by"`

	ManagementNotes string            `gorm:"column:management_notes" json:"management_notes"`
	Metadata        datatypes.JSONMap `gorm:"column:metadata" json:"metadata"`

	CreatedBy     *uuid.UUID `gorm:"column:created_by;type:uuid" json:"created_by"`
	LastUpdatedBy *uuid.UUID `gorm:"column:last_updated_by;type:uuid" json:"last_updated_by"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Farm) TableName() string {
	return "farms"
}

// BeforeCreate sets farm_id if not already set (DBs without default uuid).
func (f *Farm) BeforeCreate(tx *gorm.DB) error {
	if f.FarmID == uuid.Nil {
		f.FarmID = uuid.New()
	}
	return nil
}

// FarmBoundaryPoint is a raw GPS capture collected while walking a farm
// boundary, kept in sequence until assembled into a polygon.
type FarmBoundaryPoint struct {
	PointID  uuid.UUID `gorm:"column:point_id;type:uuid;primaryKey" json:"point_id"`
	FarmID   uuid.UUID `gorm:"column:farm_id;type:uuid;not null;index:idx_boundary_points_farm_seq" json:"farm_id"`
	Point    GeoPoint  `gorm:"column:point;type:text;not null" json:"point"`
	Sequence int       `gorm:"column:sequence;not null;index:idx_boundary_points_farm_seq" json:"sequence"`

	AccuracyM *float64 `gorm:"column:accuracy_m" json:"accuracy_m"`
	AltitudeM *float64 `gorm:"column:altitude_m" json:"altitude_m"`

	CollectedBy *uuid.UUID `gorm:"column:collected_by;type:uuid" json:"collected_by"`
	Notes       string     `gorm:"column:notes" json:"notes"`

	CreatedAt time.Time `json:"created_at"`
}

func (FarmBoundaryPoint) TableName() string {
	return "farm_boundary_points"
}

// BeforeCreate ensures point_id is set.
func (p *FarmBoundaryPoint) BeforeCreate(tx *gorm.DB) error {
	if p.PointID == uuid.Nil {
		p.PointID = uuid.New()
	}
	return nil
}

// Change types emitted to the farm-history collaborator.
const (
	ChangePolygonUpdate     = "polygon_update"
	ChangeOwnershipTransfer = "ownership_transfer"
	ChangeStatusChange      = "status_change"
	ChangeGeneralUpdate     = "general_update"
)

// FarmChange is the change descriptor handed to the external audit trail on
// any boundary/owner/status change. This core emits it; it does not persist
// history itself.
type FarmChange struct {
	FarmID      uuid.UUID  `json:"farm_id"`
	ChangeType  string     `json:"change_type"`
	OldSnapshot *Farm      `json:"old_snapshot"`
	NewSnapshot *Farm      `json:"new_snapshot"`
	ChangedBy   *uuid.UUID `json:"changed_by"`
	Reason      string     `json:"reason"`
}
