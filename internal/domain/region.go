package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Level types for the administrative hierarchy, matching levels 0-3.
const (
	LevelTypeCountry  = "country"
	LevelTypeRegion   = "region"
	LevelTypeDistrict = "district"
	LevelTypeLocation = "location"
)

// Region is a node in the administrative geography tree. Level, CenterPoint
// and AreaSqKm are derived fields owned by the regions service; callers never
// supply them directly.
type Region struct {
	RegionID       uuid.UUID `gorm:"column:region_id;type:uuid;primaryKey" json:"region_id"`
	OrganizationID uuid.UUID `gorm:"column:organization_id;type:uuid;not null;index:idx_regions_org_code,unique;index:idx_regions_org_active" json:"organization_id"`
	Code           string    `gorm:"column:code;type:varchar(50);not null;index:idx_regions_org_code,unique" json:"code"`
	Name           string    `gorm:"column:name;not null;index" json:"name"`
	Description    string    `gorm:"column:description" json:"description"`

	ParentID  *uuid.UUID `gorm:"column:parent_id;type:uuid;index" json:"parent_id"`
	Level     int        `gorm:"column:level;not null;default:0;index" json:"level"`
	LevelType string     `gorm:"column:level_type;type:varchar(20);default:'location'" json:"level_type"`

	Boundary    *GeoMultiPolygon `gorm:"column:boundary;type:text" json:"boundary"`
	CenterPoint *GeoPoint        `gorm:"column:center_point;type:text" json:"center_point"`
	AreaSqKm    *float64         `gorm:"column:area_sqkm" json:"area_sqkm"`

	IsActive bool              `gorm:"column:is_active;default:true;index:idx_regions_org_active" json:"is_active"`
	Metadata datatypes.JSONMap `gorm:"column:metadata" json:"metadata"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Region) TableName() string {
	return "regions"
}

// BeforeCreate ensures region_id is set for DBs without default uuid.
func (r *Region) BeforeCreate(tx *gorm.DB) error {
	if r.RegionID == uuid.Nil {
		r.RegionID = uuid.New()
	}
	return nil
}

// LevelTypeForLevel maps hierarchy depth to its named type.
func LevelTypeForLevel(level int) string {
	switch level {
	case 0:
		return LevelTypeCountry
	case 1:
		return LevelTypeRegion
	case 2:
		return LevelTypeDistrict
	default:
		return LevelTypeLocation
	}
}
