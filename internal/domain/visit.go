package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Visit statuses for the field-visit lifecycle.
const (
	VisitStatusDraft     = "draft"
	VisitStatusSubmitted = "submitted"
	VisitStatusApproved  = "approved"
	VisitStatusRejected  = "rejected"
)

// Visit is the geospatially relevant subset of a field visit. IsGPSValidated
// is recomputed from the owning farm's boundary and the record's accuracy on
// every save; it can never be set by a caller.
type Visit struct {
	VisitID        uuid.UUID `gorm:"column:visit_id;type:uuid;primaryKey" json:"visit_id"`
	OrganizationID uuid.UUID `gorm:"column:organization_id;type:uuid;not null;index" json:"organization_id"`
	FarmID         uuid.UUID `gorm:"column:farm_id;type:uuid;not null;index:idx_visits_farm_date" json:"farm_id"`
	VisitCode      string    `gorm:"column:visit_code;type:varchar(50);not null;uniqueIndex" json:"visit_code"`

	// Opaque reference to the field officer (accounts collaborator).
	FieldOfficerID *uuid.UUID `gorm:"column:field_officer_id;type:uuid;index" json:"field_officer_id"`

	VisitDate time.Time `gorm:"column:visit_date;index:idx_visits_farm_date" json:"visit_date"`

	GPSLocation     *GeoPoint `gorm:"column:gps_location;type:text" json:"gps_location"`
	GPSAccuracyM    *float64  `gorm:"column:gps_accuracy_m" json:"gps_accuracy_m"`
	IsGPSValidated  bool      `gorm:"column:is_gps_validated;default:false" json:"is_gps_validated"`
	ValidationNotes string    `gorm:"column:validation_notes" json:"validation_notes"`

	Status      string     `gorm:"column:status;type:varchar(20);default:'draft';index" json:"status"`
	SubmittedAt *time.Time `gorm:"column:submitted_at" json:"submitted_at"`

	Notes    string            `gorm:"column:notes" json:"notes"`
	Metadata datatypes.JSONMap `gorm:"column:metadata" json:"metadata"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Visit) TableName() string {
	return "visits"
}

// BeforeCreate ensures visit_id is set.
func (v *Visit) BeforeCreate(tx *gorm.DB) error {
	if v.VisitID == uuid.Nil {
		v.VisitID = uuid.New()
	}
	return nil
}
