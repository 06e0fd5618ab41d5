package visits

import (
	"farmetrics-backend/internal/domain"
	"farmetrics-backend/internal/geo"
)

// DefaultToleranceM is the GPS accuracy buffer applied when a visit carries
// no accuracy reading.
const DefaultToleranceM = 50.0

// Validate checks a captured GPS point against the farm's boundary with an
// accuracy-sized tolerance. A farm without a boundary validates false: the
// conservative default, deliberately distinct from "unknown". Pure function,
// no side effects.
func Validate(farm *domain.Farm, point geo.Point, accuracyM *float64) bool {
	if farm == nil || farm.Boundary == nil || len(farm.Boundary.MultiPolygon) == 0 {
		return false
	}
	tolerance := DefaultToleranceM
	if accuracyM != nil {
		tolerance = *accuracyM
	}
	return geo.BufferContains(farm.Boundary.MultiPolygon, point, tolerance)
}
