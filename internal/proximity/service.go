package proximity

import (
	"context"
	"errors"
	"sort"

	"farmetrics-backend/internal/domain"
	"farmetrics-backend/internal/geo"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MaxRadiusKm bounds proximity queries; anything outside (0, 100] is
// rejected before touching the store.
const MaxRadiusKm = 100.0

var ErrInvalidRadius = errors.New("radius_km must be in (0, 100]")

// Service finds farms near a point. Candidate filtering is a linear scan over
// the organization's farms; ranking uses the geometry kernel's distance.
type Service struct {
	DB *gorm.DB
}

// Result is one nearby farm with its distance from the query center.
type Result struct {
	domain.Farm
	DistanceM float64 `json:"distance_m"`
}

// Nearby returns the organization's farms whose primary location lies within
// radiusKm of center, ascending by distance. The boundary is inclusive:
// distance == radius qualifies. Ties break by farm code for a deterministic
// order.
func (s *Service) Nearby(ctx context.Context, orgID uuid.UUID, center geo.Point, radiusKm float64) ([]Result, error) {
	if radiusKm <= 0 || radiusKm > MaxRadiusKm {
		return nil, ErrInvalidRadius
	}
	radiusM := radiusKm * 1000

	var farms []domain.Farm
	if err := s.DB.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Find(&farms).Error; err != nil {
		return nil, err
	}

	results := make([]Result, 0)
	for _, farm := range farms {
		d := geo.Distance(center, farm.PrimaryLocation.Point)
		if d <= radiusM {
			results = append(results, Result{Farm: farm, DistanceM: d})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].DistanceM != results[j].DistanceM {
			return results[i].DistanceM < results[j].DistanceM
		}
		return results[i].FarmCode < results[j].FarmCode
	})
	return results, nil
}
