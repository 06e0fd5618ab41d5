package proximity

import (
	"context"
	"testing"

	"farmetrics-backend/internal/domain"
	"farmetrics-backend/internal/geo"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupProximityTest(t *testing.T) (*Service, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Farm{}))
	return &Service{DB: db}, db
}

func seedFarm(t *testing.T, db *gorm.DB, orgID uuid.UUID, code string, lon, lat float64) *domain.Farm {
	t.Helper()
	farm := &domain.Farm{
		OrganizationID:  orgID,
		FarmCode:        code,
		Name:            code,
		OwnerID:         uuid.New(),
		PrimaryLocation: domain.GeoPoint{Point: geo.Point{Lon: lon, Lat: lat}},
	}
	require.NoError(t, db.Create(farm).Error)
	return farm
}

func TestNearby_RadiusValidation(t *testing.T) {
	svc, _ := setupProximityTest(t)
	ctx := context.Background()
	center := geo.Point{Lon: 0, Lat: 0}

	for _, radius := range []float64{0, -1, 100.001, 500} {
		_, err := svc.Nearby(ctx, uuid.New(), center, radius)
		assert.ErrorIs(t, err, ErrInvalidRadius)
	}

	_, err := svc.Nearby(ctx, uuid.New(), center, 100)
	assert.NoError(t, err)
}

func TestNearby_FiltersByRadius(t *testing.T) {
	svc, db := setupProximityTest(t)
	org := uuid.New()
	ctx := context.Background()
	center := geo.Point{Lon: 0, Lat: 0}

	// ~5 km north of the center.
	seedFarm(t, db, org, "FARM-2025-FIVEKM", 0, 0.045)

	results, err := svc.Nearby(ctx, org, center, 0.001)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = svc.Nearby(ctx, org, center, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 5004, results[0].DistanceM, 10)
}

func TestNearby_BoundaryInclusive(t *testing.T) {
	svc, db := setupProximityTest(t)
	org := uuid.New()
	center := geo.Point{Lon: 0, Lat: 0}

	farmPoint := geo.Point{Lon: 0, Lat: 0.045}
	seedFarm(t, db, org, "FARM-2025-ONEDGE", farmPoint.Lon, farmPoint.Lat)

	// Radius set to the farm's exact distance by the ranking metric itself.
	exactKm := geo.Distance(center, farmPoint) / 1000
	results, err := svc.Nearby(context.Background(), org, center, exactKm)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestNearby_OrderingAndTieBreak(t *testing.T) {
	svc, db := setupProximityTest(t)
	org := uuid.New()
	center := geo.Point{Lon: 0, Lat: 0}

	seedFarm(t, db, org, "FARM-2025-FAR", 0, 0.02)
	seedFarm(t, db, org, "FARM-2025-NEAR", 0, 0.005)
	// Two farms equidistant east and west of the center.
	seedFarm(t, db, org, "FARM-2025-TIEB", 0.01, 0)
	seedFarm(t, db, org, "FARM-2025-TIEA", -0.01, 0)

	results, err := svc.Nearby(context.Background(), org, center, 10)
	require.NoError(t, err)
	require.Len(t, results, 4)

	codes := make([]string, 0, len(results))
	for _, r := range results {
		codes = append(codes, r.FarmCode)
	}
	assert.Equal(t, []string{"FARM-2025-NEAR", "FARM-2025-TIEA", "FARM-2025-TIEB", "FARM-2025-FAR"}, codes)
}

func TestNearby_ScopedToOrganization(t *testing.T) {
	svc, db := setupProximityTest(t)
	org := uuid.New()
	center := geo.Point{Lon: 0, Lat: 0}

	seedFarm(t, db, org, "FARM-2025-MINE", 0, 0.001)
	seedFarm(t, db, uuid.New(), "FARM-2025-THEIRS", 0, 0.001)

	results, err := svc.Nearby(context.Background(), org, center, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "FARM-2025-MINE", results[0].FarmCode)
}
