package farms

import (
	"context"
	"regexp"
	"strconv"
	"testing"
	"time"

	"farmetrics-backend/internal/domain"
	"farmetrics-backend/internal/geo"
	"farmetrics-backend/internal/pkg/codegen"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// captureRecorder keeps emitted change descriptors for assertions.
type captureRecorder struct {
	changes []domain.FarmChange
}

func (r *captureRecorder) Record(_ context.Context, change domain.FarmChange) error {
	r.changes = append(r.changes, change)
	return nil
}

func setupFarmsTest(t *testing.T) (*Service, *captureRecorder) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Farm{}, &domain.FarmBoundaryPoint{}))
	rec := &captureRecorder{}
	return &Service{DB: db, Recorder: rec}, rec
}

// squareBoundary builds an axis-aligned square of the given side length in
// meters, centered near the equator where degree spacing is uniform.
func squareBoundary(sideM float64) *domain.GeoMultiPolygon {
	d := sideM / 111319.49079327358
	return &domain.GeoMultiPolygon{MultiPolygon: geo.MultiPolygon{
		{Exterior: geo.Ring{
			{Lon: 0, Lat: 0},
			{Lon: d, Lat: 0},
			{Lon: d, Lat: d},
			{Lon: 0, Lat: d},
		}},
	}}
}

func mustCreateFarm(t *testing.T, svc *Service, in CreateFarmInput) *domain.Farm {
	t.Helper()
	if in.OrganizationID == uuid.Nil {
		in.OrganizationID = uuid.New()
	}
	if in.Name == "" {
		in.Name = "Test Farm"
	}
	if in.OwnerID == uuid.Nil {
		in.OwnerID = uuid.New()
	}
	farm, err := svc.CreateFarm(context.Background(), in)
	require.NoError(t, err)
	return farm
}

func TestCreateFarm_DerivesAreaAndDensity(t *testing.T) {
	svc, _ := setupFarmsTest(t)

	trees := 500
	farm := mustCreateFarm(t, svc, CreateFarmInput{
		Boundary:          squareBoundary(100),
		TreeCountEstimate: &trees,
	})

	require.NotNil(t, farm.AreaM2)
	assert.InDelta(t, 10000, *farm.AreaM2, 1)
	require.NotNil(t, farm.AreaAcres)
	assert.InDelta(t, 10000/4046.86, *farm.AreaAcres, 0.001)
	// 500 trees on one hectare.
	require.NotNil(t, farm.TreeDensity)
	assert.InDelta(t, 500, *farm.TreeDensity, 0.1)
}

func TestCreateFarm_Defaults(t *testing.T) {
	svc, _ := setupFarmsTest(t)

	farm := mustCreateFarm(t, svc, CreateFarmInput{})
	assert.Equal(t, domain.FarmStatusPendingVerification, farm.Status)
	assert.Equal(t, "unknown", farm.SoilType)
	assert.Equal(t, "Cocoa", farm.CropType)
	assert.Nil(t, farm.AreaM2)
	assert.Nil(t, farm.TreeDensity)
}

func TestCreateFarm_GeneratedCodeFormat(t *testing.T) {
	svc, _ := setupFarmsTest(t)

	farm := mustCreateFarm(t, svc, CreateFarmInput{})
	year := strconv.Itoa(time.Now().Year())
	assert.Regexp(t, regexp.MustCompile(`^FARM-`+year+`-[A-Z0-9]{6}$`), farm.FarmCode)

	// A caller-supplied code is kept as-is.
	farm = mustCreateFarm(t, svc, CreateFarmInput{FarmCode: "FARM-2020-LEGACY"})
	assert.Equal(t, "FARM-2020-LEGACY", farm.FarmCode)
}

func TestUpdateFarm_InvalidBoundaryRejectsSaveInFull(t *testing.T) {
	svc, _ := setupFarmsTest(t)
	ctx := context.Background()

	farm := mustCreateFarm(t, svc, CreateFarmInput{Boundary: squareBoundary(100)})

	name := "Renamed"
	bowtie := &domain.GeoMultiPolygon{MultiPolygon: geo.MultiPolygon{
		{Exterior: geo.Ring{{Lon: 0, Lat: 0}, {Lon: 1, Lat: 1}, {Lon: 1, Lat: 0}, {Lon: 0, Lat: 1}}},
	}}
	_, err := svc.UpdateFarm(ctx, farm.FarmID, UpdateFarmInput{Name: &name, Boundary: bowtie})
	assert.ErrorIs(t, err, geo.ErrInvalidGeometry)

	// Neither the name nor the boundary was persisted.
	reloaded, err := svc.GetFarm(ctx, farm.FarmID)
	require.NoError(t, err)
	assert.Equal(t, "Test Farm", reloaded.Name)
	assert.InDelta(t, *farm.AreaM2, *reloaded.AreaM2, 1e-6)
}

func TestAssignBoundary_Idempotent(t *testing.T) {
	svc, rec := setupFarmsTest(t)
	ctx := context.Background()

	farm := mustCreateFarm(t, svc, CreateFarmInput{})

	boundary := squareBoundary(200)
	first, err := svc.AssignBoundary(ctx, farm.FarmID, *boundary, nil)
	require.NoError(t, err)
	second, err := svc.AssignBoundary(ctx, farm.FarmID, *boundary, nil)
	require.NoError(t, err)

	assert.Equal(t, *first.AreaM2, *second.AreaM2)
	assert.Equal(t, *first.AreaAcres, *second.AreaAcres)

	require.Len(t, rec.changes, 2)
	assert.Equal(t, domain.ChangePolygonUpdate, rec.changes[0].ChangeType)
}

func TestTransferOwnership_GeometryUntouched(t *testing.T) {
	svc, rec := setupFarmsTest(t)
	ctx := context.Background()

	trees := 100
	farm := mustCreateFarm(t, svc, CreateFarmInput{
		Boundary:          squareBoundary(100),
		TreeCountEstimate: &trees,
	})

	newOwner := uuid.New()
	updated, err := svc.TransferOwnership(ctx, farm.FarmID, newOwner, nil, "sale")
	require.NoError(t, err)

	assert.Equal(t, newOwner, updated.OwnerID)
	assert.Equal(t, *farm.AreaM2, *updated.AreaM2)
	assert.Equal(t, *farm.TreeDensity, *updated.TreeDensity)

	require.Len(t, rec.changes, 1)
	assert.Equal(t, domain.ChangeOwnershipTransfer, rec.changes[0].ChangeType)
	assert.Equal(t, "sale", rec.changes[0].Reason)
	assert.Equal(t, farm.OwnerID, rec.changes[0].OldSnapshot.OwnerID)
}

func TestUpdateFarm_ChangeClassification(t *testing.T) {
	svc, rec := setupFarmsTest(t)
	ctx := context.Background()

	farm := mustCreateFarm(t, svc, CreateFarmInput{Boundary: squareBoundary(100)})

	// Boundary wins over any other concurrent field change.
	status := domain.FarmStatusActive
	_, err := svc.UpdateFarm(ctx, farm.FarmID, UpdateFarmInput{
		Boundary: squareBoundary(150),
		Status:   &status,
	})
	require.NoError(t, err)

	flagged := domain.FarmStatusFlagged
	_, err = svc.UpdateFarm(ctx, farm.FarmID, UpdateFarmInput{Status: &flagged})
	require.NoError(t, err)

	notes := "updated notes"
	_, err = svc.UpdateFarm(ctx, farm.FarmID, UpdateFarmInput{Description: &notes})
	require.NoError(t, err)

	require.Len(t, rec.changes, 3)
	assert.Equal(t, domain.ChangePolygonUpdate, rec.changes[0].ChangeType)
	assert.Equal(t, domain.ChangeStatusChange, rec.changes[1].ChangeType)
	assert.Equal(t, domain.ChangeGeneralUpdate, rec.changes[2].ChangeType)
}

func TestVerifyFarm(t *testing.T) {
	svc, rec := setupFarmsTest(t)
	ctx := context.Background()

	farm := mustCreateFarm(t, svc, CreateFarmInput{})
	verifier := uuid.New()

	verified, err := svc.VerifyFarm(ctx, farm.FarmID, &verifier)
	require.NoError(t, err)
	assert.Equal(t, domain.FarmStatusVerified, verified.Status)
	require.NotNil(t, verified.VerifiedAt)
	assert.Equal(t, &verifier, verified.VerifiedBy)

	require.Len(t, rec.changes, 1)
	assert.Equal(t, domain.ChangeStatusChange, rec.changes[0].ChangeType)
}

func TestSoftDelete_HidesFarm(t *testing.T) {
	svc, _ := setupFarmsTest(t)
	ctx := context.Background()

	farm := mustCreateFarm(t, svc, CreateFarmInput{})
	require.NoError(t, svc.SoftDelete(ctx, farm.FarmID))

	_, err := svc.GetFarm(ctx, farm.FarmID)
	assert.ErrorIs(t, err, ErrFarmNotFound)

	farms, err := svc.ListOrgFarms(ctx, farm.OrganizationID)
	require.NoError(t, err)
	assert.Empty(t, farms)
}

func TestGenerateFarmCode_Exhaustion(t *testing.T) {
	svc, _ := setupFarmsTest(t)

	// Every candidate collides: the generator must give up with a bounded
	// number of attempts rather than loop forever.
	_, err := codegen.Unique("FARM", func(string) (bool, error) { return true, nil })
	assert.ErrorIs(t, err, codegen.ErrExhausted)

	code, err := svc.GenerateFarmCode(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, code)
}

func TestBoundaryPoints_BuildPolygon(t *testing.T) {
	svc, _ := setupFarmsTest(t)
	ctx := context.Background()

	farm := mustCreateFarm(t, svc, CreateFarmInput{})

	_, err := svc.BuildBoundaryFromPoints(ctx, farm.FarmID, nil)
	assert.ErrorIs(t, err, ErrInsufficientBoundaryPoints)

	d := 100 / 111319.49079327358
	corners := []geo.Point{
		{Lon: 0, Lat: 0},
		{Lon: d, Lat: 0},
		{Lon: d, Lat: d},
		{Lon: 0, Lat: d},
	}
	// Insert out of order; the builder must honor sequence.
	for _, i := range []int{2, 0, 3, 1} {
		_, err := svc.AddBoundaryPoint(ctx, farm.FarmID, domain.GeoPoint{Point: corners[i]}, i, nil, nil, nil, "")
		require.NoError(t, err)
	}

	points, err := svc.ListBoundaryPoints(ctx, farm.FarmID)
	require.NoError(t, err)
	require.Len(t, points, 4)
	for i, p := range points {
		assert.Equal(t, i, p.Sequence)
	}

	built, err := svc.BuildBoundaryFromPoints(ctx, farm.FarmID, nil)
	require.NoError(t, err)
	require.NotNil(t, built.AreaM2)
	assert.InDelta(t, 10000, *built.AreaM2, 1)
}

func TestAddBoundaryPoint_UnknownFarm(t *testing.T) {
	svc, _ := setupFarmsTest(t)

	_, err := svc.AddBoundaryPoint(context.Background(), uuid.New(), domain.GeoPoint{}, 0, nil, nil, nil, "")
	assert.ErrorIs(t, err, ErrFarmNotFound)
}
