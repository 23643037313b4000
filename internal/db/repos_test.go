package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"climarisk/internal/types"
)

type mockDBTX struct {
	mock.Mock
}

func (m *mockDBTX) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgconn.CommandTag), args.Error(1)
}

func (m *mockDBTX) Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error) {
	args := m.Called(ctx, sql, arguments)
	if r := args.Get(0); r != nil {
		return r.(pgx.Rows), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDBTX) QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgx.Row)
}

type mockRow struct {
	scanErr error
	scanFn  func(dest ...any) error
}

func (r *mockRow) Scan(dest ...any) error {
	if r.scanFn != nil {
		return r.scanFn(dest...)
	}
	return r.scanErr
}

type fixedClock struct {
	t time.Time
}

func (c fixedClock) Now() time.Time { return c.t }

// --- RegionRepository ---

func TestRegionRepository_GetRegion_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := NewRegionRepository(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: pgx.ErrNoRows})

	_, err := repo.GetRegion(ctx, "atlantis")
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeNotFoundRegion, appErr.Code)
	db.AssertExpectations(t)
}

func TestRegionRepository_GetRegion_DecodesPolygon(t *testing.T) {
	db := new(mockDBTX)
	repo := NewRegionRepository(db)
	ctx := context.Background()

	row := &mockRow{scanFn: func(dest ...any) error {
		*dest[0].(*string) = "riverside"
		*dest[1].(*[]byte) = []byte(`[{"lat":1,"lon":2},{"lat":3,"lon":4},{"lat":5,"lon":6}]`)
		*dest[2].(*float64) = 1.3
		*dest[3].(*int) = 120000
		return nil
	}}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(row)

	region, err := repo.GetRegion(ctx, "riverside")
	require.NoError(t, err)
	assert.Equal(t, "riverside", region.Name)
	require.Len(t, region.Polygon, 3)
	assert.Equal(t, types.Coordinate{Lat: 1, Lon: 2}, region.Polygon[0])
	assert.Equal(t, 1.3, region.Vulnerability)
}

func TestRegionRepository_GetRegion_CorruptPolygon(t *testing.T) {
	db := new(mockDBTX)
	repo := NewRegionRepository(db)
	ctx := context.Background()

	row := &mockRow{scanFn: func(dest ...any) error {
		*dest[0].(*string) = "riverside"
		*dest[1].(*[]byte) = []byte(`{not json`)
		return nil
	}}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(row)

	_, err := repo.GetRegion(ctx, "riverside")
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

func TestRegionRepository_ListRegions_QueryError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewRegionRepository(db)
	ctx := context.Background()

	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(nil, errors.New("connection refused"))

	_, err := repo.ListRegions(ctx)
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

func TestRegionRepository_Upsert(t *testing.T) {
	db := new(mockDBTX)
	repo := NewRegionRepository(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	err := repo.Upsert(ctx, &types.Region{
		Name:    "riverside",
		Polygon: []types.Coordinate{{Lat: 1, Lon: 2}, {Lat: 3, Lon: 4}, {Lat: 5, Lon: 6}},
	})
	require.NoError(t, err)
	db.AssertExpectations(t)
}

// --- AlertRepository ---

func TestAlertRepository_RecordAlert_Inserts(t *testing.T) {
	db := new(mockDBTX)
	now := time.Date(2026, 8, 30, 6, 0, 0, 0, time.UTC)
	repo := NewAlertRepository(db, 24*time.Hour, fixedClock{t: now})
	ctx := context.Background()

	countRow := &mockRow{scanFn: func(dest ...any) error {
		*dest[0].(*int) = 0
		return nil
	}}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(countRow)
	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	alert, err := repo.RecordAlert(ctx, types.AlertCandidate{
		Kind:     types.IndexHeat,
		Regions:  []string{"a", "b"},
		Severity: types.SeverityHigh,
	}, "heat risk high")
	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.NotEmpty(t, alert.ID)
	assert.Equal(t, now, alert.CreatedAt)
	db.AssertExpectations(t)
}

func TestAlertRepository_RecordAlert_SuppressesDuplicate(t *testing.T) {
	db := new(mockDBTX)
	repo := NewAlertRepository(db, 24*time.Hour, nil)
	ctx := context.Background()

	countRow := &mockRow{scanFn: func(dest ...any) error {
		*dest[0].(*int) = 1
		return nil
	}}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(countRow)

	alert, err := repo.RecordAlert(ctx, types.AlertCandidate{
		Kind: types.IndexHeat, Regions: []string{"a"}, Severity: types.SeverityHigh,
	}, "msg")
	require.NoError(t, err)
	assert.Nil(t, alert)
	db.AssertNotCalled(t, "Exec", mock.Anything, mock.Anything, mock.Anything)
}

func TestAlertRepository_RecordAlert_ZeroWindowSkipsDedup(t *testing.T) {
	db := new(mockDBTX)
	repo := NewAlertRepository(db, 0, nil)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	alert, err := repo.RecordAlert(ctx, types.AlertCandidate{
		Kind: types.IndexCold, Regions: []string{"a"}, Severity: types.SeverityExtreme,
	}, "msg")
	require.NoError(t, err)
	require.NotNil(t, alert)
	db.AssertNotCalled(t, "QueryRow", mock.Anything, mock.Anything, mock.Anything)
}
