package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"climarisk/internal/types"
)

// RegionRepository provides data access for the regions table. The polygon is
// stored as a JSONB array of {lat,lon} vertices; listing order is the
// insertion order (id ascending) so batch runs see a stable sequence.
type RegionRepository struct {
	db DBTX
}

// NewRegionRepository creates a RegionRepository backed by the given database
// connection (pool or transaction).
func NewRegionRepository(db DBTX) *RegionRepository {
	return &RegionRepository{db: db}
}

// ListRegions returns all regions ordered by id.
func (r *RegionRepository) ListRegions(ctx context.Context) ([]types.Region, error) {
	rows, err := r.db.Query(ctx,
		`SELECT name, polygon, vulnerability, population
		 FROM regions
		 ORDER BY id`,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list regions", err)
	}
	defer rows.Close()

	var regions []types.Region
	for rows.Next() {
		region, err := scanRegion(rows)
		if err != nil {
			return nil, err
		}
		regions = append(regions, *region)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate regions", err)
	}

	return regions, nil
}

// GetRegion returns the region with the given name.
func (r *RegionRepository) GetRegion(ctx context.Context, name string) (*types.Region, error) {
	row := r.db.QueryRow(ctx,
		`SELECT name, polygon, vulnerability, population
		 FROM regions
		 WHERE name = $1`,
		name,
	)

	region, err := scanRegion(row)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get region", err)
	}
	return region, nil
}

// Upsert inserts or replaces a region definition by name.
func (r *RegionRepository) Upsert(ctx context.Context, region *types.Region) error {
	polygon, err := json.Marshal(region.Polygon)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode polygon", err)
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO regions (name, polygon, vulnerability, population)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (name) DO UPDATE
		   SET polygon = EXCLUDED.polygon,
		       vulnerability = EXCLUDED.vulnerability,
		       population = EXCLUDED.population`,
		region.Name,
		polygon,
		region.Vulnerability,
		region.Population,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to upsert region", err)
	}
	return nil
}

// scanRegion reads one region row, decoding the JSONB polygon column.
func scanRegion(row pgx.Row) (*types.Region, error) {
	var region types.Region
	var polygon []byte

	err := row.Scan(&region.Name, &polygon, &region.Vulnerability, &region.Population)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NewAppError(types.ErrCodeNotFoundRegion, "region not found", err)
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan region", err)
	}

	if err := json.Unmarshal(polygon, &region.Polygon); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB,
			fmt.Sprintf("corrupt polygon for region %q", region.Name), err)
	}

	return &region, nil
}
