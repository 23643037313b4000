// Package regions provides the region store and polygon helpers.
package regions

import (
	"climarisk/internal/types"
)

// Centroid returns the representative coordinate of a polygon: the unweighted
// average of its vertices (sum of vertex coordinates divided by vertex
// count). This is NOT an area-weighted polygon centroid; regions are sampled
// at a single representative point, so vertex averaging is sufficient.
func Centroid(polygon []types.Coordinate) (types.Coordinate, error) {
	if len(polygon) == 0 {
		return types.Coordinate{}, types.NewAppError(
			types.ErrCodeInvalidStructure,
			"region polygon has no vertices",
			nil,
		)
	}

	var lat, lon float64
	for _, v := range polygon {
		lat += v.Lat
		lon += v.Lon
	}
	n := float64(len(polygon))
	return types.Coordinate{Lat: lat / n, Lon: lon / n}, nil
}
