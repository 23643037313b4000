package types

import (
	"context"
	"time"
)

// RegionStore provides access to the set of known regions. Implementations
// must return a stable, finite sequence; an empty slice is valid and results
// in a run that evaluates zero regions and emits zero alerts.
type RegionStore interface {
	ListRegions(ctx context.Context) ([]Region, error)
	GetRegion(ctx context.Context, name string) (*Region, error)
}

// AlertSink persists alert candidates. RecordAlert is called once per
// non-empty candidate; the sink owns deduplication and storage policy.
type AlertSink interface {
	RecordAlert(ctx context.Context, candidate AlertCandidate, message string) (*Alert, error)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }
