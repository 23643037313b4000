package db

import (
	"context"
	"time"

	"github.com/google/uuid"

	"climarisk/internal/types"
)

// AlertRepository persists alert records in the alerts table. An identical
// candidate (same kind, severity and regions) recorded within the dedup
// window is suppressed rather than inserted again.
type AlertRepository struct {
	db          DBTX
	dedupWindow time.Duration
	clock       types.Clock
}

// NewAlertRepository creates an AlertRepository. A non-positive dedupWindow
// disables cross-run deduplication.
func NewAlertRepository(db DBTX, dedupWindow time.Duration, clock types.Clock) *AlertRepository {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &AlertRepository{db: db, dedupWindow: dedupWindow, clock: clock}
}

// RecordAlert persists one alert candidate and returns the stored record.
// Returns (nil, nil) when the candidate was suppressed as a duplicate of an
// alert recorded within the dedup window.
func (r *AlertRepository) RecordAlert(ctx context.Context, candidate types.AlertCandidate, message string) (*types.Alert, error) {
	now := r.clock.Now()

	if r.dedupWindow > 0 {
		var count int
		err := r.db.QueryRow(ctx,
			`SELECT COUNT(*) FROM alerts
			 WHERE kind = $1 AND severity = $2 AND regions = $3 AND created_at > $4`,
			string(candidate.Kind),
			string(candidate.Severity),
			candidate.Regions,
			now.Add(-r.dedupWindow),
		).Scan(&count)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to check alert duplicates", err)
		}
		if count > 0 {
			return nil, nil
		}
	}

	alert := &types.Alert{
		ID:        uuid.NewString(),
		Kind:      candidate.Kind,
		Severity:  candidate.Severity,
		Regions:   candidate.Regions,
		Message:   message,
		CreatedAt: now,
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO alerts (id, kind, severity, regions, message, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		alert.ID,
		string(alert.Kind),
		string(alert.Severity),
		alert.Regions,
		alert.Message,
		alert.CreatedAt,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to record alert", err)
	}

	return alert, nil
}

// ListRecent returns alerts created within the given window, newest first.
func (r *AlertRepository) ListRecent(ctx context.Context, window time.Duration) ([]types.Alert, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, kind, severity, regions, message, created_at
		 FROM alerts
		 WHERE created_at > $1
		 ORDER BY created_at DESC`,
		r.clock.Now().Add(-window),
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list alerts", err)
	}
	defer rows.Close()

	var alerts []types.Alert
	for rows.Next() {
		var a types.Alert
		var kind, severity string
		if err := rows.Scan(&a.ID, &kind, &severity, &a.Regions, &a.Message, &a.CreatedAt); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan alert", err)
		}
		a.Kind = types.IndexKind(kind)
		a.Severity = types.Severity(severity)
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate alerts", err)
	}

	return alerts, nil
}
