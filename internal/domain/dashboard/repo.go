package dashboard

import (
	"context"
	"time"
)

// Repository runs the read-only rollups. Ranges are [from, to] in whole days.
type Repository interface {
	PatientsByStatus(ctx context.Context) (map[string]int, error)
	SessionsCount(ctx context.Context, from, to time.Time) (int, error)
	SessionsByZone(ctx context.Context, from, to time.Time) ([]ZoneCount, error)
	SessionsByPraticien(ctx context.Context, from, to time.Time) ([]PraticienCount, error)
	// ExportSessions calls fn for each session in date order and stops at
	// the first error fn returns.
	ExportSessions(ctx context.Context, from, to time.Time, fn func(*SessionRow) error) error
}
