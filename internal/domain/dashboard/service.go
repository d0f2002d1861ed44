package dashboard

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/lasercare/clinic/internal/domain/pricing"
	"github.com/lasercare/clinic/internal/platform/apperr"
)

// QueueCounter reports today's queue entries by status.
type QueueCounter interface {
	QueueCounts(ctx context.Context) (map[string]int, error)
}

type RevenueSource interface {
	Stats(ctx context.Context, from, to *time.Time) (*pricing.PaymentStats, error)
}

type Service struct {
	repo    Repository
	queue   QueueCounter
	revenue RevenueSource
	logger  zerolog.Logger
	now     func() time.Time
}

func NewService(repo Repository, queue QueueCounter, revenue RevenueSource, logger zerolog.Logger) *Service {
	return &Service{repo: repo, queue: queue, revenue: revenue, logger: logger, now: time.Now}
}

// Resolve fills a missing bound with the first of the current month (from)
// or today (to).
func (s *Service) Resolve(from, to *time.Time) (Range, error) {
	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	r := Range{From: time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC), To: today}
	if from != nil {
		r.From = *from
	}
	if to != nil {
		r.To = *to
	}
	if r.To.Before(r.From) {
		return r, apperr.Validation("to must not precede from")
	}
	return r, nil
}

// Stats gathers the dashboard rollups. withRevenue adds the payment totals.
func (s *Service) Stats(ctx context.Context, from, to *time.Time, withRevenue bool) (*Stats, error) {
	r, err := s.Resolve(from, to)
	if err != nil {
		return nil, err
	}
	byStatus, err := s.repo.PatientsByStatus(ctx)
	if err != nil {
		return nil, err
	}
	total := 0
	for _, n := range byStatus {
		total += n
	}
	count, err := s.repo.SessionsCount(ctx, r.From, r.To)
	if err != nil {
		return nil, err
	}
	byZone, err := s.repo.SessionsByZone(ctx, r.From, r.To)
	if err != nil {
		return nil, err
	}
	byPraticien, err := s.repo.SessionsByPraticien(ctx, r.From, r.To)
	if err != nil {
		return nil, err
	}
	queue, err := s.queue.QueueCounts(ctx)
	if err != nil {
		return nil, err
	}

	out := &Stats{
		Range:            r,
		PatientsByStatus: byStatus,
		PatientsTotal:    total,
		Sessions:         SessionStats{Total: count, ByZone: byZone, ByPraticien: byPraticien},
		QueueToday:       queue,
	}
	if withRevenue {
		out.Revenue, err = s.revenue.Stats(ctx, &r.From, &r.To)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Export streams the sessions of the range to fn.
func (s *Service) Export(ctx context.Context, from, to *time.Time, fn func(*SessionRow) error) (Range, error) {
	r, err := s.Resolve(from, to)
	if err != nil {
		return r, err
	}
	n := 0
	err = s.repo.ExportSessions(ctx, r.From, r.To, func(row *SessionRow) error {
		n++
		return fn(row)
	})
	if err != nil {
		return r, err
	}
	s.logger.Info().
		Time("from", r.From).
		Time("to", r.To).
		Int("rows", n).
		Msg("sessions exported")
	return r, nil
}
