package refund

import (
	"context"
	"log/slog"
	"time"

	"github.com/frahmantamala/refund-management/internal"
	"github.com/shopspring/decimal"
)

// StatsService aggregates refunds for reporting. Each call reads a single
// snapshot from the store and takes no locks.
type StatsService struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewStatsService(repo RepositoryAPI, logger *slog.Logger) *StatsService {
	return &StatsService{repo: repo, logger: logger}
}

type Summary struct {
	Counts map[Status]int             `json:"counts"`
	Totals map[Status]decimal.Decimal `json:"totals"`
}

func (s *StatsService) snapshot(ctx context.Context) ([]*Refund, error) {
	rows, err := s.repo.ListAll(ctx)
	if err != nil {
		s.logger.Error("failed to read refunds for statistics", "error", err)
		return nil, storeError("read refund statistics", err)
	}
	return fromDataModels(rows), nil
}

// CountByStatus counts refunds per status. Statuses without refunds are absent.
func (s *StatsService) CountByStatus(ctx context.Context) (map[Status]int, error) {
	refunds, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return countByStatus(refunds), nil
}

// SumAmountByStatus totals refund amounts per status. Statuses without refunds are absent.
func (s *StatsService) SumAmountByStatus(ctx context.Context) (map[Status]decimal.Decimal, error) {
	refunds, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return sumByStatus(refunds), nil
}

// Summary returns counts and totals computed from the same snapshot.
func (s *StatsService) Summary(ctx context.Context) (*Summary, error) {
	refunds, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return &Summary{
		Counts: countByStatus(refunds),
		Totals: sumByStatus(refunds),
	}, nil
}

// InRange returns refunds requested in [start, end), oldest first.
func (s *StatsService) InRange(ctx context.Context, start, end time.Time) ([]*Refund, error) {
	if end.Before(start) {
		return nil, internal.NewValidationFieldError("end", "end must not be before start", internal.ErrCodeInvalidDateRange)
	}
	if end.Equal(start) {
		return []*Refund{}, nil
	}
	rows, err := s.repo.ListRequestedBetween(ctx, start, end)
	if err != nil {
		s.logger.Error("failed to list refunds in range", "error", err, "start", start, "end", end)
		return nil, storeError("list refunds in range", err)
	}
	return fromDataModels(rows), nil
}

func countByStatus(refunds []*Refund) map[Status]int {
	counts := make(map[Status]int)
	for _, r := range refunds {
		counts[r.Status]++
	}
	return counts
}

func sumByStatus(refunds []*Refund) map[Status]decimal.Decimal {
	totals := make(map[Status]decimal.Decimal)
	for _, r := range refunds {
		totals[r.Status] = totals[r.Status].Add(r.Amount)
	}
	return totals
}
