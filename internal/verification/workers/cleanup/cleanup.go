// Package cleanup expires verification sessions whose window elapsed without
// a callback. The sweep is periodic rather than event-driven so sessions
// expire even when no callback ever arrives.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"emblem/internal/verification/metrics"
)

// Sweeper transitions due pending sessions to expired and fans the expiry
// events out. The verification service implements it.
type Sweeper interface {
	SweepExpired(ctx context.Context, limit int) (int, error)
}

// Result summarizes a sweep run.
type Result struct {
	ExpiredSessions int
}

const (
	defaultInterval  = time.Minute
	defaultBatchSize = 100
)

// Service periodically sweeps the session store.
type Service struct {
	sweeper   Sweeper
	interval  time.Duration
	batchSize int
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// Option configures Service.
type Option func(*Service)

// WithInterval overrides the sweep interval when greater than zero.
func WithInterval(interval time.Duration) Option {
	return func(s *Service) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithBatchSize caps how many sessions one store pass may transition.
func WithBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New constructs the sweep service.
func New(sweeper Sweeper, logger *slog.Logger, opts ...Option) (*Service, error) {
	if sweeper == nil {
		return nil, fmt.Errorf("sweeper is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	svc := &Service{
		sweeper:   sweeper,
		interval:  defaultInterval,
		batchSize: defaultBatchSize,
		logger:    logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc, nil
}

// Start runs the sweep periodically until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.ErrorContext(ctx, "session sweep failed", "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce sweeps in batches until the backlog is drained. A failing batch
// ends the run so a broken store is not hammered; its error is aggregated
// into the result.
func (s *Service) RunOnce(ctx context.Context) (Result, error) {
	var res Result
	var errs []error

	for {
		expired, err := s.sweeper.SweepExpired(ctx, s.batchSize)
		res.ExpiredSessions += expired
		if err != nil {
			errs = append(errs, fmt.Errorf("expire due sessions: %w", err))
			break
		}
		if expired < s.batchSize {
			break
		}
	}

	if res.ExpiredSessions > 0 {
		if s.metrics != nil {
			s.metrics.SessionsSwept.Add(float64(res.ExpiredSessions))
		}
		s.logger.InfoContext(ctx, "sessions_expired", "count", res.ExpiredSessions)
	}
	return res, errors.Join(errs...)
}
