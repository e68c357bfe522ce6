// Package eligibility decides whether a wallet qualifies for a badge: primary
// identity requirements are answered by the wallet's usable verification
// sessions, secondary behavioral requirements by registered attribute
// checkers, and both sets combine under the badge's AND/OR logic. Evidence
// gathering does the I/O; the decision over a gathered snapshot is pure.
package eligibility

import (
	"context"
	"log/slog"
	"time"

	badgemodels "emblem/internal/badge/models"
	"emblem/internal/eligibility/attributes"
	"emblem/internal/eligibility/metrics"
	vermodels "emblem/internal/verification/models"
	id "emblem/pkg/domain"
)

const defaultEvidenceTimeout = 5 * time.Second

// SessionSource is the read-only slice of the verification module the
// evaluator consults.
type SessionSource interface {
	// UsableSession returns the wallet's current usable session with the
	// provider, or nil when none exists.
	UsableSession(ctx context.Context, wallet id.WalletAddress, provider string) (*vermodels.Session, error)
}

// Service evaluates badge rules against live evidence.
type Service struct {
	sessions SessionSource
	checkers *attributes.Registry
	metrics  *metrics.Metrics
	logger   *slog.Logger

	evidenceTimeout time.Duration
}

// Option configures the Service.
type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithEvidenceTimeout bounds how long one evaluation may spend gathering
// evidence. Non-positive values keep the default.
func WithEvidenceTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.evidenceTimeout = d
		}
	}
}

func NewService(sessions SessionSource, checkers *attributes.Registry, logger *slog.Logger, opts ...Option) *Service {
	svc := &Service{
		sessions:        sessions,
		checkers:        checkers,
		logger:          logger,
		evidenceTimeout: defaultEvidenceTimeout,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Evaluate gathers the wallet's evidence for the badge's rules and decides
// eligibility. An ineligible wallet is a normal negative verdict, not an
// error; an error means the evaluation itself could not run, including
// badge-misconfiguration when a rule names an attribute method no checker is
// registered for.
func (s *Service) Evaluate(ctx context.Context, wallet id.WalletAddress, badge *badgemodels.BadgeType) (*Verdict, error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.EvaluateLatency.Observe(time.Since(start).Seconds())
		}
	}()

	snap, err := s.gatherEvidence(ctx, wallet, badge.Rules)
	if err != nil {
		s.logger.WarnContext(ctx, "eligibility_evidence_failed",
			"badge", badge.Key,
			"wallet", string(wallet),
			"error", err,
		)
		return nil, err
	}

	verdict := Decide(badge.Rules, snap)

	if s.metrics != nil {
		outcome := "ineligible"
		if verdict.Eligible {
			outcome = "eligible"
		}
		s.metrics.Evaluations.WithLabelValues(badge.Key, outcome).Inc()
	}
	s.logger.InfoContext(ctx, "eligibility_evaluated",
		"badge", badge.Key,
		"wallet", string(wallet),
		"eligible", verdict.Eligible,
		"missing", len(verdict.MissingRequirements),
	)
	return verdict, nil
}
