package eligibility

import (
	"context"
	"fmt"
	"time"

	badgemodels "emblem/internal/badge/models"
	"emblem/internal/eligibility/attributes"
	vermodels "emblem/internal/verification/models"
	id "emblem/pkg/domain"
	dErrors "emblem/pkg/domain-errors"
	"emblem/pkg/requestcontext"

	"golang.org/x/sync/errgroup"
)

// gatherEvidence runs every primary session query and every secondary check
// concurrently under a shared timeout. Each goroutine writes to its own slot,
// and results are assembled only after the whole group settles. Checkers are
// resolved before anything launches so a misconfigured badge fails without
// touching any upstream.
func (s *Service) gatherEvidence(ctx context.Context, wallet id.WalletAddress, rules badgemodels.Rules) (*Snapshot, error) {
	checkers := make([]attributes.Checker, len(rules.Secondary))
	for i, rule := range rules.Secondary {
		checker, ok := s.checkers.Get(rule.Method)
		if !ok {
			return nil, dErrors.New(dErrors.CodeBadgeConfig,
				fmt.Sprintf("no attribute checker registered for method %q", rule.Method))
		}
		checkers[i] = checker
	}

	gatheredAt := requestcontext.Now(ctx)
	ctx, cancel := context.WithTimeout(ctx, s.evidenceTimeout)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	sessions := make([]*vermodels.Session, len(rules.Primary))
	for i, provider := range rules.Primary {
		g.Go(func() error {
			start := time.Now()
			session, err := s.sessions.UsableSession(ctx, wallet, provider)
			if s.metrics != nil {
				s.metrics.ObserveEvidenceLatency("sessions", time.Since(start))
			}
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal,
					fmt.Sprintf("query %s verification sessions", provider))
			}
			sessions[i] = session
			return nil
		})
	}

	checks := make([]CheckEvidence, len(rules.Secondary))
	for i, rule := range rules.Secondary {
		checker := checkers[i]
		g.Go(func() error {
			start := time.Now()
			result, err := checker.Check(ctx, wallet, rule.Params)
			if s.metrics != nil {
				s.metrics.ObserveEvidenceLatency(string(rule.Method), time.Since(start))
			}
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal,
					fmt.Sprintf("%s attribute check failed", rule.Method))
			}
			checks[i] = CheckEvidence{
				Method:    rule.Method,
				Required:  rule.Required,
				Satisfied: result.Satisfied,
				Detail:    result.Detail,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap := &Snapshot{Checks: checks, GatheredAt: gatheredAt}
	for i, provider := range rules.Primary {
		if sessions[i] == nil {
			continue
		}
		if snap.Sessions == nil {
			snap.Sessions = make(map[string]*vermodels.Session, len(rules.Primary))
		}
		snap.Sessions[provider] = sessions[i]
	}
	return snap, nil
}
