// Package service drives verification sessions through their lifecycle:
// initiation against a provider adapter, callback resolution to a terminal
// state, and the usable-session queries eligibility evaluation depends on.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"emblem/internal/audit"
	"emblem/internal/identity/providers"
	"emblem/internal/notify"
	"emblem/internal/verification/metrics"
	"emblem/internal/verification/models"
	"emblem/internal/wallet"
	id "emblem/pkg/domain"
	dErrors "emblem/pkg/domain-errors"
	"emblem/pkg/platform/sentinel"
	"emblem/pkg/requestcontext"
)

// Store defines the persistence interface for verification sessions.
// Error Contract:
// - Get, GetByProviderRef and FindUsable return sentinel.ErrNotFound when no
//   session matches
// - Create returns sentinel.ErrConflict on a duplicate session id
// - Update returns sentinel.ErrNotFound when the row is gone
type Store interface {
	Create(ctx context.Context, session *models.Session) error
	Get(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
	GetByProviderRef(ctx context.Context, provider, ref string) (*models.Session, error)
	ListByWallet(ctx context.Context, wallet id.WalletAddress, filter *models.SessionFilter) ([]*models.Session, error)
	FindUsable(ctx context.Context, wallet id.WalletAddress, provider string, now time.Time) (*models.Session, error)
	Update(ctx context.Context, session *models.Session) error
	ExpireDue(ctx context.Context, now time.Time, limit int) ([]*models.Session, error)
}

// WalletStore is the slice of wallet persistence the session lifecycle needs:
// upsert on initiation, DID propagation when a primary session completes.
type WalletStore interface {
	EnsureExists(ctx context.Context, address id.WalletAddress, seenAt time.Time, userAgent string) (*wallet.User, error)
	SetDID(ctx context.Context, address id.WalletAddress, did, provider string, at time.Time) error
}

type Option func(*Service)

const defaultSessionTTL = 30 * time.Minute

// Service owns the session state machine. Sessions leave pending exactly
// once; the callback handler and the expiry sweep are the only writers after
// creation, and a completed session stays reusable until its expiry.
type Service struct {
	store    Store
	wallets  WalletStore
	registry *providers.Registry
	auditor  *audit.Publisher
	bus      *notify.Bus
	metrics  *metrics.Metrics
	logger   *slog.Logger

	callbackBaseURL string
	sessionTTL      time.Duration
}

func NewService(store Store, wallets WalletStore, registry *providers.Registry, logger *slog.Logger, opts ...Option) *Service {
	svc := &Service{
		store:      store,
		wallets:    wallets,
		registry:   registry,
		logger:     logger,
		sessionTTL: defaultSessionTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.sessionTTL <= 0 {
		svc.sessionTTL = defaultSessionTTL
	}
	return svc
}

// WithAuditor mirrors session transitions into the outbox.
func WithAuditor(auditor *audit.Publisher) Option {
	return func(s *Service) { s.auditor = auditor }
}

// WithBus publishes session transitions to live subscribers.
func WithBus(bus *notify.Bus) Option {
	return func(s *Service) { s.bus = bus }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithSessionTTL overrides the default verification window.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) { s.sessionTTL = ttl }
}

// WithCallbackBaseURL sets the externally reachable base used to build
// callback targets when the caller does not supply one.
func WithCallbackBaseURL(base string) Option {
	return func(s *Service) { s.callbackBaseURL = base }
}

// InitiateResult pairs the persisted session with the provider's challenge
// descriptor the wallet owner must act on.
type InitiateResult struct {
	Session   *models.Session
	Challenge *providers.Challenge
}

// Initiate opens a primary verification session with the named provider.
// callbackTarget is the endpoint the provider will call back; empty selects
// the configured default route for the provider. The session id is appended
// to the target so the callback can be correlated even when the provider
// loses its own reference.
func (s *Service) Initiate(ctx context.Context, rawWallet, providerName, callbackTarget string) (*InitiateResult, error) {
	walletAddr, err := id.ParseWalletAddress(rawWallet)
	if err != nil {
		return nil, err
	}

	adapter, ok := s.registry.Get(providerName)
	if !ok {
		return nil, dErrors.New(dErrors.CodeProvider, "unknown identity provider: "+providerName)
	}
	if !adapter.IsAvailable() {
		return nil, dErrors.New(dErrors.CodeProvider, "identity provider not configured: "+providerName)
	}

	now := requestcontext.Now(ctx)

	// Best effort: a wallet holding a usable session has nothing to gain from
	// re-verifying. Two racing initiations can both pass this check; the
	// first session to complete is the one eligibility will find.
	existing, err := s.store.FindUsable(ctx, walletAddr, providerName, now)
	if err == nil {
		return nil, dErrors.New(dErrors.CodeConflict,
			fmt.Sprintf("a usable %s verification already exists for this wallet (session %s)", providerName, existing.ID))
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check existing sessions")
	}

	if _, err := s.wallets.EnsureExists(ctx, walletAddr, now, requestcontext.UserAgent(ctx)); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to upsert wallet user")
	}

	sessionID := id.NewSessionID()
	challenge, err := adapter.Initiate(ctx, walletAddr, s.callbackTarget(providerName, callbackTarget, sessionID))
	if err != nil {
		s.recordProviderError(providerName, err)
		s.logger.WarnContext(ctx, "verification_initiate_failed",
			"wallet", string(walletAddr),
			"provider", providerName,
			"error", err)
		return nil, dErrors.Wrap(err, dErrors.CodeProvider, "identity provider initiate failed")
	}

	expiresAt := now.Add(s.sessionTTL)
	if !challenge.ExpiresAt.IsZero() && challenge.ExpiresAt.After(now) && challenge.ExpiresAt.Before(expiresAt) {
		expiresAt = challenge.ExpiresAt
	}

	session, err := models.NewSession(sessionID, walletAddr, providerName, models.TypePrimary, now, expiresAt)
	if err != nil {
		return nil, err
	}
	session.ProviderRef = challenge.ProviderSessionID
	session.VerificationURL = challenge.VerificationURL

	if err := s.store.Create(ctx, session); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "session id collision")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist session")
	}

	if s.metrics != nil {
		s.metrics.SessionsInitiated.WithLabelValues(providerName).Inc()
	}
	s.publishSessionEvents(ctx, session, models.EventSessionCreated)
	s.logger.InfoContext(ctx, "verification_initiated",
		"session_id", session.ID.String(),
		"wallet", string(session.Wallet),
		"provider", providerName,
		"expires_at", expiresAt)

	return &InitiateResult{Session: session, Challenge: challenge}, nil
}

// HandleCallback consumes a provider callback and moves the session to a
// terminal state. The session reference is accepted from the query-string
// argument or embedded in the payload under session_id/sessionId. Processed
// outcomes (completed, failed, expired) return the terminal session with a
// nil error so the transport can acknowledge and stop provider retries;
// errors are reserved for callbacks that could not be applied at all.
func (s *Service) HandleCallback(ctx context.Context, providerName string, payload json.RawMessage, sessionIDArg string) (*models.Session, error) {
	adapter, ok := s.registry.Get(providerName)
	if !ok {
		return nil, dErrors.New(dErrors.CodeProvider, "unknown identity provider: "+providerName)
	}

	session, err := s.resolveSession(ctx, providerName, payload, sessionIDArg)
	if err != nil {
		return nil, err
	}
	if session.Provider != providerName {
		return nil, dErrors.New(dErrors.CodeNotFound, "no verification session matches the callback")
	}
	if session.Status.IsTerminal() {
		return nil, dErrors.New(dErrors.CodeConflict, "session already "+string(session.Status))
	}

	now := requestcontext.Now(ctx)

	// A late callback racing the sweep loses either way.
	if session.IsExpiredPending(now) {
		if err := session.Expire(now); err != nil {
			return nil, err
		}
		if err := s.store.Update(ctx, session); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to expire session")
		}
		s.finishSession(ctx, session, models.EventSessionExpired)
		return session, nil
	}

	result, callbackErr := adapter.CompleteCallback(ctx, payload, session.ProviderRef)
	if callbackErr != nil {
		s.recordProviderError(providerName, callbackErr)
		if err := session.Fail(callbackErr.Error(), now); err != nil {
			return nil, err
		}
		if err := s.store.Update(ctx, session); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record verification failure")
		}
		s.finishSession(ctx, session, models.EventSessionFailed)
		return session, nil
	}

	if err := session.Complete(result.DID, result.Metadata, now); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, session); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record verification result")
	}

	// The wallet row exists since initiation upserted it; a miss here is an
	// operational fault and must not undo the completed verification.
	if session.Type == models.TypePrimary && session.DID != "" {
		if err := s.wallets.SetDID(ctx, session.Wallet, session.DID, session.Provider, now); err != nil {
			s.logger.ErrorContext(ctx, "did_propagation_failed",
				"session_id", session.ID.String(),
				"wallet", string(session.Wallet),
				"error", err)
		}
	}

	s.finishSession(ctx, session, models.EventSessionCompleted)
	return session, nil
}

// ActiveSessions returns the wallet's usable sessions, newest first.
// provider narrows to one adapter; empty means all.
func (s *Service) ActiveSessions(ctx context.Context, rawWallet, provider string) ([]*models.Session, error) {
	walletAddr, err := id.ParseWalletAddress(rawWallet)
	if err != nil {
		return nil, err
	}

	completed := models.StatusCompleted
	filter := &models.SessionFilter{Status: &completed}
	if provider != "" {
		filter.Provider = &provider
	}

	sessions, err := s.store.ListByWallet(ctx, walletAddr, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list sessions")
	}

	now := requestcontext.Now(ctx)
	usable := sessions[:0]
	for _, session := range sessions {
		if session.IsUsable(now) {
			usable = append(usable, session)
		}
	}
	return usable, nil
}

// UsableSession returns the wallet's current usable session with the
// provider, or nil when none exists. Eligibility evaluation calls this per
// primary requirement.
func (s *Service) UsableSession(ctx context.Context, walletAddr id.WalletAddress, provider string) (*models.Session, error) {
	session, err := s.store.FindUsable(ctx, walletAddr, provider, requestcontext.Now(ctx))
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to query usable session")
	}
	return session, nil
}

// SweepExpired transitions pending sessions past their expiry and publishes
// the expiry events. It returns how many sessions were transitioned; the
// cleanup worker drives it in batches.
func (s *Service) SweepExpired(ctx context.Context, limit int) (int, error) {
	expired, err := s.store.ExpireDue(ctx, requestcontext.Now(ctx), limit)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to expire sessions")
	}
	for _, session := range expired {
		s.finishSession(ctx, session, models.EventSessionExpired)
	}
	return len(expired), nil
}

// resolveSession finds the session a callback refers to. Candidates are tried
// as our session id first, then as the provider's own reference.
func (s *Service) resolveSession(ctx context.Context, providerName string, payload json.RawMessage, sessionIDArg string) (*models.Session, error) {
	candidates := make([]string, 0, 3)
	if sessionIDArg != "" {
		candidates = append(candidates, sessionIDArg)
	}
	if len(payload) > 0 {
		var embedded struct {
			SessionID string `json:"session_id"`
			CamelID   string `json:"sessionId"`
		}
		if err := json.Unmarshal(payload, &embedded); err == nil {
			if embedded.SessionID != "" {
				candidates = append(candidates, embedded.SessionID)
			}
			if embedded.CamelID != "" {
				candidates = append(candidates, embedded.CamelID)
			}
		}
	}
	if len(candidates) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "callback carries no session identifier")
	}

	for _, candidate := range candidates {
		if sid, err := id.ParseSessionID(candidate); err == nil {
			session, err := s.store.Get(ctx, sid)
			if err == nil {
				return session, nil
			}
			if !errors.Is(err, sentinel.ErrNotFound) {
				return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load session")
			}
		}
		session, err := s.store.GetByProviderRef(ctx, providerName, candidate)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load session")
		}
	}
	return nil, dErrors.New(dErrors.CodeNotFound, "no verification session matches the callback")
}

func (s *Service) callbackTarget(providerName, override string, sessionID id.SessionID) string {
	base := override
	if base == "" {
		base = strings.TrimRight(s.callbackBaseURL, "/") + "/callbacks/" + providerName
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "session=" + sessionID.String()
}

// finishSession records the terminal transition everywhere interested:
// metrics, live subscribers, the outbox and the log.
func (s *Service) finishSession(ctx context.Context, session *models.Session, eventType string) {
	if s.metrics != nil {
		s.metrics.SessionOutcomes.WithLabelValues(session.Provider, string(session.Status)).Inc()
	}
	s.publishSessionEvents(ctx, session, eventType)

	switch session.Status {
	case models.StatusCompleted:
		s.logger.InfoContext(ctx, "verification_completed",
			"session_id", session.ID.String(),
			"wallet", string(session.Wallet),
			"provider", session.Provider,
			"did", session.DID)
	default:
		s.logger.WarnContext(ctx, "verification_"+string(session.Status),
			"session_id", session.ID.String(),
			"wallet", string(session.Wallet),
			"provider", session.Provider,
			"reason", session.FailureReason)
	}
}

func (s *Service) publishSessionEvents(ctx context.Context, session *models.Session, eventType string) {
	payload := sessionEventPayload(session)
	if s.bus != nil {
		event := notify.Event{Type: eventType, Payload: payload}
		s.bus.PublishWallet(ctx, session.Wallet, event)
		s.bus.PublishChannel(ctx, models.ChannelVerifications, event)
	}
	s.emitAudit(ctx, audit.Event{
		AggregateType: audit.AggregateVerificationSession,
		AggregateID:   session.ID.String(),
		EventType:     eventType,
		Payload:       payload,
	})
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	_ = s.auditor.Emit(ctx, event)
}

func (s *Service) recordProviderError(providerName string, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.ProviderErrors.WithLabelValues(providerName, string(providers.CategoryOf(err))).Inc()
}

func sessionEventPayload(session *models.Session) map[string]any {
	payload := map[string]any{
		"session_id": session.ID.String(),
		"wallet":     string(session.Wallet),
		"provider":   session.Provider,
		"type":       string(session.Type),
		"status":     string(session.Status),
	}
	if session.DID != "" {
		payload["did"] = session.DID
	}
	if session.FailureReason != "" {
		payload["reason"] = session.FailureReason
	}
	return payload
}
