// Package service orchestrates badge minting: eligibility-gated creation of
// mint records, the detached ledger submission that completes or fails them,
// and administrative revocation.
//
// The core invariant is one live mint record per (wallet, badge type) pair.
// It is enforced in layers: the store's uniqueness predicate is
// authoritative, a single-flight group collapses concurrent initiations
// inside the process, and an optional distributed lock closes the same
// window across processes.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"emblem/internal/audit"
	badgemodels "emblem/internal/badge/models"
	"emblem/internal/eligibility"
	"emblem/internal/ledger"
	"emblem/internal/minting/metrics"
	"emblem/internal/minting/models"
	"emblem/internal/minting/tracer"
	"emblem/internal/notify"
	"emblem/internal/notify/webhook"
	id "emblem/pkg/domain"
	dErrors "emblem/pkg/domain-errors"
	"emblem/pkg/platform/sentinel"
	"emblem/pkg/requestcontext"
)

// Store defines the persistence interface for mint records.
// Error Contract:
// - Get and FindLive return sentinel.ErrNotFound when no record matches
// - Create returns sentinel.ErrConflict on a duplicate id or when a live
//   record already holds the (wallet, badge type) slot
// - Update returns sentinel.ErrNotFound when the row is gone
type Store interface {
	Create(ctx context.Context, record *models.MintRecord) error
	Get(ctx context.Context, mintID id.MintID) (*models.MintRecord, error)
	FindLive(ctx context.Context, wallet id.WalletAddress, badgeTypeID id.BadgeTypeID) (*models.MintRecord, error)
	ListByWallet(ctx context.Context, wallet id.WalletAddress, filter *models.RecordFilter) ([]*models.MintRecord, error)
	Update(ctx context.Context, record *models.MintRecord) error
}

// BadgeSource is the slice of the badge module the orchestrator consults.
// Both lookups return a CodeNotFound domain error when the badge is absent.
type BadgeSource interface {
	GetByKey(ctx context.Context, key string) (*badgemodels.BadgeType, error)
	GetByID(ctx context.Context, badgeID id.BadgeTypeID) (*badgemodels.BadgeType, error)
}

// Evaluator scores a wallet against a badge's rules.
type Evaluator interface {
	Evaluate(ctx context.Context, wallet id.WalletAddress, badge *badgemodels.BadgeType) (*eligibility.Verdict, error)
}

// MintLock serializes initiation for one (wallet, badge) pair across
// processes. Acquire reports false when another holder has the key; Release
// is best-effort, the TTL bounds how long a crashed holder blocks others.
type MintLock interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string)
}

// defaultLockTTL bounds the cross-process lock to the CanMint-then-create
// window; the ledger call itself is guarded by the record, not the lock.
const defaultLockTTL = 10 * time.Second

// Decision is the outcome of a pre-mint check.
type Decision struct {
	CanMint bool
	// Reason is human-readable and set when CanMint is false.
	Reason string
	// Existing is the live record holding the slot, when that is the cause.
	Existing *models.MintRecord
	// Verdict carries the eligibility evaluation when one was run.
	Verdict *eligibility.Verdict
}

type Option func(*Service)

// Service owns the mint record state machine. Initiation returns as soon as
// the pending record exists and the ledger work is dispatched; the outcome
// arrives by polling Get or subscribing to the bus.
type Service struct {
	store    Store
	badges   BadgeSource
	eval     Evaluator
	ledger   ledger.Adapter
	auditor  *audit.Publisher
	bus      *notify.Bus
	webhooks *webhook.Notifier
	metrics  *metrics.Metrics
	tracer   tracer.Tracer
	lock     MintLock
	lockTTL  time.Duration
	logger   *slog.Logger

	flights  singleflight.Group
	inflight sync.WaitGroup
}

func NewService(store Store, badges BadgeSource, eval Evaluator, adapter ledger.Adapter, logger *slog.Logger, opts ...Option) *Service {
	svc := &Service{
		store:   store,
		badges:  badges,
		eval:    eval,
		ledger:  adapter,
		tracer:  tracer.NewNoop(),
		lockTTL: defaultLockTTL,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// WithAuditor mirrors mint transitions into the outbox.
func WithAuditor(auditor *audit.Publisher) Option {
	return func(s *Service) { s.auditor = auditor }
}

// WithBus publishes mint transitions to live subscribers.
func WithBus(bus *notify.Bus) Option {
	return func(s *Service) { s.bus = bus }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithTracer traces mint processing; defaults to a no-op.
func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithLock adds the cross-process initiation guard.
func WithLock(lock MintLock) Option {
	return func(s *Service) { s.lock = lock }
}

// WithLockTTL overrides how long a crashed lock holder can block the pair.
func WithLockTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

// WithWebhook delivers terminal mint events to the issuer's registered URL.
func WithWebhook(n *webhook.Notifier) Option {
	return func(s *Service) { s.webhooks = n }
}

// CanMint reports whether the wallet may mint the badge right now: the badge
// must exist and be active, no live record may hold the slot, and the
// eligibility evaluator must approve. The check is advisory; InitiateMint
// re-runs it and the store's uniqueness guard has the final word.
func (s *Service) CanMint(ctx context.Context, rawWallet, badgeKey string) (*Decision, error) {
	walletAddr, err := id.ParseWalletAddress(rawWallet)
	if err != nil {
		return nil, err
	}
	decision, _, err := s.precheck(ctx, walletAddr, badgeKey)
	return decision, err
}

// InitiateMint creates a pending mint record for the wallet and dispatches
// the ledger submission, returning once both happened. verificationSession
// optionally names the session the caller completed; it is recorded with the
// eligibility snapshot for audit.
//
// When a mint for the pair is already underway, the in-flight record is
// returned instead of an error so a caller retrying a slow request lands on
// the same mint. Rejections (inactive badge, ineligible wallet, badge
// already held) publish a rejection event and return an error without
// creating a record.
func (s *Service) InitiateMint(ctx context.Context, rawWallet, badgeKey, verificationSession string) (*models.MintRecord, error) {
	walletAddr, err := id.ParseWalletAddress(rawWallet)
	if err != nil {
		return nil, err
	}
	if verificationSession != "" {
		if _, err := id.ParseSessionID(verificationSession); err != nil {
			return nil, err
		}
	}

	key := flightKey(walletAddr, badgeKey)
	result, err, _ := s.flights.Do(key, func() (any, error) {
		return s.initiate(ctx, walletAddr, badgeKey, verificationSession, key)
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.MintRecord).Clone(), nil
}

// Get returns one mint record; the polling counterpart to bus subscription.
func (s *Service) Get(ctx context.Context, mintID id.MintID) (*models.MintRecord, error) {
	if mintID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "mint ID required")
	}
	record, err := s.store.Get(ctx, mintID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "mint record not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read mint record")
	}
	return record, nil
}

// ListByWallet returns the wallet's mint records, newest first.
func (s *Service) ListByWallet(ctx context.Context, rawWallet string, filter *models.RecordFilter) ([]*models.MintRecord, error) {
	walletAddr, err := id.ParseWalletAddress(rawWallet)
	if err != nil {
		return nil, err
	}
	records, err := s.store.ListByWallet(ctx, walletAddr, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list mint records")
	}
	return records, nil
}

// Revoke invalidates a mint record. The slot the record held opens again, so
// the wallet can be re-issued the badge later. Publishes exactly one
// wallet-scoped and one audit-channel revocation event.
func (s *Service) Revoke(ctx context.Context, mintID id.MintID, reason string) (*models.MintRecord, error) {
	if mintID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "mint ID required")
	}
	if strings.TrimSpace(reason) == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "revocation reason required")
	}

	record, err := s.store.Get(ctx, mintID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "mint record not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read mint record")
	}

	badge, err := s.badges.GetByID(ctx, record.BadgeTypeID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve badge type for mint record")
	}

	now := requestcontext.Now(ctx)
	if err := record.Revoke(reason, now); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, record); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist revocation")
	}

	if s.metrics != nil {
		s.metrics.Revocations.Inc()
	}
	payload := s.announce(ctx, record, badge.Key, models.EventMintRevoked)
	if s.bus != nil {
		s.bus.PublishChannel(ctx, models.ChannelAudit, notify.Event{Type: models.EventMintRevoked, Payload: payload})
	}
	s.logger.InfoContext(ctx, "mint_revoked",
		"mint_id", record.ID.String(),
		"wallet", string(record.Wallet),
		"badge", badge.Key,
		"reason", reason)

	return record, nil
}

// Wait blocks until every dispatched ledger submission has finished. Called
// on shutdown so in-flight mints run to completion before the process exits;
// there is no cancellation path for a dispatched mint.
func (s *Service) Wait() {
	s.inflight.Wait()
}

// precheck is the shared CanMint logic. The returned badge saves initiate a
// second lookup.
func (s *Service) precheck(ctx context.Context, walletAddr id.WalletAddress, badgeKey string) (*Decision, *badgemodels.BadgeType, error) {
	badge, err := s.badges.GetByKey(ctx, badgeKey)
	if err != nil {
		return nil, nil, err
	}
	if !badge.IsActive {
		return &Decision{Reason: "badge type " + badgeKey + " is not accepting mints"}, badge, nil
	}

	existing, err := s.store.FindLive(ctx, walletAddr, badge.ID)
	if err == nil {
		reason := "a mint for this badge is already in progress"
		if existing.Status == models.StatusCompleted {
			reason = "wallet already holds this badge"
		}
		return &Decision{Reason: reason, Existing: existing}, badge, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check existing mint records")
	}

	verdict, err := s.eval.Evaluate(ctx, walletAddr, badge)
	if err != nil {
		return nil, nil, err
	}
	if !verdict.Eligible {
		return &Decision{
			Reason:  "wallet does not meet the badge requirements: " + strings.Join(verdict.MissingRequirements, "; "),
			Verdict: verdict,
		}, badge, nil
	}
	return &Decision{CanMint: true, Verdict: verdict}, badge, nil
}

// initiate runs as the single flight for one (wallet, badge) key.
func (s *Service) initiate(ctx context.Context, walletAddr id.WalletAddress, badgeKey, verificationSession, lockKey string) (*models.MintRecord, error) {
	if s.lock != nil {
		acquired, err := s.lock.Acquire(ctx, lockKey, s.lockTTL)
		switch {
		case err != nil:
			// The store's uniqueness guard still holds; losing the lock only
			// widens the race window.
			s.logger.WarnContext(ctx, "mint_lock_unavailable", "key", lockKey, "error", err)
		case !acquired:
			return s.joinForeignInitiation(ctx, walletAddr, badgeKey)
		default:
			defer s.lock.Release(context.WithoutCancel(ctx), lockKey)
		}
	}

	decision, badge, err := s.precheck(ctx, walletAddr, badgeKey)
	if err != nil {
		return nil, err
	}
	if !decision.CanMint {
		if decision.Existing != nil && decision.Existing.Status != models.StatusCompleted {
			s.logger.InfoContext(ctx, "mint_joined_inflight",
				"mint_id", decision.Existing.ID.String(),
				"wallet", string(walletAddr),
				"badge", badgeKey)
			return decision.Existing, nil
		}
		s.rejectMint(ctx, walletAddr, badgeKey, decision)
		return nil, rejectionError(badgeKey, decision)
	}

	now := requestcontext.Now(ctx)
	record, err := models.NewMintRecord(id.NewMintID(), walletAddr, badge.ID, now)
	if err != nil {
		return nil, err
	}
	record.Metadata["eligibility"] = decision.Verdict
	if verificationSession != "" {
		record.Metadata["verification_session_id"] = verificationSession
	}

	if err := s.store.Create(ctx, record); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// Another process won the slot between precheck and insert.
			return s.joinForeignInitiation(ctx, walletAddr, badgeKey)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist mint record")
	}

	if s.metrics != nil {
		s.metrics.MintsInitiated.WithLabelValues(badge.Key).Inc()
	}
	s.announce(ctx, record, badge.Key, models.EventMintStarted)
	s.logger.InfoContext(ctx, "mint_initiated",
		"mint_id", record.ID.String(),
		"wallet", string(walletAddr),
		"badge", badge.Key)

	s.dispatch(ctx, record.Clone(), badge)
	return record, nil
}

// joinForeignInitiation resolves a lost initiation race to the record that
// won it.
func (s *Service) joinForeignInitiation(ctx context.Context, walletAddr id.WalletAddress, badgeKey string) (*models.MintRecord, error) {
	badge, err := s.badges.GetByKey(ctx, badgeKey)
	if err != nil {
		return nil, err
	}
	existing, err := s.store.FindLive(ctx, walletAddr, badge.ID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeConflict, "a mint for this badge is already being initiated, retry shortly")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check existing mint records")
	}
	if existing.Status == models.StatusCompleted {
		return nil, dErrors.New(dErrors.CodeConflict, "wallet already holds this badge")
	}
	s.logger.InfoContext(ctx, "mint_joined_inflight",
		"mint_id", existing.ID.String(),
		"wallet", string(walletAddr),
		"badge", badgeKey)
	return existing, nil
}

// dispatch hands the record to the detached processing goroutine. The
// goroutine inherits the caller's values but not its cancellation: an HTTP
// caller going away must not abandon a submitted transaction.
func (s *Service) dispatch(ctx context.Context, record *models.MintRecord, badge *badgemodels.BadgeType) {
	dctx := context.WithoutCancel(ctx)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.process(dctx, record, badge)
	}()
}

func (s *Service) process(ctx context.Context, record *models.MintRecord, badge *badgemodels.BadgeType) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanMintExecute,
		tracer.String(tracer.AttrMintID, record.ID.String()),
		tracer.String(tracer.AttrWallet, string(record.Wallet)),
		tracer.String(tracer.AttrBadge, badge.Key),
	)
	err := s.execute(ctx, span, record, badge)
	span.End(err)
}

// execute drives the record through processing to a terminal state. Every
// failure, including a panic anywhere below, lands in recordFailure so the
// record never sticks in processing silently.
func (s *Service) execute(ctx context.Context, span tracer.Span, record *models.MintRecord, badge *badgemodels.BadgeType) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("mint processing panicked: %v", r)
			span.AddEvent(tracer.EventPanicRecovered)
			s.logger.ErrorContext(ctx, "mint_processing_panic",
				"mint_id", record.ID.String(),
				"badge", badge.Key,
				"panic", fmt.Sprint(r))
			s.recordFailure(ctx, record, badge, err)
		}
	}()

	now := requestcontext.Now(ctx)
	if err := record.BeginProcessing(now); err != nil {
		return err
	}
	if err := s.store.Update(ctx, record); err != nil {
		wrapped := dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist processing transition")
		s.recordFailure(ctx, record, badge, wrapped)
		return wrapped
	}
	s.announce(ctx, record, badge.Key, models.EventMintProcessing)

	lctx, lspan := s.tracer.Start(ctx, tracer.SpanLedgerSubmit)
	start := time.Now()
	result, mintErr := s.ledger.Mint(lctx, record.Wallet, badge.LedgerID)
	if s.metrics != nil {
		s.metrics.LedgerLatency.Observe(time.Since(start).Seconds())
	}
	lspan.End(mintErr)
	if mintErr != nil {
		s.recordFailure(ctx, record, badge, mintErr)
		return mintErr
	}

	// Token ids start at 1; a zero means the receipt lost it and the
	// contract's mint event is the fallback source.
	if result.TokenID == 0 {
		tokenID, ok, lookupErr := s.ledger.TokenOf(ctx, record.Wallet, badge.LedgerID)
		if lookupErr != nil || !ok {
			missing := fmt.Errorf("mint confirmed in %s but no token id could be recovered", result.TxHash)
			s.recordFailure(ctx, record, badge, missing)
			return missing
		}
		result.TokenID = tokenID
	}

	completedAt := requestcontext.Now(ctx)
	if err := record.Complete(result.TokenID, result.TxHash, completedAt); err != nil {
		return err
	}
	record.Metadata["ledger"] = map[string]any{
		"block_number":     result.BlockNumber,
		"contract_address": result.ContractAddress,
		"gas_used":         result.GasUsed,
	}
	if err := s.store.Update(ctx, record); err != nil {
		// The token exists on the ledger either way; keep the record out of
		// failed and leave reconciliation to TokenOf on the next read.
		wrapped := dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist completed mint")
		s.logger.ErrorContext(ctx, "mint_completion_not_persisted",
			"mint_id", record.ID.String(),
			"token_id", result.TokenID,
			"tx_hash", result.TxHash,
			"error", err)
		return wrapped
	}

	span.SetAttributes(
		tracer.Int64(tracer.AttrTokenID, result.TokenID),
		tracer.String(tracer.AttrTxHash, result.TxHash),
	)
	span.AddEvent(tracer.EventLedgerConfirmed)
	if s.metrics != nil {
		s.metrics.MintOutcomes.WithLabelValues(badge.Key, string(models.StatusCompleted)).Inc()
	}
	payload := s.announce(ctx, record, badge.Key, models.EventMintCompleted)
	if s.bus != nil {
		s.bus.PublishChannel(ctx, models.BadgeChannel(badge.Key), notify.Event{Type: models.EventMintSuccess, Payload: payload})
	}
	s.notifyIssuer(ctx, badge, models.EventMintCompleted, payload)
	s.logger.InfoContext(ctx, "mint_completed",
		"mint_id", record.ID.String(),
		"wallet", string(record.Wallet),
		"badge", badge.Key,
		"token_id", result.TokenID,
		"tx_hash", result.TxHash)
	return nil
}

// recordFailure is the single sink for everything that goes wrong after a
// record exists: classified ledger errors, storage faults and recovered
// panics all end here.
func (s *Service) recordFailure(ctx context.Context, record *models.MintRecord, badge *badgemodels.BadgeType, cause error) {
	now := requestcontext.Now(ctx)
	if err := record.Fail(cause.Error(), now); err != nil {
		s.logger.ErrorContext(ctx, "mint_failure_not_recorded",
			"mint_id", record.ID.String(),
			"status", string(record.Status),
			"error", cause)
		return
	}
	detail := map[string]any{
		"kind":      string(ledger.KindOf(cause)),
		"message":   cause.Error(),
		"retryable": ledger.IsRetryable(cause),
	}
	if hash := ledger.TxHashOf(cause); hash != "" {
		detail["tx_hash"] = hash
		record.TxHash = hash
	}
	record.Metadata["ledger_error"] = detail

	if err := s.store.Update(ctx, record); err != nil {
		s.logger.ErrorContext(ctx, "mint_failure_not_persisted",
			"mint_id", record.ID.String(),
			"error", err)
	}
	if s.metrics != nil {
		s.metrics.MintOutcomes.WithLabelValues(badge.Key, string(models.StatusFailed)).Inc()
	}
	payload := s.announce(ctx, record, badge.Key, models.EventMintFailed)
	s.notifyIssuer(ctx, badge, models.EventMintFailed, payload)
	s.logger.WarnContext(ctx, "mint_failed",
		"mint_id", record.ID.String(),
		"wallet", string(record.Wallet),
		"badge", badge.Key,
		"kind", string(ledger.KindOf(cause)),
		"reason", cause.Error())
}

// rejectMint publishes the refusal of an initiation no record was created
// for.
func (s *Service) rejectMint(ctx context.Context, walletAddr id.WalletAddress, badgeKey string, decision *Decision) {
	cause := rejectionCause(decision)
	if s.metrics != nil {
		s.metrics.Rejections.WithLabelValues(badgeKey, cause).Inc()
	}
	payload := map[string]any{
		"wallet": string(walletAddr),
		"badge":  badgeKey,
		"reason": decision.Reason,
		"cause":  cause,
	}
	if s.bus != nil {
		s.bus.PublishWallet(ctx, walletAddr, notify.Event{Type: models.EventMintRejected, Payload: payload})
	}
	s.emitAudit(ctx, audit.Event{
		AggregateType: audit.AggregateWallet,
		AggregateID:   string(walletAddr),
		EventType:     models.EventMintRejected,
		Payload:       payload,
	})
	s.logger.InfoContext(ctx, "mint_rejected",
		"wallet", string(walletAddr),
		"badge", badgeKey,
		"cause", cause,
		"reason", decision.Reason)
}

func rejectionError(badgeKey string, decision *Decision) error {
	switch rejectionCause(decision) {
	case "duplicate":
		return dErrors.New(dErrors.CodeConflict, decision.Reason)
	case "ineligible":
		return dErrors.NewWithHint(dErrors.CodeForbidden,
			"wallet is not eligible for badge "+badgeKey,
			strings.Join(decision.Verdict.MissingRequirements, "; "))
	default:
		return dErrors.New(dErrors.CodeValidation, decision.Reason)
	}
}

func rejectionCause(decision *Decision) string {
	switch {
	case decision.Existing != nil:
		return "duplicate"
	case decision.Verdict != nil && !decision.Verdict.Eligible:
		return "ineligible"
	default:
		return "inactive"
	}
}

// announce delivers one transition to the wallet's subscribers and the
// outbox, returning the payload for callers that fan out further.
func (s *Service) announce(ctx context.Context, record *models.MintRecord, badgeKey, eventType string) map[string]any {
	payload := mintEventPayload(record, badgeKey)
	if s.bus != nil {
		s.bus.PublishWallet(ctx, record.Wallet, notify.Event{Type: eventType, Payload: payload})
	}
	s.emitAudit(ctx, audit.Event{
		AggregateType: audit.AggregateMintRecord,
		AggregateID:   record.ID.String(),
		EventType:     eventType,
		Payload:       payload,
	})
	return payload
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	_ = s.auditor.Emit(ctx, event)
}

// notifyIssuer pushes a terminal transition to the issuer's webhook. Delivery
// is best-effort and detached; the mint outcome never depends on it.
func (s *Service) notifyIssuer(ctx context.Context, badge *badgemodels.BadgeType, eventType string, payload map[string]any) {
	if s.webhooks == nil {
		return
	}
	s.webhooks.Notify(ctx, badge.WebhookURL, notify.Event{Type: eventType, Payload: payload})
}

func flightKey(walletAddr id.WalletAddress, badgeKey string) string {
	return string(walletAddr) + "|" + badgeKey
}

func mintEventPayload(record *models.MintRecord, badgeKey string) map[string]any {
	payload := map[string]any{
		"mint_id":       record.ID.String(),
		"wallet":        string(record.Wallet),
		"badge":         badgeKey,
		"badge_type_id": record.BadgeTypeID.String(),
		"status":        string(record.Status),
	}
	if record.TokenID != nil {
		payload["token_id"] = *record.TokenID
	}
	if record.TxHash != "" {
		payload["tx_hash"] = record.TxHash
	}
	if record.FailureReason != "" {
		payload["reason"] = record.FailureReason
	}
	if record.IsRevoked {
		payload["revoked"] = true
		payload["revoke_reason"] = record.RevokeReason
	}
	return payload
}
