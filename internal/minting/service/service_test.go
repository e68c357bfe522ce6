package service

//go:generate mockgen -source=../../ledger/ledger.go -destination=mocks/ledger_mock.go -package=mocks Adapter

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"emblem/internal/audit"
	badgemodels "emblem/internal/badge/models"
	"emblem/internal/eligibility"
	"emblem/internal/ledger"
	"emblem/internal/minting/models"
	"emblem/internal/minting/service/mocks"
	"emblem/internal/minting/store"
	"emblem/internal/notify"
	"emblem/internal/notify/webhook"
	id "emblem/pkg/domain"
	dErrors "emblem/pkg/domain-errors"
	"emblem/pkg/requestcontext"
)

const rawWallet = "0x8ba1f109551bd432803012645ac136ddd64dba72"

type fakeBadgeSource struct {
	byKey map[string]*badgemodels.BadgeType
}

func (f *fakeBadgeSource) GetByKey(_ context.Context, key string) (*badgemodels.BadgeType, error) {
	badge, ok := f.byKey[key]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "badge type not found: "+key)
	}
	return badge, nil
}

func (f *fakeBadgeSource) GetByID(_ context.Context, badgeID id.BadgeTypeID) (*badgemodels.BadgeType, error) {
	for _, badge := range f.byKey {
		if badge.ID == badgeID {
			return badge, nil
		}
	}
	return nil, dErrors.New(dErrors.CodeNotFound, "badge type not found")
}

type fakeEvaluator struct {
	verdict *eligibility.Verdict
	err     error
	calls   int
}

func (f *fakeEvaluator) Evaluate(_ context.Context, _ id.WalletAddress, _ *badgemodels.BadgeType) (*eligibility.Verdict, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	verdict := *f.verdict
	return &verdict, nil
}

type fakeConn struct{}

func (fakeConn) Close() error { return nil }

type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

type ServiceSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	ledgerMock *mocks.MockAdapter
	records    *store.InMemoryStore
	badges     *fakeBadgeSource
	eval       *fakeEvaluator
	bus        *notify.Bus
	auditLog   *audit.InMemoryStore
	service    *Service
	badge      *badgemodels.BadgeType
	ctx        context.Context
	now        time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.ctrl = gomock.NewController(s.T())
	s.ledgerMock = mocks.NewMockAdapter(s.ctrl)
	s.records = store.New()
	s.badge = &badgemodels.BadgeType{
		ID:       id.NewBadgeTypeID(),
		Key:      "dao-voter",
		Name:     "DAO Voter",
		LedgerID: 7,
		IssuerID: id.NewIssuerID(),
		IsActive: true,
	}
	s.badges = &fakeBadgeSource{byKey: map[string]*badgemodels.BadgeType{"dao-voter": s.badge}}
	s.eval = &fakeEvaluator{verdict: &eligibility.Verdict{
		Eligible: true,
		Reasons:  []string{"identity verified via polygonid"},
	}}
	s.bus = notify.New(logger)
	s.auditLog = audit.NewInMemoryStore()

	s.service = NewService(s.records, s.badges, s.eval, s.ledgerMock, logger,
		WithAuditor(audit.NewPublisher(s.auditLog, logger)),
		WithBus(s.bus),
	)
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *ServiceSuite) TearDownTest() {
	s.service.Wait()
	s.ctrl.Finish()
}

func (s *ServiceSuite) ctxAt(offset time.Duration) context.Context {
	return requestcontext.WithTime(context.Background(), s.now.Add(offset))
}

func (s *ServiceSuite) drain(client *notify.Client) []notify.Envelope {
	var out []notify.Envelope
	for {
		select {
		case env := <-client.Send():
			out = append(out, env)
		default:
			return out
		}
	}
}

func (s *ServiceSuite) auditEventTypes() []string {
	records, err := s.auditLog.FetchUnprocessed(context.Background(), 100)
	s.Require().NoError(err)
	types := make([]string, 0, len(records))
	for _, record := range records {
		types = append(types, record.EventType)
	}
	return types
}

func mintResult() *ledger.MintResult {
	return &ledger.MintResult{
		TokenID:         42,
		TxHash:          "0x6f1e2d3c4b5a6978",
		BlockNumber:     1042,
		ContractAddress: "0xc0ffee254729296a45a3885639ac7e10f9d54979",
		GasUsed:         91000,
	}
}

// completeMint drives one mint through to completed and returns the stored
// record.
func (s *ServiceSuite) completeMint() *models.MintRecord {
	s.ledgerMock.EXPECT().
		Mint(gomock.Any(), id.WalletAddress(rawWallet), int64(7)).
		Return(mintResult(), nil)

	record, err := s.service.InitiateMint(s.ctx, rawWallet, "dao-voter", "")
	s.Require().NoError(err)
	s.service.Wait()

	completed, err := s.service.Get(s.ctx, record.ID)
	s.Require().NoError(err)
	s.Require().Equal(models.StatusCompleted, completed.Status)
	return completed
}

func (s *ServiceSuite) TestInitiateMintHappyPath() {
	walletClient := s.bus.Attach(fakeConn{}, id.WalletAddress(rawWallet))
	badgeWatcher := s.bus.Attach(fakeConn{}, "")
	s.bus.Subscribe(badgeWatcher, []string{models.BadgeChannel("dao-voter")})

	s.ledgerMock.EXPECT().
		Mint(gomock.Any(), id.WalletAddress(rawWallet), int64(7)).
		Return(mintResult(), nil)

	record, err := s.service.InitiateMint(s.ctx, rawWallet, "dao-voter", "")
	s.Require().NoError(err)
	s.Equal(models.StatusPending, record.Status, "the caller sees the record as created")
	s.Equal(id.WalletAddress(rawWallet), record.Wallet)
	s.Equal(s.badge.ID, record.BadgeTypeID)

	s.service.Wait()

	fetched, err := s.service.Get(s.ctx, record.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusCompleted, fetched.Status)
	s.Require().NotNil(fetched.TokenID)
	s.Equal(int64(42), *fetched.TokenID)
	s.Equal("0x6f1e2d3c4b5a6978", fetched.TxHash)
	s.Require().NotNil(fetched.CompletedAt)
	s.Equal(s.now, *fetched.CompletedAt)

	verdict, ok := fetched.Metadata["eligibility"].(*eligibility.Verdict)
	s.Require().True(ok, "the eligibility snapshot rides on the record")
	s.True(verdict.Eligible)

	ledgerMeta, ok := fetched.Metadata["ledger"].(map[string]any)
	s.Require().True(ok)
	s.Equal(int64(1042), ledgerMeta["block_number"])
	s.Equal("0xc0ffee254729296a45a3885639ac7e10f9d54979", ledgerMeta["contract_address"])
	s.Equal(int64(91000), ledgerMeta["gas_used"])

	envelopes := s.drain(walletClient)
	s.Require().Len(envelopes, 3)
	s.Equal(models.EventMintStarted, envelopes[0].Type)
	s.Equal(models.EventMintProcessing, envelopes[1].Type)
	s.Equal(models.EventMintCompleted, envelopes[2].Type)
	s.Equal(record.ID.String(), envelopes[2].Payload["mint_id"])
	s.Equal(int64(42), envelopes[2].Payload["token_id"])

	watched := s.drain(badgeWatcher)
	s.Require().Len(watched, 1)
	s.Equal(models.EventMintSuccess, watched[0].Type)
	s.Equal(models.BadgeChannel("dao-voter"), watched[0].Channel)
	s.Equal(int64(42), watched[0].Payload["token_id"])

	s.Equal([]string{models.EventMintStarted, models.EventMintProcessing, models.EventMintCompleted}, s.auditEventTypes())
}

func (s *ServiceSuite) TestInitiateRecordsVerificationSession() {
	sessionID := id.NewSessionID().String()
	s.ledgerMock.EXPECT().
		Mint(gomock.Any(), id.WalletAddress(rawWallet), int64(7)).
		Return(mintResult(), nil)

	record, err := s.service.InitiateMint(s.ctx, rawWallet, "dao-voter", sessionID)
	s.Require().NoError(err)
	s.service.Wait()

	fetched, err := s.service.Get(s.ctx, record.ID)
	s.Require().NoError(err)
	s.Equal(sessionID, fetched.Metadata["verification_session_id"])
}

func (s *ServiceSuite) TestInitiateRejectsMalformedInput() {
	_, err := s.service.InitiateMint(s.ctx, "0xnothex", "dao-voter", "")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.service.InitiateMint(s.ctx, rawWallet, "dao-voter", "not-a-session-id")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestInitiateUnknownBadge() {
	_, err := s.service.InitiateMint(s.ctx, rawWallet, "ghost-badge", "")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.Empty(s.auditEventTypes(), "a lookup miss is not a rejection")
}

func (s *ServiceSuite) TestInitiateInactiveBadge() {
	s.badge.IsActive = false

	walletClient := s.bus.Attach(fakeConn{}, id.WalletAddress(rawWallet))
	_, err := s.service.InitiateMint(s.ctx, rawWallet, "dao-voter", "")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Zero(s.eval.calls, "a retired badge is refused before any provider work")

	envelopes := s.drain(walletClient)
	s.Require().Len(envelopes, 1)
	s.Equal(models.EventMintRejected, envelopes[0].Type)
	s.Equal("inactive", envelopes[0].Payload["cause"])
}

func (s *ServiceSuite) TestInitiateIneligibleWallet() {
	s.eval.verdict = &eligibility.Verdict{
		Eligible:            false,
		MissingRequirements: []string{"complete identity verification with any of: polygonid, idos"},
	}

	walletClient := s.bus.Attach(fakeConn{}, id.WalletAddress(rawWallet))
	_, err := s.service.InitiateMint(s.ctx, rawWallet, "dao-voter", "")
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	var domainErr *dErrors.Error
	s.Require().True(errors.As(err, &domainErr))
	s.Contains(domainErr.Hint, "complete identity verification")

	envelopes := s.drain(walletClient)
	s.Require().Len(envelopes, 1)
	s.Equal(models.EventMintRejected, envelopes[0].Type)
	s.Equal("ineligible", envelopes[0].Payload["cause"])

	auditRecords, auditErr := s.auditLog.FetchUnprocessed(context.Background(), 10)
	s.Require().NoError(auditErr)
	s.Require().Len(auditRecords, 1)
	s.Equal(audit.AggregateWallet, auditRecords[0].AggregateType, "no record exists, so the wallet is the aggregate")
	s.Equal(models.EventMintRejected, auditRecords[0].EventType)

	records, listErr := s.service.ListByWallet(s.ctx, rawWallet, nil)
	s.Require().NoError(listErr)
	s.Empty(records, "rejection leaves no record behind")
}

func (s *ServiceSuite) TestCompletedMintBlocksReinitiate() {
	s.completeMint()

	_, err := s.service.InitiateMint(s.ctxAt(time.Minute), rawWallet, "dao-voter", "")
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	records, listErr := s.service.ListByWallet(s.ctx, rawWallet, nil)
	s.Require().NoError(listErr)
	s.Len(records, 1)
}

func (s *ServiceSuite) TestSecondInitiateJoinsInFlightMint() {
	release := make(chan struct{})
	s.ledgerMock.EXPECT().
		Mint(gomock.Any(), id.WalletAddress(rawWallet), int64(7)).
		DoAndReturn(func(context.Context, id.WalletAddress, int64) (*ledger.MintResult, error) {
			<-release
			return mintResult(), nil
		})

	first, err := s.service.InitiateMint(s.ctx, rawWallet, "dao-voter", "")
	s.Require().NoError(err)

	// The ledger is still holding the first submission when the retry lands.
	second, err := s.service.InitiateMint(s.ctxAt(time.Second), rawWallet, "dao-voter", "")
	s.Require().NoError(err)
	s.Equal(first.ID, second.ID, "a retry joins the in-flight mint")

	close(release)
	s.service.Wait()

	records, listErr := s.service.ListByWallet(s.ctx, rawWallet, nil)
	s.Require().NoError(listErr)
	s.Require().Len(records, 1)
	s.Equal(models.StatusCompleted, records[0].Status)
}

func (s *ServiceSuite) TestConcurrentInitiatesShareOneRecord() {
	release := make(chan struct{})
	s.ledgerMock.EXPECT().
		Mint(gomock.Any(), id.WalletAddress(rawWallet), int64(7)).
		DoAndReturn(func(context.Context, id.WalletAddress, int64) (*ledger.MintResult, error) {
			<-release
			return mintResult(), nil
		})

	const callers = 8
	results := make([]*models.MintRecord, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			results[slot], errs[slot] = s.service.InitiateMint(s.ctx, rawWallet, "dao-voter", "")
		}(i)
	}
	wg.Wait()
	close(release)
	s.service.Wait()

	for i := 0; i < callers; i++ {
		s.Require().NoError(errs[i])
		s.Equal(results[0].ID, results[i].ID)
	}

	records, listErr := s.service.ListByWallet(s.ctx, rawWallet, nil)
	s.Require().NoError(listErr)
	s.Require().Len(records, 1, "one ledger submission no matter how many callers")
	s.Equal(models.StatusCompleted, records[0].Status)
}

func (s *ServiceSuite) TestLedgerFailureRecordsFailure() {
	walletClient := s.bus.Attach(fakeConn{}, id.WalletAddress(rawWallet))
	s.ledgerMock.EXPECT().
		Mint(gomock.Any(), id.WalletAddress(rawWallet), int64(7)).
		Return(nil, ledger.NewLedgerError(ledger.FailureReverted, "issuer not authorized for badge", nil))

	record, err := s.service.InitiateMint(s.ctx, rawWallet, "dao-voter", "")
	s.Require().NoError(err, "initiation succeeds, the failure is an outcome")
	s.service.Wait()

	fetched, err := s.service.Get(s.ctx, record.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusFailed, fetched.Status)
	s.Contains(fetched.FailureReason, "issuer not authorized")

	detail, ok := fetched.Metadata["ledger_error"].(map[string]any)
	s.Require().True(ok)
	s.Equal("reverted", detail["kind"])
	s.Equal(false, detail["retryable"])

	envelopes := s.drain(walletClient)
	s.Require().Len(envelopes, 3)
	s.Equal(models.EventMintFailed, envelopes[2].Type)
	s.Equal([]string{models.EventMintStarted, models.EventMintProcessing, models.EventMintFailed}, s.auditEventTypes())
}

func (s *ServiceSuite) TestFailureKeepsTxHashWhenObtained() {
	s.ledgerMock.EXPECT().
		Mint(gomock.Any(), id.WalletAddress(rawWallet), int64(7)).
		Return(nil, &ledger.LedgerError{
			Kind:    ledger.FailureReverted,
			Message: "reverted after acceptance",
			TxHash:  "0xdeadbeef",
		})

	record, err := s.service.InitiateMint(s.ctx, rawWallet, "dao-voter", "")
	s.Require().NoError(err)
	s.service.Wait()

	fetched, err := s.service.Get(s.ctx, record.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusFailed, fetched.Status)
	s.Equal("0xdeadbeef", fetched.TxHash, "the accepted transaction stays traceable")
}

func (s *ServiceSuite) TestFailedMintDoesNotBlockRetry() {
	s.ledgerMock.EXPECT().
		Mint(gomock.Any(), id.WalletAddress(rawWallet), int64(7)).
		Return(nil, ledger.NewLedgerError(ledger.FailureNetwork, "node unreachable", nil))
	s.ledgerMock.EXPECT().
		Mint(gomock.Any(), id.WalletAddress(rawWallet), int64(7)).
		Return(mintResult(), nil)

	first, err := s.service.InitiateMint(s.ctx, rawWallet, "dao-voter", "")
	s.Require().NoError(err)
	s.service.Wait()

	failed, err := s.service.Get(s.ctx, first.ID)
	s.Require().NoError(err)
	s.Require().Equal(models.StatusFailed, failed.Status)

	second, err := s.service.InitiateMint(s.ctxAt(time.Minute), rawWallet, "dao-voter", "")
	s.Require().NoError(err)
	s.NotEqual(first.ID, second.ID, "a failed record does not hold the slot")
	s.service.Wait()

	records, listErr := s.service.ListByWallet(s.ctx, rawWallet, nil)
	s.Require().NoError(listErr)
	s.Len(records, 2)
}

func (s *ServiceSuite) TestTokenRecoveredFromContractEvent() {
	s.ledgerMock.EXPECT().
		Mint(gomock.Any(), id.WalletAddress(rawWallet), int64(7)).
		Return(&ledger.MintResult{TokenID: 0, TxHash: "0xfeed"}, nil)
	s.ledgerMock.EXPECT().
		TokenOf(gomock.Any(), id.WalletAddress(rawWallet), int64(7)).
		Return(int64(77), true, nil)

	record, err := s.service.InitiateMint(s.ctx, rawWallet, "dao-voter", "")
	s.Require().NoError(err)
	s.service.Wait()

	fetched, err := s.service.Get(s.ctx, record.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusCompleted, fetched.Status)
	s.Require().NotNil(fetched.TokenID)
	s.Equal(int64(77), *fetched.TokenID)
}

func (s *ServiceSuite) TestMintWithoutRecoverableTokenFails() {
	s.ledgerMock.EXPECT().
		Mint(gomock.Any(), id.WalletAddress(rawWallet), int64(7)).
		Return(&ledger.MintResult{TokenID: 0, TxHash: "0xfeed"}, nil)
	s.ledgerMock.EXPECT().
		TokenOf(gomock.Any(), id.WalletAddress(rawWallet), int64(7)).
		Return(int64(0), false, nil)

	record, err := s.service.InitiateMint(s.ctx, rawWallet, "dao-voter", "")
	s.Require().NoError(err)
	s.service.Wait()

	fetched, err := s.service.Get(s.ctx, record.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusFailed, fetched.Status)
	s.Contains(fetched.FailureReason, "no token id could be recovered")
}

func (s *ServiceSuite) TestPanicInProcessingLandsInFailure() {
	s.ledgerMock.EXPECT().
		Mint(gomock.Any(), id.WalletAddress(rawWallet), int64(7)).
		DoAndReturn(func(context.Context, id.WalletAddress, int64) (*ledger.MintResult, error) {
			panic("nonce tracker corrupted")
		})

	record, err := s.service.InitiateMint(s.ctx, rawWallet, "dao-voter", "")
	s.Require().NoError(err)
	s.service.Wait()

	fetched, err := s.service.Get(s.ctx, record.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusFailed, fetched.Status)
	s.Contains(fetched.FailureReason, "panicked")

	detail, ok := fetched.Metadata["ledger_error"].(map[string]any)
	s.Require().True(ok)
	s.Equal("unknown", detail["kind"])
}

func (s *ServiceSuite) TestTerminalOutcomesNotifyIssuerWebhook() {
	const failingWallet = "0x1f9840a85d5af5bf1d1762f925bdaddc4201f984"

	delivered := make(chan string, 2)
	doer := doerFunc(func(req *http.Request) (*http.Response, error) {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		delivered <- req.URL.String() + " " + string(body)
		return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.badge.WebhookURL = "https://issuer.example/hooks/mints"
	svc := NewService(s.records, s.badges, s.eval, s.ledgerMock, logger,
		WithWebhook(webhook.New(doer, logger)),
	)

	s.ledgerMock.EXPECT().
		Mint(gomock.Any(), id.WalletAddress(rawWallet), int64(7)).
		Return(mintResult(), nil)
	s.ledgerMock.EXPECT().
		Mint(gomock.Any(), id.WalletAddress(failingWallet), int64(7)).
		Return(nil, ledger.NewLedgerError(ledger.FailureReverted, "execution reverted", nil))

	_, err := svc.InitiateMint(s.ctx, rawWallet, "dao-voter", "")
	s.Require().NoError(err)
	_, err = svc.InitiateMint(s.ctx, failingWallet, "dao-voter", "")
	s.Require().NoError(err)
	svc.Wait()

	// Webhook posts are detached from mint processing, so collect with a
	// deadline rather than after Wait alone.
	seen := map[string]bool{}
	for range 2 {
		select {
		case delivery := <-delivered:
			s.Contains(delivery, "https://issuer.example/hooks/mints")
			switch {
			case strings.Contains(delivery, models.EventMintCompleted):
				seen["completed"] = true
			case strings.Contains(delivery, models.EventMintFailed):
				seen["failed"] = true
			}
		case <-time.After(2 * time.Second):
			s.FailNow("issuer webhook was not delivered")
		}
	}
	s.True(seen["completed"])
	s.True(seen["failed"])
}

func (s *ServiceSuite) TestCanMintEligible() {
	decision, err := s.service.CanMint(s.ctx, rawWallet, "dao-voter")
	s.Require().NoError(err)
	s.True(decision.CanMint)
	s.Require().NotNil(decision.Verdict)
	s.True(decision.Verdict.Eligible)
}

func (s *ServiceSuite) TestCanMintIneligible() {
	s.eval.verdict = &eligibility.Verdict{
		Eligible:            false,
		MissingRequirements: []string{"complete identity verification with any of: polygonid"},
	}

	decision, err := s.service.CanMint(s.ctx, rawWallet, "dao-voter")
	s.Require().NoError(err)
	s.False(decision.CanMint)
	s.Contains(decision.Reason, "complete identity verification")
}

func (s *ServiceSuite) TestCanMintInactiveBadge() {
	s.badge.IsActive = false

	decision, err := s.service.CanMint(s.ctx, rawWallet, "dao-voter")
	s.Require().NoError(err)
	s.False(decision.CanMint)
	s.Contains(decision.Reason, "not accepting mints")
	s.Zero(s.eval.calls)
}

func (s *ServiceSuite) TestCanMintWhileMintInFlight() {
	pending, err := models.NewMintRecord(id.NewMintID(), id.WalletAddress(rawWallet), s.badge.ID, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.records.Create(s.ctx, pending))

	decision, err := s.service.CanMint(s.ctx, rawWallet, "dao-voter")
	s.Require().NoError(err)
	s.False(decision.CanMint)
	s.Contains(decision.Reason, "already in progress")
	s.Require().NotNil(decision.Existing)
	s.Equal(pending.ID, decision.Existing.ID)
}

func (s *ServiceSuite) TestCanMintHeldBadge() {
	s.completeMint()

	decision, err := s.service.CanMint(s.ctxAt(time.Minute), rawWallet, "dao-voter")
	s.Require().NoError(err)
	s.False(decision.CanMint)
	s.Contains(decision.Reason, "already holds")
}

func (s *ServiceSuite) TestRevokeCompletedMint() {
	record := s.completeMint()

	walletClient := s.bus.Attach(fakeConn{}, id.WalletAddress(rawWallet))
	auditWatcher := s.bus.Attach(fakeConn{}, "")
	s.bus.Subscribe(auditWatcher, []string{models.ChannelAudit})

	revoked, err := s.service.Revoke(s.ctxAt(time.Hour), record.ID, "issuer policy violation")
	s.Require().NoError(err)
	s.True(revoked.IsRevoked)
	s.Equal("issuer policy violation", revoked.RevokeReason)
	s.Require().NotNil(revoked.RevokedAt)
	s.Equal(s.now.Add(time.Hour), *revoked.RevokedAt)
	s.Equal(models.StatusCompleted, revoked.Status, "revocation flags the record, it does not rewrite history")

	walletEnvs := s.drain(walletClient)
	s.Require().Len(walletEnvs, 1)
	s.Equal(models.EventMintRevoked, walletEnvs[0].Type)
	s.Equal(true, walletEnvs[0].Payload["revoked"])
	s.Equal("issuer policy violation", walletEnvs[0].Payload["revoke_reason"])

	auditEnvs := s.drain(auditWatcher)
	s.Require().Len(auditEnvs, 1)
	s.Equal(models.EventMintRevoked, auditEnvs[0].Type)
	s.Equal(models.ChannelAudit, auditEnvs[0].Channel)

	s.Equal([]string{
		models.EventMintStarted,
		models.EventMintProcessing,
		models.EventMintCompleted,
		models.EventMintRevoked,
	}, s.auditEventTypes())

	_, err = s.service.Revoke(s.ctxAt(2*time.Hour), record.ID, "again")
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestRevokeValidation() {
	_, err := s.service.Revoke(s.ctx, id.MintID{}, "reason")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = s.service.Revoke(s.ctx, id.NewMintID(), "  ")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = s.service.Revoke(s.ctx, id.NewMintID(), "reason")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestRevokeReopensSlot() {
	record := s.completeMint()

	_, err := s.service.Revoke(s.ctxAt(time.Minute), record.ID, "compromised wallet")
	s.Require().NoError(err)

	s.ledgerMock.EXPECT().
		Mint(gomock.Any(), id.WalletAddress(rawWallet), int64(7)).
		Return(mintResult(), nil)

	again, err := s.service.InitiateMint(s.ctxAt(2*time.Minute), rawWallet, "dao-voter", "")
	s.Require().NoError(err)
	s.NotEqual(record.ID, again.ID)
	s.service.Wait()

	records, listErr := s.service.ListByWallet(s.ctx, rawWallet, nil)
	s.Require().NoError(listErr)
	s.Len(records, 2)
}

func (s *ServiceSuite) TestGetValidation() {
	_, err := s.service.Get(s.ctx, id.MintID{})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = s.service.Get(s.ctx, id.NewMintID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestListByWalletFilters() {
	s.completeMint()

	completed := models.StatusCompleted
	records, err := s.service.ListByWallet(s.ctx, rawWallet, &models.RecordFilter{Status: &completed})
	s.Require().NoError(err)
	s.Len(records, 1)

	failed := models.StatusFailed
	records, err = s.service.ListByWallet(s.ctx, rawWallet, &models.RecordFilter{Status: &failed})
	s.Require().NoError(err)
	s.Empty(records)
}
