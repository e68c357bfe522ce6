package badgeflow

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"emblem/internal/audit"
	badgemodels "emblem/internal/badge/models"
	badgesvc "emblem/internal/badge/service"
	badgestore "emblem/internal/badge/store"
	"emblem/internal/eligibility"
	"emblem/internal/eligibility/attributes"
	"emblem/internal/identity/providers"
	"emblem/internal/identity/providers/polygonid"
	"emblem/internal/identity/providers/stub"
	"emblem/internal/ledger"
	mintmodels "emblem/internal/minting/models"
	mintsvc "emblem/internal/minting/service"
	mintstore "emblem/internal/minting/store"
	"emblem/internal/notify"
	verhandler "emblem/internal/verification/handler"
	vermodels "emblem/internal/verification/models"
	versvc "emblem/internal/verification/service"
	verstore "emblem/internal/verification/store"
	"emblem/internal/wallet"
	id "emblem/pkg/domain"
	"emblem/pkg/requestcontext"
)

const walletAlice = "0x8ba1f109551bd432803012645ac136ddd64dba72"

type fakeConn struct{}

func (fakeConn) Close() error { return nil }

// pipeline is the badge stack wired the way cmd/server wires it: memory
// stores, the deterministic stub provider behind the real callback route,
// eligibility over live sessions and minting against the ledger stub. The
// stub ledger gets a little latency so records are observably in flight.
type pipeline struct {
	router       *chi.Mux
	verification *versvc.Service
	badges       *badgesvc.Service
	minting      *mintsvc.Service
	bus          *notify.Bus
	outbox       *audit.InMemoryStore
	wallets      *wallet.InMemoryStore

	now          time.Time
	nextLedgerID int64
}

func SetupSuite(t *testing.T) *pipeline {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	outbox := audit.NewInMemoryStore()
	auditor := audit.NewPublisher(outbox, logger)
	bus := notify.New(logger)
	wallets := wallet.NewInMemoryStore()

	registry := providers.NewRegistry()
	require.NoError(t, registry.Register(stub.NewSeeded(stub.Config{SuccessRate: 1}, 1)))

	verification := versvc.NewService(verstore.New(), wallets, registry, logger,
		versvc.WithAuditor(auditor),
		versvc.WithBus(bus),
		versvc.WithCallbackBaseURL("http://emblem.test"),
	)

	badges := badgesvc.NewService(badgestore.New(), logger)

	checkers := attributes.NewRegistry()
	require.NoError(t, attributes.RegisterStubs(checkers, attributes.Config{}))
	evaluator := eligibility.NewService(verification, checkers, logger)

	minting := mintsvc.NewService(
		mintstore.New(), badges, evaluator,
		ledger.NewStub(ledger.StubConfig{Latency: 25 * time.Millisecond}),
		logger,
		mintsvc.WithAuditor(auditor),
		mintsvc.WithBus(bus),
	)

	router := chi.NewRouter()
	verhandler.New(verification, logger).RegisterRoutes(router)

	p := &pipeline{
		router:       router,
		verification: verification,
		badges:       badges,
		minting:      minting,
		bus:          bus,
		outbox:       outbox,
		wallets:      wallets,
		now:          time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC),
		nextLedgerID: 1,
	}
	t.Cleanup(minting.Wait)
	return p
}

func (p *pipeline) ctx() context.Context {
	return requestcontext.WithTime(context.Background(), p.now)
}

func (p *pipeline) ctxAt(offset time.Duration) context.Context {
	return requestcontext.WithTime(context.Background(), p.now.Add(offset))
}

// createBadge registers an active badge type through the admin surface.
// Flow tests stick to primary-only rules; the attribute stubs' pass/fail
// split per wallet is covered by the eligibility package's own tests.
func (p *pipeline) createBadge(t *testing.T, key string, rules badgemodels.Rules) *badgemodels.BadgeType {
	t.Helper()
	ledgerID := p.nextLedgerID
	p.nextLedgerID++

	badge, err := p.badges.Create(p.ctx(), badgesvc.CreateParams{
		Key:      key,
		Name:     "Badge " + key,
		LedgerID: ledgerID,
		IssuerID: id.NewIssuerID(),
		Rules:    rules,
	})
	require.NoError(t, err)
	return badge
}

// completeVerification drives the wallet through a stub verification over the
// HTTP callback route and returns the session id.
func (p *pipeline) completeVerification(t *testing.T, rawWallet, did string) string {
	t.Helper()
	result, err := p.verification.Initiate(p.ctx(), rawWallet, stub.Name, "")
	require.NoError(t, err)
	require.NotEmpty(t, result.Challenge.VerificationURL)

	payload := fmt.Sprintf(`{"outcome":"approved","did":%q}`, did)
	body := p.postCallbackAt(t, stub.Name, result.Session.ID.String(), payload, p.now, http.StatusOK)
	require.Equal(t, string(vermodels.StatusCompleted), body["status"])

	return result.Session.ID.String()
}

// postCallbackAt delivers a provider callback through the router at the given
// time and decodes the acknowledgement body.
func (p *pipeline) postCallbackAt(t *testing.T, provider, sessionID, payload string, at time.Time, wantStatus int) map[string]string {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/callbacks/"+provider+"?session="+sessionID, strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(requestcontext.WithTime(req.Context(), at))
	rec := httptest.NewRecorder()

	p.router.ServeHTTP(rec, req)
	res := rec.Result()
	defer res.Body.Close()

	require.Equal(t, wantStatus, res.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	return body
}

func drain(client *notify.Client) []notify.Envelope {
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

func envelopeTypes(envelopes []notify.Envelope) []string {
	types := make([]string, 0, len(envelopes))
	for _, env := range envelopes {
		types = append(types, env.Type)
	}
	return types
}

func outboxTypes(t *testing.T, outbox *audit.InMemoryStore) []string {
	t.Helper()
	records, err := outbox.FetchUnprocessed(context.Background(), 100)
	require.NoError(t, err)
	types := make([]string, 0, len(records))
	for _, record := range records {
		types = append(types, record.EventType)
	}
	return types
}

func TestVerifyThenMintFlow(t *testing.T) {
	p := SetupSuite(t)
	badge := p.createBadge(t, "og-member", badgemodels.Rules{
		Primary: []string{stub.Name, polygonid.Name},
		Logic:   badgemodels.LogicOr,
	})

	walletClient := p.bus.Attach(fakeConn{}, id.WalletAddress(walletAlice))
	badgeWatcher := p.bus.Attach(fakeConn{}, "")
	p.bus.Subscribe(badgeWatcher, []string{mintmodels.BadgeChannel("og-member")})

	sessionID := p.completeVerification(t, walletAlice, "did:stub:flow:alice")

	// The callback propagated the DID onto the wallet row.
	user, err := p.wallets.Get(context.Background(), id.WalletAddress(walletAlice))
	require.NoError(t, err)
	require.Equal(t, "did:stub:flow:alice", user.DID)
	require.Equal(t, stub.Name, user.DIDProvider)

	// One completed provider satisfies the OR set; polygonid stays untouched.
	decision, err := p.minting.CanMint(p.ctx(), walletAlice, "og-member")
	require.NoError(t, err)
	require.True(t, decision.CanMint)
	require.NotNil(t, decision.Verdict)
	require.Empty(t, decision.Verdict.MissingRequirements)

	record, err := p.minting.InitiateMint(p.ctx(), walletAlice, "og-member", sessionID)
	require.NoError(t, err)
	require.Equal(t, mintmodels.StatusPending, record.Status)
	p.minting.Wait()

	completed, err := p.minting.Get(p.ctx(), record.ID)
	require.NoError(t, err)
	require.Equal(t, mintmodels.StatusCompleted, completed.Status)
	require.Equal(t, badge.ID, completed.BadgeTypeID)
	require.NotNil(t, completed.TokenID)
	require.NotEmpty(t, completed.TxHash)

	walletTypes := envelopeTypes(drain(walletClient))
	require.Contains(t, walletTypes, vermodels.EventSessionCreated)
	require.Contains(t, walletTypes, vermodels.EventSessionCompleted)
	require.Contains(t, walletTypes, mintmodels.EventMintStarted)
	require.Contains(t, walletTypes, mintmodels.EventMintCompleted)

	watcherTypes := envelopeTypes(drain(badgeWatcher))
	require.Contains(t, watcherTypes, mintmodels.EventMintSuccess)

	auditTypes := outboxTypes(t, p.outbox)
	require.Contains(t, auditTypes, vermodels.EventSessionCompleted)
	require.Contains(t, auditTypes, mintmodels.EventMintCompleted)
}
