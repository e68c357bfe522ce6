// Package seeder populates the in-memory stores with demo data so a
// database-less development server has badges to mint and sessions to play
// with straight away.
package seeder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	badgemodels "emblem/internal/badge/models"
	"emblem/internal/identity/providers/idos"
	"emblem/internal/identity/providers/polygonid"
	"emblem/internal/identity/providers/stub"
	vermodels "emblem/internal/verification/models"
	"emblem/internal/wallet"
	id "emblem/pkg/domain"
)

// BadgeStore defines methods for seeding badge types
type BadgeStore interface {
	Create(ctx context.Context, badge *badgemodels.BadgeType) error
}

// SessionStore defines methods for seeding verification sessions
type SessionStore interface {
	Create(ctx context.Context, session *vermodels.Session) error
}

// WalletStore defines methods for seeding wallet users
type WalletStore interface {
	EnsureExists(ctx context.Context, address id.WalletAddress, seenAt time.Time, userAgent string) (*wallet.User, error)
	SetDID(ctx context.Context, address id.WalletAddress, did, provider string, at time.Time) error
}

// Seeder populates in-memory stores with demo data
type Seeder struct {
	badges   BadgeStore
	sessions SessionStore
	wallets  WalletStore
	logger   *slog.Logger
}

// New creates a new seeder
func New(badges BadgeStore, sessions SessionStore, wallets WalletStore, logger *slog.Logger) *Seeder {
	return &Seeder{
		badges:   badges,
		sessions: sessions,
		wallets:  wallets,
		logger:   logger,
	}
}

// SeedAll populates all stores with demo data
func (s *Seeder) SeedAll(ctx context.Context) error {
	s.logger.Info("seeding demo data...")

	badges, err := s.seedBadgeTypes(ctx)
	if err != nil {
		return fmt.Errorf("failed to seed badge types: %w", err)
	}

	wallets, err := s.seedWallets(ctx)
	if err != nil {
		return fmt.Errorf("failed to seed wallets: %w", err)
	}

	sessions, err := s.seedSessions(ctx, wallets)
	if err != nil {
		return fmt.Errorf("failed to seed sessions: %w", err)
	}

	s.logger.Info("demo data seeded successfully",
		"badge_types", badges,
		"wallets", len(wallets),
		"sessions", sessions,
	)

	return nil
}

func (s *Seeder) seedBadgeTypes(ctx context.Context) (int, error) {
	now := time.Now()

	demoBadges := []struct {
		key         string
		name        string
		description string
		ledgerID    int64
		rules       badgemodels.Rules
	}{
		{
			// Mintable out of the box: the stub provider is on in development.
			key:         "early-adopter",
			name:        "Early Adopter",
			description: "Completed identity verification during the pilot.",
			ledgerID:    1,
			rules: badgemodels.Rules{
				Primary: []string{stub.Name},
				Logic:   badgemodels.LogicOr,
			},
		},
		{
			key:         "verified-human",
			name:        "Verified Human",
			description: "Holds a DID from any production identity provider.",
			ledgerID:    2,
			rules: badgemodels.Rules{
				Primary: []string{polygonid.Name, idos.Name},
				Logic:   badgemodels.LogicOr,
				Secondary: []badgemodels.SecondaryRule{
					{
						Method:   badgemodels.MethodSocialFollow,
						Required: true,
						Params: badgemodels.RuleParams{
							SocialFollow: &badgemodels.SocialFollowParams{Platform: "farcaster", Account: "emblem"},
						},
					},
				},
			},
		},
		{
			key:         "power-user",
			name:        "Power User",
			description: "Active on-chain with a verified identity.",
			ledgerID:    3,
			rules: badgemodels.Rules{
				Primary: []string{stub.Name, polygonid.Name},
				Logic:   badgemodels.LogicAnd,
				Secondary: []badgemodels.SecondaryRule{
					{
						Method:   badgemodels.MethodTransactionCount,
						Required: true,
						Params: badgemodels.RuleParams{
							TransactionCount: &badgemodels.TransactionCountParams{Min: 25},
						},
					},
					{
						Method:   badgemodels.MethodTokenBalance,
						Required: false,
						Params: badgemodels.RuleParams{
							TokenBalance: &badgemodels.TokenBalanceParams{
								Contract: "0x1f9840a85d5af5bf1d1762f925bdaddc4201f984",
								Min:      "1000000000000000000",
							},
						},
					},
				},
			},
		},
	}

	issuerID := id.NewIssuerID()
	for _, b := range demoBadges {
		badge, err := badgemodels.NewBadgeType(id.NewBadgeTypeID(), b.key, b.name, b.ledgerID, issuerID, b.rules, now)
		if err != nil {
			return 0, err
		}
		badge.Description = b.description

		if err := s.badges.Create(ctx, badge); err != nil {
			return 0, err
		}
	}

	return len(demoBadges), nil
}

func (s *Seeder) seedWallets(ctx context.Context) ([]id.WalletAddress, error) {
	now := time.Now()

	demoWallets := []struct {
		address string
		did     string
	}{
		{"0xa11ce00000000000000000000000000000000001", "did:emblem:stub:alice"},
		{"0xb0b0000000000000000000000000000000000002", ""},
	}

	var addresses []id.WalletAddress
	for _, w := range demoWallets {
		address, err := id.ParseWalletAddress(w.address)
		if err != nil {
			return nil, err
		}

		if _, err := s.wallets.EnsureExists(ctx, address, now, "seeder"); err != nil {
			return nil, err
		}
		if w.did != "" {
			if err := s.wallets.SetDID(ctx, address, w.did, stub.Name, now); err != nil {
				return nil, err
			}
		}

		addresses = append(addresses, address)
	}

	return addresses, nil
}

func (s *Seeder) seedSessions(ctx context.Context, wallets []id.WalletAddress) (int, error) {
	now := time.Now()

	sessions := []struct {
		walletIdx     int
		createdOffset time.Duration
		ttl           time.Duration
		did           string
	}{
		// Completed and inside its window: immediately usable for minting.
		{0, -10 * time.Minute, 30 * time.Minute, "did:emblem:stub:alice"},
		// Pending: completes via the stub callback or falls to the sweeper.
		{1, -2 * time.Minute, 30 * time.Minute, ""},
	}

	count := 0
	for _, sess := range sessions {
		if sess.walletIdx >= len(wallets) {
			continue
		}

		created := now.Add(sess.createdOffset)
		session, err := vermodels.NewSession(
			id.NewSessionID(),
			wallets[sess.walletIdx],
			stub.Name,
			vermodels.TypePrimary,
			created,
			created.Add(sess.ttl),
		)
		if err != nil {
			return 0, err
		}
		session.ProviderRef = fmt.Sprintf("seed-%s", session.ID)

		if sess.did != "" {
			if err := session.Complete(sess.did, map[string]any{"seeded": true}, created.Add(time.Minute)); err != nil {
				return 0, err
			}
		}

		if err := s.sessions.Create(ctx, session); err != nil {
			return 0, err
		}
		count++
	}

	return count, nil
}
