//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"emblem/internal/badge/models"
	"emblem/internal/badge/store"
	id "emblem/pkg/domain"
	"emblem/pkg/platform/sentinel"
	"emblem/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateModuleTables(context.Background()))
}

func (s *PostgresStoreSuite) newBadge(key string, ledgerID int64) *models.BadgeType {
	rules := models.Rules{
		Primary: []string{"polygonid", "idos"},
		Logic:   models.LogicOr,
		Secondary: []models.SecondaryRule{
			{
				Method:   models.MethodSocialFollow,
				Required: true,
				Params:   models.RuleParams{SocialFollow: &models.SocialFollowParams{Platform: "twitter", Account: "@emblem"}},
			},
			{
				Method:   models.MethodTransactionCount,
				Required: false,
				Params:   models.RuleParams{TransactionCount: &models.TransactionCountParams{Chain: "polygon", Min: 10}},
			},
		},
	}
	badge, err := models.NewBadgeType(id.NewBadgeTypeID(), key, "Badge "+key, ledgerID, id.NewIssuerID(), rules, time.Now().UTC().Truncate(time.Microsecond))
	s.Require().NoError(err)
	badge.WebhookURL = "https://issuer.example/hooks/emblem"
	return badge
}

func (s *PostgresStoreSuite) TestCreateAndGetRoundTrip() {
	ctx := context.Background()
	badge := s.newBadge("og-holder", 1)
	s.Require().NoError(s.store.Create(ctx, badge))

	fetched, err := s.store.GetByKey(ctx, "og-holder")
	s.Require().NoError(err)
	s.Equal(badge.ID, fetched.ID)
	s.Equal(badge.LedgerID, fetched.LedgerID)
	s.Equal(badge.WebhookURL, fetched.WebhookURL)
	s.Equal([]string{"polygonid", "idos"}, fetched.Rules.Primary)
	s.Equal(models.LogicOr, fetched.Rules.Logic)
	s.Require().Len(fetched.Rules.Secondary, 2)
	s.Require().NotNil(fetched.Rules.Secondary[0].Params.SocialFollow)
	s.Equal("@emblem", fetched.Rules.Secondary[0].Params.SocialFollow.Account)
	s.False(fetched.Rules.Secondary[1].Required)

	byID, err := s.store.GetByID(ctx, badge.ID)
	s.Require().NoError(err)
	s.Equal(badge.Key, byID.Key)
}

func (s *PostgresStoreSuite) TestCreateConflicts() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, s.newBadge("og-holder", 1)))

	err := s.store.Create(ctx, s.newBadge("og-holder", 2))
	s.Require().ErrorIs(err, sentinel.ErrConflict)

	err = s.store.Create(ctx, s.newBadge("other-badge", 1))
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestUpdateAndList() {
	ctx := context.Background()
	badge := s.newBadge("og-holder", 1)
	s.Require().NoError(s.store.Create(ctx, badge))
	s.Require().NoError(s.store.Create(ctx, s.newBadge("kyc-verified", 2)))

	badge.Name = "OG Holder v2"
	badge.IsActive = false
	badge.Rules.Primary = []string{"idos"}
	badge.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)
	s.Require().NoError(s.store.Update(ctx, badge))

	fetched, err := s.store.GetByID(ctx, badge.ID)
	s.Require().NoError(err)
	s.Equal("OG Holder v2", fetched.Name)
	s.False(fetched.IsActive)
	s.Equal([]string{"idos"}, fetched.Rules.Primary)

	active, err := s.store.List(ctx, &models.BadgeTypeFilter{ActiveOnly: true})
	s.Require().NoError(err)
	s.Require().Len(active, 1)
	s.Equal("kyc-verified", active[0].Key)

	all, err := s.store.List(ctx, nil)
	s.Require().NoError(err)
	s.Len(all, 2)
}

func (s *PostgresStoreSuite) TestMissingRows() {
	ctx := context.Background()

	_, err := s.store.GetByKey(ctx, "nope")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.GetByID(ctx, id.NewBadgeTypeID())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	err = s.store.Update(ctx, s.newBadge("ghost", 9))
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}
