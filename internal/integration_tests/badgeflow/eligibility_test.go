package badgeflow

import (
	"testing"

	"github.com/stretchr/testify/require"

	badgemodels "emblem/internal/badge/models"
	"emblem/internal/identity/providers/idos"
	"emblem/internal/identity/providers/polygonid"
	mintmodels "emblem/internal/minting/models"
	dErrors "emblem/pkg/domain-errors"
)

func TestMintBlockedWithoutVerification(t *testing.T) {
	p := SetupSuite(t)
	p.createBadge(t, "verified-human", badgemodels.Rules{
		Primary: []string{polygonid.Name, idos.Name},
		Logic:   badgemodels.LogicOr,
	})

	// No completed session with either provider: the verdict names the full
	// OR set so a client can offer the wallet a choice.
	decision, err := p.minting.CanMint(p.ctx(), walletAlice, "verified-human")
	require.NoError(t, err)
	require.False(t, decision.CanMint)
	require.NotNil(t, decision.Verdict)
	require.Len(t, decision.Verdict.MissingRequirements, 1)
	require.Contains(t, decision.Verdict.MissingRequirements[0], polygonid.Name)
	require.Contains(t, decision.Verdict.MissingRequirements[0], idos.Name)

	_, err = p.minting.InitiateMint(p.ctx(), walletAlice, "verified-human", "")
	require.Error(t, err)
	require.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))

	// The refusal is auditable but leaves no mint record behind.
	require.Contains(t, outboxTypes(t, p.outbox), mintmodels.EventMintRejected)

	records, err := p.minting.ListByWallet(p.ctx(), walletAlice, nil)
	require.NoError(t, err)
	require.Empty(t, records)
}
