package eligibility

import (
	"fmt"
	"strings"

	badgemodels "emblem/internal/badge/models"
)

// Decide derives the verdict from a fixed evidence snapshot. It performs no
// I/O and consults no clock: identical rules and snapshot always produce an
// identical verdict, which is what makes re-running an evaluation without
// intervening state changes safe.
//
// The badge's combine logic applies independently to the primary provider set
// and to the required subset of the secondary rules; the wallet is eligible
// when both combines hold. A combine over zero required entries holds
// vacuously.
func Decide(rules badgemodels.Rules, snap *Snapshot) *Verdict {
	v := &Verdict{
		Reasons:             []string{},
		MissingRequirements: []string{},
		EvaluatedAt:         snap.GatheredAt,
	}

	primaryOK := decidePrimary(rules, snap, v)
	secondaryOK := decideSecondary(rules, snap, v)
	v.Eligible = primaryOK && secondaryOK
	return v
}

func decidePrimary(rules badgemodels.Rules, snap *Snapshot, v *Verdict) bool {
	if len(rules.Primary) == 0 {
		return true
	}

	satisfied := 0
	var missing []string
	for _, provider := range rules.Primary {
		session := snap.Sessions[provider]
		if session == nil {
			missing = append(missing, provider)
			continue
		}
		satisfied++
		v.Reasons = append(v.Reasons, fmt.Sprintf("identity verified with %s", provider))
		if v.Sessions == nil {
			v.Sessions = make(map[string]string, len(rules.Primary))
		}
		v.Sessions[provider] = session.ID.String()
	}

	if rules.Logic == badgemodels.LogicOr {
		if satisfied > 0 {
			return true
		}
		v.MissingRequirements = append(v.MissingRequirements,
			fmt.Sprintf("complete identity verification with any of: %s", strings.Join(rules.Primary, ", ")))
		return false
	}

	for _, provider := range missing {
		v.MissingRequirements = append(v.MissingRequirements,
			fmt.Sprintf("complete identity verification with %s", provider))
	}
	return satisfied == len(rules.Primary)
}

func decideSecondary(rules badgemodels.Rules, snap *Snapshot, v *Verdict) bool {
	requiredTotal := 0
	requiredSatisfied := 0
	var missing []string
	for i := range rules.Secondary {
		ev := snap.Checks[i]
		line := fmt.Sprintf("%s: %s", ev.Method, ev.Detail)
		if !ev.Required {
			v.Informational = append(v.Informational, line)
			continue
		}
		requiredTotal++
		if ev.Satisfied {
			requiredSatisfied++
			v.Reasons = append(v.Reasons, line)
			continue
		}
		missing = append(missing, line)
	}

	if requiredTotal == 0 {
		return true
	}
	if rules.Logic == badgemodels.LogicOr {
		if requiredSatisfied > 0 {
			return true
		}
		v.MissingRequirements = append(v.MissingRequirements, missing...)
		return false
	}

	v.MissingRequirements = append(v.MissingRequirements, missing...)
	return requiredSatisfied == requiredTotal
}
