package eligibility

import (
	"time"

	badgemodels "emblem/internal/badge/models"
	vermodels "emblem/internal/verification/models"
)

// Snapshot is the evidence a verdict derives from: the usable verification
// session found per primary provider and the outcome of every secondary
// check. Checks is index-aligned with the badge's secondary rule list.
type Snapshot struct {
	// Sessions holds the wallet's usable session per provider; providers
	// with no usable session are absent.
	Sessions map[string]*vermodels.Session
	// Checks holds one entry per secondary rule, in rule order.
	Checks []CheckEvidence

	GatheredAt time.Time
}

// CheckEvidence is the recorded outcome of one attribute check.
type CheckEvidence struct {
	Method    badgemodels.RuleMethod
	Required  bool
	Satisfied bool
	Detail    string
}

// Verdict is the full eligibility decision for one wallet against one badge.
// Callers always receive the explanation alongside the boolean: Reasons for
// what counted toward eligibility, MissingRequirements for what still stands
// between the wallet and the badge. MissingRequirements is empty exactly when
// the wallet is eligible.
type Verdict struct {
	Eligible bool `json:"eligible"`

	// Reasons holds one human-readable line per satisfied requirement that
	// counted toward the verdict.
	Reasons []string `json:"reasons"`
	// MissingRequirements holds one human-readable line per requirement the
	// wallet has not met.
	MissingRequirements []string `json:"missing_requirements"`
	// Informational reports non-required attribute checks. They never affect
	// Eligible.
	Informational []string `json:"informational,omitempty"`

	// Sessions records the usable verification session consulted per
	// satisfied primary provider, for the mint audit trail.
	Sessions map[string]string `json:"sessions,omitempty"`

	EvaluatedAt time.Time `json:"evaluated_at"`
}
