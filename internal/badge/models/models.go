package models

import (
	"regexp"
	"time"

	id "emblem/pkg/domain"
	dErrors "emblem/pkg/domain-errors"
)

// Key is the stable identifier issuers and mint requests use ("og-holder",
// "kyc-verified"). The UUID exists for storage; the key is the public handle
// and is immutable after creation, as is the numeric ledger id the contract
// knows the badge class by.
var keyPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

const maxKeyLength = 64

// BadgeType is one mintable credential class.
type BadgeType struct {
	ID          id.BadgeTypeID
	Key         string
	Name        string
	Description string
	ImageURL    string
	LedgerID    int64
	IssuerID    id.IssuerID
	WebhookURL  string
	Rules       Rules
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewBadgeType creates a BadgeType with domain invariant checks. The caller
// supplies creation time so clock handling stays at the service layer.
func NewBadgeType(badgeID id.BadgeTypeID, key, name string, ledgerID int64, issuerID id.IssuerID, rules Rules, createdAt time.Time) (*BadgeType, error) {
	if badgeID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "badge type ID required")
	}
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "badge type name required")
	}
	if ledgerID <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "ledger id must be positive")
	}
	if issuerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "issuer ID required")
	}
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return &BadgeType{
		ID:        badgeID,
		Key:       key,
		Name:      name,
		LedgerID:  ledgerID,
		IssuerID:  issuerID,
		Rules:     rules,
		IsActive:  true,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}, nil
}

// ValidateKey enforces the slug format used as the badge's public handle.
func ValidateKey(key string) error {
	if key == "" {
		return dErrors.New(dErrors.CodeValidation, "badge type key required")
	}
	if len(key) > maxKeyLength {
		return dErrors.New(dErrors.CodeValidation, "badge type key too long")
	}
	if !keyPattern.MatchString(key) {
		return dErrors.NewWithHint(dErrors.CodeValidation, "invalid badge type key", "use lowercase letters, digits and single hyphens, e.g. og-holder")
	}
	return nil
}

// Clone returns a deep copy so store reads never alias caller-held rule slices.
func (b *BadgeType) Clone() *BadgeType {
	if b == nil {
		return nil
	}
	out := *b
	out.Rules = b.Rules.clone()
	return &out
}

func (r Rules) clone() Rules {
	out := r
	if r.Primary != nil {
		out.Primary = append([]string(nil), r.Primary...)
	}
	if r.Secondary != nil {
		out.Secondary = make([]SecondaryRule, len(r.Secondary))
		for i, rule := range r.Secondary {
			out.Secondary[i] = rule.clone()
		}
	}
	return out
}

func (s SecondaryRule) clone() SecondaryRule {
	out := s
	if s.Params.SocialFollow != nil {
		v := *s.Params.SocialFollow
		out.Params.SocialFollow = &v
	}
	if s.Params.TransactionCount != nil {
		v := *s.Params.TransactionCount
		out.Params.TransactionCount = &v
	}
	if s.Params.TokenBalance != nil {
		v := *s.Params.TokenBalance
		out.Params.TokenBalance = &v
	}
	if s.Params.Opaque != nil {
		m := make(map[string]any, len(s.Params.Opaque))
		for k, v := range s.Params.Opaque {
			m[k] = v
		}
		out.Params.Opaque = m
	}
	return out
}

// BadgeTypeFilter narrows List queries.
type BadgeTypeFilter struct {
	IssuerID   *id.IssuerID
	ActiveOnly bool
}
