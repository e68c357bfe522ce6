package models

import (
	"encoding/json"
	"fmt"
	"strings"

	dErrors "emblem/pkg/domain-errors"
)

// Logic combines the primary provider requirements of a badge.
type Logic string

const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
)

func (l Logic) IsValid() bool {
	return l == LogicAnd || l == LogicOr
}

// ParseLogic normalizes issuer input ("and", "Or", ...) into a Logic value.
func ParseLogic(s string) (Logic, error) {
	l := Logic(strings.ToUpper(strings.TrimSpace(s)))
	if !l.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, fmt.Sprintf("invalid rule logic %q: must be AND or OR", s))
	}
	return l, nil
}

// RuleMethod names a secondary eligibility check.
type RuleMethod string

const (
	MethodSocialFollow     RuleMethod = "social_follow"
	MethodTransactionCount RuleMethod = "transaction_count"
	MethodTokenBalance     RuleMethod = "token_balance"
)

// KnownMethods lists the methods this build can evaluate. Rules referencing
// anything else still parse (see RuleParams.Opaque) but fail admin validation.
func KnownMethods() []RuleMethod {
	return []RuleMethod{MethodSocialFollow, MethodTransactionCount, MethodTokenBalance}
}

func (m RuleMethod) IsKnown() bool {
	switch m {
	case MethodSocialFollow, MethodTransactionCount, MethodTokenBalance:
		return true
	}
	return false
}

// SocialFollowParams parameterize a social-follow check.
type SocialFollowParams struct {
	Platform string `json:"platform"`
	Account  string `json:"account"`
}

// TransactionCountParams parameterize an on-chain activity check.
type TransactionCountParams struct {
	Chain string `json:"chain,omitempty"`
	Min   int64  `json:"min"`
}

// TokenBalanceParams parameterize a token-holding check. Min is a decimal
// string in the token's base units so large balances survive JSON intact.
type TokenBalanceParams struct {
	Contract string `json:"contract"`
	Min      string `json:"min"`
}

// RuleParams is a tagged union keyed by the rule's method: exactly one typed
// member is set for a known method. Params for methods this build does not
// know round-trip through Opaque so newer rows are never corrupted on rewrite.
type RuleParams struct {
	SocialFollow     *SocialFollowParams
	TransactionCount *TransactionCountParams
	TokenBalance     *TokenBalanceParams
	Opaque           map[string]any
}

// IsZero reports whether no member of the union is set.
func (p RuleParams) IsZero() bool {
	return p.SocialFollow == nil && p.TransactionCount == nil && p.TokenBalance == nil && p.Opaque == nil
}

// SecondaryRule is one attribute requirement on a badge. Required defaults to
// true when the issuer omits it; only an explicit false makes the rule
// informational.
type SecondaryRule struct {
	Method   RuleMethod
	Required bool
	Params   RuleParams
}

type secondaryRuleJSON struct {
	Method   RuleMethod      `json:"method"`
	Required *bool           `json:"required,omitempty"`
	Params   json.RawMessage `json:"params,omitempty"`
}

func (r *SecondaryRule) UnmarshalJSON(data []byte) error {
	var raw secondaryRuleJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode secondary rule: %w", err)
	}
	r.Method = raw.Method
	r.Required = raw.Required == nil || *raw.Required
	params, err := decodeRuleParams(raw.Method, raw.Params)
	if err != nil {
		return err
	}
	r.Params = params
	return nil
}

func (r SecondaryRule) MarshalJSON() ([]byte, error) {
	params, err := encodeRuleParams(r.Params)
	if err != nil {
		return nil, err
	}
	required := r.Required
	return json.Marshal(secondaryRuleJSON{
		Method:   r.Method,
		Required: &required,
		Params:   params,
	})
}

func decodeRuleParams(method RuleMethod, data json.RawMessage) (RuleParams, error) {
	var p RuleParams
	if len(data) == 0 || string(data) == "null" {
		return p, nil
	}
	switch method {
	case MethodSocialFollow:
		p.SocialFollow = &SocialFollowParams{}
		if err := json.Unmarshal(data, p.SocialFollow); err != nil {
			return RuleParams{}, fmt.Errorf("decode %s params: %w", method, err)
		}
	case MethodTransactionCount:
		p.TransactionCount = &TransactionCountParams{}
		if err := json.Unmarshal(data, p.TransactionCount); err != nil {
			return RuleParams{}, fmt.Errorf("decode %s params: %w", method, err)
		}
	case MethodTokenBalance:
		p.TokenBalance = &TokenBalanceParams{}
		if err := json.Unmarshal(data, p.TokenBalance); err != nil {
			return RuleParams{}, fmt.Errorf("decode %s params: %w", method, err)
		}
	default:
		if err := json.Unmarshal(data, &p.Opaque); err != nil {
			return RuleParams{}, fmt.Errorf("decode %s params: %w", method, err)
		}
	}
	return p, nil
}

func encodeRuleParams(p RuleParams) (json.RawMessage, error) {
	switch {
	case p.SocialFollow != nil:
		return json.Marshal(p.SocialFollow)
	case p.TransactionCount != nil:
		return json.Marshal(p.TransactionCount)
	case p.TokenBalance != nil:
		return json.Marshal(p.TokenBalance)
	case p.Opaque != nil:
		return json.Marshal(p.Opaque)
	}
	return nil, nil
}

// Rules describe what a wallet must prove before the badge mints. Primary
// order is preserved: explanations list providers in the order the issuer
// configured them.
type Rules struct {
	Primary   []string        `json:"primary"`
	Logic     Logic           `json:"logic"`
	Secondary []SecondaryRule `json:"secondary,omitempty"`
}

// Validate enforces the admin-time rule invariants: at least one primary
// provider, a valid combine logic, and only methods this build can evaluate.
func (r Rules) Validate() error {
	if len(r.Primary) == 0 {
		return dErrors.New(dErrors.CodeValidation, "rules require at least one primary provider")
	}
	seen := make(map[string]struct{}, len(r.Primary))
	for _, provider := range r.Primary {
		if strings.TrimSpace(provider) == "" {
			return dErrors.New(dErrors.CodeValidation, "primary provider name cannot be empty")
		}
		if _, dup := seen[provider]; dup {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("duplicate primary provider %q", provider))
		}
		seen[provider] = struct{}{}
	}
	if !r.Logic.IsValid() {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("invalid rule logic %q: must be AND or OR", r.Logic))
	}
	for i, rule := range r.Secondary {
		if rule.Method == "" {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("secondary rule %d has no method", i))
		}
		if !rule.Method.IsKnown() {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown secondary rule method %q", rule.Method))
		}
	}
	return nil
}

// RequiredSecondary returns the secondary rules that participate in the
// eligibility combine, preserving order.
func (r Rules) RequiredSecondary() []SecondaryRule {
	var required []SecondaryRule
	for _, rule := range r.Secondary {
		if rule.Required {
			required = append(required, rule)
		}
	}
	return required
}
