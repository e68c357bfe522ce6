// Package attributes defines the contract for behavioral and on-chain
// attribute checks referenced by badge secondary rules, plus the registry the
// eligibility evaluator resolves checkers from. Checkers are strategies the
// same way identity providers are: badge rules name them by method, the
// registry is populated once at startup.
package attributes

import (
	"context"
	"fmt"
	"sort"

	badgemodels "emblem/internal/badge/models"
	id "emblem/pkg/domain"
)

// Result is one checker verdict. Detail is a self-describing human-readable
// sentence ("wallet holds 1200 EMB, needs 1000") used verbatim in eligibility
// explanations, for both satisfied and unsatisfied outcomes.
type Result struct {
	Satisfied bool
	Detail    string
}

// Checker evaluates one secondary attribute requirement for a wallet.
//
// Check receives the params tagged union for the checker's own method; a
// checker rejects params it cannot read with a badge-misconfiguration error
// rather than guessing. Infrastructure failures (upstream indexer down) are
// returned as plain errors and abort the evaluation.
type Checker interface {
	// Method is the stable registry key badge rules reference.
	Method() badgemodels.RuleMethod

	Check(ctx context.Context, wallet id.WalletAddress, params badgemodels.RuleParams) (*Result, error)
}

// Registry holds all configured checkers keyed by method. Populated once
// during startup and read-only afterwards; not safe for concurrent
// registration.
type Registry struct {
	checkers map[badgemodels.RuleMethod]Checker
}

func NewRegistry() *Registry {
	return &Registry{checkers: make(map[badgemodels.RuleMethod]Checker)}
}

// Register adds a checker, rejecting duplicate methods.
func (r *Registry) Register(c Checker) error {
	method := c.Method()
	if _, exists := r.checkers[method]; exists {
		return fmt.Errorf("attribute checker %q already registered", method)
	}
	r.checkers[method] = c
	return nil
}

func (r *Registry) Get(method badgemodels.RuleMethod) (Checker, bool) {
	c, ok := r.checkers[method]
	return c, ok
}

// Methods returns all registered checker methods sorted for stable logging.
func (r *Registry) Methods() []badgemodels.RuleMethod {
	methods := make([]badgemodels.RuleMethod, 0, len(r.checkers))
	for method := range r.checkers {
		methods = append(methods, method)
	}
	sort.Slice(methods, func(i, j int) bool { return methods[i] < methods[j] })
	return methods
}
