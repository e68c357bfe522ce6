package attributes

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"
	"strings"
	"time"

	badgemodels "emblem/internal/badge/models"
	id "emblem/pkg/domain"
	dErrors "emblem/pkg/domain-errors"

	"golang.org/x/crypto/sha3"
)

// Config tunes the simulated checkers.
type Config struct {
	// Latency is slept on every check, honoring context cancellation.
	Latency time.Duration
}

// RegisterStubs registers a simulated checker for every known rule method.
func RegisterStubs(r *Registry, cfg Config) error {
	checkers := []Checker{
		NewSocialFollowChecker(cfg),
		NewTransactionCountChecker(cfg),
		NewTokenBalanceChecker(cfg),
	}
	for _, c := range checkers {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// walletFact derives a stable 64-bit pseudo-fact from the wallet and a salt.
// The same wallet and salt always yield the same fact, so simulated checks
// are deterministic across calls and processes without any stored state.
func walletFact(wallet id.WalletAddress, salt string) uint64 {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(wallet))
	h.Write([]byte(salt))
	return binary.BigEndian.Uint64(h.Sum(nil)[:8])
}

func simulateLatency(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SocialFollowChecker simulates a social-graph lookup. A stable minority of
// wallets "does not follow" any given account so the failure path gets
// exercised in development.
type SocialFollowChecker struct {
	cfg Config
}

func NewSocialFollowChecker(cfg Config) *SocialFollowChecker {
	return &SocialFollowChecker{cfg: cfg}
}

func (c *SocialFollowChecker) Method() badgemodels.RuleMethod {
	return badgemodels.MethodSocialFollow
}

func (c *SocialFollowChecker) Check(ctx context.Context, wallet id.WalletAddress, params badgemodels.RuleParams) (*Result, error) {
	p := params.SocialFollow
	if p == nil || p.Platform == "" || p.Account == "" {
		return nil, dErrors.New(dErrors.CodeBadgeConfig, "social_follow rule needs platform and account params")
	}
	if err := simulateLatency(ctx, c.cfg.Latency); err != nil {
		return nil, err
	}

	fact := walletFact(wallet, "social_follow:"+p.Platform+":"+p.Account)
	if fact%4 == 0 {
		return &Result{
			Detail: fmt.Sprintf("wallet does not follow @%s on %s", p.Account, p.Platform),
		}, nil
	}
	return &Result{
		Satisfied: true,
		Detail:    fmt.Sprintf("wallet follows @%s on %s", p.Account, p.Platform),
	}, nil
}

// TransactionCountChecker simulates an on-chain activity lookup with a
// per-wallet transaction count in [0, 1000).
type TransactionCountChecker struct {
	cfg Config
}

func NewTransactionCountChecker(cfg Config) *TransactionCountChecker {
	return &TransactionCountChecker{cfg: cfg}
}

func (c *TransactionCountChecker) Method() badgemodels.RuleMethod {
	return badgemodels.MethodTransactionCount
}

func (c *TransactionCountChecker) Check(ctx context.Context, wallet id.WalletAddress, params badgemodels.RuleParams) (*Result, error) {
	p := params.TransactionCount
	if p == nil || p.Min <= 0 {
		return nil, dErrors.New(dErrors.CodeBadgeConfig, "transaction_count rule needs a positive min param")
	}
	if err := simulateLatency(ctx, c.cfg.Latency); err != nil {
		return nil, err
	}

	chain := p.Chain
	if chain == "" {
		chain = "ethereum"
	}
	count := int64(walletFact(wallet, "transaction_count:"+chain) % 1000)
	return &Result{
		Satisfied: count >= p.Min,
		Detail:    fmt.Sprintf("wallet has %d transactions on %s, needs %d", count, chain, p.Min),
	}, nil
}

// TokenBalanceChecker simulates a token-holding lookup. Balances are compared
// as big integers in the token's base units, matching how the rule's min is
// configured.
type TokenBalanceChecker struct {
	cfg Config
}

func NewTokenBalanceChecker(cfg Config) *TokenBalanceChecker {
	return &TokenBalanceChecker{cfg: cfg}
}

func (c *TokenBalanceChecker) Method() badgemodels.RuleMethod {
	return badgemodels.MethodTokenBalance
}

func (c *TokenBalanceChecker) Check(ctx context.Context, wallet id.WalletAddress, params badgemodels.RuleParams) (*Result, error) {
	p := params.TokenBalance
	if p == nil || p.Contract == "" {
		return nil, dErrors.New(dErrors.CodeBadgeConfig, "token_balance rule needs contract and min params")
	}
	minUnits, ok := new(big.Int).SetString(p.Min, 10)
	if !ok || minUnits.Sign() < 0 {
		return nil, dErrors.New(dErrors.CodeBadgeConfig, fmt.Sprintf("token_balance min %q is not a decimal amount", p.Min))
	}
	if err := simulateLatency(ctx, c.cfg.Latency); err != nil {
		return nil, err
	}

	balance := new(big.Int).SetUint64(walletFact(wallet, "token_balance:"+strings.ToLower(p.Contract)))
	return &Result{
		Satisfied: balance.Cmp(minUnits) >= 0,
		Detail:    fmt.Sprintf("wallet holds %s of token %s, needs %s", balance, p.Contract, minUnits),
	}, nil
}
