package ledger

import (
	"context"
	"encoding/binary"
	"fmt"
	"strconv"
	"sync"
	"time"

	id "emblem/pkg/domain"

	"golang.org/x/crypto/sha3"
)

const stubContractAddress = "0x0000000000000000000000000000000000b4d9e5"

// StubConfig tunes the simulated ledger.
type StubConfig struct {
	// Latency is slept on every call, honoring context cancellation.
	Latency time.Duration
	// ContractAddress overrides the address reported on receipts.
	ContractAddress string
	// FailKind forces every mint to fail with the given classification.
	// Empty means mints succeed.
	FailKind FailureKind
}

// Stub simulates the ledger in memory: sequential token ids, transaction
// hashes derived from the mint inputs, and a mint ledger that answers TokenOf
// the way the contract's event log would.
type Stub struct {
	cfg StubConfig

	mu        sync.Mutex
	nextToken int64
	blockNum  int64
	minted    map[string]int64
}

var _ Adapter = (*Stub)(nil)

func NewStub(cfg StubConfig) *Stub {
	if cfg.ContractAddress == "" {
		cfg.ContractAddress = stubContractAddress
	}
	return &Stub{cfg: cfg, nextToken: 1, blockNum: 1_000_000, minted: make(map[string]int64)}
}

func (s *Stub) Mint(ctx context.Context, wallet id.WalletAddress, badgeTypeID int64) (*MintResult, error) {
	if err := s.sleep(ctx); err != nil {
		return nil, err
	}
	if s.cfg.FailKind != "" {
		return nil, NewLedgerError(s.cfg.FailKind, fmt.Sprintf("simulated %s failure", s.cfg.FailKind), nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tokenID := s.nextToken
	s.nextToken++
	s.blockNum++
	s.minted[mintKey(wallet, badgeTypeID)] = tokenID

	return &MintResult{
		TokenID:         tokenID,
		TxHash:          stubTxHash(wallet, badgeTypeID, tokenID),
		BlockNumber:     s.blockNum,
		ContractAddress: s.cfg.ContractAddress,
		GasUsed:         80_000 + tokenID%1000,
	}, nil
}

func (s *Stub) TokenOf(ctx context.Context, wallet id.WalletAddress, badgeTypeID int64) (int64, bool, error) {
	if err := s.sleep(ctx); err != nil {
		return 0, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tokenID, ok := s.minted[mintKey(wallet, badgeTypeID)]
	return tokenID, ok, nil
}

func (s *Stub) Health(ctx context.Context) error { return nil }

func (s *Stub) sleep(ctx context.Context) error {
	if s.cfg.Latency <= 0 {
		return nil
	}
	timer := time.NewTimer(s.cfg.Latency)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return NewLedgerError(FailureNetwork, "canceled while simulating ledger latency", ctx.Err())
	}
}

func mintKey(wallet id.WalletAddress, badgeTypeID int64) string {
	return string(wallet) + "|" + strconv.FormatInt(badgeTypeID, 10)
}

// stubTxHash derives a stable 32-byte transaction hash from the mint inputs.
func stubTxHash(wallet id.WalletAddress, badgeTypeID, tokenID int64) string {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(wallet))
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], uint64(badgeTypeID))
	binary.BigEndian.PutUint64(buf[8:], uint64(tokenID))
	h.Write(buf[:])
	return fmt.Sprintf("0x%x", h.Sum(nil))
}
