package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	defaultPort      = "8084"
	defaultToken     = "ledger-node-secret-token"
	defaultLatencyMs = "150"

	contractAddress = "0x5fbdb2315678afecb367f032d93f642f64180aa3"
)

// The mock stands in for the ledger node sidecar that submits badge token
// mints to the contract:
//
//	POST /v1/mints       submit a mint, answers a receipt or a classified error
//	GET  /v1/tokens      token lookup by wallet and badge type
//	GET  /healthz        node reachability
//
// Tokens are soulbound: a second mint for the same (wallet, badge type)
// reverts. Magic wallet suffixes steer failures for e2e tests:
//
//	...0a  -> insufficient_funds
//	...0b  -> node answers 503 (network failure path)
//	...0c  -> mint succeeds but the receipt loses the token id
//	...0d  -> nonce_conflict

type MintRequest struct {
	WalletAddress string `json:"wallet_address"`
	BadgeTypeID   int64  `json:"badge_type_id"`
}

type MintReceipt struct {
	TokenID         int64  `json:"token_id"`
	TransactionHash string `json:"transaction_hash"`
	BlockNumber     int64  `json:"block_number"`
	ContractAddress string `json:"contract_address"`
	GasUsed         int64  `json:"gas_used"`
}

type TokenAnswer struct {
	Found   bool  `json:"found"`
	TokenID int64 `json:"token_id"`
}

type ErrorReply struct {
	Code            string `json:"code"`
	Message         string `json:"message"`
	TransactionHash string `json:"transaction_hash,omitempty"`
}

var (
	authToken = getEnv("LEDGER_TOKEN", defaultToken)
	latencyMs = getEnvInt("LATENCY_MS", defaultLatencyMs)

	mu        sync.Mutex
	tokens    = map[string]int64{}
	nextToken int64
	block     int64 = 19_000_000
)

func main() {
	port := getEnv("PORT", defaultPort)

	http.HandleFunc("/healthz", handleHealth)
	http.HandleFunc("/v1/mints", handleMint)
	http.HandleFunc("/v1/tokens", handleTokenLookup)

	log.Printf("⛓️  Mock Ledger Node starting on port %s", port)
	log.Printf("📝 Bearer token: %s", authToken)
	log.Printf("⏱️  Simulated confirmation latency: %dms", latencyMs)

	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Fatal(err)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "ledger-node",
		"chain":   "emblem-testnet",
	})
}

func handleMint(w http.ResponseWriter, r *http.Request) {
	// Confirmation latency dominates the mint path
	time.Sleep(time.Duration(latencyMs) * time.Millisecond)
	log.Printf("📥 Incoming request: %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)

	if r.Method != http.MethodPost {
		sendReply(w, http.StatusMethodNotAllowed, ErrorReply{Code: "unknown", Message: "method not allowed"})
		return
	}
	if r.Header.Get("Authorization") != "Bearer "+authToken {
		sendReply(w, http.StatusUnauthorized, ErrorReply{Code: "unknown", Message: "invalid bearer token"})
		return
	}

	var req MintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendReply(w, http.StatusBadRequest, ErrorReply{Code: "unknown", Message: "invalid request body: " + err.Error()})
		return
	}
	if req.WalletAddress == "" || req.BadgeTypeID <= 0 {
		sendReply(w, http.StatusBadRequest, ErrorReply{Code: "unknown", Message: "wallet_address and badge_type_id are required"})
		return
	}

	wallet := strings.ToLower(req.WalletAddress)

	switch {
	case strings.HasSuffix(wallet, "0a"):
		sendReply(w, http.StatusPaymentRequired, ErrorReply{
			Code:    "insufficient_funds",
			Message: "issuer account cannot cover gas",
		})
		log.Printf("🚫 Mint refused (magic wallet, no funds): %s", wallet)
		return
	case strings.HasSuffix(wallet, "0b"):
		w.WriteHeader(http.StatusServiceUnavailable)
		log.Printf("🚫 Simulated node outage for wallet: %s", wallet)
		return
	case strings.HasSuffix(wallet, "0d"):
		sendReply(w, http.StatusConflict, ErrorReply{
			Code:    "nonce_conflict",
			Message: "nonce already consumed by a concurrent submission",
		})
		log.Printf("🚫 Mint refused (magic wallet, nonce conflict): %s", wallet)
		return
	}

	mu.Lock()
	key := fmt.Sprintf("%s|%d", wallet, req.BadgeTypeID)
	if existing, held := tokens[key]; held {
		mu.Unlock()
		sendReply(w, http.StatusUnprocessableEntity, ErrorReply{
			Code:            "reverted",
			Message:         "execution reverted: wallet already holds this badge",
			TransactionHash: txHash(wallet, req.BadgeTypeID, existing, "revert"),
		})
		log.Printf("🚫 Mint reverted (already held): %s badge %d", wallet, req.BadgeTypeID)
		return
	}
	nextToken++
	block++
	tokenID := nextToken
	blockNumber := block
	tokens[key] = tokenID
	mu.Unlock()

	receipt := MintReceipt{
		TokenID:         tokenID,
		TransactionHash: txHash(wallet, req.BadgeTypeID, tokenID, "mint"),
		BlockNumber:     blockNumber,
		ContractAddress: contractAddress,
		GasUsed:         61_000 + tokenID%7_000,
	}
	if strings.HasSuffix(wallet, "0c") {
		// The token exists on chain; the receipt just lost it. Exercises the
		// caller's recovery via the token lookup.
		receipt.TokenID = 0
		log.Printf("🧪 Receipt loses token id (magic wallet): %s", wallet)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(receipt)

	log.Printf("✅ Minted token %d for %s (badge %d) in block %d", tokenID, wallet, req.BadgeTypeID, blockNumber)
}

func handleTokenLookup(w http.ResponseWriter, r *http.Request) {
	log.Printf("📥 Incoming request: %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)

	if r.Method != http.MethodGet {
		sendReply(w, http.StatusMethodNotAllowed, ErrorReply{Code: "unknown", Message: "method not allowed"})
		return
	}
	if r.Header.Get("Authorization") != "Bearer "+authToken {
		sendReply(w, http.StatusUnauthorized, ErrorReply{Code: "unknown", Message: "invalid bearer token"})
		return
	}

	wallet := strings.ToLower(r.URL.Query().Get("wallet_address"))
	badgeTypeID, err := strconv.ParseInt(r.URL.Query().Get("badge_type_id"), 10, 64)
	if wallet == "" || err != nil {
		sendReply(w, http.StatusBadRequest, ErrorReply{Code: "unknown", Message: "wallet_address and badge_type_id are required"})
		return
	}

	mu.Lock()
	tokenID, found := tokens[fmt.Sprintf("%s|%d", wallet, badgeTypeID)]
	mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(TokenAnswer{Found: found, TokenID: tokenID})

	log.Printf("🔍 Token lookup %s badge %d -> found=%v token=%d", wallet, badgeTypeID, found, tokenID)
}

// txHash derives a deterministic transaction hash so reruns of the same
// scenario produce identical receipts.
func txHash(wallet string, badgeTypeID, tokenID int64, salt string) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%d|%s", wallet, badgeTypeID, tokenID, salt)))
	return "0x" + hex.EncodeToString(hash[:])
}

func sendReply(w http.ResponseWriter, code int, reply ErrorReply) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(reply)
	log.Printf("❌ Error response: %d - %s", code, reply.Message)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key, defaultValue string) int {
	value := getEnv(key, defaultValue)
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("⚠️  Invalid integer value for %s, using default: %s", key, defaultValue)
		intValue, _ = strconv.Atoi(defaultValue)
	}
	return intValue
}
