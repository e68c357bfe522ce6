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
	defaultPort           = "8083"
	defaultAPIKey         = "polygonid-verifier-secret-key"
	defaultBearerToken    = "idos-api-secret-token"
	defaultLatencyMs      = "100"
	defaultApproveAfterMs = "0"
)

// The mock serves both DID provider APIs the gateway integrates:
//
//	POST /v2/authentication/requests          Polygon ID style (X-API-Key)
//	POST /v2/authentication/callback          proof verification
//	POST /v1/verification-sessions            idOS style (Bearer token)
//	GET  /v1/verification-sessions/{id}       authoritative outcome re-query
//
// Magic wallet suffixes let e2e tests steer outcomes:
//
//	...ee  -> Polygon ID proof fails verification
//	...ff  -> idOS session ends rejected
//	...dd  -> idOS session stays pending forever

type AuthRequest struct {
	Wallet      string `json:"wallet"`
	CallbackURL string `json:"callback_url"`
}

type AuthResponse struct {
	SessionID string `json:"session_id"`
	QRPayload string `json:"qr_payload"`
	ExpiresAt string `json:"expires_at"`
}

type ProofResponse struct {
	Verified bool           `json:"verified"`
	DID      string         `json:"did"`
	Metadata map[string]any `json:"metadata"`
}

type SessionRequest struct {
	WalletAddress string `json:"wallet_address"`
	RedirectURI   string `json:"redirect_uri"`
}

type SessionResponse struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Status    string `json:"status"`
	DID       string `json:"did,omitempty"`
	ExpiresAt string `json:"expires_at"`
	Reason    string `json:"reason,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

type session struct {
	Wallet    string
	CreatedAt time.Time
}

var (
	apiKey         = getEnv("API_KEY", defaultAPIKey)
	bearerToken    = getEnv("BEARER_TOKEN", defaultBearerToken)
	latencyMs      = getEnvInt("LATENCY_MS", defaultLatencyMs)
	approveAfterMs = getEnvInt("APPROVE_AFTER_MS", defaultApproveAfterMs)

	mu       sync.Mutex
	sessions = map[string]session{}
	sessionN int
)

func main() {
	port := getEnv("PORT", defaultPort)

	http.HandleFunc("/health", handleHealth)
	http.HandleFunc("/v2/authentication/requests", handleAuthRequest)
	http.HandleFunc("/v2/authentication/callback", handleAuthCallback)
	http.HandleFunc("/v1/verification-sessions", handleSessionCreate)
	http.HandleFunc("/v1/verification-sessions/", handleSessionGet)

	log.Printf("🪪  Mock DID Provider starting on port %s", port)
	log.Printf("📝 API Key (Polygon ID): %s", apiKey)
	log.Printf("📝 Bearer token (idOS): %s", bearerToken)
	log.Printf("⏱️  Simulated latency: %dms, idOS approval after: %dms", latencyMs, approveAfterMs)

	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Fatal(err)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "did-provider",
		"version": "1.0.0",
	})
}

func handleAuthRequest(w http.ResponseWriter, r *http.Request) {
	time.Sleep(time.Duration(latencyMs) * time.Millisecond)
	log.Printf("📥 Incoming request: %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)

	if r.Method != http.MethodPost {
		sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if r.Header.Get("X-API-Key") != apiKey {
		sendError(w, "Invalid API key", http.StatusUnauthorized)
		return
	}

	var req AuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Wallet == "" {
		sendError(w, "wallet is required", http.StatusBadRequest)
		return
	}

	sessionID := newSession("auth", req.Wallet)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(AuthResponse{
		SessionID: sessionID,
		QRPayload: fmt.Sprintf(`{"type":"auth-request","session":"%s","callback":"%s"}`, sessionID, req.CallbackURL),
		ExpiresAt: time.Now().UTC().Add(20 * time.Minute).Format(time.RFC3339),
	})

	log.Printf("✅ Authorization request opened: %s for wallet %s", sessionID, req.Wallet)
}

func handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	time.Sleep(time.Duration(latencyMs) * time.Millisecond)
	log.Printf("📥 Incoming request: %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)

	if r.Method != http.MethodPost {
		sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if r.Header.Get("X-API-Key") != apiKey {
		sendError(w, "Invalid API key", http.StatusUnauthorized)
		return
	}

	sessionID := r.URL.Query().Get("sessionID")
	sess, ok := lookupSession(sessionID)
	if !ok {
		sendError(w, "Session not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if strings.HasSuffix(sess.Wallet, "ee") {
		json.NewEncoder(w).Encode(ProofResponse{Verified: false})
		log.Printf("🚫 Proof verification failed (magic wallet): %s", sess.Wallet)
		return
	}

	json.NewEncoder(w).Encode(ProofResponse{
		Verified: true,
		DID:      deriveDID("polygonid", sess.Wallet),
		Metadata: map[string]any{"circuit": "credentialAtomicQuerySigV2"},
	})
	log.Printf("✅ Proof verified for session %s (wallet %s)", sessionID, sess.Wallet)
}

func handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	time.Sleep(time.Duration(latencyMs) * time.Millisecond)
	log.Printf("📥 Incoming request: %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)

	if r.Method != http.MethodPost {
		sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if r.Header.Get("Authorization") != "Bearer "+bearerToken {
		sendError(w, "Invalid bearer token", http.StatusUnauthorized)
		return
	}

	var req SessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.WalletAddress == "" {
		sendError(w, "wallet_address is required", http.StatusBadRequest)
		return
	}

	sessionID := newSession("vs", req.WalletAddress)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(SessionResponse{
		ID:        sessionID,
		URL:       "https://verify.idos.example/s/" + sessionID,
		Status:    "pending",
		ExpiresAt: time.Now().UTC().Add(30 * time.Minute).Format(time.RFC3339),
	})

	log.Printf("✅ Verification session created: %s for wallet %s", sessionID, req.WalletAddress)
}

func handleSessionGet(w http.ResponseWriter, r *http.Request) {
	time.Sleep(time.Duration(latencyMs) * time.Millisecond)
	log.Printf("📥 Incoming request: %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)

	if r.Method != http.MethodGet {
		sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if r.Header.Get("Authorization") != "Bearer "+bearerToken {
		sendError(w, "Invalid bearer token", http.StatusUnauthorized)
		return
	}

	sessionID := strings.TrimPrefix(r.URL.Path, "/v1/verification-sessions/")
	sess, ok := lookupSession(sessionID)
	if !ok {
		sendError(w, "Session not found", http.StatusNotFound)
		return
	}

	resp := SessionResponse{
		ID:        sessionID,
		URL:       "https://verify.idos.example/s/" + sessionID,
		ExpiresAt: sess.CreatedAt.UTC().Add(30 * time.Minute).Format(time.RFC3339),
	}

	switch {
	case strings.HasSuffix(sess.Wallet, "dd"):
		resp.Status = "pending"
	case time.Since(sess.CreatedAt) < time.Duration(approveAfterMs)*time.Millisecond:
		resp.Status = "pending"
	case strings.HasSuffix(sess.Wallet, "ff"):
		resp.Status = "rejected"
		resp.Reason = "identity documents did not match wallet ownership"
	default:
		resp.Status = "approved"
		resp.DID = deriveDID("idos", sess.Wallet)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)

	log.Printf("✅ Session %s for wallet %s -> %s", sessionID, sess.Wallet, resp.Status)
}

func newSession(kind, wallet string) string {
	mu.Lock()
	defer mu.Unlock()
	sessionN++
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d", kind, wallet, sessionN)))
	sessionID := kind + "-" + hex.EncodeToString(hash[:8])
	sessions[sessionID] = session{Wallet: wallet, CreatedAt: time.Now()}
	return sessionID
}

func lookupSession(sessionID string) (session, bool) {
	mu.Lock()
	defer mu.Unlock()
	sess, ok := sessions[sessionID]
	return sess, ok
}

// deriveDID generates a deterministic DID from the wallet so repeated
// verifications of the same wallet agree.
func deriveDID(provider, wallet string) string {
	hash := sha256.Sum256([]byte(provider + "|" + strings.ToLower(wallet)))
	return fmt.Sprintf("did:%s:%s", provider, hex.EncodeToString(hash[:16]))
}

func sendError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   http.StatusText(code),
		Message: message,
		Code:    code,
	})
	log.Printf("❌ Error response: %d - %s", code, message)
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
