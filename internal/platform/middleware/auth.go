package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"emblem/pkg/domain"
	"emblem/pkg/requestcontext"
)

// WalletTokenVerifier validates a bearer token and extracts the wallet claim.
type WalletTokenVerifier interface {
	VerifyWalletToken(tokenString string) (domain.WalletAddress, error)
}

// BearerToken extracts the token from the Authorization header, falling back
// to the "token" query parameter. The fallback exists for WebSocket upgrades,
// where browser clients cannot set custom headers.
func BearerToken(r *http.Request) string {
	const bearerPrefix = "Bearer "
	if after, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix); ok {
		return after
	}
	return r.URL.Query().Get("token")
}

// RequireWallet authenticates the request via a wallet-claim token and injects
// the wallet address into the request context.
func RequireWallet(verifier WalletTokenVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestID(ctx)

			token := BearerToken(r)
			if token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}

			wallet, err := verifier.VerifyWalletToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			ctx = requestcontext.WithWallet(ctx, wallet)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
