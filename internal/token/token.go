// Package token verifies wallet-claim bearer tokens.
//
// Emblem does not issue tokens. The dapp frontend obtains a token from the
// wallet-auth service after a signature challenge; this package only checks
// the HMAC signature and extracts the wallet claim.
package token

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"

	"emblem/pkg/domain"
	dErrors "emblem/pkg/domain-errors"
)

// WalletClaims represents the claims carried by a wallet session token.
type WalletClaims struct {
	Wallet string `json:"wallet"`
	jwt.RegisteredClaims
}

// Verifier validates wallet session tokens signed with a shared HMAC key.
type Verifier struct {
	signingKey []byte
}

// NewVerifier creates a Verifier for the given signing key.
func NewVerifier(signingKey string) *Verifier {
	return &Verifier{signingKey: []byte(signingKey)}
}

// VerifyWalletToken validates the token signature and expiry and returns the
// canonical wallet address from the wallet claim.
func (v *Verifier) VerifyWalletToken(tokenString string) (domain.WalletAddress, error) {
	if tokenString == "" {
		return "", dErrors.New(dErrors.CodeUnauthorized, "empty token")
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &WalletClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenUnverifiable
		}
		return v.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", dErrors.New(dErrors.CodeUnauthorized, "token expired")
		}
		return "", dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	if !parsed.Valid {
		return "", dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*WalletClaims)
	if !ok {
		return "", dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}

	wallet, err := domain.ParseWalletAddress(claims.Wallet)
	if err != nil {
		return "", dErrors.New(dErrors.CodeUnauthorized, "token missing wallet claim")
	}

	return wallet, nil
}
