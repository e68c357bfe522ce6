package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emblem/pkg/domain"
	dErrors "emblem/pkg/domain-errors"
)

const signingKey = "test-signing-key"

var verifier = NewVerifier(signingKey)

func signToken(t *testing.T, method jwt.SigningMethod, key any, claims WalletClaims) string {
	t.Helper()
	tokenString, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return tokenString
}

func walletClaims(wallet string, expiresAt time.Time) WalletClaims {
	return WalletClaims{
		Wallet: wallet,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
}

func Test_VerifyWalletToken_ValidToken(t *testing.T) {
	tokenString := signToken(t, jwt.SigningMethodHS256, []byte(signingKey),
		walletClaims("0x8ba1f109551bD432803012645Ac136ddd64DBA72", time.Now().Add(time.Minute)))

	wallet, err := verifier.VerifyWalletToken(tokenString)
	require.NoError(t, err)
	// Claim addresses are normalized to the canonical lowercase form
	assert.Equal(t, domain.WalletAddress("0x8ba1f109551bd432803012645ac136ddd64dba72"), wallet)
}

func Test_VerifyWalletToken_EmptyToken(t *testing.T) {
	_, err := verifier.VerifyWalletToken("")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_VerifyWalletToken_InvalidToken(t *testing.T) {
	_, err := verifier.VerifyWalletToken("invalid-token-string")
	require.ErrorContains(t, err, "invalid token")
}

func Test_VerifyWalletToken_ExpiredToken(t *testing.T) {
	tokenString := signToken(t, jwt.SigningMethodHS256, []byte(signingKey),
		walletClaims("0x8ba1f109551bd432803012645ac136ddd64dba72", time.Now().Add(-time.Minute)))

	_, err := verifier.VerifyWalletToken(tokenString)
	require.ErrorContains(t, err, "token expired")
}

func Test_VerifyWalletToken_WrongKey(t *testing.T) {
	tokenString := signToken(t, jwt.SigningMethodHS256, []byte("some-other-key"),
		walletClaims("0x8ba1f109551bd432803012645ac136ddd64dba72", time.Now().Add(time.Minute)))

	_, err := verifier.VerifyWalletToken(tokenString)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_VerifyWalletToken_MissingWalletClaim(t *testing.T) {
	tokenString := signToken(t, jwt.SigningMethodHS256, []byte(signingKey),
		walletClaims("", time.Now().Add(time.Minute)))

	_, err := verifier.VerifyWalletToken(tokenString)
	require.ErrorContains(t, err, "token missing wallet claim")
}

func Test_VerifyWalletToken_RejectsAlgorithmConfusion(t *testing.T) {
	claims := walletClaims("0x8ba1f109551bd432803012645ac136ddd64dba72", time.Now().Add(time.Minute))

	cases := []struct {
		name       string
		signMethod jwt.SigningMethod
		signKey    any
	}{
		{
			name:       "hs512 header rejected",
			signMethod: jwt.SigningMethodHS512,
			signKey:    []byte(signingKey),
		},
		{
			name:       "alg none rejected",
			signMethod: jwt.SigningMethodNone,
			signKey:    jwt.UnsafeAllowNoneSignatureType,
		},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			tokenString := signToken(t, tt.signMethod, tt.signKey, claims)

			_, err := verifier.VerifyWalletToken(tokenString)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
		})
	}
}
