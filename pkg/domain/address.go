package domain

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"

	dErrors "emblem/pkg/domain-errors"
)

// WalletAddress is a case-normalized 0x-prefixed hex account address. The
// lowercase form is the canonical storage and comparison key; Checksummed
// renders the EIP-55 mixed-case form for display.
type WalletAddress string

const addressHexLen = 40

// ParseWalletAddress validates and normalizes a wallet address. All-lowercase
// and all-uppercase inputs carry no checksum information and are accepted as
// is; mixed-case inputs must carry a valid EIP-55 checksum.
func ParseWalletAddress(s string) (WalletAddress, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "wallet address cannot be empty")
	}
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return "", dErrors.New(dErrors.CodeValidation, "wallet address must start with 0x")
	}
	body := s[2:]
	if len(body) != addressHexLen {
		return "", dErrors.New(dErrors.CodeValidation, "wallet address must be 20 bytes of hex")
	}
	if _, err := hex.DecodeString(body); err != nil {
		return "", dErrors.New(dErrors.CodeValidation, "wallet address contains non-hex characters")
	}

	lower := strings.ToLower(body)
	if body != lower && body != strings.ToUpper(body) {
		if checksumAddressBody(lower) != body {
			return "", dErrors.New(dErrors.CodeValidation, "wallet address checksum mismatch")
		}
	}
	return WalletAddress("0x" + lower), nil
}

func (a WalletAddress) String() string { return string(a) }

func (a WalletAddress) IsZero() bool { return a == "" }

// Checksummed returns the EIP-55 mixed-case rendering of the address.
func (a WalletAddress) Checksummed() string {
	if a.IsZero() {
		return ""
	}
	return "0x" + checksumAddressBody(strings.ToLower(string(a[2:])))
}

// Short returns a truncated form for logs: 0x1234…abcd.
func (a WalletAddress) Short() string {
	if len(a) != 2+addressHexLen {
		return string(a)
	}
	return string(a[:6]) + "…" + string(a[len(a)-4:])
}

// checksumAddressBody applies the EIP-55 rule: hash the lowercase hex body
// with Keccak-256 and uppercase each alphabetic character whose corresponding
// hash nibble is >= 8.
func checksumAddressBody(lower string) string {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(lower))
	sum := h.Sum(nil)

	out := []byte(lower)
	for i, c := range out {
		if c < 'a' || c > 'f' {
			continue
		}
		nibble := sum[i/2]
		if i%2 == 0 {
			nibble >>= 4
		} else {
			nibble &= 0x0f
		}
		if nibble >= 8 {
			out[i] = c - ('a' - 'A')
		}
	}
	return string(out)
}
