// Package main provides a CLI tool for generating wallet session tokens for
// the Emblem WebSocket bus. These tokens use the dev signing key by default
// and will NOT work against a deployment with its own JWT_SIGNING_KEY.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"emblem/internal/token"
	"emblem/pkg/domain"
)

const (
	// Dev signing key - matches config.go when JWT_SIGNING_KEY is not set
	devSigningKey = "dev-secret-key-change-in-production"

	defaultTokenTTL = 15 * time.Minute
)

type tokenOutput struct {
	Token     string            `json:"token"`
	Wallet    string            `json:"wallet"`
	ExpiresIn string            `json:"expires_in"`
	Usage     map[string]string `json:"usage"`
}

func main() {
	walletFlag := flag.String("wallet", "", "Wallet address (0x + 40 hex). Generated if empty.")
	ttl := flag.Duration("ttl", defaultTokenTTL, "Token time-to-live")
	key := flag.String("key", devSigningKey, "HMAC signing key (must match the server's JWT_SIGNING_KEY)")
	jsonOutput := flag.Bool("json", false, "Output as JSON")
	flag.Usage = printUsage
	flag.Parse()

	wallet := resolveWallet(*walletFlag)

	now := time.Now()
	claims := token.WalletClaims{
		Wallet: string(wallet),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(wallet),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(*ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(*key))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error signing token: %v\n", err)
		os.Exit(1)
	}

	// Round-trip through the verifier so a claim-shape mistake fails here
	// rather than as a silent 401 at the socket.
	if _, err := token.NewVerifier(*key).VerifyWalletToken(signed); err != nil {
		fmt.Fprintf(os.Stderr, "Generated token failed verification: %v\n", err)
		os.Exit(1)
	}

	if *jsonOutput {
		printJSON(tokenOutput{
			Token:     signed,
			Wallet:    string(wallet),
			ExpiresIn: ttl.String(),
			Usage: map[string]string{
				"header": "Authorization: Bearer <token>",
				"query":  "ws://localhost:8080/ws?token=<token>",
			},
		})
		return
	}

	fmt.Println("Wallet Session Token")
	fmt.Println("====================")
	fmt.Printf("Wallet:     %s\n", wallet)
	fmt.Printf("Expires In: %s\n", ttl)
	fmt.Println()
	fmt.Println("Token:")
	fmt.Println(signed)
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  websocat \"ws://localhost:8080/ws?token=<token>\"")
	fmt.Println("  curl -H \"Authorization: Bearer <token>\" http://localhost:8080/...")
}

func printUsage() {
	fmt.Print(`tokengen - Generate wallet session tokens for the Emblem WebSocket bus

WARNING: These tokens use the dev signing key by default and will NOT work
         against a deployment with its own JWT_SIGNING_KEY.

Usage:
  tokengen [flags]

Examples:
  # Token for a random wallet
  tokengen

  # Token for a specific wallet with a longer TTL
  tokengen -wallet 0x1f9840a85d5af5bf1d1762f925bdaddc4201f984 -ttl 1h

  # Output as JSON
  tokengen -json

`)
	fmt.Println("Flags:")
	flag.PrintDefaults()
}

func resolveWallet(input string) domain.WalletAddress {
	if input == "" {
		return randomWallet()
	}
	wallet, err := domain.ParseWalletAddress(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid wallet address: %s\n", input)
		os.Exit(1)
	}
	return wallet
}

func randomWallet() domain.WalletAddress {
	raw := make([]byte, 20)
	if _, err := rand.Read(raw); err != nil {
		fmt.Fprintf(os.Stderr, "Error generating wallet: %v\n", err)
		os.Exit(1)
	}
	wallet, err := domain.ParseWalletAddress("0x" + hex.EncodeToString(raw))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating wallet: %v\n", err)
		os.Exit(1)
	}
	return wallet
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}
