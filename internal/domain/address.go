package domain

import (
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Solana public keys are 32-byte ed25519 values encoded as base58.
const pubkeyLen = 32

// ValidateTokenAddress checks that addr is a well-formed Solana mint address.
func ValidateTokenAddress(addr string) error {
	if addr == "" {
		return fmt.Errorf("empty address")
	}
	decoded, err := base58.Decode(addr)
	if err != nil {
		return fmt.Errorf("decode base58: %w", err)
	}
	if len(decoded) != pubkeyLen {
		return fmt.Errorf("expected %d bytes, got %d", pubkeyLen, len(decoded))
	}
	return nil
}

// ValidateWalletAddress checks that addr is a well-formed wallet public key.
// Wallet keys must additionally lie on the ed25519 curve; off-curve addresses
// are PDAs and cannot sign.
func ValidateWalletAddress(addr string) error {
	if err := ValidateTokenAddress(addr); err != nil {
		return err
	}
	decoded, _ := base58.Decode(addr)
	if _, err := (&edwards25519.Point{}).SetBytes(decoded); err != nil {
		return fmt.Errorf("not on ed25519 curve: %w", err)
	}
	return nil
}
