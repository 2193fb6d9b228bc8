// Package idhash computes deterministic record identifiers.
// Hashing the natural key makes inserts idempotent: replaying the same
// open/close produces the same ID and trips the duplicate-key check instead
// of creating a second record.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputePositionID computes a deterministic position_id.
// Formula: SHA256(token_address|opened_at_ms)
// Returns hex-encoded hash (64 characters).
func ComputePositionID(tokenAddress string, openedAtMs int64) string {
	return hash(fmt.Sprintf("%s|%d", tokenAddress, openedAtMs))
}

// ComputeTradeID computes a deterministic trade_id for a closed position.
// Formula: SHA256(position_id|exit_reason|closed_at_ms)
func ComputeTradeID(positionID, exitReason string, closedAtMs int64) string {
	return hash(fmt.Sprintf("%s|%s|%d", positionID, exitReason, closedAtMs))
}

// ComputeMemoryEntryID computes a deterministic memory entry_id.
// Formula: SHA256(kind|token_address|payload|created_at_ms)
func ComputeMemoryEntryID(kind, tokenAddress, payload string, createdAtMs int64) string {
	return hash(fmt.Sprintf("%s|%s|%s|%d", kind, tokenAddress, payload, createdAtMs))
}

func hash(data string) string {
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}
