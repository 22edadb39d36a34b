// Package idhash derives deterministic identifiers.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// ComputeTradeID computes a deterministic trade_id using SHA256.
// Formula: SHA256(config_hash|date|action|symbol|seq)
// seq disambiguates fills of the same symbol and action on one day.
// Returns hex-encoded hash (64 characters).
func ComputeTradeID(
	configHash string,
	date time.Time,
	action string,
	symbol string,
	seq int,
) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%d",
		configHash,
		date.UTC().Format("2006-01-02"),
		action,
		symbol,
		seq,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeConfigHash fingerprints a canonical config encoding.
// Returns the first 16 hex characters of SHA256(canonical).
func ComputeConfigHash(canonical []byte) string {
	hash := sha256.Sum256(canonical)
	return hex.EncodeToString(hash[:8])
}
