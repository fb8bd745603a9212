package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

const hashFieldSeparator = "\x1f"

// ContentHash derives the dedup fingerprint for listings that carry no
// vendor-assigned item ID. The title is lowercased with whitespace collapsed
// so cosmetic variations hash identically; a price change produces a new hash.
func ContentHash(title, seller string, price float64) string {
	parts := []string{
		normalizeTitle(title),
		strings.ToLower(strings.TrimSpace(seller)),
		fmt.Sprintf("%.2f", price),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, hashFieldSeparator)))
	return hex.EncodeToString(sum[:])
}

// normalizeTitle lowercases and collapses runs of whitespace to single spaces.
func normalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}
