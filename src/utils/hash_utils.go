package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// ContentHash returns a truncated hex SHA-256 of raw bytes, used both for
// import-source dedup detection and for entity content fingerprints.
func ContentHash(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])[:16]
}

// FormatAmount renders a float the same way every time, for signatures and
// fingerprints. The shortest round-trippable form keeps 1.10 and 1.1 equal.
func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// NormalizeName lower-cases and collapses internal whitespace.
func NormalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
