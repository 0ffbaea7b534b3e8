// Package fingerprint computes the content hashes used as summarization
// idempotence keys.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Bytes returns the lowercase hex SHA-256 of data.
func Bytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Text returns the lowercase hex SHA-256 of the UTF-8 encoding of text.
// Invalid UTF-8 sequences are dropped before hashing.
func Text(text string) string {
	return Bytes([]byte(strings.ToValidUTF8(text, "")))
}
