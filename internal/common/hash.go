package common

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint hashes the parts joined by "|" into a lowercase hex SHA-256 digest.
func Fingerprint(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
