package util

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ContentHash returns a deterministic hash over the given parts. Used to
// recognise identical graph snapshots.
func ContentHash(parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(hash[:])
}
