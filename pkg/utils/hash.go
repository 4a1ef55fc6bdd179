package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashKey returns a hex sha256 of the parts joined by a unit separator, so
// ("ab","c") and ("a","bc") never collide.
func HashKey(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:])
}
