// Package util holds small helpers shared across services.
package util

import (
	"encoding/hex"
	"strings"
)

// NormalizeHex lowercases a hex string and strips whitespace, so key
// material copied from dumps or support tickets decodes the same way it
// was stored. Returns false when the result is not valid hex.
func NormalizeHex(s string) (string, bool) {
	s = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	if len(s) == 0 || len(s)%2 != 0 {
		return "", false
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", false
	}
	return s, true
}
