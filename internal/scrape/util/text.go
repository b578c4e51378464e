package util

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

func CleanText(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	s = strings.ReplaceAll(s, "　", " ") // ideographic space
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(s)
}

func HashString(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])[:16]
}
