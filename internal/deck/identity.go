package deck

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Normalize joins the entry's front and back after trimming, lowercasing and
// normalizing line endings, so cosmetic edits keep the same identity.
func Normalize(e Entry) string {
	clean := func(s string) string {
		s = strings.ReplaceAll(s, "\r\n", "\n")
		return strings.ToLower(strings.TrimSpace(s))
	}
	return clean(e.Front) + "\n" + clean(e.Back)
}

// CardID is the hex SHA-256 of the normalized entry.
func CardID(e Entry) string {
	sum := sha256.Sum256([]byte(Normalize(e)))
	return hex.EncodeToString(sum[:])
}
