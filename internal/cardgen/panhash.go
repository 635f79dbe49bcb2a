package cardgen

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// HashPAN computes a hex encoded HMAC-SHA256 over a normalized PAN so cards
// can be looked up without keeping the PAN itself.
func HashPAN(pan string, key []byte) string {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(NormalizePAN(pan)))
	return hex.EncodeToString(h.Sum(nil))
}
