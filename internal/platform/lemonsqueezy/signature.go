package lemonsqueezy

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// SignatureHeader is the HTTP header Lemon Squeezy signs webhook deliveries
// with: a hex-encoded HMAC-SHA256 of the raw request body.
const SignatureHeader = "X-Signature"

// VerifySignature reports whether providedHex is a valid HMAC-SHA256 of
// rawBody under secret. It fails closed on a missing secret, missing
// signature, or malformed hex, and compares digests in constant time.
func VerifySignature(rawBody []byte, providedHex string, secret string) bool {
	if secret == "" || providedHex == "" {
		return false
	}
	provided, err := hex.DecodeString(providedHex)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	expected := mac.Sum(nil)

	if len(provided) != len(expected) {
		return false
	}
	return subtle.ConstantTimeCompare(provided, expected) == 1
}
