package lemonsqueezy

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func signBody(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature_Valid(t *testing.T) {
	body := []byte(`{"meta":{"event_name":"order_created"}}`)
	sig := signBody(body, "s3cret")
	require.True(t, VerifySignature(body, sig, "s3cret"))
}

func TestVerifySignature_WrongSecret(t *testing.T) {
	body := []byte(`{"meta":{"event_name":"order_created"}}`)
	sig := signBody(body, "wrong-secret")
	require.False(t, VerifySignature(body, sig, "s3cret"))
}

func TestVerifySignature_TamperedBody(t *testing.T) {
	body := []byte(`{"amount":2000}`)
	sig := signBody(body, "s3cret")
	tampered := []byte(`{"amount":9000}`)
	require.False(t, VerifySignature(tampered, sig, "s3cret"))
}

func TestVerifySignature_FailsClosed(t *testing.T) {
	body := []byte(`{}`)
	sig := signBody(body, "s3cret")

	require.False(t, VerifySignature(body, sig, ""), "missing secret")
	require.False(t, VerifySignature(body, "", "s3cret"), "missing signature")
	require.False(t, VerifySignature(body, "not-hex-at-all", "s3cret"), "malformed hex")
	require.False(t, VerifySignature(body, "deadbeef", "s3cret"), "truncated digest")
}

func TestVerifySignature_LengthMismatchReturnsFalse(t *testing.T) {
	body := []byte(`{}`)
	full := signBody(body, "s3cret")
	// A valid-hex prefix of the real digest must be rejected without panic.
	require.False(t, VerifySignature(body, full[:32], "s3cret"))
	require.False(t, VerifySignature(body, full+full, "s3cret"))
}
