// Package payment verifies and decodes gateway traffic and wraps the
// Razorpay API behind the Gateway interface.
package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sign returns the hex HMAC-SHA256 of payload under secret.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature is the HMAC of body in its
// exact received bytes.  The comparison is constant time.  It must run
// before body is parsed.
func VerifySignature(body []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// VerifyCheckout checks the signature the checkout widget returns to
// the client: an HMAC over "orderID|paymentID" with the key secret.
func VerifyCheckout(orderID, paymentID, signature, secret string) bool {
	if orderID == "" || paymentID == "" {
		return false
	}
	return VerifySignature([]byte(orderID+"|"+paymentID), signature, secret)
}
