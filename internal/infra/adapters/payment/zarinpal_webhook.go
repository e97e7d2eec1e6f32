package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const zarinPalSignatureHeader = "X-ZarinPal-Signature"

// SignZarinPalCallback computes HMAC-SHA256(amount + authority + status + secret) keyed by secret.
func SignZarinPalCallback(secret string, data map[string]string) string {
	signatureData := data["amount"] + data["authority"] + data["status"] + secret

	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(signatureData))
	return hex.EncodeToString(h.Sum(nil))
}

func VerifyZarinPalWebhookSignature(secret string, data map[string]string, signature string) bool {
	expected := SignZarinPalCallback(secret, data)
	return hmac.Equal([]byte(strings.ToLower(expected)), []byte(strings.ToLower(signature)))
}
