package paymentgateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignCallback computes the checkout callback signature: hex HMAC-SHA256 of
// "orderID|paymentID".
func SignCallback(secret, orderID, paymentID string) string {
	return sign(secret, []byte(orderID+"|"+paymentID))
}

// SignWebhook computes the webhook signature over the raw body.
func SignWebhook(secret string, body []byte) string {
	return sign(secret, body)
}

func sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// verify compares in constant time. An empty secret never verifies.
func verify(secret string, payload []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected := sign(secret, payload)
	return hmac.Equal([]byte(expected), []byte(signature))
}
