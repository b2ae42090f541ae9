package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Header names on outgoing deliveries. The signature covers the exact bytes
// of the request body.
const (
	SignatureHeader = "X-VoiceFox-Signature"
	TimestampHeader = "X-VoiceFox-Timestamp"
	EventHeader     = "X-VoiceFox-Event"
	DeliveryHeader  = "X-VoiceFox-Delivery"
)

// Sign computes the hex encoded HMAC-SHA256 signature of payload.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a received signature in constant time. Receivers of
// VoiceFox webhooks can use this to authenticate deliveries.
func VerifySignature(payload []byte, signature, secret string) bool {
	expected, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), expected)
}
