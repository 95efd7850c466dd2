package openpix

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// SignatureHeader carries the HMAC-SHA256 of the raw webhook body.
const SignatureHeader = "x-webhook-signature"

const (
	EventChargeCompleted = "CHARGE_COMPLETED"
	EventChargeReceived  = "CHARGE_RECEIVED"
	EventChargeExpired   = "CHARGE_EXPIRED"
)

// WebhookEvent is the body OpenPix posts to the webhook endpoint.
type WebhookEvent struct {
	Event  string          `json:"event"`
	Charge *Charge         `json:"charge,omitempty"`
	Pix    *PixTransaction `json:"pix,omitempty"`
	// Evento is only set on the test ping sent when a webhook is registered.
	Evento string `json:"evento,omitempty"`
}

// PixTransaction is the settled PIX transfer attached to a charge.
type PixTransaction struct {
	EndToEndID    string `json:"endToEndId"`
	TransactionID string `json:"transactionID"`
	Value         int64  `json:"value"`
	Time          string `json:"time"`
}

// Name returns the event name without the optional "OPENPIX:" prefix.
func (e WebhookEvent) Name() string {
	name := strings.ToUpper(strings.TrimSpace(e.Event))
	return strings.TrimPrefix(name, "OPENPIX:")
}

// CorrelationID returns the charge correlation id, if any.
func (e WebhookEvent) CorrelationID() string {
	if e.Charge == nil {
		return ""
	}
	return strings.TrimSpace(e.Charge.CorrelationID)
}

// VerifySignature checks signature against HMAC-SHA256(secret, body). Hex and
// base64 encodings are both accepted.
func VerifySignature(secret string, body []byte, signature string) bool {
	signature = strings.TrimSpace(signature)
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := mac.Sum(nil)

	if decoded, err := hex.DecodeString(signature); err == nil && hmac.Equal(decoded, expected) {
		return true
	}
	if decoded, err := base64.StdEncoding.DecodeString(signature); err == nil && hmac.Equal(decoded, expected) {
		return true
	}
	return false
}
