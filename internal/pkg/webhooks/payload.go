package webhooks

import (
	"encoding/json"
	"time"
)

// Envelope is the wire format of every webhook payload. DeliveryID is stable
// across retries of the same logical delivery so receivers can deduplicate
// at-least-once deliveries.
type Envelope struct {
	DeliveryID string                 `json:"id"`
	Event      string                 `json:"event"`
	EntityType string                 `json:"entity_type"`
	EntityID   string                 `json:"entity_id"`
	Timestamp  time.Time              `json:"timestamp"`
	Data       map[string]interface{} `json:"data,omitempty"`
}

// EncodeEnvelope serializes the envelope once; the resulting bytes are what
// gets persisted on the delivery log, signed and sent. The payload is never
// re-serialized later, so the signature always matches the stored bytes.
func EncodeEnvelope(e Envelope) (string, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
