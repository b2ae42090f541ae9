package webhooks

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEncodeEnvelope(t *testing.T) {
	envelope := Envelope{
		DeliveryID: "0b0f8a60-9c1d-4f7e-b8b1-111111111111",
		Event:      "conversion.completed",
		EntityType: "conversion",
		EntityID:   "22222222-9c1d-4f7e-b8b1-333333333333",
		Timestamp:  time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Data: map[string]interface{}{
			"conversion_id": "22222222-9c1d-4f7e-b8b1-333333333333",
			"status":        "completed",
		},
	}

	payload, err := EncodeEnvelope(envelope)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if decoded["id"] != envelope.DeliveryID {
		t.Fatalf("expected delivery id %q, got %v", envelope.DeliveryID, decoded["id"])
	}
	if decoded["event"] != "conversion.completed" {
		t.Fatalf("expected event in payload, got %v", decoded["event"])
	}
	if decoded["entity_type"] != "conversion" {
		t.Fatalf("expected entity type in payload, got %v", decoded["entity_type"])
	}

	data, ok := decoded["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected data object in payload")
	}
	if data["status"] != "completed" {
		t.Fatalf("expected status in data, got %v", data["status"])
	}
}

func TestEncodeEnvelope_OmitsEmptyData(t *testing.T) {
	payload, err := EncodeEnvelope(Envelope{DeliveryID: "d-1", Event: "conversion.failed"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if _, present := decoded["data"]; present {
		t.Fatalf("expected empty data to be omitted")
	}
}
