package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeliveryIsTerminal(t *testing.T) {
	tests := []struct {
		status   string
		terminal bool
	}{
		{DeliveryStatusPending, false},
		{DeliveryStatusProcessing, false},
		{DeliveryStatusFailed, false},
		{DeliveryStatusDelivered, true},
		{DeliveryStatusAbandoned, true},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			d := &WebhookDeliveryLog{Status: tt.status}
			assert.Equal(t, tt.terminal, d.IsTerminal())
		})
	}
}

// TestAppendAttempt tests that the attempt history accumulates without
// losing earlier entries
func TestAppendAttempt(t *testing.T) {
	d := &WebhookDeliveryLog{}

	first, err := d.AppendAttempt(DeliveryAttempt{
		Attempt:      1,
		AttemptedAt:  time.Now().UTC(),
		ErrorMessage: "endpoint returned status 500",
		DurationMs:   120,
	})
	assert.NoError(t, err)
	d.AttemptLog = first

	second, err := d.AppendAttempt(DeliveryAttempt{
		Attempt:        2,
		AttemptedAt:    time.Now().UTC(),
		HTTPStatusCode: 200,
		DurationMs:     80,
	})
	assert.NoError(t, err)

	var history []DeliveryAttempt
	assert.NoError(t, json.Unmarshal(second, &history))
	assert.Len(t, history, 2)
	assert.Equal(t, 1, history[0].Attempt)
	assert.Equal(t, "endpoint returned status 500", history[0].ErrorMessage)
	assert.Equal(t, 2, history[1].Attempt)
	assert.Equal(t, 200, history[1].HTTPStatusCode)
}

func TestAppendAttemptCorruptHistory(t *testing.T) {
	d := &WebhookDeliveryLog{AttemptLog: JSON(`not json`)}

	_, err := d.AppendAttempt(DeliveryAttempt{Attempt: 1})
	assert.Error(t, err)
}
