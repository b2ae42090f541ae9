package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubscribedTo(t *testing.T) {
	sub := &WebhookSubscription{
		Events: StringList{EventConversionCompleted},
	}

	assert.True(t, sub.SubscribedTo(EventConversionCompleted))
	assert.False(t, sub.SubscribedTo(EventConversionFailed))
	assert.False(t, sub.SubscribedTo("something.else"))
}

// TestShouldAutoDisable tests the auto-disable threshold check
func TestShouldAutoDisable(t *testing.T) {
	tests := []struct {
		name     string
		active   bool
		autoOff  bool
		failures int
		max      int
		expected bool
	}{
		{"Below threshold", true, true, 9, 10, false},
		{"At threshold", true, true, 10, 10, true},
		{"Above threshold", true, true, 15, 10, true},
		{"Already inactive", false, true, 15, 10, false},
		{"Auto-disable off", true, false, 15, 10, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := &WebhookSubscription{
				Active:                 tt.active,
				AutoDisableOnFailure:   tt.autoOff,
				ConsecutiveFailures:    tt.failures,
				MaxConsecutiveFailures: tt.max,
			}
			assert.Equal(t, tt.expected, sub.ShouldAutoDisable())
		})
	}
}

func TestStringListRoundTrip(t *testing.T) {
	list := StringList{EventConversionCompleted, EventConversionFailed}

	value, err := list.Value()
	assert.NoError(t, err)
	assert.Equal(t, `["conversion.completed","conversion.failed"]`, value)

	var scanned StringList
	assert.NoError(t, scanned.Scan(value))
	assert.Equal(t, list, scanned)
}

func TestStringListScanNil(t *testing.T) {
	var list StringList
	assert.NoError(t, list.Scan(nil))
	assert.Empty(t, list)

	value, err := list.Value()
	assert.NoError(t, err)
	assert.Equal(t, "[]", value)
}
