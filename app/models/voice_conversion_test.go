package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestCanTransitionTo tests the conversion state machine
func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		to      string
		allowed bool
	}{
		{"Pending to queued", ConversionStatusPendingPreprocessing, ConversionStatusQueued, true},
		{"Pending to processing", ConversionStatusPendingPreprocessing, ConversionStatusProcessing, false},
		{"Pending to completed", ConversionStatusPendingPreprocessing, ConversionStatusCompleted, false},
		{"Queued to processing", ConversionStatusQueued, ConversionStatusProcessing, true},
		{"Queued to failed", ConversionStatusQueued, ConversionStatusFailed, true},
		{"Queued to completed", ConversionStatusQueued, ConversionStatusCompleted, false},
		{"Queued back to pending", ConversionStatusQueued, ConversionStatusPendingPreprocessing, false},
		{"Processing to completed", ConversionStatusProcessing, ConversionStatusCompleted, true},
		{"Processing to failed", ConversionStatusProcessing, ConversionStatusFailed, true},
		{"Processing back to queued", ConversionStatusProcessing, ConversionStatusQueued, false},
		{"Completed is terminal", ConversionStatusCompleted, ConversionStatusFailed, false},
		{"Failed is terminal", ConversionStatusFailed, ConversionStatusQueued, false},
		{"Unknown status", "garbage", ConversionStatusQueued, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &VoiceConversion{Status: tt.from}
			assert.Equal(t, tt.allowed, c.CanTransitionTo(tt.to))
		})
	}
}

func TestIsTerminal(t *testing.T) {
	tests := []struct {
		status   string
		terminal bool
	}{
		{ConversionStatusPendingPreprocessing, false},
		{ConversionStatusQueued, false},
		{ConversionStatusProcessing, false},
		{ConversionStatusCompleted, true},
		{ConversionStatusFailed, true},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			c := &VoiceConversion{Status: tt.status}
			assert.Equal(t, tt.terminal, c.IsTerminal())
		})
	}
}

func TestIsValidTransposition(t *testing.T) {
	valid := []int{-12, -7, -4, 0, 4, 7, 12}
	for _, semitones := range valid {
		assert.True(t, IsValidTransposition(semitones), "expected %d to be valid", semitones)
	}

	invalid := []int{-13, -1, 1, 2, 3, 5, 6, 8, 11, 13, 24}
	for _, semitones := range invalid {
		assert.False(t, IsValidTransposition(semitones), "expected %d to be invalid", semitones)
	}
}
