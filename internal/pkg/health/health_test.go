package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSnapshot_NotRunning(t *testing.T) {
	r := NewReporter("dispatcher", time.Minute, 5*time.Minute)

	snapshot := r.Snapshot()
	assert.Equal(t, "dispatcher", snapshot.Engine)
	assert.False(t, snapshot.IsRunning)
	assert.Equal(t, StatusUnhealthy, snapshot.Status)
}

func TestSnapshot_StatusFromLastRunAge(t *testing.T) {
	tests := []struct {
		name     string
		lastRun  time.Duration
		expected string
	}{
		{"Fresh run", 10 * time.Second, StatusHealthy},
		{"Stale run", 2 * time.Minute, StatusDegraded},
		{"Dead engine", 10 * time.Minute, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReporter("dispatcher", time.Minute, 5*time.Minute)
			r.running = true
			r.lastSuccessful = time.Now().Add(-tt.lastRun)

			assert.Equal(t, tt.expected, r.Snapshot().Status)
		})
	}
}

func TestSnapshot_AccumulatesTotals(t *testing.T) {
	r := NewReporter("webhook_delivery", time.Minute, 5*time.Minute)
	r.RecordRun(3, 1)
	r.RecordRun(2, 0)

	snapshot := r.Snapshot()
	assert.Equal(t, int64(5), snapshot.TotalProcessed)
	assert.Equal(t, int64(1), snapshot.TotalSkipped)
	assert.WithinDuration(t, time.Now(), snapshot.LastSuccessfulRun, 5*time.Second)
}
