// Package health tracks liveness of the background engines. Each engine owns
// a Reporter; after every tick it records processed/skipped counts and the
// snapshot is cached in Redis where the readiness endpoint picks it up.
package health

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/StefanHaberl/VoiceFox/internal/pkg/cache"
	"github.com/gofiber/fiber/v2/log"
)

// Engine status values derived from the age of the last successful run.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// cache key format per engine
const engineHealthKeyFormat = "engine_health:%s"

const snapshotTTL = 10 * time.Minute

// EngineHealth is the snapshot reported for one background engine.
type EngineHealth struct {
	Engine            string    `json:"engine"`
	IsRunning         bool      `json:"is_running"`
	LastSuccessfulRun time.Time `json:"last_successful_run"`
	TotalProcessed    int64     `json:"total_processed"`
	TotalSkipped      int64     `json:"total_skipped"`
	Status            string    `json:"status"`
	ReportedAt        time.Time `json:"reported_at"`
}

// Reporter accumulates run statistics for a single engine.
type Reporter struct {
	engine         string
	degradedAfter  time.Duration
	unhealthyAfter time.Duration
	mu             sync.Mutex
	running        bool
	lastSuccessful time.Time
	totalProcessed int64
	totalSkipped   int64
}

// NewReporter creates a reporter. degradedAfter/unhealthyAfter bound how old
// the last successful run may get before the engine is reported as degraded
// or unhealthy; they should be multiples of the engine's tick interval.
func NewReporter(engine string, degradedAfter, unhealthyAfter time.Duration) *Reporter {
	return &Reporter{
		engine:         engine,
		degradedAfter:  degradedAfter,
		unhealthyAfter: unhealthyAfter,
	}
}

// SetRunning flags the engine loop as started or stopped and publishes the
// change.
func (r *Reporter) SetRunning(running bool) {
	r.mu.Lock()
	r.running = running
	r.mu.Unlock()
	r.publish()
}

// RecordRun records one completed tick and publishes the fresh snapshot.
func (r *Reporter) RecordRun(processed, skipped int) {
	r.mu.Lock()
	r.lastSuccessful = time.Now()
	r.totalProcessed += int64(processed)
	r.totalSkipped += int64(skipped)
	r.mu.Unlock()
	r.publish()
}

// Snapshot returns the current health view of the engine.
func (r *Reporter) Snapshot() EngineHealth {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := StatusHealthy
	if !r.running {
		status = StatusUnhealthy
	} else if r.lastSuccessful.IsZero() || time.Since(r.lastSuccessful) > r.unhealthyAfter {
		status = StatusUnhealthy
	} else if time.Since(r.lastSuccessful) > r.degradedAfter {
		status = StatusDegraded
	}

	return EngineHealth{
		Engine:            r.engine,
		IsRunning:         r.running,
		LastSuccessfulRun: r.lastSuccessful,
		TotalProcessed:    r.totalProcessed,
		TotalSkipped:      r.totalSkipped,
		Status:            status,
		ReportedAt:        time.Now(),
	}
}

func (r *Reporter) publish() {
	snapshot := r.Snapshot()
	b, err := json.Marshal(snapshot)
	if err != nil {
		return
	}
	key := fmt.Sprintf(engineHealthKeyFormat, r.engine)
	if err := cache.Set(key, string(b), snapshotTTL); err != nil {
		log.Errorf("[Health] Cache set failed for engine %s: %v", r.engine, err)
	}
}

// GetEngineHealth reads the cached snapshot for one engine.
func GetEngineHealth(engine string) (*EngineHealth, error) {
	key := fmt.Sprintf(engineHealthKeyFormat, engine)
	raw, err := cache.Get(key)
	if err != nil {
		return nil, err
	}
	var snapshot EngineHealth
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}
