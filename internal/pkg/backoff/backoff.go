// Package backoff computes retry delays for the background engines.
package backoff

import (
	"math"
	"time"
)

// Exponential doubles the delay each attempt.
// Delay = min(Base * 2^(attempt-1), Cap).
type Exponential struct {
	Base time.Duration
	Cap  time.Duration
}

// Delay returns the wait before retry attempt n (1-indexed). Attempt values
// below 1 are treated as 1.
func (e Exponential) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := time.Duration(float64(e.Base) * math.Pow(2, float64(attempt-1)))
	if e.Cap > 0 && (d > e.Cap || d < 0) {
		return e.Cap
	}
	return d
}
