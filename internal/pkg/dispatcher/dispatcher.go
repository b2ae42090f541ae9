// Package dispatcher drives voice conversions through their lifecycle: it
// hands claimed jobs to the inference service and finalizes them when the
// callback arrives. Both halves mutate rows only through the optimistic
// claim, so any number of instances can run the loop concurrently.
package dispatcher

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/StefanHaberl/VoiceFox/app/models"
	"github.com/StefanHaberl/VoiceFox/app/repository"
	"github.com/StefanHaberl/VoiceFox/internal/pkg/backoff"
	"github.com/StefanHaberl/VoiceFox/internal/pkg/env"
	"github.com/StefanHaberl/VoiceFox/internal/pkg/health"
	"github.com/StefanHaberl/VoiceFox/internal/pkg/inference"
)

// terminal error message when the retry budget runs out
const errMaxRetriesExceeded = "max retries exceeded"

// Config carries the dispatcher tunables, all environment driven.
type Config struct {
	Interval    time.Duration
	BatchSize   int
	MaxRetries  int
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

// ConfigFromEnv loads the dispatcher configuration.
func ConfigFromEnv() Config {
	return Config{
		Interval:    env.GetEnvDuration("DISPATCH_POLL_INTERVAL", 10*time.Second),
		BatchSize:   env.GetEnvInt("DISPATCH_BATCH_SIZE", 25),
		MaxRetries:  env.GetEnvInt("DISPATCH_MAX_RETRIES", 5),
		BackoffBase: env.GetEnvDuration("DISPATCH_BACKOFF_BASE", 30*time.Second),
		BackoffCap:  env.GetEnvDuration("DISPATCH_BACKOFF_CAP", time.Hour),
	}
}

// Dispatcher is the background loop that moves eligible conversions forward.
type Dispatcher struct {
	conversions repository.ConversionRepository
	client      inference.Dispatcher
	notifier    *Notifier
	cfg         Config
	retryDelay  backoff.Exponential
	reporter    *health.Reporter
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(conversions repository.ConversionRepository, client inference.Dispatcher, notifier *Notifier, cfg Config, reporter *health.Reporter) *Dispatcher {
	return &Dispatcher{
		conversions: conversions,
		client:      client,
		notifier:    notifier,
		cfg:         cfg,
		retryDelay:  backoff.Exponential{Base: cfg.BackoffBase, Cap: cfg.BackoffCap},
		reporter:    reporter,
	}
}

// Run ticks until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	log.Infof("[Dispatcher] Started (interval: %s, batch: %d, max retries: %d)",
		d.cfg.Interval, d.cfg.BatchSize, d.cfg.MaxRetries)
	d.reporter.SetRunning(true)
	defer d.reporter.SetRunning(false)

	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("[Dispatcher] Stopping")
			return
		case <-ticker.C:
			d.ProcessOnce(ctx)
		}
	}
}

// ProcessOnce works through one candidate batch, oldest first. Claim losses
// and not-yet-due retries count as skipped; dispatch outcomes count as
// processed. The tally goes to the health sink after the batch.
func (d *Dispatcher) ProcessOnce(ctx context.Context) (processed, skipped int) {
	now := time.Now().UTC()
	candidates, err := d.conversions.FindDispatchCandidates(now, d.cfg.MaxRetries, d.cfg.BackoffBase, d.cfg.BatchSize)
	if err != nil {
		log.Errorf("[Dispatcher] Batch query failed: %v", err)
		return 0, 0
	}

	for i := range candidates {
		if ctx.Err() != nil {
			break
		}
		conversion := &candidates[i]

		if !d.retryDue(conversion, now) {
			// stuck row, but its exponential window has not elapsed yet
			skipped++
			continue
		}

		if conversion.RetryCount >= d.cfg.MaxRetries {
			if d.failTerminally(conversion) {
				processed++
			} else {
				// already terminal, or another worker got there first
				skipped++
			}
			continue
		}

		claimed, err := d.claimForDispatch(conversion)
		if err != nil {
			log.Errorf("[Dispatcher] Claim failed for conversion %s: %v", conversion.UUID, err)
			continue
		}
		if !claimed {
			// another worker won the row, not an error
			skipped++
			continue
		}

		d.dispatch(ctx, conversion)
		processed++
	}

	d.reporter.RecordRun(processed, skipped)
	return processed, skipped
}

// retryDue applies the per-row exponential backoff window. Fresh pending
// rows are always due.
func (d *Dispatcher) retryDue(conversion *models.VoiceConversion, now time.Time) bool {
	if conversion.Status == models.ConversionStatusPendingPreprocessing || conversion.LastRetryAt == nil {
		return true
	}
	return now.Sub(*conversion.LastRetryAt) >= d.retryDelay.Delay(conversion.RetryCount)
}

// claimForDispatch takes ownership of the row. Fresh conversions advance to
// queued; stuck queued/processing rows keep their status and only refresh the
// retry marker, which also fences out other workers for the backoff window.
func (d *Dispatcher) claimForDispatch(conversion *models.VoiceConversion) (bool, error) {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"last_retry_at": now,
	}
	if conversion.Status == models.ConversionStatusPendingPreprocessing {
		updates["status"] = models.ConversionStatusQueued
		updates["queued_at"] = now
	}

	won, err := d.conversions.TryClaim(conversion, updates)
	if err != nil || !won {
		return won, err
	}
	conversion.LastRetryAt = &now
	if conversion.Status == models.ConversionStatusQueued {
		_ = SetConversionStatus(conversion.UUID, models.ConversionStatusQueued)
	}
	return true, nil
}

// dispatch hands the claimed conversion to the inference service and applies
// the transition or retry bookkeeping.
func (d *Dispatcher) dispatch(ctx context.Context, conversion *models.VoiceConversion) {
	req := inference.DispatchRequest{
		RequestID:     conversion.UUID,
		AudioLocation: conversion.AudioFile.Location(),
		ModelLocation: conversion.VoiceModel.Location(conversion.UsePreview),
		Transposition: conversion.Transposition,
		UsePreview:    conversion.UsePreview,
	}

	if err := d.client.Dispatch(ctx, req); err != nil {
		d.recordDispatchFailure(conversion, err)
		return
	}

	// handed off; the callback will finalize
	if conversion.Status == models.ConversionStatusQueued {
		now := time.Now().UTC()
		won, err := d.conversions.TryClaim(conversion, map[string]interface{}{
			"status":                models.ConversionStatusProcessing,
			"processing_started_at": now,
		})
		if err != nil {
			log.Errorf("[Dispatcher] Failed to mark conversion %s processing: %v", conversion.UUID, err)
			return
		}
		if !won {
			// the callback may already have finalized a fast job
			log.Warnf("[Dispatcher] Lost processing transition for conversion %s", conversion.UUID)
			return
		}
		_ = SetConversionStatus(conversion.UUID, models.ConversionStatusProcessing)
	}
	log.Debugf("[Dispatcher] Dispatched conversion %s (retry %d)", conversion.UUID, conversion.RetryCount)
}

// recordDispatchFailure bumps the retry counter, or fails the conversion
// terminally once the budget is exhausted.
func (d *Dispatcher) recordDispatchFailure(conversion *models.VoiceConversion, dispatchErr error) {
	log.Errorf("[Dispatcher] Dispatch failed for conversion %s (retry %d): %v",
		conversion.UUID, conversion.RetryCount, dispatchErr)

	newCount := conversion.RetryCount + 1
	if newCount >= d.cfg.MaxRetries {
		d.failTerminally(conversion)
		return
	}

	won, err := d.conversions.TryClaim(conversion, map[string]interface{}{
		"retry_count":   newCount,
		"last_retry_at": time.Now().UTC(),
	})
	if err != nil {
		log.Errorf("[Dispatcher] Failed to record retry for conversion %s: %v", conversion.UUID, err)
		return
	}
	if won {
		conversion.RetryCount = newCount
	}
}

// failTerminally moves a conversion to failed with the terminal retry error.
// Returns true only when this worker actually wrote the transition.
func (d *Dispatcher) failTerminally(conversion *models.VoiceConversion) bool {
	if !conversion.CanTransitionTo(models.ConversionStatusFailed) {
		return false
	}
	now := time.Now().UTC()
	won, err := d.conversions.TryClaim(conversion, map[string]interface{}{
		"status":        models.ConversionStatusFailed,
		"error_message": errMaxRetriesExceeded,
		"completed_at":  now,
	})
	if err != nil {
		log.Errorf("[Dispatcher] Failed to fail conversion %s: %v", conversion.UUID, err)
		return false
	}
	if !won {
		return false
	}
	conversion.ErrorMessage = errMaxRetriesExceeded
	conversion.CompletedAt = &now
	_ = SetConversionStatus(conversion.UUID, models.ConversionStatusFailed)
	log.Warnf("[Dispatcher] Conversion %s failed terminally: %s", conversion.UUID, errMaxRetriesExceeded)
	d.notifier.NotifyConversionEvent(conversion, models.EventConversionFailed)
	return true
}
