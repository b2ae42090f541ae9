package webhooks

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/StefanHaberl/VoiceFox/app/models"
	"github.com/StefanHaberl/VoiceFox/app/repository"
	"github.com/StefanHaberl/VoiceFox/internal/pkg/backoff"
	"github.com/StefanHaberl/VoiceFox/internal/pkg/env"
	"github.com/StefanHaberl/VoiceFox/internal/pkg/health"
)

// maximum stored response body length
const maxResponseBodyLen = 1000

// SecretDecrypter decrypts a subscription secret right before signing.
type SecretDecrypter interface {
	Decrypt(encrypted string) (string, error)
}

// Config carries the delivery engine tunables. All values come from the
// environment; nothing is hard-coded so operators can tighten or relax the
// retry cadence without a rebuild.
type Config struct {
	Interval       time.Duration
	BatchSize      int
	MaxAttempts    int
	BackoffBase    time.Duration
	BackoffCap     time.Duration
	RequestTimeout time.Duration
}

// ConfigFromEnv loads the delivery engine configuration.
func ConfigFromEnv() Config {
	return Config{
		Interval:       env.GetEnvDuration("WEBHOOK_POLL_INTERVAL", 15*time.Second),
		BatchSize:      env.GetEnvInt("WEBHOOK_BATCH_SIZE", 50),
		MaxAttempts:    env.GetEnvInt("WEBHOOK_MAX_ATTEMPTS", 3),
		BackoffBase:    env.GetEnvDuration("WEBHOOK_BACKOFF_BASE", time.Minute),
		BackoffCap:     env.GetEnvDuration("WEBHOOK_BACKOFF_CAP", 6*time.Hour),
		RequestTimeout: env.GetEnvDuration("WEBHOOK_REQUEST_TIMEOUT", 10*time.Second),
	}
}

// Engine is the background loop that delivers pending webhook rows. It is
// safe to run on many instances at once; cross-instance exclusivity comes
// entirely from the per-row claim, never from in-process locks.
type Engine struct {
	deliveries    repository.DeliveryLogRepository
	subscriptions repository.SubscriptionRepository
	decrypter     SecretDecrypter
	client        *http.Client
	cfg           Config
	retryDelay    backoff.Exponential
	reporter      *health.Reporter
}

// NewEngine creates a delivery engine.
func NewEngine(deliveries repository.DeliveryLogRepository, subscriptions repository.SubscriptionRepository, decrypter SecretDecrypter, cfg Config, reporter *health.Reporter) *Engine {
	return &Engine{
		deliveries:    deliveries,
		subscriptions: subscriptions,
		decrypter:     decrypter,
		client:        &http.Client{Timeout: cfg.RequestTimeout},
		cfg:           cfg,
		retryDelay:    backoff.Exponential{Base: cfg.BackoffBase, Cap: cfg.BackoffCap},
		reporter:      reporter,
	}
}

// Run ticks until the context is cancelled.
func (e *Engine) Run(ctx context.Context) {
	log.Infof("[WebhookEngine] Started (interval: %s, batch: %d, max attempts: %d)",
		e.cfg.Interval, e.cfg.BatchSize, e.cfg.MaxAttempts)
	e.reporter.SetRunning(true)
	defer e.reporter.SetRunning(false)

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("[WebhookEngine] Stopping")
			return
		case <-ticker.C:
			e.ProcessOnce(ctx)
		}
	}
}

// ProcessOnce works through one due batch and reports the outcome to the
// health sink. One broken delivery never blocks the rest of the batch.
func (e *Engine) ProcessOnce(ctx context.Context) (processed, skipped int) {
	now := time.Now().UTC()
	due, err := e.deliveries.FindDue(now, e.cfg.MaxAttempts, e.cfg.BatchSize)
	if err != nil {
		log.Errorf("[WebhookEngine] Batch query failed: %v", err)
		return 0, 0
	}

	for i := range due {
		if ctx.Err() != nil {
			break
		}
		delivery := &due[i]

		// The claim also pushes next_retry_at one backoff window out. If
		// this worker dies before finishAttempt, the row sits in processing
		// until that window elapses and FindDue re-admits it.
		claimedAt := time.Now().UTC()
		claimed, err := e.deliveries.TryClaim(delivery, map[string]interface{}{
			"status":        models.DeliveryStatusProcessing,
			"attempted_at":  claimedAt,
			"next_retry_at": claimedAt.Add(e.retryDelay.Delay(delivery.AttemptNumber)),
		})
		if err != nil {
			log.Errorf("[WebhookEngine] Claim failed for delivery %s: %v", delivery.UUID, err)
			continue
		}
		if !claimed {
			// another worker won the row, not an error
			skipped++
			continue
		}

		e.deliver(ctx, delivery)
		processed++
	}

	e.reporter.RecordRun(processed, skipped)
	return processed, skipped
}

// deliver executes one claimed attempt end to end: decrypt, sign, send,
// classify, persist, update subscription health.
func (e *Engine) deliver(ctx context.Context, delivery *models.WebhookDeliveryLog) {
	sub := delivery.Subscription

	if !sub.Active {
		// Disabled while this row was already enqueued. Abandon instead of
		// burning attempts against an endpoint the owner switched off.
		e.finishAttempt(delivery, &sub, attemptResult{
			terminalStatus: models.DeliveryStatusAbandoned,
			errorMessage:   "subscription disabled",
			countAsFailure: false,
		})
		return
	}

	secret, err := e.decrypter.Decrypt(sub.SecretEncrypted)
	if err != nil {
		// Unrecoverable without operator action; retrying cannot help.
		e.finishAttempt(delivery, &sub, attemptResult{
			terminalStatus: models.DeliveryStatusAbandoned,
			errorMessage:   fmt.Sprintf("secret decryption failed: %v", err),
			countAsFailure: true,
		})
		return
	}

	payload := []byte(delivery.Payload)
	signature := Sign(payload, secret)

	reqCtx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, sub.TargetURL, bytes.NewReader(payload))
	if err != nil {
		e.finishAttempt(delivery, &sub, attemptResult{
			errorMessage:   fmt.Sprintf("invalid request: %v", err),
			countAsFailure: true,
		})
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, signature)
	req.Header.Set(TimestampHeader, strconv.FormatInt(time.Now().Unix(), 10))
	req.Header.Set(EventHeader, delivery.EventType)
	req.Header.Set(DeliveryHeader, delivery.UUID)

	start := time.Now()
	resp, err := e.client.Do(req)
	durationMs := time.Since(start).Milliseconds()

	if err != nil {
		e.finishAttempt(delivery, &sub, attemptResult{
			errorMessage:   fmt.Sprintf("request failed: %v", err),
			durationMs:     durationMs,
			countAsFailure: true,
		})
		return
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyLen))

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		e.finishAttempt(delivery, &sub, attemptResult{
			succeeded:    true,
			statusCode:   resp.StatusCode,
			responseBody: string(body),
			durationMs:   durationMs,
		})
		return
	}

	e.finishAttempt(delivery, &sub, attemptResult{
		statusCode:     resp.StatusCode,
		responseBody:   string(body),
		errorMessage:   fmt.Sprintf("endpoint returned status %d", resp.StatusCode),
		durationMs:     durationMs,
		countAsFailure: true,
	})
}

// attemptResult summarizes one attempt for bookkeeping.
type attemptResult struct {
	succeeded      bool
	statusCode     int
	responseBody   string
	errorMessage   string
	durationMs     int64
	terminalStatus string // forces a terminal status regardless of attempt budget
	countAsFailure bool   // whether the subscription failure streak advances
}

// finishAttempt persists the attempt outcome on the delivery row and updates
// subscription health. The write goes through the claim again, so a stale
// worker that lost the row mid-flight cannot clobber the winner's state.
func (e *Engine) finishAttempt(delivery *models.WebhookDeliveryLog, sub *models.WebhookSubscription, result attemptResult) {
	now := time.Now().UTC()
	attempt := delivery.AttemptNumber

	entry := models.DeliveryAttempt{
		Attempt:        attempt,
		AttemptedAt:    now,
		HTTPStatusCode: result.statusCode,
		ErrorMessage:   result.errorMessage,
		DurationMs:     result.durationMs,
	}
	attemptLog, err := delivery.AppendAttempt(entry)
	if err != nil {
		log.Errorf("[WebhookEngine] Attempt history corrupt for delivery %s: %v", delivery.UUID, err)
		attemptLog = delivery.AttemptLog
	}

	updates := map[string]interface{}{
		"response_body": truncate(result.responseBody, maxResponseBodyLen),
		"error_message": result.errorMessage,
		"duration_ms":   result.durationMs,
		"attempt_log":   attemptLog,
	}
	if result.statusCode > 0 {
		updates["http_status_code"] = result.statusCode
	}

	switch {
	case result.succeeded:
		updates["status"] = models.DeliveryStatusDelivered
		updates["next_retry_at"] = nil
	case result.terminalStatus != "":
		updates["status"] = result.terminalStatus
		updates["next_retry_at"] = nil
	case attempt >= e.cfg.MaxAttempts:
		updates["status"] = models.DeliveryStatusAbandoned
		updates["next_retry_at"] = nil
		log.Warnf("[WebhookEngine] Delivery %s abandoned after %d attempts", delivery.UUID, attempt)
	default:
		updates["status"] = models.DeliveryStatusFailed
		updates["attempt_number"] = attempt + 1
		updates["next_retry_at"] = now.Add(e.retryDelay.Delay(attempt))
	}

	if won, err := e.deliveries.TryClaim(delivery, updates); err != nil {
		log.Errorf("[WebhookEngine] Failed to persist attempt for delivery %s: %v", delivery.UUID, err)
		return
	} else if !won {
		// someone else finalized the row while we were sending; keep their state
		log.Warnf("[WebhookEngine] Lost finalize race for delivery %s", delivery.UUID)
		return
	}

	if result.succeeded {
		if err := e.subscriptions.RecordSuccess(sub.ID, now); err != nil {
			log.Errorf("[WebhookEngine] Failed to record success for subscription %s: %v", sub.UUID, err)
		}
		return
	}
	if !result.countAsFailure {
		return
	}
	disabled, err := e.subscriptions.RecordFailure(sub, now)
	if err != nil {
		log.Errorf("[WebhookEngine] Failed to record failure for subscription %s: %v", sub.UUID, err)
		return
	}
	if disabled {
		log.Warnf("[WebhookEngine] Subscription %s auto-disabled after %d consecutive failures",
			sub.UUID, sub.ConsecutiveFailures)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
