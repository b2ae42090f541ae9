package dispatcher

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/StefanHaberl/VoiceFox/app/models"
	"github.com/StefanHaberl/VoiceFox/app/repository"
	"github.com/StefanHaberl/VoiceFox/internal/pkg/inference"
	"github.com/StefanHaberl/VoiceFox/internal/pkg/storage"
)

// ErrConversionNotFound is returned when a callback references an unknown
// request id. Distinct from transient failures so the inference service can
// tell "stop, this is permanent" from "retry me".
var ErrConversionNotFound = errors.New("conversion not found")

// ErrInvalidConversionState is returned when a callback arrives for a
// conversion that is neither awaiting a result nor a matching duplicate.
var ErrInvalidConversionState = errors.New("conversion is not awaiting a result")

// ResultHandler finalizes conversions from inference callbacks.
type ResultHandler struct {
	conversions  repository.ConversionRepository
	notifier     *Notifier
	outputBucket string
}

// NewResultHandler creates a result handler. outputBucket is where the
// inference service writes finished conversions.
func NewResultHandler(conversions repository.ConversionRepository, notifier *Notifier, outputBucket string) *ResultHandler {
	return &ResultHandler{
		conversions:  conversions,
		notifier:     notifier,
		outputBucket: outputBucket,
	}
}

// HandleCallback applies one asynchronous result. Duplicate callbacks for an
// already finalized conversion with the matching outcome are a no-op, since
// the inference service delivers at least once.
func (h *ResultHandler) HandleCallback(cb inference.Callback) error {
	conversion, err := h.conversions.GetByUUID(cb.RequestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrConversionNotFound
		}
		return fmt.Errorf("failed to load conversion %s: %w", cb.RequestID, err)
	}

	if conversion.IsTerminal() {
		if h.matchesOutcome(conversion, cb.Status) {
			log.Debugf("[ResultHandler] Duplicate callback for conversion %s ignored", conversion.UUID)
			return nil
		}
		return ErrInvalidConversionState
	}
	if conversion.Status != models.ConversionStatusQueued && conversion.Status != models.ConversionStatusProcessing {
		return ErrInvalidConversionState
	}

	var event string
	updates := map[string]interface{}{
		"completed_at": cb.FinishedAtUTC,
	}
	switch cb.Status {
	case inference.CallbackStatusSuccess:
		event = models.EventConversionCompleted
		updates["status"] = models.ConversionStatusCompleted
		updates["output_bucket"] = h.outputBucket
		updates["output_key"] = storage.OutputKey(conversion.UUID, conversion.AudioFile.Format)
	case inference.CallbackStatusFailed:
		event = models.EventConversionFailed
		updates["status"] = models.ConversionStatusFailed
		message := cb.ErrorMessage
		if message == "" {
			message = "conversion failed"
		}
		updates["error_message"] = message
	default:
		return fmt.Errorf("unknown callback status %q for conversion %s", cb.Status, cb.RequestID)
	}

	won, err := h.conversions.TryClaim(conversion, updates)
	if err != nil {
		return fmt.Errorf("failed to finalize conversion %s: %w", conversion.UUID, err)
	}
	if !won {
		// someone else touched the row while we processed; re-read and decide
		fresh, err := h.conversions.GetByUUID(cb.RequestID)
		if err != nil {
			return fmt.Errorf("failed to reload conversion %s: %w", cb.RequestID, err)
		}
		if fresh.IsTerminal() && h.matchesOutcome(fresh, cb.Status) {
			return nil
		}
		return ErrInvalidConversionState
	}

	if status, ok := updates["status"].(string); ok {
		if err := SetConversionStatus(conversion.UUID, status); err != nil {
			log.Errorf("[ResultHandler] Status cache update failed for conversion %s: %v", conversion.UUID, err)
		}
	}
	if message, ok := updates["error_message"].(string); ok {
		conversion.ErrorMessage = message
	}

	log.Infof("[ResultHandler] Conversion %s finalized as %s", conversion.UUID, conversion.Status)
	h.notifier.NotifyConversionEvent(conversion, event)
	return nil
}

func (h *ResultHandler) matchesOutcome(conversion *models.VoiceConversion, callbackStatus string) bool {
	switch callbackStatus {
	case inference.CallbackStatusSuccess:
		return conversion.Status == models.ConversionStatusCompleted
	case inference.CallbackStatusFailed:
		return conversion.Status == models.ConversionStatusFailed
	}
	return false
}
