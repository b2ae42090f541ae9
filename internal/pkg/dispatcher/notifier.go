package dispatcher

import (
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/StefanHaberl/VoiceFox/app/models"
	"github.com/StefanHaberl/VoiceFox/app/repository"
	"github.com/StefanHaberl/VoiceFox/internal/pkg/webhooks"
)

// Notifier fans a conversion event out into pending delivery rows, one per
// active subscription of the owner that listens for the event. The delivery
// engine picks the rows up on its own cadence; a notification problem never
// touches the conversion that triggered it.
type Notifier struct {
	subscriptions repository.SubscriptionRepository
	deliveries    repository.DeliveryLogRepository
}

// NewNotifier creates a notifier.
func NewNotifier(subscriptions repository.SubscriptionRepository, deliveries repository.DeliveryLogRepository) *Notifier {
	return &Notifier{subscriptions: subscriptions, deliveries: deliveries}
}

// NotifyConversionEvent enqueues one delivery log per matching subscription.
// Each row gets its own stable delivery id baked into the payload, which is
// serialized exactly once here and never mutated afterwards.
func (n *Notifier) NotifyConversionEvent(conversion *models.VoiceConversion, event string) {
	subs, err := n.subscriptions.ListActiveForEvent(conversion.UserID, event)
	if err != nil {
		log.Errorf("[Notifier] Failed to load subscriptions for user %d: %v", conversion.UserID, err)
		return
	}

	for _, sub := range subs {
		deliveryID := uuid.New().String()

		data := map[string]interface{}{
			"conversion_id": conversion.UUID,
			"status":        conversion.Status,
		}
		if conversion.ErrorMessage != "" {
			data["error_message"] = conversion.ErrorMessage
		}

		payload, err := webhooks.EncodeEnvelope(webhooks.Envelope{
			DeliveryID: deliveryID,
			Event:      event,
			EntityType: models.EntityTypeConversion,
			EntityID:   conversion.UUID,
			Timestamp:  time.Now().UTC(),
			Data:       data,
		})
		if err != nil {
			log.Errorf("[Notifier] Failed to encode payload for subscription %s: %v", sub.UUID, err)
			continue
		}

		deliveryLog := &models.WebhookDeliveryLog{
			UUID:           deliveryID,
			SubscriptionID: sub.ID,
			EventType:      event,
			EntityType:     models.EntityTypeConversion,
			EntityID:       conversion.UUID,
			Status:         models.DeliveryStatusPending,
			Payload:        payload,
			AttemptNumber:  1,
		}
		if err := n.deliveries.Create(deliveryLog); err != nil {
			log.Errorf("[Notifier] Failed to enqueue delivery for subscription %s: %v", sub.UUID, err)
		}
	}
}
