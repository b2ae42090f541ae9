package repository

import (
	"time"

	"github.com/StefanHaberl/VoiceFox/app/models"
	"github.com/StefanHaberl/VoiceFox/internal/pkg/claim"
	"gorm.io/gorm"
)

// deliveryLogRepository implements the DeliveryLogRepository interface
type deliveryLogRepository struct {
	db *gorm.DB
}

// NewDeliveryLogRepository creates a new delivery log repository instance
func NewDeliveryLogRepository(db *gorm.DB) DeliveryLogRepository {
	return &deliveryLogRepository{db: db}
}

// Create appends a new pending delivery row
func (r *deliveryLogRepository) Create(log *models.WebhookDeliveryLog) error {
	return r.db.Create(log).Error
}

// GetByUUID retrieves a delivery log by its public identifier
func (r *deliveryLogRepository) GetByUUID(uuid string) (*models.WebhookDeliveryLog, error) {
	var log models.WebhookDeliveryLog
	if err := r.db.Where("uuid = ?", uuid).First(&log).Error; err != nil {
		return nil, err
	}
	return &log, nil
}

// ListBySubscriptionID returns delivery history for a subscription, newest first
func (r *deliveryLogRepository) ListBySubscriptionID(subscriptionID uint, offset, limit int) ([]models.WebhookDeliveryLog, error) {
	var result []models.WebhookDeliveryLog
	err := r.db.Where("subscription_id = ?", subscriptionID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&result).Error
	if err != nil {
		return nil, err
	}
	return result, nil
}

// FindDue selects the batch a delivery tick works through: fresh pending
// rows plus failed rows whose retry window elapsed and whose attempt budget
// is not exhausted. Processing rows qualify under the same window, so a
// delivery claimed by a worker that died mid-send is re-admitted once its
// next_retry_at passes instead of being stranded. Oldest due first,
// subscription preloaded for signing.
func (r *deliveryLogRepository) FindDue(now time.Time, maxAttempts int, limit int) ([]models.WebhookDeliveryLog, error) {
	var result []models.WebhookDeliveryLog
	err := r.db.
		Preload("Subscription").
		Where(
			r.db.Where("status = ?", models.DeliveryStatusPending).
				Or("status IN ? AND next_retry_at <= ? AND attempt_number <= ?",
					[]string{models.DeliveryStatusFailed, models.DeliveryStatusProcessing}, now, maxAttempts),
		).
		Order("created_at ASC").
		Limit(limit).
		Find(&result).Error
	if err != nil {
		return nil, err
	}
	return result, nil
}

// TryClaim performs the conditional claim update described in the claim
// package. On success the in-memory row's token is advanced so follow-up
// writes by the same worker keep winning.
func (r *deliveryLogRepository) TryClaim(log *models.WebhookDeliveryLog, updates map[string]interface{}) (bool, error) {
	won, err := claim.Try(r.db, &models.WebhookDeliveryLog{}, log.ID, log.LockVersion, updates)
	if err != nil || !won {
		return false, err
	}
	log.LockVersion++
	if status, ok := updates["status"].(string); ok {
		log.Status = status
	}
	return true, nil
}
