package repository

import (
	"time"

	"github.com/StefanHaberl/VoiceFox/app/models"
	"gorm.io/gorm"
)

// subscriptionRepository implements the SubscriptionRepository interface
type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new subscription repository instance
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

// Create creates a new webhook subscription
func (r *subscriptionRepository) Create(sub *models.WebhookSubscription) error {
	return r.db.Create(sub).Error
}

// GetByID retrieves a subscription by its primary key
func (r *subscriptionRepository) GetByID(id uint) (*models.WebhookSubscription, error) {
	var sub models.WebhookSubscription
	if err := r.db.First(&sub, id).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetByUUID retrieves a subscription by its public identifier
func (r *subscriptionRepository) GetByUUID(uuid string) (*models.WebhookSubscription, error) {
	return models.FindSubscriptionByUUID(r.db, uuid)
}

// ListByUserID returns all subscriptions of a user
func (r *subscriptionRepository) ListByUserID(userID uint) ([]models.WebhookSubscription, error) {
	var result []models.WebhookSubscription
	err := r.db.Where("user_id = ?", userID).Order("created_at ASC").Find(&result).Error
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListActiveForEvent returns the user's active subscriptions listening for
// the given event. The event set is a small JSON array, so membership is
// checked in Go instead of a dialect-specific JSON_CONTAINS.
func (r *subscriptionRepository) ListActiveForEvent(userID uint, event string) ([]models.WebhookSubscription, error) {
	var active []models.WebhookSubscription
	err := r.db.Where("user_id = ? AND active = ?", userID, true).Find(&active).Error
	if err != nil {
		return nil, err
	}
	result := make([]models.WebhookSubscription, 0, len(active))
	for _, sub := range active {
		if sub.SubscribedTo(event) {
			result = append(result, sub)
		}
	}
	return result, nil
}

// Update saves changes to an existing subscription
func (r *subscriptionRepository) Update(sub *models.WebhookSubscription) error {
	return r.db.Save(sub).Error
}

// Delete soft-deletes a subscription; its delivery logs cascade away with it
func (r *subscriptionRepository) Delete(id uint) error {
	return r.db.Delete(&models.WebhookSubscription{}, id).Error
}

// RecordSuccess resets the failure streak after a delivered webhook.
func (r *subscriptionRepository) RecordSuccess(id uint, at time.Time) error {
	return r.db.Model(&models.WebhookSubscription{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"consecutive_failures": 0,
			"last_success_at":      at,
		}).Error
}

// RecordFailure increments the failure streak and auto-disables the
// subscription once the threshold is reached. The active flag is only
// flipped while it is still true, so the disable happens exactly once even
// under concurrent engines.
func (r *subscriptionRepository) RecordFailure(sub *models.WebhookSubscription, at time.Time) (bool, error) {
	err := r.db.Model(&models.WebhookSubscription{}).
		Where("id = ?", sub.ID).
		Updates(map[string]interface{}{
			"consecutive_failures": gorm.Expr("consecutive_failures + 1"),
			"last_failure_at":      at,
		}).Error
	if err != nil {
		return false, err
	}
	sub.ConsecutiveFailures++
	sub.LastFailureAt = &at

	if !sub.ShouldAutoDisable() {
		return false, nil
	}
	result := r.db.Model(&models.WebhookSubscription{}).
		Where("id = ? AND active = ?", sub.ID, true).
		Update("active", false)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 1 {
		sub.Active = false
		return true, nil
	}
	return false, nil
}
