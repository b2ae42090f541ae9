package repository

import (
	"time"

	"github.com/StefanHaberl/VoiceFox/app/models"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByAPIKeyHash(hash string) (*models.User, error)
	Update(user *models.User) error
	TouchAPIKeyUsage(id uint) error
}

// VoiceModelRepository defines the interface for voice catalog operations
type VoiceModelRepository interface {
	Create(model *models.VoiceModel) error
	GetByUUID(uuid string) (*models.VoiceModel, error)
	ListActive() ([]models.VoiceModel, error)
	Update(model *models.VoiceModel) error
}

// AudioFileRepository defines the interface for uploaded audio records
type AudioFileRepository interface {
	Create(file *models.AudioFile) error
	GetByUUID(uuid string) (*models.AudioFile, error)
	MarkPreprocessed(id uint, format string, durationSeconds float64) error
}

// ConversionRepository defines the interface for voice conversion rows. All
// status mutations go through TryClaim so concurrent workers never apply a
// lost update.
type ConversionRepository interface {
	Create(conversion *models.VoiceConversion) error
	GetByID(id uint) (*models.VoiceConversion, error)
	GetByUUID(uuid string) (*models.VoiceConversion, error)
	ListByUserID(userID uint, offset, limit int) ([]models.VoiceConversion, error)

	// FindDispatchCandidates returns, oldest first, pending conversions whose
	// audio is preprocessed plus queued/processing conversions still below
	// maxRetries whose last attempt is older than minRetryAge.
	FindDispatchCandidates(now time.Time, maxRetries int, minRetryAge time.Duration, limit int) ([]models.VoiceConversion, error)

	// TryClaim applies updates plus a lock_version bump iff the row still
	// carries the version read into conversion. Returns false on a lost race.
	TryClaim(conversion *models.VoiceConversion, updates map[string]interface{}) (bool, error)
}

// SubscriptionRepository defines the interface for webhook subscriptions
type SubscriptionRepository interface {
	Create(sub *models.WebhookSubscription) error
	GetByID(id uint) (*models.WebhookSubscription, error)
	GetByUUID(uuid string) (*models.WebhookSubscription, error)
	ListByUserID(userID uint) ([]models.WebhookSubscription, error)
	ListActiveForEvent(userID uint, event string) ([]models.WebhookSubscription, error)
	Update(sub *models.WebhookSubscription) error
	Delete(id uint) error

	// RecordSuccess resets the consecutive failure counter after a delivered
	// webhook; RecordFailure increments it and flips active off once the
	// auto-disable threshold is reached. RecordFailure reports whether this
	// call disabled the subscription.
	RecordSuccess(id uint, at time.Time) error
	RecordFailure(sub *models.WebhookSubscription, at time.Time) (disabled bool, err error)
}

// DeliveryLogRepository defines the interface for webhook delivery rows
type DeliveryLogRepository interface {
	Create(log *models.WebhookDeliveryLog) error
	GetByUUID(uuid string) (*models.WebhookDeliveryLog, error)
	ListBySubscriptionID(subscriptionID uint, offset, limit int) ([]models.WebhookDeliveryLog, error)

	// FindDue returns, oldest due first, pending deliveries plus failed ones
	// whose next_retry_at has elapsed and attempt_number is still within
	// maxAttempts. Subscriptions are preloaded.
	FindDue(now time.Time, maxAttempts int, limit int) ([]models.WebhookDeliveryLog, error)

	// TryClaim applies updates plus a lock_version bump iff the row still
	// carries the version read into log. Returns false on a lost race.
	TryClaim(log *models.WebhookDeliveryLog, updates map[string]interface{}) (bool, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	User         UserRepository
	VoiceModel   VoiceModelRepository
	AudioFile    AudioFileRepository
	Conversion   ConversionRepository
	Subscription SubscriptionRepository
	DeliveryLog  DeliveryLogRepository
}
