package repository

import (
	"time"

	"github.com/StefanHaberl/VoiceFox/app/models"
	"github.com/StefanHaberl/VoiceFox/internal/pkg/claim"
	"gorm.io/gorm"
)

// conversionRepository implements the ConversionRepository interface
type conversionRepository struct {
	db *gorm.DB
}

// NewConversionRepository creates a new conversion repository instance
func NewConversionRepository(db *gorm.DB) ConversionRepository {
	return &conversionRepository{db: db}
}

// Create creates a new conversion row
func (r *conversionRepository) Create(conversion *models.VoiceConversion) error {
	return r.db.Create(conversion).Error
}

// GetByID retrieves a conversion by its primary key
func (r *conversionRepository) GetByID(id uint) (*models.VoiceConversion, error) {
	var conversion models.VoiceConversion
	if err := r.db.First(&conversion, id).Error; err != nil {
		return nil, err
	}
	return &conversion, nil
}

// GetByUUID retrieves a conversion by its public identifier, with its audio
// file and voice model attached
func (r *conversionRepository) GetByUUID(uuid string) (*models.VoiceConversion, error) {
	var conversion models.VoiceConversion
	err := r.db.Preload("AudioFile").Preload("VoiceModel").
		Where("uuid = ?", uuid).First(&conversion).Error
	if err != nil {
		return nil, err
	}
	return &conversion, nil
}

// ListByUserID returns a user's conversions, newest first
func (r *conversionRepository) ListByUserID(userID uint, offset, limit int) ([]models.VoiceConversion, error) {
	var result []models.VoiceConversion
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&result).Error
	if err != nil {
		return nil, err
	}
	return result, nil
}

// FindDispatchCandidates selects the batch a dispatcher tick works through.
// Two classes of rows qualify: fresh pending conversions whose audio file
// finished pre-processing, and queued/processing rows whose dispatch appears
// stuck (last attempt older than minRetryAge, retries not exhausted). The
// fine-grained per-row exponential backoff check happens in the dispatcher;
// this query only applies the cheap indexed window so polling stays flat
// under load.
func (r *conversionRepository) FindDispatchCandidates(now time.Time, maxRetries int, minRetryAge time.Duration, limit int) ([]models.VoiceConversion, error) {
	retryBefore := now.Add(-minRetryAge)

	var result []models.VoiceConversion
	err := r.db.
		Preload("AudioFile").
		Preload("VoiceModel").
		Joins("JOIN audio_files ON audio_files.id = voice_conversions.audio_file_id").
		Where(
			r.db.Where("voice_conversions.status = ? AND audio_files.preprocessed = ?",
				models.ConversionStatusPendingPreprocessing, true).
				Or("voice_conversions.status IN ? AND voice_conversions.retry_count <= ? AND (voice_conversions.last_retry_at IS NULL OR voice_conversions.last_retry_at <= ?)",
					[]string{models.ConversionStatusQueued, models.ConversionStatusProcessing}, maxRetries, retryBefore),
		).
		Order("voice_conversions.created_at ASC").
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
func (r *conversionRepository) TryClaim(conversion *models.VoiceConversion, updates map[string]interface{}) (bool, error) {
	won, err := claim.Try(r.db, &models.VoiceConversion{}, conversion.ID, conversion.LockVersion, updates)
	if err != nil || !won {
		return false, err
	}
	conversion.LockVersion++
	if status, ok := updates["status"].(string); ok {
		conversion.Status = status
	}
	return true, nil
}
