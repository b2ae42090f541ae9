package repository

import (
	"github.com/StefanHaberl/VoiceFox/app/models"
	"gorm.io/gorm"
)

// audioFileRepository implements the AudioFileRepository interface
type audioFileRepository struct {
	db *gorm.DB
}

// NewAudioFileRepository creates a new audio file repository instance
func NewAudioFileRepository(db *gorm.DB) AudioFileRepository {
	return &audioFileRepository{db: db}
}

// Create registers a newly uploaded audio file
func (r *audioFileRepository) Create(file *models.AudioFile) error {
	return r.db.Create(file).Error
}

// GetByUUID retrieves an audio file by its public identifier
func (r *audioFileRepository) GetByUUID(uuid string) (*models.AudioFile, error) {
	return models.FindAudioFileByUUID(r.db, uuid)
}

// MarkPreprocessed records the pre-processing result reported by the upload
// pipeline; conversions referencing the file become dispatch-eligible.
func (r *audioFileRepository) MarkPreprocessed(id uint, format string, durationSeconds float64) error {
	return r.db.Model(&models.AudioFile{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"preprocessed":     true,
			"format":           format,
			"duration_seconds": durationSeconds,
		}).Error
}
