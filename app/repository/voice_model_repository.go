package repository

import (
	"github.com/StefanHaberl/VoiceFox/app/models"
	"gorm.io/gorm"
)

// voiceModelRepository implements the VoiceModelRepository interface
type voiceModelRepository struct {
	db *gorm.DB
}

// NewVoiceModelRepository creates a new voice model repository instance
func NewVoiceModelRepository(db *gorm.DB) VoiceModelRepository {
	return &voiceModelRepository{db: db}
}

// Create adds a new voice model to the catalog
func (r *voiceModelRepository) Create(model *models.VoiceModel) error {
	return r.db.Create(model).Error
}

// GetByUUID retrieves a voice model by its public identifier
func (r *voiceModelRepository) GetByUUID(uuid string) (*models.VoiceModel, error) {
	return models.FindVoiceModelByUUID(r.db, uuid)
}

// ListActive returns all catalog entries currently offered for conversion
func (r *voiceModelRepository) ListActive() ([]models.VoiceModel, error) {
	return models.FindActiveVoiceModels(r.db)
}

// Update saves changes to an existing voice model
func (r *voiceModelRepository) Update(model *models.VoiceModel) error {
	return r.db.Save(model).Error
}
