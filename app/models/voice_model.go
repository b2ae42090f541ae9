package models

import (
	"time"

	"gorm.io/gorm"
)

// VoiceModel is one entry in the voice catalog. The model weights live in
// object storage; PreviewKey points to a smaller variant used for cheap
// preview conversions.
type VoiceModel struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	UUID          string         `gorm:"type:char(36) CHARACTER SET utf8 COLLATE utf8_bin;uniqueIndex;not null" json:"uuid"`
	Name          string         `gorm:"type:varchar(150);not null" json:"name" validate:"required,min=2,max=150"`
	Description   string         `gorm:"type:text" json:"description"`
	StorageBucket string         `gorm:"type:varchar(100);not null" json:"-"`
	StorageKey    string         `gorm:"type:varchar(255);not null" json:"-"`
	PreviewKey    string         `gorm:"type:varchar(255)" json:"-"`
	Active        bool           `gorm:"default:true;index" json:"active"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

// Location returns the storage key the inference service should load. Falls
// back to the full model when no preview variant exists.
func (m *VoiceModel) Location(usePreview bool) string {
	if usePreview && m.PreviewKey != "" {
		return m.StorageBucket + "/" + m.PreviewKey
	}
	return m.StorageBucket + "/" + m.StorageKey
}

func FindVoiceModelByUUID(db *gorm.DB, uuid string) (*VoiceModel, error) {
	var model VoiceModel
	if err := db.Where("uuid = ?", uuid).First(&model).Error; err != nil {
		return nil, err
	}
	return &model, nil
}

func FindActiveVoiceModels(db *gorm.DB) ([]VoiceModel, error) {
	var result []VoiceModel
	if err := db.Where("active = ?", true).Order("name ASC").Find(&result).Error; err != nil {
		return nil, err
	}
	return result, nil
}
