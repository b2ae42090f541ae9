package models

import (
	"time"

	"gorm.io/gorm"
)

// AudioFile is an uploaded source recording. Upload and pre-processing
// (duration extraction, format derivation) happen outside this service; the
// Preprocessed flag is the signal the dispatcher waits for before a
// conversion referencing this file becomes eligible.
type AudioFile struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	UUID            string         `gorm:"type:char(36) CHARACTER SET utf8 COLLATE utf8_bin;uniqueIndex;not null" json:"uuid"`
	UserID          uint           `gorm:"index;not null" json:"user_id"`
	User            User           `gorm:"foreignKey:UserID" json:"-"`
	FileName        string         `gorm:"type:varchar(255);not null" json:"file_name"`
	FileSize        int64          `gorm:"type:bigint" json:"file_size"`
	Format          string         `gorm:"type:varchar(20)" json:"format"`
	DurationSeconds float64        `gorm:"type:double" json:"duration_seconds"`
	StorageBucket   string         `gorm:"type:varchar(100);not null" json:"-"`
	StorageKey      string         `gorm:"type:varchar(255);not null" json:"-"`
	Preprocessed    bool           `gorm:"default:false;index" json:"preprocessed"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

// Location returns the bucket qualified storage path of the recording.
func (a *AudioFile) Location() string {
	return a.StorageBucket + "/" + a.StorageKey
}

func FindAudioFileByUUID(db *gorm.DB, uuid string) (*AudioFile, error) {
	var file AudioFile
	if err := db.Where("uuid = ?", uuid).First(&file).Error; err != nil {
		return nil, err
	}
	return &file, nil
}
