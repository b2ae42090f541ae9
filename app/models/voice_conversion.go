package models

import (
	"time"
)

// Conversion status values. Transitions are strictly forward:
// pending_preprocessing -> queued -> processing -> completed|failed.
const (
	ConversionStatusPendingPreprocessing = "pending_preprocessing"
	ConversionStatusQueued               = "queued"
	ConversionStatusProcessing           = "processing"
	ConversionStatusCompleted            = "completed"
	ConversionStatusFailed               = "failed"
)

// Transposition values in semitones supported by the inference service.
const (
	TranspositionOctaveDown = -12
	TranspositionFifthDown  = -7
	TranspositionThirdDown  = -4
	TranspositionNone       = 0
	TranspositionThirdUp    = 4
	TranspositionFifthUp    = 7
	TranspositionOctaveUp   = 12
)

// conversionTransitions is the allowed successor set per status. Terminal
// statuses have no successors.
var conversionTransitions = map[string][]string{
	ConversionStatusPendingPreprocessing: {ConversionStatusQueued},
	ConversionStatusQueued:               {ConversionStatusProcessing, ConversionStatusFailed},
	ConversionStatusProcessing:           {ConversionStatusCompleted, ConversionStatusFailed},
	ConversionStatusCompleted:            {},
	ConversionStatusFailed:               {},
}

// VoiceConversion is one inference job. Rows are created by the API layer and
// afterwards mutated only by the dispatcher and the result handler, always
// through the lock_version concurrency token. Rows are never deleted.
type VoiceConversion struct {
	ID                  uint       `gorm:"primaryKey" json:"id"`
	UUID                string     `gorm:"type:char(36) CHARACTER SET utf8 COLLATE utf8_bin;uniqueIndex;not null" json:"uuid"`
	UserID              uint       `gorm:"index;not null" json:"user_id"`
	User                User       `gorm:"foreignKey:UserID" json:"-"`
	AudioFileID         uint       `gorm:"index;not null" json:"audio_file_id"`
	AudioFile           AudioFile  `gorm:"foreignKey:AudioFileID" json:"audio_file,omitempty"`
	VoiceModelID        uint       `gorm:"index;not null" json:"voice_model_id"`
	VoiceModel          VoiceModel `gorm:"foreignKey:VoiceModelID" json:"voice_model,omitempty"`
	Transposition       int        `gorm:"type:tinyint;default:0" json:"transposition" validate:"oneof=-12 -7 -4 0 4 7 12"`
	UsePreview          bool       `gorm:"default:false" json:"use_preview"`
	Status              string     `gorm:"type:varchar(30);not null;default:'pending_preprocessing';index;index:idx_conversions_status_retry,priority:1" json:"status"`
	OutputBucket        string     `gorm:"type:varchar(100)" json:"-"`
	OutputKey           string     `gorm:"type:varchar(255)" json:"-"`
	ErrorMessage        string     `gorm:"type:text" json:"error_message,omitempty"`
	RetryCount          int        `gorm:"default:0;index:idx_conversions_status_retry,priority:2" json:"retry_count"`
	LastRetryAt         *time.Time `gorm:"type:timestamp;default:null" json:"last_retry_at,omitempty"`
	QueuedAt            *time.Time `gorm:"type:timestamp;default:null" json:"queued_at,omitempty"`
	ProcessingStartedAt *time.Time `gorm:"type:timestamp;default:null" json:"processing_started_at,omitempty"`
	CompletedAt         *time.Time `gorm:"type:timestamp;default:null" json:"completed_at,omitempty"`
	LockVersion         uint       `gorm:"not null;default:0" json:"-"`
	CreatedAt           time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt           time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// CanTransitionTo reports whether moving from the current status to next is a
// legal state machine step.
func (c *VoiceConversion) CanTransitionTo(next string) bool {
	for _, allowed := range conversionTransitions[c.Status] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the conversion reached a final status.
func (c *VoiceConversion) IsTerminal() bool {
	return c.Status == ConversionStatusCompleted || c.Status == ConversionStatusFailed
}

// IsValidTransposition reports whether the given semitone shift is one of the
// supported steps.
func IsValidTransposition(semitones int) bool {
	switch semitones {
	case TranspositionOctaveDown, TranspositionFifthDown, TranspositionThirdDown,
		TranspositionNone, TranspositionThirdUp, TranspositionFifthUp, TranspositionOctaveUp:
		return true
	}
	return false
}
