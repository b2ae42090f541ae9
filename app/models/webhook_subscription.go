package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

// Webhook event types subscribers can listen for.
const (
	EventConversionCompleted = "conversion.completed"
	EventConversionFailed    = "conversion.failed"
)

// StringList stores a JSON string array in a single column.
type StringList []string

// Value implements the driver.Valuer interface
func (l StringList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface
func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = StringList{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("invalid scan source")
	}
	return json.Unmarshal(bytes, (*[]string)(l))
}

// WebhookSubscription is a caller's notification endpoint. The secret is
// stored encrypted and only decrypted immediately before signing an outgoing
// delivery. Health fields (consecutive failures, last success/failure,
// active) are mutated only by the delivery engine.
type WebhookSubscription struct {
	ID                     uint           `gorm:"primaryKey" json:"id"`
	UUID                   string         `gorm:"type:char(36) CHARACTER SET utf8 COLLATE utf8_bin;uniqueIndex;not null" json:"uuid"`
	UserID                 uint           `gorm:"index;not null" json:"user_id"`
	User                   User           `gorm:"foreignKey:UserID" json:"-"`
	TargetURL              string         `gorm:"type:varchar(500);not null" json:"target_url" validate:"required,url,max=500"`
	SecretEncrypted        string         `gorm:"type:text;not null" json:"-"`
	Events                 StringList     `gorm:"type:json" json:"events" validate:"required,min=1,dive,oneof=conversion.completed conversion.failed"`
	Active                 bool           `gorm:"default:true;index" json:"active"`
	LastSuccessAt          *time.Time     `gorm:"type:timestamp;default:null" json:"last_success_at,omitempty"`
	LastFailureAt          *time.Time     `gorm:"type:timestamp;default:null" json:"last_failure_at,omitempty"`
	ConsecutiveFailures    int            `gorm:"default:0" json:"consecutive_failures"`
	AutoDisableOnFailure   bool           `gorm:"default:true" json:"auto_disable_on_failure"`
	MaxConsecutiveFailures int            `gorm:"default:10" json:"max_consecutive_failures" validate:"min=1,max=100"`
	CreatedAt              time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt              gorm.DeletedAt `gorm:"index" json:"-"`
}

// SubscribedTo reports whether the subscription listens for the given event.
func (s *WebhookSubscription) SubscribedTo(event string) bool {
	for _, e := range s.Events {
		if e == event {
			return true
		}
	}
	return false
}

// ShouldAutoDisable reports whether the failure threshold has been reached
// while the subscription is still active.
func (s *WebhookSubscription) ShouldAutoDisable() bool {
	return s.Active && s.AutoDisableOnFailure && s.ConsecutiveFailures >= s.MaxConsecutiveFailures
}

func FindSubscriptionByUUID(db *gorm.DB, uuid string) (*WebhookSubscription, error) {
	var sub WebhookSubscription
	if err := db.Where("uuid = ?", uuid).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}
