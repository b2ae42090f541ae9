package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Delivery log status values. Delivered and abandoned are terminal; only
// terminal rows carry a null next_retry_at.
const (
	DeliveryStatusPending    = "pending"
	DeliveryStatusProcessing = "processing"
	DeliveryStatusDelivered  = "delivered"
	DeliveryStatusFailed     = "failed"
	DeliveryStatusAbandoned  = "abandoned"
)

// Entity types a delivery log may point at. Kept as a tagged string pair so
// the delivery engine stays ignorant of concrete business entities.
const (
	EntityTypeConversion = "conversion"
)

// JSON stores raw JSON in a single column.
type JSON json.RawMessage

// Value implements the driver.Valuer interface
func (j JSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return string(j), nil
}

// Scan implements the sql.Scanner interface
func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = JSON("[]")
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
	*j = JSON(bytes)
	return nil
}

// MarshalJSON implements the json.Marshaler interface
func (j JSON) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON implements the json.Unmarshaler interface
func (j *JSON) UnmarshalJSON(data []byte) error {
	*j = JSON(data)
	return nil
}

// DeliveryAttempt is one historical attempt, appended to AttemptLog so the
// full retry history of a logical delivery stays queryable on a single row.
type DeliveryAttempt struct {
	Attempt        int       `json:"attempt"`
	AttemptedAt    time.Time `json:"attempted_at"`
	HTTPStatusCode int       `json:"http_status_code,omitempty"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	DurationMs     int64     `json:"duration_ms"`
}

// WebhookDeliveryLog is one logical webhook delivery. Retries update this row
// in place: attempt_number advances, response metadata reflects the latest
// attempt, and prior attempts are preserved in attempt_log. The payload is
// written once and never mutated afterwards.
type WebhookDeliveryLog struct {
	ID             uint                `gorm:"primaryKey" json:"id"`
	UUID           string              `gorm:"type:char(36) CHARACTER SET utf8 COLLATE utf8_bin;uniqueIndex;not null" json:"uuid"`
	SubscriptionID uint                `gorm:"index;not null" json:"subscription_id"`
	Subscription   WebhookSubscription `gorm:"foreignKey:SubscriptionID;constraint:OnDelete:CASCADE" json:"-"`
	EventType      string              `gorm:"type:varchar(100);not null;index" json:"event_type"`
	EntityType     string              `gorm:"type:varchar(50);not null" json:"entity_type"`
	EntityID       string              `gorm:"type:char(36);index" json:"entity_id"`
	Status         string              `gorm:"type:varchar(20);not null;default:'pending';index;index:idx_delivery_logs_status_retry,priority:1" json:"status"`
	Payload        string              `gorm:"type:longtext;not null" json:"payload"`
	AttemptNumber  int                 `gorm:"default:1" json:"attempt_number"`
	AttemptedAt    *time.Time          `gorm:"type:timestamp;default:null" json:"attempted_at,omitempty"`
	HTTPStatusCode *int                `gorm:"type:int" json:"http_status_code,omitempty"`
	ResponseBody   string              `gorm:"type:text" json:"response_body,omitempty"`
	ErrorMessage   string              `gorm:"type:text" json:"error_message,omitempty"`
	DurationMs     *int64              `gorm:"type:bigint" json:"duration_ms,omitempty"`
	NextRetryAt    *time.Time          `gorm:"type:timestamp;default:null;index:idx_delivery_logs_status_retry,priority:2" json:"next_retry_at,omitempty"`
	AttemptLog     JSON                `gorm:"type:json" json:"attempt_log,omitempty"`
	LockVersion    uint                `gorm:"not null;default:0" json:"-"`
	CreatedAt      time.Time           `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt      time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsTerminal reports whether the delivery reached a final status.
func (d *WebhookDeliveryLog) IsTerminal() bool {
	return d.Status == DeliveryStatusDelivered || d.Status == DeliveryStatusAbandoned
}

// AppendAttempt returns the attempt_log JSON with one more attempt recorded.
func (d *WebhookDeliveryLog) AppendAttempt(attempt DeliveryAttempt) (JSON, error) {
	var history []DeliveryAttempt
	if len(d.AttemptLog) > 0 {
		if err := json.Unmarshal(d.AttemptLog, &history); err != nil {
			return nil, err
		}
	}
	history = append(history, attempt)
	b, err := json.Marshal(history)
	if err != nil {
		return nil, err
	}
	return JSON(b), nil
}
