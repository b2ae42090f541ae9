package repository

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens an isolated in-memory database with the tables the
// repository tests touch. The pool is pinned to one connection so every
// query sees the same memory database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	for _, ddl := range testSchema {
		require.NoError(t, db.Exec(ddl).Error)
	}
	return db
}

var testSchema = []string{
	`CREATE TABLE voice_conversions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		uuid TEXT NOT NULL UNIQUE,
		user_id INTEGER NOT NULL,
		audio_file_id INTEGER NOT NULL,
		voice_model_id INTEGER NOT NULL,
		transposition INTEGER NOT NULL DEFAULT 0,
		use_preview BOOLEAN NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'pending_preprocessing',
		output_bucket TEXT,
		output_key TEXT,
		error_message TEXT,
		retry_count INTEGER NOT NULL DEFAULT 0,
		last_retry_at DATETIME,
		queued_at DATETIME,
		processing_started_at DATETIME,
		completed_at DATETIME,
		lock_version INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE webhook_subscriptions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		uuid TEXT NOT NULL UNIQUE,
		user_id INTEGER NOT NULL,
		target_url TEXT NOT NULL,
		secret_encrypted TEXT NOT NULL,
		events TEXT,
		active BOOLEAN NOT NULL DEFAULT 1,
		last_success_at DATETIME,
		last_failure_at DATETIME,
		consecutive_failures INTEGER NOT NULL DEFAULT 0,
		auto_disable_on_failure BOOLEAN NOT NULL DEFAULT 1,
		max_consecutive_failures INTEGER NOT NULL DEFAULT 10,
		created_at DATETIME,
		updated_at DATETIME,
		deleted_at DATETIME
	)`,
	`CREATE TABLE webhook_delivery_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		uuid TEXT NOT NULL UNIQUE,
		subscription_id INTEGER NOT NULL,
		event_type TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		entity_id TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		payload TEXT NOT NULL,
		attempt_number INTEGER NOT NULL DEFAULT 1,
		attempted_at DATETIME,
		http_status_code INTEGER,
		response_body TEXT,
		error_message TEXT,
		duration_ms INTEGER,
		next_retry_at DATETIME,
		attempt_log TEXT,
		lock_version INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	)`,
}
