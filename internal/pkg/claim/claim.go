// Package claim implements the optimistic concurrency primitive both
// background engines use to take exclusive ownership of a row. A claim is a
// single conditional UPDATE guarded by the row's lock_version token; whoever
// bumps the token first wins, every other worker's update matches zero rows
// and is treated as a lost race, not an error.
package claim

import (
	"gorm.io/gorm"
)

// VersionColumn is the concurrency token column shared by all claimable
// models.
const VersionColumn = "lock_version"

// Try performs the conditional update. The updates map is applied together
// with the token bump in one statement; the WHERE clause pins both the
// primary key and the version the caller last observed. Returns true iff
// exactly one row was updated.
func Try(db *gorm.DB, model interface{}, id uint, expectedVersion uint, updates map[string]interface{}) (bool, error) {
	values := make(map[string]interface{}, len(updates)+1)
	for k, v := range updates {
		values[k] = v
	}
	values[VersionColumn] = expectedVersion + 1

	result := db.Model(model).
		Where("id = ? AND "+VersionColumn+" = ?", id, expectedVersion).
		Updates(values)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
