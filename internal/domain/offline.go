package domain

import (
	"strconv"
	"strings"
	"time"

	"gorm.io/datatypes"
)

const OfflineProgressKeyPrefix = "offline-progress-"

// OfflineProgressRecord is the newest unsynced progress value for one course.
type OfflineProgressRecord struct {
	CourseID int64 `json:"courseId"`
	Progress int   `json:"progress"`
}

func OfflineProgressKey(courseID int64) string {
	return OfflineProgressKeyPrefix + strconv.FormatInt(courseID, 10)
}

// CourseIDFromOfflineKey is the inverse of OfflineProgressKey.
func CourseIDFromOfflineKey(key string) (int64, bool) {
	if !strings.HasPrefix(key, OfflineProgressKeyPrefix) {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(key, OfflineProgressKeyPrefix), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// OfflineEntry is one row of the server-side offline cache: a namespaced key/value pair
// holding an OfflineProgressRecord.
type OfflineEntry struct {
	Namespace string         `gorm:"column:namespace;primaryKey;size:320" json:"namespace"`
	RecordKey string         `gorm:"column:record_key;primaryKey;size:255" json:"key"`
	Value     datatypes.JSON `gorm:"column:value;not null" json:"value"`
	UpdatedAt time.Time      `gorm:"column:updated_at;not null;index" json:"updated_at"`
}

func (OfflineEntry) TableName() string { return "offline_entry" }
