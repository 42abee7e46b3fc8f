package models

import (
	"time"

	"gorm.io/gorm"
)

// QueueEntry is a user waiting for a speaking-practice partner. At most one
// entry exists per user; re-joining overwrites instead of duplicating.
type QueueEntry struct {
	gorm.Model
	UserID     string    `gorm:"uniqueIndex;not null" json:"userId"`
	ExamID     string    `gorm:"index;not null" json:"examId"`
	EnqueuedAt time.Time `gorm:"index;not null" json:"enqueuedAt"`
}
