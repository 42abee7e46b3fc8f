package repositories

import (
	"errors"
	"time"

	"speakmatch/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNoPartner means nobody else is waiting. This is a normal queue state,
// not a failure.
var ErrNoPartner = errors.New("no partner available")

type QueueRepository struct {
	DB *gorm.DB
}

// Enqueue adds the user to the waiting queue. Re-joining refreshes the exam
// but keeps the original enqueued_at so waiting time is not reset.
func (r *QueueRepository) Enqueue(userID, examID string) error {
	entry := models.QueueEntry{
		UserID:     userID,
		ExamID:     examID,
		EnqueuedAt: time.Now(),
	}
	return r.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"exam_id"}),
	}).Create(&entry).Error
}

// Dequeue removes the user's entry. The returned flag is the matchmaking
// claim primitive: true means this caller owned the row, false means the row
// was already consumed (or never existed).
func (r *QueueRepository) Dequeue(userID string) (bool, error) {
	result := r.DB.Unscoped().Where("user_id = ?", userID).Delete(&models.QueueEntry{})
	return result.RowsAffected > 0, result.Error
}

// PeekOldestOtherThan returns the longest-waiting entry for the same exam
// belonging to a different user, or ErrNoPartner.
func (r *QueueRepository) PeekOldestOtherThan(userID, examID string) (*models.QueueEntry, error) {
	var entry models.QueueEntry
	err := r.DB.
		Where("user_id <> ? AND exam_id = ?", userID, examID).
		Order("enqueued_at ASC").
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoPartner
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Get returns the user's own entry if still queued.
func (r *QueueRepository) Get(userID string) (*models.QueueEntry, error) {
	var entry models.QueueEntry
	err := r.DB.Where("user_id = ?", userID).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoPartner
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Count returns the number of waiting users.
func (r *QueueRepository) Count() (int64, error) {
	var n int64
	err := r.DB.Model(&models.QueueEntry{}).Count(&n).Error
	return n, err
}

// DeleteOlderThan hard-deletes entries enqueued before the cutoff and returns
// how many were removed. Used by the optional stale-entry sweep.
func (r *QueueRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result := r.DB.Unscoped().Where("enqueued_at < ?", cutoff).Delete(&models.QueueEntry{})
	return result.RowsAffected, result.Error
}
