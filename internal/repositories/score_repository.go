package repositories

import (
	"errors"

	"speakmatch/internal/models"

	"gorm.io/gorm"
)

var ErrInvalidScore = errors.New("score metrics out of range")

type ScoreRepository struct {
	DB *gorm.DB
}

// Create inserts one evaluation row. Rows are append-only: a session gathers
// one per role rotation and none is ever updated.
func (r *ScoreRepository) Create(score *models.Score) error {
	if !score.ValidMetrics() {
		return ErrInvalidScore
	}
	score.ComputeOverall()
	return r.DB.Create(score).Error
}

// ListBySession returns all evaluations for a session in submission order.
func (r *ScoreRepository) ListBySession(sessionID string) ([]models.Score, error) {
	scores := []models.Score{}
	err := r.DB.Where("session_id = ?", sessionID).Order("id ASC").Find(&scores).Error
	return scores, err
}
