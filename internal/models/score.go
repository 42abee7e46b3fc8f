package models

import (
	"gorm.io/gorm"
)

// Score is one rubric evaluation submitted by the current interviewer. A
// session accumulates one row per role rotation; rows are never updated.
type Score struct {
	gorm.Model
	SessionID     string  `gorm:"not null;index" json:"sessionId"`
	ScorerID      string  `gorm:"not null;index" json:"scorerId"`
	CandidateID   string  `gorm:"not null;index" json:"candidateId"`
	Fluency       int     `gorm:"not null" json:"fluency"`
	Vocabulary    int     `gorm:"not null" json:"vocabulary"`
	Grammar       int     `gorm:"not null" json:"grammar"`
	Pronunciation int     `gorm:"not null" json:"pronunciation"`
	Overall       float64 `gorm:"not null" json:"overall"`
}

// Rubric bounds for a single metric.
const (
	ScoreMin = 0
	ScoreMax = 10
)

// ComputeOverall derives the overall score as the mean of the four metrics.
func (s *Score) ComputeOverall() {
	s.Overall = float64(s.Fluency+s.Vocabulary+s.Grammar+s.Pronunciation) / 4.0
}

// ValidMetrics reports whether every metric is within the rubric bounds.
func (s *Score) ValidMetrics() bool {
	for _, v := range []int{s.Fluency, s.Vocabulary, s.Grammar, s.Pronunciation} {
		if v < ScoreMin || v > ScoreMax {
			return false
		}
	}
	return true
}
