package models

import (
	"time"

	"gorm.io/gorm"
)

// Session states
const (
	SessionCreated     = "created"
	SessionNegotiating = "negotiating"
	SessionConnected   = "connected"
	SessionEnded       = "ended"
)

// Role labels as seen by a client. The seed roles on the Session row never
// change; CurrentInterviewerID tracks the swappable runtime role.
const (
	RoleInterviewer = "interviewer"
	RoleCandidate   = "candidate"
)

// Session is a persisted 1:1 pairing created exactly once per successful
// match. InterviewerID/CandidateID are the seed labels from pairing time.
type Session struct {
	ID                   string         `gorm:"primaryKey" json:"id"`
	InterviewerID        string         `gorm:"not null;index" json:"interviewerId"`
	CandidateID          string         `gorm:"not null;index" json:"candidateId"`
	CurrentInterviewerID string         `gorm:"not null" json:"currentInterviewerId"`
	ExamID               string         `gorm:"not null" json:"examId"`
	State                string         `gorm:"not null;default:created" json:"state"`
	StartedAt            time.Time      `json:"startedAt"`
	EndedAt              *time.Time     `json:"endedAt,omitempty"`
	CreatedAt            time.Time      `json:"-"`
	UpdatedAt            time.Time      `json:"-"`
	DeletedAt            gorm.DeletedAt `gorm:"index" json:"-"`
}

// Ended reports whether the session is terminal.
func (s *Session) Ended() bool {
	return s.State == SessionEnded || s.EndedAt != nil
}

// RoleOf returns the runtime role for a participant.
func (s *Session) RoleOf(userID string) string {
	if userID == s.CurrentInterviewerID {
		return RoleInterviewer
	}
	return RoleCandidate
}

// PartnerOf returns the other participant's id, or "" for a non-participant.
func (s *Session) PartnerOf(userID string) string {
	switch userID {
	case s.InterviewerID:
		return s.CandidateID
	case s.CandidateID:
		return s.InterviewerID
	}
	return ""
}

// HasParticipant reports whether userID is one of the two participants.
func (s *Session) HasParticipant(userID string) bool {
	return userID == s.InterviewerID || userID == s.CandidateID
}

// stateRank orders session states so transitions only move forward.
func stateRank(state string) int {
	switch state {
	case SessionCreated:
		return 0
	case SessionNegotiating:
		return 1
	case SessionConnected:
		return 2
	case SessionEnded:
		return 3
	}
	return -1
}

// ValidTransition reports whether a session may move from one state to the
// next. Connected may be re-entered after a role swap; Ended is terminal.
func ValidTransition(from, to string) bool {
	fr, tr := stateRank(from), stateRank(to)
	if fr < 0 || tr < 0 || from == SessionEnded {
		return false
	}
	return tr >= fr
}
