package repositories

import (
	"errors"
	"time"

	"speakmatch/internal/models"

	"gorm.io/gorm"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	// ErrRoleConflict means a conditional role swap or score lost to a
	// concurrent rotation: the expected interviewer no longer holds the role.
	ErrRoleConflict = errors.New("current interviewer changed")
	// ErrBadTransition means a state update would move the session backwards
	// or out of a terminal state.
	ErrBadTransition = errors.New("invalid session state transition")
)

type SessionRepository struct {
	DB *gorm.DB
}

// Create persists a freshly paired session.
func (r *SessionRepository) Create(session *models.Session) error {
	if session.State == "" {
		session.State = models.SessionCreated
	}
	if session.CurrentInterviewerID == "" {
		session.CurrentInterviewerID = session.InterviewerID
	}
	if session.StartedAt.IsZero() {
		session.StartedAt = time.Now()
	}
	return r.DB.Create(session).Error
}

func (r *SessionRepository) GetByID(sessionID string) (*models.Session, error) {
	var session models.Session
	err := r.DB.First(&session, "id = ?", sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// ActiveForUser returns the user's unended session, if any.
func (r *SessionRepository) ActiveForUser(userID string) (*models.Session, error) {
	var session models.Session
	err := r.DB.
		Where("(interviewer_id = ? OR candidate_id = ?) AND ended_at IS NULL", userID, userID).
		Order("started_at DESC").
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// SwapRoles flips the authoritative interviewer in a single conditional
// update. Zero rows affected means expectedInterviewer already lost the role,
// so a duplicate or stale swap is a no-op conflict rather than a third state.
func (r *SessionRepository) SwapRoles(sessionID, expectedInterviewer string) (*models.Session, error) {
	session, err := r.GetByID(sessionID)
	if err != nil {
		return nil, err
	}
	if session.Ended() {
		return nil, ErrBadTransition
	}
	next := session.PartnerOf(expectedInterviewer)
	if next == "" {
		return nil, ErrRoleConflict
	}

	result := r.DB.Model(&models.Session{}).
		Where("id = ? AND current_interviewer_id = ? AND ended_at IS NULL", sessionID, expectedInterviewer).
		Update("current_interviewer_id", next)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrRoleConflict
	}
	session.CurrentInterviewerID = next
	return session, nil
}

// MarkState advances the session state machine. Backward moves are rejected;
// re-asserting the current state is a harmless no-op (clients may report
// "connected" more than once).
func (r *SessionRepository) MarkState(sessionID, state string) error {
	session, err := r.GetByID(sessionID)
	if err != nil {
		return err
	}
	if !models.ValidTransition(session.State, state) {
		return ErrBadTransition
	}
	if session.State == state {
		return nil
	}
	return r.DB.Model(&models.Session{}).
		Where("id = ?", sessionID).
		Update("state", state).Error
}

// End closes the session. Safe to call from either side, and again after the
// session already ended.
func (r *SessionRepository) End(sessionID string) error {
	now := time.Now()
	return r.DB.Model(&models.Session{}).
		Where("id = ? AND ended_at IS NULL", sessionID).
		Updates(map[string]interface{}{"state": models.SessionEnded, "ended_at": now}).Error
}
