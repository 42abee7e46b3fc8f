package matchmaking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"speakmatch/internal/metrics"
	"speakmatch/internal/models"
	"speakmatch/internal/repositories"
	"speakmatch/internal/utils"
)

var (
	// ErrAlreadyInSession means the user still has an unended session and
	// cannot queue for another.
	ErrAlreadyInSession = errors.New("user already in an active session")

	// errClaimLost aborts the pairing transaction when a concurrent pairing
	// consumed one of the two queue rows first. Never surfaces to callers.
	errClaimLost = errors.New("queue row already claimed")
)

// Matchmaker turns two queue entries into one session with at-most-once
// semantics. The deletion of a queue row inside the pairing transaction is
// the ownership claim; a zero-row delete aborts the transaction.
type Matchmaker struct {
	db        *gorm.DB
	rdb       *redis.Client
	queues    *repositories.QueueRepository
	sessions  *repositories.SessionRepository
	jwtSecret []byte
}

func NewMatchmaker(db *gorm.DB, rdb *redis.Client, jwtSecret []byte) *Matchmaker {
	return &Matchmaker{
		db:        db,
		rdb:       rdb,
		queues:    &repositories.QueueRepository{DB: db},
		sessions:  &repositories.SessionRepository{DB: db},
		jwtSecret: jwtSecret,
	}
}

// matchChannel is the per-user pub/sub topic a waiting client subscribes to
// so it discovers a session created for it by the other side.
func matchChannel(userID string) string {
	return fmt.Sprintf("match:%s", userID)
}

// RequestMatch enqueues the user and immediately attempts pairing. A nil
// session with nil error means nobody was available and the caller stays
// queued; it will learn about its match through SubscribeMatches.
func (m *Matchmaker) RequestMatch(ctx context.Context, userID, examID string) (*models.Session, error) {
	if _, err := m.sessions.ActiveForUser(userID); err == nil {
		return nil, ErrAlreadyInSession
	} else if !errors.Is(err, repositories.ErrSessionNotFound) {
		return nil, err
	}

	if err := m.queues.Enqueue(userID, examID); err != nil {
		return nil, err
	}
	return m.TryPair(ctx, userID, examID)
}

// TryPair runs one pairing attempt for a queued user. Both participants may
// run this concurrently against the same two rows; the claims guarantee only
// one session row results.
func (m *Matchmaker) TryPair(ctx context.Context, userID, examID string) (*models.Session, error) {
	partner, err := m.queues.PeekOldestOtherThan(userID, examID)
	if errors.Is(err, repositories.ErrNoPartner) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	session, err := m.pairTransaction(userID, partner.UserID, examID)
	if errors.Is(err, errClaimLost) {
		// First writer won. If our own row was the one consumed, the other
		// side created a session for us and we will hear about it on our
		// match channel; if the partner's row was, we simply stay queued.
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	metrics.MatchCreated(session.ExamID)
	m.notifyMatched(ctx, session)
	return session, nil
}

// pairTransaction consumes both queue rows and creates the session row
// atomically. Deleting the caller's own row first means a successful claimer
// always observes its own entry gone before the session becomes visible.
func (m *Matchmaker) pairTransaction(userID, partnerID, examID string) (*models.Session, error) {
	var session *models.Session

	err := m.db.Transaction(func(tx *gorm.DB) error {
		queues := &repositories.QueueRepository{DB: tx}

		own, err := queues.Get(userID)
		if errors.Is(err, repositories.ErrNoPartner) {
			return errClaimLost
		}
		if err != nil {
			return err
		}
		partner, err := queues.Get(partnerID)
		if errors.Is(err, repositories.ErrNoPartner) {
			return errClaimLost
		}
		if err != nil {
			return err
		}

		claimed, err := queues.Dequeue(userID)
		if err != nil {
			return err
		}
		if !claimed {
			return errClaimLost
		}
		claimed, err = queues.Dequeue(partnerID)
		if err != nil {
			return err
		}
		if !claimed {
			return errClaimLost
		}

		// FIFO fairness: the longer-waiting participant opens as interviewer.
		interviewer, candidate := partner.UserID, own.UserID
		if own.EnqueuedAt.Before(partner.EnqueuedAt) {
			interviewer, candidate = own.UserID, partner.UserID
		}

		session = &models.Session{
			ID:            uuid.New().String(),
			InterviewerID: interviewer,
			CandidateID:   candidate,
			ExamID:        examID,
		}
		return (&repositories.SessionRepository{DB: tx}).Create(session)
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// Cancel removes the caller's own queue entry. Cancelling when not queued is
// not an error.
func (m *Matchmaker) Cancel(ctx context.Context, userID string) (bool, error) {
	return m.queues.Dequeue(userID)
}

// SubscribeMatches returns the pub/sub subscription a waiting client uses to
// discover its session without polling.
func (m *Matchmaker) SubscribeMatches(ctx context.Context, userID string) *redis.PubSub {
	return m.rdb.Subscribe(ctx, matchChannel(userID))
}

// notifyMatched publishes a MatchNotification to both participants' channels.
func (m *Matchmaker) notifyMatched(ctx context.Context, session *models.Session) {
	for _, userID := range []string{session.InterviewerID, session.CandidateID} {
		token, err := utils.GenerateSessionToken(session.ID, userID, m.jwtSecret)
		if err != nil {
			log.Printf("Failed to mint session token for %s: %v", userID, err)
			continue
		}
		notification := models.MatchNotification{
			Type:      "match_found",
			SessionID: session.ID,
			Role:      session.RoleOf(userID),
			ExamID:    session.ExamID,
			Token:     token,
		}
		payload, _ := json.Marshal(notification)
		if err := m.rdb.Publish(ctx, matchChannel(userID), payload).Err(); err != nil {
			log.Printf("Failed to publish match notification for %s: %v", userID, err)
		}
	}
	log.Printf("Matched %s (interviewer) with %s (candidate) in session %s",
		session.InterviewerID, session.CandidateID, session.ID)
}

// CheckFor reports the user's active session, minting a fresh relay token.
// Used by clients whose notification socket dropped while waiting.
func (m *Matchmaker) CheckFor(userID string) (*models.CheckResp, error) {
	session, err := m.sessions.ActiveForUser(userID)
	if errors.Is(err, repositories.ErrSessionNotFound) {
		return &models.CheckResp{Matched: false}, nil
	}
	if err != nil {
		return nil, err
	}

	token, err := utils.GenerateSessionToken(session.ID, userID, m.jwtSecret)
	if err != nil {
		return nil, err
	}
	return &models.CheckResp{
		Matched:   true,
		SessionID: session.ID,
		Role:      session.RoleOf(userID),
		ExamID:    session.ExamID,
		Token:     token,
	}, nil
}
