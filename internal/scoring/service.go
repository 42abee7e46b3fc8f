package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"speakmatch/internal/metrics"
	"speakmatch/internal/models"
	"speakmatch/internal/repositories"
	"speakmatch/internal/signaling"
)

// Service records rubric evaluations and rotates the session roles. The
// session row, not the submitting client, is the role authority: a
// submission from anyone but the current interviewer is a conflict.
type Service struct {
	rdb      *redis.Client
	sessions *repositories.SessionRepository
	scores   *repositories.ScoreRepository
}

func NewService(rdb *redis.Client, sessions *repositories.SessionRepository, scores *repositories.ScoreRepository) *Service {
	return &Service{rdb: rdb, sessions: sessions, scores: scores}
}

// Submit validates the scorer against the session's current interviewer,
// rotates the roles, and appends the evaluation. Swap and insert commit
// together, swap first: a duplicate submission loses the conditional update
// and aborts before inserting, so no rotation ever leaves an orphan score
// row. The swap is then broadcast to both participants over the session's
// signaling channel.
func (s *Service) Submit(ctx context.Context, sessionID string, req models.ScoreReq) error {
	err := s.sessions.DB.Transaction(func(tx *gorm.DB) error {
		sessions := &repositories.SessionRepository{DB: tx}

		session, err := sessions.GetByID(sessionID)
		if err != nil {
			return err
		}
		if session.Ended() {
			return repositories.ErrBadTransition
		}
		if session.CurrentInterviewerID != req.ScorerID {
			return repositories.ErrRoleConflict
		}

		if _, err := sessions.SwapRoles(sessionID, req.ScorerID); err != nil {
			return err
		}

		score := &models.Score{
			SessionID:     sessionID,
			ScorerID:      req.ScorerID,
			CandidateID:   session.PartnerOf(req.ScorerID),
			Fluency:       req.Fluency,
			Vocabulary:    req.Vocabulary,
			Grammar:       req.Grammar,
			Pronunciation: req.Pronunciation,
		}
		return (&repositories.ScoreRepository{DB: tx}).Create(score)
	})
	if err != nil {
		return err
	}
	metrics.ScoreSubmitted()

	if err := s.broadcastSwap(ctx, sessionID, req.ScorerID); err != nil {
		// The swap is already durable; clients that miss the broadcast
		// resync from the session row.
		log.Printf("Failed to broadcast role swap for session %s: %v", sessionID, err)
	}
	return nil
}

// ListScores returns a session's evaluations for a participant's review.
func (s *Service) ListScores(sessionID string) ([]models.Score, error) {
	if _, err := s.sessions.GetByID(sessionID); err != nil {
		return nil, err
	}
	return s.scores.ListBySession(sessionID)
}

func (s *Service) broadcastSwap(ctx context.Context, sessionID, scorerID string) error {
	msg := models.SignalMessage{
		Type:      models.SignalRoleSwap,
		SessionID: sessionID,
		From:      scorerID,
		Timestamp: time.Now(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal role swap: %w", err)
	}
	return s.rdb.Publish(ctx, signaling.Channel(sessionID), payload).Err()
}
