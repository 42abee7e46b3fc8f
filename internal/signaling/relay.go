package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"speakmatch/internal/metrics"
	"speakmatch/internal/models"
	"speakmatch/internal/repositories"
	"speakmatch/internal/utils"
)

// ErrUnknownSignal rejects messages outside the relay's tagged union.
var ErrUnknownSignal = errors.New("unknown signal type")

// Relay bridges each session's WebSocket clients onto a shared redis channel.
// Every published message fans out to all current subscribers including the
// sender; no ordering is guaranteed across messages. The relay carries only
// connection-bootstrap and control traffic, never media.
type Relay struct {
	rdb       *redis.Client
	sessions  *repositories.SessionRepository
	jwtSecret []byte
	upgrader  websocket.Upgrader
}

func NewRelay(rdb *redis.Client, sessions *repositories.SessionRepository, jwtSecret []byte) *Relay {
	return &Relay{
		rdb:       rdb,
		sessions:  sessions,
		jwtSecret: jwtSecret,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Channel is the per-session pub/sub topic. The scoring service publishes
// role-swap broadcasts on it too.
func Channel(sessionID string) string {
	return fmt.Sprintf("signal:%s", sessionID)
}

// validateSignal checks the tagged union invariants: the type is known and
// the payload matches it.
func validateSignal(msg *models.SignalMessage) error {
	switch msg.Type {
	case models.SignalOffer, models.SignalAnswer:
		if msg.SDP == nil || msg.SDP.SDP == "" {
			return fmt.Errorf("%s without sdp payload: %w", msg.Type, ErrUnknownSignal)
		}
	case models.SignalICECandidate:
		if msg.Candidate == nil {
			return fmt.Errorf("ice-candidate without candidate payload: %w", ErrUnknownSignal)
		}
	case models.SignalRoleSwap, models.SignalLeave:
		// No payload.
	default:
		return ErrUnknownSignal
	}
	return nil
}

// SessionWS upgrades a participant's socket and bridges it to the session's
// signal channel. The session token from matchmaking is required; ended
// sessions no longer accept signaling.
func (rl *Relay) SessionWS(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	if sessionID == "" {
		http.Error(w, "sessionId is required", http.StatusBadRequest)
		return
	}

	token := r.URL.Query().Get("token")
	userID, err := utils.VerifySessionToken(token, sessionID, rl.jwtSecret)
	if err != nil {
		http.Error(w, "invalid session token", http.StatusUnauthorized)
		return
	}

	session, err := rl.sessions.GetByID(sessionID)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	if !session.HasParticipant(userID) {
		http.Error(w, "not a participant", http.StatusForbidden)
		return
	}
	if session.Ended() {
		http.Error(w, "session ended", http.StatusGone)
		return
	}

	conn, err := rl.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	metrics.SignalConnOpened()
	defer metrics.SignalConnClosed()

	// The request context carries the router's timeout, which must not cut
	// off a long-lived socket. The subscription lives until the socket does.
	ctx := context.Background()
	sub := rl.rdb.Subscribe(ctx, Channel(sessionID))
	log.Printf("Relay subscriber joined session %s as %s", sessionID, userID)

	// Writer: fan every published message out to this socket.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range sub.Channel() {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				return
			}
		}
	}()

	// Reader: validate, apply side effects, publish.
	for {
		var msg models.SignalMessage
		if err := conn.ReadJSON(&msg); err != nil {
			log.Printf("Relay read ended for %s in session %s: %v", userID, sessionID, err)
			break
		}

		msg.SessionID = sessionID
		msg.From = userID
		msg.Timestamp = time.Now()

		if err := validateSignal(&msg); err != nil {
			log.Printf("Dropping invalid signal from %s: %v", userID, err)
			continue
		}
		if err := rl.dispatch(ctx, &msg); err != nil {
			log.Printf("Failed to relay %s from %s: %v", msg.Type, userID, err)
			continue
		}
		if msg.Type == models.SignalLeave {
			break
		}
	}

	// Closing the subscription closes its channel, which releases the
	// writer goroutine even when no further message arrives.
	sub.Close()
	<-done
}

// dispatch applies a message's session side effects and publishes it. Ended
// sessions accept nothing further for their id.
func (rl *Relay) dispatch(ctx context.Context, msg *models.SignalMessage) error {
	session, err := rl.sessions.GetByID(msg.SessionID)
	if err != nil {
		return err
	}
	if session.Ended() {
		return repositories.ErrBadTransition
	}

	switch msg.Type {
	case models.SignalOffer, models.SignalAnswer:
		if err := rl.sessions.MarkState(msg.SessionID, models.SessionNegotiating); err != nil &&
			!errors.Is(err, repositories.ErrBadTransition) {
			return err
		}
	case models.SignalLeave:
		if err := rl.sessions.End(msg.SessionID); err != nil {
			return err
		}
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return rl.rdb.Publish(ctx, Channel(msg.SessionID), payload).Err()
}

// ConnectedHandler records a client-observed media connection on the session
// row. Observation only; termination is driven by leave, not by transport
// state.
func (rl *Relay) ConnectedHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	token := r.URL.Query().Get("token")
	if _, err := utils.VerifySessionToken(token, sessionID, rl.jwtSecret); err != nil {
		utils.JSONError(w, http.StatusUnauthorized, "invalid session token")
		return
	}

	err := rl.sessions.MarkState(sessionID, models.SessionConnected)
	if errors.Is(err, repositories.ErrSessionNotFound) {
		utils.JSONError(w, http.StatusNotFound, "session not found")
		return
	}
	if errors.Is(err, repositories.ErrBadTransition) {
		utils.JSONError(w, http.StatusConflict, "session not in a connectable state")
		return
	}
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, "failed to update session")
		return
	}
	utils.JSON(w, http.StatusOK, models.Resp{OK: true, Info: "connected"})
}

// ConfigHandler serves the ICE server configuration clients feed into their
// peer connections.
func (rl *Relay) ConfigHandler(w http.ResponseWriter, _ *http.Request) {
	utils.JSON(w, http.StatusOK, utils.GetWebRTCConfig())
}

// SessionHandler returns the session row for a participant.
func (rl *Relay) SessionHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	token := r.URL.Query().Get("token")
	if _, err := utils.VerifySessionToken(token, sessionID, rl.jwtSecret); err != nil {
		utils.JSONError(w, http.StatusUnauthorized, "invalid session token")
		return
	}

	session, err := rl.sessions.GetByID(sessionID)
	if err != nil {
		utils.JSONError(w, http.StatusNotFound, "session not found")
		return
	}
	utils.JSON(w, http.StatusOK, session)
}
