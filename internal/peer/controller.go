package peer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/pion/webrtc/v3"

	"speakmatch/internal/models"
	"speakmatch/internal/signaling"
)

// Status is the coarse connectivity view exposed to callers. It feeds UI and
// latency hints only; session termination is driven by leave, never by this.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	StatusFailed       Status = "failed"
)

// ErrNotInterviewer rejects score submission from the current candidate.
var ErrNotInterviewer = errors.New("only the current interviewer may submit a score")

// Relay is the session-scoped signaling channel. Messages sent are echoed
// back to the sender along with the peer; delivery is at-least-once and
// unordered.
type Relay interface {
	Send(msg models.SignalMessage) error
	Incoming() <-chan models.SignalMessage
	Close() error
}

var _ Relay = (*signaling.Client)(nil)

// ScoreSubmitter records one rubric evaluation against the current
// candidate.
type ScoreSubmitter interface {
	Submit(ctx context.Context, sessionID string, req models.ScoreReq) error
}

// Config wires a controller to its collaborators.
type Config struct {
	SessionID   string
	UserID      string
	IsInitiator bool

	Relay  Relay
	Media  MediaSource
	Conn   Conn
	Scores ScoreSubmitter
}

// Controller is the per-client state machine that owns local media, drives
// offer/answer/ICE over the relay, and tracks the swappable role flag. The
// one hard ordering rule lives here: a remote description must be applied
// before any remote ICE candidate, so candidates that arrive early are
// buffered and flushed once, in arrival order, when the description lands.
type Controller struct {
	sessionID   string
	userID      string
	isInitiator bool

	relay  Relay
	media  MediaSource
	conn   Conn
	scores ScoreSubmitter

	mu            sync.Mutex
	interviewer   bool
	remoteDescSet bool
	pending       []webrtc.ICECandidateInit
	status        Status
	closed        bool
	done          chan struct{}
}

func NewController(cfg Config) *Controller {
	return &Controller{
		sessionID:   cfg.SessionID,
		userID:      cfg.UserID,
		isInitiator: cfg.IsInitiator,
		relay:       cfg.Relay,
		media:       cfg.Media,
		conn:        cfg.Conn,
		scores:      cfg.Scores,
		// The initiator is the session interviewer at connection time.
		interviewer: cfg.IsInitiator,
		status:      StatusConnecting,
		done:        make(chan struct{}),
	}
}

// Initialize acquires local media, attaches it to the connection, and starts
// the signaling loop. Only the initiator sends the offer; the other side
// answers when it arrives. A media permission failure aborts before any
// signaling happens.
func (c *Controller) Initialize(ctx context.Context) error {
	tracks, err := c.media.Tracks()
	if err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			return err
		}
		return fmt.Errorf("acquire media: %w", err)
	}
	for _, track := range tracks {
		if err := c.conn.AddTrack(track); err != nil {
			return fmt.Errorf("add local track: %w", err)
		}
	}

	c.conn.OnICECandidate(func(candidate webrtc.ICECandidateInit) {
		msg := models.SignalMessage{
			Type:      models.SignalICECandidate,
			SessionID: c.sessionID,
			From:      c.userID,
			Candidate: &candidate,
		}
		// Candidate delivery is safe to retry; a lost one degrades, never
		// corrupts, the negotiation.
		if err := c.relay.Send(msg); err != nil {
			log.Printf("Failed to send ICE candidate: %v", err)
		}
	})
	c.conn.OnConnectionStateChange(func(status Status) {
		c.setStatus(status)
	})

	go c.run(ctx)

	if c.isInitiator {
		offer, err := c.conn.CreateOffer()
		if err != nil {
			return err
		}
		msg := models.SignalMessage{
			Type:      models.SignalOffer,
			SessionID: c.sessionID,
			From:      c.userID,
			SDP:       offer,
		}
		if err := c.relay.Send(msg); err != nil {
			return fmt.Errorf("send offer: %w", err)
		}
	}
	return nil
}

// run consumes relayed messages until the relay drops or the controller
// leaves.
func (c *Controller) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case msg, ok := <-c.relay.Incoming():
			if !ok {
				c.setStatus(StatusDisconnected)
				return
			}
			c.handle(msg)
		}
	}
}

// handle dispatches one relayed message. Role swaps apply to everyone
// including the original sender, keeping both local views consistent even
// under duplication; all other self-echoes are skipped.
func (c *Controller) handle(msg models.SignalMessage) {
	switch msg.Type {
	case models.SignalRoleSwap:
		c.mu.Lock()
		c.interviewer = !c.interviewer
		c.mu.Unlock()
		return
	case models.SignalLeave:
		if msg.From != c.userID {
			c.setStatus(StatusDisconnected)
		}
		return
	}

	if msg.From == c.userID {
		return
	}

	switch msg.Type {
	case models.SignalOffer:
		if c.isInitiator || msg.SDP == nil {
			return
		}
		answer, err := c.conn.CreateAnswer(msg.SDP)
		if err != nil {
			log.Printf("Failed to answer offer: %v", err)
			return
		}
		c.remoteDescriptionSet()
		reply := models.SignalMessage{
			Type:      models.SignalAnswer,
			SessionID: c.sessionID,
			From:      c.userID,
			SDP:       answer,
		}
		if err := c.relay.Send(reply); err != nil {
			log.Printf("Failed to send answer: %v", err)
		}
	case models.SignalAnswer:
		if !c.isInitiator || msg.SDP == nil {
			return
		}
		if err := c.conn.SetAnswer(msg.SDP); err != nil {
			log.Printf("Failed to apply answer: %v", err)
			return
		}
		c.remoteDescriptionSet()
	case models.SignalICECandidate:
		if msg.Candidate == nil {
			return
		}
		c.addCandidate(*msg.Candidate)
	}
}

// addCandidate applies a remote candidate, or buffers it when the remote
// description has not landed yet. Trickle ICE tolerates candidates arriving
// in any order relative to offer/answer.
func (c *Controller) addCandidate(candidate webrtc.ICECandidateInit) {
	c.mu.Lock()
	if !c.remoteDescSet {
		c.pending = append(c.pending, candidate)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	if err := c.conn.AddICECandidate(candidate); err != nil {
		log.Printf("Failed to apply ICE candidate: %v", err)
	}
}

// remoteDescriptionSet flushes buffered candidates once, in arrival order.
func (c *Controller) remoteDescriptionSet() {
	c.mu.Lock()
	c.remoteDescSet = true
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, candidate := range pending {
		if err := c.conn.AddICECandidate(candidate); err != nil {
			log.Printf("Failed to apply buffered ICE candidate: %v", err)
		}
	}
}

// SwapRoles broadcasts a role-swap control message. The local flag flips when
// the echo arrives, the same way the peer's does, so both views stay in step.
// No renegotiation happens; the media path is untouched.
func (c *Controller) SwapRoles() error {
	msg := models.SignalMessage{
		Type:      models.SignalRoleSwap,
		SessionID: c.sessionID,
		From:      c.userID,
	}
	if err := c.relay.Send(msg); err != nil {
		return fmt.Errorf("send role swap: %w", err)
	}
	return nil
}

// SubmitScore records an evaluation of the current candidate. The scoring
// service rotates the roles and broadcasts the one role-swap for this
// rotation; the local flag flips when that echo arrives, the same as on the
// peer, leaving the prior candidate as the next interviewer.
func (c *Controller) SubmitScore(ctx context.Context, req models.ScoreReq) error {
	c.mu.Lock()
	interviewer := c.interviewer
	c.mu.Unlock()
	if !interviewer {
		return ErrNotInterviewer
	}

	req.ScorerID = c.userID
	return c.scores.Submit(ctx, c.sessionID, req)
}

// Role returns the locally-held role label.
func (c *Controller) Role() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.interviewer {
		return models.RoleInterviewer
	}
	return models.RoleCandidate
}

// Status returns the coarse connection status.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Controller) setStatus(status Status) {
	c.mu.Lock()
	c.status = status
	c.mu.Unlock()
}

// Leave stops local media, closes the connection, announces the departure,
// and unsubscribes. Safe to call multiple times.
func (c *Controller) Leave() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()

	c.media.Stop()
	if err := c.conn.Close(); err != nil {
		log.Printf("Failed to close peer connection: %v", err)
	}
	// Best effort: the relay may already be gone.
	if err := c.relay.Send(models.SignalMessage{
		Type:      models.SignalLeave,
		SessionID: c.sessionID,
		From:      c.userID,
	}); err != nil {
		log.Printf("Failed to announce leave: %v", err)
	}
	return c.relay.Close()
}
