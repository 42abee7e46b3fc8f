package peer

import (
	"fmt"

	"github.com/pion/webrtc/v3"

	"speakmatch/internal/models"
	"speakmatch/internal/utils"
)

// Conn is the slice of the peer-connection library the controller needs:
// offer/answer primitives, trickle ICE, and connectivity observation.
type Conn interface {
	CreateOffer() (*models.SDPPayload, error)
	CreateAnswer(offer *models.SDPPayload) (*models.SDPPayload, error)
	SetAnswer(answer *models.SDPPayload) error
	AddICECandidate(candidate webrtc.ICECandidateInit) error
	OnICECandidate(fn func(webrtc.ICECandidateInit))
	OnConnectionStateChange(fn func(Status))
	AddTrack(track webrtc.TrackLocal) error
	Close() error
}

// pionConn adapts a pion PeerConnection to the Conn interface.
type pionConn struct {
	pc *webrtc.PeerConnection
}

// NewConn builds a peer connection from the given ICE configuration.
func NewConn(config webrtc.Configuration) (Conn, error) {
	pc, err := webrtc.NewPeerConnection(config)
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}
	return &pionConn{pc: pc}, nil
}

// NewDefaultConn builds a connection from the environment's STUN/TURN
// configuration.
func NewDefaultConn() (Conn, error) {
	return NewConn(utils.GetWebRTCConfig())
}

func (c *pionConn) CreateOffer() (*models.SDPPayload, error) {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return nil, fmt.Errorf("create offer: %w", err)
	}
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return nil, fmt.Errorf("set local description: %w", err)
	}
	return models.NewSDPPayload(*c.pc.LocalDescription()), nil
}

func (c *pionConn) CreateAnswer(offer *models.SDPPayload) (*models.SDPPayload, error) {
	if err := c.pc.SetRemoteDescription(offer.Description()); err != nil {
		return nil, fmt.Errorf("set remote description: %w", err)
	}
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return nil, fmt.Errorf("create answer: %w", err)
	}
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return nil, fmt.Errorf("set local description: %w", err)
	}
	return models.NewSDPPayload(*c.pc.LocalDescription()), nil
}

func (c *pionConn) SetAnswer(answer *models.SDPPayload) error {
	if err := c.pc.SetRemoteDescription(answer.Description()); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	return nil
}

func (c *pionConn) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return c.pc.AddICECandidate(candidate)
}

func (c *pionConn) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	c.pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			return
		}
		fn(candidate.ToJSON())
	})
}

func (c *pionConn) OnConnectionStateChange(fn func(Status)) {
	c.pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		fn(statusFromPion(state))
	})
}

func (c *pionConn) AddTrack(track webrtc.TrackLocal) error {
	_, err := c.pc.AddTrack(track)
	return err
}

func (c *pionConn) Close() error {
	return c.pc.Close()
}

// statusFromPion collapses the transport's connectivity states into the
// coarse status exposed to callers.
func statusFromPion(state webrtc.PeerConnectionState) Status {
	switch state {
	case webrtc.PeerConnectionStateConnected:
		return StatusConnected
	case webrtc.PeerConnectionStateDisconnected, webrtc.PeerConnectionStateClosed:
		return StatusDisconnected
	case webrtc.PeerConnectionStateFailed:
		return StatusFailed
	default:
		return StatusConnecting
	}
}
