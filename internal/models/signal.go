package models

import (
	"time"

	"github.com/pion/webrtc/v3"
)

// Signal message types carried by the per-session relay. Transient, never
// persisted; ordering across types is not guaranteed by the transport.
const (
	SignalOffer        = "offer"
	SignalAnswer       = "answer"
	SignalICECandidate = "ice-candidate"
	SignalRoleSwap     = "role-swap"
	SignalLeave        = "leave"
)

// SignalMessage is the tagged union exchanged over a session's relay channel.
// Exactly one of SDP/Candidate is set depending on Type; role-swap and leave
// carry no payload.
type SignalMessage struct {
	Type      string                   `json:"type"`
	SessionID string                   `json:"sessionId"`
	From      string                   `json:"from"`
	SDP       *SDPPayload              `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
	Timestamp time.Time                `json:"timestamp,omitempty"`
}

// SDPPayload is the JSON structure for offer/answer descriptions.
type SDPPayload struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// Description converts the payload to a pion session description.
func (p *SDPPayload) Description() webrtc.SessionDescription {
	sdpType := webrtc.SDPTypeOffer
	if p.Type == SignalAnswer {
		sdpType = webrtc.SDPTypeAnswer
	}
	return webrtc.SessionDescription{Type: sdpType, SDP: p.SDP}
}

// NewSDPPayload converts a pion description into the wire payload.
func NewSDPPayload(desc webrtc.SessionDescription) *SDPPayload {
	return &SDPPayload{Type: desc.Type.String(), SDP: desc.SDP}
}
