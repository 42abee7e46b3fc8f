package peer

import (
	"errors"
	"fmt"

	"github.com/pion/webrtc/v3"
)

// ErrPermissionDenied means camera or microphone access was refused. The
// controller surfaces it and does not proceed to signaling; retry only on
// explicit user action.
var ErrPermissionDenied = errors.New("media permission denied")

// MediaSource owns local audio+video capture. Tracks either returns both
// local track handles or fails with ErrPermissionDenied.
type MediaSource interface {
	Tracks() ([]webrtc.TrackLocal, error)
	Stop()
}

// sampleSource feeds the peer connection from sample-writer tracks the
// capture pipeline pushes into.
type sampleSource struct {
	audio *webrtc.TrackLocalStaticSample
	video *webrtc.TrackLocalStaticSample
}

// NewSampleSource creates opus audio and VP8 video local tracks for the
// capture pipeline to write into.
func NewSampleSource(streamID string) (MediaSource, error) {
	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", streamID)
	if err != nil {
		return nil, fmt.Errorf("create audio track: %w", err)
	}
	video, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", streamID)
	if err != nil {
		return nil, fmt.Errorf("create video track: %w", err)
	}
	return &sampleSource{audio: audio, video: video}, nil
}

func (s *sampleSource) Tracks() ([]webrtc.TrackLocal, error) {
	return []webrtc.TrackLocal{s.audio, s.video}, nil
}

// Stop is a no-op for sample tracks; the capture pipeline stops writing when
// the controller leaves.
func (s *sampleSource) Stop() {}
