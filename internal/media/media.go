// Package media performs the peer-to-peer handshake between two matched
// sessions. The session controller only sees the capability interfaces
// here; the pion implementation lives alongside them.
package media

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/pion/webrtc/v4"
)

var ErrHandshakeFailed = errors.New("media handshake failed")

// Handle is locally acquired media: the tracks to offer to the peer.
// A handle with no tracks negotiates receive-only media.
type Handle struct {
	Tracks []webrtc.TrackLocal
}

// Capture acquires local media. The real implementation talks to a
// camera/microphone; terminal clients use NullCapture.
type Capture interface {
	Acquire(ctx context.Context) (*Handle, error)
}

// NullCapture returns an empty handle. Used by headless clients that
// only receive remote media and chat over the control channel.
type NullCapture struct{}

func (NullCapture) Acquire(ctx context.Context) (*Handle, error) {
	return &Handle{}, nil
}

// Signaler moves opaque handshake payloads between the two peers. Send
// delivers to the remote side (through the server relay); Recv yields
// payloads addressed from it.
type Signaler interface {
	Send(payload json.RawMessage) error
	Recv() <-chan json.RawMessage
}

// Call is one active peer-to-peer connection.
type Call interface {
	// Hangup notifies the peer over the control channel and closes the
	// connection. Safe to call more than once.
	Hangup() error

	// Done is closed when the call ends for any reason: local hangup,
	// peer hangup, or connection failure.
	Done() <-chan struct{}
}

// Provider negotiates calls. Initiate runs the offering side, Answer
// the answering side; both block until the connection is established or
// the context ends.
type Provider interface {
	Initiate(ctx context.Context, local *Handle, sig Signaler) (Call, error)
	Answer(ctx context.Context, offer json.RawMessage, local *Handle, sig Signaler) (Call, error)
}

// Envelope is the handshake payload carried through the signal relay.
type Envelope struct {
	Kind      string                   `json:"kind"` // "offer", "answer" or "candidate"
	SDP       string                   `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
}

const (
	KindOffer     = "offer"
	KindAnswer    = "answer"
	KindCandidate = "candidate"
)

// DecodeEnvelope parses a relayed handshake payload.
func DecodeEnvelope(payload json.RawMessage) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// IsOffer reports whether a relayed payload opens a new handshake.
func IsOffer(payload json.RawMessage) bool {
	env, err := DecodeEnvelope(payload)
	return err == nil && env.Kind == KindOffer
}
