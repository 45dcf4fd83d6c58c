package session

import (
	"fmt"

	"github.com/pairline/pairline/internal/protocol"
)

// Event is anything the controller reports to its consumer. The
// consumer must keep draining Events() while the controller runs.
type Event interface{ event() }

// StateChanged is emitted on every transition.
type StateChanged struct {
	From State
	To   State
}

// SessionAssigned carries the server-issued session id.
type SessionAssigned struct {
	ID string
}

// Registered acknowledges that the server stored the profile.
type Registered struct {
	Ack protocol.RegisteredPayload
}

// Waiting means no peer was available; the server will match this
// session when one arrives.
type Waiting struct{}

// Matched announces a pairing. When Initiator is true this side
// performs the media offer.
type Matched struct {
	Peer      protocol.PeerInfo
	Initiator bool
}

// ChatMessage is a relayed text message from the matched peer.
type ChatMessage struct {
	From string
	Text string
}

// PeerDisconnected means the matched peer's session ended.
type PeerDisconnected struct{}

// CallConnected means the peer-to-peer connection is established.
type CallConnected struct{}

// CallEnded reports why an active call stopped.
type CallEnded struct {
	Reason string
}

// Reconnecting is emitted before each reconnection attempt.
type Reconnecting struct {
	Attempt int
	Max     int
}

// Errored reports a recoverable failure.
type Errored struct {
	Err *SessionError
}

func (StateChanged) event()     {}
func (SessionAssigned) event()  {}
func (Registered) event()       {}
func (Waiting) event()          {}
func (Matched) event()          {}
func (ChatMessage) event()      {}
func (PeerDisconnected) event() {}
func (CallConnected) event()    {}
func (CallEnded) event()        {}
func (Reconnecting) event()     {}
func (Errored) event()          {}

// SessionError wraps a failure with the operation that caused it.
type SessionError struct {
	Op  string
	Err error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }
