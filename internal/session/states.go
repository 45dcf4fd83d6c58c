// Package session drives the client side of the matchmaking protocol:
// one controller owns the websocket transport, the registration and
// matching lifecycle, and the media handshake for an active call.
package session

// State is the controller's position in the session lifecycle.
type State int

const (
	// StateIdle is the connected-but-unregistered starting state. A
	// reconnected transport also lands here.
	StateIdle State = iota
	StateRegistering
	StateRegistered
	StateSearching
	StateWaiting
	StateMatched
	StateCallConnecting
	StateCallConnected
	StateCallEnded

	// StateError is recoverable: register or search again to leave it.
	StateError

	// StateDisconnected is terminal. The controller enters it when the
	// reconnection budget is exhausted or Close is called.
	StateDisconnected
)

var stateNames = map[State]string{
	StateIdle:           "idle",
	StateRegistering:    "registering",
	StateRegistered:     "registered",
	StateSearching:      "searching",
	StateWaiting:        "waiting",
	StateMatched:        "matched",
	StateCallConnecting: "callConnecting",
	StateCallConnected:  "callConnected",
	StateCallEnded:      "callEnded",
	StateError:          "error",
	StateDisconnected:   "disconnected",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}
