package protocol

import "encoding/json"

// Message is the envelope for all websocket traffic between client and
// server. Payload stays raw so the relay can forward it verbatim.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Message type constants.
const (
	// Server to client, sent once right after the connection is upgraded.
	TypeSession = "session"

	// Client to server.
	TypeRegister  = "register"
	TypeFindMatch = "findMatch"

	// Server to client.
	TypeRegistered       = "registered"
	TypeWaitingForMatch  = "waitingForMatch"
	TypeMatchError       = "matchError"
	TypeMatch            = "match"
	TypePeerDisconnected = "peerDisconnected"

	// Relayed in both directions.
	TypeMessage = "message"
	TypeSignal  = "signal"
)

// Profile is the user-supplied identity attached to a session.
// Age stays a string on the wire.
type Profile struct {
	FullName string `json:"fullName"`
	Age      string `json:"age"`
	Gender   string `json:"gender"`
}

// SessionPayload carries the server-assigned session id.
type SessionPayload struct {
	ID string `json:"id"`
}

// RegisteredPayload acknowledges a register command with the stored profile.
type RegisteredPayload struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Age      string `json:"age"`
	Gender   string `json:"gender"`
}

// PeerInfo identifies the matched counterpart.
type PeerInfo struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Age      string `json:"age"`
	Gender   string `json:"gender"`
}

// MatchPayload announces a successful pairing. Initiator is true on the
// side whose findMatch completed the pair; that side performs the offer.
type MatchPayload struct {
	Peer      PeerInfo `json:"peer"`
	Initiator bool     `json:"initiator"`
}

// MatchErrorPayload explains a rejected findMatch request.
type MatchErrorPayload struct {
	Message string `json:"message"`
}

// ChatPayload is a relayed text message. To is set on the client-to-server
// leg, From on the server-to-client leg.
type ChatPayload struct {
	To      string `json:"to,omitempty"`
	From    string `json:"from,omitempty"`
	Message string `json:"message"`
}

// SignalPayload carries opaque media handshake data (SDP, ICE) between
// paired sessions. The inner payload is never inspected by the server.
type SignalPayload struct {
	To      string          `json:"to,omitempty"`
	From    string          `json:"from,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// NewMessage builds a Message with the payload marshaled in place.
func NewMessage(msgType string, payload any) (*Message, error) {
	if payload == nil {
		return &Message{Type: msgType}, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{Type: msgType, Payload: b}, nil
}

// DecodePayload unmarshals the message payload into v.
func (m *Message) DecodePayload(v any) error {
	return json.Unmarshal(m.Payload, v)
}

// PeerInfoFromProfile combines a session id and profile into PeerInfo.
func PeerInfoFromProfile(id string, p Profile) PeerInfo {
	return PeerInfo{ID: id, FullName: p.FullName, Age: p.Age, Gender: p.Gender}
}
