package media

import "github.com/vmihailenco/msgpack/v5"

// Control channel message types.
const (
	ControlTypeHello  = "hello"
	ControlTypeHangup = "hangup"
)

// ControlMessage is the envelope for all call-control data channel
// frames.
type ControlMessage struct {
	Type    string             `msgpack:"type"`
	Payload msgpack.RawMessage `msgpack:"payload"`
}

// HelloPayload is sent by each side when the control channel opens.
type HelloPayload struct {
	ClientName    string `msgpack:"clientName"`
	ClientVersion string `msgpack:"clientVersion"`
}

// HangupPayload carries an optional reason for ending the call.
type HangupPayload struct {
	Reason string `msgpack:"reason"`
}

// NewControlMessage creates a ControlMessage with the payload encoded
// in place.
func NewControlMessage(t string, payload any) (ControlMessage, error) {
	b, err := msgpack.Marshal(payload)
	if err != nil {
		return ControlMessage{}, err
	}
	return ControlMessage{Type: t, Payload: b}, nil
}

// Encode serializes the message for the data channel.
func (m ControlMessage) Encode() ([]byte, error) {
	return msgpack.Marshal(m)
}

// DecodeControlMessage parses a data channel frame.
func DecodeControlMessage(data []byte) (ControlMessage, error) {
	var m ControlMessage
	if err := msgpack.Unmarshal(data, &m); err != nil {
		return ControlMessage{}, err
	}
	return m, nil
}

// DecodePayload decodes the message payload into v.
func (m ControlMessage) DecodePayload(v any) error {
	return msgpack.Unmarshal(m.Payload, v)
}
