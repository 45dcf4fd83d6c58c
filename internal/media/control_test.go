package media

import (
	"encoding/json"
	"testing"

	"github.com/pion/webrtc/v4"
)

func TestControlMessageRoundTrip(t *testing.T) {
	msg, err := NewControlMessage(ControlTypeHello, HelloPayload{
		ClientName:    "pairline",
		ClientVersion: "1.2.3",
	})
	if err != nil {
		t.Fatalf("new control message: %v", err)
	}

	data, err := msg.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := DecodeControlMessage(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Type != ControlTypeHello {
		t.Fatalf("type = %q, want %q", decoded.Type, ControlTypeHello)
	}

	var hello HelloPayload
	if err := decoded.DecodePayload(&hello); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if hello.ClientName != "pairline" || hello.ClientVersion != "1.2.3" {
		t.Fatalf("payload mismatch: %+v", hello)
	}
}

func TestDecodeControlMessageRejectsGarbage(t *testing.T) {
	if _, err := DecodeControlMessage([]byte("not msgpack at all")); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestHangupReasonSurvivesEncoding(t *testing.T) {
	msg, err := NewControlMessage(ControlTypeHangup, HangupPayload{Reason: "peer left"})
	if err != nil {
		t.Fatalf("new control message: %v", err)
	}
	data, err := msg.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeControlMessage(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	var hangup HangupPayload
	if err := decoded.DecodePayload(&hangup); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if hangup.Reason != "peer left" {
		t.Fatalf("reason = %q", hangup.Reason)
	}
}

func TestIsOffer(t *testing.T) {
	offer, _ := json.Marshal(Envelope{Kind: KindOffer, SDP: "v=0"})
	if !IsOffer(offer) {
		t.Fatalf("offer envelope not recognized")
	}

	cand, _ := json.Marshal(Envelope{Kind: KindCandidate, Candidate: &webrtc.ICECandidateInit{Candidate: "candidate:1"}})
	if IsOffer(cand) {
		t.Fatalf("candidate envelope misread as offer")
	}
	if IsOffer(json.RawMessage(`{broken`)) {
		t.Fatalf("invalid payload misread as offer")
	}
}
