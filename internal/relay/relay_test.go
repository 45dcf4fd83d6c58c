package relay

import (
	"encoding/json"
	"testing"

	"github.com/pairline/pairline/internal/protocol"
	"github.com/pairline/pairline/internal/registry"
)

type sink struct {
	msgs []*protocol.Message
	full bool
}

func (s *sink) Send(msg *protocol.Message) bool {
	if s.full {
		return false
	}
	s.msgs = append(s.msgs, msg)
	return true
}

func newTestRelay() (*Relay, *registry.Connections, *registry.Users) {
	conns := registry.NewConnections()
	users := registry.NewUsers()
	return New(conns, users, nil), conns, users
}

func TestChatForwardsVerbatim(t *testing.T) {
	r, conns, _ := newTestRelay()
	b := &sink{}
	conns.Register("b", b)

	r.Chat("a", "b", "hello there")

	if len(b.msgs) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(b.msgs))
	}
	var got protocol.ChatPayload
	if err := b.msgs[0].DecodePayload(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.From != "a" || got.Message != "hello there" {
		t.Fatalf("payload mangled: %+v", got)
	}
}

func TestRelayToDeadSessionIsSilent(t *testing.T) {
	r, _, _ := newTestRelay()

	// Must not panic or surface anything to the sender.
	r.Chat("a", "gone", "anyone?")
	r.Signal("a", "gone", json.RawMessage(`{"kind":"offer"}`))
}

func TestDeliverReportsBufferFull(t *testing.T) {
	r, conns, _ := newTestRelay()
	conns.Register("b", &sink{full: true})

	msg, _ := protocol.NewMessage(protocol.TypeMessage, protocol.ChatPayload{From: "a", Message: "x"})
	if r.Deliver("b", msg) {
		t.Fatalf("expected delivery to fail on a full buffer")
	}
}

func TestDisconnectNotifiesPeerOnce(t *testing.T) {
	r, conns, users := newTestRelay()
	b := &sink{}
	conns.Register("a", &sink{})
	conns.Register("b", b)
	users.UpsertProfile("a", protocol.Profile{FullName: "A"})
	users.UpsertProfile("b", protocol.Profile{FullName: "B"})
	if err := users.MarkPaired("a", "b"); err != nil {
		t.Fatalf("pairing failed: %v", err)
	}

	r.Disconnect("a")

	notified := 0
	for _, m := range b.msgs {
		if m.Type == protocol.TypePeerDisconnected {
			notified++
		}
	}
	if notified != 1 {
		t.Fatalf("expected exactly one peerDisconnected, got %d", notified)
	}
	if users.IsPaired("b") {
		t.Fatalf("peer should be unpaired after disconnect")
	}
	if _, ok := conns.Lookup("a"); ok {
		t.Fatalf("disconnected session still in connection registry")
	}

	// A second disconnect of the same session is a no-op.
	r.Disconnect("a")
	notified = 0
	for _, m := range b.msgs {
		if m.Type == protocol.TypePeerDisconnected {
			notified++
		}
	}
	if notified != 1 {
		t.Fatalf("duplicate peerDisconnected after repeated disconnect")
	}
}

func TestDisconnectUnpairedSession(t *testing.T) {
	r, conns, users := newTestRelay()
	b := &sink{}
	conns.Register("b", b)
	users.UpsertProfile("b", protocol.Profile{FullName: "B"})

	r.Disconnect("b")

	if len(b.msgs) != 0 {
		t.Fatalf("unpaired disconnect should notify nobody, got %d messages", len(b.msgs))
	}
	if users.Count() != 0 {
		t.Fatalf("user not removed")
	}
}
