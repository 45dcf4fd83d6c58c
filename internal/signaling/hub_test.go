package signaling_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pairline/pairline/internal/protocol"
	"github.com/pairline/pairline/internal/server"
	"github.com/pairline/pairline/internal/signaling"
)

type testClient struct {
	t    *testing.T
	conn *websocket.Conn
	id   string
}

func startServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := signaling.NewHub(nil)
	go hub.Run(ctx)

	srv := httptest.NewServer(server.Routes(hub, nil))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *testClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	c := &testClient{t: t, conn: conn}

	// First message after connect is the session id.
	msg := c.read()
	if msg.Type != protocol.TypeSession {
		t.Fatalf("expected session event first, got %s", msg.Type)
	}
	var p protocol.SessionPayload
	if err := msg.DecodePayload(&p); err != nil || p.ID == "" {
		t.Fatalf("bad session payload: %v %+v", err, p)
	}
	c.id = p.ID
	return c
}

func (c *testClient) read() *protocol.Message {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var msg protocol.Message
	if err := c.conn.ReadJSON(&msg); err != nil {
		c.t.Fatalf("read: %v", err)
	}
	return &msg
}

func (c *testClient) send(msgType string, payload any) {
	c.t.Helper()
	msg, err := protocol.NewMessage(msgType, payload)
	if err != nil {
		c.t.Fatalf("encode %s: %v", msgType, err)
	}
	if err := c.conn.WriteJSON(msg); err != nil {
		c.t.Fatalf("write %s: %v", msgType, err)
	}
}

func (c *testClient) register(name string) {
	c.t.Helper()
	c.send(protocol.TypeRegister, protocol.Profile{FullName: name, Age: "28", Gender: "other"})
	ack := c.read()
	if ack.Type != protocol.TypeRegistered {
		c.t.Fatalf("expected registered ack, got %s", ack.Type)
	}
	var p protocol.RegisteredPayload
	if err := ack.DecodePayload(&p); err != nil || p.ID != c.id || p.FullName != name {
		c.t.Fatalf("bad registered payload: %v %+v", err, p)
	}
}

func (c *testClient) expectMatch() protocol.MatchPayload {
	c.t.Helper()
	msg := c.read()
	if msg.Type != protocol.TypeMatch {
		c.t.Fatalf("expected match, got %s", msg.Type)
	}
	var p protocol.MatchPayload
	if err := msg.DecodePayload(&p); err != nil {
		c.t.Fatalf("bad match payload: %v", err)
	}
	return p
}

func TestRegisterAndMatchScenario(t *testing.T) {
	srv := startServer(t)
	a := dial(t, srv)
	b := dial(t, srv)

	a.register("Ada")
	b.register("Ben")

	// A searches first and waits.
	a.send(protocol.TypeFindMatch, nil)
	if msg := a.read(); msg.Type != protocol.TypeWaitingForMatch {
		t.Fatalf("expected waitingForMatch, got %s", msg.Type)
	}

	// B's request completes the pair; both sides learn each other's profile.
	b.send(protocol.TypeFindMatch, nil)
	matchAtB := b.expectMatch()
	matchAtA := a.expectMatch()

	if matchAtB.Peer.ID != a.id || matchAtB.Peer.FullName != "Ada" {
		t.Fatalf("b matched wrong peer: %+v", matchAtB.Peer)
	}
	if matchAtA.Peer.ID != b.id || matchAtA.Peer.FullName != "Ben" {
		t.Fatalf("a matched wrong peer: %+v", matchAtA.Peer)
	}
	if !matchAtB.Initiator || matchAtA.Initiator {
		t.Fatalf("initiator flag wrong: b=%v a=%v", matchAtB.Initiator, matchAtA.Initiator)
	}
}

func TestUnregisteredFindMatchRejected(t *testing.T) {
	srv := startServer(t)
	c := dial(t, srv)

	c.send(protocol.TypeFindMatch, nil)
	msg := c.read()
	if msg.Type != protocol.TypeMatchError {
		t.Fatalf("expected matchError, got %s", msg.Type)
	}
	var p protocol.MatchErrorPayload
	if err := msg.DecodePayload(&p); err != nil || p.Message == "" {
		t.Fatalf("matchError payload missing message: %v %+v", err, p)
	}
}

func TestChatRelayBetweenPairedSessions(t *testing.T) {
	srv := startServer(t)
	a := dial(t, srv)
	b := dial(t, srv)
	a.register("Ada")
	b.register("Ben")
	a.send(protocol.TypeFindMatch, nil)
	a.read() // waitingForMatch
	b.send(protocol.TypeFindMatch, nil)
	b.expectMatch()
	a.expectMatch()

	a.send(protocol.TypeMessage, protocol.ChatPayload{To: b.id, Message: "hi Ben"})
	msg := b.read()
	if msg.Type != protocol.TypeMessage {
		t.Fatalf("expected relayed message, got %s", msg.Type)
	}
	var p protocol.ChatPayload
	if err := msg.DecodePayload(&p); err != nil {
		t.Fatalf("decode chat: %v", err)
	}
	if p.From != a.id || p.Message != "hi Ben" {
		t.Fatalf("chat mangled in relay: %+v", p)
	}

	// A message to a stale id is dropped without any error to the sender.
	a.send(protocol.TypeMessage, protocol.ChatPayload{To: "01GONEGONEGONEGONEGONEGONE", Message: "hello?"})
	a.send(protocol.TypeMessage, protocol.ChatPayload{To: b.id, Message: "still here"})
	msg = b.read()
	var second protocol.ChatPayload
	if err := msg.DecodePayload(&second); err != nil || second.Message != "still here" {
		t.Fatalf("relay broke after a miss: %v %+v", err, second)
	}
}

func TestPeerDisconnectedAndRematch(t *testing.T) {
	srv := startServer(t)
	a := dial(t, srv)
	b := dial(t, srv)
	a.register("Ada")
	b.register("Ben")
	a.send(protocol.TypeFindMatch, nil)
	a.read() // waitingForMatch
	b.send(protocol.TypeFindMatch, nil)
	b.expectMatch()
	a.expectMatch()

	a.conn.Close()

	msg := b.read()
	if msg.Type != protocol.TypePeerDisconnected {
		t.Fatalf("expected peerDisconnected, got %s", msg.Type)
	}

	// B is unpaired again and may search without re-registering.
	b.send(protocol.TypeFindMatch, nil)
	if msg := b.read(); msg.Type != protocol.TypeWaitingForMatch {
		t.Fatalf("expected waitingForMatch after peer loss, got %s", msg.Type)
	}

	c := dial(t, srv)
	c.register("Cleo")
	c.send(protocol.TypeFindMatch, nil)
	c.expectMatch()
	matchAtB := b.expectMatch()
	if matchAtB.Peer.FullName != "Cleo" {
		t.Fatalf("expected re-match with Cleo, got %+v", matchAtB.Peer)
	}
}

func TestSignalRelayVerbatim(t *testing.T) {
	srv := startServer(t)
	a := dial(t, srv)
	b := dial(t, srv)
	a.register("Ada")
	b.register("Ben")
	a.send(protocol.TypeFindMatch, nil)
	a.read()
	b.send(protocol.TypeFindMatch, nil)
	b.expectMatch()
	a.expectMatch()

	raw := []byte(`{"kind":"offer","sdp":"v=0 fake"}`)
	b.send(protocol.TypeSignal, protocol.SignalPayload{To: a.id, Payload: raw})

	msg := a.read()
	if msg.Type != protocol.TypeSignal {
		t.Fatalf("expected signal, got %s", msg.Type)
	}
	var p protocol.SignalPayload
	if err := msg.DecodePayload(&p); err != nil {
		t.Fatalf("decode signal: %v", err)
	}
	if p.From != b.id || string(p.Payload) != string(raw) {
		t.Fatalf("signal not forwarded verbatim: %+v", p)
	}
}
