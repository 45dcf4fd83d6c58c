package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pairline/pairline/internal/protocol"
)

const transportWriteWait = 10 * time.Second

// Transport is a single websocket connection to the matchmaking server.
// Connect dials exactly once; the controller owns the retry loop. Recv
// returns the channel for the current connection, closed when the
// connection is lost.
type Transport interface {
	Connect(ctx context.Context) error
	Send(msg *protocol.Message) error
	Recv() <-chan *protocol.Message
	Close() error
}

type wsTransport struct {
	url     string
	timeout time.Duration

	mu   sync.Mutex
	conn *websocket.Conn
	recv chan *protocol.Message
}

// NewWebsocketTransport creates a Transport dialing the given ws:// or
// wss:// endpoint.
func NewWebsocketTransport(url string, connectTimeout time.Duration) Transport {
	return &wsTransport{url: url, timeout: connectTimeout}
}

func (t *wsTransport) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: t.timeout}
	conn, _, err := dialer.DialContext(ctx, t.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", t.url, err)
	}

	recv := make(chan *protocol.Message, 32)
	t.mu.Lock()
	if t.conn != nil {
		t.conn.Close()
	}
	t.conn = conn
	t.recv = recv
	t.mu.Unlock()

	go readLoop(conn, recv)
	return nil
}

func readLoop(conn *websocket.Conn, recv chan *protocol.Message) {
	defer close(recv)
	for {
		var msg protocol.Message
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		recv <- &msg
	}
}

func (t *wsTransport) Send(msg *protocol.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return fmt.Errorf("transport not connected")
	}
	t.conn.SetWriteDeadline(time.Now().Add(transportWriteWait))
	return t.conn.WriteJSON(msg)
}

func (t *wsTransport) Recv() <-chan *protocol.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.recv
}

func (t *wsTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}
