package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/pairline/pairline/internal/media"
	"github.com/pairline/pairline/internal/protocol"
)

var (
	ErrBadState     = errors.New("command not valid in current state")
	ErrDisconnected = errors.New("connection lost and reconnection failed")
)

// AnswerPolicy decides which incoming media offers are auto-answered.
type AnswerPolicy int

const (
	// AnswerMatchedPeer answers offers only from the matched peer.
	AnswerMatchedPeer AnswerPolicy = iota

	// AnswerAny answers any incoming offer while matched.
	AnswerAny
)

const defaultHandshakeTimeout = 30 * time.Second

// Config wires a Controller.
type Config struct {
	Transport Transport
	Provider  media.Provider
	Capture   media.Capture

	AnswerPolicy AnswerPolicy

	ReconnectAttempts int
	ReconnectDelay    time.Duration
	HandshakeTimeout  time.Duration

	Logger *slog.Logger
}

type cmdKind int

const (
	cmdRegister cmdKind = iota
	cmdFindMatch
	cmdSendMessage
	cmdEndCall
	cmdClose
)

type command struct {
	kind    cmdKind
	profile protocol.Profile
	text    string
}

type callResult struct {
	gen  int
	call media.Call
	err  error
}

// Controller runs the client session state machine. All state is owned
// by the Run loop; commands and server messages are serialized through
// it.
type Controller struct {
	cfg Config
	log *slog.Logger

	cmds   chan command
	events chan Event
	done   chan struct{}

	// Run-loop owned.
	state      State
	sessionID  string
	peer       *protocol.PeerInfo
	call       media.Call
	callDone   <-chan struct{}
	signals    chan json.RawMessage
	callPeerID string
	callGen    int
	callRes    chan callResult
}

// New creates a Controller. Call Run to start it.
func New(cfg Config) *Controller {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Capture == nil {
		cfg.Capture = media.NullCapture{}
	}
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	return &Controller{
		cfg:     cfg,
		log:     cfg.Logger,
		cmds:    make(chan command, 16),
		events:  make(chan Event, 64),
		done:    make(chan struct{}),
		state:   StateIdle,
		callRes: make(chan callResult, 1),
	}
}

// Events returns the stream of controller events. Closed when Run
// returns.
func (c *Controller) Events() <-chan Event { return c.events }

// Register sends the profile to the server.
func (c *Controller) Register(p protocol.Profile) {
	c.post(command{kind: cmdRegister, profile: p})
}

// FindMatch asks the server for a peer.
func (c *Controller) FindMatch() { c.post(command{kind: cmdFindMatch}) }

// SendMessage relays a chat message to the matched peer.
func (c *Controller) SendMessage(text string) {
	c.post(command{kind: cmdSendMessage, text: text})
}

// EndCall hangs up the active call, keeping the registration.
func (c *Controller) EndCall() { c.post(command{kind: cmdEndCall}) }

// Close shuts the controller down.
func (c *Controller) Close() { c.post(command{kind: cmdClose}) }

func (c *Controller) post(cmd command) {
	select {
	case c.cmds <- cmd:
	case <-c.done:
	}
}

// Run connects the transport and processes commands and server messages
// until the context ends, Close is called, or the reconnection budget
// is exhausted.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.done)
	defer close(c.events)

	if err := c.cfg.Transport.Connect(ctx); err != nil {
		c.setState(StateDisconnected)
		return &SessionError{Op: "connect", Err: err}
	}
	recv := c.cfg.Transport.Recv()

	for {
		select {
		case <-ctx.Done():
			c.dropCall("shutting down", false)
			c.cfg.Transport.Close()
			c.setState(StateDisconnected)
			return ctx.Err()

		case cmd := <-c.cmds:
			if cmd.kind == cmdClose {
				c.dropCall("closed", false)
				c.cfg.Transport.Close()
				c.setState(StateDisconnected)
				return nil
			}
			c.handleCommand(cmd)

		case msg, ok := <-recv:
			if !ok {
				recv = c.reconnect(ctx)
				if recv == nil {
					return ErrDisconnected
				}
			} else {
				c.handleServerMessage(msg)
			}

		case res := <-c.callRes:
			c.handleCallResult(res)

		case <-c.callDone:
			c.endCall("peer hung up")
		}
	}
}

// reconnect runs the fixed-attempt, fixed-delay retry loop. Returns the
// new receive channel, or nil when the budget is exhausted.
func (c *Controller) reconnect(ctx context.Context) <-chan *protocol.Message {
	c.dropCall("connection lost", true)
	c.sessionID = ""
	c.peer = nil

	for attempt := 1; attempt <= c.cfg.ReconnectAttempts; attempt++ {
		c.emit(Reconnecting{Attempt: attempt, Max: c.cfg.ReconnectAttempts})
		select {
		case <-ctx.Done():
			c.setState(StateDisconnected)
			return nil
		case <-time.After(c.cfg.ReconnectDelay):
		}
		if err := c.cfg.Transport.Connect(ctx); err != nil {
			c.log.Debug("reconnect failed", "attempt", attempt, "err", err)
			continue
		}
		// The new connection carries a fresh session: registration and
		// pairing do not survive it.
		c.setState(StateIdle)
		return c.cfg.Transport.Recv()
	}

	c.setState(StateDisconnected)
	return nil
}

func (c *Controller) handleCommand(cmd command) {
	switch cmd.kind {
	case cmdRegister:
		switch c.state {
		case StateIdle, StateRegistered, StateError, StateCallEnded:
		default:
			c.fail("register", ErrBadState)
			return
		}
		if err := c.sendMessage(protocol.TypeRegister, cmd.profile); err != nil {
			c.fail("register", err)
			return
		}
		c.setState(StateRegistering)

	case cmdFindMatch:
		switch c.state {
		case StateRegistered, StateWaiting, StateError, StateCallEnded:
		default:
			c.fail("findMatch", ErrBadState)
			return
		}
		if err := c.sendMessage(protocol.TypeFindMatch, nil); err != nil {
			c.fail("findMatch", err)
			return
		}
		c.setState(StateSearching)

	case cmdSendMessage:
		if c.peer == nil {
			c.fail("sendMessage", ErrBadState)
			return
		}
		payload := protocol.ChatPayload{To: c.peer.ID, Message: cmd.text}
		if err := c.sendMessage(protocol.TypeMessage, payload); err != nil {
			c.fail("sendMessage", err)
		}

	case cmdEndCall:
		if c.call == nil && c.state != StateCallConnecting {
			return
		}
		c.endCall("hung up")
	}
}

func (c *Controller) handleServerMessage(msg *protocol.Message) {
	switch msg.Type {
	case protocol.TypeSession:
		var p protocol.SessionPayload
		if err := msg.DecodePayload(&p); err != nil {
			c.log.Debug("bad session payload", "err", err)
			return
		}
		c.sessionID = p.ID
		c.emit(SessionAssigned{ID: p.ID})

	case protocol.TypeRegistered:
		var p protocol.RegisteredPayload
		if err := msg.DecodePayload(&p); err != nil {
			c.log.Debug("bad registered payload", "err", err)
			return
		}
		c.emit(Registered{Ack: p})
		if c.state == StateRegistering {
			c.setState(StateRegistered)
		}

	case protocol.TypeWaitingForMatch:
		if c.state == StateSearching {
			c.setState(StateWaiting)
		}
		c.emit(Waiting{})

	case protocol.TypeMatchError:
		// A stale rejection can arrive after a match completed; the
		// pairing wins.
		switch c.state {
		case StateMatched, StateCallConnecting, StateCallConnected:
			c.log.Debug("ignoring stale match error", "state", c.state)
			return
		}
		var p protocol.MatchErrorPayload
		if err := msg.DecodePayload(&p); err != nil {
			c.log.Debug("bad matchError payload", "err", err)
			return
		}
		c.setState(StateError)
		c.emit(Errored{Err: &SessionError{Op: "findMatch", Err: errors.New(p.Message)}})

	case protocol.TypeMatch:
		var p protocol.MatchPayload
		if err := msg.DecodePayload(&p); err != nil {
			c.log.Debug("bad match payload", "err", err)
			return
		}
		peer := p.Peer
		c.peer = &peer
		c.setState(StateMatched)
		c.emit(Matched{Peer: peer, Initiator: p.Initiator})
		if p.Initiator {
			c.startCall(true, peer.ID, nil)
		}

	case protocol.TypeMessage:
		var p protocol.ChatPayload
		if err := msg.DecodePayload(&p); err != nil {
			c.log.Debug("bad chat payload", "err", err)
			return
		}
		c.emit(ChatMessage{From: p.From, Text: p.Message})

	case protocol.TypeSignal:
		var p protocol.SignalPayload
		if err := msg.DecodePayload(&p); err != nil {
			c.log.Debug("bad signal payload", "err", err)
			return
		}
		c.handleSignal(p)

	case protocol.TypePeerDisconnected:
		c.emit(PeerDisconnected{})
		c.peer = nil
		if c.call != nil || c.state == StateCallConnecting {
			c.endCall("peer disconnected")
		} else {
			c.setState(StateRegistered)
		}

	default:
		c.log.Debug("unknown server message", "type", msg.Type)
	}
}

func (c *Controller) handleSignal(p protocol.SignalPayload) {
	// Handshake in flight: forward payloads from the call peer.
	if c.signals != nil && p.From == c.callPeerID {
		select {
		case c.signals <- p.Payload:
		default:
			c.log.Debug("signal buffer full, dropping", "from", p.From)
		}
		return
	}

	if !media.IsOffer(p.Payload) {
		c.log.Debug("dropping signal outside handshake", "from", p.From)
		return
	}
	if c.state != StateMatched {
		c.log.Debug("dropping offer, not matched", "from", p.From)
		return
	}
	if c.cfg.AnswerPolicy == AnswerMatchedPeer && (c.peer == nil || p.From != c.peer.ID) {
		c.log.Debug("dropping offer from unmatched sender", "from", p.From)
		return
	}
	c.startCall(false, p.From, p.Payload)
}

// startCall launches the media handshake off-loop. A previous call, if
// any, is torn down first.
func (c *Controller) startCall(initiate bool, peerID string, offer json.RawMessage) {
	c.dropCall("superseded", false)

	c.signals = make(chan json.RawMessage, 16)
	c.callPeerID = peerID
	c.callGen++
	gen := c.callGen
	sig := &peerSignaler{
		recv: c.signals,
		send: func(payload json.RawMessage) error {
			out := protocol.SignalPayload{To: peerID, Payload: payload}
			msg, err := protocol.NewMessage(protocol.TypeSignal, out)
			if err != nil {
				return err
			}
			return c.cfg.Transport.Send(msg)
		},
	}
	c.setState(StateCallConnecting)

	provider, capture := c.cfg.Provider, c.cfg.Capture
	timeout := c.cfg.HandshakeTimeout
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		// The Run loop may be gone by the time the handshake settles;
		// never block on the result, and never leak a connected call.
		deliver := func(res callResult) {
			select {
			case <-c.done:
			default:
				select {
				case c.callRes <- res:
					return
				case <-c.done:
				}
			}
			if res.call != nil {
				res.call.Hangup()
			}
		}

		local, err := capture.Acquire(ctx)
		if err != nil {
			deliver(callResult{gen: gen, err: err})
			return
		}
		var call media.Call
		if initiate {
			call, err = provider.Initiate(ctx, local, sig)
		} else {
			call, err = provider.Answer(ctx, offer, local, sig)
		}
		deliver(callResult{gen: gen, call: call, err: err})
	}()
}

func (c *Controller) handleCallResult(res callResult) {
	if res.gen != c.callGen {
		// Result of a superseded handshake.
		if res.call != nil {
			res.call.Hangup()
		}
		return
	}
	if res.err != nil {
		c.signals = nil
		c.callPeerID = ""
		// Recoverable: FindMatch is accepted again from here.
		c.setState(StateError)
		c.fail("call", res.err)
		return
	}
	c.call = res.call
	c.callDone = res.call.Done()
	c.setState(StateCallConnected)
	c.emit(CallConnected{})
}

// endCall tears down the active call and returns to Registered so the
// user can search again.
func (c *Controller) endCall(reason string) {
	c.dropCall(reason, true)
	c.setState(StateCallEnded)
	c.setState(StateRegistered)
}

func (c *Controller) dropCall(reason string, announce bool) {
	active := c.call != nil || c.signals != nil
	if c.call != nil {
		c.call.Hangup()
	}
	c.call = nil
	c.callDone = nil
	c.signals = nil
	c.callPeerID = ""
	c.callGen++
	if announce && active {
		c.emit(CallEnded{Reason: reason})
	}
}

func (c *Controller) sendMessage(msgType string, payload any) error {
	msg, err := protocol.NewMessage(msgType, payload)
	if err != nil {
		return err
	}
	return c.cfg.Transport.Send(msg)
}

func (c *Controller) setState(to State) {
	if c.state == to {
		return
	}
	from := c.state
	c.state = to
	c.log.Debug("state change", "from", from, "to", to)
	c.emit(StateChanged{From: from, To: to})
}

func (c *Controller) fail(op string, err error) {
	c.emit(Errored{Err: &SessionError{Op: op, Err: err}})
}

func (c *Controller) emit(ev Event) {
	c.events <- ev
}

// peerSignaler bridges the media handshake to the signal relay.
type peerSignaler struct {
	send func(json.RawMessage) error
	recv chan json.RawMessage
}

func (s *peerSignaler) Send(payload json.RawMessage) error { return s.send(payload) }
func (s *peerSignaler) Recv() <-chan json.RawMessage       { return s.recv }
