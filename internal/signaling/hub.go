// Package signaling hosts the server's event loop. Every inbound event
// (register, findMatch, message, signal, disconnect) runs to completion
// against the shared registries before the next one is processed.
package signaling

import (
	"context"
	"log/slog"

	"github.com/pairline/pairline/internal/match"
	"github.com/pairline/pairline/internal/protocol"
	"github.com/pairline/pairline/internal/registry"
	"github.com/pairline/pairline/internal/relay"
)

const matchRejectedMessage = "Unable to find a match at the moment."

// Hub coordinates all live sessions. Clients funnel their messages into
// the inbound channel; the single Run goroutine owns every registry
// mutation.
type Hub struct {
	conns   *registry.Connections
	users   *registry.Users
	matcher *match.Service
	relay   *relay.Relay
	log     *slog.Logger

	register   chan *Client
	unregister chan *Client
	inbound    chan inboundMessage
}

type inboundMessage struct {
	client *Client
	msg    *protocol.Message
}

// NewHub creates a hub with fresh registries.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	conns := registry.NewConnections()
	users := registry.NewUsers()
	return &Hub{
		conns:      conns,
		users:      users,
		matcher:    match.NewService(users),
		relay:      relay.New(conns, users, log),
		log:        log,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inboundMessage),
	}
}

// Register hands a freshly upgraded session to the hub.
func (h *Hub) Register(c *Client) {
	h.register <- c
}

// Run processes hub events until the context is canceled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.conns.Register(client.id, client)
			h.log.Info("session connected", "session", client.id, "remote", client.RemoteAddr())
			h.send(client, protocol.TypeSession, protocol.SessionPayload{ID: client.id})

		case client := <-h.unregister:
			h.relay.Disconnect(client.id)
			client.close()
			h.log.Info("session disconnected", "session", client.id, "sessions", h.conns.Count())

		case in := <-h.inbound:
			h.dispatch(in.client, in.msg)
		}
	}
}

func (h *Hub) dispatch(client *Client, msg *protocol.Message) {
	switch msg.Type {
	case protocol.TypeRegister:
		h.handleRegister(client, msg)
	case protocol.TypeFindMatch:
		h.handleFindMatch(client)
	case protocol.TypeMessage:
		h.handleChat(client, msg)
	case protocol.TypeSignal:
		h.handleSignal(client, msg)
	default:
		h.log.Warn("unknown message type", "type", msg.Type, "session", client.id)
	}
}

func (h *Hub) handleRegister(client *Client, msg *protocol.Message) {
	var p protocol.Profile
	if err := msg.DecodePayload(&p); err != nil {
		h.log.Warn("bad register payload", "session", client.id, "err", err)
		return
	}
	isNew := h.users.UpsertProfile(client.id, p)
	h.log.Info("user registered", "session", client.id, "name", p.FullName, "new", isNew)
	h.send(client, protocol.TypeRegistered, protocol.RegisteredPayload{
		ID:       client.id,
		FullName: p.FullName,
		Age:      p.Age,
		Gender:   p.Gender,
	})
}

func (h *Hub) handleFindMatch(client *Client) {
	res, err := h.matcher.FindMatch(client.id)
	if err != nil {
		h.log.Info("match rejected", "session", client.id, "reason", err)
		h.send(client, protocol.TypeMatchError, protocol.MatchErrorPayload{Message: matchRejectedMessage})
		return
	}
	if !res.Matched {
		h.send(client, protocol.TypeWaitingForMatch, nil)
		return
	}

	requesterProfile, _ := h.users.Profile(client.id)
	h.log.Info("sessions paired", "requester", client.id, "peer", res.PeerID)

	// The requester that completed the pair performs the offer.
	h.send(client, protocol.TypeMatch, protocol.MatchPayload{
		Peer:      protocol.PeerInfoFromProfile(res.PeerID, res.PeerProfile),
		Initiator: true,
	})
	peerMatch, err := protocol.NewMessage(protocol.TypeMatch, protocol.MatchPayload{
		Peer: protocol.PeerInfoFromProfile(client.id, requesterProfile),
	})
	if err == nil {
		h.relay.Deliver(res.PeerID, peerMatch)
	}
}

func (h *Hub) handleChat(client *Client, msg *protocol.Message) {
	var p protocol.ChatPayload
	if err := msg.DecodePayload(&p); err != nil || p.To == "" {
		h.log.Warn("bad chat payload", "session", client.id)
		return
	}
	h.relay.Chat(client.id, p.To, p.Message)
}

func (h *Hub) handleSignal(client *Client, msg *protocol.Message) {
	var p protocol.SignalPayload
	if err := msg.DecodePayload(&p); err != nil || p.To == "" {
		h.log.Warn("bad signal payload", "session", client.id)
		return
	}
	h.relay.Signal(client.id, p.To, p.Payload)
}

func (h *Hub) send(client *Client, msgType string, payload any) {
	msg, err := protocol.NewMessage(msgType, payload)
	if err != nil {
		h.log.Error("encode message", "type", msgType, "err", err)
		return
	}
	if !client.Send(msg) {
		h.log.Debug("dropped message to slow client", "session", client.id, "type", msgType)
	}
}
