// Package relay forwards chat and handshake traffic between paired
// sessions. Delivery is best effort: a message to a session with no
// live channel is dropped, not queued.
package relay

import (
	"encoding/json"
	"log/slog"

	"github.com/pairline/pairline/internal/protocol"
	"github.com/pairline/pairline/internal/registry"
)

// Relay addresses messages through the connection registry and owns the
// peer-disconnect cleanup across both registries.
type Relay struct {
	conns *registry.Connections
	users *registry.Users
	log   *slog.Logger
}

// New creates a relay over the shared registries.
func New(conns *registry.Connections, users *registry.Users, log *slog.Logger) *Relay {
	if log == nil {
		log = slog.Default()
	}
	return &Relay{conns: conns, users: users, log: log}
}

// Chat forwards a text message as {from, message}. The sender learns
// nothing about delivery.
func (r *Relay) Chat(from, to, text string) {
	msg, err := protocol.NewMessage(protocol.TypeMessage, protocol.ChatPayload{From: from, Message: text})
	if err != nil {
		return
	}
	r.Deliver(to, msg)
}

// Signal forwards opaque handshake data as {from, payload} verbatim.
func (r *Relay) Signal(from, to string, payload json.RawMessage) {
	msg, err := protocol.NewMessage(protocol.TypeSignal, protocol.SignalPayload{From: from, Payload: payload})
	if err != nil {
		return
	}
	r.Deliver(to, msg)
}

// Deliver sends a message to a session if it has a live channel.
// Reports whether the message was queued; a miss is logged and
// otherwise silent.
func (r *Relay) Deliver(to string, msg *protocol.Message) bool {
	conn, ok := r.conns.Lookup(to)
	if !ok {
		r.log.Debug("relay miss: no live channel", "to", to, "type", msg.Type)
		return false
	}
	if !conn.Send(msg) {
		r.log.Debug("relay miss: send buffer full", "to", to, "type", msg.Type)
		return false
	}
	return true
}

// Disconnect tears down a session: its former peer (if any) is notified
// exactly once, both pairing flags are cleared, and the user and
// connection entries are removed together.
func (r *Relay) Disconnect(id string) {
	peerID, wasPaired := r.users.Remove(id)
	if wasPaired {
		msg, err := protocol.NewMessage(protocol.TypePeerDisconnected, nil)
		if err == nil {
			r.Deliver(peerID, msg)
		}
	}
	r.conns.Remove(id)
}
