package media

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/pairline/pairline/internal/config"
	"github.com/pairline/pairline/internal/version"
)

const controlChannelLabel = "call-control"

// PionProvider negotiates calls with pion/webrtc, exchanging SDP and
// trickled ICE candidates through the signal relay.
type PionProvider struct {
	cfg *config.Client
	log *slog.Logger
}

// NewPionProvider creates a provider using the client's ICE settings.
func NewPionProvider(cfg *config.Client, log *slog.Logger) *PionProvider {
	if log == nil {
		log = slog.Default()
	}
	return &PionProvider{cfg: cfg, log: log}
}

func (p *PionProvider) newPeerConnection() (*webrtc.PeerConnection, error) {
	iceServers := []webrtc.ICEServer{{URLs: p.cfg.GetSTUNServers()}}

	if turnServers := p.cfg.GetTURNServers(); turnServers != nil {
		username, password := p.cfg.GetTURNCredentials()
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       turnServers,
			Username:   username,
			Credential: password,
		})
	}

	return webrtc.NewPeerConnection(webrtc.Configuration{ICEServers: iceServers})
}

// Initiate runs the offering side of the handshake.
func (p *PionProvider) Initiate(ctx context.Context, local *Handle, sig Signaler) (Call, error) {
	pc, err := p.newPeerConnection()
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}
	call := newPionCall(pc, p.log)

	if err := attachLocalMedia(pc, local); err != nil {
		pc.Close()
		return nil, err
	}

	dc, err := pc.CreateDataChannel(controlChannelLabel, nil)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("create control channel: %w", err)
	}
	call.bindControl(dc)

	p.wireCandidates(pc, sig)
	go call.consumeSignals(ctx, sig)

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("create offer: %w", err)
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		pc.Close()
		return nil, fmt.Errorf("set local description: %w", err)
	}
	if err := sendEnvelope(sig, Envelope{Kind: KindOffer, SDP: offer.SDP}); err != nil {
		pc.Close()
		return nil, err
	}

	if err := call.waitConnected(ctx); err != nil {
		pc.Close()
		return nil, err
	}
	return call, nil
}

// Answer runs the answering side of the handshake for a received offer.
func (p *PionProvider) Answer(ctx context.Context, offer json.RawMessage, local *Handle, sig Signaler) (Call, error) {
	env, err := DecodeEnvelope(offer)
	if err != nil || env.Kind != KindOffer {
		return nil, fmt.Errorf("%w: not an offer", ErrHandshakeFailed)
	}

	pc, err := p.newPeerConnection()
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}
	call := newPionCall(pc, p.log)

	if err := attachLocalMedia(pc, local); err != nil {
		pc.Close()
		return nil, err
	}

	// The offerer opens the control channel; adopt it when it arrives.
	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() == controlChannelLabel {
			call.bindControl(dc)
		}
	})

	p.wireCandidates(pc, sig)
	go call.consumeSignals(ctx, sig)

	if err := pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  env.SDP,
	}); err != nil {
		pc.Close()
		return nil, fmt.Errorf("set remote description: %w", err)
	}
	call.remoteDescriptionSet()

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("create answer: %w", err)
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		pc.Close()
		return nil, fmt.Errorf("set local description: %w", err)
	}
	if err := sendEnvelope(sig, Envelope{Kind: KindAnswer, SDP: answer.SDP}); err != nil {
		pc.Close()
		return nil, err
	}

	if err := call.waitConnected(ctx); err != nil {
		pc.Close()
		return nil, err
	}
	return call, nil
}

func (p *PionProvider) wireCandidates(pc *webrtc.PeerConnection, sig Signaler) {
	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		init := c.ToJSON()
		if err := sendEnvelope(sig, Envelope{Kind: KindCandidate, Candidate: &init}); err != nil {
			p.log.Debug("send candidate", "err", err)
		}
	})
}

func attachLocalMedia(pc *webrtc.PeerConnection, local *Handle) error {
	if local != nil {
		for _, track := range local.Tracks {
			if _, err := pc.AddTrack(track); err != nil {
				return fmt.Errorf("add local track: %w", err)
			}
		}
		if len(local.Tracks) > 0 {
			return nil
		}
	}

	// No local media: negotiate receive-only audio and video.
	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo} {
		if _, err := pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		}); err != nil {
			return fmt.Errorf("add %s transceiver: %w", kind, err)
		}
	}
	return nil
}

func sendEnvelope(sig Signaler, env Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return sig.Send(b)
}

// pionCall is one live pion peer connection plus its control channel.
type pionCall struct {
	pc  *webrtc.PeerConnection
	log *slog.Logger

	mu         sync.Mutex
	control    *webrtc.DataChannel
	remoteSet  bool
	pending    []webrtc.ICECandidateInit
	hungUp     bool
	connected  chan struct{}
	connectErr chan error
	done       chan struct{}
	doneOnce   sync.Once
}

func newPionCall(pc *webrtc.PeerConnection, log *slog.Logger) *pionCall {
	c := &pionCall{
		pc:         pc,
		log:        log,
		connected:  make(chan struct{}),
		connectErr: make(chan error, 1),
		done:       make(chan struct{}),
	}

	var connectedOnce sync.Once
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateConnected:
			connectedOnce.Do(func() { close(c.connected) })
		case webrtc.PeerConnectionStateFailed:
			select {
			case c.connectErr <- fmt.Errorf("%w: connection failed", ErrHandshakeFailed):
			default:
			}
			c.closeDone()
		case webrtc.PeerConnectionStateClosed, webrtc.PeerConnectionStateDisconnected:
			c.closeDone()
		}
	})
	return c
}

func (c *pionCall) Done() <-chan struct{} { return c.done }

// Hangup notifies the peer and tears the connection down.
func (c *pionCall) Hangup() error {
	c.mu.Lock()
	if c.hungUp {
		c.mu.Unlock()
		return nil
	}
	c.hungUp = true
	control := c.control
	c.mu.Unlock()

	if control != nil && control.ReadyState() == webrtc.DataChannelStateOpen {
		if msg, err := NewControlMessage(ControlTypeHangup, HangupPayload{Reason: "call ended"}); err == nil {
			if data, err := msg.Encode(); err == nil {
				_ = control.Send(data)
			}
		}
	}
	err := c.pc.Close()
	c.closeDone()
	return err
}

func (c *pionCall) closeDone() {
	c.doneOnce.Do(func() { close(c.done) })
}

func (c *pionCall) bindControl(dc *webrtc.DataChannel) {
	c.mu.Lock()
	c.control = dc
	c.mu.Unlock()

	dc.OnOpen(func() {
		msg, err := NewControlMessage(ControlTypeHello, HelloPayload{
			ClientName:    "pairline",
			ClientVersion: version.Version,
		})
		if err != nil {
			return
		}
		if data, err := msg.Encode(); err == nil {
			_ = dc.Send(data)
		}
	})

	dc.OnMessage(func(raw webrtc.DataChannelMessage) {
		msg, err := DecodeControlMessage(raw.Data)
		if err != nil {
			c.log.Debug("bad control frame", "err", err)
			return
		}
		switch msg.Type {
		case ControlTypeHello:
			var hello HelloPayload
			if err := msg.DecodePayload(&hello); err == nil {
				c.log.Debug("peer control channel open", "client", hello.ClientName, "version", hello.ClientVersion)
			}
		case ControlTypeHangup:
			c.pc.Close()
			c.closeDone()
		default:
			c.log.Debug("unknown control frame", "type", msg.Type)
		}
	})
}

// consumeSignals applies relayed answer/candidate payloads until the
// context ends or the signaler's channel closes.
func (c *pionCall) consumeSignals(ctx context.Context, sig Signaler) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case payload, ok := <-sig.Recv():
			if !ok {
				return
			}
			env, err := DecodeEnvelope(payload)
			if err != nil {
				c.log.Debug("bad signal payload", "err", err)
				continue
			}
			switch env.Kind {
			case KindAnswer:
				if err := c.pc.SetRemoteDescription(webrtc.SessionDescription{
					Type: webrtc.SDPTypeAnswer,
					SDP:  env.SDP,
				}); err != nil {
					c.log.Debug("set remote answer", "err", err)
					continue
				}
				c.remoteDescriptionSet()
			case KindCandidate:
				if env.Candidate != nil {
					c.addCandidate(*env.Candidate)
				}
			}
		}
	}
}

// addCandidate buffers trickled candidates that arrive before the
// remote description.
func (c *pionCall) addCandidate(cand webrtc.ICECandidateInit) {
	c.mu.Lock()
	if !c.remoteSet {
		c.pending = append(c.pending, cand)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	if err := c.pc.AddICECandidate(cand); err != nil {
		c.log.Debug("add candidate", "err", err)
	}
}

func (c *pionCall) remoteDescriptionSet() {
	c.mu.Lock()
	c.remoteSet = true
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()
	for _, cand := range pending {
		if err := c.pc.AddICECandidate(cand); err != nil {
			c.log.Debug("add buffered candidate", "err", err)
		}
	}
}

func (c *pionCall) waitConnected(ctx context.Context) error {
	select {
	case <-c.connected:
		return nil
	case err := <-c.connectErr:
		return err
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrHandshakeFailed, ctx.Err())
	}
}
