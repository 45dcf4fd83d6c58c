package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Default client configuration values.
const (
	DefaultServerURL = "ws://localhost:8080/ws"
	DefaultSTUN      = "stun:stun.l.google.com:19302"

	// Reconnection policy: a fixed number of attempts with a fixed
	// delay. No exponential backoff.
	DefaultReconnectAttempts = 5
	DefaultReconnectDelay    = time.Second
	DefaultConnectTimeout    = 10 * time.Second
)

// Client holds the client-side configuration.
type Client struct {
	// ServerURL is the matchmaking server websocket endpoint.
	ServerURL string

	// ICE servers for the media handshake.
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string

	// Transport reconnection policy.
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	ConnectTimeout    time.Duration
}

// Options carries CLI flag overrides for LoadClient.
type Options struct {
	ServerURL  string
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
}

// LoadClient reads client configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func LoadClient(opts Options) (*Client, error) {
	serverURL := firstNonEmpty(opts.ServerURL, os.Getenv("PAIRLINE_SERVER"), DefaultServerURL)
	stun := firstNonEmpty(opts.STUNServer, os.Getenv("PAIRLINE_STUN_SERVER"), DefaultSTUN)
	turn := firstNonEmpty(opts.TURNServer, os.Getenv("PAIRLINE_TURN_SERVER"))
	turnUser := firstNonEmpty(opts.TURNUser, os.Getenv("PAIRLINE_TURN_USERNAME"))
	turnPass := firstNonEmpty(opts.TURNPass, os.Getenv("PAIRLINE_TURN_PASSWORD"))

	if turn != "" && (turnUser == "" || turnPass == "") {
		return nil, fmt.Errorf("TURN server configured without credentials")
	}

	attempts, err := intFromEnv("PAIRLINE_RECONNECT_ATTEMPTS", DefaultReconnectAttempts)
	if err != nil {
		return nil, err
	}
	delay, err := durationFromEnv("PAIRLINE_RECONNECT_DELAY", DefaultReconnectDelay)
	if err != nil {
		return nil, err
	}
	timeout, err := durationFromEnv("PAIRLINE_CONNECT_TIMEOUT", DefaultConnectTimeout)
	if err != nil {
		return nil, err
	}

	return &Client{
		ServerURL:         serverURL,
		STUNServer:        stun,
		TURNServer:        turn,
		TURNUser:          turnUser,
		TURNPass:          turnPass,
		ReconnectAttempts: attempts,
		ReconnectDelay:    delay,
		ConnectTimeout:    timeout,
	}, nil
}

func intFromEnv(name string, def int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid %s %q: want a positive integer", name, raw)
	}
	return n, nil
}

func durationFromEnv(name string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: want a positive duration like 500ms or 2s", name, raw)
	}
	return d, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// GetSTUNServers returns STUN server URLs as strings.
func (c *Client) GetSTUNServers() []string {
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured.
func (c *Client) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	return []string{
		fmt.Sprintf("%s:3478?transport=udp", c.TURNServer),
		fmt.Sprintf("%s:3478?transport=tcp", c.TURNServer),
	}
}

// GetTURNCredentials returns the TURN username and password.
func (c *Client) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}
