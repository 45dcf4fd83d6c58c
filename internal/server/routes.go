package server

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"github.com/pairline/pairline/internal/signaling"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,

	// Clients are anonymous browsers and CLIs; any origin may connect.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Routes returns the HTTP mux hosting the websocket endpoint and the
// health check.
func Routes(hub *signaling.Hub, log *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ws", ServeWs(hub, log))
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Matchmaking server is healthy."))
}

// ServeWs returns an http.HandlerFunc that upgrades the connection,
// assigns a fresh session id, and hands the session to the hub.
// Session ids are never reused.
func ServeWs(hub *signaling.Hub, log *slog.Logger) http.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
			return
		}

		client := signaling.NewClient(hub, conn, ulid.Make().String())
		hub.Register(client)

		go client.WritePump()
		go client.ReadPump()
	}
}
