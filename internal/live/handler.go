package live

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Identity is what the HTTP layer already established about the caller;
// the socket trusts it and adds nothing of its own.
type Identity struct {
	ParticipantID string
	DisplayName   string
	Role          string
}

// AuthFunc resolves a bearer token to an identity.
type AuthFunc func(ctx context.Context, token string) (Identity, error)

// Handler upgrades authenticated HTTP requests into live connections.
type Handler struct {
	registry     *Registry
	authenticate AuthFunc
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
	pingPeriod   time.Duration
}

func NewHandler(registry *Registry, authenticate AuthFunc, writeTimeout, pingPeriod time.Duration) *Handler {
	return &Handler{
		registry:     registry,
		authenticate: authenticate,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browser WebSocket clients cannot set Origin-independent
			// headers; CORS policy is enforced by the HTTP layer.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		writeTimeout: writeTimeout,
		pingPeriod:   pingPeriod,
	}
}

// ServeHTTP handles GET /api/live. The token travels as a query parameter
// because browser WebSocket clients cannot send an Authorization header.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = bearerToken(r)
	}
	identity, err := h.authenticate(r.Context(), token)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("live: upgrade failed for %s: %v", identity.ParticipantID, err)
		return
	}

	conn := newConn(ws, h.registry, identity.ParticipantID, identity.DisplayName, identity.Role, h.writeTimeout, h.pingPeriod)
	log.Printf("live: participant %s connected as %s", identity.ParticipantID, conn.id)
	conn.run()
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return ""
}
