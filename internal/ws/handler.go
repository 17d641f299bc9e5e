package ws

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/varun72004/Twin-Talk/internal/auth"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The token gate is the access control; cross-origin pages may
		// connect as long as they present a valid credential.
		return true
	},
}

// ServeWS authenticates the handshake and, on success, upgrades the
// connection and registers it with the hub. No event traffic is
// possible before the token verifies: a bad credential is refused at
// the HTTP layer, before the upgrade.
func ServeWS(hub *Hub, tokens *auth.TokenManager, w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = r.Header.Get("Authorization")
		token = strings.TrimPrefix(token, "Bearer ")
	}
	if token == "" {
		http.Error(w, "Unauthorized: token required", http.StatusUnauthorized)
		return
	}

	claims, err := tokens.Verify(token)
	if err != nil {
		slog.Warn("handshake rejected", "from", r.RemoteAddr, "error", err)
		http.Error(w, "Unauthorized: invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("upgrade failed", "user", claims.UserID, "error", err)
		return
	}

	client := newClient(hub, conn, uuid.NewString(), claims.UserID, claims.Username)
	hub.Register(client)

	go client.writePump()
	go client.readPump()
}
