// internal/handlers/ws.go
package handlers

import (
	"context"
	"net/http"
	"os"
	"strings"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Muppet1856/Volleyball-Stats-sub000/internal/auth"
	"github.com/Muppet1856/Volleyball-Stats-sub000/internal/matchstate"
	"github.com/Muppet1856/Volleyball-Stats-sub000/internal/middleware"
)

// wsSender adapts a websocket connection to the dispatcher's Sender.
type wsSender struct {
	conn *websocket.Conn
}

func (s *wsSender) Send(ctx context.Context, data []byte) error {
	return s.conn.Write(ctx, websocket.MessageText, data)
}

// extractCookieToken extracts a named cookie value from "Cookie" header, or returns empty if not found.
func extractCookieToken(cookieHeader, cookieName string) string {
	parts := strings.Split(cookieHeader, cookieName+"=")
	if len(parts) < 2 {
		return ""
	}
	token := parts[1]
	if idx := strings.Index(token, ";"); idx != -1 {
		token = token[:idx]
	}
	return token
}

// authEnabled reports whether the shared-token gate is configured. Without a
// hash the deployment runs open, matching dev-mode behavior.
func authEnabled() bool {
	return os.Getenv("ACCESS_TOKEN_HASH") != ""
}

// requireSession validates the session cookie when auth is enabled. Returns
// false after writing the error response.
func requireSession(w http.ResponseWriter, r *http.Request) bool {
	if !authEnabled() {
		return true
	}
	token := extractCookieToken(r.Header.Get("Cookie"), "auth_token")
	if token == "" {
		http.Error(w, "Missing auth_token cookie", http.StatusUnauthorized)
		return false
	}
	if _, err := auth.AuthenticateJWT(token); err != nil {
		http.Error(w, "Invalid session", http.StatusUnauthorized)
		return false
	}
	return true
}

// WSHandler upgrades the connection and runs the per-connection read loop.
// The client may present a stable clientId query parameter so a reconnect
// restores its persisted match subscription; otherwise a fresh id is issued.
func WSHandler(logger *logrus.Logger, registry *matchstate.Registry, dispatcher *matchstate.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireSession(w, r) {
			return
		}

		clientID := r.URL.Query().Get("clientId")
		if clientID == "" {
			clientID = uuid.NewString()
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: []string{"*"}, // Adjust for production security.
		})
		if err != nil {
			logger.Warnf("WebSocket accept error for client %s: %v", clientID, err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "Internal server error during handler exit.")

		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		sender := &wsSender{conn: c}
		registry.Register(ctx, clientID, sender)
		defer registry.Drop(clientID)

		readErr := readMessages(ctx, c, clientID, sender, dispatcher)
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, readErr)

		c.Close(websocket.StatusNormalClosure, "")
	}
}

// readMessages blocks reading frames until the connection closes or the
// context is canceled. Every frame is handled to completion before the next
// read; dispatch errors go back to the sender as error frames, never here.
func readMessages(ctx context.Context, c *websocket.Conn, clientID string, sender matchstate.Sender, dispatcher *matchstate.Dispatcher) error {
	for {
		_, data, err := c.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure || ctx.Err() != nil {
				return nil
			}
			return err
		}
		dispatcher.HandleMessage(ctx, clientID, sender, data)
	}
}
