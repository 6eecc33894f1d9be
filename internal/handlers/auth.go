// internal/handlers/auth.go
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Muppet1856/Volleyball-Stats-sub000/internal/auth"
)

// TokenLoginHandler exchanges the deployment's shared access token for a
// session JWT cookie. POST {"token": "..."}. When no ACCESS_TOKEN_HASH is
// configured the endpoint reports that auth is disabled.
func TokenLoginHandler(logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		encodedHash := os.Getenv("ACCESS_TOKEN_HASH")
		if encodedHash == "" {
			http.Error(w, "Auth is not configured", http.StatusServiceUnavailable)
			return
		}

		var body struct {
			Token string `json:"token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Token == "" {
			http.Error(w, "Missing token", http.StatusBadRequest)
			return
		}

		ok, err := auth.VerifyAccessToken(body.Token, encodedHash)
		if err != nil {
			logger.Errorf("failed to verify access token: %v", err)
			http.Error(w, "Auth misconfigured", http.StatusInternalServerError)
			return
		}
		if !ok {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		clientID := uuid.NewString()
		token, err := auth.CreateJWT(clientID)
		if err != nil {
			logger.Errorf("failed to create session JWT: %v", err)
			http.Error(w, "Failed to create session", http.StatusInternalServerError)
			return
		}

		cookie := fmt.Sprintf("auth_token=%s; Path=/; HttpOnly; SameSite=Strict", token)
		if auth.TOKEN_EXPIRE_TIME_SEC > 0 {
			cookie = fmt.Sprintf("%s; Max-Age=%d", cookie, auth.TOKEN_EXPIRE_TIME_SEC)
		}
		w.Header().Set("Set-Cookie", cookie)
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]any{"success": true, "clientId": clientID}); err != nil {
			logger.Warnf("failed to write login response: %v", err)
		}
	}
}
