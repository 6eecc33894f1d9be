// internal/handlers/matches.go
package handlers

import (
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/Muppet1856/Volleyball-Stats-sub000/internal/database"
)

// MatchesHandler serves the read-only bootstrap a follower client fetches
// before opening its WebSocket: GET /matches for the full list, GET
// /matches?id=N for one record.
func MatchesHandler(logger *logrus.Logger, store *database.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if !requireSession(w, r) {
			return
		}

		if raw := r.URL.Query().Get("id"); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || id <= 0 {
				http.Error(w, "Invalid id", http.StatusBadRequest)
				return
			}
			writeResult(w, logger, store.GetMatch(r.Context(), id))
			return
		}
		writeResult(w, logger, store.GetMatches(r.Context()))
	}
}

// SetsHandler serves GET /sets?matchId=N (or every set when unscoped).
func SetsHandler(logger *logrus.Logger, store *database.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if !requireSession(w, r) {
			return
		}

		var matchID *int64
		if raw := r.URL.Query().Get("matchId"); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || id <= 0 {
				http.Error(w, "Invalid matchId", http.StatusBadRequest)
				return
			}
			matchID = &id
		}
		writeResult(w, logger, store.GetSets(r.Context(), matchID))
	}
}
