// internal/handlers/room.go
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Muppet1856/Volleyball-Stats-sub000/internal/models"
	"github.com/Muppet1856/Volleyball-Stats-sub000/internal/room"
)

// RoomHandler serves the match-room coordination paths:
//
//	POST   /room/{match_id}/transitions  guarded snapshot write
//	PUT    /room/{match_id}/state        legacy full-record save
//	DELETE /room/{match_id}/state        clear the room
func RoomHandler(logger *logrus.Logger, rooms *room.RoomStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireSession(w, r) {
			return
		}

		// Path shape: /room/{match_id}/{leaf}
		pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/room/"), "/")
		if len(pathParts) < 2 || pathParts[0] == "" {
			http.Error(w, "Missing match_id in path (/room/{match_id}/...)", http.StatusBadRequest)
			return
		}
		matchID, err := strconv.ParseInt(pathParts[0], 10, 64)
		if err != nil || matchID <= 0 {
			http.Error(w, "Invalid match_id format", http.StatusBadRequest)
			return
		}
		leaf := pathParts[1]

		switch {
		case r.Method == http.MethodPost && leaf == "transitions":
			payload, ok := decodeBody(w, r)
			if !ok {
				return
			}
			writeResult(w, logger, rooms.GetOrCreate(matchID).Transition(r.Context(), payload))

		case r.Method == http.MethodPut && leaf == "state":
			payload, ok := decodeBody(w, r)
			if !ok {
				return
			}
			writeResult(w, logger, rooms.GetOrCreate(matchID).LegacySave(r.Context(), payload))

		case r.Method == http.MethodDelete && leaf == "state":
			res := rooms.GetOrCreate(matchID).Delete()
			rooms.Forget(matchID)
			writeResult(w, logger, res)

		default:
			http.Error(w, "Not found", http.StatusNotFound)
		}
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	payload := map[string]any{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return nil, false
	}
	return payload, true
}

// writeResult renders a Result envelope over HTTP: string bodies go out as
// plain text, everything else as JSON, and a nil body is just the status.
func writeResult(w http.ResponseWriter, logger *logrus.Logger, res models.Result) {
	switch body := res.Body.(type) {
	case nil:
		w.WriteHeader(res.Status)
	case string:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(res.Status)
		if _, err := w.Write([]byte(body)); err != nil {
			logger.Warnf("failed to write response body: %v", err)
		}
	case json.RawMessage:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(res.Status)
		if _, err := w.Write(body); err != nil {
			logger.Warnf("failed to write response body: %v", err)
		}
	default:
		data, err := json.Marshal(body)
		if err != nil {
			http.Error(w, "Failed to encode response", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(res.Status)
		if _, err := w.Write(data); err != nil {
			logger.Warnf("failed to write response body: %v", err)
		}
	}
}
