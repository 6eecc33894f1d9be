// internal/database/roster.go
package database

import (
	"encoding/json"

	"github.com/Muppet1856/Volleyball-Stats-sub000/internal/models"
)

// decodeRoster parses a players column value. A nil, empty, or unparseable
// column yields an empty roster rather than an error; roster blobs written by
// old clients occasionally held bare "[]" strings or nothing at all.
func decodeRoster(column *string) []models.RosterEntry {
	if column == nil || *column == "" {
		return nil
	}
	var roster []models.RosterEntry
	if err := json.Unmarshal([]byte(*column), &roster); err != nil {
		return nil
	}
	return roster
}

func decodeTempNumbers(column *string) []models.TempNumberEntry {
	if column == nil || *column == "" {
		return nil
	}
	var entries []models.TempNumberEntry
	if err := json.Unmarshal([]byte(*column), &entries); err != nil {
		return nil
	}
	return entries
}

func encodeJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// applyRosterDelta upserts one roster entry by player id. Fields absent from
// the delta keep their stored values.
func applyRosterDelta(column *string, delta models.RosterEntry) string {
	roster := decodeRoster(column)
	for i := range roster {
		if roster[i].PlayerID == delta.PlayerID {
			if delta.Appeared != nil {
				roster[i].Appeared = delta.Appeared
			}
			if delta.TempNumber != nil {
				roster[i].TempNumber = delta.TempNumber
			}
			return encodeJSON(roster)
		}
	}
	return encodeJSON(append(roster, delta))
}

// removeRosterEntry drops a player from the roster. Removing an absent player
// is a no-op.
func removeRosterEntry(column *string, playerID int64) string {
	roster := decodeRoster(column)
	kept := roster[:0]
	for _, entry := range roster {
		if entry.PlayerID != playerID {
			kept = append(kept, entry)
		}
	}
	return encodeJSON(kept)
}

// applyTempNumberDelta upserts a temporary jersey number assignment.
func applyTempNumberDelta(column *string, delta models.TempNumberEntry) string {
	entries := decodeTempNumbers(column)
	for i := range entries {
		if entries[i].PlayerID == delta.PlayerID {
			entries[i].TempNumber = delta.TempNumber
			return encodeJSON(entries)
		}
	}
	return encodeJSON(append(entries, delta))
}

// removeTempNumberEntry drops a player's temporary number assignment.
func removeTempNumberEntry(column *string, playerID int64) string {
	entries := decodeTempNumbers(column)
	kept := entries[:0]
	for _, entry := range entries {
		if entry.PlayerID != playerID {
			kept = append(kept, entry)
		}
	}
	return encodeJSON(kept)
}
