// internal/models/match.go
package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Match is a row in the matches table. The roster, temp numbers, type flags
// and finalized-sets map are stored as JSON text columns and travel over the
// wire as strings, the same way the storage layer returns them.
type Match struct {
	ID              int64      `json:"id"`
	Date            *string    `json:"date"`
	Location        *string    `json:"location"`
	Types           *string    `json:"types"`
	Opponent        *string    `json:"opponent"`
	JerseyColorHome *string    `json:"jersey_color_home"`
	JerseyColorOpp  *string    `json:"jersey_color_opp"`
	ResultHome      *float64   `json:"result_home"`
	ResultOpp       *float64   `json:"result_opp"`
	FirstServer     *string    `json:"first_server"`
	Players         *string    `json:"players"`
	TempNumbers     *string    `json:"temp_numbers"`
	FinalizedSets   *string    `json:"finalized_sets"`
	IsSwapped       int        `json:"is_swapped"`
	Deleted         int        `json:"deleted"`
	Revision        int64      `json:"revision"`
	CreatedAt       *time.Time `json:"created_at,omitempty"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
}

// RosterEntry is one element of a match's players column: a reference to a
// player row plus per-match appearance data. Deleting the referenced player
// does not remove roster entries; display just degrades.
type RosterEntry struct {
	PlayerID   int64    `json:"player_id"`
	Appeared   *bool    `json:"appeared,omitempty"`
	TempNumber *float64 `json:"temp_number,omitempty"`
}

// TempNumberEntry is one element of a match's temp_numbers column.
type TempNumberEntry struct {
	PlayerID   int64    `json:"player_id"`
	TempNumber *float64 `json:"temp_number"`
}

// ParseFinalizedSets decodes a finalized_sets column value into a
// set-number -> finalized map. It tolerates the encodings that have appeared
// in stored data: a JSON object keyed by set number, a positional array
// (plain booleans or objects carrying setNumber/set_number and
// finalized/final), a raw string of either, or garbage (empty map).
// Set numbers outside 1..5 are dropped.
func ParseFinalizedSets(value any) map[int]bool {
	result := map[int]bool{}
	switch v := value.(type) {
	case nil:
		return result
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return result
		}
		var decoded any
		if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
			return result
		}
		return ParseFinalizedSets(decoded)
	case []any:
		for i, entry := range v {
			setNumber := i + 1
			isFinal := false
			if obj, ok := entry.(map[string]any); ok {
				if raw, ok := obj["setNumber"]; ok {
					setNumber = intFromAny(raw, setNumber)
				} else if raw, ok := obj["set_number"]; ok {
					setNumber = intFromAny(raw, setNumber)
				}
				if raw, ok := obj["finalized"]; ok {
					isFinal = truthy(raw)
				} else if raw, ok := obj["final"]; ok {
					isFinal = truthy(raw)
				}
			} else {
				isFinal = truthy(entry)
			}
			if setNumber >= 1 && setNumber <= 5 {
				result[setNumber] = isFinal
			}
		}
		return result
	case map[string]any:
		for key, val := range v {
			setNumber := intFromAny(key, 0)
			if setNumber >= 1 && setNumber <= 5 {
				result[setNumber] = truthy(val)
			}
		}
		return result
	case map[int]bool:
		for setNumber, isFinal := range v {
			if setNumber >= 1 && setNumber <= 5 {
				result[setNumber] = isFinal
			}
		}
		return result
	default:
		return result
	}
}

func intFromAny(value any, fallback int) int {
	switch v := value.(type) {
	case float64:
		if v == float64(int(v)) {
			return int(v)
		}
	case int:
		return v
	case string:
		var parsed float64
		if err := json.Unmarshal([]byte(strings.TrimSpace(v)), &parsed); err == nil && parsed == float64(int(parsed)) {
			return int(parsed)
		}
	}
	return fallback
}

func truthy(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case string:
		return v != "" && v != "0" && !strings.EqualFold(v, "false")
	case nil:
		return false
	default:
		return true
	}
}
