// internal/matchstate/normalize.go
//
// Total normalization of raw client-submitted values into canonical stored
// representations. Every function accepts whatever decoded JSON produced
// (nil, bool, float64, string, maps) and always returns a defined value;
// nothing here can fail.
package matchstate

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// NormalizeScore coerces a raw score into a finite number or nil. Empty
// strings and non-numeric input normalize to nil, never an error.
func NormalizeScore(value any) *float64 {
	switch v := value.(type) {
	case nil:
		return nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		return &v
	case int:
		f := float64(v)
		return &f
	case int64:
		f := float64(v)
		return &f
	case bool:
		f := 0.0
		if v {
			f = 1.0
		}
		return &f
	case string:
		if v == "" {
			return nil
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
			return nil
		}
		return &parsed
	default:
		return nil
	}
}

// NormalizeDeletedFlag coerces booleans, numbers, and "true"/"1" strings into
// a 0/1 integer.
func NormalizeDeletedFlag(value any) int {
	switch v := value.(type) {
	case nil:
		return 0
	case bool:
		if v {
			return 1
		}
		return 0
	case float64:
		if v != 0 {
			return 1
		}
		return 0
	case int:
		if v != 0 {
			return 1
		}
		return 0
	case string:
		lower := strings.ToLower(strings.TrimSpace(v))
		if lower == "true" || lower == "1" {
			return 1
		}
		return 0
	default:
		return 1
	}
}

// NormalizeTimeoutFlag coerces a timeout flag into 0/1. Empty strings count
// as 0; non-numeric non-empty strings count as raised.
func NormalizeTimeoutFlag(value any) int {
	switch v := value.(type) {
	case nil:
		return 0
	case bool:
		if v {
			return 1
		}
		return 0
	case float64:
		if v != 0 {
			return 1
		}
		return 0
	case int:
		if v != 0 {
			return 1
		}
		return 0
	case string:
		if strings.TrimSpace(v) == "" {
			return 0
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 1
		}
		if parsed != 0 {
			return 1
		}
		return 0
	default:
		return 0
	}
}

// timestampLayouts are tried in order when parsing client-supplied timeout
// start times.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimestamp(raw any) (time.Time, bool) {
	switch v := raw.(type) {
	case string:
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, strings.TrimSpace(v)); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	case float64:
		// Epoch milliseconds, the way Date(number) reads them.
		return time.UnixMilli(int64(v)), true
	default:
		return time.Time{}, false
	}
}

func isoTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// NormalizeTimeoutTimestamp derives the canonical timeout start time for a
// flag write. A cleared flag always nulls the timestamp. A raised flag uses
// the caller's explicit timestamp field when one was provided (an explicit
// null stays null; an unparseable value falls back to the current time), and
// stamps the current time when the caller sent no timestamp field at all.
func NormalizeTimeoutTimestamp(value any, timestampProvided bool, timestamp any) *string {
	if NormalizeTimeoutFlag(value) == 0 {
		return nil
	}

	if timestampProvided {
		if timestamp == nil {
			return nil
		}
		if parsed, ok := parseTimestamp(timestamp); ok {
			iso := isoTimestamp(parsed)
			return &iso
		}
	}

	iso := isoTimestamp(time.Now())
	return &iso
}

// NormalizeMatchID coerces a raw match identifier into a positive integer.
func NormalizeMatchID(raw any) (int64, bool) {
	switch v := raw.(type) {
	case float64:
		if v > 0 && v == math.Trunc(v) {
			return int64(v), true
		}
	case int:
		if v > 0 {
			return int64(v), true
		}
	case int64:
		if v > 0 {
			return v, true
		}
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err == nil && parsed > 0 && parsed == math.Trunc(parsed) {
			return int64(parsed), true
		}
	}
	return 0, false
}

// CoerceJSONString passes strings through untouched and serializes everything
// else, substituting the fallback when the value is nil or unserializable.
func CoerceJSONString(value any, fallback any) string {
	if s, ok := value.(string); ok {
		return s
	}
	if value == nil {
		value = fallback
	}
	if data, err := json.Marshal(value); err == nil {
		return string(data)
	}
	if data, err := json.Marshal(fallback); err == nil {
		return string(data)
	}
	return "{}"
}

// parseJSONMaybe unpacks delta payloads that arrive as JSON-encoded strings.
func parseJSONMaybe(raw any) any {
	s, ok := raw.(string)
	if !ok {
		return raw
	}
	var decoded any
	if err := json.Unmarshal([]byte(s), &decoded); err != nil {
		return raw
	}
	return decoded
}

// PlayerDelta is a normalized roster change for one player. HasTemp records
// whether the payload carried a temp_number field at all, so an explicit null
// can be distinguished from absence when the delta is serialized.
type PlayerDelta struct {
	PlayerID   int64
	Appeared   *bool
	TempNumber *float64
	HasTemp    bool
}

// MarshalJSON emits only the fields the client actually supplied.
func (d PlayerDelta) MarshalJSON() ([]byte, error) {
	payload := map[string]any{"player_id": d.PlayerID}
	if d.Appeared != nil {
		payload["appeared"] = *d.Appeared
	}
	if d.HasTemp {
		payload["temp_number"] = d.TempNumber
	}
	return json.Marshal(payload)
}

// TempDelta is a normalized temporary-number change for one player.
type TempDelta struct {
	PlayerID   int64    `json:"player_id"`
	TempNumber *float64 `json:"temp_number"`
}

// RemovalDelta marks a player as removed from a roster or temp-number list.
type RemovalDelta struct {
	PlayerID int64 `json:"player_id"`
	Deleted  bool  `json:"deleted"`
}

func extractPlayerID(parsed any) (int64, bool) {
	obj, ok := parsed.(map[string]any)
	if !ok {
		return 0, false
	}
	for _, key := range []string{"player_id", "playerId", "id"} {
		if raw, ok := obj[key]; ok {
			// Only numeric identifiers count; the caller skips the delta
			// entirely when none is present.
			if id, ok := raw.(float64); ok && id == math.Trunc(id) {
				return int64(id), true
			}
			return 0, false
		}
	}
	return 0, false
}

// NormalizePlayerDelta extracts a roster delta from a raw payload, or nil
// when no numeric player identifier is present.
func NormalizePlayerDelta(raw any) *PlayerDelta {
	parsed := parseJSONMaybe(raw)
	playerID, ok := extractPlayerID(parsed)
	if !ok {
		return nil
	}
	obj := parsed.(map[string]any)

	delta := &PlayerDelta{PlayerID: playerID}
	for _, key := range []string{"appeared", "active", "selected"} {
		if raw, ok := obj[key]; ok {
			appeared := truthyValue(raw)
			delta.Appeared = &appeared
			break
		}
	}

	tempRaw, hasTemp := obj["temp_number"]
	if !hasTemp {
		tempRaw, hasTemp = obj["tempNumber"]
	}
	if hasTemp {
		delta.HasTemp = true
		delta.TempNumber = numberOrNil(tempRaw)
		if delta.TempNumber == nil && tempRaw != nil && tempRaw != "" {
			// Unparseable temp numbers are dropped from the delta.
			delta.HasTemp = false
		}
	}
	return delta
}

// NormalizePlayerRemoval extracts a roster removal, or nil when no numeric
// player identifier is present.
func NormalizePlayerRemoval(raw any) *RemovalDelta {
	parsed := parseJSONMaybe(raw)
	playerID, ok := extractPlayerID(parsed)
	if !ok {
		return nil
	}
	return &RemovalDelta{PlayerID: playerID, Deleted: true}
}

// NormalizeTempDelta extracts a temp-number delta. The payload must name a
// numeric player and carry a temp_number field (null clears the number);
// anything else yields nil and the caller emits no delta.
func NormalizeTempDelta(raw any) *TempDelta {
	parsed := parseJSONMaybe(raw)
	playerID, ok := extractPlayerID(parsed)
	if !ok {
		return nil
	}
	obj := parsed.(map[string]any)

	tempRaw, hasTemp := obj["temp_number"]
	if !hasTemp {
		tempRaw, hasTemp = obj["tempNumber"]
	}
	if !hasTemp {
		return nil
	}
	temp := numberOrNil(tempRaw)
	if temp == nil && tempRaw != nil && tempRaw != "" {
		return nil
	}
	return &TempDelta{PlayerID: playerID, TempNumber: temp}
}

// NormalizeTempRemoval extracts a temp-number removal.
func NormalizeTempRemoval(raw any) *RemovalDelta {
	return NormalizePlayerRemoval(raw)
}

func numberOrNil(raw any) *float64 {
	switch v := raw.(type) {
	case nil:
		return nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil
		}
		return &parsed
	case float64:
		return &v
	default:
		return nil
	}
}

func truthyValue(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case float64:
		return v != 0
	case string:
		return v != ""
	default:
		return true
	}
}
