// internal/room/snapshot.go
package room

import (
	"math"
	"strconv"
	"strings"

	"github.com/Muppet1856/Volleyball-Stats-sub000/internal/matchstate"
	"github.com/Muppet1856/Volleyball-Stats-sub000/internal/models"
)

// extractRevision digs the expected revision out of a transition's `original`
// block (or a legacy save body). Callers sometimes nest the record under
// state/match/snapshot, so those are probed too.
func extractRevision(raw any) (int64, bool) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return 0, false
	}
	if rev, ok := sanitizeRevision(obj["revision"]); ok {
		return rev, true
	}
	for _, key := range []string{"state", "match", "snapshot"} {
		if nested, ok := obj[key].(map[string]any); ok {
			if rev, ok := sanitizeRevision(nested["revision"]); ok {
				return rev, true
			}
		}
	}
	return 0, false
}

// sanitizeRevision accepts non-negative integral numbers and numeric strings.
func sanitizeRevision(raw any) (int64, bool) {
	switch v := raw.(type) {
	case float64:
		if v >= 0 && v == math.Trunc(v) {
			return int64(v), true
		}
	case int:
		if v >= 0 {
			return int64(v), true
		}
	case int64:
		if v >= 0 {
			return v, true
		}
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err == nil && parsed >= 0 && parsed == math.Trunc(parsed) {
			return int64(parsed), true
		}
	}
	return 0, false
}

// nextSnapshot finds the next-state record in a transition payload. Different
// client generations label it next, match, state, or snapshot.
func nextSnapshot(payload map[string]any) *models.Match {
	for _, key := range []string{"next", "match", "state", "snapshot"} {
		if obj, ok := payload[key].(map[string]any); ok {
			return NormalizeSnapshot(obj)
		}
	}
	return nil
}

// NormalizeSnapshot coerces a raw record object into the typed row the
// guarded write persists. Every field is normalized totally; garbage input
// degrades to nulls and zero flags rather than errors.
func NormalizeSnapshot(obj map[string]any) *models.Match {
	m := &models.Match{
		Date:            snapString(obj, "date"),
		Location:        snapString(obj, "location"),
		Types:           snapBlob(obj, map[string]any{}, "types"),
		Opponent:        snapString(obj, "opponent"),
		JerseyColorHome: snapString(obj, "jersey_color_home", "jerseyColorHome"),
		JerseyColorOpp:  snapString(obj, "jersey_color_opp", "jerseyColorOpp"),
		ResultHome:      matchstate.NormalizeScore(snapRaw(obj, "result_home", "resultHome")),
		ResultOpp:       matchstate.NormalizeScore(snapRaw(obj, "result_opp", "resultOpp")),
		FirstServer:     snapString(obj, "first_server", "firstServer"),
		Players:         snapBlob(obj, []any{}, "players"),
		TempNumbers:     snapBlob(obj, map[string]any{}, "temp_numbers", "tempNumbers"),
		FinalizedSets:   snapBlob(obj, map[string]any{}, "finalized_sets", "finalizedSets"),
		IsSwapped:       matchstate.NormalizeDeletedFlag(snapRaw(obj, "is_swapped", "isSwapped")),
		Deleted:         matchstate.NormalizeDeletedFlag(snapRaw(obj, "deleted")),
	}
	return m
}

func snapRaw(obj map[string]any, keys ...string) any {
	for _, key := range keys {
		if raw, ok := obj[key]; ok && raw != nil {
			return raw
		}
	}
	return nil
}

func snapString(obj map[string]any, keys ...string) *string {
	raw := snapRaw(obj, keys...)
	switch v := raw.(type) {
	case nil:
		return nil
	case string:
		return &v
	case float64:
		s := strconv.FormatFloat(v, 'f', -1, 64)
		return &s
	case bool:
		s := strconv.FormatBool(v)
		return &s
	default:
		s := matchstate.CoerceJSONString(raw, map[string]any{})
		return &s
	}
}

func snapBlob(obj map[string]any, fallback any, keys ...string) *string {
	raw := snapRaw(obj, keys...)
	if raw == nil {
		return nil
	}
	s := matchstate.CoerceJSONString(raw, fallback)
	return &s
}
