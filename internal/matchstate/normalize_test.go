// internal/matchstate/normalize_test.go
package matchstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeScore(t *testing.T) {
	require.NotNil(t, NormalizeScore("7"))
	assert.Equal(t, 7.0, *NormalizeScore("7"))
	assert.Nil(t, NormalizeScore(""))
	assert.Nil(t, NormalizeScore("abc"))
	assert.Nil(t, NormalizeScore(nil))

	require.NotNil(t, NormalizeScore(true))
	assert.Equal(t, 1.0, *NormalizeScore(true))
	require.NotNil(t, NormalizeScore(false))
	assert.Equal(t, 0.0, *NormalizeScore(false))

	require.NotNil(t, NormalizeScore(12.5))
	assert.Equal(t, 12.5, *NormalizeScore(12.5))
	assert.Nil(t, NormalizeScore(map[string]any{}))
}

func TestNormalizeTimeoutFlagIdempotent(t *testing.T) {
	inputs := []any{true, false, 0.0, 1.0, "0", "1", "", nil}
	for _, in := range inputs {
		once := NormalizeTimeoutFlag(in)
		assert.Equal(t, once, NormalizeTimeoutFlag(once), "input %v", in)
	}
}

func TestNormalizeTimeoutFlag(t *testing.T) {
	assert.Equal(t, 0, NormalizeTimeoutFlag(""))
	assert.Equal(t, 1, NormalizeTimeoutFlag("taken")) // non-numeric non-empty counts as raised
	assert.Equal(t, 0, NormalizeTimeoutFlag("0"))
	assert.Equal(t, 1, NormalizeTimeoutFlag("1"))
	assert.Equal(t, 0, NormalizeTimeoutFlag(nil))
	assert.Equal(t, 1, NormalizeTimeoutFlag(true))
}

func TestNormalizeDeletedFlag(t *testing.T) {
	assert.Equal(t, 1, NormalizeDeletedFlag("true"))
	assert.Equal(t, 1, NormalizeDeletedFlag("1"))
	assert.Equal(t, 0, NormalizeDeletedFlag("yes")) // strings other than true/1 do not count
	assert.Equal(t, 0, NormalizeDeletedFlag(nil))
	assert.Equal(t, 1, NormalizeDeletedFlag(true))
	assert.Equal(t, 0, NormalizeDeletedFlag(0.0))
	assert.Equal(t, 1, NormalizeDeletedFlag(map[string]any{}))
}

func TestNormalizeTimeoutTimestamp(t *testing.T) {
	// A cleared flag always nulls the timestamp, field or not.
	assert.Nil(t, NormalizeTimeoutTimestamp(0.0, true, "2024-05-01T10:00:00Z"))
	assert.Nil(t, NormalizeTimeoutTimestamp(false, false, nil))

	// Raised flag without a timestamp field stamps the current time.
	stamped := NormalizeTimeoutTimestamp(1.0, false, nil)
	require.NotNil(t, stamped)
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z$`, *stamped)

	// Explicit null stays null.
	assert.Nil(t, NormalizeTimeoutTimestamp(1.0, true, nil))

	// A supplied parseable timestamp is canonicalized.
	supplied := NormalizeTimeoutTimestamp(1.0, true, "2024-05-01T10:00:00Z")
	require.NotNil(t, supplied)
	assert.Equal(t, "2024-05-01T10:00:00.000Z", *supplied)

	// Unparseable timestamps fall back to the current time.
	fallback := NormalizeTimeoutTimestamp(1.0, true, "not a date")
	require.NotNil(t, fallback)
	assert.Regexp(t, `\.\d{3}Z$`, *fallback)

	// Epoch milliseconds parse too.
	epoch := NormalizeTimeoutTimestamp(1.0, true, 1714557600000.0)
	require.NotNil(t, epoch)
	assert.Equal(t, "2024-05-01T10:00:00.000Z", *epoch)
}

func TestNormalizeMatchID(t *testing.T) {
	id, ok := NormalizeMatchID(42.0)
	require.True(t, ok)
	assert.Equal(t, int64(42), id)

	id, ok = NormalizeMatchID("17")
	require.True(t, ok)
	assert.Equal(t, int64(17), id)

	_, ok = NormalizeMatchID(0.0)
	assert.False(t, ok)
	_, ok = NormalizeMatchID(-3.0)
	assert.False(t, ok)
	_, ok = NormalizeMatchID(3.5)
	assert.False(t, ok)
	_, ok = NormalizeMatchID("abc")
	assert.False(t, ok)
	_, ok = NormalizeMatchID(nil)
	assert.False(t, ok)
}

func TestCoerceJSONString(t *testing.T) {
	assert.Equal(t, `{"a":1}`, CoerceJSONString(`{"a":1}`, map[string]any{}))
	assert.Equal(t, `{"a":1}`, CoerceJSONString(map[string]any{"a": 1}, map[string]any{}))
	assert.Equal(t, `{}`, CoerceJSONString(nil, map[string]any{}))
	assert.Equal(t, `[]`, CoerceJSONString(nil, []any{}))
}

func TestNormalizePlayerDelta(t *testing.T) {
	delta := NormalizePlayerDelta(map[string]any{"player_id": 9.0, "appeared": true, "temp_number": 14.0})
	require.NotNil(t, delta)
	assert.Equal(t, int64(9), delta.PlayerID)
	require.NotNil(t, delta.Appeared)
	assert.True(t, *delta.Appeared)
	require.True(t, delta.HasTemp)
	assert.Equal(t, 14.0, *delta.TempNumber)

	// JSON-string payloads are unpacked before extraction.
	delta = NormalizePlayerDelta(`{"playerId": 3, "active": 1}`)
	require.NotNil(t, delta)
	assert.Equal(t, int64(3), delta.PlayerID)
	require.NotNil(t, delta.Appeared)
	assert.True(t, *delta.Appeared)
	assert.False(t, delta.HasTemp)

	// No numeric identifier means no delta at all.
	assert.Nil(t, NormalizePlayerDelta(map[string]any{"appeared": true}))
	assert.Nil(t, NormalizePlayerDelta(map[string]any{"player_id": "nine"}))
	assert.Nil(t, NormalizePlayerDelta(nil))
}

func TestNormalizeTempDelta(t *testing.T) {
	delta := NormalizeTempDelta(map[string]any{"player_id": 5.0, "temp_number": 21.0})
	require.NotNil(t, delta)
	assert.Equal(t, int64(5), delta.PlayerID)
	assert.Equal(t, 21.0, *delta.TempNumber)

	// An explicit null clears the number but still emits a delta.
	delta = NormalizeTempDelta(map[string]any{"player_id": 5.0, "temp_number": nil})
	require.NotNil(t, delta)
	assert.Nil(t, delta.TempNumber)

	// Missing temp_number field yields nothing.
	assert.Nil(t, NormalizeTempDelta(map[string]any{"player_id": 5.0}))
	assert.Nil(t, NormalizeTempDelta(map[string]any{"temp_number": 21.0}))
}
