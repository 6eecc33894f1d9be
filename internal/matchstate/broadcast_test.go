// internal/matchstate/broadcast_test.go
package matchstate

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Muppet1856/Volleyball-Stats-sub000/internal/models"
)

// fakeRecords serves canned records to the composer.
type fakeRecords struct {
	match       models.Result
	player      models.Result
	set         models.Result
	sets        models.Result
	tempNumbers *string
	tempFound   bool
}

func (f *fakeRecords) GetMatch(context.Context, int64) models.Result  { return f.match }
func (f *fakeRecords) GetPlayer(context.Context, int64) models.Result { return f.player }
func (f *fakeRecords) GetSet(context.Context, int64) models.Result    { return f.set }
func (f *fakeRecords) GetSets(context.Context, *int64) models.Result  { return f.sets }
func (f *fakeRecords) GetMatchTempNumbers(context.Context, int64) (*string, bool, error) {
	return f.tempNumbers, f.tempFound, nil
}

func decodeFrame(t *testing.T, data []byte) map[string]any {
	t.Helper()
	frame := map[string]any{}
	require.NoError(t, json.Unmarshal(data, &frame))
	return frame
}

func int64p(v int64) *int64 { return &v }

func TestPrepareDeleteIsMinimal(t *testing.T) {
	c := NewComposer(&fakeRecords{})
	msg, err := c.Prepare(context.Background(), BroadcastParams{
		Resource: ResourceMatch,
		Action:   ActionDelete,
		ID:       int64p(4),
	})
	require.NoError(t, err)
	require.NotNil(t, msg)

	frame := decodeFrame(t, msg)
	assert.Equal(t, "delete", frame["type"])
	assert.Equal(t, "match", frame["resource"])
	assert.Equal(t, 4.0, frame["id"])
	assert.NotContains(t, frame, "changes")
	assert.NotContains(t, frame, "data")
}

func TestPrepareSuppressesEmptyChangeSet(t *testing.T) {
	c := NewComposer(&fakeRecords{})

	// A roster delta without a numeric player id normalizes to nothing.
	msg, err := c.Prepare(context.Background(), BroadcastParams{
		Resource: ResourceMatch,
		Action:   ActionAddPlayer,
		ID:       int64p(1),
		MatchID:  int64p(1),
		Data:     map[string]any{"player": map[string]any{"appeared": true}},
	})
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestPrepareCreateCarriesFullRecord(t *testing.T) {
	records := &fakeRecords{
		player: models.JSONResult(200, &models.Player{ID: 7}),
	}
	c := NewComposer(records)

	msg, err := c.Prepare(context.Background(), BroadcastParams{
		Resource: ResourcePlayer,
		Action:   ActionCreate,
		ID:       int64p(7),
	})
	require.NoError(t, err)
	require.NotNil(t, msg)

	frame := decodeFrame(t, msg)
	assert.Equal(t, "update", frame["type"])
	assert.Equal(t, "player", frame["resource"])
	data, ok := frame["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 7.0, data["id"])
}

func TestPrepareScoreUpdateStampsEventTimestamp(t *testing.T) {
	c := NewComposer(&fakeRecords{})
	msg, err := c.Prepare(context.Background(), BroadcastParams{
		Resource: ResourceSet,
		Action:   ActionSetHomeScore,
		ID:       int64p(2),
		MatchID:  int64p(1),
		Data:     map[string]any{"homeScore": "15"},
	})
	require.NoError(t, err)
	require.NotNil(t, msg)

	frame := decodeFrame(t, msg)
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z$`, frame["eventTimestamp"])
	changes, ok := frame["changes"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 15.0, changes["home_score"])
}

func TestPrepareLocationUpdateHasNoEventTimestamp(t *testing.T) {
	c := NewComposer(&fakeRecords{})
	msg, err := c.Prepare(context.Background(), BroadcastParams{
		Resource: ResourceMatch,
		Action:   ActionSetLocation,
		ID:       int64p(1),
		MatchID:  int64p(1),
		Data:     map[string]any{"location": "Gym B"},
	})
	require.NoError(t, err)
	require.NotNil(t, msg)

	frame := decodeFrame(t, msg)
	assert.NotContains(t, frame, "eventTimestamp")
}

func TestPrepareSetIsFinalRefreshesAllSets(t *testing.T) {
	records := &fakeRecords{
		sets: models.JSONResult(200, []*models.Set{{ID: 1, MatchID: 3, SetNumber: 1}}),
	}
	c := NewComposer(records)

	msg, err := c.Prepare(context.Background(), BroadcastParams{
		Resource: ResourceSet,
		Action:   ActionSetIsFinal,
		MatchID:  int64p(3),
		Data:     map[string]any{"matchId": 3.0, "finalizedSets": `{"1":true}`},
	})
	require.NoError(t, err)
	require.NotNil(t, msg)

	frame := decodeFrame(t, msg)
	assert.Equal(t, "sets", frame["resource"])
	assert.Equal(t, 3.0, frame["matchId"])
	data, ok := frame["data"].([]any)
	require.True(t, ok)
	assert.Len(t, data, 1)
}

func TestPrepareTimeoutChangeCarriesTimestampConvention(t *testing.T) {
	c := NewComposer(&fakeRecords{})

	// Raised flag, no timestamp field: a fresh stamp goes out.
	msg, err := c.Prepare(context.Background(), BroadcastParams{
		Resource: ResourceSet,
		Action:   ActionSetHomeTimeout,
		ID:       int64p(2),
		MatchID:  int64p(1),
		Data:     map[string]any{"value": 1.0, "timeoutNumber": 2.0},
	})
	require.NoError(t, err)
	frame := decodeFrame(t, msg)
	changes := frame["changes"].(map[string]any)
	assert.Equal(t, 1.0, changes["home_timeout_2"])
	assert.NotNil(t, changes["timeout_started_at"])

	// Cleared flag always nulls the timestamp.
	msg, err = c.Prepare(context.Background(), BroadcastParams{
		Resource: ResourceSet,
		Action:   ActionSetOppTimeout,
		ID:       int64p(2),
		MatchID:  int64p(1),
		Data:     map[string]any{"value": 0.0, "timeoutStartedAt": "2024-05-01T10:00:00Z"},
	})
	require.NoError(t, err)
	frame = decodeFrame(t, msg)
	changes = frame["changes"].(map[string]any)
	assert.Equal(t, 0.0, changes["opp_timeout_1"])
	assert.Nil(t, changes["timeout_started_at"])
}

func TestPrepareRosterReplaceShipsTempNumbers(t *testing.T) {
	temps := `[{"player_id":2,"temp_number":30}]`
	c := NewComposer(&fakeRecords{tempNumbers: &temps, tempFound: true})

	msg, err := c.Prepare(context.Background(), BroadcastParams{
		Resource: ResourceMatch,
		Action:   ActionSetPlayers,
		ID:       int64p(1),
		MatchID:  int64p(1),
		Data:     map[string]any{"players": []any{map[string]any{"player_id": 2.0}}},
	})
	require.NoError(t, err)
	frame := decodeFrame(t, msg)
	changes := frame["changes"].(map[string]any)
	assert.Equal(t, `[{"player_id":2}]`, changes["players"])
	assert.Equal(t, temps, changes["temp_numbers"])
}
