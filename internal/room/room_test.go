// internal/room/room_test.go
package room

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Muppet1856/Volleyball-Stats-sub000/internal/models"
)

// fakeStorage is an in-memory single-match store honoring the revision guard.
type fakeStorage struct {
	match *models.Match
}

func (f *fakeStorage) FindMatch(_ context.Context, matchID int64) (*models.Match, error) {
	if f.match == nil || f.match.ID != matchID {
		return nil, nil
	}
	copied := *f.match
	return &copied, nil
}

func (f *fakeStorage) UpdateMatchSnapshot(_ context.Context, matchID int64, next *models.Match, revision, expectedRevision int64) (bool, error) {
	if f.match == nil || f.match.ID != matchID || f.match.Revision != expectedRevision {
		return false, nil
	}
	stored := *next
	stored.ID = matchID
	stored.Revision = revision
	f.match = &stored
	return true, nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func strp(s string) *string { return &s }

func newTestRoom() (*Room, *fakeStorage) {
	storage := &fakeStorage{match: &models.Match{ID: 1, Opponent: strp("Hawks")}}
	return New(1, storage, testLogger()), storage
}

func transitionPayload(expectedRevision int64, fields map[string]any) map[string]any {
	next := map[string]any{}
	for k, v := range fields {
		next[k] = v
	}
	return map[string]any{
		"original": map[string]any{"revision": float64(expectedRevision)},
		"next":     next,
	}
}

func decodeBody(t *testing.T, body any) map[string]any {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	decoded := map[string]any{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	return decoded
}

func TestTransitionRevisionMonotonicity(t *testing.T) {
	r, storage := newTestRoom()
	ctx := context.Background()

	for i := int64(0); i < 3; i++ {
		res := r.Transition(ctx, transitionPayload(i, map[string]any{"opponent": "Eagles"}))
		require.Equal(t, 200, res.Status)
		body := decodeBody(t, res.Body)
		assert.Equal(t, false, body["conflict"])
		assert.Equal(t, float64(i+1), body["revision"])
	}
	assert.Equal(t, int64(3), storage.match.Revision)
	assert.Equal(t, int64(3), r.Revision())
}

func TestTransitionStaleRevisionConflicts(t *testing.T) {
	r, storage := newTestRoom()
	ctx := context.Background()

	res := r.Transition(ctx, transitionPayload(0, map[string]any{"opponent": "Eagles"}))
	require.Equal(t, 200, res.Status)

	// Replaying against the now-stale revision must not change anything.
	res = r.Transition(ctx, transitionPayload(0, map[string]any{"location": "Gym B"}))
	assert.Equal(t, 409, res.Status)
	body := decodeBody(t, res.Body)
	assert.Equal(t, true, body["conflict"])
	assert.Equal(t, 1.0, body["revision"])

	assert.Equal(t, int64(1), storage.match.Revision)
	require.NotNil(t, storage.match.Opponent)
	assert.Equal(t, "Eagles", *storage.match.Opponent)
	assert.Nil(t, storage.match.Location, "conflicting write must not partially apply")
}

func TestTransitionIdempotentReplay(t *testing.T) {
	r, storage := newTestRoom()
	ctx := context.Background()

	payload := transitionPayload(0, map[string]any{"opponent": "Eagles"})
	payload["idempotencyKey"] = "retry-1"

	first := r.Transition(ctx, payload)
	require.Equal(t, 200, first.Status)

	second := r.Transition(ctx, payload)
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.Body.(json.RawMessage), second.Body.(json.RawMessage),
		"replay must be byte-identical")
	assert.Equal(t, int64(1), storage.match.Revision, "replay must not increment the revision")
}

func TestTransitionIdempotencyCacheEvictsOldest(t *testing.T) {
	r, _ := newTestRoom()
	ctx := context.Background()

	for i := 0; i < idempotencyCacheCap+1; i++ {
		payload := transitionPayload(int64(i), map[string]any{"opponent": "Eagles"})
		payload["idempotencyKey"] = "key-" + string(rune('a'+i))
		require.Equal(t, 200, r.Transition(ctx, payload).Status)
	}

	assert.Len(t, r.idemCache, idempotencyCacheCap)
	_, oldestPresent := r.idemCache["key-a"]
	assert.False(t, oldestPresent, "oldest entry is evicted first")
}

func TestTransitionMissingMatch(t *testing.T) {
	storage := &fakeStorage{}
	r := New(1, storage, testLogger())

	res := r.Transition(context.Background(), transitionPayload(0, map[string]any{"opponent": "Eagles"}))
	assert.Equal(t, 404, res.Status)
}

func TestTransitionScenario(t *testing.T) {
	// Create (revision 0) -> opponent write at revision 0 succeeds ->
	// stale location write at revision 0 conflicts, revision stays 1.
	r, storage := newTestRoom()
	ctx := context.Background()

	res := r.Transition(ctx, transitionPayload(0, map[string]any{"opponent": "Falcons"}))
	require.Equal(t, 200, res.Status)
	assert.Equal(t, int64(1), r.Revision())

	res = r.Transition(ctx, transitionPayload(0, map[string]any{"location": "Away"}))
	assert.Equal(t, 409, res.Status)
	assert.Equal(t, int64(1), r.Revision())
	assert.Equal(t, int64(1), storage.match.Revision)
}

func TestLegacySaveBumpsRevision(t *testing.T) {
	r, storage := newTestRoom()
	ctx := context.Background()

	res := r.LegacySave(ctx, map[string]any{"opponent": "Eagles", "deleted": false})
	require.Equal(t, 200, res.Status)
	assert.Equal(t, int64(1), storage.match.Revision)
	require.NotNil(t, storage.match.Opponent)
	assert.Equal(t, "Eagles", *storage.match.Opponent)
}

func TestLegacySaveStaleRevisionConflicts(t *testing.T) {
	r, storage := newTestRoom()
	ctx := context.Background()

	res := r.Transition(ctx, transitionPayload(0, map[string]any{"opponent": "Eagles"}))
	require.Equal(t, 200, res.Status)
	require.Equal(t, int64(1), r.Revision())

	// A full-record save naming the superseded revision answers with the
	// authoritative state instead of overwriting it.
	res = r.LegacySave(ctx, map[string]any{"revision": float64(0), "opponent": "Stale Overwrite"})
	assert.Equal(t, 409, res.Status)
	body := decodeBody(t, res.Body)
	assert.Equal(t, true, body["conflict"])
	assert.Equal(t, 1.0, body["revision"])

	assert.Equal(t, int64(1), storage.match.Revision)
	require.NotNil(t, storage.match.Opponent)
	assert.Equal(t, "Eagles", *storage.match.Opponent)

	// Naming the current revision still goes through.
	res = r.LegacySave(ctx, map[string]any{"revision": float64(1), "opponent": "Falcons"})
	require.Equal(t, 200, res.Status)
	assert.Equal(t, int64(2), storage.match.Revision)
	require.NotNil(t, storage.match.Opponent)
	assert.Equal(t, "Falcons", *storage.match.Opponent)
}

func TestTransitionConflictNotReplayedForKey(t *testing.T) {
	r, storage := newTestRoom()
	ctx := context.Background()

	res := r.Transition(ctx, transitionPayload(0, map[string]any{"opponent": "Eagles"}))
	require.Equal(t, 200, res.Status)

	stale := transitionPayload(0, map[string]any{"location": "Gym B"})
	stale["idempotencyKey"] = "save-77"
	res = r.Transition(ctx, stale)
	require.Equal(t, 409, res.Status)

	// Rebasing onto the conflict's revision and retrying with the same key
	// must reach storage, not replay the cached 409.
	rebased := transitionPayload(1, map[string]any{"location": "Gym B"})
	rebased["idempotencyKey"] = "save-77"
	res = r.Transition(ctx, rebased)
	assert.Equal(t, 200, res.Status)
	assert.Equal(t, int64(2), storage.match.Revision)
	require.NotNil(t, storage.match.Location)
	assert.Equal(t, "Gym B", *storage.match.Location)
}

func TestDeleteClearsCaches(t *testing.T) {
	r, _ := newTestRoom()
	ctx := context.Background()

	payload := transitionPayload(0, map[string]any{"opponent": "Eagles"})
	payload["idempotencyKey"] = "retry-1"
	require.Equal(t, 200, r.Transition(ctx, payload).Status)

	res := r.Delete()
	assert.Equal(t, 204, res.Status)
	assert.Equal(t, int64(0), r.Revision())
	assert.Empty(t, r.idemCache)

	// The cleared idempotency key no longer replays; the transition hits
	// storage again at the reloaded revision.
	payload = transitionPayload(1, map[string]any{"opponent": "Falcons"})
	payload["idempotencyKey"] = "retry-1"
	res = r.Transition(ctx, payload)
	assert.Equal(t, 200, res.Status)
}

func TestNormalizeSnapshotCoercesFields(t *testing.T) {
	m := NormalizeSnapshot(map[string]any{
		"opponent":        "Eagles",
		"result_home":     "2",
		"resultOpp":       1.0,
		"players":         []any{map[string]any{"player_id": 4.0}},
		"finalizedSets":   map[string]any{"1": true},
		"is_swapped":      true,
		"deleted":         "false",
		"jerseyColorHome": "blue",
	})

	require.NotNil(t, m.Opponent)
	assert.Equal(t, "Eagles", *m.Opponent)
	require.NotNil(t, m.ResultHome)
	assert.Equal(t, 2.0, *m.ResultHome)
	require.NotNil(t, m.ResultOpp)
	assert.Equal(t, 1.0, *m.ResultOpp)
	require.NotNil(t, m.Players)
	assert.Equal(t, `[{"player_id":4}]`, *m.Players)
	require.NotNil(t, m.FinalizedSets)
	assert.Equal(t, `{"1":true}`, *m.FinalizedSets)
	assert.Equal(t, 1, m.IsSwapped)
	assert.Equal(t, 0, m.Deleted)
	require.NotNil(t, m.JerseyColorHome)
	assert.Equal(t, "blue", *m.JerseyColorHome)
	assert.Nil(t, m.Location)
}
