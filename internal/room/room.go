// internal/room/room.go
//
// A Room holds the authoritative snapshot of one match plus its monotonic
// revision counter, and rejects stale writes with a conflict payload carrying
// the current state so the caller can rebase and retry.
package room

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Muppet1856/Volleyball-Stats-sub000/internal/models"
)

// idempotencyCacheCap bounds the per-room replay cache; the oldest entry is
// evicted first.
const idempotencyCacheCap = 20

// Storage is the persistence surface a room needs. *database.Store satisfies
// it; tests substitute in-memory fakes.
type Storage interface {
	// FindMatch returns (nil, nil) when the match does not exist.
	FindMatch(ctx context.Context, matchID int64) (*models.Match, error)
	// UpdateMatchSnapshot applies a guarded full-record write; false with a
	// nil error means the revision guard did not match and nothing changed.
	UpdateMatchSnapshot(ctx context.Context, matchID int64, next *models.Match, revision, expectedRevision int64) (bool, error)
}

type cachedResponse struct {
	status int
	body   []byte
}

// Room coordinates optimistic-concurrency writes for a single match. The
// mutex serializes transitions so the revision check and the guarded write
// behave as one atomic step; the storage-level revision guard backstops any
// writer that bypasses this instance.
type Room struct {
	mu      sync.Mutex
	matchID int64
	store   Storage
	logger  *logrus.Logger

	loaded   bool
	revision int64
	state    *models.Match

	idemOrder []string
	idemCache map[string]cachedResponse
}

// New returns the room for one match id. State is loaded lazily on first use.
func New(matchID int64, store Storage, logger *logrus.Logger) *Room {
	return &Room{
		matchID:   matchID,
		store:     store,
		logger:    logger,
		idemCache: make(map[string]cachedResponse),
	}
}

// load fills the cached snapshot from storage. Returns false when the match
// row does not exist.
func (r *Room) load(ctx context.Context) (bool, error) {
	if r.loaded {
		return true, nil
	}
	m, err := r.store.FindMatch(ctx, r.matchID)
	if err != nil {
		return false, err
	}
	if m == nil {
		return false, nil
	}
	r.state = m
	r.revision = m.Revision
	r.loaded = true
	return true, nil
}

// Transition applies one full-snapshot write guarded by the caller's expected
// revision. A stale revision yields a 409 conflict with the authoritative
// state; the write is never partially applied.
func (r *Room) Transition(ctx context.Context, payload map[string]any) models.Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	idemKey, _ := payload["idempotencyKey"].(string)
	if idemKey != "" {
		if cached, ok := r.idemCache[idemKey]; ok {
			return models.Result{Status: cached.status, Body: json.RawMessage(cached.body)}
		}
	}

	found, err := r.load(ctx)
	if err != nil {
		return models.ErrorResult(500, "Error loading match state: "+err.Error())
	}
	if !found {
		return models.ErrorResult(404, "Match not found")
	}

	expected := r.revision
	if provided, ok := extractRevision(payload["original"]); ok {
		expected = provided
	}
	if expected != r.revision {
		return r.conflict()
	}

	next := nextSnapshot(payload)
	if next == nil {
		return models.ErrorResult(400, "Transition payload carries no next state")
	}

	return r.remember(idemKey, r.persistState(ctx, next, r.revision+1, r.revision))
}

// persistState writes the full record under the revision guard and refreshes
// the cache from the persisted row. A guarded write that changes zero rows
// means another writer won the race; the last known state is returned as a
// conflict.
func (r *Room) persistState(ctx context.Context, next *models.Match, revision, expectedRevision int64) models.Result {
	applied, err := r.store.UpdateMatchSnapshot(ctx, r.matchID, next, revision, expectedRevision)
	if err != nil {
		return models.ErrorResult(500, "Error persisting match state: "+err.Error())
	}
	if !applied {
		r.logger.WithFields(logrus.Fields{"match": r.matchID, "revision": expectedRevision}).
			Warn("snapshot write lost race")
		return r.conflict()
	}

	persisted, err := r.store.FindMatch(ctx, r.matchID)
	if err != nil {
		return models.ErrorResult(500, "Error re-reading match state: "+err.Error())
	}
	if persisted == nil {
		// Deleted between write and re-read.
		return r.conflict()
	}
	r.state = persisted
	r.revision = persisted.Revision
	r.loaded = true

	return models.JSONResult(200, map[string]any{
		"conflict": false,
		"revision": r.revision,
		"state":    r.state,
		"match":    r.state,
		"id":       r.matchID,
	})
}

func (r *Room) conflict() models.Result {
	return models.JSONResult(409, map[string]any{
		"conflict": true,
		"revision": r.revision,
		"state":    r.state,
		"match":    r.state,
		"id":       r.matchID,
	})
}

// remember caches the marshaled response under the idempotency key so a retry
// replays byte-identical bytes instead of reapplying. Conflicts are never
// cached; a client that rebases and retries with the same key must reach
// storage again.
func (r *Room) remember(idemKey string, res models.Result) models.Result {
	if idemKey == "" || res.Status == 409 {
		return res
	}
	body, err := json.Marshal(res.Body)
	if err != nil {
		return res
	}
	if _, exists := r.idemCache[idemKey]; !exists {
		r.idemOrder = append(r.idemOrder, idemKey)
		if len(r.idemOrder) > idempotencyCacheCap {
			oldest := r.idemOrder[0]
			r.idemOrder = r.idemOrder[1:]
			delete(r.idemCache, oldest)
		}
	}
	r.idemCache[idemKey] = cachedResponse{status: res.Status, body: body}
	return models.Result{Status: res.Status, Body: json.RawMessage(body)}
}

// LegacySave handles the old full-record save path: the payload is the record
// itself with an optional explicit revision. A payload naming a revision other
// than the current one is rejected with the authoritative state, same as a
// stale transition; omitting the revision saves against the current snapshot.
func (r *Room) LegacySave(ctx context.Context, payload map[string]any) models.Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	found, err := r.load(ctx)
	if err != nil {
		return models.ErrorResult(500, "Error loading match state: "+err.Error())
	}
	if !found {
		return models.ErrorResult(404, "Match not found")
	}

	if provided, ok := extractRevision(payload); ok && provided != r.revision {
		return r.conflict()
	}
	return r.persistState(ctx, NormalizeSnapshot(payload), r.revision+1, r.revision)
}

// Delete clears the cached snapshot and every idempotency entry. In-flight
// transitions are not interrupted; they fail on the storage guard instead.
func (r *Room) Delete() models.Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.loaded = false
	r.state = nil
	r.revision = 0
	r.idemOrder = nil
	r.idemCache = make(map[string]cachedResponse)
	return models.Result{Status: 204, Body: nil}
}

// Revision reports the cached revision, for tests and logging.
func (r *Room) Revision() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.revision
}
