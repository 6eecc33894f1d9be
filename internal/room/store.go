// internal/room/store.go
package room

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// RoomStore hands out exactly one Room per match id, so all transitions for a
// match funnel through a single instance and its mutex.
type RoomStore struct {
	mu     sync.Mutex
	store  Storage
	logger *logrus.Logger
	rooms  map[int64]*Room
}

// NewRoomStore returns an empty store over the given persistence layer.
func NewRoomStore(store Storage, logger *logrus.Logger) *RoomStore {
	return &RoomStore{
		store:  store,
		logger: logger,
		rooms:  make(map[int64]*Room),
	}
}

// GetOrCreate returns the room for a match, creating it on first access.
func (rs *RoomStore) GetOrCreate(matchID int64) *Room {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if r, ok := rs.rooms[matchID]; ok {
		return r
	}
	r := New(matchID, rs.store, rs.logger)
	rs.rooms[matchID] = r
	return r
}

// Forget drops the room instance after its state has been cleared.
func (rs *RoomStore) Forget(matchID int64) {
	rs.mu.Lock()
	delete(rs.rooms, matchID)
	rs.mu.Unlock()
}
