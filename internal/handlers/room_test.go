// internal/handlers/room_test.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Muppet1856/Volleyball-Stats-sub000/internal/models"
	"github.com/Muppet1856/Volleyball-Stats-sub000/internal/room"
)

type fakeRoomStorage struct {
	match *models.Match
}

func (f *fakeRoomStorage) FindMatch(_ context.Context, matchID int64) (*models.Match, error) {
	if f.match == nil || f.match.ID != matchID {
		return nil, nil
	}
	copied := *f.match
	return &copied, nil
}

func (f *fakeRoomStorage) UpdateMatchSnapshot(_ context.Context, matchID int64, next *models.Match, revision, expectedRevision int64) (bool, error) {
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

func newRoomHandler() (http.HandlerFunc, *fakeRoomStorage) {
	storage := &fakeRoomStorage{match: &models.Match{ID: 1}}
	rooms := room.NewRoomStore(storage, testLogger())
	return RoomHandler(testLogger(), rooms), storage
}

func postJSON(t *testing.T, handler http.HandlerFunc, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestRoomTransitionSuccess(t *testing.T) {
	handler, storage := newRoomHandler()

	rec := postJSON(t, handler, http.MethodPost, "/room/1/transitions",
		`{"original":{"revision":0},"next":{"opponent":"Eagles"}}`)

	require.Equal(t, http.StatusOK, rec.Code)
	body := map[string]any{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["conflict"])
	assert.Equal(t, 1.0, body["revision"])
	assert.Equal(t, int64(1), storage.match.Revision)
}

func TestRoomTransitionConflict(t *testing.T) {
	handler, storage := newRoomHandler()

	rec := postJSON(t, handler, http.MethodPost, "/room/1/transitions",
		`{"original":{"revision":0},"next":{"opponent":"Eagles"}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, handler, http.MethodPost, "/room/1/transitions",
		`{"original":{"revision":0},"next":{"location":"Gym B"}}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	body := map[string]any{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["conflict"])
	assert.Equal(t, int64(1), storage.match.Revision)
}

func TestRoomTransitionMissingMatch(t *testing.T) {
	handler, _ := newRoomHandler()

	rec := postJSON(t, handler, http.MethodPost, "/room/7/transitions",
		`{"original":{"revision":0},"next":{"opponent":"Eagles"}}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRoomLegacySave(t *testing.T) {
	handler, storage := newRoomHandler()

	rec := postJSON(t, handler, http.MethodPut, "/room/1/state", `{"opponent":"Eagles"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, storage.match.Opponent)
	assert.Equal(t, "Eagles", *storage.match.Opponent)
}

func TestRoomDeleteState(t *testing.T) {
	handler, _ := newRoomHandler()

	rec := postJSON(t, handler, http.MethodDelete, "/room/1/state", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.Bytes())
}

func TestRoomBadPaths(t *testing.T) {
	handler, _ := newRoomHandler()

	rec := postJSON(t, handler, http.MethodPost, "/room//transitions", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, handler, http.MethodPost, "/room/abc/transitions", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, handler, http.MethodGet, "/room/1/state", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = postJSON(t, handler, http.MethodPost, "/room/1/transitions", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
