// internal/matchstate/messages_test.go
package matchstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRequest(t *testing.T) {
	req, err := DecodeRequest([]byte(`{"match":{"set-location":{"matchId":1,"location":"Gym A"}}}`))
	require.NoError(t, err)
	assert.Equal(t, ResourceMatch, req.Resource)
	assert.Equal(t, ActionSetLocation, req.Action)
	assert.Equal(t, "Gym A", req.Data["location"])
}

func TestDecodeRequestDefaultsData(t *testing.T) {
	req, err := DecodeRequest([]byte(`{"player":{"get":null}}`))
	require.NoError(t, err)
	assert.Equal(t, ResourcePlayer, req.Resource)
	assert.Equal(t, ActionGet, req.Action)
	assert.Empty(t, req.Data)
}

func TestDecodeRequestErrors(t *testing.T) {
	_, err := DecodeRequest([]byte(`{not json`))
	assert.ErrorContains(t, err, "invalid JSON payload")

	_, err = DecodeRequest([]byte(`{"unknown":{"get":{}}}`))
	assert.ErrorContains(t, err, "missing resource")

	_, err = DecodeRequest([]byte(`{"match":{"get":{}},"player":{"get":{}}}`))
	assert.ErrorContains(t, err, "multiple resources")

	_, err = DecodeRequest([]byte(`{"set":{"launch":{}}}`))
	assert.ErrorContains(t, err, "unknown action for set")

	_, err = DecodeRequest([]byte(`{"match":{}}`))
	assert.ErrorContains(t, err, "missing action")
}

func TestDecodeRequestIgnoresActionsFromOtherResources(t *testing.T) {
	// set-lname belongs to player; under match it must be rejected, not
	// silently routed.
	_, err := DecodeRequest([]byte(`{"match":{"set-lname":{"matchId":1}}}`))
	assert.ErrorContains(t, err, "unknown action for match")
}
