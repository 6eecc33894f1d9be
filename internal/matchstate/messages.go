// internal/matchstate/messages.go
package matchstate

import (
	"encoding/json"
	"fmt"
)

// Resource names the three record kinds the wire protocol mutates.
type Resource string

const (
	ResourceMatch  Resource = "match"
	ResourcePlayer Resource = "player"
	ResourceSet    Resource = "set"
)

// Action names one protocol operation on a resource.
type Action string

const (
	ActionSubscribe   Action = "subscribe"
	ActionUnsubscribe Action = "unsubscribe"
	ActionCreate      Action = "create"
	ActionGet         Action = "get"
	ActionDelete      Action = "delete"

	ActionSetLocation      Action = "set-location"
	ActionSetDateTime      Action = "set-date-time"
	ActionSetOppName       Action = "set-opp-name"
	ActionSetType          Action = "set-type"
	ActionSetResult        Action = "set-result"
	ActionSetPlayers       Action = "set-players"
	ActionAddPlayer        Action = "add-player"
	ActionUpdatePlayer     Action = "update-player"
	ActionRemovePlayer     Action = "remove-player"
	ActionAddTempNumber    Action = "add-temp-number"
	ActionUpdateTempNumber Action = "update-temp-number"
	ActionRemoveTempNumber Action = "remove-temp-number"
	ActionSetHomeColor     Action = "set-home-color"
	ActionSetOppColor      Action = "set-opp-color"
	ActionSetFirstServer   Action = "set-first-server"
	ActionSetSwap          Action = "set-swap"
	ActionSetDeleted       Action = "set-deleted"

	ActionSetLastName Action = "set-lname"
	ActionSetInitial  Action = "set-fname"
	ActionSetNumber   Action = "set-number"

	ActionSetHomeScore   Action = "set-home-score"
	ActionSetOppScore    Action = "set-opp-score"
	ActionSetHomeTimeout Action = "set-home-timeout"
	ActionSetOppTimeout  Action = "set-opp-timeout"
	ActionSetIsFinal     Action = "set-is-final"
)

// actionsByResource fixes the set of recognized (resource, action) pairs.
// Request decoding probes these explicitly rather than trusting whatever key
// order the sender's JSON object happens to have.
var actionsByResource = map[Resource][]Action{
	ResourceMatch: {
		ActionSubscribe, ActionUnsubscribe, ActionCreate,
		ActionSetLocation, ActionSetDateTime, ActionSetOppName, ActionSetType,
		ActionSetResult, ActionSetPlayers,
		ActionAddPlayer, ActionUpdatePlayer, ActionRemovePlayer,
		ActionAddTempNumber, ActionUpdateTempNumber, ActionRemoveTempNumber,
		ActionSetHomeColor, ActionSetOppColor, ActionSetFirstServer,
		ActionSetSwap, ActionSetDeleted,
		ActionGet, ActionDelete,
	},
	ResourcePlayer: {
		ActionCreate, ActionSetLastName, ActionSetInitial, ActionSetNumber,
		ActionGet, ActionDelete,
	},
	ResourceSet: {
		ActionCreate, ActionSetHomeScore, ActionSetOppScore,
		ActionSetHomeTimeout, ActionSetOppTimeout, ActionSetIsFinal,
		ActionGet, ActionDelete,
	},
}

// Request is one decoded inbound frame: {"<resource>":{"<action>":{...}}}.
// Data holds the action payload as decoded JSON; absent or null payloads
// decode to an empty map.
type Request struct {
	Resource Resource
	Action   Action
	Data     map[string]any
}

// envelope mirrors the wire shape for decoding; exactly one resource key must
// be present.
type envelope struct {
	Match  map[string]json.RawMessage `json:"match"`
	Player map[string]json.RawMessage `json:"player"`
	Set    map[string]json.RawMessage `json:"set"`
}

// DecodeRequest parses an inbound frame into a typed Request. Malformed JSON,
// a missing or ambiguous resource key, and unrecognized actions are all
// reported as errors; they reach only the sender.
func DecodeRequest(raw []byte) (*Request, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid JSON payload: %w", err)
	}

	var resource Resource
	var actions map[string]json.RawMessage
	found := 0
	for r, m := range map[Resource]map[string]json.RawMessage{
		ResourceMatch:  env.Match,
		ResourcePlayer: env.Player,
		ResourceSet:    env.Set,
	} {
		if m != nil {
			resource = r
			actions = m
			found++
		}
	}
	if found == 0 {
		return nil, fmt.Errorf("invalid payload: missing resource")
	}
	if found > 1 {
		return nil, fmt.Errorf("invalid payload: multiple resources")
	}

	for _, action := range actionsByResource[resource] {
		rawData, ok := actions[string(action)]
		if !ok {
			continue
		}
		data := map[string]any{}
		if len(rawData) > 0 {
			if err := json.Unmarshal(rawData, &data); err != nil {
				// Non-object payloads (null, scalars) act like empty data.
				data = map[string]any{}
			}
		}
		return &Request{Resource: resource, Action: action, Data: data}, nil
	}

	for key := range actions {
		return nil, fmt.Errorf("unknown action for %s: %s", resource, key)
	}
	return nil, fmt.Errorf("invalid payload: missing action")
}

// Reply is the direct response frame sent to the requesting connection only.
type Reply struct {
	Resource Resource `json:"resource"`
	Action   Action   `json:"action"`
	Status   int      `json:"status"`
	Body     any      `json:"body"`
}

// ErrorFrame is sent to the requesting connection when handling fails before
// an operation could produce a status envelope.
type ErrorFrame struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Message string `json:"message"`
}

// Broadcast is the fan-out frame delivered to subscribed connections.
// Resource is a string because the set-is-final refresh broadcasts the
// pseudo-resource "sets".
type Broadcast struct {
	Type           string         `json:"type"`
	Resource       string         `json:"resource"`
	Action         Action         `json:"action,omitempty"`
	ID             *int64         `json:"id,omitempty"`
	MatchID        *int64         `json:"matchId,omitempty"`
	Changes        map[string]any `json:"changes,omitempty"`
	Data           any            `json:"data,omitempty"`
	EventTimestamp *string        `json:"eventTimestamp,omitempty"`
}
