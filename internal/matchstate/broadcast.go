// internal/matchstate/broadcast.go
package matchstate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Muppet1856/Volleyball-Stats-sub000/internal/models"
)

// recordSource is the slice of storage the composer needs: re-reading full
// records for creates and the match-wide refreshes.
type recordSource interface {
	GetMatch(ctx context.Context, matchID int64) models.Result
	GetPlayer(ctx context.Context, playerID int64) models.Result
	GetSet(ctx context.Context, setID int64) models.Result
	GetSets(ctx context.Context, matchID *int64) models.Result
	GetMatchTempNumbers(ctx context.Context, matchID int64) (*string, bool, error)
}

// eventTimestampActions are the score/timeout actions whose broadcasts carry
// an eventTimestamp so clients can drive countdown displays.
var eventTimestampActions = map[Resource]map[Action]bool{
	ResourceSet: {
		ActionSetHomeScore:   true,
		ActionSetOppScore:    true,
		ActionSetHomeTimeout: true,
		ActionSetOppTimeout:  true,
	},
}

// Composer turns a completed mutation into the minimal fan-out message, or
// nothing when there is nothing worth telling subscribers about.
type Composer struct {
	store recordSource
}

// NewComposer returns a composer backed by the given record source.
func NewComposer(store recordSource) *Composer {
	return &Composer{store: store}
}

// BroadcastParams describes one successful non-read mutation.
type BroadcastParams struct {
	Resource Resource
	Action   Action
	ID       *int64
	MatchID  *int64
	Data     map[string]any
}

// Prepare computes the broadcast frame for a mutation. A nil frame with a nil
// error means "do not broadcast": the change-set normalized to empty, or the
// action has no fan-out semantics.
func (c *Composer) Prepare(ctx context.Context, p BroadcastParams) ([]byte, error) {
	if p.Action == ActionDelete {
		if p.ID == nil {
			return nil, nil
		}
		frame := Broadcast{Type: "delete", Resource: string(p.Resource), ID: p.ID, MatchID: p.MatchID}
		return json.Marshal(frame)
	}

	if p.Resource == ResourceSet && p.Action == ActionSetIsFinal && p.MatchID != nil {
		// Finalization affects derived win counts for the whole match, so
		// refresh every set instead of diffing.
		res := c.store.GetSets(ctx, p.MatchID)
		if res.IsError() {
			return nil, fmt.Errorf("refreshing sets for match %d: status %d", *p.MatchID, res.Status)
		}
		frame := Broadcast{Type: "update", Resource: "sets", Action: p.Action, MatchID: p.MatchID, Data: res.Body}
		return json.Marshal(frame)
	}

	if p.Action == ActionCreate {
		if p.ID == nil {
			return nil, nil
		}
		// Creates carry the full record so clients can render the new item.
		created, err := c.fetchRecord(ctx, p.Resource, *p.ID)
		if err != nil {
			return nil, err
		}
		frame := Broadcast{Type: "update", Resource: string(p.Resource), Action: p.Action, ID: p.ID, MatchID: p.MatchID, Data: created}
		c.maybeStamp(&frame, p.Resource, p.Action)
		return json.Marshal(frame)
	}

	if p.ID == nil {
		return nil, nil
	}

	changes, err := c.changesFor(ctx, p)
	if err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		return nil, nil
	}

	frame := Broadcast{Type: "update", Resource: string(p.Resource), Action: p.Action, ID: p.ID, MatchID: p.MatchID, Changes: changes}
	c.maybeStamp(&frame, p.Resource, p.Action)
	return json.Marshal(frame)
}

func (c *Composer) maybeStamp(frame *Broadcast, resource Resource, action Action) {
	if eventTimestampActions[resource][action] {
		iso := isoTimestamp(time.Now())
		frame.EventTimestamp = &iso
	}
}

func (c *Composer) fetchRecord(ctx context.Context, resource Resource, id int64) (any, error) {
	var res models.Result
	switch resource {
	case ResourceMatch:
		res = c.store.GetMatch(ctx, id)
	case ResourcePlayer:
		res = c.store.GetPlayer(ctx, id)
	case ResourceSet:
		res = c.store.GetSet(ctx, id)
	default:
		return nil, fmt.Errorf("no record fetch for resource: %s", resource)
	}
	if res.IsError() {
		return nil, fmt.Errorf("fetching created %s %d: status %d", resource, id, res.Status)
	}
	return res.Body, nil
}

func (c *Composer) changesFor(ctx context.Context, p BroadcastParams) (map[string]any, error) {
	switch p.Resource {
	case ResourceMatch:
		return c.matchChanges(ctx, p.Action, *p.ID, p.Data)
	case ResourcePlayer:
		return playerChanges(p.Action, p.Data), nil
	case ResourceSet:
		return setChanges(p.Action, p.Data, p.MatchID), nil
	default:
		return nil, nil
	}
}

func (c *Composer) matchChanges(ctx context.Context, action Action, matchID int64, data map[string]any) (map[string]any, error) {
	switch action {
	case ActionSetLocation:
		return map[string]any{"location": data["location"]}, nil
	case ActionSetDateTime:
		return map[string]any{"date": data["date"]}, nil
	case ActionSetOppName:
		return map[string]any{"opponent": data["opponent"]}, nil
	case ActionSetType:
		return map[string]any{"types": CoerceJSONString(data["types"], map[string]any{})}, nil
	case ActionSetResult:
		return map[string]any{
			"result_home": NormalizeScore(data["resultHome"]),
			"result_opp":  NormalizeScore(data["resultOpp"]),
		}, nil
	case ActionSetPlayers:
		changes := map[string]any{"players": CoerceJSONString(data["players"], []any{})}
		// A full roster replace may reshuffle temp assignments, so ship the
		// stored column along with it.
		tempNumbers, found, err := c.store.GetMatchTempNumbers(ctx, matchID)
		if err != nil {
			return nil, err
		}
		if found {
			changes["temp_numbers"] = tempNumbers
		}
		return changes, nil
	case ActionAddPlayer, ActionUpdatePlayer:
		playerDelta := NormalizePlayerDelta(data["player"])
		tempDelta := NormalizeTempDelta(data["player"])
		if playerDelta == nil && tempDelta == nil {
			return nil, nil
		}
		changes := map[string]any{"player_delta": playerDelta}
		if tempDelta != nil {
			changes["temp_number_delta"] = tempDelta
		}
		return changes, nil
	case ActionRemovePlayer:
		playerDelta := NormalizePlayerRemoval(data["player"])
		if playerDelta == nil {
			return nil, nil
		}
		return map[string]any{
			"player_delta":      playerDelta,
			"temp_number_delta": RemovalDelta{PlayerID: playerDelta.PlayerID, Deleted: true},
		}, nil
	case ActionAddTempNumber, ActionUpdateTempNumber:
		tempDelta := NormalizeTempDelta(tempNumberPayload(data))
		if tempDelta == nil {
			return nil, nil
		}
		return map[string]any{"temp_number_delta": tempDelta}, nil
	case ActionRemoveTempNumber:
		tempDelta := NormalizeTempRemoval(tempNumberPayload(data))
		if tempDelta == nil {
			return nil, nil
		}
		return map[string]any{"temp_number_delta": tempDelta}, nil
	case ActionSetHomeColor:
		return map[string]any{"jersey_color_home": data["jerseyColorHome"]}, nil
	case ActionSetOppColor:
		return map[string]any{"jersey_color_opp": data["jerseyColorOpp"]}, nil
	case ActionSetFirstServer:
		return map[string]any{"first_server": data["firstServer"]}, nil
	case ActionSetSwap:
		return map[string]any{"is_swapped": NormalizeDeletedFlag(swapPayload(data))}, nil
	case ActionSetDeleted:
		return map[string]any{"deleted": NormalizeDeletedFlag(data["deleted"])}, nil
	default:
		return nil, nil
	}
}

func playerChanges(action Action, data map[string]any) map[string]any {
	switch action {
	case ActionSetLastName:
		return map[string]any{"last_name": data["lastName"]}
	case ActionSetInitial:
		return map[string]any{"initial": data["initial"]}
	case ActionSetNumber:
		return map[string]any{"number": data["number"]}
	default:
		return nil
	}
}

func setChanges(action Action, data map[string]any, matchID *int64) map[string]any {
	switch action {
	case ActionSetHomeScore:
		return map[string]any{"home_score": NormalizeScore(data["homeScore"])}
	case ActionSetOppScore:
		return map[string]any{"opp_score": NormalizeScore(data["oppScore"])}
	case ActionSetHomeTimeout:
		field := "home_timeout_1"
		if isTimeoutTwo(data["timeoutNumber"]) {
			field = "home_timeout_2"
		}
		ts, provided := timeoutTimestampField(data)
		return map[string]any{
			field:                NormalizeTimeoutFlag(data["value"]),
			"timeout_started_at": NormalizeTimeoutTimestamp(data["value"], provided, ts),
		}
	case ActionSetOppTimeout:
		field := "opp_timeout_1"
		if isTimeoutTwo(data["timeoutNumber"]) {
			field = "opp_timeout_2"
		}
		ts, provided := timeoutTimestampField(data)
		return map[string]any{
			field:                NormalizeTimeoutFlag(data["value"]),
			"timeout_started_at": NormalizeTimeoutTimestamp(data["value"], provided, ts),
		}
	case ActionSetIsFinal:
		if matchID == nil {
			return nil
		}
		return map[string]any{"finalized_sets": data["finalizedSets"]}
	default:
		return nil
	}
}

// tempNumberPayload resolves the aliased field names temp-number actions use.
func tempNumberPayload(data map[string]any) any {
	for _, key := range []string{"tempNumber", "temp_number", "temp"} {
		if raw, ok := data[key]; ok {
			return raw
		}
	}
	return nil
}

func isTimeoutTwo(raw any) bool {
	switch v := raw.(type) {
	case float64:
		return v == 2
	case string:
		return v == "2"
	default:
		return false
	}
}

// timeoutTimestampField reports the caller-supplied timeout start time and
// whether the field was present at all (an explicit null is still present).
func timeoutTimestampField(data map[string]any) (any, bool) {
	if raw, ok := data["timeoutStartedAt"]; ok {
		return raw, true
	}
	if raw, ok := data["timeout_started_at"]; ok {
		return raw, true
	}
	return nil, false
}
