// internal/matchstate/dispatcher.go
package matchstate

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Muppet1856/Volleyball-Stats-sub000/internal/models"
)

// Ops is the full resource-operation surface the dispatcher routes to.
// *database.Store satisfies it; tests substitute fakes.
type Ops interface {
	CreateMatch(ctx context.Context, m models.Match) models.Result
	SetMatchLocation(ctx context.Context, matchID int64, location *string) models.Result
	SetMatchDate(ctx context.Context, matchID int64, date *string) models.Result
	SetMatchOpponent(ctx context.Context, matchID int64, opponent *string) models.Result
	SetMatchTypes(ctx context.Context, matchID int64, types *string) models.Result
	SetMatchResult(ctx context.Context, matchID int64, resultHome, resultOpp *float64) models.Result
	SetMatchPlayers(ctx context.Context, matchID int64, players *string) models.Result
	SetMatchHomeColor(ctx context.Context, matchID int64, color *string) models.Result
	SetMatchOppColor(ctx context.Context, matchID int64, color *string) models.Result
	SetMatchFirstServer(ctx context.Context, matchID int64, firstServer *string) models.Result
	SetMatchDeleted(ctx context.Context, matchID int64, deleted int) models.Result
	SetMatchSwapped(ctx context.Context, matchID int64, swapped int) models.Result
	UpsertMatchPlayer(ctx context.Context, matchID int64, delta models.RosterEntry) models.Result
	RemoveMatchPlayer(ctx context.Context, matchID, playerID int64) models.Result
	UpsertTempNumber(ctx context.Context, matchID int64, delta models.TempNumberEntry) models.Result
	RemoveTempNumber(ctx context.Context, matchID, playerID int64) models.Result
	GetMatch(ctx context.Context, matchID int64) models.Result
	GetMatches(ctx context.Context) models.Result
	DeleteMatch(ctx context.Context, matchID int64) models.Result
	GetMatchTempNumbers(ctx context.Context, matchID int64) (*string, bool, error)

	CreatePlayer(ctx context.Context, number, lastName, initial *string) models.Result
	SetPlayerLastName(ctx context.Context, playerID int64, lastName *string) models.Result
	SetPlayerInitial(ctx context.Context, playerID int64, initial *string) models.Result
	SetPlayerNumber(ctx context.Context, playerID int64, number *string) models.Result
	GetPlayer(ctx context.Context, playerID int64) models.Result
	GetPlayers(ctx context.Context) models.Result
	DeletePlayer(ctx context.Context, playerID int64) models.Result

	CreateSet(ctx context.Context, in models.Set) models.Result
	SetHomeScore(ctx context.Context, setID int64, score *float64) models.Result
	SetOppScore(ctx context.Context, setID int64, score *float64) models.Result
	SetHomeTimeout(ctx context.Context, setID int64, timeoutNumber, value int, startedAt *string) models.Result
	SetOppTimeout(ctx context.Context, setID int64, timeoutNumber, value int, startedAt *string) models.Result
	SetIsFinal(ctx context.Context, matchID int64, finalizedSets *string) models.Result
	GetSet(ctx context.Context, setID int64) models.Result
	GetSets(ctx context.Context, matchID *int64) models.Result
	DeleteSet(ctx context.Context, setID int64) models.Result
}

// Dispatcher parses inbound frames, routes them to resource operations,
// replies to the sender, and fans successful mutations out to subscribers.
// One dispatcher serves every connection; per-message handling runs to
// completion before the owning connection reads its next frame.
type Dispatcher struct {
	store    Ops
	registry *Registry
	composer *Composer
	logger   *logrus.Logger
}

// NewDispatcher wires the dispatcher's dependencies explicitly; nothing here
// is a package-level singleton.
func NewDispatcher(store Ops, registry *Registry, composer *Composer, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{store: store, registry: registry, composer: composer, logger: logger}
}

// HandleMessage processes one inbound frame end to end. Failures are
// reported to the sender only; they never take down the dispatcher or other
// connections.
func (d *Dispatcher) HandleMessage(ctx context.Context, clientID string, sender Sender, raw []byte) {
	req, err := DecodeRequest(raw)
	if err != nil {
		d.sendError(ctx, sender, err)
		return
	}

	d.logger.WithFields(logrus.Fields{
		"client":   clientID,
		"resource": req.Resource,
		"action":   req.Action,
	}).Debug("dispatching action")

	res, matchID, err := d.route(ctx, clientID, req)
	if err != nil {
		d.sendError(ctx, sender, err)
		return
	}

	reply, err := json.Marshal(Reply{Resource: req.Resource, Action: req.Action, Status: res.Status, Body: res.Body})
	if err != nil {
		d.sendError(ctx, sender, fmt.Errorf("failed to encode reply: %w", err))
		return
	}
	if err := sender.Send(ctx, reply); err != nil {
		d.logger.WithFields(logrus.Fields{"client": clientID, "error": err}).Warn("failed to send reply")
		// The mutation already happened; other subscribers still get told.
	}

	if res.IsError() || req.Action == ActionGet {
		return
	}

	id := deriveEntityID(req.Resource, req.Action, req.Data, res.Body)
	msg, err := d.composer.Prepare(ctx, BroadcastParams{
		Resource: req.Resource,
		Action:   req.Action,
		ID:       id,
		MatchID:  matchID,
		Data:     req.Data,
	})
	if err != nil {
		d.logger.WithFields(logrus.Fields{
			"client":   clientID,
			"resource": req.Resource,
			"action":   req.Action,
			"error":    err,
		}).Warn("failed to compose broadcast")
		return
	}
	if msg != nil {
		d.registry.Broadcast(ctx, msg, clientID)
	}
}

func (d *Dispatcher) sendError(ctx context.Context, sender Sender, err error) {
	frame, marshalErr := json.Marshal(ErrorFrame{Error: ErrorBody{Message: err.Error()}})
	if marshalErr != nil {
		return
	}
	if sendErr := sender.Send(ctx, frame); sendErr != nil {
		d.logger.WithField("error", sendErr).Warn("failed to send error frame")
	}
}

func (d *Dispatcher) route(ctx context.Context, clientID string, req *Request) (models.Result, *int64, error) {
	switch req.Resource {
	case ResourceMatch:
		return d.routeMatch(ctx, clientID, req.Action, req.Data)
	case ResourcePlayer:
		res := d.routePlayer(ctx, req.Action, req.Data)
		return res, nil, nil
	case ResourceSet:
		return d.routeSet(ctx, req.Action, req.Data)
	default:
		return models.Result{}, nil, fmt.Errorf("unknown resource: %s", req.Resource)
	}
}

func (d *Dispatcher) routeMatch(ctx context.Context, clientID string, action Action, data map[string]any) (models.Result, *int64, error) {
	switch action {
	case ActionSubscribe:
		id, ok := firstMatchID(data, "matchId", "id")
		if !ok {
			return models.Result{}, nil, fmt.Errorf("invalid matchId for subscribe")
		}
		d.registry.Subscribe(ctx, clientID, id)
		return models.JSONResult(200, map[string]any{"matchId": id}), &id, nil

	case ActionUnsubscribe:
		if id, ok := firstMatchID(data, "matchId", "id"); ok {
			d.registry.Unsubscribe(ctx, clientID, &id)
			return models.JSONResult(200, map[string]any{"matchId": id}), &id, nil
		}
		d.registry.Unsubscribe(ctx, clientID, nil)
		return models.JSONResult(200, map[string]any{"matchId": nil}), nil, nil

	case ActionCreate:
		res := d.store.CreateMatch(ctx, matchFromData(data))
		return res, idFromBody(res.Body), nil

	case ActionGet:
		if id, ok := firstMatchID(data, "matchId"); ok {
			return d.store.GetMatch(ctx, id), &id, nil
		}
		return d.store.GetMatches(ctx), nil, nil

	case ActionDelete:
		id, ok := firstMatchID(data, "id")
		if !ok {
			return models.Result{}, nil, fmt.Errorf("invalid id for match delete")
		}
		return d.store.DeleteMatch(ctx, id), &id, nil
	}

	// Everything else mutates one existing match.
	matchID, ok := firstMatchID(data, "matchId")
	if !ok {
		return models.Result{}, nil, fmt.Errorf("invalid matchId for match %s", action)
	}

	var res models.Result
	switch action {
	case ActionSetLocation:
		res = d.store.SetMatchLocation(ctx, matchID, stringPtr(data["location"]))
	case ActionSetDateTime:
		res = d.store.SetMatchDate(ctx, matchID, stringPtr(data["date"]))
	case ActionSetOppName:
		res = d.store.SetMatchOpponent(ctx, matchID, stringPtr(data["opponent"]))
	case ActionSetType:
		res = d.store.SetMatchTypes(ctx, matchID, jsonPtr(data["types"], map[string]any{}))
	case ActionSetResult:
		res = d.store.SetMatchResult(ctx, matchID, NormalizeScore(data["resultHome"]), NormalizeScore(data["resultOpp"]))
	case ActionSetPlayers:
		res = d.store.SetMatchPlayers(ctx, matchID, jsonPtr(data["players"], []any{}))
	case ActionAddPlayer, ActionUpdatePlayer:
		delta := NormalizePlayerDelta(data["player"])
		if delta == nil {
			res = models.ErrorResult(400, "Invalid player payload")
			break
		}
		entry := models.RosterEntry{PlayerID: delta.PlayerID, Appeared: delta.Appeared}
		if delta.HasTemp {
			entry.TempNumber = delta.TempNumber
		}
		res = d.store.UpsertMatchPlayer(ctx, matchID, entry)
	case ActionRemovePlayer:
		removal := NormalizePlayerRemoval(data["player"])
		if removal == nil {
			res = models.ErrorResult(400, "Invalid player payload")
			break
		}
		res = d.store.RemoveMatchPlayer(ctx, matchID, removal.PlayerID)
	case ActionAddTempNumber, ActionUpdateTempNumber:
		delta := NormalizeTempDelta(tempNumberPayload(data))
		if delta == nil {
			res = models.ErrorResult(400, "Invalid temp number payload")
			break
		}
		res = d.store.UpsertTempNumber(ctx, matchID, models.TempNumberEntry{PlayerID: delta.PlayerID, TempNumber: delta.TempNumber})
	case ActionRemoveTempNumber:
		removal := NormalizeTempRemoval(tempNumberPayload(data))
		if removal == nil {
			res = models.ErrorResult(400, "Invalid temp number payload")
			break
		}
		res = d.store.RemoveTempNumber(ctx, matchID, removal.PlayerID)
	case ActionSetHomeColor:
		res = d.store.SetMatchHomeColor(ctx, matchID, stringPtr(data["jerseyColorHome"]))
	case ActionSetOppColor:
		res = d.store.SetMatchOppColor(ctx, matchID, stringPtr(data["jerseyColorOpp"]))
	case ActionSetFirstServer:
		res = d.store.SetMatchFirstServer(ctx, matchID, stringPtr(data["firstServer"]))
	case ActionSetSwap:
		res = d.store.SetMatchSwapped(ctx, matchID, NormalizeDeletedFlag(swapPayload(data)))
	case ActionSetDeleted:
		res = d.store.SetMatchDeleted(ctx, matchID, NormalizeDeletedFlag(data["deleted"]))
	default:
		return models.Result{}, nil, fmt.Errorf("unknown action for match: %s", action)
	}
	return res, &matchID, nil
}

func (d *Dispatcher) routePlayer(ctx context.Context, action Action, data map[string]any) models.Result {
	switch action {
	case ActionCreate:
		return d.store.CreatePlayer(ctx, stringPtr(data["number"]), stringPtr(data["last_name"]), stringPtr(data["initial"]))
	case ActionGet:
		if id, ok := firstMatchID(data, "id"); ok {
			return d.store.GetPlayer(ctx, id)
		}
		return d.store.GetPlayers(ctx)
	}

	id, ok := firstMatchID(data, "playerId", "id")
	if !ok {
		return models.ErrorResult(400, "Invalid playerId for player "+string(action))
	}
	switch action {
	case ActionSetLastName:
		return d.store.SetPlayerLastName(ctx, id, stringPtr(data["lastName"]))
	case ActionSetInitial:
		return d.store.SetPlayerInitial(ctx, id, stringPtr(data["initial"]))
	case ActionSetNumber:
		return d.store.SetPlayerNumber(ctx, id, stringPtr(data["number"]))
	case ActionDelete:
		return d.store.DeletePlayer(ctx, id)
	default:
		return models.ErrorResult(400, "Unknown action for player: "+string(action))
	}
}

func (d *Dispatcher) routeSet(ctx context.Context, action Action, data map[string]any) (models.Result, *int64, error) {
	var res models.Result
	var matchID *int64

	switch action {
	case ActionCreate:
		in := setFromData(data)
		res = d.store.CreateSet(ctx, in)
		if in.MatchID > 0 {
			matchID = &in.MatchID
		}

	case ActionSetHomeScore:
		setID, ok := firstMatchID(data, "setId")
		if !ok {
			return models.Result{}, nil, fmt.Errorf("invalid setId for set %s", action)
		}
		res = d.store.SetHomeScore(ctx, setID, NormalizeScore(data["homeScore"]))
		matchID = optionalMatchID(data)

	case ActionSetOppScore:
		setID, ok := firstMatchID(data, "setId")
		if !ok {
			return models.Result{}, nil, fmt.Errorf("invalid setId for set %s", action)
		}
		res = d.store.SetOppScore(ctx, setID, NormalizeScore(data["oppScore"]))
		matchID = optionalMatchID(data)

	case ActionSetHomeTimeout, ActionSetOppTimeout:
		setID, ok := firstMatchID(data, "setId")
		if !ok {
			return models.Result{}, nil, fmt.Errorf("invalid setId for set %s", action)
		}
		timeoutNumber := 1
		if isTimeoutTwo(data["timeoutNumber"]) {
			timeoutNumber = 2
		}
		value := NormalizeTimeoutFlag(data["value"])
		ts, provided := timeoutTimestampField(data)
		startedAt := NormalizeTimeoutTimestamp(data["value"], provided, ts)
		// Rewrite the payload so the broadcast change-set carries the exact
		// timestamp that was stored.
		if startedAt != nil {
			data["timeoutStartedAt"] = *startedAt
		} else {
			data["timeoutStartedAt"] = nil
		}
		if action == ActionSetHomeTimeout {
			res = d.store.SetHomeTimeout(ctx, setID, timeoutNumber, value, startedAt)
		} else {
			res = d.store.SetOppTimeout(ctx, setID, timeoutNumber, value, startedAt)
		}
		matchID = optionalMatchID(data)

	case ActionSetIsFinal:
		id, ok := firstMatchID(data, "matchId")
		if !ok {
			return models.Result{}, nil, fmt.Errorf("invalid matchId for set-is-final")
		}
		res = d.store.SetIsFinal(ctx, id, jsonPtr(data["finalizedSets"], map[string]any{}))
		matchID = &id

	case ActionGet:
		if id, ok := firstMatchID(data, "id"); ok {
			return d.store.GetSet(ctx, id), optionalMatchID(data), nil
		}
		return d.store.GetSets(ctx, optionalMatchID(data)), optionalMatchID(data), nil

	case ActionDelete:
		id, ok := firstMatchID(data, "id")
		if !ok {
			return models.Result{}, nil, fmt.Errorf("invalid id for set delete")
		}
		res = d.store.DeleteSet(ctx, id)
		matchID = optionalMatchID(data)

	default:
		return models.Result{}, nil, fmt.Errorf("unknown action for set: %s", action)
	}

	// Fall back to the stored row when the caller did not name the parent
	// match; broadcasts are filtered by match id and must not go unscoped.
	if matchID == nil {
		if setID, ok := firstMatchID(data, "setId"); ok {
			if fetched := d.lookupSetMatchID(ctx, setID); fetched != nil {
				matchID = fetched
			}
		}
	}
	return res, matchID, nil
}

func (d *Dispatcher) lookupSetMatchID(ctx context.Context, setID int64) *int64 {
	res := d.store.GetSet(ctx, setID)
	if res.IsError() {
		return nil
	}
	if st, ok := res.Body.(*models.Set); ok && st != nil {
		return &st.MatchID
	}
	return nil
}

// matchFromData builds a typed create payload from raw action data.
func matchFromData(data map[string]any) models.Match {
	return models.Match{
		Date:            stringPtr(data["date"]),
		Location:        stringPtr(data["location"]),
		Types:           jsonPtrIfPresent(data, "types", map[string]any{}),
		Opponent:        stringPtr(data["opponent"]),
		JerseyColorHome: stringPtr(data["jersey_color_home"]),
		JerseyColorOpp:  stringPtr(data["jersey_color_opp"]),
		ResultHome:      NormalizeScore(data["result_home"]),
		ResultOpp:       NormalizeScore(data["result_opp"]),
		FirstServer:     stringPtr(data["first_server"]),
		Players:         jsonPtrIfPresent(data, "players", []any{}),
		FinalizedSets:   jsonPtrIfPresent(data, "finalized_sets", map[string]any{}),
		IsSwapped:       NormalizeDeletedFlag(data["is_swapped"]),
	}
}

// setFromData builds a typed set-create payload, resolving the aliased field
// names different client versions send.
func setFromData(data map[string]any) models.Set {
	in := models.Set{
		HomeScore:    NormalizeScore(alias(data, "home_score", "homeScore")),
		OppScore:     NormalizeScore(alias(data, "opp_score", "oppScore")),
		HomeTimeout1: NormalizeTimeoutFlag(alias(data, "home_timeout_1", "homeTimeout1", "homeTimeout_1")),
		HomeTimeout2: NormalizeTimeoutFlag(alias(data, "home_timeout_2", "homeTimeout2", "homeTimeout_2")),
		OppTimeout1:  NormalizeTimeoutFlag(alias(data, "opp_timeout_1", "oppTimeout1", "oppTimeout_1")),
		OppTimeout2:  NormalizeTimeoutFlag(alias(data, "opp_timeout_2", "oppTimeout2", "oppTimeout_2")),
	}
	if id, ok := NormalizeMatchID(alias(data, "match_id", "matchId")); ok {
		in.MatchID = id
	}
	if n, ok := NormalizeMatchID(alias(data, "set_number", "setNumber")); ok {
		in.SetNumber = int(n)
	}
	in.TimeoutStartedAt = stringPtr(alias(data, "timeout_started_at", "timeoutStartedAt"))
	return in
}

func alias(data map[string]any, keys ...string) any {
	for _, key := range keys {
		if raw, ok := data[key]; ok && raw != nil {
			return raw
		}
	}
	return nil
}

func swapPayload(data map[string]any) any {
	return alias(data, "isSwapped", "is_swapped", "swapped")
}

// firstMatchID resolves the first key holding a valid positive integer id.
func firstMatchID(data map[string]any, keys ...string) (int64, bool) {
	for _, key := range keys {
		if raw, ok := data[key]; ok {
			if id, valid := NormalizeMatchID(raw); valid {
				return id, true
			}
		}
	}
	return 0, false
}

func optionalMatchID(data map[string]any) *int64 {
	if id, ok := firstMatchID(data, "matchId", "match_id"); ok {
		return &id
	}
	return nil
}

// stringPtr coerces a scalar into a nullable string column value.
func stringPtr(raw any) *string {
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
		s := CoerceJSONString(raw, map[string]any{})
		return &s
	}
}

// jsonPtr coerces a blob field into its stored JSON-string form; nil input
// stays NULL.
func jsonPtr(raw any, fallback any) *string {
	if raw == nil {
		return nil
	}
	s := CoerceJSONString(raw, fallback)
	return &s
}

func jsonPtrIfPresent(data map[string]any, key string, fallback any) *string {
	raw, ok := data[key]
	if !ok {
		return nil
	}
	return jsonPtr(raw, fallback)
}

// deriveEntityID determines which record a broadcast is about.
func deriveEntityID(resource Resource, action Action, data map[string]any, body any) *int64 {
	if action == ActionCreate {
		if id := idFromBody(body); id != nil {
			return id
		}
	}
	switch resource {
	case ResourceMatch:
		if id, ok := firstMatchID(data, "matchId", "id"); ok {
			return &id
		}
	case ResourcePlayer:
		if id, ok := firstMatchID(data, "playerId", "id"); ok {
			return &id
		}
	case ResourceSet:
		if id, ok := firstMatchID(data, "setId", "id"); ok {
			return &id
		}
	}
	return nil
}

func idFromBody(body any) *int64 {
	obj, ok := body.(map[string]any)
	if !ok {
		return nil
	}
	switch v := obj["id"].(type) {
	case int64:
		return &v
	case float64:
		id := int64(v)
		return &id
	case json.Number:
		if id, err := v.Int64(); err == nil {
			return &id
		}
	case string:
		if id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return &id
		}
	}
	return nil
}
