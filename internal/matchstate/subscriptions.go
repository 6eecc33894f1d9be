// internal/matchstate/subscriptions.go
package matchstate

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Sender writes one frame to a single client connection.
type Sender interface {
	Send(ctx context.Context, data []byte) error
}

// AttachmentStore persists per-client subscription attachments so a resumed
// connection can restore its match filter before the first broadcast. The
// in-memory registry works without one (attachments is allowed to be nil).
type AttachmentStore interface {
	Save(ctx context.Context, clientID string, matchIDs []int64) error
	Load(ctx context.Context, clientID string) ([]int64, error)
}

type subscriber struct {
	sender Sender
	// matchIDs holds the client's declared interest. An empty set means the
	// client never subscribed and receives every broadcast (legacy
	// unfiltered mode).
	matchIDs map[int64]struct{}
}

// Registry tracks which connected client is interested in which match.
// A client holds at most one subscription; subscribing again replaces it.
type Registry struct {
	mu          sync.Mutex
	logger      *logrus.Logger
	attachments AttachmentStore
	subscribers map[string]*subscriber
}

// NewRegistry returns a registry. attachments may be nil for purely ephemeral
// operation (tests, single-node dev).
func NewRegistry(logger *logrus.Logger, attachments AttachmentStore) *Registry {
	return &Registry{
		logger:      logger,
		attachments: attachments,
		subscribers: make(map[string]*subscriber),
	}
}

// Register adds a connection under its client id and restores any persisted
// subscription for that id. Only the most recent attachment entry is kept,
// enforcing the single-subscription rule on restore as well.
func (r *Registry) Register(ctx context.Context, clientID string, sender Sender) {
	sub := &subscriber{sender: sender, matchIDs: make(map[int64]struct{})}

	if r.attachments != nil {
		ids, err := r.attachments.Load(ctx, clientID)
		if err != nil {
			r.logger.WithFields(logrus.Fields{"client": clientID, "error": err}).
				Warn("failed to restore subscription attachment")
		} else if len(ids) > 0 {
			sub.matchIDs[ids[len(ids)-1]] = struct{}{}
		}
	}

	r.mu.Lock()
	r.subscribers[clientID] = sub
	r.mu.Unlock()
}

// Drop removes a connection from the registry. The durable attachment is left
// in place so a reconnect with the same client id restores the filter.
func (r *Registry) Drop(clientID string) {
	r.mu.Lock()
	delete(r.subscribers, clientID)
	r.mu.Unlock()
}

// Subscribe declares interest in exactly one match, replacing any prior
// subscription.
func (r *Registry) Subscribe(ctx context.Context, clientID string, matchID int64) {
	r.mu.Lock()
	sub, ok := r.subscribers[clientID]
	if ok {
		sub.matchIDs = map[int64]struct{}{matchID: {}}
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	r.persist(ctx, clientID, []int64{matchID})
}

// Unsubscribe removes a specific subscription, or every subscription when
// matchID is nil.
func (r *Registry) Unsubscribe(ctx context.Context, clientID string, matchID *int64) {
	r.mu.Lock()
	sub, ok := r.subscribers[clientID]
	var remaining []int64
	if ok {
		if matchID == nil {
			sub.matchIDs = make(map[int64]struct{})
		} else {
			delete(sub.matchIDs, *matchID)
		}
		for id := range sub.matchIDs {
			remaining = append(remaining, id)
		}
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	r.persist(ctx, clientID, remaining)
}

func (r *Registry) persist(ctx context.Context, clientID string, matchIDs []int64) {
	if r.attachments == nil {
		return
	}
	if err := r.attachments.Save(ctx, clientID, matchIDs); err != nil {
		r.logger.WithFields(logrus.Fields{"client": clientID, "error": err}).
			Warn("failed to persist subscription attachment")
	}
}

// broadcastFrame is the subset of a broadcast message the registry needs for
// routing.
type broadcastFrame struct {
	Resource string `json:"resource"`
	ID       any    `json:"id"`
	MatchID  any    `json:"matchId"`
	Data     struct {
		MatchID      any `json:"matchId"`
		MatchIDSnake any `json:"match_id"`
	} `json:"data"`
}

// extractBroadcastMatchID pulls the target match id out of a serialized
// broadcast. Match create/delete frames may omit an explicit matchId and fall
// back to their record id; anything else without a match id is delivered to
// everyone.
func extractBroadcastMatchID(message []byte) *int64 {
	var frame broadcastFrame
	if err := json.Unmarshal(message, &frame); err != nil {
		return nil
	}
	for _, raw := range []any{frame.MatchID, frame.Data.MatchID, frame.Data.MatchIDSnake} {
		if id, ok := NormalizeMatchID(raw); ok {
			return &id
		}
	}
	if frame.Resource == string(ResourceMatch) {
		if id, ok := NormalizeMatchID(frame.ID); ok {
			return &id
		}
	}
	return nil
}

// Broadcast delivers a message to every registered connection whose
// subscription matches the frame's match id, excluding the sender.
// Connections that never subscribed receive everything.
func (r *Registry) Broadcast(ctx context.Context, message []byte, excludeClientID string) {
	targetMatchID := extractBroadcastMatchID(message)

	type recipient struct {
		clientID string
		sender   Sender
	}
	var recipients []recipient

	r.mu.Lock()
	for clientID, sub := range r.subscribers {
		if clientID == excludeClientID {
			continue
		}
		if len(sub.matchIDs) > 0 && targetMatchID != nil {
			if _, ok := sub.matchIDs[*targetMatchID]; !ok {
				continue
			}
		}
		recipients = append(recipients, recipient{clientID: clientID, sender: sub.sender})
	}
	r.mu.Unlock()

	for _, rec := range recipients {
		sendCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rec.sender.Send(sendCtx, message)
		cancel()
		if err != nil {
			r.logger.WithFields(logrus.Fields{"client": rec.clientID, "error": err}).
				Warn("failed to deliver broadcast")
		}
	}
}

// Subscription reports the current match filter for a client, for logging and
// tests. ok is false when the client is not registered.
func (r *Registry) Subscription(clientID string) (matchIDs []int64, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subscribers[clientID]
	if !ok {
		return nil, false
	}
	for id := range sub.matchIDs {
		matchIDs = append(matchIDs, id)
	}
	return matchIDs, true
}
