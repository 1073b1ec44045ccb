// Package outbox queues state pushes that could not reach the cloud, on a
// Redis stream, so offline work is drained once connectivity returns.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sbenjam1n/studysync/internal/plan"
)

const (
	// Stream holds pending pushes, oldest first.
	Stream = "sync_outbox"
	// Group is the consumer group draining the stream.
	Group = "sync_pusher"
)

// Entry is one queued push.
type Entry struct {
	UserID    string `json:"user_id"`
	LastSaved int64  `json:"last_saved"`
	Payload   []byte `json:"payload"`
}

// State decodes the queued payload.
func (e *Entry) State() (*plan.ApplicationState, error) {
	var state plan.ApplicationState
	if err := json.Unmarshal(e.Payload, &state); err != nil {
		return nil, fmt.Errorf("decode queued state: %w", err)
	}
	return &state, nil
}

// Outbox manages the pending-push stream.
type Outbox struct {
	client *redis.Client
	log    *zap.SugaredLogger
}

// New creates an Outbox from a Redis client. A nil client yields a
// disabled outbox whose operations no-op.
func New(client *redis.Client, logger *zap.SugaredLogger) *Outbox {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Outbox{client: client, log: logger}
}

// Connect creates a Redis client from a URL.
func Connect(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	return redis.NewClient(opts), nil
}

// Enabled reports whether the outbox is configured.
func (o *Outbox) Enabled() bool {
	return o.client != nil
}

// EnsureStream creates the consumer group if it doesn't exist.
func (o *Outbox) EnsureStream(ctx context.Context) error {
	if o.client == nil {
		return nil
	}
	err := o.client.XGroupCreateMkStream(ctx, Stream, Group, "0").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return fmt.Errorf("create group %s on %s: %w", Group, Stream, err)
	}
	return nil
}

// Enqueue adds a pending push for the user.
func (o *Outbox) Enqueue(ctx context.Context, userID string, state *plan.ApplicationState) error {
	if o.client == nil {
		return nil
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("serialize queued state: %w", err)
	}
	err = o.client.XAdd(ctx, &redis.XAddArgs{
		Stream: Stream,
		Values: map[string]any{
			"user_id":    userID,
			"last_saved": strconv.FormatInt(state.LastSavedAt, 10),
			"payload":    string(payload),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("enqueue push: %w", err)
	}
	o.log.Infow("queued push for later delivery", "user", userID, "last_saved", state.LastSavedAt)
	return nil
}

// Read fetches one pending entry for the consumer without blocking.
// Returns (nil, "", nil) when the stream is empty.
func (o *Outbox) Read(ctx context.Context, consumer string) (*Entry, string, error) {
	if o.client == nil {
		return nil, "", nil
	}
	streams, err := o.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    Group,
		Consumer: consumer,
		Streams:  []string{Stream, ">"},
		Count:    1,
		Block:    -1,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("read outbox: %w", err)
	}

	for _, stream := range streams {
		for _, msg := range stream.Messages {
			entry := &Entry{
				UserID:  getString(msg.Values, "user_id"),
				Payload: []byte(getString(msg.Values, "payload")),
			}
			entry.LastSaved, _ = strconv.ParseInt(getString(msg.Values, "last_saved"), 10, 64)
			return entry, msg.ID, nil
		}
	}
	return nil, "", nil
}

// Ack acknowledges a drained entry.
func (o *Outbox) Ack(ctx context.Context, msgID string) error {
	if o.client == nil {
		return nil
	}
	return o.client.XAck(ctx, Stream, Group, msgID).Err()
}

// Pending returns how many entries are waiting.
func (o *Outbox) Pending(ctx context.Context) (int64, error) {
	if o.client == nil {
		return 0, nil
	}
	n, err := o.client.XLen(ctx, Stream).Result()
	if err != nil {
		return 0, fmt.Errorf("outbox length: %w", err)
	}
	return n, nil
}

func getString(values map[string]any, key string) string {
	if v, ok := values[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
