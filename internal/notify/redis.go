package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"newsdigest/internal/model"
)

// Stream entry fields.
const (
	fieldEventID   = "event_id"
	fieldSubject   = "subject"
	fieldBody      = "body"
	fieldCreatedAt = "created_at"
)

// RedisStream publishes notifications as entries of a Redis stream named by the topic.
type RedisStream struct {
	client *redis.Client
	maxLen int64
}

var _ Transport = (*RedisStream)(nil)

// NewRedisStream creates a stream transport. A positive maxLen caps the
// stream length approximately.
func NewRedisStream(client *redis.Client, maxLen int64) *RedisStream {
	return &RedisStream{client: client, maxLen: maxLen}
}

// Name implements Transport.
func (r *RedisStream) Name() string {
	return "redis"
}

// Publish implements Transport.
func (r *RedisStream) Publish(ctx context.Context, topic, subject string, body []byte) error {
	args := &redis.XAddArgs{
		Stream: topic,
		Values: map[string]any{
			fieldEventID:   uuid.NewString(),
			fieldSubject:   subject,
			fieldBody:      string(body),
			fieldCreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
		},
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}
	if err := r.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", topic, err)
	}
	return nil
}

// Delivery is one stream entry handed to a Handler.
type Delivery struct {
	MessageID string
	EventID   string
	Subject   string
	Body      []byte
}

// Handler processes a delivery. Returning nil or an error wrapping
// model.ErrInvalidMessage acknowledges it; any other error leaves it pending
// for redelivery.
type Handler func(ctx context.Context, d Delivery) error

// ConsumerConfig holds stream consumer settings.
type ConsumerConfig struct {
	Stream   string
	Group    string
	Consumer string
	// BatchSize is the number of entries read at once.
	BatchSize int64
	// Block is how long a read waits for new entries. Negative means do not block.
	Block time.Duration
}

// Consumer reads notifications from a stream through a consumer group.
type Consumer struct {
	client  *redis.Client
	cfg     ConsumerConfig
	handler Handler
	log     *slog.Logger

	// pendingFrom is the history cursor used until pendingDone.
	pendingFrom string
	pendingDone bool
}

// NewConsumer creates a Consumer.
func NewConsumer(client *redis.Client, cfg ConsumerConfig, handler Handler, log *slog.Logger) *Consumer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	return &Consumer{client: client, cfg: cfg, handler: handler, log: log, pendingFrom: "0"}
}

// EnsureGroup creates the consumer group and the stream if they do not exist.
func (c *Consumer) EnsureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create group %s on %s: %w", c.cfg.Group, c.cfg.Stream, err)
	}
	return nil
}

// Run consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.EnsureGroup(ctx); err != nil {
		return err
	}

	c.log.Info("starting stream consumer",
		"stream", c.cfg.Stream,
		"group", c.cfg.Group,
		"consumer", c.cfg.Consumer,
	)

	for {
		if ctx.Err() != nil {
			return nil
		}
		if _, err := c.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Error("read stream", "stream", c.cfg.Stream, "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
		}
	}
}

// Poll reads one batch and handles it. Until the history of entries left
// pending for this consumer by an earlier run is exhausted, polls page
// through that history instead of reading new entries. It returns the number
// of entries acknowledged.
func (c *Consumer) Poll(ctx context.Context) (int, error) {
	start := ">"
	if !c.pendingDone {
		start = c.pendingFrom
	}

	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		Streams:  []string{c.cfg.Stream, start},
		Count:    c.cfg.BatchSize,
		Block:    c.cfg.Block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		c.pendingDone = true
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("xreadgroup %s: %w", c.cfg.Stream, err)
	}

	acked := 0
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			if c.handle(ctx, msg) {
				if err := c.client.XAck(ctx, c.cfg.Stream, c.cfg.Group, msg.ID).Err(); err != nil {
					c.log.Error("ack message", "message_id", msg.ID, "error", err)
					continue
				}
				acked++
			}
		}
	}
	if start != ">" {
		c.pendingFrom, c.pendingDone = nextPending(start, streams)
	}
	return acked, nil
}

// nextPending returns the cursor for the next history read and whether the
// history is exhausted. COUNT also caps history reads, so a page is followed
// by another read starting after its last entry until one comes back empty.
func nextPending(cursor string, streams []redis.XStream) (string, bool) {
	last := ""
	for _, s := range streams {
		if n := len(s.Messages); n > 0 {
			last = s.Messages[n-1].ID
		}
	}
	if last == "" {
		return cursor, true
	}
	return last, false
}

// handle reports whether the message should be acknowledged.
func (c *Consumer) handle(ctx context.Context, msg redis.XMessage) bool {
	d := Delivery{
		MessageID: msg.ID,
		EventID:   stringValue(msg.Values, fieldEventID),
		Subject:   stringValue(msg.Values, fieldSubject),
		Body:      []byte(stringValue(msg.Values, fieldBody)),
	}

	err := c.handler(ctx, d)
	switch {
	case err == nil:
		return true
	case errors.Is(err, model.ErrInvalidMessage):
		c.log.Warn("discarding invalid notification", "message_id", msg.ID, "event_id", d.EventID, "error", err)
		return true
	default:
		c.log.Error("handle notification", "message_id", msg.ID, "event_id", d.EventID, "error", err)
		return false
	}
}

func stringValue(values map[string]any, key string) string {
	if v, ok := values[key].(string); ok {
		return v
	}
	return ""
}
