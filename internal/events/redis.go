package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/dmitrijs2005/wakevault/internal/escrow"
)

// StreamAdder is the part of *redis.Client the publisher needs.
type StreamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisPublisher appends every event to a Redis stream with XADD.
type RedisPublisher struct {
	client StreamAdder
	stream string
	maxLen int64
}

// NewRedisPublisher publishes to stream. With maxLen > 0 the stream is
// trimmed approximately to that many entries.
func NewRedisPublisher(client StreamAdder, stream string, maxLen int64) *RedisPublisher {
	return &RedisPublisher{client: client, stream: stream, maxLen: maxLen}
}

// NewRedisClient connects to a Redis server and checks it answers.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return c, nil
}

func (p *RedisPublisher) Publish(ctx context.Context, events []escrow.Event) error {
	for _, e := range events {
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		args := &redis.XAddArgs{
			Stream: p.stream,
			Values: map[string]interface{}{
				"kind":      string(e.Kind),
				"account":   e.Account.String(),
				"timestamp": e.Timestamp,
				"data":      string(data),
			},
		}
		if p.maxLen > 0 {
			args.MaxLen = p.maxLen
			args.Approx = true
		}
		if err := p.client.XAdd(ctx, args).Err(); err != nil {
			return fmt.Errorf("xadd %s: %w", p.stream, err)
		}
	}
	return nil
}
