// Package routing is the host-side collaborator that takes messages a
// bus.Handler has already validated and delivered through Process, and
// forwards them into the wider world: Redis for persistence/pub-sub,
// MQTT for interoperability with other home-automation tooling.
package routing

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisSink publishes MoatBus messages to Redis, wiring the client the
// way librescoot-bluetooth-service's pkg/redis/client.go wires a
// hardware-event pipeline: hash-set the last-known state per key,
// publish a change notification on the same key.
type RedisSink struct {
	client *redis.Client
	ctx    context.Context
}

// NewRedisSink connects to addr and verifies the connection with a
// PING, as the teacher's redis.New does.
func NewRedisSink(addr, password string, db int) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("routing: connect to redis at %s: %w", addr, err)
	}

	return &RedisSink{client: client, ctx: ctx}, nil
}

// stateKey is the Redis hash key moatbus state is stored under, per
// source bus address.
func stateKey(source uint8) string {
	return fmt.Sprintf("moatbus:node:%d", source)
}

// Record persists msg's body as the last-known state for its source
// address and publishes a change notification on the same key, mirroring
// the teacher's WriteAndPublishString pipeline call.
func (s *RedisSink) Record(source, code uint8, body []byte) error {
	key := stateKey(source)
	field := fmt.Sprintf("code%d", code)
	value := fmt.Sprintf("%x", body)

	pipe := s.client.Pipeline()
	pipe.HSet(s.ctx, key, field, value)
	pipe.Publish(s.ctx, key, fmt.Sprintf("%s:%s", field, value))
	_, err := pipe.Exec(s.ctx)
	if err != nil {
		return fmt.Errorf("routing: redis record %s/%s: %w", key, field, err)
	}
	return nil
}

// Close closes the underlying Redis client.
func (s *RedisSink) Close() error {
	return s.client.Close()
}
