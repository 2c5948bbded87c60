package events

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

// RedisPublisher broadcasts events to other processes (dashboards, caches)
// over a redis pub/sub channel.
type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
}

func NewRedisPublisher(client redis.UniversalClient, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, evt Event) error {
	payload, err := sonic.Marshal(evt)
	if err != nil {
		return fmt.Errorf("sonic.Marshal: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", p.channel, err)
	}
	return nil
}

// Decode parses a payload received from the channel.
func Decode(payload string) (Event, error) {
	var evt Event
	if err := sonic.UnmarshalString(payload, &evt); err != nil {
		return Event{}, fmt.Errorf("sonic.Unmarshal: %w", err)
	}
	return evt, nil
}
