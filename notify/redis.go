package notify

import (
	"context"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// RedisNotifier publishes toasts on a Redis channel so every editor instance can relay them.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

// NewRedisNotifier creates a publisher for the given channel.
func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	return &RedisNotifier{client: client, channel: channel}
}

func (r *RedisNotifier) Notify(ctx context.Context, t Toast) error {
	data, err := sonic.Marshal(t)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, data).Err()
}

// Relay forwards toasts published on channel to the local notifier until ctx is done.
func Relay(ctx context.Context, logger *log.Logger, rc *redis.Client, channel string, local Notifier) {
	for {
		sub := rc.Subscribe(ctx, channel)
		ch := sub.Channel()
	loop:
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break loop
				}
				var t Toast
				if err := sonic.UnmarshalString(msg.Payload, &t); err != nil {
					logger.Errorf("unable to parse toast: %v", err)
					continue
				}
				if err := local.Notify(ctx, t); err != nil {
					logger.Errorf("relay toast: %v", err)
				}
			}
		}
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
	}
}
