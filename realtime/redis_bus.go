package realtime

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"nse-pulse/cache"
)

type remoteBus interface {
	publish(frame []byte) error
}

type redisBus struct {
	client *cache.RedisClient
	topic  string
}

func (r *redisBus) publish(frame []byte) error {
	// frames are already JSON; RawMessage keeps Publish from re-encoding them as a string
	return r.client.Publish(context.Background(), r.topic, json.RawMessage(frame))
}

// AttachRedis makes Broadcast go through a redis channel so every instance
// behind a load balancer delivers the event to its own clients. It is a no-op
// when redis is unavailable. Must be called before the first Broadcast.
func (b *Broker) AttachRedis(ctx context.Context, client *cache.RedisClient) {
	if !client.Available() {
		return
	}
	sub := client.Subscribe(ctx, defaultRedisTopic)
	if sub == nil {
		return
	}
	if _, err := sub.Receive(ctx); err != nil {
		log.Warn().Err(err).Msg("⚠️  Redis event subscription failed, broadcasting locally only")
		_ = sub.Close()
		return
	}

	b.remote = &redisBus{client: client, topic: defaultRedisTopic}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				b.deliver([]byte(m.Payload))
			}
		}
	}()
	log.Info().Str("topic", defaultRedisTopic).Msg("📡 Live events bridged through Redis")
}
