package live

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultChannel is the Redis channel changes are relayed on.
const DefaultChannel = "vsnplyr:changes"

// relayBuffer holds local changes awaiting their Redis round trip, so a
// burst such as clearing a large playlist is relayed in full.
const relayBuffer = 4096

// RedisRelay mirrors local changes to a Redis channel and publishes
// changes from other processes on the local bus, so subscribers on every
// instance see every write.
type RedisRelay struct {
	rdb     redis.UniversalClient
	channel string
	bus     *Bus
	logger  *logrus.Logger
}

// NewRedisRelay creates a relay; an empty channel selects DefaultChannel.
func NewRedisRelay(rdb redis.UniversalClient, channel string, bus *Bus, logger *logrus.Logger) *RedisRelay {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisRelay{rdb: rdb, channel: channel, bus: bus, logger: logger}
}

// Run relays in both directions until ctx is done. It returns once the
// Redis subscription is confirmed or has failed, leaving the relay
// running in the background.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.rdb.Subscribe(ctx, r.channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return err
	}

	local := r.bus.SubscribeBuffered(func(c Change) bool {
		return c.Origin == r.bus.Origin()
	}, relayBuffer)

	go r.inbound(ctx, sub)
	go r.outbound(ctx, local)

	r.logger.WithField("channel", r.channel).Info("Redis change relay started")
	return nil
}

func (r *RedisRelay) inbound(ctx context.Context, sub *redis.PubSub) {
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var c Change
			if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
				r.logger.WithError(err).Warn("Discarding malformed relayed change")
				continue
			}
			if c.Origin == r.bus.Origin() {
				continue
			}
			r.bus.Publish(c)
		case <-ctx.Done():
			return
		}
	}
}

func (r *RedisRelay) outbound(ctx context.Context, local <-chan Change) {
	defer r.bus.Unsubscribe(local)

	for {
		select {
		case c, ok := <-local:
			if !ok {
				return
			}
			payload, err := json.Marshal(c)
			if err != nil {
				continue
			}
			if err := r.rdb.Publish(ctx, r.channel, payload).Err(); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				r.logger.WithError(err).WithField("table", c.Table).Warn("Failed to relay change")
			}
		case <-ctx.Done():
			return
		}
	}
}
