package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	channelPrefix  = "gate:"
	publishTimeout = 5 * time.Second
)

type redisPayload struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
	At   int64           `json:"at"`
}

// RedisPubSub bridges event feeds across server instances.
type RedisPubSub struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisPubSub creates a Redis pub/sub bridge for gate feeds.
func NewRedisPubSub(client *redis.Client, logger *zap.Logger) *RedisPubSub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPubSub{client: client, logger: logger}
}

func channel(eventID string) string { return channelPrefix + eventID }

// PublishEventFeed publishes a feed message on the event's channel.
func (r *RedisPubSub) PublishEventFeed(eventID, kind string, payload []byte) error {
	body, err := json.Marshal(redisPayload{Kind: kind, Data: payload, At: time.Now().Unix()})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	return r.client.Publish(ctx, channel(eventID), body).Err()
}

// SubscribeEventFeed calls handler for each message on the event's channel
// until the returned cancel function is called.
func (r *RedisPubSub) SubscribeEventFeed(eventID string, handler func(kind string, payload []byte)) (cancel func(), err error) {
	ctx, cancelCtx := context.WithCancel(context.Background())
	pubsub := r.client.Subscribe(ctx, channel(eventID))
	if _, err = pubsub.Receive(ctx); err != nil {
		cancelCtx()
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var p redisPayload
				if err := json.Unmarshal([]byte(msg.Payload), &p); err != nil {
					r.logger.Debug("bad feed payload", zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				handler(p.Kind, p.Data)
			}
		}
	}()
	return cancelCtx, nil
}
