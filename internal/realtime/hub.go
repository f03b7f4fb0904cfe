package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60

	// FeedWatchers carries the number of dashboards watching an event.
	FeedWatchers = "watchers"

	publishBuffer = 256
)

// Hub maintains event_id -> set of gate dashboard connections and broadcasts
// ticket activity to them. With a Redis bridge, activity published on one
// instance reaches dashboards connected to any instance.
type Hub struct {
	rooms     map[string]map[string]*Client
	subs      map[string]func() // cancel Redis subscription per event
	mu        sync.RWMutex
	logger    *zap.Logger
	redis     Publisher
	redisSub  Subscriber
	publishes chan feedMessage
}

type feedMessage struct {
	eventID   string
	kind      string
	data      []byte
	delivered bool
}

// Publisher publishes feed messages for other instances.
type Publisher interface {
	PublishEventFeed(eventID, kind string, payload []byte) error
}

// Subscriber subscribes to an event's feed channel.
type Subscriber interface {
	SubscribeEventFeed(eventID string, handler func(kind string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a hub. pub and sub may be nil for a single instance.
func NewHub(logger *zap.Logger, pub Publisher, sub Subscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:     make(map[string]map[string]*Client),
		subs:      make(map[string]func()),
		logger:    logger,
		redis:     pub,
		redisSub:  sub,
		publishes: make(chan feedMessage, publishBuffer),
	}
}

// Run drains queued feed messages to the Redis publisher until ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case m := <-h.publishes:
			if err := h.redis.PublishEventFeed(m.eventID, m.kind, m.data); err != nil {
				h.logger.Warn("feed publish failed", zap.String("event_id", m.eventID), zap.Error(err))
				if !m.delivered {
					h.broadcastLocal(m.eventID, m.kind, json.RawMessage(m.data))
				}
			}
		}
	}
}

// Register adds a client to an event room. A room without a Redis
// subscription tries to start one on every join.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.rooms[c.EventID] == nil {
		h.rooms[c.EventID] = make(map[string]*Client)
	}
	h.rooms[c.EventID][c.ID] = c
	count := len(h.rooms[c.EventID])
	_, subscribed := h.subs[c.EventID]
	h.mu.Unlock()

	if h.redisSub != nil && !subscribed {
		h.subscribe(c.EventID)
	}
	h.broadcastLocal(c.EventID, FeedWatchers, map[string]int{"count": count})
	h.logger.Debug("dashboard joined", zap.String("client_id", c.ID), zap.String("event_id", c.EventID))
}

func (h *Hub) subscribe(eventID string) {
	cancel, err := h.redisSub.SubscribeEventFeed(eventID, func(kind string, payload []byte) {
		h.broadcastLocal(eventID, kind, json.RawMessage(payload))
	})
	if err != nil {
		h.logger.Warn("feed subscribe failed", zap.String("event_id", eventID), zap.Error(err))
		return
	}

	h.mu.Lock()
	_, live := h.rooms[eventID]
	_, dup := h.subs[eventID]
	if live && !dup {
		h.subs[eventID] = cancel
		cancel = nil
	}
	h.mu.Unlock()

	// room emptied or another join won the race
	if cancel != nil {
		cancel()
	}
}

// Unregister removes a client. The last client of a room cancels its Redis
// subscription.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	var count int
	if m, ok := h.rooms[c.EventID]; ok {
		delete(m, c.ID)
		count = len(m)
		if count == 0 {
			delete(h.rooms, c.EventID)
			if cancel, ok := h.subs[c.EventID]; ok {
				cancel()
				delete(h.subs, c.EventID)
			}
		}
	}
	h.mu.Unlock()

	if count > 0 {
		h.broadcastLocal(c.EventID, FeedWatchers, map[string]int{"count": count})
	}
	h.logger.Debug("dashboard left", zap.String("client_id", c.ID), zap.String("event_id", c.EventID))
}

// Broadcast delivers a feed message to every dashboard watching eventID.
// It never blocks on Redis: publishing is queued for Run. Rooms with a live
// subscription receive the message through it; other rooms get it locally
// right away.
func (h *Hub) Broadcast(eventID, kind string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Warn("feed payload not encodable", zap.String("kind", kind), zap.Error(err))
		return
	}
	if h.redis == nil {
		h.broadcastLocal(eventID, kind, json.RawMessage(data))
		return
	}

	h.mu.RLock()
	_, subscribed := h.subs[eventID]
	h.mu.RUnlock()
	if !subscribed {
		h.broadcastLocal(eventID, kind, json.RawMessage(data))
	}

	select {
	case h.publishes <- feedMessage{eventID: eventID, kind: kind, data: data, delivered: !subscribed}:
	default:
		h.logger.Warn("feed publish queue full", zap.String("event_id", eventID), zap.String("kind", kind))
		if subscribed {
			h.broadcastLocal(eventID, kind, json.RawMessage(data))
		}
	}
}

func (h *Hub) broadcastLocal(eventID, kind string, payload any) {
	var data []byte
	switch v := payload.(type) {
	case json.RawMessage:
		data = v
	default:
		data, _ = json.Marshal(payload)
	}
	msg := Message{Kind: kind, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[eventID] {
		select {
		case c.send <- msg:
		default:
			// slow dashboard, drop
		}
	}
}

// Watchers returns the number of dashboards connected for an event.
func (h *Hub) Watchers(eventID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[eventID])
}
