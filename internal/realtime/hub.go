package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// Event names pushed to dashboards.
const (
	EventEntryCreated   = "entry_created"
	EventWinnerSelected = "winner_selected"
	EventViewerCount    = "viewer_count"
)

// Event is a raffle activity notification. BusinessID scopes delivery: business
// viewers only see events for their own account; admins see everything.
type Event struct {
	Name       string      `json:"event"`
	RaffleID   uuid.UUID   `json:"raffle_id"`
	BusinessID *uuid.UUID  `json:"business_id,omitempty"`
	Data       interface{} `json:"data"`
}

// Hub maintains raffle_id -> set of dashboard connections and broadcasts events.
// With Redis configured, events fan out through pub/sub so every instance delivers them.
type Hub struct {
	rooms    map[uuid.UUID]map[string]*Client
	subs     map[uuid.UUID]func() // cancel Redis subscription per raffle
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
}

// RedisPublisher is the interface for publishing to Redis (for cross-instance broadcast).
type RedisPublisher interface {
	PublishRaffleEvent(ctx context.Context, raffleID uuid.UUID, payload []byte) error
}

// RedisSubscriber subscribes to raffle channels and invokes handler for incoming events.
type RedisSubscriber interface {
	SubscribeRaffle(raffleID uuid.UUID, handler func(payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub. redisPub and redisSub may be nil for single-instance use.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:    make(map[uuid.UUID]map[string]*Client),
		subs:     make(map[uuid.UUID]func()),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// Register adds a client to a raffle room. Starts the Redis subscription for the raffle on first client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.rooms[c.RaffleID] == nil {
		h.rooms[c.RaffleID] = make(map[string]*Client)
		if h.redisSub != nil {
			raffleID := c.RaffleID
			cancel, err := h.redisSub.SubscribeRaffle(raffleID, func(payload []byte) {
				var raw struct {
					Name       string          `json:"event"`
					RaffleID   uuid.UUID       `json:"raffle_id"`
					BusinessID *uuid.UUID      `json:"business_id,omitempty"`
					Data       json.RawMessage `json:"data"`
				}
				if err := json.Unmarshal(payload, &raw); err != nil {
					return
				}
				h.Broadcast(Event{Name: raw.Name, RaffleID: raw.RaffleID, BusinessID: raw.BusinessID, Data: raw.Data})
			})
			if err != nil {
				h.logger.Warn("raffle subscription failed", zap.String("raffle_id", raffleID.String()), zap.Error(err))
			} else {
				h.subs[raffleID] = cancel
			}
		}
	}
	h.rooms[c.RaffleID][c.ID] = c
	count := len(h.rooms[c.RaffleID])
	h.mu.Unlock()

	h.Broadcast(Event{Name: EventViewerCount, RaffleID: c.RaffleID, Data: map[string]int{"count": count}})
	h.logger.Debug("viewer joined raffle", zap.String("client_id", c.ID), zap.String("raffle_id", c.RaffleID.String()))
}

// Unregister removes a client from a raffle room. Cancels the Redis subscription when the last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.rooms[c.RaffleID]; ok {
		if _, present := m[c.ID]; present {
			delete(m, c.ID)
			close(c.send)
		}
		if len(m) == 0 {
			delete(h.rooms, c.RaffleID)
			if cancel, ok := h.subs[c.RaffleID]; ok {
				cancel()
				delete(h.subs, c.RaffleID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("viewer left raffle", zap.String("client_id", c.ID), zap.String("raffle_id", c.RaffleID.String()))
}

// Broadcast delivers ev to the local clients of its raffle that may see it.
func (h *Hub) Broadcast(ev Event) {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return
	}
	msg := WSMessage{Event: ev.Name, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[ev.RaffleID] {
		if !c.canSee(ev) {
			continue
		}
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// Publish sends ev to every instance. With Redis the subscriber callback performs the
// local broadcast, so local clients are not delivered to twice.
func (h *Hub) Publish(ctx context.Context, ev Event) error {
	if h.redis == nil {
		h.Broadcast(ev)
		return nil
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return h.redis.PublishRaffleEvent(ctx, ev.RaffleID, body)
}

// ViewerCount returns the number of connected clients for a raffle on this instance.
func (h *Hub) ViewerCount(raffleID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[raffleID])
}
