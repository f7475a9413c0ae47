package socket

import (
  "context"
  "sync"

  "github.com/google/uuid"

  "github.com/studyhall-org/studyhall-backend/internal/logger"
)

// Message is the wire format pushed to subscribed clients. Channel routes
// it ("user:<id>" or "chat:<id>"), Event names what happened.
type Message struct {
  Channel   string        `json:"channel"`
  Event     string        `json:"event,omitempty"`
  Data      interface{}   `json:"data,omitempty"`
}

type Hub struct {
  log         *logger.Logger
  mu          sync.RWMutex
  channels    map[string]map[uuid.UUID]*Client

  redisPubSub *RedisPubSub
}

func NewHub(log *logger.Logger) *Hub {
  return &Hub{
    log:      log.With("component", "Hub"),
    channels: make(map[string]map[uuid.UUID]*Client),
  }
}

// SetRedisPubSub attaches the cross-node fanout. Optional: a hub without
// it only reaches clients on this node.
func (h *Hub) SetRedisPubSub(rp *RedisPubSub) {
  h.redisPubSub = rp
}

func (h *Hub) Subscribe(client *Client, channels []string) {
  h.mu.Lock()
  defer h.mu.Unlock()

  for _, ch := range channels {
    if h.channels[ch] == nil {
      h.channels[ch] = make(map[uuid.UUID]*Client)
    }
    h.channels[ch][client.ID] = client
  }
  h.log.Debug("Client subscribed", "client", client.ID, "channels", channels)
}

func (h *Hub) Unsubscribe(client *Client) {
  h.mu.Lock()
  defer h.mu.Unlock()

  for ch, clientsMap := range h.channels {
    if _, ok := clientsMap[client.ID]; ok {
      delete(clientsMap, client.ID)
      if len(clientsMap) == 0 {
        delete(h.channels, ch)
      }
    }
  }
  h.log.Debug("Client unsubscribed from all channels", "client", client.ID)
}

func (h *Hub) UnsubscribeFromChannel(client *Client, channel string) {
  h.mu.Lock()
  defer h.mu.Unlock()
  if clientsMap, ok := h.channels[channel]; ok {
    delete(clientsMap, client.ID)
    if len(clientsMap) == 0 {
      delete(h.channels, channel)
    }
  }
}

func (h *Hub) localBroadcast(msg Message) {
  h.mu.RLock()
  defer h.mu.RUnlock()

  clientsMap, ok := h.channels[msg.Channel]
  if !ok {
    return
  }
  for _, client := range clientsMap {
    select {
    case client.Outbound <- msg:
    default:
      h.log.Warn("Dropping message to client; outbound buffer full", "client", client.ID, "channel", msg.Channel)
    }
  }
}

// BroadcastGlobal delivers to local subscribers and, when Redis is wired,
// publishes so other nodes can do the same.
func (h *Hub) BroadcastGlobal(ctx context.Context, msg Message) {
  h.localBroadcast(msg)

  if h.redisPubSub != nil {
    if err := h.redisPubSub.Publish(msg); err != nil {
      h.log.Warn("Failed to publish to Redis", "error", err)
    }
  }
}

// Emit is the fire-and-forget entry point services use.
func (h *Hub) Emit(channel string, event string, data map[string]interface{}) {
  h.BroadcastGlobal(context.Background(), Message{Channel: channel, Event: event, Data: data})
}
