package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types published by the service.
const (
	CacheRefreshed  = "cache.refreshed"
	RulesetsChanged = "rulesets.changed"
	SettingsChanged = "settings.changed"
)

// Event represents a single SSE event.
type Event struct {
	Type string    `json:"type"`
	Time time.Time `json:"time"`
	Data any       `json:"data"`
}

// MarshalData returns JSON-encoded data field.
func (e *Event) MarshalData() []byte {
	b, _ := json.Marshal(e.Data)
	return b
}

// Subscriber receives events via a buffered channel.
type Subscriber struct {
	ID     string
	Events chan *Event
}

// Bus is an in-memory pub/sub event bus with fan-out to SSE subscribers.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[string]*Subscriber),
	}
}

// Subscribe registers a subscriber under a fresh ID.
func (b *Bus) Subscribe() *Subscriber {
	sub := &Subscriber{
		ID:     uuid.New().String(),
		Events: make(chan *Event, 64),
	}
	b.mu.Lock()
	b.subscribers[sub.ID] = sub
	b.mu.Unlock()
	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	if sub, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		close(sub.Events)
	}
	b.mu.Unlock()
}

// Publish sends an event to all subscribers without blocking.
// A subscriber whose channel is full misses the event.
func (b *Bus) Publish(eventType string, data any) {
	if b == nil {
		return
	}
	event := &Event{
		Type: eventType,
		Time: time.Now(),
		Data: data,
	}
	b.mu.RLock()
	for _, sub := range b.subscribers {
		select {
		case sub.Events <- event:
		default:
		}
	}
	b.mu.RUnlock()
}

// Len returns the number of active subscribers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
