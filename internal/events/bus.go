package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dumu-tech/restaurant-orders/internal/core"
)

// EventType represents the type of event
type EventType string

const (
	EventOrderAdded     EventType = "order_added"
	EventOrderModified  EventType = "order_modified"
	EventUploadProgress EventType = "upload_progress"
)

// Event represents a change notification
type Event struct {
	Type EventType   `json:"type"`
	Data interface{} `json:"data"`
}

// OrderChange is the payload of order events
type OrderChange struct {
	Order          *core.Order      `json:"order"`
	PreviousStatus core.OrderStatus `json:"previous_status,omitempty"`
}

// Publisher delivers events to every subscriber, possibly on other instances
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Bus manages in-process subscriptions and broadcasts events
type Bus struct {
	subscribers map[string]chan Event
	mu          sync.RWMutex
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[string]chan Event),
	}
}

// subscriberBuffer is how far a subscriber may fall behind before it is dropped
const subscriberBuffer = 32

// Subscribe adds a new subscriber and returns a channel for receiving events.
// The channel is closed when ctx is done, on Unsubscribe, or when the
// subscriber falls subscriberBuffer events behind.
func (b *Bus) Subscribe(ctx context.Context, id string) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	b.subscribers[id] = ch

	go func() {
		<-ctx.Done()
		b.Unsubscribe(id)
	}()

	return ch
}

// Unsubscribe removes a subscriber
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, exists := b.subscribers[id]; exists {
		close(ch)
		delete(b.subscribers, id)
	}
}

// Publish sends an event to all local subscribers without blocking. A
// subscriber whose buffer is full is closed rather than silently skipped,
// so it knows its view is incomplete and can start over.
func (b *Bus) Publish(_ context.Context, event Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			close(ch)
			delete(b.subscribers, id)
		}
	}
	return nil
}

// SubscriberCount returns the number of live subscribers
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// NewOrderAdded builds the event for a freshly placed order
func NewOrderAdded(order *core.Order) Event {
	return Event{Type: EventOrderAdded, Data: &OrderChange{Order: order}}
}

// NewOrderModified builds the event for a status change
func NewOrderModified(order *core.Order, previous core.OrderStatus) Event {
	return Event{Type: EventOrderModified, Data: &OrderChange{Order: order, PreviousStatus: previous}}
}

// NewUploadProgress builds the event for an image upload step
func NewUploadProgress(progress core.UploadProgress) Event {
	return Event{Type: EventUploadProgress, Data: &progress}
}

// Encode serializes an event for transport
func Encode(event Event) ([]byte, error) {
	return json.Marshal(event)
}

// Decode restores an event with its typed payload
func Decode(raw []byte) (Event, error) {
	var envelope struct {
		Type EventType       `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return Event{}, fmt.Errorf("failed to decode event: %w", err)
	}

	var data interface{}
	switch envelope.Type {
	case EventOrderAdded, EventOrderModified:
		data = &OrderChange{}
	case EventUploadProgress:
		data = &core.UploadProgress{}
	default:
		return Event{}, fmt.Errorf("unknown event type %q", envelope.Type)
	}

	if err := json.Unmarshal(envelope.Data, data); err != nil {
		return Event{}, fmt.Errorf("failed to decode %s payload: %w", envelope.Type, err)
	}
	return Event{Type: envelope.Type, Data: data}, nil
}

// FormatSSE formats an event as Server-Sent Event string
func FormatSSE(name string, payload interface{}) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	return "event: " + name + "\ndata: " + string(data) + "\n\n", nil
}
