package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/dumu-tech/restaurant-orders/internal/core"
	"github.com/google/uuid"
)

// FeedKind names the kind of a live feed notification
type FeedKind string

const (
	FeedSnapshot       FeedKind = "snapshot"
	FeedAdded          FeedKind = "added"
	FeedModified       FeedKind = "modified"
	FeedRemoved        FeedKind = "removed"
	FeedUploadProgress FeedKind = "upload_progress"
)

// FeedEvent is one notification delivered to a feed subscriber
type FeedEvent struct {
	Kind     FeedKind             `json:"kind"`
	Orders   []*core.Order        `json:"orders,omitempty"`
	Order    *core.Order          `json:"order,omitempty"`
	Progress *core.UploadProgress `json:"progress,omitempty"`
}

// OrderLister is the query side the feed needs for its initial snapshot
type OrderLister interface {
	List(ctx context.Context, filter core.OrderFilter) ([]*core.Order, error)
}

// OrderFeed pushes the order collection to admin views: a full snapshot
// first, then deltas relative to the subscriber's filter.
type OrderFeed struct {
	bus    *Bus
	orders OrderLister
}

// NewOrderFeed creates a live order feed over the local bus
func NewOrderFeed(bus *Bus, orders OrderLister) *OrderFeed {
	return &OrderFeed{bus: bus, orders: orders}
}

// Subscription is a live feed handle. It must be closed by its owner.
type Subscription struct {
	events chan FeedEvent
	cancel context.CancelFunc
	once   sync.Once
	done   chan struct{}
}

// Events returns the notification channel. It is closed after Close, when
// the subscription context ends, or when the subscriber fell too far behind
// the bus; in every case the owner resubscribes to get a fresh snapshot.
func (s *Subscription) Events() <-chan FeedEvent {
	return s.events
}

// Close releases the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
}

// Subscribe opens a feed for orders matching filter. Limit on the filter only
// bounds the initial snapshot. The subscription also ends when ctx is done.
func (f *OrderFeed) Subscribe(ctx context.Context, filter core.OrderFilter) (*Subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)

	// subscribe before querying so nothing written in between is lost;
	// a change may then be seen both in the snapshot and as a delta
	source := f.bus.Subscribe(subCtx, uuid.New().String())

	snapshot, err := f.orders.List(subCtx, filter)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to load order snapshot: %w", err)
	}

	sub := &Subscription{
		events: make(chan FeedEvent, 16),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	sub.events <- FeedEvent{Kind: FeedSnapshot, Orders: snapshot}

	go func() {
		defer close(sub.done)
		defer close(sub.events)
		for {
			select {
			case <-subCtx.Done():
				return
			case event, ok := <-source:
				if !ok {
					return
				}
				feedEvent, deliver := translate(filter, event)
				if !deliver {
					continue
				}
				select {
				case sub.events <- feedEvent:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return sub, nil
}

// translate maps a bus event onto the subscriber's view of the collection
func translate(filter core.OrderFilter, event Event) (FeedEvent, bool) {
	switch data := event.Data.(type) {
	case *OrderChange:
		if data.Order == nil {
			return FeedEvent{}, false
		}
		kind, ok := classifyDelta(filter, event.Type, data.PreviousStatus, data.Order.Status)
		if !ok {
			return FeedEvent{}, false
		}
		return FeedEvent{Kind: kind, Order: data.Order}, true
	case *core.UploadProgress:
		return FeedEvent{Kind: FeedUploadProgress, Progress: data}, true
	default:
		return FeedEvent{}, false
	}
}

func classifyDelta(filter core.OrderFilter, eventType EventType, previous, current core.OrderStatus) (FeedKind, bool) {
	if eventType == EventOrderAdded {
		return FeedAdded, filter.Matches(current)
	}

	wasIn := filter.Matches(previous)
	isIn := filter.Matches(current)
	switch {
	case wasIn && isIn:
		return FeedModified, true
	case wasIn:
		return FeedRemoved, true
	case isIn:
		return FeedAdded, true
	default:
		return "", false
	}
}
