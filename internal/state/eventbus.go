package state

import (
	"sync"
)

type EventType int

const (
	EventUnkown EventType = iota
	SnapshotPublished
	LifecycleTransition
	NotificationShown
	NotificationCleared
)

func (e EventType) String() string {
	names := [...]string{"EventUnkown", "SnapshotPublished", "LifecycleTransition", "NotificationShown", "NotificationCleared"}
	if e < 0 || int(e) >= len(names) {
		return names[0]
	}
	return names[e]
}

// EventBus fans events out to subscriber channels. Publish never blocks: a
// subscriber whose channel is full misses that event.
type EventBus struct {
	subscribers map[EventType][]chan interface{}
	mu          sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]chan interface{}),
	}
}

func (eb *EventBus) Subscribe(eventType EventType, ch chan interface{}) {
	if ch == nil {
		panic("channel == nil")
	}
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.subscribers[eventType] = append(eb.subscribers[eventType], ch)
}

// Publish returns the number of subscribers that received data.
func (eb *EventBus) Publish(eventType EventType, data interface{}) int {
	if eb == nil {
		return 0
	}
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	delivered := 0
	for _, ch := range eb.subscribers[eventType] {
		select {
		case ch <- data:
			delivered++
		default:
		}
	}
	return delivered
}

func (eb *EventBus) Unsubscribe(eventType EventType, ch chan interface{}) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	subscribers, ok := eb.subscribers[eventType]
	if !ok {
		return
	}

	for i, subscriber := range subscribers {
		if subscriber == ch {
			eb.subscribers[eventType] = append(subscribers[:i:i], subscribers[i+1:]...)
			break
		}
	}
	if len(eb.subscribers[eventType]) == 0 {
		delete(eb.subscribers, eventType)
	}
}

func (eb *EventBus) SubscriberCount(eventType EventType) int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.subscribers[eventType])
}
