package state

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus()

	testLen := 100
	ready := make(chan struct{}, testLen)
	wg := sync.WaitGroup{}
	count := atomic.Uint64{}
	for i := 0; i < testLen; i++ {
		ch := make(chan interface{}, 1)
		bus.Subscribe(LifecycleTransition, ch)
		wg.Add(1)
		go func() {
			defer wg.Done()
			ready <- struct{}{}
			result := <-ch
			assert.Equal(t, "OK", result)
			count.Add(1)
		}()
	}
	for i := 0; i < testLen; i++ {
		<-ready
	}
	delivered := bus.Publish(LifecycleTransition, "OK")
	wg.Wait()

	assert.Equal(t, testLen, delivered)
	assert.Equal(t, uint64(testLen), count.Load())
	assert.Equal(t, testLen, bus.SubscriberCount(LifecycleTransition))
}

func TestEventBusFullSubscriberKeepsSubscription(t *testing.T) {
	bus := NewEventBus()
	ch := make(chan interface{}, 1)
	bus.Subscribe(SnapshotPublished, ch)

	assert.Equal(t, 1, bus.Publish(SnapshotPublished, 1))
	assert.Equal(t, 0, bus.Publish(SnapshotPublished, 2), "full channel misses the event")
	assert.Equal(t, 1, <-ch)
	assert.Equal(t, 1, bus.Publish(SnapshotPublished, 3))
	assert.Equal(t, 3, <-ch)
}

func TestEventBusUnsubscribe(t *testing.T) {
	bus := NewEventBus()
	a := make(chan interface{}, 1)
	b := make(chan interface{}, 1)
	bus.Subscribe(NotificationShown, a)
	bus.Subscribe(NotificationShown, b)

	bus.Unsubscribe(NotificationShown, a)
	assert.Equal(t, 1, bus.Publish(NotificationShown, "x"))
	assert.Len(t, a, 0)
	assert.Len(t, b, 1)

	bus.Unsubscribe(NotificationShown, b)
	assert.Equal(t, 0, bus.SubscriberCount(NotificationShown))

	var nilBus *EventBus
	assert.Equal(t, 0, nilBus.Publish(NotificationShown, "x"))
}
