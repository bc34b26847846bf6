package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBroadcaster(t *testing.T) {
	b := NewBroadcaster[string](false)
	require.NotNil(t, b)
	assert.Equal(t, 0, b.ListenerCount())
}

func TestBroadcaster_Subscribe_Publish_Basic(t *testing.T) {
	b := NewBroadcaster[string](false)

	ch := make(chan string, 10)
	unsubscribe := b.Subscribe(ch)
	assert.Equal(t, 1, b.ListenerCount())

	b.Publish("first")
	b.Publish("second")

	assert.Equal(t, "first", <-ch)
	assert.Equal(t, "second", <-ch)

	unsubscribe()
	assert.Equal(t, 0, b.ListenerCount())

	b.Publish("third")
	select {
	case val := <-ch:
		t.Errorf("Unexpected value received after unsubscribe: %s", val)
	default:
	}
}

func TestBroadcaster_SubscribeFunc(t *testing.T) {
	b := NewBroadcaster[int](false)

	var mu sync.Mutex
	var received []int
	unsubscribe := b.SubscribeFunc(func(v int) {
		mu.Lock()
		received = append(received, v)
		mu.Unlock()
	})

	b.Publish(1)
	b.Publish(2)

	mu.Lock()
	assert.Equal(t, []int{1, 2}, received)
	mu.Unlock()

	unsubscribe()
	b.Publish(3)

	mu.Lock()
	assert.Equal(t, []int{1, 2}, received)
	mu.Unlock()
}

func TestBroadcaster_ReplayLatest(t *testing.T) {
	b := NewBroadcaster[string](true)

	// Subscriber before any publish gets nothing replayed
	early := make(chan string, 1)
	b.Subscribe(early)
	select {
	case val := <-early:
		t.Errorf("Unexpected replay before first publish: %s", val)
	default:
	}

	b.Publish("state-1")
	b.Publish("state-2")

	// Late channel subscriber sees the latest value immediately
	late := make(chan string, 1)
	b.Subscribe(late)
	assert.Equal(t, "state-2", <-late)

	// Late callback subscriber is invoked synchronously with the latest value
	var got string
	b.SubscribeFunc(func(v string) { got = v })
	assert.Equal(t, "state-2", got)
}

func TestBroadcaster_NoReplayWhenDisabled(t *testing.T) {
	b := NewBroadcaster[string](false)
	b.Publish("gone")

	ch := make(chan string, 1)
	b.Subscribe(ch)
	select {
	case val := <-ch:
		t.Errorf("Unexpected replay on non-replaying broadcaster: %s", val)
	default:
	}
}

func TestBroadcaster_FullChannelSkipped(t *testing.T) {
	b := NewBroadcaster[int](false)

	full := make(chan int, 1)
	full <- 99 // fill it
	b.Subscribe(full)

	// Must not block
	b.Publish(1)

	assert.Equal(t, 99, <-full)
	select {
	case val := <-full:
		t.Errorf("Unexpected value on full channel: %d", val)
	default:
	}
}

func TestBroadcaster_MultipleListeners(t *testing.T) {
	b := NewBroadcaster[int](false)

	ch1 := make(chan int, 10)
	ch2 := make(chan int, 10)
	b.Subscribe(ch1)
	b.Subscribe(ch2)
	assert.Equal(t, 2, b.ListenerCount())

	b.Publish(42)
	assert.Equal(t, 42, <-ch1)
	assert.Equal(t, 42, <-ch2)
}

func TestBroadcaster_ConcurrentPublish(t *testing.T) {
	b := NewBroadcaster[int](true)

	var mu sync.Mutex
	count := 0
	b.SubscribeFunc(func(int) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			b.Publish(n)
		}(i)
	}
	wg.Wait()

	mu.Lock()
	assert.Equal(t, 10, count)
	mu.Unlock()
}

func TestBroadcaster_NilListenerPanics(t *testing.T) {
	b := NewBroadcaster[string](false)
	assert.Panics(t, func() { b.Subscribe(nil) })
	assert.Panics(t, func() { b.SubscribeFunc(nil) })
}
