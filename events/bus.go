// Package events provides the in-process publish/subscribe channel that
// carries upload progress to the consuming front end.
package events

import (
	"sync"

	"github.com/r2uploader/uploader/uploadtypes"
)

// TopicUploadProgress is the topic all upload status events are published on.
const TopicUploadProgress = "upload-progress"

// DefaultBuffer is the subscriber channel capacity used by Subscribe.
const DefaultBuffer = 64

// Bus is a topic-keyed in-memory event bus. Publishing never blocks: when a
// subscriber's buffer is full the event is dropped for that subscriber.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]chan uploadtypes.ProgressEvent
	closed      bool
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[string][]chan uploadtypes.ProgressEvent),
	}
}

// Subscribe registers a new subscriber channel for a topic. The channel is
// closed when the bus is closed.
func (b *Bus) Subscribe(topic string) <-chan uploadtypes.ProgressEvent {
	ch := make(chan uploadtypes.ProgressEvent, DefaultBuffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subscribers[topic] = append(b.subscribers[topic], ch)
	return ch
}

// Publish delivers an event to every subscriber of the topic. Delivery is
// fire-and-forget; slow subscribers lose events rather than stalling uploads.
func (b *Bus) Publish(topic string, event uploadtypes.ProgressEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subscribers[topic] {
		select {
		case ch <- event:
		default:
		}
	}
}

// Close shuts the bus down and closes all subscriber channels. Publishing
// after Close is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, subs := range b.subscribers {
		for _, ch := range subs {
			close(ch)
		}
	}
	b.subscribers = nil
}

var _ uploadtypes.EventSink = (*Bus)(nil)
