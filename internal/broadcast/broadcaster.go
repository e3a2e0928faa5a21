package broadcast

import (
	"sync"

	"go.uber.org/zap"
)

// Event is one server-sent update pushed to connected clients.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Broadcaster fans events out to SSE subscribers. Each subscriber gets a
// buffered channel; a subscriber that stops draining loses events rather
// than blocking the publisher.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[chan Event]struct{}
	logger *zap.Logger
}

func New(logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		subs:   make(map[chan Event]struct{}),
		logger: logger,
	}
}

// Subscribe registers a listener. The returned cancel func must be
// called when the client disconnects.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
	}
	return ch, cancel
}

// Publish delivers the event to every live subscriber.
func (b *Broadcaster) Publish(evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subs {
		select {
		case ch <- evt:
		default:
			b.logger.Warn("dropping event for slow subscriber",
				zap.String("type", evt.Type))
		}
	}
}

// Len reports the number of live subscribers.
func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
