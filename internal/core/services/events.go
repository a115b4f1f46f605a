package services

import (
	"sync"

	"github.com/custodia-labs/recall-cli/internal/core/domain"
)

// progressBroker fans ingestion progress events out to subscribers.
// Sends never block: a subscriber that falls behind misses events
// rather than stalling the pipeline.
type progressBroker struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan domain.IngestionProgress
}

const subscriberBuffer = 64

func newProgressBroker() *progressBroker {
	return &progressBroker{
		subs: make(map[int]chan domain.IngestionProgress),
	}
}

// Subscribe registers a new listener. The returned cancel function
// removes the subscription and closes the channel.
func (b *progressBroker) Subscribe() (<-chan domain.IngestionProgress, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++

	ch := make(chan domain.IngestionProgress, subscriberBuffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber with buffer space.
func (b *progressBroker) Publish(event domain.IngestionProgress) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
			// Subscriber buffer full, drop the event for them.
		}
	}
}
