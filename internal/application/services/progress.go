package services

import (
	"sync"

	"github.com/longregen/refinery/internal/ports"
)

// RefinementProgressPublisher manages subscriptions and publishing of
// refinement progress events. It separates the pub/sub infrastructure
// concern from the refinement business logic.
type RefinementProgressPublisher struct {
	channels map[string][]chan ports.RefinementProgressEvent
	mu       sync.RWMutex

	// Optional broadcaster for WebSocket delivery
	wsBroadcaster ports.RefinementProgressBroadcaster
}

// Compile-time interface check
var _ ports.RefinementProgressPublisher = (*RefinementProgressPublisher)(nil)

// NewRefinementProgressPublisher creates a new progress publisher.
// The wsBroadcaster parameter is optional - pass nil if WebSocket
// broadcasting is not needed.
func NewRefinementProgressPublisher(wsBroadcaster ports.RefinementProgressBroadcaster) *RefinementProgressPublisher {
	return &RefinementProgressPublisher{
		channels:      make(map[string][]chan ports.RefinementProgressEvent),
		wsBroadcaster: wsBroadcaster,
	}
}

// Subscribe creates a new channel for receiving progress events for a run.
// The returned channel is buffered to prevent blocking the publisher.
func (p *RefinementProgressPublisher) Subscribe(runID string) <-chan ports.RefinementProgressEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch := make(chan ports.RefinementProgressEvent, 100)
	p.channels[runID] = append(p.channels[runID], ch)
	return ch
}

// Unsubscribe removes a channel from receiving progress events.
// The channel will be closed after removal.
func (p *RefinementProgressPublisher) Unsubscribe(runID string, ch <-chan ports.RefinementProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	channels := p.channels[runID]
	for i, subscriberCh := range channels {
		if subscriberCh == ch {
			p.channels[runID] = append(channels[:i], channels[i+1:]...)
			close(subscriberCh)
			break
		}
	}

	if len(p.channels[runID]) == 0 {
		delete(p.channels, runID)
	}
}

// PublishProgress sends a progress event to all subscribers and broadcasts
// via WebSocket. Publishing is non-blocking - if a subscriber's buffer is
// full, the event is dropped for that subscriber.
func (p *RefinementProgressPublisher) PublishProgress(event ports.RefinementProgressEvent) {
	if p.wsBroadcaster != nil {
		p.wsBroadcaster.BroadcastRefinementProgress(event.RunID, event)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	channels := p.channels[event.RunID]
	for _, ch := range channels {
		// Non-blocking send to prevent slow subscribers from blocking the publisher
		select {
		case ch <- event:
		default:
			// Channel buffer is full, skip this update for this subscriber
		}
	}
}

// Close closes all channels for a run (called when the refinement reaches
// a terminal state). Subscribers observe the closure and stop reading.
func (p *RefinementProgressPublisher) Close(runID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	channels := p.channels[runID]
	for _, ch := range channels {
		close(ch)
	}
	delete(p.channels, runID)
}

// SubscriberCount returns the number of active subscribers for a run.
func (p *RefinementProgressPublisher) SubscriberCount(runID string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.channels[runID])
}
