package streaming

import (
	"context"
	"sync"
)

// subscriberBuffer bounds how far a consumer may lag before it loses events.
const subscriberBuffer = 64

type subscription struct {
	id    uint64
	runID string
	types map[string]struct{} // nil means every event type
	ch    chan RunEvent
}

func (s *subscription) wants(e RunEvent) bool {
	if s.types == nil {
		return true
	}
	_, ok := s.types[e.EventType]
	return ok
}

// MemoryHub fans run events out to in-process subscribers. Subscriptions are
// bucketed by run id, so publishing an event only walks the listeners of that
// run; subscribers with no run filter live in a separate wildcard bucket.
type MemoryHub struct {
	mu     sync.Mutex
	nextID uint64
	byRun  map[string][]*subscription
	global []*subscription
}

func NewMemoryHub() *MemoryHub {
	return &MemoryHub{byRun: make(map[string][]*subscription)}
}

// Publish delivers the event to the subscribers of its run plus the wildcard
// bucket. Delivery never blocks: a full channel means that subscriber misses
// the event.
func (h *MemoryHub) Publish(ctx context.Context, event RunEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.Lock()
	targets := make([]*subscription, 0, len(h.byRun[event.RunID])+len(h.global))
	targets = append(targets, h.byRun[event.RunID]...)
	targets = append(targets, h.global...)
	h.mu.Unlock()

	for _, sub := range targets {
		if !sub.wants(event) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
		}
	}
	return nil
}

// Subscribe registers a listener for events matching the filter. The cancel
// function removes the subscription and drops its run bucket when it was the
// last listener; the channel is never closed by the hub.
func (h *MemoryHub) Subscribe(ctx context.Context, filter EventFilter) (<-chan RunEvent, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	sub := &subscription{
		runID: filter.RunID,
		ch:    make(chan RunEvent, subscriberBuffer),
	}
	if len(filter.EventTypes) > 0 {
		sub.types = make(map[string]struct{}, len(filter.EventTypes))
		for _, t := range filter.EventTypes {
			sub.types[t] = struct{}{}
		}
	}

	h.mu.Lock()
	h.nextID++
	sub.id = h.nextID
	if sub.runID == "" {
		h.global = append(h.global, sub)
	} else {
		h.byRun[sub.runID] = append(h.byRun[sub.runID], sub)
	}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub.runID == "" {
			h.global = dropSubscription(h.global, sub.id)
			return
		}
		remaining := dropSubscription(h.byRun[sub.runID], sub.id)
		if len(remaining) == 0 {
			delete(h.byRun, sub.runID)
			return
		}
		h.byRun[sub.runID] = remaining
	}

	return sub.ch, cancel, nil
}

func dropSubscription(subs []*subscription, id uint64) []*subscription {
	for i, s := range subs {
		if s.id == id {
			return append(subs[:i], subs[i+1:]...)
		}
	}
	return subs
}

var _ EventHub = (*MemoryHub)(nil)
