package events

import (
	"context"
	"sync"
	"time"
)

// Hub keeps a bounded buffer of recent events per organization and wakes
// waiters when new events arrive. It is the in-process transport behind the
// SSE and long-poll endpoints.
type Hub struct {
	mu       sync.Mutex
	cond     *sync.Cond
	capacity int
	rings    map[string][]Event
	nextSeq  uint64
}

// NewHub constructs a hub keeping up to capacity events per organization.
func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = 512
	}
	h := &Hub{capacity: capacity, rings: make(map[string][]Event)}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// Send implements Transport.
func (h *Hub) Send(_ context.Context, evt Event) error {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	h.nextSeq++
	evt.Sequence = h.nextSeq
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	ring := h.rings[evt.Organization]
	if len(ring) == h.capacity {
		copy(ring, ring[1:])
		ring = ring[:h.capacity-1]
	}
	h.rings[evt.Organization] = append(ring, evt)
	h.cond.Broadcast()
	h.mu.Unlock()
	return nil
}

// Query selects events for Fetch.
type Query struct {
	Organization string
	VideoID      string
	Since        uint64
	Limit        int
	Wait         bool
}

// Fetch returns events of q.Organization with a sequence greater than
// q.Since, optionally narrowed to one video. When q.Wait is set, Fetch blocks
// until at least one matching event arrives or the context ends. The returned
// cursor is the value to pass as Since on the next call.
func (h *Hub) Fetch(ctx context.Context, q Query) ([]Event, uint64, error) {
	if h == nil {
		return nil, q.Since, nil
	}
	limit := q.Limit
	if limit <= 0 || limit > h.capacity {
		limit = h.capacity
	}

	cancelWait := make(chan struct{})
	if q.Wait && ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				h.cond.Broadcast()
			case <-cancelWait:
			}
		}()
	}
	defer close(cancelWait)

	h.mu.Lock()
	defer h.mu.Unlock()

	for {
		events, next := h.snapshotLocked(q, limit)
		if len(events) > 0 || !q.Wait {
			return events, next, contextError(ctx)
		}
		if err := contextError(ctx); err != nil {
			return nil, next, err
		}
		h.cond.Wait()
		if err := contextError(ctx); err != nil {
			return nil, next, err
		}
	}
}

// Cursor returns the latest sequence number assigned.
func (h *Hub) Cursor() uint64 {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.nextSeq
}

func (h *Hub) snapshotLocked(q Query, limit int) ([]Event, uint64) {
	var out []Event
	next := q.Since
	for _, evt := range h.rings[q.Organization] {
		if evt.Sequence <= q.Since {
			continue
		}
		if q.VideoID != "" && evt.Payload.VideoID != q.VideoID {
			next = evt.Sequence
			continue
		}
		out = append(out, evt)
		next = evt.Sequence
		if len(out) == limit {
			break
		}
	}
	return out, next
}

func contextError(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}
