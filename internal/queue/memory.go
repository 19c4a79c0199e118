package queue

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryQueue is an in-process Queue with SQS-like visibility semantics.
// Used by tests and single-process deployments.
type MemoryQueue struct {
	mu         sync.Mutex
	messages   map[string]*memMessage
	order      []string
	visibility time.Duration
	seq        uint64
	nowFn      func() time.Time
}

type memMessage struct {
	id             string
	wire           string
	deliveryCount  int
	invisibleUntil time.Time
}

// NewMemoryQueue creates a MemoryQueue with the given visibility window.
func NewMemoryQueue(visibility time.Duration) *MemoryQueue {
	if visibility <= 0 {
		visibility = 30 * time.Second
	}
	return &MemoryQueue{
		messages:   make(map[string]*memMessage),
		visibility: visibility,
		nowFn:      time.Now,
	}
}

// Enqueue appends a message.
func (q *MemoryQueue) Enqueue(ctx context.Context, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.seq++
	id := fmt.Sprintf("mem-%d", q.seq)
	q.messages[id] = &memMessage{id: id, wire: encodeBody(body, 0)}
	q.order = append(q.order, id)
	return nil
}

// ReceiveBatch returns up to max currently visible messages and starts their
// visibility window.
func (q *MemoryQueue) ReceiveBatch(ctx context.Context, max int) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	// Drop acked ids from order before scanning, so the slice tracks the
	// live message count instead of total throughput.
	kept := q.order[:0]
	for _, id := range q.order {
		if _, ok := q.messages[id]; ok {
			kept = append(kept, id)
		}
	}
	q.order = kept

	now := q.nowFn()
	var batch []Message
	for _, id := range q.order {
		if len(batch) >= max {
			break
		}
		m := q.messages[id]
		if now.Before(m.invisibleUntil) {
			continue
		}
		m.deliveryCount++
		m.invisibleUntil = now.Add(q.visibility)

		body, err := decodeBody(m.wire)
		if err != nil {
			return nil, err
		}
		batch = append(batch, Message{
			ID:            m.id,
			Body:          body,
			DeliveryCount: m.deliveryCount,
			handle:        m.id,
		})
	}
	return batch, nil
}

// Ack removes a delivered message.
func (q *MemoryQueue) Ack(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.messages, msg.handle)
	return nil
}

// Len returns the number of messages not yet acked, visible or not.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages)
}

// ExpireInflight makes all unacked messages immediately visible again.
// Test helper simulating visibility window expiry.
func (q *MemoryQueue) ExpireInflight() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, m := range q.messages {
		m.invisibleUntil = time.Time{}
	}
}
