// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package relay

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned when sending to a closed queue, or receiving from a
// closed queue that has been drained.
var ErrClosed = errors.New("relay: queue closed")

// Queue is an unbounded multi-producer FIFO. Send never blocks. Items from a
// single producer are received in the order they were sent.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool

	notify chan struct{}
	done   chan struct{}
}

func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Send appends v to the queue. It fails with ErrClosed once the queue is
// closed.
func (q *Queue[T]) Send(v T) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.items = append(q.items, v)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

// TryRecv pops the oldest item without blocking.
func (q *Queue[T]) TryRecv() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	v := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return v, true
}

// Drain pops every buffered item without blocking.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

// Recv blocks until an item is available, ctx is done, or the queue is
// closed and empty.
func (q *Queue[T]) Recv(ctx context.Context) (T, error) {
	var zero T
	for {
		if v, ok := q.TryRecv(); ok {
			return v, nil
		}
		if q.Closed() {
			// An item may have landed between TryRecv and Closed.
			if v, ok := q.TryRecv(); ok {
				return v, nil
			}
			return zero, ErrClosed
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-q.notify:
		case <-q.done:
		}
	}
}

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue[T]) IsEmpty() bool {
	return q.Len() == 0
}

// Close marks the queue closed. Buffered items can still be received.
// Closing twice is a no-op.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}

func (q *Queue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
