// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestQueue_FIFO(t *testing.T) {
	t.Parallel()
	q := NewQueue[int]()
	for i := range 100 {
		if err := q.Send(i); err != nil {
			t.Fatalf("Send(%d): %v", i, err)
		}
	}
	if q.Len() != 100 {
		t.Fatalf("Len: got %d, want 100", q.Len())
	}
	for i := range 100 {
		v, ok := q.TryRecv()
		if !ok || v != i {
			t.Fatalf("TryRecv: got (%d, %v), want (%d, true)", v, ok, i)
		}
	}
	if _, ok := q.TryRecv(); ok {
		t.Error("TryRecv on empty queue should report false")
	}
	if !q.IsEmpty() {
		t.Error("queue should be empty")
	}
}

func TestQueue_Drain(t *testing.T) {
	t.Parallel()
	q := NewQueue[string]()
	_ = q.Send("a")
	_ = q.Send("b")
	got := q.Drain()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Drain: got %q, want [a b]", got)
	}
	if got := q.Drain(); len(got) != 0 {
		t.Errorf("second Drain: got %q, want empty", got)
	}
}

func TestQueue_RecvBlocksUntilSend(t *testing.T) {
	t.Parallel()
	q := NewQueue[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result := make(chan int, 1)
	go func() {
		v, err := q.Recv(ctx)
		if err != nil {
			t.Errorf("Recv: %v", err)
		}
		result <- v
	}()

	time.Sleep(20 * time.Millisecond)
	_ = q.Send(42)

	select {
	case v := <-result:
		if v != 42 {
			t.Errorf("Recv: got %d, want 42", v)
		}
	case <-ctx.Done():
		t.Fatal("Recv did not return after Send")
	}
}

func TestQueue_RecvHonoursContext(t *testing.T) {
	t.Parallel()
	q := NewQueue[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := q.Recv(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Recv: got %v, want context.DeadlineExceeded", err)
	}
}

func TestQueue_Close(t *testing.T) {
	t.Parallel()
	q := NewQueue[int]()
	_ = q.Send(1)
	q.Close()
	q.Close()

	if err := q.Send(2); !errors.Is(err, ErrClosed) {
		t.Errorf("Send after Close: got %v, want ErrClosed", err)
	}
	v, err := q.Recv(context.Background())
	if err != nil || v != 1 {
		t.Errorf("Recv buffered item: got (%d, %v), want (1, nil)", v, err)
	}
	if _, err := q.Recv(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Recv on drained closed queue: got %v, want ErrClosed", err)
	}
}

func TestQueue_CloseWakesReceiver(t *testing.T) {
	t.Parallel()
	q := NewQueue[int]()
	errc := make(chan error, 1)
	go func() {
		_, err := q.Recv(context.Background())
		errc <- err
	}()
	time.Sleep(20 * time.Millisecond)
	q.Close()
	select {
	case err := <-errc:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("Recv: got %v, want ErrClosed", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not wake the receiver")
	}
}

// TestQueue_PerProducerOrder verifies that concurrent producers each keep
// their own ordering.
func TestQueue_PerProducerOrder(t *testing.T) {
	t.Parallel()
	type item struct{ producer, seq int }
	q := NewQueue[item]()

	const producers, perProducer = 4, 500
	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perProducer {
				_ = q.Send(item{p, i})
			}
		}()
	}
	wg.Wait()

	next := make([]int, producers)
	for _, it := range q.Drain() {
		if it.seq != next[it.producer] {
			t.Fatalf("producer %d: got seq %d, want %d", it.producer, it.seq, next[it.producer])
		}
		next[it.producer]++
	}
	for p, n := range next {
		if n != perProducer {
			t.Errorf("producer %d: received %d items, want %d", p, n, perProducer)
		}
	}
}
