// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package notify

import (
	"sync"
	"time"
)

// DefaultMaxVisible caps how many toasts a Queue keeps.
const DefaultMaxVisible = 5

// Queue is a bounded list of live toasts, newest first. It implements
// Notifier.
type Queue struct {
	mu     sync.Mutex
	items  []Notification
	nextID int
	max    int
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{nextID: 1, max: DefaultMaxVisible}
}

// Notify adds n, assigning an id when it has none.
func (q *Queue) Notify(n Notification) {
	q.Push(n)
}

// Push adds n to the front and returns its id. The oldest toast is dropped
// when the queue is full.
func (q *Queue) Push(n Notification) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if n.ID == 0 {
		n.ID = q.nextID
		q.nextID++
	}
	if n.Duration == 0 {
		n.Duration = n.Level.Duration()
	}
	if n.At.IsZero() {
		n.At = time.Now()
	}

	q.items = append([]Notification{n}, q.items...)
	if len(q.items) > q.max {
		q.items = q.items[:q.max]
	}
	return n.ID
}

// Remove dismisses a toast by id.
func (q *Queue) Remove(id int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, n := range q.items {
		if n.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return
		}
	}
}

// DismissNewest removes the most recent toast, if any.
func (q *Queue) DismissNewest() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) > 0 {
		q.items = q.items[1:]
	}
}

// Tick drops toasts expired at now and returns a copy of the rest.
func (q *Queue) Tick(now time.Time) []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()

	live := q.items[:0]
	for _, n := range q.items {
		if !n.Expired(now) {
			live = append(live, n)
		}
	}
	q.items = live
	return append([]Notification(nil), q.items...)
}

// Items returns a copy of the current toasts.
func (q *Queue) Items() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Notification(nil), q.items...)
}

// Len returns the number of toasts.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Clear removes all toasts.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
}
