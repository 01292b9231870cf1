// Package queue provides the in-memory FIFO work queue with external-ref dedup.
package queue

import (
	"fmt"
	"sync"

	"aifactory/pkg/item"
)

// DuplicateItemError is returned when an item's external ref is already
// enqueued or already completed. Expected during tracker re-polling.
type DuplicateItemError struct {
	ExternalRef string
}

func (e *DuplicateItemError) Error() string {
	return fmt.Sprintf("work item with external ref %s already known", e.ExternalRef)
}

// WorkQueue is an ordered FIFO container of work items. Insertion order is the
// only dispatch priority. Items sharing a non-empty external ref are rejected
// while one is enqueued or after one has completed.
type WorkQueue struct {
	mu        sync.Mutex
	items     []*item.WorkItem
	enqueued  map[string]bool // external refs currently pending/processing
	completed map[string]bool // external refs of completed items
}

// New creates an empty work queue.
func New() *WorkQueue {
	return &WorkQueue{
		items:     make([]*item.WorkItem, 0),
		enqueued:  make(map[string]bool),
		completed: make(map[string]bool),
	}
}

// Add appends the item to the tail and returns its id, generating one if
// missing. Returns DuplicateItemError if the item's external ref is already
// enqueued or completed.
func (q *WorkQueue) Add(wi *item.WorkItem) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if wi.ExternalRef != "" {
		if q.enqueued[wi.ExternalRef] || q.completed[wi.ExternalRef] {
			return "", &DuplicateItemError{ExternalRef: wi.ExternalRef}
		}
		q.enqueued[wi.ExternalRef] = true
	}

	if wi.ID == "" {
		wi.ID = item.GenerateItemID()
	}
	q.items = append(q.items, wi)
	return wi.ID, nil
}

// PopNext removes and returns the head item, or nil if the queue is empty.
func (q *WorkQueue) PopNext() *item.WorkItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}
	head := q.items[0]
	q.items = q.items[1:]
	return head
}

// Requeue re-inserts an unmatched item at the tail, not the head, so other
// items get a chance before it is retried.
func (q *WorkQueue) Requeue(wi *item.WorkItem) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, wi)
}

// MarkCompleted records the item's external ref in the completed set and
// releases its enqueued reservation. Safe to call for items without a ref.
func (q *WorkQueue) MarkCompleted(wi *item.WorkItem) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if wi.ExternalRef == "" {
		return
	}
	delete(q.enqueued, wi.ExternalRef)
	q.completed[wi.ExternalRef] = true
}

// ReleaseRef drops the enqueued reservation for a failed item's external ref
// without recording it as completed, so the tracker can resubmit it.
func (q *WorkQueue) ReleaseRef(wi *item.WorkItem) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.enqueued, wi.ExternalRef)
}

// SeedCompleted pre-loads completed external refs, typically from the
// completed_items table at startup.
func (q *WorkQueue) SeedCompleted(refs []string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, ref := range refs {
		if ref != "" {
			q.completed[ref] = true
		}
	}
}

// Size returns the number of queued items.
func (q *WorkQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// AllItems returns a snapshot of the queued items in dispatch order. The
// returned items are copies, so readers can encode them while the dispatcher
// keeps mutating the live items.
func (q *WorkQueue) AllItems() []*item.WorkItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	snapshot := make([]*item.WorkItem, 0, len(q.items))
	for _, wi := range q.items {
		copied := *wi
		snapshot = append(snapshot, &copied)
	}
	return snapshot
}

// CompletedCount returns the number of completed external refs tracked.
func (q *WorkQueue) CompletedCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.completed)
}
