package queue

import (
	"container/heap"

	"github.com/spirittours/contact-router/internal/domain"
)

// deptHeap orders QueuedConversation records by (priority ASC, queued_at
// ASC), with SeqNo as the final tie-break so equal-priority, equal-instant
// enqueues preserve insertion order (spec §8 P4). Implements container/heap
// for O(log n) push/pop, the complexity spec.md §4.4 requires explicitly —
// an improvement over the originating platform's full-resort-on-enqueue.
type deptHeap []*domain.QueuedConversation

func (h deptHeap) Len() int { return len(h) }

func (h deptHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority < h[j].Priority
	}
	if !h[i].QueuedAt.Equal(h[j].QueuedAt) {
		return h[i].QueuedAt.Before(h[j].QueuedAt)
	}
	return h[i].SeqNo < h[j].SeqNo
}

func (h deptHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *deptHeap) Push(x any) {
	*h = append(*h, x.(*domain.QueuedConversation))
}

func (h *deptHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

var _ heap.Interface = (*deptHeap)(nil)
