package dispatch

import (
	"time"

	"github.com/diamondburned/arikawa/v3/discord"
)

// item is one pending request. seq is the arrival order and breaks ties
// between equal priorities.
type item struct {
	priority int
	seq      uint64
	enqueued time.Time
	owner    discord.UserID
	callback Callback
	result   *Result
}

// itemHeap implements heap.Interface ordered by (priority, seq).
type itemHeap []*item

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *itemHeap) Push(x any) { *h = append(*h, x.(*item)) }

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}
