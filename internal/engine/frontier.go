package engine

import (
	"container/heap"
	"sync"

	"github.com/pricestalk/pricestalk/internal/types"
)

// Frontier is the pending-request queue for one website's crawl. It is a
// thread-safe priority queue: detail pages drain before pagination so item
// limits bite as early as possible. Each website lane owns exactly one
// Frontier; frontiers are never shared across lanes.
type Frontier struct {
	mu     sync.Mutex
	pq     priorityQueue
	closed bool
}

// NewFrontier creates an empty Frontier.
func NewFrontier() *Frontier {
	f := &Frontier{pq: make(priorityQueue, 0, 256)}
	heap.Init(&f.pq)
	return f
}

// Push adds a request. Pushes after Close are dropped.
func (f *Frontier) Push(req *types.PageRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	heap.Push(&f.pq, &pqItem{request: req, priority: req.Priority})
}

// TryPop attempts a non-blocking dequeue. Returns nil if empty.
func (f *Frontier) TryPop() *types.PageRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pq.Len() == 0 {
		return nil
	}
	item := heap.Pop(&f.pq).(*pqItem)
	return item.request
}

// Len returns the number of pending requests.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pq.Len()
}

// Close drops any remaining requests and rejects further pushes.
func (f *Frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.pq = f.pq[:0]
}

// IsClosed reports whether Close has been called.
func (f *Frontier) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// --- Priority Queue Implementation ---

type pqItem struct {
	request  *types.PageRequest
	priority int
	index    int
}

type priorityQueue []*pqItem

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	// Lower priority value = higher priority
	return pq[i].priority < pq[j].priority
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue) Push(x any) {
	n := len(*pq)
	item := x.(*pqItem)
	item.index = n
	*pq = append(*pq, item)
}

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // GC
	item.index = -1
	*pq = old[:n-1]
	return item
}
