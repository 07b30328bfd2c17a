// Package dedupe tracks repeated roster detections within one scan and
// decides when a roster is confirmed and when the scan may stop.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/okian/lineup/internal/domain/model"
)

// Counter counts how often each detection key was observed.
type Counter interface {
	// Observe increments the count for key and returns the new count.
	Observe(ctx context.Context, key model.DetectionKey) int

	// Count returns the current count for key without changing it.
	Count(ctx context.Context, key model.DetectionKey) int

	Size() int64
}

const defaultMaxSize = 10_000

// node is one tracked key in insertion order.
type node struct {
	key   model.DetectionKey
	count int
	next  *node
}

func (n *node) reset() {
	n.key = ""
	n.count = 0
	n.next = nil
}

// inMemoryCounter keeps counts in a map. When bounded, keys are also linked in
// insertion order and the oldest key is evicted first.
type inMemoryCounter struct {
	mu       sync.Mutex
	counts   map[model.DetectionKey]*node
	head     *node // oldest
	tail     *node // newest
	maxSize  int   // 0 or negative = unbounded
	size     atomic.Int64
	nodePool sync.Pool
}

// NewInMemoryCounter creates an empty counter.
func NewInMemoryCounter(opts ...CounterOption) Counter {
	c := &inMemoryCounter{
		maxSize: defaultMaxSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.counts = make(map[model.DetectionKey]*node)
	c.nodePool = sync.Pool{
		New: func() interface{} {
			return &node{}
		},
	}
	return c
}

func (c *inMemoryCounter) Observe(_ context.Context, key model.DetectionKey) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.counts[key]; ok {
		n.count++
		return n.count
	}

	if c.maxSize > 0 && len(c.counts) >= c.maxSize {
		c.evictOldest()
	}

	n := c.nodePool.Get().(*node)
	n.key = key
	n.count = 1
	if c.tail != nil {
		c.tail.next = n
	} else {
		c.head = n
	}
	c.tail = n
	c.counts[key] = n
	c.size.Add(1)
	return 1
}

func (c *inMemoryCounter) Count(_ context.Context, key model.DetectionKey) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n, ok := c.counts[key]; ok {
		return n.count
	}
	return 0
}

// evictOldest drops the head of the list. Must be called with c.mu held.
func (c *inMemoryCounter) evictOldest() {
	n := c.head
	if n == nil {
		return
	}
	c.head = n.next
	if c.head == nil {
		c.tail = nil
	}
	delete(c.counts, n.key)
	n.reset()
	c.nodePool.Put(n)
	c.size.Add(-1)
}

func (c *inMemoryCounter) Size() int64 {
	return c.size.Load()
}
