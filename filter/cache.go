package filter

import (
	"container/list"
	"sync"
)

// filterCache is a thread-safe LRU of compiled filters keyed by expression
type filterCache struct {
	capacity int
	order    *list.List
	items    map[string]*list.Element
	mu       sync.Mutex
}

func newFilterCache(capacity int) *filterCache {
	return &filterCache{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[string]*list.Element),
	}
}

// get returns the filter compiled from expression and marks it recently used
func (c *filterCache) get(expression string) (CompiledFilter, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, ok := c.items[expression]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(node)
	return node.Value.(CompiledFilter), true
}

// put stores f, evicting the least recently used filter when full
func (c *filterCache) put(f CompiledFilter) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if node, ok := c.items[f.Expression()]; ok {
		node.Value = f
		c.order.MoveToFront(node)
		return
	}

	c.items[f.Expression()] = c.order.PushFront(f)

	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(CompiledFilter).Expression())
	}
}

func (c *filterCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.order.Init()
}

func (c *filterCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
