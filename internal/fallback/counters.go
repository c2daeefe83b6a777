package fallback

import "sync"

// Counters tracks how many times each service's fallback has run. Counts
// only grow; a later successful probe does not reset them.
type Counters struct {
	mu sync.Mutex
	m  map[string]int
}

func NewCounters() *Counters {
	return &Counters{m: make(map[string]int)}
}

// Admit atomically checks the cap and, when there is room, records one more
// attempt. It returns the count after the call and whether the attempt may
// run. A nil max never suppresses.
func (c *Counters) Admit(service string, max *int) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.m[service]
	if max != nil && n >= *max {
		return n, false
	}
	n++
	c.m[service] = n
	return n, true
}

func (c *Counters) Get(service string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.m[service]
}
