package engine

import "sync"

// Frontier is a FIFO queue of article titles awaiting crawl.
// A title is accepted at most once over the frontier's lifetime, so an
// article that failed to fetch or was filtered out is never queued again.
type Frontier struct {
	mu    sync.Mutex
	queue []string
	seen  map[string]struct{}
}

// NewFrontier creates an empty Frontier.
func NewFrontier() *Frontier {
	return &Frontier{
		queue: make([]string, 0, 256),
		seen:  make(map[string]struct{}, 1024),
	}
}

// Push enqueues title unless it was accepted before. It reports whether the
// title was enqueued.
func (f *Frontier) Push(title string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.seen[title]; ok {
		return false
	}
	f.seen[title] = struct{}{}
	f.queue = append(f.queue, title)
	return true
}

// Pop removes and returns the head of the queue.
func (f *Frontier) Pop() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.queue) == 0 {
		return "", false
	}
	head := f.queue[0]
	f.queue[0] = ""
	f.queue = f.queue[1:]
	return head, true
}

// Peek returns up to n titles from the head of the queue without removing them.
func (f *Frontier) Peek(n int) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	if n > len(f.queue) {
		n = len(f.queue)
	}
	out := make([]string, n)
	copy(out, f.queue[:n])
	return out
}

// Claim marks title as seen without queueing it. It reports false if the
// title was accepted before.
func (f *Frontier) Claim(title string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.seen[title]; ok {
		return false
	}
	f.seen[title] = struct{}{}
	return true
}

// Len returns the number of queued titles.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

// Snapshot returns a copy of the queued titles in order.
func (f *Frontier) Snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.queue))
	copy(out, f.queue)
	return out
}
