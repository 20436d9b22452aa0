package crawler

import (
	"context"
	"sync"
)

// Entry is one unit of crawl work: a normalized URL and its hop count from
// the start URL.
type Entry struct {
	URL string

	// Depth is 0 for the start URL and parent depth + 1 for a link.
	Depth int
}

// Frontier holds the pending work queue and the set of every URL ever
// admitted. The queue, the visited set and the in-flight claim count are
// one resource behind one mutex, so membership checks and insertions can
// never interleave between callers.
//
// A Frontier lives for exactly one crawl run.
type Frontier struct {
	mu sync.Mutex

	// queue is FIFO; entries are appended in discovery order.
	queue []Entry

	// visited holds every URL admitted or marked, claimed or not. It only
	// grows during a run.
	visited map[string]struct{}

	// inFlight counts claims not yet released with Done. The frontier is
	// exhausted only when both queue and inFlight are empty.
	inFlight int

	// maxQueue is a soft cap on queued entries. Zero means unbounded.
	maxQueue int
	dropped  int

	// changed is closed and replaced whenever work is added or a claim is
	// released, waking workers blocked in Next.
	changed chan struct{}
}

// FrontierOption configures a Frontier.
type FrontierOption func(*Frontier)

// WithMaxQueue sets a soft cap on the number of queued entries. Admissions
// beyond the cap are dropped and counted.
func WithMaxQueue(n int) FrontierOption {
	return func(f *Frontier) {
		if n > 0 {
			f.maxQueue = n
		}
	}
}

// NewFrontier returns an empty Frontier.
func NewFrontier(opts ...FrontierOption) *Frontier {
	f := &Frontier{
		queue:   make([]Entry, 0),
		visited: make(map[string]struct{}),
		changed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Admit queues e unless its URL was admitted before. It reports whether e
// was queued. The membership check and the insertion happen in a single
// critical section.
//
// When the soft queue cap is reached the URL is still marked visited, so a
// dropped URL is never admitted later in the same run.
func (f *Frontier) Admit(e Entry) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.visited[e.URL]; ok {
		return false
	}
	f.visited[e.URL] = struct{}{}

	if f.maxQueue > 0 && len(f.queue) >= f.maxQueue {
		f.dropped++
		return false
	}

	f.queue = append(f.queue, e)
	f.broadcastLocked()
	return true
}

// ClaimNext pops the head of the queue for exclusive processing. The caller
// must call Done once it has finished with the entry, including after
// admitting any children. It returns false when the queue is empty.
func (f *Frontier) ClaimNext() (Entry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.claimLocked()
}

func (f *Frontier) claimLocked() (Entry, bool) {
	if len(f.queue) == 0 {
		return Entry{}, false
	}
	e := f.queue[0]
	f.queue[0] = Entry{}
	f.queue = f.queue[1:]
	f.inFlight++
	return e, true
}

// Done releases a claim obtained from ClaimNext or Next.
func (f *Frontier) Done() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inFlight > 0 {
		f.inFlight--
	}
	f.broadcastLocked()
}

// IsEmptyAndIdle reports whether there is no queued work and no claim in
// flight. A queue that is empty while a worker still holds a claim is not
// idle, since that worker may yet admit children.
func (f *Frontier) IsEmptyAndIdle() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue) == 0 && f.inFlight == 0
}

// Next blocks until an entry can be claimed. It returns ErrFrontierExhausted
// once the frontier is empty and idle, or the context error if ctx is
// cancelled first.
func (f *Frontier) Next(ctx context.Context) (Entry, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Entry{}, err
		}

		f.mu.Lock()
		if e, ok := f.claimLocked(); ok {
			f.mu.Unlock()
			return e, nil
		}
		if f.inFlight == 0 {
			f.mu.Unlock()
			return Entry{}, ErrFrontierExhausted
		}
		wait := f.changed
		f.mu.Unlock()

		select {
		case <-ctx.Done():
			return Entry{}, ctx.Err()
		case <-wait:
		}
	}
}

// DrainLevel claims every queued entry with the given depth, in FIFO order.
// Entries of other depths stay queued. Each returned entry counts as one
// claim and must be released with Done.
func (f *Frontier) DrainLevel(depth int) []Entry {
	f.mu.Lock()
	defer f.mu.Unlock()

	claimed := make([]Entry, 0)
	rest := make([]Entry, 0, len(f.queue))
	for _, e := range f.queue {
		if e.Depth == depth {
			claimed = append(claimed, e)
			continue
		}
		rest = append(rest, e)
	}
	f.queue = rest
	f.inFlight += len(claimed)
	return claimed
}

// MinDepth returns the smallest depth among queued entries, or false when
// the queue is empty.
func (f *Frontier) MinDepth() (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.queue) == 0 {
		return 0, false
	}
	lowest := f.queue[0].Depth
	for _, e := range f.queue[1:] {
		lowest = min(lowest, e.Depth)
	}
	return lowest, true
}

// Len returns the number of queued entries.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

// Visited returns the number of distinct URLs ever admitted.
func (f *Frontier) Visited() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.visited)
}

// Seen reports whether url was ever admitted.
func (f *Frontier) Seen(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.visited[url]
	return ok
}

// MarkVisited records url as visited without queueing it. It reports
// false when url was already visited or admitted. The crawler uses it for
// redirect targets, so a page reached through several redirecting URLs is
// recorded once.
func (f *Frontier) MarkVisited(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.visited[url]; ok {
		return false
	}
	f.visited[url] = struct{}{}
	return true
}

// Dropped returns how many admissions the soft queue cap rejected.
func (f *Frontier) Dropped() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dropped
}

func (f *Frontier) broadcastLocked() {
	close(f.changed)
	f.changed = make(chan struct{})
}
