package resilience

import "sync"

// slidingWindow keeps the outcome of the last size calls.
type slidingWindow struct {
	mu       sync.Mutex
	outcomes []bool
	next     int
	filled   int
	failures int
}

func newSlidingWindow(size int) *slidingWindow {
	if size <= 0 {
		size = 1
	}

	return &slidingWindow{outcomes: make([]bool, size)}
}

func (w *slidingWindow) record(failed bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.filled == len(w.outcomes) {
		if w.outcomes[w.next] {
			w.failures--
		}
	} else {
		w.filled++
	}

	w.outcomes[w.next] = failed
	if failed {
		w.failures++
	}

	w.next = (w.next + 1) % len(w.outcomes)
}

func (w *slidingWindow) snapshot() (calls, failures int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.filled, w.failures
}

func (w *slidingWindow) reset() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i := range w.outcomes {
		w.outcomes[i] = false
	}
	w.next, w.filled, w.failures = 0, 0, 0
}
