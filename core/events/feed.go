package events

import "sync"

// DefaultFeedDepth bounds the in-memory event buffer.
const DefaultFeedDepth = 1024

// Feed is a bounded in-memory Emitter retaining the most recent events for
// RPC consumers. Older events fall off the front once the depth is reached.
type Feed struct {
	mu    sync.Mutex
	depth int
	buf   []Event
}

// NewFeed constructs a feed with the given depth; non-positive depths fall
// back to DefaultFeedDepth.
func NewFeed(depth int) *Feed {
	if depth <= 0 {
		depth = DefaultFeedDepth
	}
	return &Feed{depth: depth}
}

// Emit implements the Emitter interface.
func (f *Feed) Emit(evt Event) {
	if f == nil || evt == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buf = append(f.buf, evt)
	if len(f.buf) > f.depth {
		f.buf = f.buf[len(f.buf)-f.depth:]
	}
}

// Recent returns up to n most recent events, newest last.
func (f *Feed) Recent(n int) []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n <= 0 || n > len(f.buf) {
		n = len(f.buf)
	}
	out := make([]Event, n)
	copy(out, f.buf[len(f.buf)-n:])
	return out
}
