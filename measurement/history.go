package measurement

import (
	"sync"

	"github.com/easternanemone/daqstreams/pkg/ring"
)

// History keeps the most recent measurements per channel so a late-joining
// consumer (status display, diagnostic dump) can see where each channel is
// without having subscribed from the start. Oldest entries are overwritten;
// History never applies backpressure.
type History struct {
	mu       sync.RWMutex
	perChan  map[string]*ring.Buffer[Measurement]
	capacity int
}

// NewHistory creates a history keeping up to capacity measurements per
// channel. Capacity below 1 is clamped to 1.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{
		perChan:  make(map[string]*ring.Buffer[Measurement]),
		capacity: capacity,
	}
}

// Record stores a measurement under its channel name.
func (h *History) Record(m Measurement) {
	h.mu.Lock()
	buf, ok := h.perChan[m.Channel()]
	if !ok {
		buf = ring.New[Measurement](h.capacity)
		h.perChan[m.Channel()] = buf
	}
	h.mu.Unlock()

	buf.Write(m)
}

// Latest returns the most recent measurement for a channel, or false when
// the channel has never reported.
func (h *History) Latest(channel string) (Measurement, bool) {
	h.mu.RLock()
	buf, ok := h.perChan[channel]
	h.mu.RUnlock()
	if !ok {
		return nil, false
	}

	snap := buf.Snapshot()
	if len(snap) == 0 {
		return nil, false
	}
	return snap[len(snap)-1], true
}

// Recent returns up to capacity recent measurements for a channel,
// oldest-first.
func (h *History) Recent(channel string) []Measurement {
	h.mu.RLock()
	buf, ok := h.perChan[channel]
	h.mu.RUnlock()
	if !ok {
		return nil
	}
	return buf.Snapshot()
}

// Channels returns the names of all channels that have reported.
func (h *History) Channels() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]string, 0, len(h.perChan))
	for name := range h.perChan {
		out = append(out, name)
	}
	return out
}

// Run drains a subscription into the history until the subscription's
// channel closes. Intended to run in its own goroutine.
func (h *History) Run(sub *Subscription) {
	for m := range sub.C() {
		h.Record(m)
	}
}
