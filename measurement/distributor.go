package measurement

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Config controls distributor channel sizing and observability thresholds.
type Config struct {
	// Capacity is the per-subscriber channel buffer. Sized to absorb short
	// bursts; a subscriber that falls behind for longer starts dropping.
	Capacity int

	// WarnDropRatePercent is the windowed drop rate (0-100) that triggers a
	// warning log, once per window per subscriber. 0 disables the warning.
	WarnDropRatePercent float64

	// ErrorSaturationPercent is the channel occupancy (0-100) that triggers
	// an error log, once per window per subscriber. 100 disables it.
	ErrorSaturationPercent float64

	// MetricsWindow is the rolling window over which drop rate is computed.
	MetricsWindow time.Duration
}

// DefaultConfig returns the distributor defaults: room for a one-second
// burst from a fast camera, alerting on sustained (not transient) problems.
func DefaultConfig() Config {
	return Config{
		Capacity:               1024,
		WarnDropRatePercent:    1.0,
		ErrorSaturationPercent: 90.0,
		MetricsWindow:          10 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	if c.Capacity <= 0 {
		c.Capacity = 1024
	}
	if c.MetricsWindow <= 0 {
		c.MetricsWindow = 10 * time.Second
	}
	if c.ErrorSaturationPercent <= 0 {
		c.ErrorSaturationPercent = 90.0
	}
	return c
}

// SubscriberSnapshot is a point-in-time view of one subscriber's delivery
// health, the sole observability surface into distribution.
type SubscriberSnapshot struct {
	Subscriber       string  `json:"subscriber"`
	TotalSent        uint64  `json:"total_sent"`
	TotalDropped     uint64  `json:"total_dropped"`
	DropRatePercent  float64 `json:"drop_rate_percent"`
	ChannelOccupancy int     `json:"channel_occupancy"`
	ChannelCapacity  int     `json:"channel_capacity"`
}

// Subscription is one subscriber's receive side. Close detaches it; the
// distributor reaps the entry during the next Broadcast pass.
type Subscription struct {
	name   string
	ch     chan Measurement
	closed atomic.Bool
}

// Name returns the subscriber name given at Subscribe time.
func (s *Subscription) Name() string { return s.name }

// C returns the measurement channel. The channel is closed by the
// distributor once the subscription has been reaped or the distributor
// shuts down, so ranging over it terminates.
func (s *Subscription) C() <-chan Measurement { return s.ch }

// Close marks the subscription dead. Idempotent. Pending buffered
// measurements are discarded when the distributor reaps the entry.
func (s *Subscription) Close() { s.closed.Store(true) }

// subscriberMetrics tracks delivery accounting for one subscriber.
// One-shot flags keep a saturated subscriber from flooding the log; they
// rearm when the window rolls over.
type subscriberMetrics struct {
	totalSent     uint64
	totalDropped  uint64
	windowSent    uint64
	windowDropped uint64
	windowStart   time.Time
	dropWarned    bool
	satErrored    bool
}

type subscriberEntry struct {
	sub     *Subscription
	metrics subscriberMetrics
}

// DeliveryHook observes every delivery attempt. Used to bridge per-subscriber
// accounting into Prometheus without this package importing the collector.
type DeliveryHook func(subscriber string, delivered bool)

// Distributor fans measurements out to every subscriber with non-blocking
// delivery. One slow subscriber drops its own measurements; it cannot stall
// the publisher or its peers.
//
// The subscriber registry is the only state shared across instrument tasks;
// all mutation and the delivery loop run inside one short critical section
// containing no blocking operation.
type Distributor struct {
	cfg    Config
	logger *slog.Logger
	hook   DeliveryHook

	mu     sync.Mutex
	subs   []*subscriberEntry
	closed bool

	published atomic.Uint64
	dropLog   *rate.Limiter
}

// Option configures a Distributor.
type Option func(*Distributor)

// WithDeliveryHook registers a hook invoked for every delivery attempt.
func WithDeliveryHook(h DeliveryHook) Option {
	return func(d *Distributor) { d.hook = h }
}

// NewDistributor creates a distributor with the given config. A nil logger
// falls back to slog.Default.
func NewDistributor(cfg Config, logger *slog.Logger, opts ...Option) *Distributor {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Distributor{
		cfg:    cfg.withDefaults(),
		logger: logger.With("component", "distributor"),
		// At most one per-drop log line per second regardless of frame rate.
		dropLog: rate.NewLimiter(rate.Every(time.Second), 1),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Subscribe registers a named subscriber and returns its subscription.
// The name identifies the subscriber in logs and metrics; duplicates are
// allowed and tracked independently.
func (d *Distributor) Subscribe(name string) *Subscription {
	sub := &Subscription{
		name: name,
		ch:   make(chan Measurement, d.cfg.Capacity),
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		// Late subscriber on a shut-down distributor gets a closed channel
		// so its receive loop terminates immediately.
		close(sub.ch)
		sub.closed.Store(true)
		return sub
	}

	d.subs = append(d.subs, &subscriberEntry{
		sub:     sub,
		metrics: subscriberMetrics{windowStart: time.Now()},
	})
	d.logger.Info("subscriber registered", "subscriber", name, "capacity", d.cfg.Capacity)
	return sub
}

// Broadcast attempts one non-blocking delivery to every current subscriber.
// It returns after exactly one attempt per subscriber and never waits on
// consumption. Subscribers found closed are reaped before returning.
func (d *Distributor) Broadcast(m Measurement) {
	d.published.Add(1)
	now := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}

	var reap []int
	for i, entry := range d.subs {
		if entry.sub.closed.Load() {
			reap = append(reap, i)
			continue
		}

		select {
		case entry.sub.ch <- m:
			entry.metrics.totalSent++
			entry.metrics.windowSent++
			if d.hook != nil {
				d.hook(entry.sub.name, true)
			}
		default:
			entry.metrics.totalDropped++
			entry.metrics.windowDropped++
			if d.hook != nil {
				d.hook(entry.sub.name, false)
			}
			if d.dropLog.Allow() {
				d.logger.Warn("measurement dropped, subscriber channel full",
					"subscriber", entry.sub.name,
					"channel", m.Channel(),
					"total_dropped", entry.metrics.totalDropped)
			}
		}

		d.checkWindow(entry, now)
	}

	// Reap in reverse so earlier indices stay valid.
	for j := len(reap) - 1; j >= 0; j-- {
		i := reap[j]
		entry := d.subs[i]
		close(entry.sub.ch)
		d.logger.Info("subscriber removed", "subscriber", entry.sub.name,
			"total_sent", entry.metrics.totalSent,
			"total_dropped", entry.metrics.totalDropped)
		d.subs = append(d.subs[:i], d.subs[i+1:]...)
	}
}

// checkWindow rolls the metrics window and emits the one-shot alerts.
// Caller holds d.mu.
func (d *Distributor) checkWindow(entry *subscriberEntry, now time.Time) {
	m := &entry.metrics

	if now.Sub(m.windowStart) >= d.cfg.MetricsWindow {
		windowTotal := m.windowSent + m.windowDropped
		if windowTotal > 0 && d.cfg.WarnDropRatePercent > 0 && !m.dropWarned {
			dropRate := float64(m.windowDropped) / float64(windowTotal) * 100.0
			if dropRate >= d.cfg.WarnDropRatePercent {
				d.logger.Warn("sustained drop rate",
					"subscriber", entry.sub.name,
					"drop_rate_percent", dropRate,
					"window", d.cfg.MetricsWindow)
				m.dropWarned = true
			}
		}
		m.windowSent = 0
		m.windowDropped = 0
		m.windowStart = now
		m.dropWarned = false
		m.satErrored = false
	}

	occupancy := float64(len(entry.sub.ch)) / float64(d.cfg.Capacity) * 100.0
	if occupancy >= d.cfg.ErrorSaturationPercent && !m.satErrored {
		d.logger.Error("subscriber channel saturated",
			"subscriber", entry.sub.name,
			"occupancy_percent", occupancy)
		m.satErrored = true
	}
}

// Snapshot returns delivery metrics for every live subscriber. Drop rate is
// computed over the current rolling window.
func (d *Distributor) Snapshot() []SubscriberSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]SubscriberSnapshot, 0, len(d.subs))
	for _, entry := range d.subs {
		m := entry.metrics
		var dropRate float64
		if windowTotal := m.windowSent + m.windowDropped; windowTotal > 0 {
			dropRate = float64(m.windowDropped) / float64(windowTotal) * 100.0
		}
		out = append(out, SubscriberSnapshot{
			Subscriber:       entry.sub.name,
			TotalSent:        m.totalSent,
			TotalDropped:     m.totalDropped,
			DropRatePercent:  dropRate,
			ChannelOccupancy: len(entry.sub.ch),
			ChannelCapacity:  d.cfg.Capacity,
		})
	}
	return out
}

// SubscriberCount returns the number of live subscribers.
func (d *Distributor) SubscriberCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.subs)
}

// Published returns the total number of Broadcast calls.
func (d *Distributor) Published() uint64 {
	return d.published.Load()
}

// Close shuts the distributor down: every subscriber channel is closed so
// receive loops terminate, and subsequent Broadcast calls are no-ops.
// Idempotent.
func (d *Distributor) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	d.closed = true
	for _, entry := range d.subs {
		entry.sub.closed.Store(true)
		close(entry.sub.ch)
	}
	d.subs = nil
}
