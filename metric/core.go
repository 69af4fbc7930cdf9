package metric

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/easternanemone/daqstreams/measurement"
)

// Metrics contains the core runtime metrics updated by the instrument
// manager and the measurement distributor.
type Metrics struct {
	InstrumentState *prometheus.GaugeVec

	CommandsTotal   *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec

	MeasurementsPublished *prometheus.CounterVec
	SubscriberSent        *prometheus.CounterVec
	SubscriberDropped     *prometheus.CounterVec

	TaskRespawns    *prometheus.CounterVec
	ConnectAttempts *prometheus.CounterVec
}

// NewMetrics creates the core runtime metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		InstrumentState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "daq",
				Subsystem: "instrument",
				Name:      "state",
				Help: "Instrument lifecycle state " +
					"(0=disconnected, 1=connecting, 2=ready, 3=acquiring, 4=error, 5=shutting_down)",
			},
			[]string{"instrument"},
		),

		CommandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "daq",
				Subsystem: "commands",
				Name:      "total",
				Help:      "Commands routed to instruments by operation and outcome",
			},
			[]string{"instrument", "op", "status"},
		),

		CommandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "daq",
				Subsystem: "commands",
				Name:      "duration_seconds",
				Help:      "Command round-trip time from dispatch to reply",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"instrument", "op"},
		),

		MeasurementsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "daq",
				Subsystem: "measurements",
				Name:      "published_total",
				Help:      "Measurements published per instrument feed",
			},
			[]string{"instrument"},
		),

		SubscriberSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "daq",
				Subsystem: "distributor",
				Name:      "sent_total",
				Help:      "Measurements delivered per subscriber",
			},
			[]string{"subscriber"},
		),

		SubscriberDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "daq",
				Subsystem: "distributor",
				Name:      "dropped_total",
				Help:      "Measurements dropped per subscriber due to full channel",
			},
			[]string{"subscriber"},
		),

		TaskRespawns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "daq",
				Subsystem: "manager",
				Name:      "respawns_total",
				Help:      "Instrument task respawns after abnormal exit",
			},
			[]string{"instrument"},
		),

		ConnectAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "daq",
				Subsystem: "manager",
				Name:      "connect_attempts_total",
				Help:      "Hardware connection attempts by outcome",
			},
			[]string{"instrument", "status"},
		),
	}
}

// DeliveryHook returns a hook that feeds per-subscriber delivery accounting
// into the sent/dropped counters.
func (m *Metrics) DeliveryHook() measurement.DeliveryHook {
	return func(subscriber string, delivered bool) {
		if delivered {
			m.SubscriberSent.WithLabelValues(subscriber).Inc()
		} else {
			m.SubscriberDropped.WithLabelValues(subscriber).Inc()
		}
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.InstrumentState,
		m.CommandsTotal,
		m.CommandDuration,
		m.MeasurementsPublished,
		m.SubscriberSent,
		m.SubscriberDropped,
		m.TaskRespawns,
		m.ConnectAttempts,
	}
}
