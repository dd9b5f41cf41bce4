package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registration outcomes.
const (
	OutcomeOK        = "ok"
	OutcomeTimeout   = "timeout"
	OutcomeRejected  = "rejected"
	OutcomeTransport = "transport"
)

// Channel ends. A client and server sharing one process each count their
// own end of the same channel.
const (
	SideClient = "client"
	SideServer = "server"
)

// Invocation statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics groups the callback delegation collectors.
type Metrics struct {
	Registrations        *prometheus.CounterVec
	RegistrationDuration prometheus.Histogram
	ChannelsOpen         *prometheus.GaugeVec
	Invocations          *prometheus.CounterVec
}

// New creates the collectors without registering them.
func New() *Metrics {
	return &Metrics{
		Registrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mockserver",
				Subsystem: "callback",
				Name:      "registrations_total",
				Help:      "Callback registrations by outcome",
			},
			[]string{"outcome"},
		),
		RegistrationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "mockserver",
				Subsystem: "callback",
				Name:      "registration_duration_seconds",
				Help:      "Time from registration request to outcome",
				Buckets:   prometheus.DefBuckets,
			},
		),
		ChannelsOpen: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "mockserver",
				Subsystem: "callback",
				Name:      "channels_open",
				Help:      "Callback channels currently open, by side",
			},
			[]string{"side"},
		),
		Invocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mockserver",
				Subsystem: "callback",
				Name:      "invocations_total",
				Help:      "Callback invocations by kind and status",
			},
			[]string{"kind", "status"},
		),
	}
}

// Register adds every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.Registrations, m.RegistrationDuration, m.ChannelsOpen, m.Invocations} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveRegistration records one registration outcome.
func (m *Metrics) ObserveRegistration(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Registrations.WithLabelValues(outcome).Inc()
	m.RegistrationDuration.Observe(elapsed.Seconds())
}

// ChannelOpened increments the open channel gauge for side.
func (m *Metrics) ChannelOpened(side string) {
	if m == nil {
		return
	}
	m.ChannelsOpen.WithLabelValues(side).Inc()
}

// ChannelClosed decrements the open channel gauge for side.
func (m *Metrics) ChannelClosed(side string) {
	if m == nil {
		return
	}
	m.ChannelsOpen.WithLabelValues(side).Dec()
}

// ObserveInvocation records one invocation round-trip.
func (m *Metrics) ObserveInvocation(kind string, err error) {
	if m == nil {
		return
	}
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	m.Invocations.WithLabelValues(kind, status).Inc()
}
