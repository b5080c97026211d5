// Package metrics exports prometheus collectors for chat stream sessions.
package metrics

import (
	"time"

	// Packages
	stream "github.com/mutablelogic/go-aitemplate/pkg/stream"
	prometheus "github.com/prometheus/client_golang/prometheus"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Stream observes sessions and records them in prometheus collectors
type Stream struct {
	sessions *prometheus.CounterVec
	events   *prometheus.CounterVec
	dropped  *prometheus.CounterVec
	duration prometheus.Histogram
}

var _ stream.Observer = (*Stream)(nil)

///////////////////////////////////////////////////////////////////////////////
// GLOBALS

const namespace = "aitemplate"

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// New creates the collectors and registers them with reg. A nil registerer
// leaves them unregistered.
func New(reg prometheus.Registerer) (*Stream, error) {
	m := &Stream{
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "sessions_total",
			Help:      "Stream sessions by terminal outcome",
		}, []string{"outcome"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "events_total",
			Help:      "Events delivered to consumers",
		}, []string{"event"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "frames_dropped_total",
			Help:      "Frames dropped because they could not be decoded",
		}, []string{"event"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "duration_seconds",
			Help:      "Time from session start to terminal outcome",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
	}
	if reg != nil {
		for _, c := range m.Collectors() {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Collectors returns the collectors, for registering elsewhere
func (m *Stream) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.sessions, m.events, m.dropped, m.duration}
}

func (m *Stream) Event(name string) {
	m.events.WithLabelValues(name).Inc()
}

func (m *Stream) Dropped(name string) {
	if name == "" {
		name = "unnamed"
	}
	m.dropped.WithLabelValues(name).Inc()
}

func (m *Stream) Finished(outcome stream.Outcome, elapsed time.Duration) {
	m.sessions.WithLabelValues(outcome.String()).Inc()
	m.duration.Observe(elapsed.Seconds())
}
