package mrs

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts the work done by mission runs.
type Metrics struct {
	Steps       prometheus.Counter
	Rejected    prometheus.Counter
	Evaluations prometheus.Counter
	Segments    prometheus.Counter
	Events      *prometheus.CounterVec
}

// NewMetrics returns the run metrics, registered on reg when it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Steps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mrs_integration_steps_total",
			Help: "Total number of accepted integration steps.",
		}),
		Rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mrs_integration_rejected_steps_total",
			Help: "Total number of integration steps rejected by the error control.",
		}),
		Evaluations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mrs_force_evaluations_total",
			Help: "Total number of force model evaluations.",
		}),
		Segments: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mrs_segments_total",
			Help: "Total number of mission segments entered.",
		}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mrs_events_total",
			Help: "Total number of mission events, by source.",
		}, []string{"source"}),
	}
	if reg != nil {
		reg.MustRegister(m.Steps, m.Rejected, m.Evaluations, m.Segments, m.Events)
	}
	return m
}

func (m *Metrics) addSteps(accepted, rejected int) {
	if m == nil {
		return
	}
	m.Steps.Add(float64(accepted))
	m.Rejected.Add(float64(rejected))
}

func (m *Metrics) evaluation() {
	if m == nil {
		return
	}
	m.Evaluations.Inc()
}

func (m *Metrics) segment() {
	if m == nil {
		return
	}
	m.Segments.Inc()
}

func (m *Metrics) event(src EventSource) {
	if m == nil {
		return
	}
	m.Events.WithLabelValues(src.String()).Inc()
}
