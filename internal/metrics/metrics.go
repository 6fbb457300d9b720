package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	eventsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "execmon_events_total",
			Help: "Number of exec events decoded by the consumer.",
		},
	)

	lostEventsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "execmon_lost_events_total",
			Help: "Number of exec events dropped because the per-CPU channel was full.",
		},
	)

	decodeErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "execmon_decode_errors_total",
			Help: "Number of raw samples that could not be decoded as exec records.",
		},
	)

	alertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "execmon_alerts_total",
			Help: "Number of alerts raised, labelled by rule id.",
		},
		[]string{"rule_id"},
	)
)

func Register(reg *prometheus.Registry) {
	reg.MustRegister(eventsTotal, lostEventsTotal, decodeErrorsTotal, alertsTotal)
}

func IncEvent() {
	eventsTotal.Inc()
}

func AddLost(n uint64) {
	lostEventsTotal.Add(float64(n))
}

func IncDecodeError() {
	decodeErrorsTotal.Inc()
}

func IncAlert(ruleID string) {
	alertsTotal.WithLabelValues(ruleID).Inc()
}
