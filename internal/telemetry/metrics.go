package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus counters served at /metrics.
// A nil *Metrics is valid and records nothing.
//
//   - survey_issues_opened_total{locale}
//   - survey_responses_recorded_total{outcome} - "open" or "complete"
//   - survey_issues_closed_total{path} - "affirmative" or "negative"
//   - survey_event_failures_total{kind,stage}
//   - survey_events_received_total{kind}
type Metrics struct {
	issuesOpened      *prometheus.CounterVec
	responsesRecorded *prometheus.CounterVec
	issuesClosed      *prometheus.CounterVec
	eventFailures     *prometheus.CounterVec
	eventsReceived    *prometheus.CounterVec
}

// NewMetrics registers the survey counters on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		issuesOpened: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "survey_issues_opened_total",
			Help: "Survey issues created for closed pull requests",
		}, []string{"locale"}),
		responsesRecorded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "survey_responses_recorded_total",
			Help: "Survey responses persisted",
		}, []string{"outcome"}),
		issuesClosed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "survey_issues_closed_total",
			Help: "Survey issues closed after completion",
		}, []string{"path"}),
		eventFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "survey_event_failures_total",
			Help: "Survey events that failed at some stage",
		}, []string{"kind", "stage"}),
		eventsReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "survey_events_received_total",
			Help: "Webhook events mapped to survey events",
		}, []string{"kind"}),
	}
}

func (m *Metrics) SurveyOpened(locale string) {
	if m == nil {
		return
	}
	m.issuesOpened.WithLabelValues(locale).Inc()
}

func (m *Metrics) ResponseRecorded(complete bool) {
	if m == nil {
		return
	}
	outcome := "open"
	if complete {
		outcome = "complete"
	}
	m.responsesRecorded.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IssueClosed(path string) {
	if m == nil {
		return
	}
	m.issuesClosed.WithLabelValues(path).Inc()
}

func (m *Metrics) EventFailed(kind, stage string) {
	if m == nil {
		return
	}
	m.eventFailures.WithLabelValues(kind, stage).Inc()
}

func (m *Metrics) EventReceived(kind string) {
	if m == nil {
		return
	}
	m.eventsReceived.WithLabelValues(kind).Inc()
}
