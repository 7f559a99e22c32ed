package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the routing engine.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	messageDuration    *prometheus.HistogramVec
	routerDecisions    *prometheus.CounterVec
	queueDepth         *prometheus.GaugeVec
	agentUtilization   *prometheus.GaugeVec
	escalations        *prometheus.CounterVec
	timeWasterClassify prometheus.Counter
	qualificationScore prometheus.Histogram
	notifyDeliveries   *prometheus.CounterVec
	cacheHits          *prometheus.CounterVec
	cacheMisses        *prometheus.CounterVec
	externalErrors     *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		messageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "router_message_duration_seconds",
				Help:    "Duration of inbound message processing by channel.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"channel"},
		),
		routerDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "router_decisions_total",
				Help: "Routing decisions by action.",
			},
			[]string{"action"},
		),
		queueDepth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "router_queue_depth",
				Help: "Current queue length by department.",
			},
			[]string{"department"},
		),
		agentUtilization: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "router_agent_utilization_ratio",
				Help: "current_conversations / max_concurrent per agent.",
			},
			[]string{"agent_id"},
		),
		escalations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "router_escalations_total",
				Help: "Escalations from AI to human, by reason.",
			},
			[]string{"reason"},
		),
		timeWasterClassify: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "router_time_waster_classifications_total",
				Help: "Total sessions (re)classified as time_waster.",
			},
		),
		qualificationScore: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "router_qualification_score",
				Help:    "Distribution of sales qualification scores.",
				Buckets: []float64{0, 2, 4, 6, 7, 8, 9, 10},
			},
		),
		notifyDeliveries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "router_agent_notification_total",
				Help: "Agent notification delivery attempts by outcome.",
			},
			[]string{"outcome"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "router_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "router_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "router_external_errors_total",
				Help: "Errors from external services (connectors, chatbot backend).",
			},
			[]string{"service"},
		),
	}
}

// RecordMessageDuration records the duration of processing one inbound message.
func (m *Metrics) RecordMessageDuration(channel string, d time.Duration) {
	m.messageDuration.WithLabelValues(channel).Observe(d.Seconds())
}

// IncrRouterDecision increments the router decision counter for an action.
func (m *Metrics) IncrRouterDecision(action string) {
	m.routerDecisions.WithLabelValues(action).Inc()
}

// SetQueueDepth sets the current gauge value for a department's queue length.
func (m *Metrics) SetQueueDepth(department string, depth int) {
	m.queueDepth.WithLabelValues(department).Set(float64(depth))
}

// SetAgentUtilization records current/max concurrency ratio for an agent.
func (m *Metrics) SetAgentUtilization(agentID string, current, max int) {
	if max <= 0 {
		m.agentUtilization.WithLabelValues(agentID).Set(0)
		return
	}
	m.agentUtilization.WithLabelValues(agentID).Set(float64(current) / float64(max))
}

// IncrEscalation increments the escalation counter for a reason.
func (m *Metrics) IncrEscalation(reason string) {
	m.escalations.WithLabelValues(reason).Inc()
}

// IncrTimeWasterClassification increments the time-waster classification counter.
func (m *Metrics) IncrTimeWasterClassification() {
	m.timeWasterClassify.Inc()
}

// ObserveQualificationScore records a qualification score sample.
func (m *Metrics) ObserveQualificationScore(score float64) {
	m.qualificationScore.Observe(score)
}

// IncrNotificationDelivery increments the notification-delivery counter for an outcome.
func (m *Metrics) IncrNotificationDelivery(outcome string) {
	m.notifyDeliveries.WithLabelValues(outcome).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}
