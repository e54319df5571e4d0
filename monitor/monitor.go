// monitor/monitor.go
package monitor

import (
	"expvar"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	OnlineSessions       prometheus.Gauge
	ActiveDuels          prometheus.Gauge
	ActiveHalls          prometheus.Gauge
	DuelsCompleted       prometheus.Counter
	MessagesReceived     prometheus.Counter
	ProblemFetchFailures prometheus.Counter
	MessageLatency       prometheus.Histogram
}

func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		OnlineSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_sessions",
			Help:      "Number of connected sessions",
		}),
		ActiveDuels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_duels",
			Help:      "Number of live duel rooms",
		}),
		ActiveHalls: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_halls",
			Help:      "Number of open tournament halls",
		}),
		DuelsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duels_completed_total",
			Help:      "Total number of finished duels",
		}),
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Total number of messages received",
		}),
		ProblemFetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "problem_fetch_failures_total",
			Help:      "Total number of failed problem fetches",
		}),
		MessageLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "message_latency_seconds",
			Help:      "Message processing latency",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
		}),
	}

	prometheus.MustRegister(
		m.OnlineSessions,
		m.ActiveDuels,
		m.ActiveHalls,
		m.DuelsCompleted,
		m.MessagesReceived,
		m.ProblemFetchFailures,
		m.MessageLatency,
	)

	return m
}

type Monitor struct {
	metrics      *Metrics
	startTime    time.Time
	requestCount int64
	mutex        sync.Mutex
}

func NewMonitor(namespace string) *Monitor {
	return &Monitor{
		metrics:   NewMetrics(namespace),
		startTime: time.Now(),
	}
}

func (m *Monitor) StartServer(addr string) {
	http.Handle("/metrics", promhttp.Handler())

	// 添加expvar指标
	expvar.Publish("uptime", expvar.Func(func() interface{} {
		return time.Since(m.startTime).Seconds()
	}))

	expvar.Publish("requests", expvar.Func(func() interface{} {
		m.mutex.Lock()
		defer m.mutex.Unlock()
		return m.requestCount
	}))

	go http.ListenAndServe(addr, nil)
}

func (m *Monitor) IncOnlineSessions() {
	m.metrics.OnlineSessions.Inc()
}

func (m *Monitor) DecOnlineSessions() {
	m.metrics.OnlineSessions.Dec()
}

func (m *Monitor) SetActiveDuels(count int) {
	m.metrics.ActiveDuels.Set(float64(count))
}

func (m *Monitor) SetActiveHalls(count int) {
	m.metrics.ActiveHalls.Set(float64(count))
}

func (m *Monitor) IncDuelsCompleted() {
	m.metrics.DuelsCompleted.Inc()
}

func (m *Monitor) IncProblemFetchFailures() {
	m.metrics.ProblemFetchFailures.Inc()
}

func (m *Monitor) IncMessagesReceived() {
	m.metrics.MessagesReceived.Inc()
	m.mutex.Lock()
	m.requestCount++
	m.mutex.Unlock()
}

func (m *Monitor) ObserveMessageLatency(duration time.Duration) {
	m.metrics.MessageLatency.Observe(duration.Seconds())
}
