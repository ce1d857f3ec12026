package metrics

import (
	"net/http"

	"github.com/mikey-austin/tsmusic/internal/player"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the bot.
type Metrics struct {
	registry      *prometheus.Registry
	tracksStarted prometheus.Counter
	tracksEnded   prometheus.Counter
	tracksFailed  prometheus.Counter
	queueLength   prometheus.Gauge
	queryCommands *prometheus.CounterVec
	queryFailures *prometheus.CounterVec
}

// New creates and registers the metrics on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		tracksStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tsm_tracks_started_total",
			Help: "Total number of tracks taken off the queue",
		}),
		tracksEnded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tsm_tracks_ended_total",
			Help: "Total number of decoder exits",
		}),
		tracksFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tsm_tracks_failed_total",
			Help: "Total number of tracks that failed to download or start",
		}),
		queueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tsm_queue_length",
			Help: "Number of tracks waiting in the queue",
		}),
		queryCommands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tsm_query_commands_total",
			Help: "ServerQuery commands sent, by verb",
		}, []string{"verb"}),
		queryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tsm_query_command_failures_total",
			Help: "ServerQuery commands that returned an error, by verb",
		}, []string{"verb"}),
	}

	registry.MustRegister(
		m.tracksStarted,
		m.tracksEnded,
		m.tracksFailed,
		m.queueLength,
		m.queryCommands,
		m.queryFailures,
	)
	return m
}

// ObservePlayer counts a player event. Suitable for Player.Subscribe.
func (m *Metrics) ObservePlayer(evt player.Event) {
	switch evt.Type {
	case player.EventTrackStart:
		m.tracksStarted.Inc()
	case player.EventTrackEnd:
		m.tracksEnded.Inc()
	case player.EventTrackError:
		m.tracksFailed.Inc()
	}
}

// ObserveCommand counts a completed ServerQuery command.
func (m *Metrics) ObserveCommand(verb string, err error) {
	m.queryCommands.WithLabelValues(verb).Inc()
	if err != nil {
		m.queryFailures.WithLabelValues(verb).Inc()
	}
}

// SetQueueLength sets the queue length gauge.
func (m *Metrics) SetQueueLength(n int) {
	m.queueLength.Set(float64(n))
}

// Handler serves the registry. updateGauges runs before each scrape.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	inner := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		inner.ServeHTTP(w, r)
	})
}
