// Package metrics exposes Prometheus collectors for the change feed, the
// session controller and presence.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector implements the metrics interfaces of changefeed, session,
// presence and the presence gateway.
type Collector struct {
	changes     *prometheus.CounterVec
	resyncs     *prometheus.CounterVec
	feedErrors  *prometheus.CounterVec
	refreshes   *prometheus.CounterVec
	anomalies   *prometheus.CounterVec
	rosterSize  *prometheus.GaugeVec
	connections prometheus.Gauge
	broadcasts  prometheus.Counter
}

// NewCollector creates the collectors and registers them on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		changes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "poker",
			Name:      "changes_received_total",
			Help:      "Row change notifications delivered to subscribers.",
		}, []string{"table", "op"}),
		resyncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "poker",
			Name:      "feed_resyncs_total",
			Help:      "Full resyncs requested by the change feed.",
		}, []string{"reason"}),
		feedErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "poker",
			Name:      "feed_errors_total",
			Help:      "Change feed failures by stage.",
		}, []string{"stage"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "poker",
			Name:      "session_refreshes_total",
			Help:      "Session view reconciliations by result.",
		}, []string{"result"}),
		anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "poker",
			Name:      "consistency_anomalies_total",
			Help:      "Observed violations of room invariants.",
		}, []string{"kind"}),
		rosterSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "poker",
			Name:      "presence_roster_size",
			Help:      "Participants in the last roster sync per room.",
		}, []string{"room"}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "poker",
			Name:      "presence_connections",
			Help:      "Open presence gateway connections.",
		}),
		broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "poker",
			Name:      "presence_broadcasts_total",
			Help:      "Roster syncs broadcast by the presence gateway.",
		}),
	}

	reg.MustRegister(
		c.changes,
		c.resyncs,
		c.feedErrors,
		c.refreshes,
		c.anomalies,
		c.rosterSize,
		c.connections,
		c.broadcasts,
	)
	return c
}

func (c *Collector) RecordChange(table, op string) {
	c.changes.WithLabelValues(table, op).Inc()
}

func (c *Collector) RecordResync(reason string) {
	c.resyncs.WithLabelValues(reason).Inc()
}

func (c *Collector) RecordFeedError(stage string) {
	c.feedErrors.WithLabelValues(stage).Inc()
}

func (c *Collector) RecordRefresh(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	c.refreshes.WithLabelValues(result).Inc()
}

func (c *Collector) RecordAnomaly(kind string) {
	c.anomalies.WithLabelValues(kind).Inc()
}

func (c *Collector) RecordRosterSync(roomID string, size int) {
	c.rosterSize.WithLabelValues(roomID).Set(float64(size))
}

func (c *Collector) SetPresenceConnections(n int) {
	c.connections.Set(float64(n))
}

func (c *Collector) RecordPresenceBroadcast() {
	c.broadcasts.Inc()
}
