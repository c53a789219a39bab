// Package metrics provides observability for the restoration server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cryo"

// Collector gathers performance and simulation metrics.
// A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	// Tick metrics
	ticks       prometheus.Counter
	tickLatency prometheus.Histogram

	// Restoration metrics
	stepOutcomes   *prometheus.CounterVec
	cures          *prometheus.CounterVec
	fuelConsumed   prometheus.Counter
	ageRestored    prometheus.Counter
	chambersInUse  prometheus.Gauge
	settingsWrites prometheus.Counter

	// Event metrics
	eventsWritten *prometheus.CounterVec

	// WebSocket metrics
	wsConnections prometheus.Gauge
	wsMessages    *prometheus.CounterVec
}

// NewCollector creates a collector and registers it on reg.
func NewCollector(reg *prometheus.Registry) *Collector {
	c := &Collector{
		registry: reg,
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "ticks_total",
			Help: "Total simulation ticks processed.",
		}),
		tickLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "tick_duration_seconds",
			Help:    "Time spent stepping every chamber for one tick.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 8),
		}),
		stepOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "chamber_steps_total",
			Help: "Chamber steps by outcome.",
		}, []string{"outcome"}),
		cures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "affliction_cures_total",
			Help: "Cure attempts applied, by affliction and result.",
		}, []string{"affliction", "result"}),
		fuelConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "fuel_consumed_total",
			Help: "Fuel burned by all chambers.",
		}),
		ageRestored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "age_restored_ticks_total",
			Help: "Biological age removed from occupants, in ticks.",
		}),
		chambersInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "chambers_occupied",
			Help: "Chambers currently holding an occupant.",
		}),
		settingsWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "settings_updates_total",
			Help: "Settings updates applied.",
		}),
		eventsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "events_written_total",
			Help: "Events persisted to the ledger, by result.",
		}, []string{"result"}),
		wsConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "websocket_connections",
			Help: "Active WebSocket connections.",
		}),
		wsMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "websocket_messages_total",
			Help: "WebSocket messages by direction.",
		}, []string{"direction"}),
	}

	reg.MustRegister(
		c.ticks, c.tickLatency, c.stepOutcomes, c.cures, c.fuelConsumed,
		c.ageRestored, c.chambersInUse, c.settingsWrites, c.eventsWritten,
		c.wsConnections, c.wsMessages,
	)
	return c
}

// Global collector instance
var collector = newDefault()

func newDefault() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return NewCollector(reg)
}

// Get returns the global collector.
func Get() *Collector {
	return collector
}

// RecordTick records a tick cycle completion.
func (c *Collector) RecordTick(latency time.Duration) {
	if c == nil {
		return
	}
	c.ticks.Inc()
	c.tickLatency.Observe(latency.Seconds())
}

// RecordStep records one chamber step outcome.
func (c *Collector) RecordStep(outcome string) {
	if c == nil {
		return
	}
	c.stepOutcomes.WithLabelValues(outcome).Inc()
}

// RecordCure records a cure. completed is false for partial cures.
func (c *Collector) RecordCure(affliction string, completed bool) {
	if c == nil {
		return
	}
	result := "cured"
	if !completed {
		result = "eased"
	}
	c.cures.WithLabelValues(affliction, result).Inc()
}

func (c *Collector) RecordFuel(amount float64) {
	if c == nil || amount <= 0 {
		return
	}
	c.fuelConsumed.Add(amount)
}

func (c *Collector) RecordAgeRestored(ticks int64) {
	if c == nil || ticks <= 0 {
		return
	}
	c.ageRestored.Add(float64(ticks))
}

func (c *Collector) SetChambersOccupied(n int) {
	if c == nil {
		return
	}
	c.chambersInUse.Set(float64(n))
}

func (c *Collector) RecordSettingsUpdate() {
	if c == nil {
		return
	}
	c.settingsWrites.Inc()
}

// RecordEventWrite records an event write to the ledger.
func (c *Collector) RecordEventWrite(err error) {
	if c == nil {
		return
	}
	if err != nil {
		c.eventsWritten.WithLabelValues("error").Inc()
		return
	}
	c.eventsWritten.WithLabelValues("ok").Inc()
}

// RecordWSConnection records WebSocket connection changes.
func (c *Collector) RecordWSConnection(delta int) {
	if c == nil {
		return
	}
	c.wsConnections.Add(float64(delta))
}

// RecordWSMessage records WebSocket messages.
func (c *Collector) RecordWSMessage(incoming bool) {
	if c == nil {
		return
	}
	if incoming {
		c.wsMessages.WithLabelValues("in").Inc()
	} else {
		c.wsMessages.WithLabelValues("out").Inc()
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
