package strata

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "strata"
	layerLabel       = "layer"
)

// Metrics holds the Prometheus collectors updated by a World and by
// DrawCollector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Frames             prometheus.Counter
	EventsDrained      prometheus.Counter
	Entities           prometheus.Gauge
	PendingEvents      prometheus.Gauge
	CapacityRejections prometheus.Counter
	FrameSeconds       *prometheus.HistogramVec
	DrawItems          *prometheus.CounterVec
	Culled             *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// registers nothing, which is convenient in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Frames: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "frames_total",
			Help:      "The number of processed world frames.",
		}),
		EventsDrained: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "events_drained_total",
			Help:      "The number of deferred events run.",
		}),
		Entities: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "entities",
			Help:      "The number of dynamic objects in the world.",
		}),
		PendingEvents: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "events_pending",
			Help:      "The number of queued deferred events.",
		}),
		CapacityRejections: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "capacity_rejections_total",
			Help:      "The number of dynamic objects refused because the entity table was full.",
		}),
		FrameSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "frame_phase_seconds",
			Help:      "Time spent in each world frame phase.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"phase"}),
		DrawItems: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "draw_items_total",
			Help:      "The number of draw items collected.",
		}, []string{layerLabel}),
		Culled: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "culled_objects_total",
			Help:      "The number of visible objects culled for being below the pixel radius threshold.",
		}, []string{layerLabel}),
	}
}

func (m *Metrics) frameProcessed(s frameStats) {
	if m == nil {
		return
	}
	m.Frames.Inc()
	m.EventsDrained.Add(float64(s.eventsDrained))
	m.Entities.Set(float64(s.entities))
	m.PendingEvents.Set(float64(s.pending))
	m.FrameSeconds.WithLabelValues("behaviors").Observe(s.behaviorTime.Seconds())
	m.FrameSeconds.WithLabelValues("physics").Observe(s.physicsTime.Seconds())
	m.FrameSeconds.WithLabelValues("events").Observe(s.drainTime.Seconds())
}

func (m *Metrics) setEntities(n int) {
	if m == nil {
		return
	}
	m.Entities.Set(float64(n))
}

func (m *Metrics) capacityRejected() {
	if m == nil {
		return
	}
	m.CapacityRejections.Inc()
}

func (m *Metrics) collected(layer string, items, culled int) {
	if m == nil {
		return
	}
	m.DrawItems.WithLabelValues(layer).Add(float64(items))
	m.Culled.WithLabelValues(layer).Add(float64(culled))
}
