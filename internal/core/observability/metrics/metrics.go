// Package metrics holds the prometheus collectors of the engine.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "gameplay"

	graphicsSubsystem = "graphics"
	gameSubsystem     = "game"

	reasonLabelName = "reason"
	resultLabelName = "result"
)

// Frame skip reasons.
const (
	SkipUnprepared = "unprepared"
	SkipPresent    = "present"
	SkipFenceWait  = "fence_wait"
	SkipBackend    = "backend"
)

var (
	// fenceBuckets are in milliseconds: 0.25ms .. ~4s.
	fenceBuckets = prometheus.ExponentialBuckets(0.25, 2, 15)

	// loadBuckets are in milliseconds.
	loadBuckets = []float64{1, 5, 10, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

	FramesRendered = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: graphicsSubsystem,
		Name:      "frames_rendered_total",
		Help:      "frames submitted and presented",
	})

	FramesSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: graphicsSubsystem,
		Name:      "frames_skipped_total",
		Help:      "frames dropped before or during submission",
	}, []string{reasonLabelName})

	FenceWaitLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: graphicsSubsystem,
		Name:      "fence_wait_ms",
		Help:      "time the CPU blocked on a GPU fence",
		Buckets:   fenceBuckets,
	})

	Resizes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: graphicsSubsystem,
		Name:      "resizes_total",
		Help:      "swapchain resizes",
	}, []string{resultLabelName})

	SceneLoads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: gameSubsystem,
		Name:      "scene_loads_total",
		Help:      "scene loads by result",
	}, []string{resultLabelName})

	SceneLoadLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: gameSubsystem,
		Name:      "scene_load_ms",
		Help:      "time spent reading a scene file",
		Buckets:   loadBuckets,
	})

	FrameRate = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: gameSubsystem,
		Name:      "frame_rate",
		Help:      "frames per second over the last second",
	})

	registerOnce sync.Once
)

// Register registers every collector on r. Only the first call has an effect.
func Register(r prometheus.Registerer) {
	registerOnce.Do(func() {
		r.MustRegister(FramesRendered, FramesSkipped, FenceWaitLatency, Resizes)
		r.MustRegister(SceneLoads, SceneLoadLatency, FrameRate)
	})
}
