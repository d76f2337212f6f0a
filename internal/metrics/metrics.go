// Package metrics provides Prometheus metrics for the ingest bridge,
// the encoder supervisor, status probes and gateway hooks.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "livebridge"

// Chunk results.
const (
	ChunkForwarded = "forwarded"
	ChunkDropped   = "dropped"
)

var (
	ingestPublishers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "publishers",
		Help:      "Number of connected ingest publishers",
	})

	ingestRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "rejected_total",
		Help:      "Ingest connections rejected before upgrade",
	}, []string{"reason"})

	encoderChunks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "encoder",
		Name:      "chunks_total",
		Help:      "Media chunks submitted to the encoder by result",
	}, []string{"result"})

	encoderBytes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "encoder",
		Name:      "bytes_total",
		Help:      "Bytes written to the encoder stdin",
	})

	encoderSpawns = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "encoder",
		Name:      "spawns_total",
		Help:      "Encoder process spawn attempts",
	})

	encoderExits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "encoder",
		Name:      "exits_total",
		Help:      "Encoder sessions ended by reason",
	}, []string{"reason"})

	encoderRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "encoder",
		Name:      "running",
		Help:      "1 while an encoder process is alive",
	})

	statusProbes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "status",
		Name:      "probes_total",
		Help:      "Streaming backend probes by backend and result",
	}, []string{"backend", "result"})

	statusProbeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "status",
		Name:      "probe_duration_seconds",
		Help:      "Duration of streaming backend probes",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2, 3, 5},
	}, []string{"backend"})

	gatewayHooks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "gateway",
		Name:      "hooks_total",
		Help:      "Gateway lifecycle callbacks by action and result",
	}, []string{"action", "result"})
)

// SetIngestPublishers sets the connected publisher gauge.
func SetIngestPublishers(n int) {
	ingestPublishers.Set(float64(n))
}

// IncIngestRejected counts a rejected ingest connection.
func IncIngestRejected(reason string) {
	ingestRejected.WithLabelValues(reason).Inc()
}

// AddChunk counts a submitted chunk and, when forwarded, its bytes.
func AddChunk(result string, size int) {
	encoderChunks.WithLabelValues(result).Inc()
	if result == ChunkForwarded {
		encoderBytes.Add(float64(size))
	}
}

// IncEncoderSpawns counts an encoder spawn attempt.
func IncEncoderSpawns() {
	encoderSpawns.Inc()
}

// IncEncoderExits counts an ended encoder session.
func IncEncoderExits(reason string) {
	encoderExits.WithLabelValues(reason).Inc()
}

// SetEncoderRunning flips the encoder liveness gauge.
func SetEncoderRunning(running bool) {
	if running {
		encoderRunning.Set(1)
		return
	}
	encoderRunning.Set(0)
}

// ObserveProbe records one backend probe outcome.
func ObserveProbe(backend string, ok bool, d time.Duration) {
	result := "success"
	if !ok {
		result = "failure"
	}
	statusProbes.WithLabelValues(backend, result).Inc()
	statusProbeDuration.WithLabelValues(backend).Observe(d.Seconds())
}

// IncGatewayHook counts one gateway callback.
func IncGatewayHook(action string, allowed bool) {
	result := "allowed"
	if !allowed {
		result = "denied"
	}
	gatewayHooks.WithLabelValues(action, result).Inc()
}
