// Package status reports whether the live stream is on air by probing the
// configured streaming backends in priority order.
package status

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/smazurov/livebridge/internal/logging"
	"github.com/smazurov/livebridge/internal/metrics"
)

// Failure summaries used in offline snapshots.
const (
	ErrNotConfigured = "stream server not configured"
	ErrUnavailable   = "stream status unavailable"
)

// Aggregator probes backends in order and returns the first success.
type Aggregator struct {
	cfg      Config
	backends []Backend
	logger   *slog.Logger
}

// New creates an aggregator probing SRS first and Owncast second.
// client may be nil; probe deadlines come from each backend's timeout.
func New(cfg Config, client *http.Client) *Aggregator {
	if client == nil {
		client = &http.Client{}
	}
	cfg = cfg.withDefaults()
	return NewWithBackends(cfg, NewSRSBackend(cfg, client), NewOwncastBackend(cfg, client))
}

// NewWithBackends creates an aggregator over an explicit backend list.
func NewWithBackends(cfg Config, backends ...Backend) *Aggregator {
	return &Aggregator{
		cfg:      cfg.withDefaults(),
		backends: backends,
		logger:   logging.GetLogger("status"),
	}
}

// Backends returns the probe order.
func (a *Aggregator) Backends() []Backend {
	return append([]Backend(nil), a.backends...)
}

// GetStatus returns the normalized stream status. It never fails: backend
// problems are reported as an offline snapshot with error details. Each
// probe is bounded by its backend timeout and there are no retries.
func (a *Aggregator) GetStatus(ctx context.Context) Snapshot {
	if a.cfg.ServerURL == "" {
		return a.decorate(offline(ErrNotConfigured, "Set the streaming server URL to enable status checks"))
	}

	failures := make([]string, 0, len(a.backends))
	for _, backend := range a.backends {
		snap, err := a.probe(ctx, backend)
		if err == nil {
			return a.decorate(snap)
		}
		failures = append(failures, fmt.Sprintf("%s: %v", backend.Kind(), err))
		if ctx.Err() != nil {
			break
		}
	}

	a.logger.Debug("All status backends failed", "failures", failures)
	return a.decorate(offline(ErrUnavailable, strings.Join(failures, "; ")))
}

func (a *Aggregator) probe(ctx context.Context, backend Backend) (Snapshot, error) {
	probeCtx, cancel := context.WithTimeout(ctx, backend.Timeout())
	defer cancel()

	start := time.Now()
	snap, err := backend.Probe(probeCtx)
	elapsed := time.Since(start)
	metrics.ObserveProbe(backend.Name(), err == nil, elapsed)

	if err != nil {
		if probeCtx.Err() != nil && ctx.Err() == nil {
			err = fmt.Errorf("timed out after %s", backend.Timeout())
		}
		a.logger.Debug("Status probe failed", "backend", backend.Name(), "duration", elapsed, "error", err)
		return Snapshot{}, err
	}

	a.logger.Debug("Status probe succeeded", "backend", backend.Name(), "online", snap.Online, "viewers", snap.ViewerCount)
	return snap, nil
}

// decorate adds the configuration-sourced fields.
func (a *Aggregator) decorate(snap Snapshot) Snapshot {
	snap.ServerURL = a.cfg.ServerURL
	snap.RTMPURL = a.cfg.RTMPURL
	snap.StreamKey = a.cfg.StreamKey
	return snap
}
