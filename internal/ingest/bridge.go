// Package ingest accepts publisher media over WebSocket and forwards every
// binary message to the encoder supervisor.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/smazurov/livebridge/internal/encoder"
	"github.com/smazurov/livebridge/internal/events"
	"github.com/smazurov/livebridge/internal/logging"
	"github.com/smazurov/livebridge/internal/metrics"
)

// Rejection reasons, also used as metric labels.
const (
	ReasonPublisherLimit = "publisher_limit"
	ReasonNoTarget       = "no_target"
	ReasonShutdown       = "shutdown"
	ReasonError          = "error"
)

// Acquirer hands out encoder leases. *encoder.Supervisor implements it.
type Acquirer interface {
	Acquire() (*encoder.Lease, error)
}

// Bridge is the http.Handler for the ingest endpoint.
type Bridge struct {
	src      Acquirer
	bus      *events.Bus
	cfg      Config
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu     sync.Mutex
	conns  map[string]*publisher
	closed bool
	wg     sync.WaitGroup
}

// New creates a bridge. bus may be nil.
func New(src Acquirer, cfg Config, bus *events.Bus) *Bridge {
	cfg = cfg.withDefaults()
	b := &Bridge{
		src:    src,
		bus:    bus,
		cfg:    cfg,
		logger: logging.GetLogger("ingest"),
		conns:  make(map[string]*publisher),
	}
	b.upgrader = websocket.Upgrader{
		ReadBufferSize:  64 * 1024,
		WriteBufferSize: 4 * 1024,
		CheckOrigin: func(r *http.Request) bool {
			return cfg.originAllowed(r.Header.Get("Origin"))
		},
	}
	return b
}

// ServeHTTP acquires a lease, upgrades the connection and runs the read
// loop until the publisher goes away.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		http.Error(w, "websocket upgrade required", http.StatusBadRequest)
		return
	}

	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		b.reject(w, r, http.StatusServiceUnavailable, ReasonShutdown, "server shutting down")
		return
	}

	lease, err := b.src.Acquire()
	if err != nil {
		switch {
		case errors.Is(err, encoder.ErrPublisherLimit):
			b.reject(w, r, http.StatusConflict, ReasonPublisherLimit, "another publisher is already live")
		case errors.Is(err, encoder.ErrNoTarget):
			b.reject(w, r, http.StatusServiceUnavailable, ReasonNoTarget, "RTMP target not configured")
		case errors.Is(err, encoder.ErrClosed):
			b.reject(w, r, http.StatusServiceUnavailable, ReasonShutdown, "server shutting down")
		default:
			b.reject(w, r, http.StatusInternalServerError, ReasonError, err.Error())
		}
		return
	}

	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		lease.Release()
		b.logger.Warn("WebSocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		metrics.IncIngestRejected(ReasonError)
		return
	}

	p := &publisher{
		id:          uuid.NewString(),
		remoteAddr:  r.RemoteAddr,
		connectedAt: time.Now(),
		conn:        conn,
		lease:       lease,
		done:        make(chan struct{}),
	}

	if !b.register(p) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server shutting down"),
			time.Now().Add(b.cfg.WriteWait))
		p.close()
		return
	}
	defer b.wg.Done()
	defer b.disconnect(p)

	go b.pingLoop(p)
	b.readLoop(p)
}

func (b *Bridge) reject(w http.ResponseWriter, r *http.Request, status int, reason, msg string) {
	b.logger.Warn("Publisher rejected", "remote_addr", r.RemoteAddr, "reason", reason, "status", status)
	metrics.IncIngestRejected(reason)
	b.bus.Publish(events.PublisherRejectedEvent{
		RemoteAddr: r.RemoteAddr,
		Reason:     msg,
		Timestamp:  time.Now().Format(time.RFC3339),
	})
	http.Error(w, msg, status)
}

func (b *Bridge) register(p *publisher) bool {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return false
	}
	b.conns[p.id] = p
	b.wg.Add(1)
	count := len(b.conns)
	b.mu.Unlock()

	metrics.SetIngestPublishers(count)
	b.logger.Info("Publisher connected", "id", p.id, "remote_addr", p.remoteAddr, "publishers", count)
	b.bus.Publish(events.PublisherConnectedEvent{
		ConnectionID: p.id,
		RemoteAddr:   p.remoteAddr,
		Publishers:   count,
		Timestamp:    p.connectedAt.Format(time.RFC3339),
	})
	return true
}

func (b *Bridge) disconnect(p *publisher) {
	if !p.close() {
		return
	}

	b.mu.Lock()
	delete(b.conns, p.id)
	count := len(b.conns)
	b.mu.Unlock()

	metrics.SetIngestPublishers(count)
	info := p.info()
	b.logger.Info("Publisher disconnected",
		"id", p.id,
		"remote_addr", p.remoteAddr,
		"chunks", info.Chunks,
		"bytes", info.Bytes,
		"duration", time.Since(p.connectedAt).Round(time.Millisecond))
	b.bus.Publish(events.PublisherDisconnectedEvent{
		ConnectionID: p.id,
		RemoteAddr:   p.remoteAddr,
		Publishers:   count,
		Chunks:       info.Chunks,
		Bytes:        info.Bytes,
		Timestamp:    time.Now().Format(time.RFC3339),
	})
}

func (b *Bridge) readLoop(p *publisher) {
	conn := p.conn
	conn.SetReadLimit(b.cfg.MaxMessageBytes)
	_ = conn.SetReadDeadline(time.Now().Add(b.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(b.cfg.PongWait))
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				b.logger.Warn("Publisher connection error", "id", p.id, "error", err)
			} else {
				b.logger.Debug("Publisher read loop ended", "id", p.id, "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(b.cfg.PongWait))

		switch msgType {
		case websocket.BinaryMessage:
			if len(data) == 0 {
				continue
			}
			p.chunks.Add(1)
			p.bytes.Add(uint64(len(data)))
			p.lease.Submit(data)
		case websocket.TextMessage:
			b.logger.Debug("Ignoring text message", "id", p.id, "bytes", len(data))
		}
	}
}

func (b *Bridge) pingLoop(p *publisher) {
	ticker := time.NewTicker(b.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			if err := p.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(b.cfg.WriteWait)); err != nil {
				b.logger.Debug("Ping failed", "id", p.id, "error", err)
				_ = p.conn.Close()
				return
			}
		}
	}
}

// Count returns the number of live publisher connections.
func (b *Bridge) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}

// Publishers returns the live connections ordered by connect time.
func (b *Bridge) Publishers() []PublisherInfo {
	b.mu.Lock()
	list := make([]PublisherInfo, 0, len(b.conns))
	for _, p := range b.conns {
		list = append(list, p.info())
	}
	b.mu.Unlock()

	sort.Slice(list, func(i, j int) bool {
		return list[i].ConnectedAt.Before(list[j].ConnectedAt)
	})
	return list
}

// Shutdown rejects new publishers, closes every live connection and waits
// for their read loops to release the leases.
func (b *Bridge) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	b.closed = true
	conns := make([]*publisher, 0, len(b.conns))
	for _, p := range b.conns {
		conns = append(conns, p)
	}
	b.mu.Unlock()

	deadline := time.Now().Add(b.cfg.WriteWait)
	for _, p := range conns {
		_ = p.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"), deadline)
		_ = p.conn.Close()
	}

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("Ingest bridge stopped", "closed", len(conns))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for publishers to disconnect: %w", ctx.Err())
	}
}
