// Package encoder supervises the single ffmpeg process that re-encodes
// publisher media and pushes it to the RTMP ingest endpoint.
//
// Publishers obtain a Lease with Acquire. The first lease spawns the
// process, the last Release terminates it. Chunks submitted through a
// lease are queued without blocking and written to the process stdin by
// a dedicated goroutine; when the queue is full or no process is alive
// the chunk is dropped. A process that exits on its own is respawned
// lazily by the next Submit or Acquire.
package encoder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/livebridge/internal/events"
	"github.com/smazurov/livebridge/internal/ffmpeg"
	"github.com/smazurov/livebridge/internal/logging"
	"github.com/smazurov/livebridge/internal/metrics"
	"github.com/smazurov/livebridge/internal/process"
)

// Encoder states published on the event bus.
const (
	StateRunning = "running"
	StateStopped = "stopped"
	StateExited  = "exited"
	StateFailed  = "failed"
)

// Supervisor owns at most one encoder session at a time.
type Supervisor struct {
	cfg    Config
	args   []string
	logger *slog.Logger
	bus    *events.Bus

	mu        sync.Mutex
	refs      int
	current   *session
	retiring  *session
	closed    bool
	seq       uint64
	lastSpawn time.Time
	lastExit  int
	lastErr   string

	spawns       atomic.Uint64
	terminations atomic.Uint64
	forwarded    atomic.Uint64
	dropped      atomic.Uint64
}

// New creates a supervisor. A missing RTMP target is not an error here;
// Acquire reports it with ErrNoTarget. bus may be nil.
func New(cfg Config, bus *events.Bus) (*Supervisor, error) {
	cfg = cfg.withDefaults()
	s := &Supervisor{
		cfg:    cfg,
		logger: logging.GetLogger("encoder"),
		bus:    bus,
	}

	target := cfg.Target()
	if target == "" {
		s.logger.Warn("RTMP target not configured, ingest disabled")
		return s, nil
	}

	args, err := buildArgs(cfg, target)
	if err != nil {
		return nil, err
	}
	s.args = args
	return s, nil
}

func buildArgs(cfg Config, target string) ([]string, error) {
	if cfg.Command != "" {
		args, err := process.ParseCommand(cfg.Command)
		if err != nil {
			return nil, fmt.Errorf("invalid encoder command: %w", err)
		}
		for i, arg := range args {
			args[i] = strings.ReplaceAll(arg, TargetPlaceholder, target)
		}
		return args, nil
	}

	params := cfg.Params
	params.OutputURL = target
	return ffmpeg.BuildIngestArgs(params)
}

// Args returns the argv used for every spawn, or nil without a target.
func (s *Supervisor) Args() []string {
	return append([]string(nil), s.args...)
}

// RedactedArgs returns Args with the stream key masked, for display.
func (s *Supervisor) RedactedArgs() []string {
	args := s.Args()
	if s.cfg.StreamKey == "" {
		return args
	}
	for i, arg := range args {
		args[i] = strings.ReplaceAll(arg, s.cfg.StreamKey, "***")
	}
	return args
}

// Acquire registers a publisher and returns its lease. The first lease
// spawns the encoder. A failed spawn does not fail Acquire: the lease is
// valid and the next Submit retries after the respawn backoff.
func (s *Supervisor) Acquire() (*Lease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if s.args == nil {
		return nil, ErrNoTarget
	}
	if s.cfg.MaxPublishers > 0 && s.refs >= s.cfg.MaxPublishers {
		return nil, ErrPublisherLimit
	}

	s.refs++
	if s.refs == 1 {
		s.spawnLocked(false)
	} else {
		s.spawnLocked(true)
	}

	return &Lease{s: s}, nil
}

// submit queues a chunk for the live session or drops it.
func (s *Supervisor) submit(chunk []byte) {
	s.mu.Lock()
	if s.current == nil && s.refs > 0 {
		s.spawnLocked(true)
	}
	sess := s.current
	queued := sess != nil && sess.enqueue(chunk)
	s.mu.Unlock()

	if !queued {
		s.drop(len(chunk), sess == nil)
	}
}

func (s *Supervisor) drop(size int, noSession bool) {
	s.dropped.Add(1)
	metrics.AddChunk(metrics.ChunkDropped, size)
	if noSession {
		s.logger.Debug("Dropped chunk, encoder not running", "bytes", size)
	} else {
		s.logger.Debug("Dropped chunk, encoder queue full", "bytes", size)
	}
}

// release decrements the publisher count and retires the session at zero.
func (s *Supervisor) release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refs == 0 {
		return
	}
	s.refs--
	if s.refs == 0 && s.current != nil {
		s.retireLocked(s.current)
	}
}

// spawnLocked starts a session if none is live or retiring.
// With respawn set the backoff since the last attempt is honoured.
// Caller must hold s.mu.
func (s *Supervisor) spawnLocked(respawn bool) {
	if s.closed || s.current != nil || s.retiring != nil || s.args == nil {
		return
	}
	if respawn && time.Since(s.lastSpawn) < s.cfg.RespawnBackoff {
		return
	}

	s.seq++
	s.lastSpawn = time.Now()
	s.spawns.Add(1)
	metrics.IncEncoderSpawns()

	proc := process.New(fmt.Sprintf("encoder-%d", s.seq), s.args, s.logger)
	proc.SetLogParser(logging.GetLogger("ffmpeg"), ffmpeg.ParseLogLevel)
	proc.SetTimeouts(s.cfg.GracePeriod, s.cfg.KillTimeout)
	sess := newSession(s.seq, proc, s.cfg.QueueSize)
	proc.SetOutputHandler(sess)

	if err := proc.Start(); err != nil {
		s.lastErr = err.Error()
		s.logger.Error("Failed to spawn encoder", "error", err, "respawn_backoff", s.cfg.RespawnBackoff)
		metrics.IncEncoderExits(StateFailed)
		s.publishState(StateFailed, 0, 0, err.Error(), nil)
		return
	}

	s.current = sess
	s.lastErr = ""
	pid := proc.Info().PID

	go sess.runWriter(proc.Stdin(), s.written)
	go s.monitor(sess)

	metrics.SetEncoderRunning(true)
	s.logger.Info("Encoder started", "session", sess.seq, "pid", pid, "target", redactTarget(s.cfg))
	s.publishState(StateRunning, pid, 0, "", nil)
}

// written is the writer callback for every dequeued chunk.
func (s *Supervisor) written(n int, err error) {
	if err != nil {
		s.dropped.Add(1)
		metrics.AddChunk(metrics.ChunkDropped, n)
		s.logger.Debug("Dropped chunk, stdin write failed", "bytes", n, "error", err)
		return
	}
	s.forwarded.Add(1)
	metrics.AddChunk(metrics.ChunkForwarded, n)
}

// monitor waits for the process to exit and clears the session if it is
// still current. Publishers keep their leases; refs are not reset.
func (s *Supervisor) monitor(sess *session) {
	<-sess.proc.Done()
	exitCode := sess.proc.ExitCode()

	s.mu.Lock()
	if s.current != sess {
		s.mu.Unlock()
		return
	}
	s.current = nil
	s.lastExit = exitCode
	refs := s.refs
	s.mu.Unlock()

	sess.stopWriter()
	metrics.SetEncoderRunning(false)
	metrics.IncEncoderExits(StateExited)

	tail := sess.proc.Tail()
	s.logger.Warn("Encoder exited unexpectedly",
		"session", sess.seq,
		"exit_code", exitCode,
		"publishers", refs,
		"output", strings.Join(tail, " | "))
	s.publishState(StateExited, 0, exitCode, "", tail)
}

// retireLocked detaches sess and terminates it asynchronously. A new
// session is spawned only after the retiring one has exited.
// Caller must hold s.mu.
func (s *Supervisor) retireLocked(sess *session) {
	s.current = nil
	s.retiring = sess
	s.terminations.Add(1)

	go func() {
		sess.stopWriter()
		exitCode := sess.proc.Stop()

		metrics.SetEncoderRunning(false)
		metrics.IncEncoderExits(StateStopped)
		s.logger.Info("Encoder stopped", "session", sess.seq, "exit_code", exitCode)
		s.publishState(StateStopped, 0, exitCode, "", nil)

		s.mu.Lock()
		if s.retiring == sess {
			s.retiring = nil
		}
		s.lastExit = exitCode
		if s.refs > 0 {
			s.spawnLocked(false)
		}
		s.mu.Unlock()

		close(sess.retired)
	}()
}

// Close terminates the live session and rejects further Acquire calls.
// It waits for termination until ctx is done.
func (s *Supervisor) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	if s.current != nil {
		s.retireLocked(s.current)
	}
	retiring := s.retiring
	s.mu.Unlock()

	if retiring == nil {
		return nil
	}
	select {
	case <-retiring.retired:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for encoder shutdown: %w", ctx.Err())
	}
}

func (s *Supervisor) publishState(state string, pid, exitCode int, errMsg string, tail []string) {
	s.bus.Publish(events.EncoderStateChangedEvent{
		State:     state,
		PID:       pid,
		ExitCode:  exitCode,
		Error:     errMsg,
		Tail:      tail,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// redactTarget hides the stream key in log output.
func redactTarget(cfg Config) string {
	if cfg.StreamKey == "" {
		return cfg.RTMPURL
	}
	return ffmpeg.JoinTarget(cfg.RTMPURL, "***")
}
