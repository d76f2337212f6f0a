package logging

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// LogEntry is one buffered log record.
type LogEntry struct {
	Seq        uint64         `json:"seq"`
	Timestamp  time.Time      `json:"timestamp"`
	Level      string         `json:"level"`
	Module     string         `json:"module"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// LogCallback receives every entry after it has been buffered.
type LogCallback func(entry LogEntry)

// RingBuffer keeps the most recent log entries. Sequence numbers start
// at 1 and never repeat, so readers can resume with Since.
type RingBuffer struct {
	mu    sync.RWMutex
	slots []LogEntry
	last  uint64
}

// NewRingBuffer creates a buffer holding size entries.
func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = defaultBufferSize
	}
	return &RingBuffer{slots: make([]LogEntry, size)}
}

// Write stores entry, overwriting the oldest one when full, and returns
// it with its sequence number set.
func (rb *RingBuffer) Write(entry LogEntry) LogEntry {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.last++
	entry.Seq = rb.last
	rb.slots[rb.slot(rb.last)] = entry
	return entry
}

// Since returns the buffered entries with a sequence number above seq,
// oldest first.
func (rb *RingBuffer) Since(seq uint64) []LogEntry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	first := seq + 1
	if oldest := rb.oldestLocked(); first < oldest {
		first = oldest
	}
	if first > rb.last {
		return nil
	}

	out := make([]LogEntry, 0, rb.last-first+1)
	for s := first; s <= rb.last; s++ {
		out = append(out, rb.slots[rb.slot(s)])
	}
	return out
}

// ReadAll returns every buffered entry, oldest first.
func (rb *RingBuffer) ReadAll() []LogEntry {
	return rb.Since(0)
}

// Tail returns up to n of the newest entries, oldest first.
func (rb *RingBuffer) Tail(n int) []LogEntry {
	if n <= 0 {
		return rb.ReadAll()
	}
	rb.mu.RLock()
	last := rb.last
	rb.mu.RUnlock()

	if last <= uint64(n) {
		return rb.Since(0)
	}
	return rb.Since(last - uint64(n))
}

// Count returns the number of buffered entries.
func (rb *RingBuffer) Count() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	if rb.last == 0 {
		return 0
	}
	return int(rb.last - rb.oldestLocked() + 1)
}

func (rb *RingBuffer) slot(seq uint64) int {
	return int((seq - 1) % uint64(len(rb.slots)))
}

func (rb *RingBuffer) oldestLocked() uint64 {
	if size := uint64(len(rb.slots)); rb.last > size {
		return rb.last - size + 1
	}
	return 1
}

// bufferHandler writes records to the package history and notifies the
// registered callback. History and callback are resolved per record.
type bufferHandler struct {
	level slog.Leveler
	scope scope
}

func newBufferHandler(level slog.Leveler) *bufferHandler {
	return &bufferHandler{level: level}
}

func (h *bufferHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *bufferHandler) Handle(_ context.Context, r slog.Record) error {
	mu.RLock()
	buf, fn := history, onEntry
	mu.RUnlock()
	if buf == nil {
		return nil
	}

	entry := LogEntry{
		Timestamp: r.Time,
		Level:     levelName(r.Level),
		Module:    "app",
		Message:   r.Message,
	}
	h.scope.walk(r, func(groups []string, a slog.Attr) {
		if len(groups) == 0 && a.Key == "module" {
			entry.Module = a.Value.String()
			return
		}
		if entry.Attributes == nil {
			entry.Attributes = make(map[string]any)
		}
		entry.Attributes[dotted(groups, a.Key)] = entryValue(a.Value)
	})

	entry = buf.Write(entry)
	if fn != nil {
		fn(entry)
	}
	return nil
}

func (h *bufferHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &bufferHandler{level: h.level, scope: h.scope.withAttrs(attrs)}
}

func (h *bufferHandler) WithGroup(name string) slog.Handler {
	return &bufferHandler{level: h.level, scope: h.scope.withGroup(name)}
}

func dotted(groups []string, key string) string {
	if len(groups) == 0 {
		return key
	}
	return strings.Join(groups, ".") + "." + key
}

// entryValue converts a value to something encoding/json renders well.
func entryValue(v slog.Value) any {
	switch v.Kind() {
	case slog.KindTime:
		return v.Time().Format(time.RFC3339Nano)
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return v.Any()
	default:
		return v.Any()
	}
}
