package encoder

import (
	"io"
	"sync"
	"sync/atomic"

	"github.com/smazurov/livebridge/internal/ffmpeg"
	"github.com/smazurov/livebridge/internal/process"
)

// session is one running encoder process plus the goroutine feeding its stdin.
// Only the Supervisor creates, detaches and terminates sessions.
type session struct {
	seq    uint64
	proc   *process.Process
	chunks chan []byte

	stop     chan struct{}
	stopOnce sync.Once
	retired  chan struct{}

	progress atomic.Pointer[ffmpeg.Progress]
}

func newSession(seq uint64, proc *process.Process, queueSize int) *session {
	return &session{
		seq:     seq,
		proc:    proc,
		chunks:  make(chan []byte, queueSize),
		stop:    make(chan struct{}),
		retired: make(chan struct{}),
	}
}

// HandleLine records ffmpeg progress lines from stderr.
func (s *session) HandleLine(_, line string) {
	if p, ok := ffmpeg.ParseProgress(line); ok {
		s.progress.Store(&p)
	}
}

// enqueue hands a chunk to the writer without blocking.
// The chunks channel is never closed, so sending is always safe.
func (s *session) enqueue(chunk []byte) bool {
	select {
	case s.chunks <- chunk:
		return true
	default:
		return false
	}
}

// stopWriter ends the writer goroutine. Queued chunks are discarded.
func (s *session) stopWriter() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// runWriter drains the queue into stdin in FIFO order. After the first
// write error every further chunk is reported as failed without writing.
func (s *session) runWriter(stdin io.Writer, written func(n int, err error)) {
	var writeErr error
	for {
		select {
		case <-s.stop:
			return
		case chunk := <-s.chunks:
			if writeErr != nil {
				written(len(chunk), writeErr)
				continue
			}
			_, writeErr = stdin.Write(chunk)
			written(len(chunk), writeErr)
		}
	}
}
