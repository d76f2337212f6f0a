package encoder

import (
	"sync"
	"sync/atomic"
)

// Lease is a publisher's handle on the encoder, returned by Acquire.
type Lease struct {
	s        *Supervisor
	once     sync.Once
	released atomic.Bool
}

// Submit hands a media chunk to the encoder. It never blocks on I/O and
// never fails: chunks are dropped when no encoder is running, the queue is
// full or the lease was released. The encoder takes ownership of chunk.
func (l *Lease) Submit(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	if l.released.Load() {
		l.s.drop(len(chunk), true)
		return
	}
	l.s.submit(chunk)
}

// Release gives the lease back. Only the first call has any effect.
func (l *Lease) Release() {
	l.once.Do(func() {
		l.released.Store(true)
		l.s.release()
	})
}
