package ingest

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/smazurov/livebridge/internal/encoder"
)

// PublisherInfo describes a live publisher connection.
type PublisherInfo struct {
	ID          string    `json:"id" example:"5f0c6a1e-8f43-4a57-9d43-3c1f0b6f1d11" doc:"Connection identifier"`
	RemoteAddr  string    `json:"remoteAddr" example:"203.0.113.7:51234" doc:"Remote address"`
	ConnectedAt time.Time `json:"connectedAt" doc:"When the connection was upgraded"`
	Chunks      uint64    `json:"chunks" example:"1200" doc:"Binary messages received"`
	Bytes       uint64    `json:"bytes" example:"5242880" doc:"Bytes received"`
}

// publisher is one upgraded connection holding an encoder lease.
type publisher struct {
	id          string
	remoteAddr  string
	connectedAt time.Time
	conn        *websocket.Conn
	lease       *encoder.Lease

	chunks atomic.Uint64
	bytes  atomic.Uint64

	done      chan struct{}
	closeOnce sync.Once
}

func (p *publisher) info() PublisherInfo {
	return PublisherInfo{
		ID:          p.id,
		RemoteAddr:  p.remoteAddr,
		ConnectedAt: p.connectedAt,
		Chunks:      p.chunks.Load(),
		Bytes:       p.bytes.Load(),
	}
}

// close releases the lease and the socket. Safe to call more than once.
func (p *publisher) close() bool {
	closed := false
	p.closeOnce.Do(func() {
		close(p.done)
		_ = p.conn.Close()
		p.lease.Release()
		closed = true
	})
	return closed
}
