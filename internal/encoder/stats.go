package encoder

import (
	"time"

	"github.com/smazurov/livebridge/internal/ffmpeg"
)

// Stats is a point-in-time view of the supervisor.
type Stats struct {
	Publishers    int       `json:"publishers" example:"1" doc:"Active publisher leases"`
	MaxPublishers int       `json:"maxPublishers" example:"1" doc:"Publisher limit, 0 for unlimited"`
	Configured    bool      `json:"configured" example:"true" doc:"Whether an RTMP target is configured"`
	Alive         bool      `json:"alive" example:"true" doc:"Whether an encoder process is running"`
	Retiring      bool      `json:"retiring" example:"false" doc:"Whether a previous encoder is still shutting down"`
	PID           int       `json:"pid,omitempty" example:"4242" doc:"Encoder process id"`
	StartedAt     time.Time `json:"startedAt,omitempty" doc:"Start time of the running encoder"`
	Session       uint64    `json:"session" example:"3" doc:"Sequence number of the latest spawn"`
	Spawns        uint64    `json:"spawns" example:"3" doc:"Spawn attempts since startup"`
	Terminations  uint64    `json:"terminations" example:"2" doc:"Termination requests since startup"`
	Forwarded     uint64    `json:"forwarded" example:"12000" doc:"Chunks written to the encoder"`
	Dropped       uint64    `json:"dropped" example:"4" doc:"Chunks dropped"`
	LastExitCode  int       `json:"lastExitCode" example:"0" doc:"Exit code of the last finished encoder"`
	LastError     string    `json:"lastError,omitempty" doc:"Last spawn error"`

	Progress *ffmpeg.Progress `json:"progress,omitempty" doc:"Latest ffmpeg stats line of the running encoder"`
}

// Stats returns a snapshot of the supervisor state.
func (s *Supervisor) Stats() Stats {
	s.mu.Lock()
	st := Stats{
		Publishers:    s.refs,
		MaxPublishers: s.cfg.MaxPublishers,
		Configured:    s.args != nil,
		Alive:         s.current != nil,
		Retiring:      s.retiring != nil,
		Session:       s.seq,
		LastExitCode:  s.lastExit,
		LastError:     s.lastErr,
	}
	current := s.current
	s.mu.Unlock()

	if current != nil {
		info := current.proc.Info()
		st.PID = info.PID
		st.StartedAt = info.StartedAt
		st.Progress = current.progress.Load()
	}
	st.Spawns = s.spawns.Load()
	st.Terminations = s.terminations.Load()
	st.Forwarded = s.forwarded.Load()
	st.Dropped = s.dropped.Load()
	return st
}
