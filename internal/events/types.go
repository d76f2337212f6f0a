package events

// Event type constants for kelindar/event.
const (
	TypePublisherConnected uint32 = iota + 1
	TypePublisherDisconnected
	TypePublisherRejected
	TypeEncoderStateChanged
	TypeGatewayPublish
	TypeCalendarChanged
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// PublisherConnectedEvent is published when an ingest connection obtained a lease.
type PublisherConnectedEvent struct {
	ConnectionID string `json:"connection_id" example:"5f0c6a1e-8f43-4a57-9d43-3c1f0b6f1d11" doc:"Publisher connection identifier"`
	RemoteAddr   string `json:"remote_addr" example:"203.0.113.7:51234" doc:"Remote address of the publisher"`
	Publishers   int    `json:"publishers" example:"1" doc:"Live publisher count after the change"`
	Timestamp    string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for PublisherConnectedEvent.
func (e PublisherConnectedEvent) Type() uint32 { return TypePublisherConnected }

// PublisherDisconnectedEvent is published when an ingest connection closed.
type PublisherDisconnectedEvent struct {
	ConnectionID string `json:"connection_id" doc:"Publisher connection identifier"`
	RemoteAddr   string `json:"remote_addr" doc:"Remote address of the publisher"`
	Publishers   int    `json:"publishers" example:"0" doc:"Live publisher count after the change"`
	Chunks       uint64 `json:"chunks" example:"1200" doc:"Binary chunks received on this connection"`
	Bytes        uint64 `json:"bytes" example:"5242880" doc:"Bytes received on this connection"`
	Timestamp    string `json:"timestamp" doc:"Event timestamp"`
}

// Type returns the event type identifier for PublisherDisconnectedEvent.
func (e PublisherDisconnectedEvent) Type() uint32 { return TypePublisherDisconnected }

// PublisherRejectedEvent is published when an ingest connection could not obtain a lease.
type PublisherRejectedEvent struct {
	RemoteAddr string `json:"remote_addr" doc:"Remote address of the rejected publisher"`
	Reason     string `json:"reason" example:"publisher limit reached" doc:"Rejection reason"`
	Timestamp  string `json:"timestamp" doc:"Event timestamp"`
}

// Type returns the event type identifier for PublisherRejectedEvent.
func (e PublisherRejectedEvent) Type() uint32 { return TypePublisherRejected }

// EncoderStateChangedEvent is published when the encoder session starts or ends.
type EncoderStateChangedEvent struct {
	State     string   `json:"state" example:"running" doc:"New state: running, stopped, exited, failed"`
	PID       int      `json:"pid,omitempty" example:"4242" doc:"Encoder process id"`
	ExitCode  int      `json:"exit_code,omitempty" example:"1" doc:"Exit code when the process ended"`
	Error     string   `json:"error,omitempty" doc:"Spawn error, if any"`
	Tail      []string `json:"tail,omitempty" doc:"Last lines of encoder output"`
	Timestamp string   `json:"timestamp" doc:"Event timestamp"`
}

// Type returns the event type identifier for EncoderStateChangedEvent.
func (e EncoderStateChangedEvent) Type() uint32 { return TypeEncoderStateChanged }

// GatewayPublishEvent is published for every gateway lifecycle callback.
type GatewayPublishEvent struct {
	Action     string `json:"action" example:"prePublish" doc:"Hook action"`
	StreamPath string `json:"stream_path" example:"/live/stream" doc:"Stream path reported by the gateway"`
	Allowed    bool   `json:"allowed" example:"true" doc:"Whether the publish was allowed"`
	Reason     string `json:"reason,omitempty" doc:"Rejection reason"`
	Timestamp  string `json:"timestamp" doc:"Event timestamp"`
}

// Type returns the event type identifier for GatewayPublishEvent.
func (e GatewayPublishEvent) Type() uint32 { return TypeGatewayPublish }

// CalendarChangedEvent is published after the calendar store changed.
type CalendarChangedEvent struct {
	Action    string `json:"action" example:"created" doc:"Action type: created, updated, deleted, reloaded"`
	EventID   string `json:"event_id,omitempty" doc:"Affected calendar event identifier"`
	Timestamp string `json:"timestamp" doc:"Event timestamp"`
}

// Type returns the event type identifier for CalendarChangedEvent.
func (e CalendarChangedEvent) Type() uint32 { return TypeCalendarChanged }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"api" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
