package status

// Server types reported in snapshots.
const (
	ServerTypeSRS     = "SRS"
	ServerTypeOwncast = "Owncast"
)

// Snapshot is the normalized stream status returned to polling clients.
// It is built fresh for every request.
type Snapshot struct {
	Online      bool   `json:"online" example:"true" doc:"Whether the stream is live"`
	ViewerCount int    `json:"viewerCount" example:"7" doc:"Current viewers"`
	StreamTitle string `json:"streamTitle,omitempty" example:"Sunday Service" doc:"Stream title"`
	ServerType  string `json:"serverType,omitempty" enum:"SRS,Owncast" doc:"Backend that answered"`
	ServerURL   string `json:"serverUrl,omitempty" example:"https://stream.example.org" doc:"Streaming backend base URL"`
	HLSURL      string `json:"hlsUrl,omitempty" example:"https://stream.example.org/live/livestream.m3u8" doc:"HLS playlist URL"`
	RTMPURL     string `json:"rtmpUrl,omitempty" example:"rtmp://stream.example.org/live" doc:"RTMP ingest URL"`
	StreamKey   string `json:"streamKey,omitempty" doc:"RTMP stream key (admin only)"`
	Error       string `json:"error,omitempty" example:"stream status unavailable" doc:"Failure summary"`
	Message     string `json:"message,omitempty" doc:"Failure details"`
}

// Public returns a copy without the stream key.
func (s Snapshot) Public() Snapshot {
	s.StreamKey = ""
	return s
}

func offline(errMsg, message string) Snapshot {
	return Snapshot{Online: false, Error: errMsg, Message: message}
}
