package encoder

import (
	"time"

	"github.com/smazurov/livebridge/internal/ffmpeg"
)

// Defaults applied by New for zero Config values.
const (
	DefaultQueueSize      = 256
	DefaultGracePeriod    = 5 * time.Second
	DefaultKillTimeout    = 5 * time.Second
	DefaultRespawnBackoff = 2 * time.Second
)

// TargetPlaceholder is replaced by the RTMP target in a custom command.
const TargetPlaceholder = "{target}"

// Config configures the encoder supervisor.
type Config struct {
	// RTMPURL is the ingest base URL, e.g. rtmp://localhost/live.
	RTMPURL string
	// StreamKey is appended to RTMPURL as the last path segment.
	StreamKey string
	// Params are the ffmpeg encoding parameters. OutputURL is ignored.
	Params ffmpeg.Params
	// Command overrides the generated ffmpeg argv when set.
	Command string
	// MaxPublishers caps concurrent leases. 0 means unlimited.
	MaxPublishers int
	// QueueSize bounds the chunks buffered between Submit and stdin.
	QueueSize      int
	GracePeriod    time.Duration
	KillTimeout    time.Duration
	RespawnBackoff time.Duration
}

// Target returns the RTMP URL the encoder publishes to, or "" when unset.
func (c Config) Target() string {
	return ffmpeg.JoinTarget(c.RTMPURL, c.StreamKey)
}

func (c Config) withDefaults() Config {
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.GracePeriod <= 0 {
		c.GracePeriod = DefaultGracePeriod
	}
	if c.KillTimeout <= 0 {
		c.KillTimeout = DefaultKillTimeout
	}
	if c.RespawnBackoff <= 0 {
		c.RespawnBackoff = DefaultRespawnBackoff
	}
	c.Params = mergeParams(ffmpeg.DefaultParams(), c.Params)
	return c
}

// mergeParams fills zero fields of p from defaults.
func mergeParams(defaults, p ffmpeg.Params) ffmpeg.Params {
	if p.Binary == "" {
		p.Binary = defaults.Binary
	}
	if p.Encoder == "" {
		p.Encoder = defaults.Encoder
	}
	if p.Preset == "" {
		p.Preset = defaults.Preset
	}
	if p.Tune == "" {
		p.Tune = defaults.Tune
	}
	if p.Bitrate == "" {
		p.Bitrate = defaults.Bitrate
	}
	if p.GOP == 0 {
		p.GOP = defaults.GOP
	}
	if p.PixFmt == "" {
		p.PixFmt = defaults.PixFmt
	}
	if p.AudioCodec == "" {
		p.AudioCodec = defaults.AudioCodec
	}
	if p.AudioBitrate == "" {
		p.AudioBitrate = defaults.AudioBitrate
	}
	if p.SampleRate == 0 {
		p.SampleRate = defaults.SampleRate
	}
	return p
}
