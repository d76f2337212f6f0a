package ingest

import (
	"slices"
	"strings"
	"time"
)

// Defaults for Config.
const (
	DefaultMaxMessageBytes = 4 << 20
	DefaultPingInterval    = 20 * time.Second
	DefaultPongWait        = 60 * time.Second
	DefaultWriteWait       = 5 * time.Second
)

// Config controls the WebSocket side of the bridge.
type Config struct {
	// MaxMessageBytes caps a single inbound message. Larger messages close
	// the connection.
	MaxMessageBytes int64
	PingInterval    time.Duration
	// PongWait is the read deadline, extended by every message and pong.
	PongWait  time.Duration
	WriteWait time.Duration
	// AllowedOrigins restricts the Origin header. Empty allows any origin.
	AllowedOrigins []string
}

func (c Config) withDefaults() Config {
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = DefaultMaxMessageBytes
	}
	if c.PingInterval <= 0 {
		c.PingInterval = DefaultPingInterval
	}
	if c.PongWait <= 0 {
		c.PongWait = DefaultPongWait
	}
	if c.PongWait <= c.PingInterval {
		c.PongWait = c.PingInterval * 3
	}
	if c.WriteWait <= 0 {
		c.WriteWait = DefaultWriteWait
	}
	return c
}

func (c Config) originAllowed(origin string) bool {
	if len(c.AllowedOrigins) == 0 || origin == "" {
		return true
	}
	return slices.ContainsFunc(c.AllowedOrigins, func(allowed string) bool {
		return allowed == "*" || strings.EqualFold(strings.TrimRight(allowed, "/"), origin)
	})
}
