package status

import (
	"strings"
	"time"
)

// Default probe timeouts.
const (
	DefaultSRSTimeout     = 3 * time.Second
	DefaultOwncastTimeout = 5 * time.Second
	DefaultStreamTitle    = "Live Stream"
	DefaultStreamName     = "livestream"
)

// Config holds the backend locations and the values echoed in snapshots.
type Config struct {
	// ServerURL is the streaming backend base URL. Required.
	ServerURL string
	// SRSAPIURL overrides {ServerURL}/api/v1/streams/.
	SRSAPIURL string
	// OwncastURL overrides {ServerURL}/api/status.
	OwncastURL string
	// HLSBaseURL overrides ServerURL for playlist links.
	HLSBaseURL string
	// StreamName names the SRS playlist under /live/.
	StreamName string
	// StreamTitle is the placeholder title.
	StreamTitle string

	RTMPURL   string
	StreamKey string

	SRSTimeout     time.Duration
	OwncastTimeout time.Duration
}

func (c Config) withDefaults() Config {
	c.ServerURL = trimBase(c.ServerURL)
	c.HLSBaseURL = trimBase(c.HLSBaseURL)
	if c.HLSBaseURL == "" {
		c.HLSBaseURL = c.ServerURL
	}
	if c.SRSAPIURL == "" && c.ServerURL != "" {
		c.SRSAPIURL = c.ServerURL + "/api/v1/streams/"
	}
	if c.OwncastURL == "" && c.ServerURL != "" {
		c.OwncastURL = c.ServerURL + "/api/status"
	}
	if c.StreamName == "" {
		c.StreamName = DefaultStreamName
	}
	if c.StreamTitle == "" {
		c.StreamTitle = DefaultStreamTitle
	}
	if c.SRSTimeout <= 0 {
		c.SRSTimeout = DefaultSRSTimeout
	}
	if c.OwncastTimeout <= 0 {
		c.OwncastTimeout = DefaultOwncastTimeout
	}
	return c
}

func trimBase(u string) string {
	return strings.TrimRight(strings.TrimSpace(u), "/")
}
