package status

import (
	"context"
	"net/http"
	"time"
)

// OwncastBackend probes the Owncast public status endpoint.
type OwncastBackend struct {
	url     string
	hlsBase string
	title   string
	timeout time.Duration
	client  *http.Client
}

type owncastStatusResponse struct {
	Online      *bool   `json:"online"`
	ViewerCount *int    `json:"viewerCount"`
	StreamTitle *string `json:"streamTitle"`
}

// NewOwncastBackend creates an Owncast backend from the aggregator config.
func NewOwncastBackend(cfg Config, client *http.Client) *OwncastBackend {
	cfg = cfg.withDefaults()
	return &OwncastBackend{
		url:     cfg.OwncastURL,
		hlsBase: cfg.HLSBaseURL,
		title:   cfg.StreamTitle,
		timeout: cfg.OwncastTimeout,
		client:  client,
	}
}

// Name implements Backend.
func (b *OwncastBackend) Name() string { return "owncast" }

// Kind implements Backend.
func (b *OwncastBackend) Kind() string { return ServerTypeOwncast }

// Timeout implements Backend.
func (b *OwncastBackend) Timeout() time.Duration { return b.timeout }

// Probe implements Backend. Missing fields default to offline, zero
// viewers and the placeholder title.
func (b *OwncastBackend) Probe(ctx context.Context) (Snapshot, error) {
	var resp owncastStatusResponse
	if err := getJSON(ctx, b.client, b.url, &resp); err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		StreamTitle: b.title,
		ServerType:  ServerTypeOwncast,
		HLSURL:      b.hlsBase + "/hls/stream.m3u8",
	}
	if resp.Online != nil {
		snap.Online = *resp.Online
	}
	if resp.ViewerCount != nil {
		snap.ViewerCount = max(*resp.ViewerCount, 0)
	}
	if resp.StreamTitle != nil && *resp.StreamTitle != "" {
		snap.StreamTitle = *resp.StreamTitle
	}
	return snap, nil
}
