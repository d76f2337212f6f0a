package status

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

var errNoStreams = errors.New("no active streams")

// SRSBackend probes the SRS HTTP API stream list.
type SRSBackend struct {
	url        string
	hlsBase    string
	streamName string
	title      string
	timeout    time.Duration
	client     *http.Client
}

type srsStreamsResponse struct {
	Code    int         `json:"code"`
	Streams []srsStream `json:"streams"`
}

type srsStream struct {
	Clients int `json:"clients"`
}

// NewSRSBackend creates an SRS backend from the aggregator config.
func NewSRSBackend(cfg Config, client *http.Client) *SRSBackend {
	cfg = cfg.withDefaults()
	return &SRSBackend{
		url:        cfg.SRSAPIURL,
		hlsBase:    cfg.HLSBaseURL,
		streamName: cfg.StreamName,
		title:      cfg.StreamTitle,
		timeout:    cfg.SRSTimeout,
		client:     client,
	}
}

// Name implements Backend.
func (b *SRSBackend) Name() string { return "srs" }

// Kind implements Backend.
func (b *SRSBackend) Kind() string { return ServerTypeSRS }

// Timeout implements Backend.
func (b *SRSBackend) Timeout() time.Duration { return b.timeout }

// Probe implements Backend. A successful response without streams is
// reported as an error so the fallback backend gets consulted.
func (b *SRSBackend) Probe(ctx context.Context) (Snapshot, error) {
	var resp srsStreamsResponse
	if err := getJSON(ctx, b.client, b.url, &resp); err != nil {
		return Snapshot{}, err
	}
	if resp.Code != 0 {
		return Snapshot{}, fmt.Errorf("api returned code %d", resp.Code)
	}
	if len(resp.Streams) == 0 {
		return Snapshot{}, errNoStreams
	}

	// The playback URL comes from config only; backend stream names are untrusted.
	return Snapshot{
		Online:      true,
		ViewerCount: max(resp.Streams[0].Clients, 0),
		StreamTitle: b.title,
		ServerType:  ServerTypeSRS,
		HLSURL:      b.hlsBase + "/live/" + url.PathEscape(b.streamName) + ".m3u8",
	}, nil
}
