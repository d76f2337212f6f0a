package status

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer serves the SRS and Owncast endpoints with configurable bodies.
type fakeServer struct {
	*httptest.Server
	srsCalls     atomic.Int32
	owncastCalls atomic.Int32
}

func newFakeServer(t *testing.T, srs, owncast http.HandlerFunc) *fakeServer {
	t.Helper()
	fs := &fakeServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/streams/", func(w http.ResponseWriter, r *http.Request) {
		fs.srsCalls.Add(1)
		srs(w, r)
	})
	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		fs.owncastCalls.Add(1)
		owncast(w, r)
	})
	fs.Server = httptest.NewServer(mux)
	t.Cleanup(fs.Close)
	return fs
}

func jsonBody(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

func statusCode(code int) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(code)
	}
}

func hang(w http.ResponseWriter, r *http.Request) {
	select {
	case <-r.Context().Done():
	case <-time.After(5 * time.Second):
	}
	w.WriteHeader(http.StatusOK)
}

func TestSRSWithViewers(t *testing.T) {
	fs := newFakeServer(t,
		jsonBody(`{"code":0,"streams":[{"name":"livestream","app":"live","clients":7}]}`),
		jsonBody(`{"online":false}`))

	agg := New(Config{ServerURL: fs.URL, RTMPURL: "rtmp://example.org/live", StreamKey: "k"}, fs.Client())
	snap := agg.GetStatus(context.Background())

	assert.True(t, snap.Online)
	assert.Equal(t, 7, snap.ViewerCount)
	assert.Equal(t, ServerTypeSRS, snap.ServerType)
	assert.Equal(t, fs.URL, snap.ServerURL)
	assert.Equal(t, fs.URL+"/live/livestream.m3u8", snap.HLSURL)
	assert.Equal(t, DefaultStreamTitle, snap.StreamTitle)
	assert.Equal(t, "rtmp://example.org/live", snap.RTMPURL)
	assert.Equal(t, "k", snap.StreamKey)
	assert.Empty(t, snap.Error)
	assert.Equal(t, int32(0), fs.owncastCalls.Load(), "fallback must not be tried after a success")
}

func TestSRSEmptyListFallsBack(t *testing.T) {
	fs := newFakeServer(t,
		jsonBody(`{"code":0,"streams":[]}`),
		jsonBody(`{"online":true,"viewerCount":3,"streamTitle":"Evening Service"}`))

	snap := New(Config{ServerURL: fs.URL}, fs.Client()).GetStatus(context.Background())

	assert.Equal(t, int32(1), fs.owncastCalls.Load())
	assert.True(t, snap.Online)
	assert.Equal(t, 3, snap.ViewerCount)
	assert.Equal(t, "Evening Service", snap.StreamTitle)
	assert.Equal(t, ServerTypeOwncast, snap.ServerType)
	assert.Equal(t, fs.URL+"/hls/stream.m3u8", snap.HLSURL)
}

func TestSRSEmptyListOwncastOffline(t *testing.T) {
	fs := newFakeServer(t,
		jsonBody(`{"code":0,"streams":[]}`),
		jsonBody(`{}`))

	snap := New(Config{ServerURL: fs.URL, StreamTitle: "Placeholder"}, fs.Client()).GetStatus(context.Background())

	assert.False(t, snap.Online)
	assert.Equal(t, 0, snap.ViewerCount)
	assert.Equal(t, "Placeholder", snap.StreamTitle)
	assert.Equal(t, ServerTypeOwncast, snap.ServerType)
	assert.Empty(t, snap.Error)
}

func TestSRSFailuresFallThrough(t *testing.T) {
	tests := []struct {
		name string
		srs  http.HandlerFunc
	}{
		{"error code", jsonBody(`{"code":1003,"streams":[{"clients":1}]}`)},
		{"server error", statusCode(http.StatusInternalServerError)},
		{"bad body", jsonBody(`<html>not json</html>`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := newFakeServer(t, tt.srs, jsonBody(`{"online":true,"viewerCount":1}`))

			snap := New(Config{ServerURL: fs.URL}, fs.Client()).GetStatus(context.Background())

			assert.Equal(t, int32(1), fs.srsCalls.Load())
			assert.Equal(t, int32(1), fs.owncastCalls.Load())
			assert.True(t, snap.Online)
			assert.Equal(t, ServerTypeOwncast, snap.ServerType)
		})
	}
}

func TestAllBackendsFail(t *testing.T) {
	fs := newFakeServer(t, statusCode(http.StatusBadGateway), statusCode(http.StatusNotFound))

	snap := New(Config{ServerURL: fs.URL}, fs.Client()).GetStatus(context.Background())

	assert.False(t, snap.Online)
	assert.Equal(t, ErrUnavailable, snap.Error)
	assert.Contains(t, snap.Message, "SRS: unexpected status 502")
	assert.Contains(t, snap.Message, "Owncast: unexpected status 404")
}

func TestBothBackendsTimeOut(t *testing.T) {
	fs := newFakeServer(t, hang, hang)

	cfg := Config{
		ServerURL:      fs.URL,
		SRSTimeout:     100 * time.Millisecond,
		OwncastTimeout: 150 * time.Millisecond,
	}
	agg := New(cfg, fs.Client())

	start := time.Now()
	snap := agg.GetStatus(context.Background())
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 250*time.Millisecond+200*time.Millisecond, "must return within the sum of timeouts")
	assert.False(t, snap.Online)
	assert.Equal(t, ErrUnavailable, snap.Error)
	assert.Contains(t, snap.Message, "timed out")
}

func TestMissingServerURL(t *testing.T) {
	probe := &countingBackend{}
	agg := NewWithBackends(Config{}, probe)

	start := time.Now()
	snap := agg.GetStatus(context.Background())

	assert.Less(t, time.Since(start), 50*time.Millisecond)
	assert.False(t, snap.Online)
	assert.Equal(t, ErrNotConfigured, snap.Error)
	assert.NotEmpty(t, snap.Message)
	assert.Equal(t, int32(0), probe.calls.Load(), "no probe may run without a server URL")
}

func TestURLOverrides(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/custom/srs", jsonBody(`{"code":0,"streams":[{"name":"main","clients":2}]}`))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	agg := New(Config{
		ServerURL:  "http://unused.invalid",
		SRSAPIURL:  srv.URL + "/custom/srs",
		HLSBaseURL: "https://cdn.example.org/",
		StreamName: "main",
	}, srv.Client())

	snap := agg.GetStatus(context.Background())
	require.True(t, snap.Online)
	assert.Equal(t, "https://cdn.example.org/live/main.m3u8", snap.HLSURL)
	assert.Equal(t, "http://unused.invalid", snap.ServerURL)
}

func TestSRSStreamNameIsIgnored(t *testing.T) {
	fs := newFakeServer(t,
		jsonBody(`{"code":0,"streams":[{"name":"../../evil?x=","clients":7}]}`),
		jsonBody(`{"online":false}`))

	snap := New(Config{ServerURL: fs.URL}, fs.Client()).GetStatus(context.Background())

	require.True(t, snap.Online)
	assert.Equal(t, fs.URL+"/live/"+DefaultStreamName+".m3u8", snap.HLSURL)
	assert.NotContains(t, snap.HLSURL, "evil")
}

func TestNegativeViewerCountsAreClamped(t *testing.T) {
	t.Run("srs", func(t *testing.T) {
		fs := newFakeServer(t,
			jsonBody(`{"code":0,"streams":[{"name":"livestream","clients":-4}]}`),
			jsonBody(`{"online":false}`))

		snap := New(Config{ServerURL: fs.URL}, fs.Client()).GetStatus(context.Background())
		require.Equal(t, ServerTypeSRS, snap.ServerType)
		assert.Equal(t, 0, snap.ViewerCount)
	})

	t.Run("owncast", func(t *testing.T) {
		fs := newFakeServer(t,
			jsonBody(`{"code":0,"streams":[]}`),
			jsonBody(`{"online":true,"viewerCount":-12}`))

		snap := New(Config{ServerURL: fs.URL}, fs.Client()).GetStatus(context.Background())
		require.Equal(t, ServerTypeOwncast, snap.ServerType)
		assert.Equal(t, 0, snap.ViewerCount)
	})
}

func TestCanceledContextStopsProbing(t *testing.T) {
	first := &countingBackend{err: context.Canceled}
	second := &countingBackend{}
	agg := NewWithBackends(Config{ServerURL: "http://example.org"}, first, second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	snap := agg.GetStatus(ctx)
	assert.False(t, snap.Online)
	assert.Equal(t, int32(1), first.calls.Load())
	assert.Equal(t, int32(0), second.calls.Load())
}

func TestPublicHidesStreamKey(t *testing.T) {
	snap := Snapshot{Online: true, RTMPURL: "rtmp://x/live", StreamKey: "secret"}
	pub := snap.Public()
	assert.Empty(t, pub.StreamKey)
	assert.Equal(t, "rtmp://x/live", pub.RTMPURL)
	assert.Equal(t, "secret", snap.StreamKey, "original is unchanged")
}

func TestDefaultBackendOrder(t *testing.T) {
	agg := New(Config{ServerURL: "http://example.org"}, nil)
	backends := agg.Backends()
	require.Len(t, backends, 2)
	assert.Equal(t, ServerTypeSRS, backends[0].Kind())
	assert.Equal(t, DefaultSRSTimeout, backends[0].Timeout())
	assert.Equal(t, ServerTypeOwncast, backends[1].Kind())
	assert.Equal(t, DefaultOwncastTimeout, backends[1].Timeout())
}

type countingBackend struct {
	calls atomic.Int32
	err   error
}

func (b *countingBackend) Name() string           { return "counting" }
func (b *countingBackend) Kind() string           { return "Counting" }
func (b *countingBackend) Timeout() time.Duration { return time.Second }

func (b *countingBackend) Probe(_ context.Context) (Snapshot, error) {
	b.calls.Add(1)
	if b.err != nil {
		return Snapshot{}, b.err
	}
	return Snapshot{Online: true, ServerType: b.Kind()}, nil
}
