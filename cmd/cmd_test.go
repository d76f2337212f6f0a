package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smazurov/livebridge/internal/encoder"
	"github.com/smazurov/livebridge/internal/process"
	"github.com/smazurov/livebridge/internal/status"
)

func TestEncoderArgsMasksKey(t *testing.T) {
	cmd := CreateEncoderArgsCmd(func() encoder.Config {
		return encoder.Config{RTMPURL: "rtmp://127.0.0.1/live", StreamKey: "s3cret"}
	})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())
	line := strings.TrimSpace(out.String())
	assert.True(t, strings.HasPrefix(line, "ffmpeg "))
	assert.True(t, strings.HasSuffix(line, "rtmp://127.0.0.1/live/***"))
	assert.NotContains(t, line, "s3cret")
}

func TestEncoderArgsShowKeyRoundTrips(t *testing.T) {
	cfg := encoder.Config{
		RTMPURL:   "rtmp://127.0.0.1/live",
		StreamKey: "s3cret",
		Command:   `ffmpeg -i pipe:0 -metadata "title=Sunday Service" -f flv {target}`,
	}
	cmd := CreateEncoderArgsCmd(func() encoder.Config { return cfg })
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--show-key"})

	require.NoError(t, cmd.Execute())
	args, err := process.ParseCommand(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, []string{"ffmpeg", "-i", "pipe:0", "-metadata", "title=Sunday Service", "-f", "flv", "rtmp://127.0.0.1/live/s3cret"}, args)
}

func TestEncoderArgsWithoutTarget(t *testing.T) {
	cmd := CreateEncoderArgsCmd(func() encoder.Config { return encoder.Config{} })
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})

	require.ErrorIs(t, cmd.Execute(), encoder.ErrNoTarget)
}

func TestQuote(t *testing.T) {
	assert.Equal(t, "plain", quote("plain"))
	assert.Equal(t, `""`, quote(""))
	assert.Equal(t, `"a b"`, quote("a b"))
	assert.Equal(t, `"say \"hi\""`, quote(`say "hi"`))
}

func TestStatusPrintsSnapshot(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":0,"streams":[{"name":"livestream","clients":2}]}`))
	}))
	defer backend.Close()

	cmd := CreateStatusCmd(func() status.Config {
		return status.Config{ServerURL: backend.URL, RTMPURL: "rtmp://x/live", StreamKey: "s3cret"}
	})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())

	var snap status.Snapshot
	require.NoError(t, json.Unmarshal(out.Bytes(), &snap))
	assert.True(t, snap.Online)
	assert.Equal(t, 2, snap.ViewerCount)
	assert.Empty(t, snap.StreamKey)
}
