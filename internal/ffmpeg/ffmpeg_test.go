package ffmpeg

import (
	"errors"
	"slices"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantLevel string
		wantMsg   string
	}{
		{
			name:      "simple info",
			input:     "[info] Stream mapping:",
			wantLevel: "info",
			wantMsg:   "Stream mapping:",
		},
		{
			name:      "simple error",
			input:     "[error] rtmp://localhost/live/key: Connection refused",
			wantLevel: "error",
			wantMsg:   "rtmp://localhost/live/key: Connection refused",
		},
		{
			name:      "component prefix with warning",
			input:     "[matroska,webm @ 0x7f673c439fc0] [warning] Unknown-sized element",
			wantLevel: "warning",
			wantMsg:   "[matroska,webm @ 0x7f673c439fc0] Unknown-sized element",
		},
		{
			name:      "component prefix without level",
			input:     "[libx264 @ 0x55f4a8c00000] using cpu capabilities: MMX2",
			wantLevel: "info",
			wantMsg:   "[libx264 @ 0x55f4a8c00000] using cpu capabilities: MMX2",
		},
		{
			name:      "progress line",
			input:     "frame=  100 fps= 30 q=28.0 size=    1024kB",
			wantLevel: "debug",
			wantMsg:   "frame=  100 fps= 30 q=28.0 size=    1024kB",
		},
		{
			name:      "progress line with level",
			input:     "[info] frame=  100 fps= 30",
			wantLevel: "debug",
			wantMsg:   "frame=  100 fps= 30",
		},
		{
			name:      "empty line",
			input:     "",
			wantLevel: "info",
			wantMsg:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotLevel, gotMsg := ParseLogLevel(tt.input)
			if gotLevel != tt.wantLevel {
				t.Errorf("ParseLogLevel() level = %q, want %q", gotLevel, tt.wantLevel)
			}
			if gotMsg != tt.wantMsg {
				t.Errorf("ParseLogLevel() msg = %q, want %q", gotMsg, tt.wantMsg)
			}
		})
	}
}

func TestBuildIngestArgsDefaults(t *testing.T) {
	p := DefaultParams()
	p.OutputURL = "rtmp://ingest.example.org/live/secret"

	args, err := BuildIngestArgs(p)
	if err != nil {
		t.Fatalf("BuildIngestArgs failed: %v", err)
	}

	if args[0] != "ffmpeg" {
		t.Errorf("expected binary ffmpeg, got %q", args[0])
	}
	if got := args[len(args)-1]; got != p.OutputURL {
		t.Errorf("expected output URL last, got %q", got)
	}

	cmd := strings.Join(args, " ")
	for _, want := range []string{
		"-i pipe:0",
		"-c:v libx264",
		"-preset veryfast",
		"-tune zerolatency",
		"-b:v 2500k -maxrate 2500k -bufsize 5000k",
		"-g 60",
		"-c:a aac -b:a 128k -ar 44100",
		"-f flv",
		"-loglevel level+info",
		"-stats_period 1",
	} {
		if !strings.Contains(cmd, want) {
			t.Errorf("command missing %q: %s", want, cmd)
		}
	}
	if strings.Contains(cmd, "-nostats") {
		t.Errorf("progress output must stay enabled: %s", cmd)
	}
}

func TestBuildIngestArgsOverrides(t *testing.T) {
	args, err := BuildIngestArgs(Params{
		Binary:      "/usr/local/bin/ffmpeg",
		InputFormat: "webm",
		Encoder:     "h264_vaapi",
		Tune:        "zerolatency",
		Bitrate:     "4M",
		BufferSize:  "4M",
		GOP:         30,
		OutputURL:   "rtmp://localhost/live/key",
	})
	if err != nil {
		t.Fatalf("BuildIngestArgs failed: %v", err)
	}

	cmd := strings.Join(args, " ")
	if args[0] != "/usr/local/bin/ffmpeg" {
		t.Errorf("expected custom binary, got %q", args[0])
	}
	if !strings.Contains(cmd, "-f webm -i pipe:0") {
		t.Errorf("expected forced input format: %s", cmd)
	}
	if strings.Contains(cmd, "-tune") {
		t.Errorf("hardware encoder must not get -tune: %s", cmd)
	}
	if !strings.Contains(cmd, "-bufsize 4M") || !strings.Contains(cmd, "-g 30") {
		t.Errorf("overrides not applied: %s", cmd)
	}
	if !slices.Contains(args, "-c:a") {
		t.Errorf("audio codec missing: %s", cmd)
	}
}

func TestBuildIngestArgsRequiresOutput(t *testing.T) {
	_, err := BuildIngestArgs(DefaultParams())
	if !errors.Is(err, ErrNoOutput) {
		t.Fatalf("expected ErrNoOutput, got %v", err)
	}
}

func TestJoinTarget(t *testing.T) {
	tests := []struct {
		base, key, want string
	}{
		{"rtmp://host/live", "abc", "rtmp://host/live/abc"},
		{"rtmp://host/live/", "/abc", "rtmp://host/live/abc"},
		{"rtmp://host/live", "", "rtmp://host/live"},
		{"", "abc", ""},
	}
	for _, tt := range tests {
		if got := JoinTarget(tt.base, tt.key); got != tt.want {
			t.Errorf("JoinTarget(%q, %q) = %q, want %q", tt.base, tt.key, got, tt.want)
		}
	}
}

func TestDoubleRate(t *testing.T) {
	tests := map[string]string{
		"2500k": "5000k",
		"3M":    "6M",
		"800":   "1600",
		"fast":  "fast",
	}
	for in, want := range tests {
		if got := doubleRate(in); got != want {
			t.Errorf("doubleRate(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseProgress(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Progress
		ok   bool
	}{
		{
			name: "plain stats",
			line: "frame=  100 fps= 30 q=28.0 size=    1024kB time=00:00:03.33 bitrate=2516.6kbits/s speed=1.01x",
			want: Progress{Frame: 100, FPS: 30, Bitrate: "2516.6kbits/s", Time: "00:00:03.33", Speed: "1.01x"},
			ok:   true,
		},
		{
			name: "level prefix",
			line: "[info] frame=   42 fps=0.0 q=-1.0 size=N/A time=00:00:01.40 bitrate=N/A speed=2.8x",
			want: Progress{Frame: 42, FPS: 0, Bitrate: "N/A", Time: "00:00:01.40", Speed: "2.8x"},
			ok:   true,
		},
		{
			name: "carriage return updates",
			line: "frame=   10 fps= 25 time=00:00:00.40 speed=1x\rframe=   20 fps= 26 time=00:00:00.80 speed=1x\r",
			want: Progress{Frame: 20, FPS: 26, Time: "00:00:00.80", Speed: "1x"},
			ok:   true,
		},
		{
			name: "log line",
			line: "[libx264 @ 0x55f4a8c00000] using cpu capabilities: MMX2",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseProgress(tt.line)
			if ok != tt.ok {
				t.Fatalf("ParseProgress() ok = %v, want %v", ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("ParseProgress() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
