package process

import (
	"bufio"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestProcess creates a Process with short timeouts for testing.
func newTestProcess(t *testing.T, command string) *Process {
	t.Helper()
	args, err := ParseCommand(command)
	if err != nil {
		t.Fatalf("ParseCommand(%q) failed: %v", command, err)
	}
	p := New("test", args, testLogger())
	p.SetTimeouts(100*time.Millisecond, 100*time.Millisecond)
	return p
}

// waitDone waits for the process to exit, fails test on timeout.
func waitDone(t *testing.T, p *Process, timeout time.Duration) int {
	t.Helper()
	select {
	case <-p.Done():
		return p.ExitCode()
	case <-time.After(timeout):
		t.Fatal("timeout waiting for process to exit")
		return -1
	}
}

func TestGracefulShutdown(t *testing.T) {
	p := newTestProcess(t, `sh -c "trap 'exit 0' INT TERM; while :; do sleep 0.1; done"`)
	p.SetTimeouts(500*time.Millisecond, 0)

	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	if exitCode := p.Stop(); exitCode != 0 {
		t.Errorf("expected exit code 0, got %d", exitCode)
	}
	if state := p.Info().State; state != StateExited {
		t.Errorf("expected state %s, got %s", StateExited, state)
	}
}

func TestForceKillOnTimeout(t *testing.T) {
	// Process that ignores SIGINT and never reads stdin
	p := newTestProcess(t, `sh -c "trap '' INT; sleep 10"`)
	p.SetTimeouts(50*time.Millisecond, 200*time.Millisecond)

	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	if exitCode := p.Stop(); exitCode != 137 {
		t.Errorf("expected exit code 137, got %d", exitCode)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("stop took too long: %v", elapsed)
	}
	waitDone(t, p, time.Second)
}

func TestStdinEOFEndsReader(t *testing.T) {
	// cat exits on its own once stdin is closed
	p := newTestProcess(t, `sh -c "cat > /dev/null"`)
	p.SetTimeouts(time.Second, 0)

	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := p.Stdin().Write([]byte("payload")); err != nil {
		t.Fatalf("write to stdin failed: %v", err)
	}

	if exitCode := p.Stop(); exitCode != 0 && exitCode != 130 {
		t.Errorf("expected clean exit, got %d", exitCode)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	p := newTestProcess(t, "sleep 10")

	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	var wg sync.WaitGroup
	codes := make([]int, 3)
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = p.Stop()
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(codes); i++ {
		if codes[i] != codes[0] {
			t.Errorf("Stop() returned %d on call %d, want %d", codes[i], i, codes[0])
		}
	}
}

func TestProcessAlreadyExited(t *testing.T) {
	p := newTestProcess(t, "true")

	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if exitCode := waitDone(t, p, 500*time.Millisecond); exitCode != 0 {
		t.Errorf("expected exit code 0, got %d", exitCode)
	}

	// Stop after process has already exited - should not panic or signal
	if exitCode := p.Stop(); exitCode != 0 {
		t.Errorf("expected exit code 0 from Stop, got %d", exitCode)
	}
}

func TestStartTwice(t *testing.T) {
	p := newTestProcess(t, "sleep 10")
	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.Stop()

	if err := p.Start(); err == nil {
		t.Error("expected error when starting twice")
	}
}

func TestProcessExitWithError(t *testing.T) {
	p := newTestProcess(t, "sh -c 'exit 42'")
	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if exitCode := waitDone(t, p, time.Second); exitCode != 42 {
		t.Errorf("expected exit code 42, got %d", exitCode)
	}
}

func TestStartNonExistentCommand(t *testing.T) {
	p := New("test", []string{"/nonexistent/command/that/does/not/exist"}, testLogger())
	if err := p.Start(); err == nil {
		t.Fatal("expected start error")
	}

	info := p.Info()
	if info.State != StateError {
		t.Errorf("expected state %s, got %s", StateError, info.State)
	}
	if info.LastError == nil {
		t.Error("expected LastError to be set")
	}

	// Done must already be closed so watchers never hang
	if exitCode := waitDone(t, p, 100*time.Millisecond); exitCode != 1 {
		t.Errorf("expected exit code 1, got %d", exitCode)
	}
}

func TestStartEmptyArgs(t *testing.T) {
	p := New("test", nil, testLogger())
	if err := p.Start(); err == nil {
		t.Error("expected error for empty command")
	}
}

func TestStopBeforeStart(t *testing.T) {
	p := newTestProcess(t, "sleep 10")
	if exitCode := p.Stop(); exitCode != 0 {
		t.Errorf("expected exit code 0, got %d", exitCode)
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr bool
	}{
		{"simple", "ffmpeg -i pipe:0", []string{"ffmpeg", "-i", "pipe:0"}, false},
		{"double quotes", `sh -c "echo hi"`, []string{"sh", "-c", "echo hi"}, false},
		{"nested quotes", `sh -c "trap 'exit 0' INT"`, []string{"sh", "-c", "trap 'exit 0' INT"}, false},
		{"escapes", `echo hello\ world`, []string{"echo", "hello world"}, false},
		{"extra spaces", "  a   b  ", []string{"a", "b"}, false},
		{"unclosed", `echo "unclosed`, nil, true},
		{"empty", "   ", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommand(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCommand(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("ParseCommand(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestOutputHandlerAndTail(t *testing.T) {
	handler := &testOutputHandler{}

	p := newTestProcess(t, `sh -c "echo line1; echo line2 >&2"`)
	p.SetOutputHandler(handler)
	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitDone(t, p, time.Second)

	if got := handler.count(); got < 2 {
		t.Errorf("expected at least 2 lines, got %d", got)
	}

	tail := strings.Join(p.Tail(), "\n")
	if !strings.Contains(tail, "line1") || !strings.Contains(tail, "line2") {
		t.Errorf("tail missing output lines: %q", tail)
	}
}

func TestTailIsBounded(t *testing.T) {
	p := newTestProcess(t, `sh -c "i=0; while [ $i -lt 50 ]; do echo line$i; i=$((i+1)); done"`)
	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitDone(t, p, 2*time.Second)

	tail := p.Tail()
	if len(tail) != defaultTailSize {
		t.Fatalf("expected %d tail lines, got %d", defaultTailSize, len(tail))
	}
	if tail[len(tail)-1] != "line49" {
		t.Errorf("expected last line to be line49, got %q", tail[len(tail)-1])
	}
}

func TestCarriageReturnOutputIsDrained(t *testing.T) {
	handler := &testOutputHandler{}

	// About 400KB of stats records with no newline until the end.
	p := newTestProcess(t, `sh -c "i=0; while [ $i -lt 4000 ]; do printf 'frame=%05d fps=30.0 q=28.0 size=1024kB time=00:00:01.00 bitrate=2500.0kbits/s speed=1.0x\\r' $i >&2; i=$((i+1)); done; echo DONE >&2"`)
	p.SetOutputHandler(handler)
	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if exitCode := waitDone(t, p, 10*time.Second); exitCode != 0 {
		t.Errorf("expected exit code 0, got %d", exitCode)
	}

	if got := handler.count(); got != 4001 {
		t.Errorf("expected 4001 lines, got %d", got)
	}
	tail := p.Tail()
	if len(tail) == 0 || tail[len(tail)-1] != "DONE" {
		t.Errorf("expected last line DONE, got %q", tail)
	}
	if !strings.HasPrefix(tail[0], "frame=") {
		t.Errorf("expected progress records in tail, got %q", tail[0])
	}
}

func TestOversizedLineKeepsDraining(t *testing.T) {
	p := newTestProcess(t, `sh -c "head -c 600000 /dev/zero | tr '\\0' x >&2; echo DONE"`)
	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if exitCode := waitDone(t, p, 10*time.Second); exitCode != 0 {
		t.Errorf("expected exit code 0, got %d", exitCode)
	}
}

func TestFinalLinesSurviveExit(t *testing.T) {
	for run := range 10 {
		p := newTestProcess(t, `sh -c "i=0; while [ $i -lt 3000 ]; do echo noise$i >&2; i=$((i+1)); done; echo FINAL >&2; exit 3"`)
		if err := p.Start(); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		if exitCode := waitDone(t, p, 10*time.Second); exitCode != 3 {
			t.Fatalf("run %d: expected exit code 3, got %d", run, exitCode)
		}
		tail := p.Tail()
		if len(tail) == 0 || tail[len(tail)-1] != "FINAL" {
			t.Fatalf("run %d: expected last tail line FINAL, got %q", run, tail)
		}
	}
}

func TestScanLines(t *testing.T) {
	scanner := bufio.NewScanner(strings.NewReader("a\rb\r\nc\n\n\rd"))
	scanner.Split(scanLines)
	var got []string
	for scanner.Scan() {
		got = append(got, scanner.Text())
	}
	want := []string{"a", "b", "c", "d"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestStreamOutputLogLevels(t *testing.T) {
	cmd := `echo "[error] error message" && echo "[warning] warn message" && echo "[debug] debug message" && echo "plain message"`
	p := newTestProcess(t, "sh -c '"+cmd+"'")
	p.SetLogParser(testLogger(), func(line string) (string, string) {
		if strings.HasPrefix(line, "[") {
			end := strings.Index(line, "] ")
			if end > 0 {
				return line[1:end], line[end+2:]
			}
		}
		return "info", line
	})
	if err := p.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if exitCode := waitDone(t, p, time.Second); exitCode != 0 {
		t.Errorf("expected exit code 0, got %d", exitCode)
	}
}

type testOutputHandler struct {
	mu    sync.Mutex
	lines []string
}

func (h *testOutputHandler) HandleLine(_, line string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lines = append(h.lines, line)
}

func (h *testOutputHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.lines)
}
