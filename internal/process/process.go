package process

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

const (
	defaultTailSize = 20
	maxLineSize     = 256 * 1024
)

// OutputHandler receives output lines from the subprocess.
type OutputHandler interface {
	HandleLine(source, line string)
}

// LogParser parses a log line and returns the log level and message.
// Used to extract structured log info from process output (ffmpeg, gstreamer, etc.)
type LogParser func(line string) (level, msg string)

// Process manages the lifecycle of a single subprocess.
type Process struct {
	id              string
	args            []string
	cmd             *exec.Cmd
	stdin           io.WriteCloser
	logger          *slog.Logger
	processLogger   *slog.Logger // logger for process output (nil = use logger)
	logParser       LogParser    // parses process output for log level (nil = no parsing)
	outputHandler   OutputHandler
	gracefulTimeout time.Duration // timeout for graceful shutdown before force kill
	killTimeout     time.Duration // timeout after Kill() before giving up

	mu        sync.Mutex
	state     State
	startedAt time.Time
	exitCode  int
	lastErr   error
	tail      []string

	done     chan struct{}
	stopOnce sync.Once
	stopCode int
}

// New creates a process for the given argv. The process is not started.
func New(id string, args []string, logger *slog.Logger) *Process {
	if logger == nil {
		logger = slog.Default()
	}
	return &Process{
		id:              id,
		args:            args,
		logger:          logger,
		state:           StateIdle,
		done:            make(chan struct{}),
		gracefulTimeout: 5 * time.Second,
		killTimeout:     5 * time.Second,
	}
}

// SetLogParser sets a custom logger and log parser for process output.
// The logger is used for process output (e.g., module="ffmpeg").
func (p *Process) SetLogParser(logger *slog.Logger, parser LogParser) {
	p.processLogger = logger
	p.logParser = parser
}

// SetOutputHandler sets a handler that receives every output line.
func (p *Process) SetOutputHandler(handler OutputHandler) {
	p.outputHandler = handler
}

// SetTimeouts overrides the graceful stop and post-kill timeouts.
// Zero values keep the current setting.
func (p *Process) SetTimeouts(graceful, kill time.Duration) {
	if graceful > 0 {
		p.gracefulTimeout = graceful
	}
	if kill > 0 {
		p.killTimeout = kill
	}
}

// Args returns the argv the process was created with.
func (p *Process) Args() []string {
	return append([]string(nil), p.args...)
}

// Start starts the subprocess with stdin, stdout and stderr pipes attached.
func (p *Process) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateIdle {
		return fmt.Errorf("process %s already started", p.id)
	}

	if len(p.args) == 0 {
		p.failLocked(errors.New("empty command"))
		return p.lastErr
	}

	p.cmd = exec.Command(p.args[0], p.args[1:]...)
	p.cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdin, err := p.cmd.StdinPipe()
	if err != nil {
		p.failLocked(fmt.Errorf("create stdin pipe: %w", err))
		return p.lastErr
	}

	stdout, err := p.cmd.StdoutPipe()
	if err != nil {
		p.failLocked(fmt.Errorf("create stdout pipe: %w", err))
		return p.lastErr
	}

	stderr, err := p.cmd.StderrPipe()
	if err != nil {
		p.failLocked(fmt.Errorf("create stderr pipe: %w", err))
		return p.lastErr
	}

	if err := p.cmd.Start(); err != nil {
		p.failLocked(fmt.Errorf("start %s: %w", p.args[0], err))
		return p.lastErr
	}

	p.stdin = stdin
	p.state = StateRunning
	p.startedAt = time.Now()

	p.logger.Info("Process started", "id", p.id, "pid", p.cmd.Process.Pid)

	// Stream output in separate goroutines
	outputDone := make(chan struct{}, 2)
	go func() {
		p.streamOutput(stdout, "stdout")
		outputDone <- struct{}{}
	}()
	go func() {
		p.streamOutput(stderr, "stderr")
		outputDone <- struct{}{}
	}()

	// Wait closes the pipes, so both readers must reach EOF first.
	go func() {
		<-outputDone
		<-outputDone
		waitErr := p.cmd.Wait()
		p.handleProcessExit(waitErr)
		close(p.done)
	}()

	return nil
}

// failLocked records a start failure. Caller must hold p.mu.
func (p *Process) failLocked(err error) {
	p.state = StateError
	p.lastErr = err
	p.exitCode = 1
	p.logger.Error("Failed to start process", "id", p.id, "error", err)
	close(p.done)
}

// Stdin returns the write end of the process stdin pipe, or nil before Start.
func (p *Process) Stdin() io.WriteCloser {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stdin
}

// Done is closed once the process has exited (or failed to start).
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the process exits and returns its exit code.
func (p *Process) Wait() int {
	<-p.done
	return p.ExitCode()
}

// ExitCode returns the exit code once the process has exited.
func (p *Process) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}

// Tail returns the most recent output lines, oldest first.
func (p *Process) Tail() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.tail...)
}

// Info returns a snapshot of the process state.
func (p *Process) Info() Info {
	p.mu.Lock()
	defer p.mu.Unlock()

	info := Info{
		ID:        p.id,
		State:     p.state,
		StartedAt: p.startedAt,
		ExitCode:  p.exitCode,
		LastError: p.lastErr,
	}
	if p.cmd != nil && p.cmd.Process != nil {
		info.PID = p.cmd.Process.Pid
	}
	return info
}

// Stop closes stdin, asks the process to terminate with SIGINT and waits for
// the graceful timeout before force-killing the process group.
// Only the first call does any work; later calls return the same exit code.
func (p *Process) Stop() int {
	p.stopOnce.Do(func() {
		p.stopCode = p.stop()
	})
	return p.stopCode
}

func (p *Process) stop() int {
	p.mu.Lock()
	switch p.state {
	case StateIdle:
		p.mu.Unlock()
		return 0
	case StateRunning:
		p.state = StateStopping
	}
	stdin := p.stdin
	p.mu.Unlock()

	select {
	case <-p.done:
		return p.ExitCode()
	default:
	}

	if stdin != nil {
		if err := stdin.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			p.logger.Debug("Failed to close stdin", "id", p.id, "error", err)
		}
	}

	p.sendStopSignal()
	return p.waitForExit(p.gracefulTimeout)
}

// sendStopSignal sends SIGINT to the subprocess without waiting.
func (p *Process) sendStopSignal() {
	if p.cmd == nil || p.cmd.Process == nil {
		return
	}
	p.logger.Info("Sending SIGINT to process", "id", p.id, "pid", p.cmd.Process.Pid)
	if err := p.cmd.Process.Signal(syscall.SIGINT); err != nil && !errors.Is(err, os.ErrProcessDone) {
		p.logger.Warn("Failed to send SIGINT", "id", p.id, "error", err)
	}
}

// waitForExit waits for the process to exit with a timeout, force-killing if needed.
func (p *Process) waitForExit(timeout time.Duration) int {
	select {
	case <-p.done:
		return p.ExitCode()
	case <-time.After(timeout):
		p.logger.Warn("Graceful shutdown timeout, forcing kill", "id", p.id, "timeout", timeout)
		pid := p.cmd.Process.Pid
		// Negative pid targets the process group created by Setpgid.
		if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
			p.logger.Error("Failed to kill process group", "id", p.id, "error", err)
		}
		select {
		case <-p.done:
		case <-time.After(p.killTimeout):
			p.logger.Error("Process did not exit after kill signal", "id", p.id)
		}
		return 137
	}
}

// handleProcessExit records exit code and state once cmd.Wait returned.
func (p *Process) handleProcessExit(waitErr error) {
	exitCode := exitCodeFromError(waitErr)

	p.mu.Lock()
	p.exitCode = exitCode
	p.state = StateExited
	if waitErr != nil {
		p.lastErr = waitErr
	}
	p.mu.Unlock()

	p.logger.Info("Process exited", "id", p.id, "exit_code", exitCode)
}

// exitCodeFromError extracts exit code from process error.
// Returns 0 for nil error, 128+signal for signalled processes, the exit code
// for other ExitErrors, or 1 for anything else.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			return 128 + int(status.Signal())
		}
		return exitErr.ExitCode()
	}
	return 1
}

// streamOutput streams output from the subprocess.
// Uses the configured processLogger (or falls back to default logger).
func (p *Process) streamOutput(reader io.Reader, source string) {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)
	scanner.Split(scanLines)

	logger := p.processLogger
	if logger == nil {
		logger = p.logger
	}

	for scanner.Scan() {
		line := scanner.Text()
		p.appendTail(line)

		if p.outputHandler != nil {
			p.outputHandler.HandleLine(source, line)
		}

		level, msg := "info", line
		if p.logParser != nil {
			level, msg = p.logParser(line)
		}

		switch level {
		case "fatal", "panic", "error":
			logger.Error(msg)
		case "warning":
			logger.Warn(msg)
		case "debug", "trace", "verbose":
			logger.Debug(msg)
		default:
			logger.Info(msg)
		}
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		p.logger.Debug("Error reading output", "id", p.id, "source", source, "error", err)
		// Keep the pipe empty so the child never blocks on a write.
		_, _ = io.Copy(io.Discard, reader)
	}
}

// scanLines is a bufio.SplitFunc that ends a line at either '\r' or '\n'.
// ffmpeg rewrites its stats line with bare carriage returns. Empty lines are
// dropped, so "\r\n" yields a single token.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := 0
	for start < len(data) && (data[start] == '\r' || data[start] == '\n') {
		start++
	}
	if atEOF && start == len(data) {
		return len(data), nil, nil
	}
	if i := bytes.IndexAny(data[start:], "\r\n"); i >= 0 {
		return start + i + 1, data[start : start+i], nil
	}
	if atEOF {
		return len(data), data[start:], nil
	}
	return start, nil, nil
}

func (p *Process) appendTail(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.tail) == defaultTailSize {
		copy(p.tail, p.tail[1:])
		p.tail = p.tail[:defaultTailSize-1]
	}
	p.tail = append(p.tail, line)
}

// ParseCommand parses a command string into arguments.
// Handles quoted strings and basic escaping.
func ParseCommand(command string) ([]string, error) {
	var args []string
	var current strings.Builder
	inQuote := false
	quoteChar := rune(0)

	command = strings.TrimSpace(command)
	runes := []rune(command)

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '"' || r == '\'':
			switch {
			case !inQuote:
				inQuote = true
				quoteChar = r
			case r == quoteChar:
				inQuote = false
				quoteChar = 0
			default:
				current.WriteRune(r)
			}
		case r == ' ' && !inQuote:
			if current.Len() > 0 {
				args = append(args, current.String())
				current.Reset()
			}
		case r == '\\' && i+1 < len(runes):
			i++
			current.WriteRune(runes[i])
		default:
			current.WriteRune(r)
		}
	}

	if current.Len() > 0 {
		args = append(args, current.String())
	}

	if inQuote {
		return nil, fmt.Errorf("unclosed quote in command")
	}

	if len(args) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	return args, nil
}
