// Package process provides subprocess lifecycle management for long-running
// media tools such as ffmpeg.
//
// A Process wraps os/exec for a single subprocess:
//   - Optional stdin pipe for feeding a byte stream into the tool
//   - Continuous draining of stdout/stderr with pluggable log parsing
//   - Graceful stop: close stdin, send SIGINT, wait for a grace period
//   - Force kill of the whole process group if the grace period expires
//   - A bounded tail of recent output lines for post-mortem logging
//
// Example:
//
//	proc := process.New("encoder", []string{"ffmpeg", "-i", "pipe:0", "-f", "flv", url}, logger)
//	proc.SetLogParser(logging.GetLogger("ffmpeg"), ffmpeg.ParseLogLevel)
//	if err := proc.Start(); err != nil {
//	    return err
//	}
//	_, _ = proc.Stdin().Write(chunk)
//	exitCode := proc.Stop()
package process
