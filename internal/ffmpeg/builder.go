package ffmpeg

import (
	"errors"
	"strconv"
	"strings"
)

// ErrNoOutput is returned when no output URL was configured.
var ErrNoOutput = errors.New("ffmpeg: output URL is required")

// BuildIngestArgs builds the argv (binary first) for the ingest pipeline.
func BuildIngestArgs(p Params) ([]string, error) {
	if strings.TrimSpace(p.OutputURL) == "" {
		return nil, ErrNoOutput
	}

	binary := p.Binary
	if binary == "" {
		binary = "ffmpeg"
	}

	// Stats stay on: the encoder session parses them for progress.
	args := []string{binary, "-hide_banner", "-loglevel", "level+info", "-stats_period", "1"}

	// Input: continuous byte stream from the bridge; timestamps from the
	// browser muxer are unreliable across chunk boundaries.
	args = append(args, "-fflags", "+genpts+nobuffer", "-thread_queue_size", "1024")
	if p.InputFormat != "" {
		args = append(args, "-f", p.InputFormat)
	}
	args = append(args, "-i", "pipe:0")

	// Video
	encoder := p.Encoder
	if encoder == "" {
		encoder = "libx264"
	}
	args = append(args, "-c:v", encoder)
	if p.Preset != "" {
		args = append(args, "-preset", p.Preset)
	}
	if p.Tune != "" && !isHardwareEncoder(encoder) {
		args = append(args, "-tune", p.Tune)
	}
	if p.Bitrate != "" {
		maxRate := p.MaxRate
		if maxRate == "" {
			maxRate = p.Bitrate
		}
		bufSize := p.BufferSize
		if bufSize == "" {
			bufSize = doubleRate(p.Bitrate)
		}
		args = append(args, "-b:v", p.Bitrate, "-maxrate", maxRate, "-bufsize", bufSize)
	}
	if p.PixFmt != "" {
		args = append(args, "-pix_fmt", p.PixFmt)
	}
	if p.FPS != "" {
		args = append(args, "-r", p.FPS)
	}
	gop := p.GOP
	if gop <= 0 {
		gop = 60
	}
	args = append(args, "-g", strconv.Itoa(gop), "-keyint_min", strconv.Itoa(gop), "-sc_threshold", "0")

	// Audio
	audioCodec := p.AudioCodec
	if audioCodec == "" {
		audioCodec = "aac"
	}
	args = append(args, "-c:a", audioCodec)
	if p.AudioBitrate != "" {
		args = append(args, "-b:a", p.AudioBitrate)
	}
	if p.SampleRate > 0 {
		args = append(args, "-ar", strconv.Itoa(p.SampleRate))
	}

	// Output: RTMP requires FLV
	args = append(args, "-f", "flv", "-flvflags", "no_duration_filesize", p.OutputURL)

	return args, nil
}

// JoinTarget concatenates an RTMP base URL and a stream key.
func JoinTarget(baseURL, streamKey string) string {
	baseURL = strings.TrimSpace(baseURL)
	streamKey = strings.Trim(strings.TrimSpace(streamKey), "/")
	if baseURL == "" {
		return ""
	}
	if streamKey == "" {
		return baseURL
	}
	return strings.TrimRight(baseURL, "/") + "/" + streamKey
}

// doubleRate doubles a bitrate expression such as "2500k" or "3M".
// Unparseable values are returned unchanged.
func doubleRate(rate string) string {
	rate = strings.TrimSpace(rate)
	if rate == "" {
		return rate
	}
	suffix := ""
	number := rate
	if last := rate[len(rate)-1]; last < '0' || last > '9' {
		suffix = rate[len(rate)-1:]
		number = rate[:len(rate)-1]
	}
	n, err := strconv.Atoi(number)
	if err != nil {
		return rate
	}
	return strconv.Itoa(n*2) + suffix
}

func isHardwareEncoder(encoder string) bool {
	for _, marker := range []string{"_vaapi", "_qsv", "_nvenc", "_rkmpp", "_v4l2m2m", "_videotoolbox"} {
		if strings.HasSuffix(encoder, marker) {
			return true
		}
	}
	return false
}
