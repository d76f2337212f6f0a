package ffmpeg

// Params describes one ingest encoding pipeline: a continuous container byte
// stream on stdin, re-encoded and pushed to an RTMP ingest endpoint.
type Params struct {
	// Binary is the ffmpeg executable (default "ffmpeg").
	Binary string

	// Input
	InputFormat string // force demuxer (webm, matroska); empty = probe

	// Video
	Encoder    string // libx264, h264_vaapi, ...
	Preset     string // ultrafast, veryfast, ...
	Tune       string // zerolatency
	Bitrate    string // 2500k
	MaxRate    string // defaults to Bitrate
	BufferSize string // defaults to 2x Bitrate when empty
	GOP        int    // keyframe interval in frames (0 = 60)
	FPS        string // output frame rate (empty = passthrough)
	PixFmt     string // yuv420p

	// Audio
	AudioCodec   string // aac
	AudioBitrate string // 128k
	SampleRate   int    // 44100

	// Output
	OutputURL string // rtmp://host/app/key
}

// DefaultParams returns the settings used for browser-originated WebM/Matroska
// streams pushed to an RTMP server.
func DefaultParams() Params {
	return Params{
		Binary:       "ffmpeg",
		Encoder:      "libx264",
		Preset:       "veryfast",
		Tune:         "zerolatency",
		Bitrate:      "2500k",
		GOP:          60,
		PixFmt:       "yuv420p",
		AudioCodec:   "aac",
		AudioBitrate: "128k",
		SampleRate:   44100,
	}
}
