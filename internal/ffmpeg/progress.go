package ffmpeg

import (
	"regexp"
	"strconv"
	"strings"
)

// Progress is the last stats line ffmpeg printed to stderr.
type Progress struct {
	Frame   int64   `json:"frame" example:"1800" doc:"Frames encoded"`
	FPS     float64 `json:"fps" example:"30" doc:"Current encoding frame rate"`
	Bitrate string  `json:"bitrate,omitempty" example:"2481.3kbits/s" doc:"Current output bitrate"`
	Time    string  `json:"time,omitempty" example:"00:01:00.00" doc:"Encoded media time"`
	Speed   string  `json:"speed,omitempty" example:"1.01x" doc:"Encoding speed relative to realtime"`
}

// ffmpeg pads values after '=' with spaces ("fps= 30").
var progressField = regexp.MustCompile(`(\w+)=\s*(\S+)`)

// ParseProgress extracts encoder stats from a progress line such as
// "frame=  100 fps= 30 q=28.0 size=  1024kB time=00:00:03.33 bitrate=2516.6kbits/s speed=1x".
// Lines carrying several carriage-return separated updates yield the
// last one. It reports false for any other line.
func ParseProgress(line string) (Progress, bool) {
	if i := strings.LastIndexByte(strings.TrimRight(line, "\r"), '\r'); i >= 0 {
		line = line[i+1:]
	}
	start := strings.Index(line, "frame=")
	if start < 0 {
		return Progress{}, false
	}

	var p Progress
	for _, m := range progressField.FindAllStringSubmatch(line[start:], -1) {
		switch m[1] {
		case "frame":
			p.Frame, _ = strconv.ParseInt(m[2], 10, 64)
		case "fps":
			p.FPS, _ = strconv.ParseFloat(m[2], 64)
		case "bitrate":
			p.Bitrate = m[2]
		case "time":
			p.Time = m[2]
		case "speed":
			p.Speed = m[2]
		}
	}
	return p, true
}
