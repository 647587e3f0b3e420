package ffmpeg

// Base returns the ffmpeg executable name used when none is configured.
func Base() string {
	return "ffmpeg"
}

// Presets lists the x264 presets accepted for live sessions, fastest first.
var Presets = []string{
	"ultrafast",
	"superfast",
	"veryfast",
	"faster",
	"fast",
	"medium",
	"slow",
	"slower",
	"veryslow",
}

// OutputFormat is the container used for RTMP ingest.
const OutputFormat = "flv"
