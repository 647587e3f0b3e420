package models

import (
	"time"

	"github.com/smazurov/loopcast/internal/ffmpeg"
	"github.com/smazurov/loopcast/internal/metrics"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
	Streams int    `json:"streams" example:"2" doc:"Number of live sessions"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"1.0.0" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc123" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2025-01-01T00:00:00Z" doc:"Build timestamp"`
	BuildID   string `json:"build_id" example:"42" doc:"Build identifier"`
	GoVersion string `json:"go_version" example:"go1.24.0" doc:"Go runtime version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Go compiler"`
	Platform  string `json:"platform" example:"linux/amd64" doc:"Target platform"`
}

type VersionResponse struct {
	Body VersionData
}

// MessageResponse is returned by the start and stop endpoints.
type MessageResponse struct {
	Body MessageData
}

type MessageData struct {
	Message string `json:"message" example:"Streaming for abcd-1234 started successfully!" doc:"Result message"`
}

// StartStreamData is the body of POST /start-stream. Empty or zero encoding
// fields fall back to the configured defaults.
type StartStreamData struct {
	StreamKey string `json:"stream_key,omitempty" example:"abcd-1234" doc:"Stream key of the RTMP destination"`
	VideoPath string `json:"video_path,omitempty" example:"/srv/videos/loop.mp4" doc:"Local video file to loop"`

	Bitrate    string `json:"bitrate,omitempty" example:"6000k" doc:"Target video bitrate"`
	BufferSize string `json:"bufsize,omitempty" example:"12000k" doc:"Rate control buffer size"`
	MaxRate    string `json:"maxrate,omitempty" example:"6500k" doc:"Maximum video bitrate"`
	GOP        int    `json:"g,omitempty" example:"120" doc:"Keyframe interval in frames"`
	Channels   int    `json:"ac,omitempty" example:"2" doc:"Audio channel count"`
	SampleRate int    `json:"ar,omitempty" example:"44100" doc:"Audio sample rate in Hz"`
	Preset     string `json:"preset,omitempty" example:"veryfast" doc:"Encoder preset"`
}

// Overrides converts the optional request fields into encoding overrides.
func (d StartStreamData) Overrides() ffmpeg.Overrides {
	return ffmpeg.Overrides{
		Bitrate:         d.Bitrate,
		BufferSize:      d.BufferSize,
		MaxRate:         d.MaxRate,
		GOP:             d.GOP,
		AudioChannels:   d.Channels,
		AudioSampleRate: d.SampleRate,
		Preset:          d.Preset,
	}
}

type StartStreamRequest struct {
	Body StartStreamData
}

type StopStreamData struct {
	StreamKey string `json:"stream_key,omitempty" example:"abcd-1234" doc:"Stream key of the session to stop"`
}

type StopStreamRequest struct {
	Body StopStreamData
}

// Stream models
type StreamData struct {
	ID             string                       `json:"id" example:"2b1c..." doc:"Session attempt identifier"`
	StreamKey      string                       `json:"stream_key" example:"abcd-1234" doc:"Stream key"`
	State          string                       `json:"state" enum:"starting,running,stopping,stopped" doc:"Lifecycle state"`
	VideoPath      string                       `json:"video_path" doc:"Looped video file"`
	DestinationURL string                       `json:"destination_url" doc:"RTMP destination URL"`
	PID            int                          `json:"pid,omitempty" doc:"Transcoder process id"`
	StartedAt      time.Time                    `json:"started_at" doc:"When the session was created"`
	UptimeSeconds  float64                      `json:"uptime_seconds" doc:"Seconds since the session was created"`
	Params         ffmpeg.EncodingParams        `json:"params" doc:"Encoding parameters captured at start"`
	Metrics        *metrics.FFmpegStreamMetrics `json:"metrics,omitempty" doc:"Latest transcoder progress"`
}

type StreamListData struct {
	Streams []StreamData `json:"streams" doc:"Live sessions"`
	Count   int          `json:"count" example:"1" doc:"Number of live sessions"`
}

type StreamListResponse struct {
	Body StreamListData
}

type StreamResponse struct {
	Body StreamData
}

type StreamKeyInput struct {
	StreamKey string `path:"stream_key" example:"abcd-1234" doc:"Stream key"`
}

// EncodingDefaultsResponse returns the defaults applied to new sessions.
type EncodingDefaultsResponse struct {
	Body ffmpeg.EncodingParams
}
