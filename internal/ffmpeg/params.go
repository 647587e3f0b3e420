package ffmpeg

import (
	"fmt"
	"regexp"
	"slices"
)

// rateRe matches ffmpeg bitrate notation such as 6000k, 6.5M or 800000.
var rateRe = regexp.MustCompile(`^\d+(\.\d+)?[kKmM]?$`)

// EncodingParams holds everything needed to encode one session.
// A session captures its params once at start and never mutates them.
type EncodingParams struct {
	VideoCodec string `json:"video_codec" toml:"video_codec" example:"libx264" doc:"Video encoder"`
	AudioCodec string `json:"audio_codec" toml:"audio_codec" example:"aac" doc:"Audio encoder"`
	Preset     string `json:"preset" toml:"preset" example:"veryfast" doc:"Encoder preset"`

	// Rate control
	Bitrate    string `json:"bitrate" toml:"bitrate" example:"6000k" doc:"Target video bitrate"`
	BufferSize string `json:"bufsize" toml:"bufsize" example:"12000k" doc:"Rate control buffer size"`
	MaxRate    string `json:"maxrate" toml:"maxrate" example:"6500k" doc:"Maximum video bitrate"`

	GOP int `json:"g" toml:"g" example:"120" doc:"Keyframe interval in frames"`

	// Audio
	AudioChannels   int `json:"ac" toml:"ac" example:"2" doc:"Audio channel count"`
	AudioSampleRate int `json:"ar" toml:"ar" example:"44100" doc:"Audio sample rate in Hz"`

	Threads int `json:"threads" toml:"threads" example:"4" doc:"Encoder thread count (0 = ffmpeg default)"`

	// Input behaviour
	ReadNativeRate bool `json:"read_native_rate" toml:"read_native_rate" doc:"Read input at its native frame rate"`
	Loop           bool `json:"loop" toml:"loop" doc:"Loop the input file forever"`
}

// DefaultParams returns the encoding settings used when neither the
// configuration file nor the request override them.
func DefaultParams() EncodingParams {
	return EncodingParams{
		VideoCodec:      "libx264",
		AudioCodec:      "aac",
		Preset:          "veryfast",
		Bitrate:         "6000k",
		BufferSize:      "12000k",
		MaxRate:         "6500k",
		GOP:             120,
		AudioChannels:   2,
		AudioSampleRate: 44100,
		Threads:         4,
		ReadNativeRate:  true,
		Loop:            true,
	}
}

// Overrides carries per-request adjustments. Zero values keep the base value.
type Overrides struct {
	Bitrate         string
	BufferSize      string
	MaxRate         string
	GOP             int
	AudioChannels   int
	AudioSampleRate int
	Preset          string
}

// WithOverrides returns a copy of p with every non-zero override applied.
func (p EncodingParams) WithOverrides(o Overrides) EncodingParams {
	if o.Bitrate != "" {
		p.Bitrate = o.Bitrate
	}
	if o.BufferSize != "" {
		p.BufferSize = o.BufferSize
	}
	if o.MaxRate != "" {
		p.MaxRate = o.MaxRate
	}
	if o.GOP != 0 {
		p.GOP = o.GOP
	}
	if o.AudioChannels != 0 {
		p.AudioChannels = o.AudioChannels
	}
	if o.AudioSampleRate != 0 {
		p.AudioSampleRate = o.AudioSampleRate
	}
	if o.Preset != "" {
		p.Preset = o.Preset
	}
	return p
}

// Validate checks that every field holds a value ffmpeg will accept.
func (p EncodingParams) Validate() error {
	if p.VideoCodec == "" {
		return fmt.Errorf("video codec is required")
	}
	if p.AudioCodec == "" {
		return fmt.Errorf("audio codec is required")
	}
	for name, rate := range map[string]string{"bitrate": p.Bitrate, "bufsize": p.BufferSize, "maxrate": p.MaxRate} {
		if rate != "" && !rateRe.MatchString(rate) {
			return fmt.Errorf("invalid %s %q", name, rate)
		}
	}
	if p.GOP < 0 {
		return fmt.Errorf("invalid keyframe interval %d", p.GOP)
	}
	if p.AudioChannels < 0 || p.AudioChannels > 8 {
		return fmt.Errorf("invalid audio channel count %d", p.AudioChannels)
	}
	if p.AudioSampleRate < 0 {
		return fmt.Errorf("invalid audio sample rate %d", p.AudioSampleRate)
	}
	if p.Threads < 0 {
		return fmt.Errorf("invalid thread count %d", p.Threads)
	}
	if p.Preset != "" && !slices.Contains(Presets, p.Preset) {
		return fmt.Errorf("unknown preset %q", p.Preset)
	}
	return nil
}
