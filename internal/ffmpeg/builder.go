package ffmpeg

import (
	"strconv"
	"strings"
)

// BuildArgs builds the ffmpeg argument list (without the executable) that
// streams source to destination with the given encoding params.
func BuildArgs(source, destination string, p EncodingParams) []string {
	args := []string{"-hide_banner", "-nostdin", "-loglevel", "level+info"}

	// Input configuration
	if p.ReadNativeRate {
		args = append(args, "-re")
	}
	if p.Loop {
		args = append(args, "-stream_loop", "-1")
	}
	args = append(args, "-i", source)

	// Video encoder
	args = append(args, "-c:v", p.VideoCodec)
	if p.Preset != "" {
		args = append(args, "-preset", p.Preset)
	}

	// Rate control - only add what's set
	if p.Bitrate != "" {
		args = append(args, "-b:v", p.Bitrate)
	}
	if p.MaxRate != "" {
		args = append(args, "-maxrate", p.MaxRate)
	}
	if p.BufferSize != "" {
		args = append(args, "-bufsize", p.BufferSize)
	}
	if p.GOP > 0 {
		args = append(args, "-g", strconv.Itoa(p.GOP))
	}

	// Audio encoder
	args = append(args, "-c:a", p.AudioCodec)
	if p.AudioChannels > 0 {
		args = append(args, "-ac", strconv.Itoa(p.AudioChannels))
	}
	if p.AudioSampleRate > 0 {
		args = append(args, "-ar", strconv.Itoa(p.AudioSampleRate))
	}

	if p.Threads > 0 {
		args = append(args, "-threads", strconv.Itoa(p.Threads))
	}

	return append(args, "-f", OutputFormat, destination)
}

// BuildCommand renders the full command line as a shell-safe string.
func BuildCommand(binary, source, destination string, p EncodingParams) string {
	args := BuildArgs(source, destination, p)
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, quote(binary))
	for _, arg := range args {
		parts = append(parts, quote(arg))
	}
	return strings.Join(parts, " ")
}

// quote wraps arg in single quotes when the shell would otherwise split or
// expand it.
func quote(arg string) string {
	if arg == "" {
		return "''"
	}
	if !strings.ContainsAny(arg, " \t\n'\"\\$`*?[]{}()<>|&;#~!") {
		return arg
	}
	return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
}
