package ffmpeg

import (
	"slices"
	"strings"
	"testing"
)

func TestBuildArgsDefaults(t *testing.T) {
	args := BuildArgs("/tmp/a.mp4", "rtmp://a.rtmp.youtube.com/live2/k1", DefaultParams())

	want := []string{
		"-hide_banner", "-nostdin", "-loglevel", "level+info",
		"-re", "-stream_loop", "-1", "-i", "/tmp/a.mp4",
		"-c:v", "libx264", "-preset", "veryfast",
		"-b:v", "6000k", "-maxrate", "6500k", "-bufsize", "12000k", "-g", "120",
		"-c:a", "aac", "-ac", "2", "-ar", "44100",
		"-threads", "4",
		"-f", "flv", "rtmp://a.rtmp.youtube.com/live2/k1",
	}
	if !slices.Equal(args, want) {
		t.Errorf("BuildArgs() =\n%v\nwant\n%v", args, want)
	}
}

func TestBuildArgsOmitsUnsetFields(t *testing.T) {
	p := EncodingParams{VideoCodec: "libx264", AudioCodec: "aac"}
	args := BuildArgs("in.mp4", "rtmp://host/live2/key", p)

	for _, flag := range []string{"-re", "-stream_loop", "-preset", "-b:v", "-maxrate", "-bufsize", "-g", "-ac", "-ar", "-threads"} {
		if slices.Contains(args, flag) {
			t.Errorf("expected %s to be omitted, got %v", flag, args)
		}
	}
	if args[len(args)-1] != "rtmp://host/live2/key" {
		t.Errorf("destination must be the last argument, got %v", args)
	}
}

func TestBuildCommandQuotesArguments(t *testing.T) {
	cmd := BuildCommand("ffmpeg", "/videos/my clip.mp4", "rtmp://host/live2/key", DefaultParams())

	if !strings.HasPrefix(cmd, "ffmpeg -hide_banner") {
		t.Errorf("unexpected command prefix: %s", cmd)
	}
	if !strings.Contains(cmd, "-i '/videos/my clip.mp4'") {
		t.Errorf("expected quoted input path, got %s", cmd)
	}
	if !strings.HasSuffix(cmd, "-f flv rtmp://host/live2/key") {
		t.Errorf("unexpected command suffix: %s", cmd)
	}
}

func TestQuote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "''"},
		{"plain", "plain"},
		{"two words", "'two words'"},
		{"it's", `'it'\''s'`},
		{"$HOME", "'$HOME'"},
	}
	for _, tt := range tests {
		if got := quote(tt.in); got != tt.want {
			t.Errorf("quote(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
