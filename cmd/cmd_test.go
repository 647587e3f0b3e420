package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string, mode os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(path, mode); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCommandCmd(t *testing.T) {
	dir := t.TempDir()
	configPath := writeFile(t, dir, "config.toml", "[encoding]\nbitrate = \"4500k\"\npreset = \"fast\"\n", 0o644)

	settings := &Settings{
		ConfigPath:  configPath,
		FFmpegPath:  "/usr/bin/ffmpeg",
		RTMPBaseURL: "rtmp://ingest.test/live2/",
	}

	command := CreateCommandCmd(settings)
	var out bytes.Buffer
	command.SetOut(&out)
	command.SetArgs([]string{"abcd-1234", "/srv/videos/my loop.mp4", "-g", "60", "--maxrate", "5000k"})
	if err := command.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	line := strings.TrimSpace(out.String())
	for _, want := range []string{
		"/usr/bin/ffmpeg ",
		"-i '/srv/videos/my loop.mp4'",
		"-preset fast",
		"-b:v 4500k",
		"-maxrate 5000k",
		"-g 60",
		"rtmp://ingest.test/live2/abcd-1234",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("command %q missing %q", line, want)
		}
	}
}

func TestCommandCmdRejectsInvalidParams(t *testing.T) {
	command := CreateCommandCmd(&Settings{})
	command.SetOut(&bytes.Buffer{})
	command.SetErr(&bytes.Buffer{})
	command.SetArgs([]string{"k", "/srv/a.mp4", "--bitrate", "fast"})
	if err := command.Execute(); err == nil {
		t.Fatal("expected invalid bitrate to fail")
	}
}

func TestRunChecks(t *testing.T) {
	dir := t.TempDir()
	fakeFFmpeg := writeFile(t, dir, "ffmpeg", "#!/bin/sh\necho 'ffmpeg version 6.1-test'\n", 0o755)
	video := writeFile(t, dir, "loop.mp4", "not really a video", 0o644)

	settings := &Settings{
		ConfigPath: filepath.Join(dir, "missing.toml"),
		FFmpegPath: fakeFFmpeg,
	}

	results := runChecks(context.Background(), settings, []string{video, filepath.Join(dir, "nope.mp4"), dir})
	if len(results) != 5 {
		t.Fatalf("got %d results", len(results))
	}

	tests := []struct {
		name    string
		wantErr bool
	}{
		{"ffmpeg", false},
		{"encoding", false},
		{"source", false},
		{"source", true},
		{"source", true},
	}
	for i, tt := range tests {
		r := results[i]
		if r.Name != tt.name || (r.Err != nil) != tt.wantErr {
			t.Errorf("result %d = %+v, want name %s err %v", i, r, tt.name, tt.wantErr)
		}
	}
	if !strings.Contains(results[0].Detail, "ffmpeg version 6.1-test") {
		t.Errorf("ffmpeg detail = %q", results[0].Detail)
	}
}

func TestCheckCmdFailsWithoutFFmpeg(t *testing.T) {
	settings := &Settings{
		ConfigPath: filepath.Join(t.TempDir(), "missing.toml"),
		FFmpegPath: "loopcast-test-no-such-binary",
	}

	command := CreateCheckCmd(settings)
	var out bytes.Buffer
	command.SetOut(&out)
	command.SetErr(&bytes.Buffer{})
	command.SetArgs(nil)

	err := command.Execute()
	if err == nil {
		t.Fatal("expected failure")
	}
	if !strings.Contains(out.String(), "FAIL  ffmpeg") {
		t.Errorf("output = %q", out.String())
	}
	if !strings.Contains(err.Error(), "1 of 2 checks failed") {
		t.Errorf("err = %v", err)
	}
}
