// Package collectors turns transcoder output into metrics.
package collectors

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/smazurov/loopcast/internal/metrics"
)

// statPattern matches the key=value pairs of an ffmpeg stats line. ffmpeg pads
// values with spaces after the equals sign ("fps= 25").
var statPattern = regexp.MustCompile(`(\w+)=\s*(\S+)`)

// FFmpegCollector reads ffmpeg's periodic stats lines from its output and
// publishes them as per-stream metrics.
type FFmpegCollector struct {
	logger    *slog.Logger
	streamKey string
	stopOnce  sync.Once

	mu      sync.Mutex
	stopped bool
}

// NewFFmpegCollector creates a new FFmpeg collector.
func NewFFmpegCollector(streamKey string) *FFmpegCollector {
	return &FFmpegCollector{
		logger:    slog.With("component", "ffmpeg_collector", "stream_key", streamKey),
		streamKey: streamKey,
	}
}

// HandleLine implements process.OutputHandler.
func (f *FFmpegCollector) HandleLine(_, line string) {
	stats, ok := ParseStats(line)
	if !ok {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopped {
		return
	}
	f.sendProgressMetrics(stats)
}

// Stop removes the stream's metrics. Lines arriving afterwards are ignored.
func (f *FFmpegCollector) Stop() error {
	f.stopOnce.Do(func() {
		f.mu.Lock()
		f.stopped = true
		f.mu.Unlock()
		metrics.DeleteFFmpegMetrics(f.streamKey)
		f.logger.Debug("Collector stopped")
	})
	return nil
}

// ParseStats extracts the key=value pairs of an ffmpeg stats line such as
// "frame=  250 fps= 25 q=28.0 size= 1024KiB time=00:00:10.00 bitrate= 838.9kbits/s speed=1.00x".
// Reports false for any other output.
func ParseStats(line string) (map[string]string, bool) {
	if !strings.HasPrefix(strings.TrimSpace(line), "frame=") {
		return nil, false
	}
	stats := make(map[string]string)
	for _, m := range statPattern.FindAllStringSubmatch(line, -1) {
		stats[m[1]] = m[2]
	}
	return stats, len(stats) > 0
}

func (f *FFmpegCollector) sendProgressMetrics(data map[string]string) {
	if fps, err := strconv.ParseFloat(data["fps"], 64); err == nil {
		metrics.SetFFmpegFPS(f.streamKey, fps)
	}
	bitrateStr := strings.TrimSuffix(data["bitrate"], "kbits/s")
	if bitrate, err := strconv.ParseFloat(bitrateStr, 64); err == nil {
		metrics.SetFFmpegBitrate(f.streamKey, bitrate)
	}
	if dropped, err := strconv.ParseFloat(data["drop"], 64); err == nil {
		metrics.SetFFmpegDroppedFrames(f.streamKey, dropped)
	}
	if dup, err := strconv.ParseFloat(data["dup"], 64); err == nil {
		metrics.SetFFmpegDuplicateFrames(f.streamKey, dup)
	}
	speedStr := strings.TrimSuffix(data["speed"], "x")
	if speed, err := strconv.ParseFloat(speedStr, 64); err == nil {
		metrics.SetFFmpegSpeed(f.streamKey, speed)
	}
}
