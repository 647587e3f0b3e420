package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/smazurov/loopcast/internal/ffmpeg"
	"github.com/smazurov/loopcast/internal/logging"
	"github.com/smazurov/loopcast/internal/metrics/collectors"
	"github.com/smazurov/loopcast/internal/process"
)

// Handle controls one launched transcoder.
type Handle interface {
	PID() int
	// RequestTermination asks the process to stop gracefully and returns at once.
	RequestTermination() error
	// Kill forcefully terminates the process and returns at once.
	Kill() error
	// Done is closed once the process has exited.
	Done() <-chan struct{}
	// Wait blocks until exit. Safe to call repeatedly.
	Wait() process.ExitStatus
}

// LaunchRequest describes the transcoder to start for a session.
type LaunchRequest struct {
	SessionID   string
	StreamKey   string
	VideoSource string
	Destination string
	Params      ffmpeg.EncodingParams
}

// Launcher starts transcoders.
type Launcher interface {
	Launch(ctx context.Context, req LaunchRequest) (Handle, error)
}

// ProcessLauncher launches ffmpeg as a child process.
type ProcessLauncher struct {
	// Binary is the ffmpeg executable name or path. Empty means ffmpeg.Base().
	Binary string
	Logger *slog.Logger
}

// Launch implements Launcher.
func (l *ProcessLauncher) Launch(ctx context.Context, req LaunchRequest) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkReadableFile(req.VideoSource); err != nil {
		return nil, err
	}

	binary := l.Binary
	if binary == "" {
		binary = ffmpeg.Base()
	}
	logger := l.Logger
	if logger == nil {
		logger = logging.GetLogger("process")
	}

	collector := collectors.NewFFmpegCollector(req.StreamKey)
	proc, err := process.Start(process.Spec{
		ID:            req.SessionID,
		Path:          binary,
		Args:          ffmpeg.BuildArgs(req.VideoSource, req.Destination, req.Params),
		Logger:        logger.With("stream_key", req.StreamKey),
		OutputLogger:  logging.GetLogger("ffmpeg").With("stream_key", req.StreamKey, "session_id", req.SessionID),
		LogParser:     ffmpeg.ParseLogLevel,
		OutputHandler: collector,
	})
	if err != nil {
		collector.Stop()
		return nil, fmt.Errorf("launch ffmpeg: %w", err)
	}

	go func() {
		<-proc.Done()
		collector.Stop()
	}()

	return proc, nil
}
