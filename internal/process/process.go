package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

// OutputHandler receives output lines from the subprocess.
// Implementations can collect output for tests, forward it elsewhere, etc.
type OutputHandler interface {
	HandleLine(source, line string)
}

// LogParser parses an output line and returns the log level and message.
// Used to extract structured log info from process output (ffmpeg, etc.)
type LogParser func(line string) (level slog.Level, msg string)

// waitDelay bounds how long Wait keeps copying output after the process
// exited while a descendant still holds the pipes open.
const waitDelay = 2 * time.Second

// Spec describes the subprocess to start.
type Spec struct {
	ID   string
	Path string
	Args []string

	// Logger receives lifecycle logs. Defaults to slog.Default().
	Logger *slog.Logger

	// OutputLogger receives process output lines (nil = use Logger).
	OutputLogger *slog.Logger

	// LogParser picks the level of each output line (nil = info).
	LogParser LogParser

	// OutputHandler receives every output line (optional).
	OutputHandler OutputHandler
}

// Process is the handle of one running subprocess.
type Process struct {
	id     string
	cmd    *exec.Cmd
	logger *slog.Logger
	output []*lineWriter

	done   chan struct{}
	status ExitStatus

	signalMu sync.Mutex
}

// Start resolves the executable, starts it in its own process group and
// begins reaping it in the background.
func Start(spec Spec) (*Process, error) {
	if spec.Path == "" {
		return nil, errors.New("empty command")
	}

	logger := spec.Logger
	if logger == nil {
		logger = slog.Default()
	}

	path, err := exec.LookPath(spec.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve executable %q: %w", spec.Path, err)
	}

	outputLogger := spec.OutputLogger
	if outputLogger == nil {
		outputLogger = logger
	}

	cmd := exec.Command(path, spec.Args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	stdout := newLineWriter("stdout", outputLogger, spec.LogParser, spec.OutputHandler)
	stderr := newLineWriter("stderr", outputLogger, spec.LogParser, spec.OutputHandler)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", spec.Path, err)
	}

	p := &Process{
		id:     spec.ID,
		cmd:    cmd,
		logger: logger,
		output: []*lineWriter{stdout, stderr},
		done:   make(chan struct{}),
	}

	logger.Info("Process started", "id", p.id, "pid", cmd.Process.Pid, "path", path)

	go p.reap()

	return p, nil
}

// reap waits for the process exactly once and publishes its exit status.
func (p *Process) reap() {
	err := p.cmd.Wait()
	for _, w := range p.output {
		w.Flush()
	}

	p.status = exitStatusFromError(err)
	p.logger.Info("Process exited", "id", p.id, "pid", p.cmd.Process.Pid, "status", p.status.String())
	close(p.done)
}

// exitStatusFromError converts the result of exec.Cmd.Wait into an ExitStatus.
func exitStatusFromError(err error) ExitStatus {
	if err == nil {
		return ExitStatus{}
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return signaledStatus(ws.Signal())
		}
		return ExitStatus{Code: exitErr.ExitCode()}
	}
	// The process exited cleanly but a descendant kept the output pipes open.
	if errors.Is(err, exec.ErrWaitDelay) {
		return ExitStatus{}
	}
	return ExitStatus{Code: 1, Err: err}
}

// ID returns the identifier given in Spec.
func (p *Process) ID() string {
	return p.id
}

// PID returns the operating system process id.
func (p *Process) PID() int {
	return p.cmd.Process.Pid
}

// Done is closed once the process has exited and been reaped.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the process has exited and returns its exit status.
// Safe to call repeatedly and concurrently.
func (p *Process) Wait() ExitStatus {
	<-p.done
	return p.status
}

// Exited reports whether the process has already been reaped.
func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// RequestTermination sends SIGINT to the process without waiting.
// A no-op once the process has exited.
func (p *Process) RequestTermination() error {
	p.signalMu.Lock()
	defer p.signalMu.Unlock()

	if p.Exited() {
		return nil
	}
	p.logger.Info("Sending SIGINT to process", "id", p.id, "pid", p.cmd.Process.Pid)
	if err := p.cmd.Process.Signal(syscall.SIGINT); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("send SIGINT: %w", err)
	}
	return nil
}

// Kill sends SIGKILL to the process group without waiting.
// A no-op once the process has exited.
func (p *Process) Kill() error {
	p.signalMu.Lock()
	defer p.signalMu.Unlock()

	if p.Exited() {
		return nil
	}
	pid := p.cmd.Process.Pid
	p.logger.Warn("Sending SIGKILL to process group", "id", p.id, "pid", pid)
	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil {
		// The group may already be gone; fall back to the leader alone.
		if killErr := p.cmd.Process.Kill(); killErr != nil && !errors.Is(killErr, os.ErrProcessDone) {
			return fmt.Errorf("send SIGKILL: %w", killErr)
		}
	}
	return nil
}

// lineWriter splits process output into lines and logs each one.
type lineWriter struct {
	source  string
	logger  *slog.Logger
	parser  LogParser
	handler OutputHandler

	mu  sync.Mutex
	buf bytes.Buffer
}

func newLineWriter(source string, logger *slog.Logger, parser LogParser, handler OutputHandler) *lineWriter {
	return &lineWriter{source: source, logger: logger, parser: parser, handler: handler}
}

// maxLineLength bounds a buffered line; longer output is emitted in chunks.
const maxLineLength = 64 * 1024

// Write implements io.Writer.
func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		data := w.buf.Bytes()
		idx := bytes.IndexAny(data, "\r\n")
		if idx == -1 {
			break
		}
		line := string(data[:idx])
		w.buf.Next(idx + 1)
		w.emit(line)
	}
	for w.buf.Len() >= maxLineLength {
		w.emit(string(w.buf.Next(maxLineLength)))
	}
	return len(p), nil
}

// Flush emits any trailing partial line.
func (w *lineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.buf.Len() > 0 {
		line := w.buf.String()
		w.buf.Reset()
		w.emit(line)
	}
}

func (w *lineWriter) emit(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	if w.handler != nil {
		w.handler.HandleLine(w.source, line)
	}

	level, msg := slog.LevelInfo, line
	if w.parser != nil {
		level, msg = w.parser(line)
	}
	w.logger.Log(context.Background(), level, msg, "source", w.source)
}
