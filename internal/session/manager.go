package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/smazurov/loopcast/internal/events"
	"github.com/smazurov/loopcast/internal/ffmpeg"
	"github.com/smazurov/loopcast/internal/logging"
	"github.com/smazurov/loopcast/internal/metrics"
	"github.com/smazurov/loopcast/internal/process"
)

// Defaults for ManagerOptions.
const (
	DefaultDestinationBase = "rtmp://a.rtmp.youtube.com/live2"
	DefaultGracePeriod     = 5 * time.Second
	DefaultKillTimeout     = 5 * time.Second
)

// stopSlack is added to the grace period and kill timeout when bounding how
// long Stop waits for the monitor.
const stopSlack = time.Second

// StartRequest holds the inputs of Manager.Start.
type StartRequest struct {
	Key         string
	VideoSource string
	Params      ffmpeg.EncodingParams
}

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	Launcher        Launcher
	DestinationBase string
	GracePeriod     time.Duration
	KillTimeout     time.Duration

	// EventBus receives state change and crash events (optional).
	EventBus *events.Bus
	Logger   *slog.Logger

	// OnStateChange is called after every transition (optional).
	OnStateChange func(info Info, from State)
	// OnUnexpectedExit is called when a transcoder dies without a stop
	// request (optional).
	OnUnexpectedExit func(info Info, err error)
}

// Manager owns the sessions of all stream keys.
type Manager struct {
	registry        *Registry
	launcher        Launcher
	destinationBase string
	gracePeriod     time.Duration
	killTimeout     time.Duration
	bus             *events.Bus
	logger          *slog.Logger
	onStateChange   func(Info, State)
	onUnexpected    func(Info, error)
}

// NewManager creates a session manager. opts.Launcher is required.
func NewManager(opts *ManagerOptions) *Manager {
	m := &Manager{
		registry:        NewRegistry(),
		launcher:        opts.Launcher,
		destinationBase: strings.TrimRight(opts.DestinationBase, "/"),
		gracePeriod:     opts.GracePeriod,
		killTimeout:     opts.KillTimeout,
		bus:             opts.EventBus,
		logger:          opts.Logger,
		onStateChange:   opts.OnStateChange,
		onUnexpected:    opts.OnUnexpectedExit,
	}
	if m.destinationBase == "" {
		m.destinationBase = DefaultDestinationBase
	}
	if m.gracePeriod <= 0 {
		m.gracePeriod = DefaultGracePeriod
	}
	if m.killTimeout <= 0 {
		m.killTimeout = DefaultKillTimeout
	}
	if m.logger == nil {
		m.logger = logging.GetLogger("session")
	}
	return m
}

// DestinationURL returns the RTMP URL a key streams to.
func (m *Manager) DestinationURL(key string) string {
	return DestinationURL(m.destinationBase, key)
}

// DestinationURL joins an RTMP base URL and a stream key. An empty base
// means DefaultDestinationBase.
func DestinationURL(base, key string) string {
	base = strings.TrimRight(base, "/")
	if base == "" {
		base = DefaultDestinationBase
	}
	return base + "/" + key
}

// Start launches a transcoder for req.Key. It fails with ErrCodeValidation,
// ErrCodeAlreadyRunning or ErrCodeLaunch.
func (m *Manager) Start(ctx context.Context, req StartRequest) (Info, error) {
	if err := validateStart(req); err != nil {
		metrics.RecordStart(metrics.StartResultInvalid)
		return Info{}, err
	}

	s := newSession(uuid.NewString(), req.Key, req.VideoSource, m.DestinationURL(req.Key), req.Params, time.Now())
	if !m.registry.TryInsert(s) {
		metrics.RecordStart(metrics.StartResultAlreadyRunning)
		return Info{}, alreadyRunningError(req.Key)
	}
	metrics.SessionAdded()
	m.notify(s.Info(), "")

	logger := m.logger.With("stream_key", s.key, "session_id", s.id)
	logger.Info("Starting stream", "source", s.source, "bitrate", s.params.Bitrate)

	h, err := m.launcher.Launch(ctx, LaunchRequest{
		SessionID:   s.id,
		StreamKey:   s.key,
		VideoSource: s.source,
		Destination: s.destination,
		Params:      s.params,
	})
	if err != nil {
		logger.Error("Failed to launch transcoder", "error", err)
		m.cleanup(s, nil, nil)
		metrics.RecordStart(metrics.StartResultLaunchFailed)
		return Info{}, launchError(req.Key, err)
	}

	if s.markRunning(h) {
		m.notify(s.Info(), StateStarting)
	}
	logger.Info("Stream started", "pid", h.PID())

	go m.monitor(s, h)

	metrics.RecordStart(metrics.StartResultSuccess)
	return s.Info(), nil
}

// Stop terminates the session of key and waits for its cleanup. It fails with
// ErrCodeNotRunning when there is nothing to stop and ErrCodeTermination when
// the transcoder survived SIGKILL. A cancelled ctx stops the wait only; the
// termination carries on.
func (m *Manager) Stop(ctx context.Context, key string) error {
	s, ok := m.registry.Get(key)
	if !ok {
		return notRunningError(key)
	}
	prev, ok := s.requestStop()
	if !ok {
		return notRunningError(key)
	}

	m.logger.Info("Stopping stream", "stream_key", key, "session_id", s.id)
	m.notify(s.Info(), prev)

	timeout := m.gracePeriod + m.killTimeout + stopSlack
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-s.done:
		return s.termErr
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return terminationError(key, fmt.Errorf("cleanup did not finish within %s", timeout))
	}
}

// StopAll stops every live session concurrently and returns the first
// failure. Sessions that finish on their own meanwhile are not an error.
func (m *Manager) StopAll(ctx context.Context) error {
	var g errgroup.Group
	for _, s := range m.registry.Snapshot() {
		if !s.State().Stoppable() {
			continue
		}
		key := s.key
		g.Go(func() error {
			if err := m.Stop(ctx, key); err != nil && !IsCode(err, ErrCodeNotRunning) {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// Get returns a snapshot of the session stored for key.
func (m *Manager) Get(key string) (Info, bool) {
	s, ok := m.registry.Get(key)
	if !ok {
		return Info{}, false
	}
	return s.Info(), true
}

// List returns snapshots of all sessions ordered by key.
func (m *Manager) List() []Info {
	sessions := m.registry.Snapshot()
	out := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Info())
	}
	return out
}

// monitor waits for either a stop request or the transcoder exiting on its
// own, then cleans the session up.
func (m *Manager) monitor(s *Session, h Handle) {
	logger := m.logger.With("stream_key", s.key, "session_id", s.id)

	var exit *process.ExitStatus
	var termErr error
	// unexpected is decided when the exit is seen: the transcoder died
	// before termination was requested, even if a Stop arrived meanwhile.
	unexpected := false

	select {
	case <-s.stopCh:
		select {
		case <-h.Done():
			status := h.Wait()
			exit = &status
			unexpected = true
		default:
			exit, termErr = m.terminate(logger, s, h)
		}
	case <-h.Done():
		status := h.Wait()
		exit = &status
		unexpected = true
	}

	info := m.cleanup(s, exit, termErr)

	switch {
	case termErr != nil:
		logger.Error("Transcoder did not exit", "error", termErr)
	case unexpected:
		m.reportUnexpectedExit(logger, info)
	default:
		logger.Info("Stream stopped", "status", exit.String())
	}
}

// terminate asks the transcoder to stop and escalates to SIGKILL after the
// grace period. Both waits are bounded.
func (m *Manager) terminate(logger *slog.Logger, s *Session, h Handle) (*process.ExitStatus, error) {
	if err := h.RequestTermination(); err != nil {
		logger.Warn("Failed to request termination", "error", err)
	}

	grace := time.NewTimer(m.gracePeriod)
	defer grace.Stop()
	select {
	case <-h.Done():
		status := h.Wait()
		return &status, nil
	case <-grace.C:
	}

	logger.Warn("Transcoder ignored SIGINT, killing", "grace_period", m.gracePeriod)
	metrics.RecordKillEscalation()
	if err := h.Kill(); err != nil {
		logger.Error("Failed to kill transcoder", "error", err)
	}

	kill := time.NewTimer(m.killTimeout)
	defer kill.Stop()
	select {
	case <-h.Done():
		status := h.Wait()
		return &status, nil
	case <-kill.C:
	}

	metrics.RecordTerminationFailure()
	return nil, terminationError(s.key, fmt.Errorf("pid %d still alive %s after SIGKILL", h.PID(), m.killTimeout))
}

// cleanup moves s to Stopped, drops it from the registry and releases
// waiting Stop callers.
func (m *Manager) cleanup(s *Session, exit *process.ExitStatus, termErr error) Info {
	prev := s.finish(exit, time.Now())
	m.registry.CompareAndRemove(s.key, s)

	info := s.Info()
	metrics.SessionRemoved(info.StoppedAt.Sub(info.StartedAt))

	s.termErr = termErr
	close(s.done)

	m.notify(info, prev)
	return info
}

func (m *Manager) reportUnexpectedExit(logger *slog.Logger, info Info) {
	status := process.ExitStatus{}
	if info.ExitStatus != nil {
		status = *info.ExitStatus
	}
	err := newError(ErrCodeUnexpectedExit, info.Key,
		fmt.Sprintf("Stream %s exited unexpectedly (%s)", info.Key, status.String()), status.Err)

	uptime := info.Uptime(time.Now())
	if status.Success() {
		logger.Warn("Transcoder exited without a stop request", "status", status.String(), "uptime", uptime)
	} else {
		logger.Error("Transcoder crashed", "status", status.String(), "uptime", uptime)
	}
	metrics.RecordUnexpectedExit()

	if m.bus != nil {
		m.bus.Publish(events.SessionCrashedEvent{
			SessionID: info.ID,
			StreamKey: info.Key,
			ExitCode:  status.Code,
			Signal:    status.Signal,
			Uptime:    uptime.Seconds(),
			Timestamp: time.Now().Format(time.RFC3339),
		})
	}
	if m.onUnexpected != nil {
		m.onUnexpected(info, err)
	}
}

// notify reports a transition from prev to info.State. An empty prev marks
// the creation of the session.
func (m *Manager) notify(info Info, prev State) {
	if m.bus != nil {
		m.bus.Publish(events.SessionStateChangedEvent{
			SessionID: info.ID,
			StreamKey: info.Key,
			OldState:  string(prev),
			NewState:  string(info.State),
			PID:       info.PID,
			Timestamp: time.Now().Format(time.RFC3339),
		})
	}
	if m.onStateChange != nil {
		m.onStateChange(info, prev)
	}
}

// validateStart checks the key, the source file and the encoding parameters
// without touching any state.
func validateStart(req StartRequest) error {
	if req.Key == "" {
		return validationError(req.Key, "Stream key is required", nil)
	}
	if strings.ContainsFunc(req.Key, func(r rune) bool { return unicode.IsSpace(r) || r == '/' }) {
		return validationError(req.Key, "Stream key must not contain whitespace or '/'", nil)
	}
	if req.VideoSource == "" {
		return validationError(req.Key, "Video path is required", nil)
	}
	if err := checkReadableFile(req.VideoSource); err != nil {
		return validationError(req.Key, fmt.Sprintf("Video file %s is not readable", req.VideoSource), err)
	}
	if err := req.Params.Validate(); err != nil {
		return validationError(req.Key, "Invalid encoding parameters", err)
	}
	return nil
}

// checkReadableFile reports an error unless path names a regular file the
// process can open.
func checkReadableFile(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !fi.Mode().IsRegular() {
		return errors.New("not a regular file")
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	return f.Close()
}
