package session

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smazurov/loopcast/internal/process"
)

// fakeHandle is a transcoder that exits only when told to.
type fakeHandle struct {
	pid          int
	ignoreSIGINT bool
	ignoreKill   bool

	done   chan struct{}
	once   sync.Once
	status process.ExitStatus

	terminations atomic.Int32
	kills        atomic.Int32
}

func newFakeHandle(pid int) *fakeHandle {
	return &fakeHandle{pid: pid, done: make(chan struct{})}
}

func (h *fakeHandle) exit(status process.ExitStatus) {
	h.once.Do(func() {
		h.status = status
		close(h.done)
	})
}

func (h *fakeHandle) PID() int { return h.pid }

func (h *fakeHandle) RequestTermination() error {
	h.terminations.Add(1)
	if !h.ignoreSIGINT {
		go h.exit(process.ExitStatus{Code: 255})
	}
	return nil
}

func (h *fakeHandle) Kill() error {
	h.kills.Add(1)
	if !h.ignoreKill {
		h.exit(process.ExitStatus{Code: 137, Signal: "killed"})
	}
	return nil
}

func (h *fakeHandle) Done() <-chan struct{} { return h.done }

func (h *fakeHandle) Wait() process.ExitStatus {
	<-h.done
	return h.status
}

// fakeLauncher hands out fakeHandles and records requests.
type fakeLauncher struct {
	err error
	// gate, when set, blocks Launch until closed.
	gate chan struct{}
	// configure adjusts each new handle.
	configure func(*fakeHandle)

	calls atomic.Int32

	mu       sync.Mutex
	requests []LaunchRequest
	handles  []*fakeHandle
}

func (l *fakeLauncher) Launch(_ context.Context, req LaunchRequest) (Handle, error) {
	n := l.calls.Add(1)
	if l.gate != nil {
		<-l.gate
	}
	if l.err != nil {
		return nil, l.err
	}

	h := newFakeHandle(1000 + int(n))
	if l.configure != nil {
		l.configure(h)
	}

	l.mu.Lock()
	l.requests = append(l.requests, req)
	l.handles = append(l.handles, h)
	l.mu.Unlock()
	return h, nil
}

func (l *fakeLauncher) handle(i int) *fakeHandle {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.handles[i]
}

func (l *fakeLauncher) request(i int) LaunchRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.requests[i]
}

// videoFile creates a readable source file and returns its path.
func videoFile(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("not really a video"), 0o644); err != nil {
		t.Fatalf("write video file: %v", err)
	}
	return path
}

// waitFor polls cond until it holds or the timeout expires.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func processExit(code int) process.ExitStatus {
	return process.ExitStatus{Code: code}
}
