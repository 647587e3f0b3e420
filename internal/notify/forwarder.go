package notify

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/smazurov/loopcast/internal/events"
)

const (
	defaultBuffer      = 256
	defaultSendTimeout = 5 * time.Second
)

// Forwarder subscribes to the event bus and fans every session event out to
// its sinks. Delivery failures are logged and never block the bus.
type Forwarder struct {
	bus         *events.Bus
	sinks       []Sink
	logger      *slog.Logger
	buffer      int
	sendTimeout time.Duration
}

// NewForwarder creates a forwarder for the given sinks.
func NewForwarder(bus *events.Bus, logger *slog.Logger, sinks ...Sink) *Forwarder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Forwarder{
		bus:         bus,
		sinks:       sinks,
		logger:      logger,
		buffer:      defaultBuffer,
		sendTimeout: defaultSendTimeout,
	}
}

// Run forwards events until ctx is cancelled, then closes the sinks.
func (f *Forwarder) Run(ctx context.Context) error {
	ch := make(chan any, f.buffer)
	unsubscribe := events.SubscribeAll(f.bus, ch)
	defer unsubscribe()
	defer f.closeSinks()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-ch:
			f.forward(ctx, ev)
		}
	}
}

func (f *Forwarder) forward(ctx context.Context, ev any) {
	n, ok, err := FromEvent(ev)
	if err != nil {
		f.logger.Warn("Failed to encode event", "event", events.Name(ev), "error", err)
		return
	}
	if !ok {
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, f.sendTimeout)
	defer cancel()

	var g errgroup.Group
	for _, sink := range f.sinks {
		g.Go(func() error {
			if err := sink.Send(sendCtx, n); err != nil {
				f.logger.Warn("Failed to deliver notification", "type", n.Type, "stream_key", n.StreamKey, "error", err)
				return err
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (f *Forwarder) closeSinks() {
	for _, sink := range f.sinks {
		if err := sink.Close(); err != nil {
			f.logger.Warn("Failed to close sink", "error", err)
		}
	}
}
