// Package supervisor owns the shared shutdown flag. It is the only
// writer of that field: every stop request, whether from a signal, the
// operator API or the tracking loop ending, is funneled through it.
package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/teslashibe/go-lockon/internal/log"
	"github.com/teslashibe/go-lockon/pkg/state"
)

// DefaultInterval is how often the published flag is polled.
const DefaultInterval = 100 * time.Millisecond

// Stop reasons reported by Run.
const (
	ReasonSignal         = "signal"
	ReasonTrackerStopped = "tracker stopped"
	ReasonFlag           = "shutdown flag"
	ReasonRequest        = "request"
)

// Supervisor raises shutdown when any stop condition is met.
type Supervisor struct {
	publisher *state.Publisher
	interval  time.Duration
	logger    *slog.Logger
	requests  chan string
}

// New creates a supervisor. A non-positive interval uses DefaultInterval.
func New(publisher *state.Publisher, interval time.Duration) *Supervisor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Supervisor{
		publisher: publisher,
		interval:  interval,
		logger:    log.Component("supervisor"),
		requests:  make(chan string, 1),
	}
}

// Request asks the supervisor to shut down. It never blocks; repeated
// requests collapse into one.
func (s *Supervisor) Request(reason string) {
	select {
	case s.requests <- reason:
	default:
	}
}

// Run blocks until ctx is cancelled, a request arrives, trackerDone is
// closed or the shutdown flag is seen on a poll. It then raises shutdown
// and returns the reason.
func (s *Supervisor) Run(ctx context.Context, trackerDone <-chan struct{}) string {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	reason := s.wait(ctx, trackerDone, ticker.C)
	s.publisher.RequestShutdown()
	s.logger.Info("shutdown raised", "reason", reason)
	return reason
}

func (s *Supervisor) wait(ctx context.Context, trackerDone <-chan struct{}, tick <-chan time.Time) string {
	for {
		select {
		case <-ctx.Done():
			return ReasonSignal
		case <-trackerDone:
			return ReasonTrackerStopped
		case r := <-s.requests:
			if r == "" {
				r = ReasonRequest
			}
			return r
		case <-tick:
			if s.publisher.ShutdownRequested() {
				return ReasonFlag
			}
		}
	}
}
