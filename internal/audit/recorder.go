package audit

import (
	"context"
	"time"

	"github.com/nerrad567/busmap-core/internal/record"
)

// Logger defines the logging interface used by the Recorder.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

const (
	// queueSize bounds the pending entries. Further events are dropped.
	queueSize     = 256
	insertTimeout = 2 * time.Second
)

// Recorder persists record write events. Its Observe method is registered
// with record.Database.OnWrite and never blocks the writer; Run stores the
// queued entries one at a time.
type Recorder struct {
	repo   Repository
	logger Logger
	queue  chan Entry
}

// NewRecorder creates a recorder that stores events in repo.
func NewRecorder(repo Repository) *Recorder {
	return &Recorder{
		repo:   repo,
		logger: noopLogger{},
		queue:  make(chan Entry, queueSize),
	}
}

// SetLogger sets the logger used for storage failures.
func (rc *Recorder) SetLogger(logger Logger) {
	rc.logger = logger
}

// Observe queues ev for storage. If the queue is full the event is dropped
// with a warning: the register write has already happened.
func (rc *Recorder) Observe(ev record.WriteEvent) {
	select {
	case rc.queue <- FromEvent(ev):
	default:
		rc.logger.Warn("audit queue full, dropping register write", "record", ev.Record)
	}
}

// Run stores queued entries until ctx is cancelled, then drains what is
// left before returning.
func (rc *Recorder) Run(ctx context.Context) {
	for {
		select {
		case e := <-rc.queue:
			rc.store(e)
		case <-ctx.Done():
			for {
				select {
				case e := <-rc.queue:
					rc.store(e)
				default:
					return
				}
			}
		}
	}
}

func (rc *Recorder) store(e Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
	defer cancel()

	if err := rc.repo.Create(ctx, &e); err != nil {
		rc.logger.Warn("storing register write", "record", e.Record, "error", err)
	}
}
