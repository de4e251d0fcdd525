package scan

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/nerrad567/busmap-core/internal/record"
)

// Logger defines the logging interface used by the Scanner.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Update is emitted when a record's value or alarm changes.
type Update struct {
	Record    string       `json:"record"`
	Value     int64        `json:"value"`
	Raw       uint32       `json:"raw"`
	Alarm     record.Alarm `json:"alarm"`
	Timestamp time.Time    `json:"timestamp"`
}

// Sink receives updates. Implementations must not block for long; they are
// called from the scan goroutines.
type Sink interface {
	HandleUpdate(ctx context.Context, u Update)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, u Update)

// HandleUpdate calls f.
func (f SinkFunc) HandleUpdate(ctx context.Context, u Update) { f(ctx, u) }

type emitted struct {
	value int64
	alarm record.Alarm
}

// Scanner runs periodic record processing.
type Scanner struct {
	records []*record.Record

	sinkMu sync.RWMutex
	sinks  []Sink

	lastMu sync.Mutex
	last   map[string]emitted

	logger Logger
}

// New creates a scanner for records. Records with a zero scan period are
// never processed periodically but may still be reported with Report.
func New(records []*record.Record, sinks ...Sink) *Scanner {
	return &Scanner{
		records: records,
		sinks:   sinks,
		last:    make(map[string]emitted),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the scanner.
func (s *Scanner) SetLogger(logger Logger) {
	s.logger = logger
}

// AddSink adds a sink. It may be called while the scanner runs.
func (s *Scanner) AddSink(sink Sink) {
	s.sinkMu.Lock()
	s.sinks = append(s.sinks, sink)
	s.sinkMu.Unlock()
}

// Periods returns the distinct scan periods in ascending order.
func (s *Scanner) Periods() []time.Duration {
	var periods []time.Duration
	for p := range s.groups() {
		periods = append(periods, p)
	}
	slices.Sort(periods)
	return periods
}

func (s *Scanner) groups() map[time.Duration][]*record.Record {
	groups := make(map[time.Duration][]*record.Record)
	for _, rec := range s.records {
		if p := rec.Config().Scan; p > 0 {
			groups[p] = append(groups[p], rec)
		}
	}
	return groups
}

// Run processes records until ctx is cancelled. Each group is scanned once
// immediately, then on every tick of its period.
func (s *Scanner) Run(ctx context.Context) error {
	groups := s.groups()
	if len(groups) == 0 {
		s.logger.Info("no periodic records, scanner idle")
		<-ctx.Done()
		return nil
	}

	var wg sync.WaitGroup
	for period, recs := range groups {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.loop(ctx, period, recs)
		}()
	}

	s.logger.Info("scanner started", "groups", len(groups), "records", len(s.records))
	wg.Wait()
	s.logger.Info("scanner stopped")
	return nil
}

func (s *Scanner) loop(ctx context.Context, period time.Duration, recs []*record.Record) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	s.Scan(ctx, recs)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Scan(ctx, recs)
		}
	}
}

// Scan processes recs once and reports each.
func (s *Scanner) Scan(ctx context.Context, recs []*record.Record) {
	for _, rec := range recs {
		if ctx.Err() != nil {
			return
		}
		if !rec.IsBound() {
			continue
		}
		if err := rec.Process(); err != nil {
			s.logger.Debug("record processing failed", "record", rec.Name(), "error", err)
		}
		s.Report(ctx, rec)
	}
}

// ScanAll processes every periodic record once, regardless of period.
func (s *Scanner) ScanAll(ctx context.Context) {
	for _, recs := range s.groups() {
		s.Scan(ctx, recs)
	}
}

// Report emits rec's current state to the sinks if it changed since the
// last emission. It returns whether an update was emitted.
func (s *Scanner) Report(ctx context.Context, rec *record.Record) bool {
	st := rec.Snapshot()
	cur := emitted{value: st.Value, alarm: st.Alarm}

	s.lastMu.Lock()
	prev, seen := s.last[st.Name]
	if seen && prev == cur {
		s.lastMu.Unlock()
		return false
	}
	s.last[st.Name] = cur
	s.lastMu.Unlock()

	u := Update{
		Record:    st.Name,
		Value:     st.Value,
		Raw:       st.Raw,
		Alarm:     st.Alarm,
		Timestamp: st.UpdatedAt,
	}

	s.sinkMu.RLock()
	sinks := slices.Clone(s.sinks)
	s.sinkMu.RUnlock()

	for _, sink := range sinks {
		sink.HandleUpdate(ctx, u)
	}
	return true
}
