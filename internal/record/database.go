package record

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/nerrad567/busmap-core/internal/devbus"
)

// Logger defines the logging interface used by the Database.
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

// WriteObserver is called after every attempted write to an output record,
// successful or not.
type WriteObserver func(WriteEvent)

// Database holds the configured records by name.
//
// All public methods are thread-safe.
type Database struct {
	mu      sync.RWMutex
	records map[string]*Record

	obsMu     sync.RWMutex
	observers []WriteObserver

	logger Logger
}

// NewDatabase creates an empty record database.
func NewDatabase() *Database {
	return &Database{
		records: make(map[string]*Record),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the database.
func (d *Database) SetLogger(logger Logger) {
	d.logger = logger
}

// OnWrite registers an observer for output writes.
func (d *Database) OnWrite(fn WriteObserver) {
	d.obsMu.Lock()
	d.observers = append(d.observers, fn)
	d.obsMu.Unlock()
}

func (d *Database) notify(ev WriteEvent) {
	d.obsMu.RLock()
	observers := slices.Clone(d.observers)
	d.obsMu.RUnlock()

	for _, fn := range observers {
		fn(ev)
	}
}

// Add creates a record from cfg and adds it to the database.
func (d *Database) Add(cfg Config) (*Record, error) {
	rec, err := New(cfg)
	if err != nil {
		return nil, err
	}
	rec.notify = d.notify

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.records[cfg.Name]; exists {
		return nil, fmt.Errorf("%w: %q", ErrRecordExists, cfg.Name)
	}
	d.records[cfg.Name] = rec
	return rec, nil
}

// Get looks a record up by name.
func (d *Database) Get(name string) (*Record, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rec, ok := d.records[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrRecordNotFound, name)
	}
	return rec, nil
}

// List returns all records sorted by name.
func (d *Database) List() []*Record {
	d.mu.RLock()
	records := make([]*Record, 0, len(d.records))
	for _, rec := range d.records {
		records = append(records, rec)
	}
	d.mu.RUnlock()

	slices.SortFunc(records, func(a, b *Record) int {
		return strings.Compare(a.Name(), b.Name())
	})
	return records
}

// Len returns the number of records.
func (d *Database) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.records)
}

// BindAll binds every record against reg and processes PINI records once.
//
// A record that fails to bind is logged and left unbound; the others are
// still bound. The returned error joins every failure.
func (d *Database) BindAll(reg *devbus.Registry) error {
	var errs []error
	bound := 0

	for _, rec := range d.List() {
		if err := rec.Bind(reg); err != nil {
			d.logger.Error("record bind failed", "record", rec.Name(), "error", err)
			errs = append(errs, err)
			if !rec.IsBound() {
				continue
			}
		}
		bound++

		if rec.cfg.PINI {
			if err := rec.Process(); err != nil {
				d.logger.Warn("record initial processing failed", "record", rec.Name(), "error", err)
				errs = append(errs, err)
			}
		}
	}

	d.logger.Info("records bound", "bound", bound, "total", d.Len())
	return errors.Join(errs...)
}

// Write writes value to the named output record.
func (d *Database) Write(name string, value int64, source string) (*Record, error) {
	rec, err := d.Get(name)
	if err != nil {
		return nil, err
	}
	return rec, rec.Write(value, source)
}
