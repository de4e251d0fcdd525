package record

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/busmap-core/internal/devbus"
)

// Record is one input or output point bound to a device register.
//
// All methods are safe for concurrent use. The record mutex is held across
// the record's own register access so that process and write do not
// interleave; it is never held while another record is touched.
type Record struct {
	cfg Config
	id  string

	mu      sync.Mutex
	access  *devbus.Access
	raw     uint32
	value   int64
	alarm   Alarm
	updated time.Time

	notify func(WriteEvent)
	now    func() time.Time
}

// New creates an unbound record from cfg.
func New(cfg Config) (*Record, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Record{
		cfg:   cfg,
		id:    uuid.NewString(),
		alarm: Alarm{Severity: SeverityInvalid, Status: StatusUDF},
		now:   time.Now,
	}, nil
}

// Name returns the record name.
func (r *Record) Name() string { return r.cfg.Name }

// ID returns the record's unique identifier.
func (r *Record) ID() string { return r.id }

// Config returns the record configuration.
func (r *Record) Config() Config { return r.cfg }

// Bind resolves the record's link against reg.
//
// On failure the record stays unbound with an INVALID/LINK alarm and the
// *devbus.FieldError is returned. An output record without PINI then reads
// its register once and adopts the masked value; a failed read leaves the
// record bound with an INVALID/READ alarm and returns the error.
func (r *Record) Bind(reg *devbus.Registry) error {
	l, err := devbus.ParseLink(r.cfg.Link)
	if err == nil {
		if l.Kind == devbus.RegisterLink && l.Instance == 0 && l.Shift == 0 {
			l.Instance = r.cfg.Instance
			l.Shift = r.cfg.Shift
		}
		var a *devbus.Access
		a, err = reg.Resolve(l, r.cfg.Name)
		if err == nil {
			return r.bound(a)
		}
	}

	var fe *devbus.FieldError
	if errors.As(err, &fe) {
		fe.Consumer = r.cfg.Name
	}

	r.mu.Lock()
	r.access = nil
	r.alarm = Alarm{Severity: SeverityInvalid, Status: StatusLink}
	r.updated = r.now()
	r.mu.Unlock()
	return err
}

func (r *Record) bound(a *devbus.Access) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.access = a

	if a.IsConstant() {
		r.setRaw(uint32(a.Constant())) //nolint:gosec // constants are register sized
		r.alarm = NoAlarm
		r.updated = r.now()
		return nil
	}

	if r.cfg.Kind != KindOutput || r.cfg.PINI {
		return nil
	}

	v, err := a.Read()
	r.updated = r.now()
	if err != nil {
		r.alarm = Alarm{Severity: SeverityInvalid, Status: StatusRead}
		return fmt.Errorf("%w: %s: initial read: %w", ErrReadFailed, r.cfg.Name, err)
	}
	r.setRaw(v)
	r.alarm = NoAlarm
	return nil
}

// IsBound reports whether the record's link has been resolved.
func (r *Record) IsBound() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.access != nil
}

// setRaw applies the mask and signedness to v. Caller holds r.mu.
func (r *Record) setRaw(v uint32) {
	if r.cfg.Mask != 0 {
		v &= r.cfg.Mask
	}
	r.raw = v
	if r.cfg.Signed {
		r.value = int64(int32(v)) //nolint:gosec // two's complement reinterpretation
	} else {
		r.value = int64(v)
	}
}

// Process runs one processing cycle.
//
// An input record reads its register. An output record writes its current
// value again. Constant links only refresh the timestamp.
func (r *Record) Process() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.access == nil {
		return fmt.Errorf("%w: %s", ErrNotBound, r.cfg.Name)
	}
	r.updated = r.now()
	if r.access.IsConstant() {
		return nil
	}

	if r.cfg.Kind == KindOutput {
		if err := r.access.Write(r.raw, r.cfg.Mask); err != nil {
			r.alarm = Alarm{Severity: SeverityInvalid, Status: StatusWrite}
			return fmt.Errorf("%w: %s: %w", ErrWriteFailed, r.cfg.Name, err)
		}
		r.alarm = NoAlarm
		return nil
	}

	v, err := r.access.Read()
	if err != nil {
		r.alarm = Alarm{Severity: SeverityInvalid, Status: StatusRead}
		return fmt.Errorf("%w: %s: %w", ErrReadFailed, r.cfg.Name, err)
	}
	r.setRaw(v)
	r.alarm = NoAlarm
	return nil
}

// Write sets an output record's value and writes it to the register.
//
// With a mask configured only the masked bits of the register change.
// Writing through a constant link stores the value without any I/O.
// source names the writer for the write observers.
func (r *Record) Write(value int64, source string) error {
	if r.cfg.Kind != KindOutput {
		return fmt.Errorf("%w: %s", ErrNotOutput, r.cfg.Name)
	}

	ev, err := r.write(value, source)
	if r.notify != nil && ev != nil {
		r.notify(*ev)
	}
	return err
}

func (r *Record) write(value int64, source string) (*WriteEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.access == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotBound, r.cfg.Name)
	}

	ev := &WriteEvent{
		Record: r.cfg.Name,
		Value:  value,
		Mask:   r.cfg.Mask,
		Source: source,
		Time:   r.now(),
	}
	r.updated = ev.Time

	if r.access.IsConstant() {
		r.value = value
		r.raw = uint32(value) //nolint:gosec // truncated to register width
		return ev, nil
	}

	ev.Address = r.access.Address().String()
	if err := r.access.Write(uint32(value), r.cfg.Mask); err != nil { //nolint:gosec // truncated to register width
		r.alarm = Alarm{Severity: SeverityInvalid, Status: StatusWrite}
		ev.Err = err
		return ev, fmt.Errorf("%w: %s: %w", ErrWriteFailed, r.cfg.Name, err)
	}

	r.setRaw(uint32(value)) //nolint:gosec // truncated to register width
	r.alarm = NoAlarm
	return ev, nil
}

// Value returns the current value and alarm.
func (r *Record) Value() (int64, Alarm) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.value, r.alarm
}

// Snapshot returns a copy of the record state.
func (r *Record) Snapshot() State {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := State{
		Name:        r.cfg.Name,
		ID:          r.id,
		Description: r.cfg.Description,
		Kind:        r.cfg.Kind,
		Link:        r.cfg.Link,
		Mask:        r.cfg.Mask,
		Bound:       r.access != nil,
		Value:       r.value,
		Raw:         r.raw,
		Alarm:       r.alarm,
		UpdatedAt:   r.updated,
	}
	if r.cfg.Scan > 0 {
		s.Scan = r.cfg.Scan.String()
	}
	if r.access != nil && !r.access.IsConstant() {
		s.Device = r.access.Device().Name()
		s.Address = r.access.Address().String()
		s.Method = r.access.Link().Method
		if s.Method == "" {
			s.Method = devbus.DefaultStrategy
		}
	}
	return s
}
