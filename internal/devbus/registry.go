package devbus

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/nerrad567/busmap-core/internal/mmio"
)

// Logger defines the logging interface used by the Registry.
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

// ShadowPolicy decides how custom access methods interact with built-in
// names.
type ShadowPolicy int

const (
	// CustomFirst looks custom methods up before built-ins, so a custom
	// method registered under a built-in name replaces it.
	CustomFirst ShadowPolicy = iota

	// BuiltinFirst looks built-ins up first; a custom method with a
	// built-in name is registered but never selected.
	BuiltinFirst

	// RejectShadowing refuses to register a custom method under a
	// built-in name.
	RejectShadowing
)

// ParseShadowPolicy converts a configuration string to a ShadowPolicy.
// Accepted values: "custom_first" (or empty), "builtin_first", "reject".
func ParseShadowPolicy(s string) (ShadowPolicy, error) {
	switch strings.ToLower(s) {
	case "", "custom_first":
		return CustomFirst, nil
	case "builtin_first":
		return BuiltinFirst, nil
	case "reject":
		return RejectShadowing, nil
	default:
		return CustomFirst, fmt.Errorf("devbus: unknown shadow policy %q", s)
	}
}

func (p ShadowPolicy) String() string {
	switch p {
	case BuiltinFirst:
		return "builtin_first"
	case RejectShadowing:
		return "reject"
	default:
		return "custom_first"
	}
}

// Options configures a Registry.
type Options struct {
	// Shadow selects how custom access methods relate to built-in names.
	Shadow ShadowPolicy

	// LockUnmaskedWrites makes unmasked writes take the device mutex too,
	// ordering them against masked read-modify-write updates. Without it
	// an unmasked write may land between the read and the write of a
	// concurrent masked update.
	LockUnmaskedWrites bool
}

// Device is a registered hardware base address.
//
// The embedded mutex protects read-modify-write sequences on any register of
// the device. Every party that mutates the device's registers must hold it
// (Device implements sync.Locker).
type Device struct {
	name string
	base mmio.Addr
	size int

	mu sync.Mutex
}

// Name returns the registered device name.
func (d *Device) Name() string { return d.name }

// Base returns the CPU-visible base address.
func (d *Device) Base() mmio.Addr { return d.base }

// Size returns the window size in bytes, or 0 when unchecked.
func (d *Device) Size() int { return d.size }

// Lock acquires the device mutex.
func (d *Device) Lock() { d.mu.Lock() }

// Unlock releases the device mutex.
func (d *Device) Unlock() { d.mu.Unlock() }

// contains reports whether width bytes at addr fit in the device window.
func (d *Device) contains(addr mmio.Addr, width Width) bool {
	if d.size == 0 {
		return true
	}
	if addr < d.base {
		return false
	}
	return uint64(addr-d.base)+uint64(width.Bytes()) <= uint64(d.size) //nolint:gosec // size is non-negative
}

// DeviceOption configures a device at registration.
type DeviceOption func(*Device)

// WithSize bounds the device window; links resolving outside it fail.
func WithSize(size int) DeviceOption {
	return func(d *Device) {
		if size > 0 {
			d.size = size
		}
	}
}

// Registry maps device names to base addresses and access method names to
// strategies.
//
// It is created once by the hosting application, filled during driver
// start-up and read by every link resolution afterwards. Entries are fully
// built before they are published, and are never removed.
//
// All public methods are thread-safe.
type Registry struct {
	opts Options

	mu         sync.RWMutex
	devices    map[string]*Device
	strategies map[string]Strategy

	logger Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options) *Registry {
	return &Registry{
		opts:       opts,
		devices:    make(map[string]*Device),
		strategies: make(map[string]Strategy),
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Options returns the registry configuration.
func (r *Registry) Options() Options {
	return r.opts
}

// validName rejects names that could not be written in a link descriptor.
func validName(name string) bool {
	return name != "" && !strings.ContainsAny(name, "+, \t\r\n")
}

// RegisterDevice registers base under name.
//
// It fails with ErrDeviceExists if name is taken; the existing registration
// is left untouched.
func (r *Registry) RegisterDevice(name string, base mmio.Addr, opts ...DeviceOption) (*Device, error) {
	if !validName(name) {
		return nil, fmt.Errorf("%w: device %q", ErrInvalidName, name)
	}
	if base == 0 {
		return nil, fmt.Errorf("%w: device %q", ErrInvalidAddress, name)
	}

	d := &Device{
		name: strings.Clone(name),
		base: base,
	}
	for _, opt := range opts {
		opt(d)
	}

	r.mu.Lock()
	if _, exists := r.devices[d.name]; exists {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrDeviceExists, name)
	}
	r.devices[d.name] = d
	r.mu.Unlock()

	r.logger.Info("bus device registered", "device", d.name, "base", d.base.String(), "size", d.size)
	return d, nil
}

// FindDevice looks a device up by exact, case-sensitive name.
func (r *Registry) FindDevice(name string) (*Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[name]
	return d, ok
}

// Devices returns all registered devices sorted by name.
func (r *Registry) Devices() []*Device {
	r.mu.RLock()
	devices := make([]*Device, 0, len(r.devices))
	for _, d := range r.devices {
		devices = append(devices, d)
	}
	r.mu.RUnlock()

	slices.SortFunc(devices, func(a, b *Device) int {
		return strings.Compare(a.name, b.name)
	})
	return devices
}

// RegisterStrategy adds a custom access method.
func (r *Registry) RegisterStrategy(name string, s Strategy) error {
	if !validName(name) {
		return fmt.Errorf("%w: access method %q", ErrInvalidName, name)
	}
	if s == nil {
		return fmt.Errorf("%w: access method %q has no implementation", ErrInvalidName, name)
	}
	if IsBuiltin(name) && r.opts.Shadow == RejectShadowing {
		return fmt.Errorf("%w: %q", ErrStrategyShadowsBuiltin, name)
	}

	key := strings.Clone(name)

	r.mu.Lock()
	if _, exists := r.strategies[key]; exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrStrategyExists, name)
	}
	r.strategies[key] = s
	r.mu.Unlock()

	if IsBuiltin(name) {
		r.logger.Warn("custom access method uses built-in name",
			"method", name,
			"policy", r.opts.Shadow.String(),
		)
	} else {
		r.logger.Info("access method registered", "method", name)
	}
	return nil
}

// LookupStrategy finds the strategy for an access method name, applying the
// registry's shadow policy.
func (r *Registry) LookupStrategy(name string) (Strategy, bool) {
	if r.opts.Shadow == BuiltinFirst {
		if s, ok := Builtin(name); ok {
			return s, true
		}
	}

	r.mu.RLock()
	s, ok := r.strategies[name]
	r.mu.RUnlock()
	if ok {
		return s, true
	}

	return Builtin(name)
}

// Strategies describes every selectable access method, sorted by name.
// A name shadowed under the current policy is listed once, as resolved.
func (r *Registry) Strategies() []StrategyInfo {
	r.mu.RLock()
	names := make(map[string]struct{}, len(r.strategies)+len(builtins))
	for name := range r.strategies {
		names[name] = struct{}{}
	}
	r.mu.RUnlock()
	for name := range builtins {
		names[name] = struct{}{}
	}

	infos := make([]StrategyInfo, 0, len(names))
	for name := range names {
		s, ok := r.LookupStrategy(name)
		if !ok {
			continue
		}
		_, isBuiltin := s.(builtin)
		infos = append(infos, describe(name, s, isBuiltin))
	}

	slices.SortFunc(infos, func(a, b StrategyInfo) int {
		return strings.Compare(a.Name, b.Name)
	})
	return infos
}
