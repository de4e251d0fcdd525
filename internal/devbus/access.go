package devbus

import (
	"fmt"

	"github.com/nerrad567/busmap-core/internal/mmio"
)

// Access is the resolved, per-consumer view of one register.
//
// It is created by Registry.Resolve and never changes afterwards. The device
// and strategy it references are shared and outlive it.
type Access struct {
	consumer string
	link     Link

	device   *Device
	strategy Strategy
	addr     mmio.Addr
	private  any

	constant     int64
	lockUnmasked bool
}

// Consumer returns the name of the consumer the access was resolved for.
func (a *Access) Consumer() string { return a.consumer }

// Link returns the parsed link the access was resolved from.
func (a *Access) Link() Link { return a.link }

// Device returns the device, or nil for a constant link.
func (a *Access) Device() *Device { return a.device }

// Strategy returns the access method, or nil for a constant link.
func (a *Access) Strategy() Strategy { return a.strategy }

// Address returns the final register address.
func (a *Access) Address() mmio.Addr { return a.addr }

// Private returns the data produced by a Preparer strategy, if any.
func (a *Access) Private() any { return a.private }

// IsConstant reports whether the link is a constant rather than a register.
func (a *Access) IsConstant() bool { return a.strategy == nil }

// Constant returns the value of a constant link.
func (a *Access) Constant() int64 { return a.constant }

// Read reads the register.
//
// Reads take no lock: a single bus-width load is atomic in hardware.
func (a *Access) Read() (uint32, error) {
	if a.IsConstant() {
		return 0, ErrConstantLink
	}
	return a.strategy.Read(a)
}

// Write stores value into the register.
//
// With a non-zero mask the update is a read-modify-write under the device
// mutex: only the bits set in mask change,
//
//	new = (old &^ mask) | (value & mask)
//
// If the read fails the register is left untouched and the read error is
// returned. With mask zero the value is written as is; the device mutex is
// held only if the registry was built with LockUnmaskedWrites.
func (a *Access) Write(value, mask uint32) error {
	if a.IsConstant() {
		return ErrConstantLink
	}

	if mask == 0 {
		if a.lockUnmasked {
			a.device.Lock()
			defer a.device.Unlock()
		}
		return a.strategy.Write(a, value)
	}

	a.device.Lock()
	defer a.device.Unlock()

	old, err := a.strategy.Read(a)
	if err != nil {
		return fmt.Errorf("reading %s for masked write: %w", a.addr, err)
	}

	return a.strategy.Write(a, (old&^mask)|(value&mask))
}
