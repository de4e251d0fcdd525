package devbus

import (
	"errors"
	"fmt"
	"math"
)

// ResolveLink parses descriptor and resolves it for consumer.
//
// It either returns a fully populated Access or a *FieldError naming the
// consumer, the offending field and the descriptor.
func (r *Registry) ResolveLink(descriptor, consumer string) (*Access, error) {
	l, err := ParseLink(descriptor)
	if err != nil {
		var fe *FieldError
		if errors.As(err, &fe) {
			fe.Consumer = consumer
		}
		return nil, err
	}
	return r.Resolve(l, consumer)
}

// Resolve binds a parsed link for consumer.
//
// The final register address is
//
//	device base + (Instance << Shift) + Offset
//
// Built-in strategies require the address to be aligned to the access
// width. A constant link resolves to an Access that is not register backed.
// Resolving the same link twice yields two independent Access values that
// share the device and strategy.
func (r *Registry) Resolve(l Link, consumer string) (*Access, error) {
	a := &Access{
		consumer:     consumer,
		link:         l,
		lockUnmasked: r.opts.LockUnmaskedWrites,
	}

	if l.Kind == ConstantLink {
		a.constant = l.Constant
		return a, nil
	}

	dev, ok := r.FindDevice(l.Device)
	if !ok {
		return nil, badField(consumer, FieldDevice, l.Descriptor,
			fmt.Errorf("%w: %q", ErrDeviceNotFound, l.Device))
	}

	channel, err := l.Channel()
	if err != nil {
		return nil, badField(consumer, FieldLink, l.Descriptor, err)
	}
	if channel > math.MaxInt64 {
		return nil, badField(consumer, FieldLink, l.Descriptor,
			fmt.Errorf("%w: channel offset %#x too large", ErrInvalidLink, channel))
	}

	method := l.Method
	if method == "" {
		method = DefaultStrategy
	}
	s, ok := r.LookupStrategy(method)
	if !ok {
		return nil, badField(consumer, FieldAccess, l.Descriptor,
			fmt.Errorf("%w: %q", ErrUnknownStrategy, method))
	}

	addr := dev.Base().Add(int64(channel)).Add(l.Offset) //nolint:gosec // bounded above
	if !dev.contains(addr, strategyWidth(s)) {
		return nil, badField(consumer, FieldOffset, l.Descriptor,
			fmt.Errorf("%w: %v not inside %q (%d bytes)", ErrOffsetOutOfRange, addr, dev.Name(), dev.Size()))
	}
	if b, ok := s.(builtin); ok {
		if n := b.width.Bytes(); uintptr(addr)%uintptr(n) != 0 {
			return nil, badField(consumer, FieldOffset, l.Descriptor,
				fmt.Errorf("%w: %v not aligned to %d bytes", ErrInvalidOffset, addr, n))
		}
	}

	a.device = dev
	a.strategy = s
	a.addr = addr

	if p, ok := s.(Preparer); ok {
		priv, err := p.Prepare(a)
		if err != nil {
			return nil, badField(consumer, FieldAccess, l.Descriptor, err)
		}
		a.private = priv
	}

	r.logger.Debug("link resolved",
		"consumer", consumer,
		"device", dev.Name(),
		"address", addr.String(),
		"method", method,
	)
	return a, nil
}
