package mmio

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"sync/atomic"
	"unsafe"
)

// Addr is a CPU-visible register address.
//
// It is only ever dereferenced by the accessors in this file. Addr values
// must point into memory that is not managed by the Go heap (a Region).
type Addr uintptr

// hostBigEndian reports the byte order of the running CPU.
var hostBigEndian = binary.NativeEndian.Uint16([]byte{0x12, 0x34}) == 0x1234

// fence is the operand of barrier.
var fence uint32

// barrier is a full memory barrier. Atomic read-modify-write operations are
// sequentially consistent and compile to fenced instructions on every
// supported architecture.
func barrier() {
	atomic.AddUint32(&fence, 0)
}

// Add returns a + offset. Offset may be negative.
func (a Addr) Add(offset int64) Addr {
	return Addr(uintptr(int64(a) + offset))
}

// String formats the address as 0x-prefixed hex.
func (a Addr) String() string {
	return fmt.Sprintf("%#x", uintptr(a))
}

// The 8 and 16-bit accessors are kept out of line so the compiler cannot
// merge, hoist or drop the access.

//go:noinline
func load8(p *uint8) uint8 { return *p }

//go:noinline
func store8(p *uint8, v uint8) { *p = v }

//go:noinline
func load16(p *uint16) uint16 { return *p }

//go:noinline
func store16(p *uint16, v uint16) { *p = v }

func (a Addr) p8() *uint8 {
	return (*uint8)(unsafe.Pointer(uintptr(a))) //nolint:govet // register address outside the Go heap
}

func (a Addr) p16() *uint16 {
	return (*uint16)(unsafe.Pointer(uintptr(a))) //nolint:govet // register address outside the Go heap
}

func (a Addr) p32() *uint32 {
	return (*uint32)(unsafe.Pointer(uintptr(a))) //nolint:govet // register address outside the Go heap
}

// In8 reads one byte.
func (a Addr) In8() uint8 {
	v := load8(a.p8())
	barrier()
	return v
}

// Out8 writes one byte.
func (a Addr) Out8(v uint8) {
	store8(a.p8(), v)
	barrier()
}

// InBE16 reads a big-endian 16-bit register.
func (a Addr) InBE16() uint16 {
	v := load16(a.p16())
	barrier()
	if !hostBigEndian {
		v = bits.ReverseBytes16(v)
	}
	return v
}

// InLE16 reads a little-endian 16-bit register.
func (a Addr) InLE16() uint16 {
	v := load16(a.p16())
	barrier()
	if hostBigEndian {
		v = bits.ReverseBytes16(v)
	}
	return v
}

// OutBE16 writes a big-endian 16-bit register.
func (a Addr) OutBE16(v uint16) {
	if !hostBigEndian {
		v = bits.ReverseBytes16(v)
	}
	store16(a.p16(), v)
	barrier()
}

// OutLE16 writes a little-endian 16-bit register.
func (a Addr) OutLE16(v uint16) {
	if hostBigEndian {
		v = bits.ReverseBytes16(v)
	}
	store16(a.p16(), v)
	barrier()
}

// InBE32 reads a big-endian 32-bit register.
func (a Addr) InBE32() uint32 {
	v := atomic.LoadUint32(a.p32())
	barrier()
	if !hostBigEndian {
		v = bits.ReverseBytes32(v)
	}
	return v
}

// InLE32 reads a little-endian 32-bit register.
func (a Addr) InLE32() uint32 {
	v := atomic.LoadUint32(a.p32())
	barrier()
	if hostBigEndian {
		v = bits.ReverseBytes32(v)
	}
	return v
}

// OutBE32 writes a big-endian 32-bit register.
func (a Addr) OutBE32(v uint32) {
	if !hostBigEndian {
		v = bits.ReverseBytes32(v)
	}
	atomic.StoreUint32(a.p32(), v)
	barrier()
}

// OutLE32 writes a little-endian 32-bit register.
func (a Addr) OutLE32(v uint32) {
	if hostBigEndian {
		v = bits.ReverseBytes32(v)
	}
	atomic.StoreUint32(a.p32(), v)
	barrier()
}
