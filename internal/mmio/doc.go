// Package mmio provides volatile access to memory-mapped device registers.
//
// Registers are addressed by Addr, an opaque CPU-visible address inside a
// mapped Region. The only legal operations on an Addr are the single-width,
// single-byte-order accessors (In8, InBE16, InLE32, Out8, OutBE32, ...).
// Each accessor performs exactly one load or store and is followed by a full
// memory barrier, so accesses are neither cached nor reordered by the
// compiler or the CPU.
//
// # Regions
//
// A Region is a window of memory that registers live in:
//
//   - Anonymous: off-heap scratch memory (simulation and tests)
//   - MapDevMem: a physical window of /dev/mem (or any mappable file)
//   - MapUIO: map N of a Linux UIO device
//
// Example:
//
//	win, err := mmio.MapDevMem("/dev/mem", 0xfe200000, 0x1000)
//	if err != nil {
//	    return err
//	}
//	defer win.Close()
//
//	status := win.Base().Add(0x34).InLE32()
//
// # Thread Safety
//
// Accessors are safe to call from multiple goroutines; a single aligned
// access of bus width is assumed atomic at the hardware level. Read-modify-
// write sequences need external locking (see package devbus).
package mmio
