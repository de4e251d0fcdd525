package mmio

import (
	"fmt"
	"os"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Region is a mapped window of register memory.
//
// The mapping lives outside the Go heap, so Addr values derived from it stay
// valid until Close. Callers must stop all accesses before closing.
type Region struct {
	mem  []byte // whole mapping, page aligned
	base Addr   // first requested byte
	size int    // requested size from base

	closeOnce sync.Once
}

// Anonymous maps size bytes of zeroed, private memory.
//
// It backs simulated devices: registers behave like plain memory.
func Anonymous(size int) (*Region, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}

	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("%w: anonymous %d bytes: %w", ErrMapFailed, size, err)
	}

	return newRegion(mem, 0, size), nil
}

// MapDevMem maps size bytes of physical memory starting at phys.
//
// path is normally "/dev/mem"; any mappable file works. phys does not need
// to be page aligned.
func MapDevMem(path string, phys uint64, size int) (*Region, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}

	page := uint64(unix.Getpagesize())
	delta := phys % page

	return mapFile(path, int64(phys-delta), int(delta), size) //nolint:gosec // physical offsets fit int64 on supported targets
}

// MapUIO maps size bytes of map index of a UIO device (e.g. "/dev/uio0").
// The kernel selects map N through an offset of N pages.
func MapUIO(path string, index int, size int) (*Region, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	if index < 0 {
		return nil, fmt.Errorf("%w: negative UIO map index %d", ErrMapFailed, index)
	}

	return mapFile(path, int64(index)*int64(unix.Getpagesize()), 0, size)
}

func mapFile(path string, offset int64, delta, size int) (*Region, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %w", ErrMapFailed, path, err)
	}
	defer f.Close()

	mem, err := unix.Mmap(int(f.Fd()), offset, delta+size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED) //nolint:gosec // fd fits int
	if err != nil {
		return nil, fmt.Errorf("%w: %s at %#x: %w", ErrMapFailed, path, offset, err)
	}

	return newRegion(mem, delta, size), nil
}

func newRegion(mem []byte, delta, size int) *Region {
	return &Region{
		mem:  mem,
		base: Addr(uintptr(unsafe.Pointer(&mem[delta]))),
		size: size,
	}
}

// Base returns the address of the first byte of the window.
func (r *Region) Base() Addr {
	return r.base
}

// Size returns the usable size of the window in bytes.
func (r *Region) Size() int {
	return r.size
}

// Contains reports whether width bytes starting at a lie inside the window.
func (r *Region) Contains(a Addr, width int) bool {
	if a < r.base || width <= 0 {
		return false
	}
	return uint64(a-r.base)+uint64(width) <= uint64(r.size)
}

// Close unmaps the window.
func (r *Region) Close() error {
	err := ErrClosed
	r.closeOnce.Do(func() {
		err = unix.Munmap(r.mem)
		r.mem = nil
	})
	return err
}
