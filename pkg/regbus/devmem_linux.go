//go:build linux

package regbus

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// DevMem maps a physical register block through /dev/mem. Accesses are single
// 32-bit atomic loads and stores, so the compiler neither merges, splits nor
// caches them, and they are observed by the device in program order.
type DevMem struct {
	mem   []byte
	delta uint64
	size  uint32
}

// OpenDevMem maps size bytes of physical memory starting at base.
func OpenDevMem(base uint64, size uint32) (*DevMem, error) {
	if base&3 != 0 {
		return nil, fmt.Errorf("%w: base 0x%X", ErrUnaligned, base)
	}
	if size == 0 {
		return nil, fmt.Errorf("regbus: zero-sized mapping at 0x%X", base)
	}

	fd, err := unix.Open("/dev/mem", unix.O_RDWR|unix.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("regbus: open /dev/mem: %w", err)
	}
	defer unix.Close(fd)

	page := uint64(unix.Getpagesize())
	pageBase := base &^ (page - 1)
	delta := base - pageBase
	length := (delta + uint64(size) + page - 1) &^ (page - 1)

	mem, err := unix.Mmap(fd, int64(pageBase), int(length), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("regbus: mmap 0x%X+0x%X: %w", pageBase, length, err)
	}

	return &DevMem{mem: mem, delta: delta, size: size}, nil
}

func (d *DevMem) word(off uint32) (*uint32, error) {
	if d.mem == nil {
		return nil, ErrClosed
	}
	if err := checkAligned(off); err != nil {
		return nil, err
	}
	if off >= d.size {
		return nil, fmt.Errorf("%w: offset 0x%X, mapping size 0x%X", ErrOutOfRange, off, d.size)
	}
	return (*uint32)(unsafe.Pointer(&d.mem[d.delta+uint64(off)])), nil
}

func (d *DevMem) Read32(off uint32) (uint32, error) {
	p, err := d.word(off)
	if err != nil {
		return 0, err
	}
	return atomic.LoadUint32(p), nil
}

func (d *DevMem) Write32(off, val uint32) error {
	p, err := d.word(off)
	if err != nil {
		return err
	}
	atomic.StoreUint32(p, val)
	return nil
}

// Barrier is a no-op: atomic stores are sequentially consistent, so a later
// atomic load cannot be reordered before them.
func (d *DevMem) Barrier() error {
	if d.mem == nil {
		return ErrClosed
	}
	return nil
}

// Close unmaps the register block.
func (d *DevMem) Close() error {
	if d.mem == nil {
		return nil
	}
	err := unix.Munmap(d.mem)
	d.mem = nil
	return err
}
