// Package regbus provides backends for 32-bit memory-mapped register blocks.
//
// Every backend implements Bus: word-sized reads and writes at byte offsets
// relative to a base address, plus an ordering barrier. Backends that talk to
// real silicon through the CPU (DevMem) never fail once opened; backends that
// tunnel accesses through a debug probe can, and callers treat such failures
// as fatal.
package regbus

import (
	"errors"
	"fmt"
)

// Bus is a 32-bit register bus addressed by byte offset.
type Bus interface {
	Read32(off uint32) (uint32, error)
	Write32(off, val uint32) error
	// Barrier returns once every previously issued write is visible to the
	// device.
	Barrier() error
}

var (
	// ErrUnaligned is returned for offsets that are not word aligned.
	ErrUnaligned = errors.New("regbus: unaligned access")
	// ErrOutOfRange is returned for offsets beyond a mapped window.
	ErrOutOfRange = errors.New("regbus: offset out of range")
	// ErrClosed is returned by backends used after Close.
	ErrClosed = errors.New("regbus: bus closed")
)

// OpKind identifies a bus access.
type OpKind uint8

const (
	OpRead OpKind = iota
	OpWrite
	OpBarrier
)

var opNames = map[OpKind]string{
	OpRead:    "read",
	OpWrite:   "write",
	OpBarrier: "barrier",
}

func (k OpKind) String() string {
	if name, ok := opNames[k]; ok {
		return name
	}
	return fmt.Sprintf("OpKind(%d)", k)
}

// Op records a single access. Value is the value returned by a read or the
// value written by a write; it is zero for barriers.
type Op struct {
	Kind   OpKind
	Offset uint32
	Value  uint32
}

func (o Op) String() string {
	switch o.Kind {
	case OpBarrier:
		return "barrier"
	case OpRead:
		return fmt.Sprintf("read  0x%03X -> 0x%08X", o.Offset, o.Value)
	default:
		return fmt.Sprintf("write 0x%03X <- 0x%08X", o.Offset, o.Value)
	}
}

func checkAligned(off uint32) error {
	if off&3 != 0 {
		return fmt.Errorf("%w: offset 0x%X", ErrUnaligned, off)
	}
	return nil
}

// Window exposes a region of a larger bus as its own Bus. It is typically used
// to view a peripheral inside the absolute address space of a debug probe.
type Window struct {
	Bus  Bus
	Base uint32
	Size uint32 // zero means unbounded
}

// NewWindow returns a window of size bytes starting at base.
func NewWindow(bus Bus, base, size uint32) *Window {
	return &Window{Bus: bus, Base: base, Size: size}
}

func (w *Window) translate(off uint32) (uint32, error) {
	if err := checkAligned(off); err != nil {
		return 0, err
	}
	if w.Size != 0 && off >= w.Size {
		return 0, fmt.Errorf("%w: offset 0x%X, window size 0x%X", ErrOutOfRange, off, w.Size)
	}
	return w.Base + off, nil
}

func (w *Window) Read32(off uint32) (uint32, error) {
	addr, err := w.translate(off)
	if err != nil {
		return 0, err
	}
	return w.Bus.Read32(addr)
}

func (w *Window) Write32(off, val uint32) error {
	addr, err := w.translate(off)
	if err != nil {
		return err
	}
	return w.Bus.Write32(addr, val)
}

func (w *Window) Barrier() error {
	return w.Bus.Barrier()
}
