//go:build !linux

package regbus

import "errors"

// ErrUnsupported is returned by OpenDevMem on platforms without /dev/mem.
var ErrUnsupported = errors.New("regbus: /dev/mem is only supported on linux")

// DevMem is unavailable on this platform.
type DevMem struct{}

func OpenDevMem(base uint64, size uint32) (*DevMem, error) {
	return nil, ErrUnsupported
}

func (d *DevMem) Read32(off uint32) (uint32, error) { return 0, ErrUnsupported }
func (d *DevMem) Write32(off, val uint32) error     { return ErrUnsupported }
func (d *DevMem) Barrier() error                    { return ErrUnsupported }
func (d *DevMem) Close() error                      { return nil }
