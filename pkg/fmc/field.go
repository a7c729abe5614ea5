package fmc

import (
	"fmt"

	"golang.org/x/exp/constraints"
)

// field is a bit range inside a 32-bit register.
type field struct {
	shift uint
	width uint
}

func (f field) mask() uint32 {
	return (uint32(1)<<f.width - 1) << f.shift
}

// fits reports whether v can be stored in f without truncation.
func fits[T constraints.Unsigned](f field, v T) bool {
	return uint64(v) < uint64(1)<<f.width
}

// put shifts v into the position of f. It does not mask: callers check fits
// first, so an oversized value is a validation bug rather than silent loss.
func put[T constraints.Unsigned](f field, v T) uint32 {
	return uint32(v) << f.shift
}

// get extracts f from a register value.
func get(f field, reg uint32) uint32 {
	return (reg & f.mask()) >> f.shift
}

func flag(f field, on bool) uint32 {
	if on {
		return uint32(1) << f.shift
	}
	return 0
}

// fieldValue names a value headed for a register field, for validation.
type fieldValue struct {
	name  string
	field field
	value uint32
}

func checkFields(values ...fieldValue) error {
	for _, v := range values {
		if !fits(v.field, v.value) {
			return fmt.Errorf("%w: %s = %d does not fit in %d bits",
				ErrInvalidConfig, v.name, v.value, v.field.width)
		}
	}
	return nil
}

// modify performs a read-modify-write: bits in clear are dropped, bits in set
// are added, everything else keeps the value the register holds now.
func modify(bus Bus, off, clear, set uint32) error {
	cur, err := bus.Read32(off)
	if err != nil {
		return err
	}
	return bus.Write32(off, cur&^clear|set)
}
