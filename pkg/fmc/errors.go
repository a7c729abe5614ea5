package fmc

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig reports a parameter outside the range its register
	// field can hold, or an inconsistent bank list.
	ErrInvalidConfig = errors.New("fmc: invalid configuration")
	// ErrInvalidBank reports a NOR/SRAM bank index or SDRAM slot that does not
	// exist.
	ErrInvalidBank = errors.New("fmc: invalid bank")
	// ErrMissingParams reports a bank without its control or timing block.
	ErrMissingParams = errors.New("fmc: missing bank parameters")
	// ErrInvalidBase reports an unusable register block address.
	ErrInvalidBase = errors.New("fmc: invalid register base")
	// ErrUnknownFamily reports a compatible string naming no supported family.
	ErrUnknownFamily = errors.New("fmc: unknown controller family")
	// ErrBusyTimeout is returned when the SDRAM busy flag does not clear within
	// the configured poll timeout.
	ErrBusyTimeout = errors.New("fmc: sdram controller busy timeout")
)

// SequenceError reports a failure inside the SDRAM bring-up sequence. The
// memory is left in an undefined state; the sequence must not be resumed.
type SequenceError struct {
	Slot SdramSlot // zero for the controller enable gate
	Step SdramStep
	Err  error
}

func (e *SequenceError) Error() string {
	if e.Slot == 0 {
		return fmt.Sprintf("fmc: sdram %s: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("fmc: sdram %s: %s: %v", e.Slot, e.Step, e.Err)
}

func (e *SequenceError) Unwrap() error {
	return e.Err
}
