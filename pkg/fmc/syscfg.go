package fmc

import "fmt"

// SYSCFG memory remap register, at offset 0 of the SYSCFG block.
const RegSyscfgMemRemap uint32 = 0x00

// MEMRMP fields.
var (
	memrmpMemMode = field{shift: 0, width: 3}
	memrmpSwapFMC = field{shift: 10, width: 2}
)

// Remap holds the optional SYSCFG settings of a board. A nil field leaves the
// corresponding bits untouched.
type Remap struct {
	MemMode *uint32 // memory mapped at address 0
	SwapFMC *uint32 // FMC bank swap
}

// Empty reports whether r changes nothing.
func (r Remap) Empty() bool {
	return r.MemMode == nil && r.SwapFMC == nil
}

// Validate checks both values against their field widths.
func (r Remap) Validate() error {
	if r.MemMode != nil {
		if err := checkFields(fieldValue{"mem_remap", memrmpMemMode, *r.MemMode}); err != nil {
			return err
		}
	}
	if r.SwapFMC != nil {
		if err := checkFields(fieldValue{"swp_fmc", memrmpSwapFMC, *r.SwapFMC}); err != nil {
			return err
		}
	}
	return nil
}

// ApplyRemap updates MEMRMP on the SYSCFG block behind bus. Each setting is a
// separate read-modify-write, in the order memory mode then FMC swap.
func ApplyRemap(bus Bus, r Remap) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if r.MemMode != nil {
		if err := modify(bus, RegSyscfgMemRemap, memrmpMemMode.mask(), put(memrmpMemMode, *r.MemMode)); err != nil {
			return fmt.Errorf("fmc: syscfg mem_remap: %w", err)
		}
	}
	if r.SwapFMC != nil {
		if err := modify(bus, RegSyscfgMemRemap, memrmpSwapFMC.mask(), put(memrmpSwapFMC, *r.SwapFMC)); err != nil {
			return fmt.Errorf("fmc: syscfg swp_fmc: %w", err)
		}
	}
	return nil
}
