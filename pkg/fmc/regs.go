package fmc

import (
	"fmt"
	"sort"
)

// Bus is the register access the controller needs. Offsets are byte offsets
// from the start of the FMC register block. regbus provides implementations.
type Bus interface {
	Read32(off uint32) (uint32, error)
	Write32(off, val uint32) error
	Barrier() error
}

// Register block layout, in byte offsets from the FMC base address.
const (
	RegBCR1 uint32 = 0x000 // NOR/PSRAM chip-select control 1
	RegBTR1 uint32 = 0x004 // NOR/PSRAM chip-select timing 1
	RegBCR2 uint32 = 0x008
	RegBTR2 uint32 = 0x00C
	RegBCR3 uint32 = 0x010
	RegBTR3 uint32 = 0x014
	RegBCR4 uint32 = 0x018
	RegBTR4 uint32 = 0x01C

	RegPCR  uint32 = 0x080 // NAND flash control
	RegSR   uint32 = 0x084 // FIFO status and interrupt
	RegPMEM uint32 = 0x088 // common memory space timing
	RegPATT uint32 = 0x08C // attribute memory space timing
	RegECCR uint32 = 0x094 // ECC result

	RegBWTR1 uint32 = 0x104 // NOR/PSRAM write timing 1
	RegBWTR2 uint32 = 0x10C
	RegBWTR3 uint32 = 0x114
	RegBWTR4 uint32 = 0x11C

	RegSDCR1 uint32 = 0x140 // SDRAM control 1
	RegSDCR2 uint32 = 0x144 // SDRAM control 2
	RegSDTR1 uint32 = 0x148 // SDRAM timing 1
	RegSDTR2 uint32 = 0x14C // SDRAM timing 2
	RegSDCMR uint32 = 0x150 // SDRAM command mode
	RegSDRTR uint32 = 0x154 // SDRAM refresh timer
	RegSDSR  uint32 = 0x158 // SDRAM status

	// RegisterBlockSize covers every register up to and including SDSR.
	RegisterBlockSize uint32 = 0x15C
)

const (
	// BCR1ControllerEnable is FMCEN, present only on the STM32H7 family.
	BCR1ControllerEnable uint32 = 1 << 31
	// BCRBankEnable is MBKEN, the last bit set when a NOR/SRAM bank is brought up.
	BCRBankEnable uint32 = 1 << 0
	// SDSRBusy is set while the SDRAM controller executes a command.
	SDSRBusy uint32 = 1 << 5
)

// Register describes one register of the block.
type Register struct {
	Offset      uint32
	Name        string
	Description string
}

var registers = []Register{
	{RegBCR1, "BCR1", "NOR/PSRAM chip-select control 1"},
	{RegBTR1, "BTR1", "NOR/PSRAM chip-select timing 1"},
	{RegBCR2, "BCR2", "NOR/PSRAM chip-select control 2"},
	{RegBTR2, "BTR2", "NOR/PSRAM chip-select timing 2"},
	{RegBCR3, "BCR3", "NOR/PSRAM chip-select control 3"},
	{RegBTR3, "BTR3", "NOR/PSRAM chip-select timing 3"},
	{RegBCR4, "BCR4", "NOR/PSRAM chip-select control 4"},
	{RegBTR4, "BTR4", "NOR/PSRAM chip-select timing 4"},
	{RegPCR, "PCR", "NAND flash control"},
	{RegSR, "SR", "FIFO status and interrupt"},
	{RegPMEM, "PMEM", "Common memory space timing"},
	{RegPATT, "PATT", "Attribute memory space timing"},
	{RegECCR, "ECCR", "ECC result"},
	{RegBWTR1, "BWTR1", "NOR/PSRAM write timing 1"},
	{RegBWTR2, "BWTR2", "NOR/PSRAM write timing 2"},
	{RegBWTR3, "BWTR3", "NOR/PSRAM write timing 3"},
	{RegBWTR4, "BWTR4", "NOR/PSRAM write timing 4"},
	{RegSDCR1, "SDCR1", "SDRAM control 1"},
	{RegSDCR2, "SDCR2", "SDRAM control 2"},
	{RegSDTR1, "SDTR1", "SDRAM timing 1"},
	{RegSDTR2, "SDTR2", "SDRAM timing 2"},
	{RegSDCMR, "SDCMR", "SDRAM command mode"},
	{RegSDRTR, "SDRTR", "SDRAM refresh timer"},
	{RegSDSR, "SDSR", "SDRAM status"},
}

var registerNames = func() map[uint32]string {
	names := make(map[uint32]string, len(registers))
	for _, r := range registers {
		names[r.Offset] = r.Name
	}
	return names
}()

// RegisterName returns the mnemonic of the register at off, or the offset in
// hex when off is not a register of the block.
func RegisterName(off uint32) string {
	if name, ok := registerNames[off]; ok {
		return name
	}
	return fmt.Sprintf("0x%03X", off)
}

// Registers returns the register map sorted by offset.
func Registers() []Register {
	out := append([]Register(nil), registers...)
	sort.Slice(out, func(i, j int) bool { return out[i].Offset < out[j].Offset })
	return out
}

// ValidateBase rejects register block addresses that cannot be real: zero, the
// all-ones "no address" sentinel, and addresses that are not word aligned.
func ValidateBase(addr uint64) error {
	switch {
	case addr == 0:
		return fmt.Errorf("%w: null address", ErrInvalidBase)
	case addr == ^uint64(0):
		return fmt.Errorf("%w: no address", ErrInvalidBase)
	case addr&3 != 0:
		return fmt.Errorf("%w: 0x%X is not word aligned", ErrInvalidBase, addr)
	}
	return nil
}
