package cmd

import (
	"fmt"
	"log"
	"math"
	"os"

	"github.com/OpenTraceLab/OpenTraceFMC/pkg/board"
	"github.com/OpenTraceLab/OpenTraceFMC/pkg/fmc"
	"github.com/OpenTraceLab/OpenTraceFMC/pkg/regbus"
)

// Reset values of the NOR/SRAM control registers.
const (
	bcr1Reset = 0x000030DB
	bcrReset  = 0x000030D2
)

// syscfgSize covers MEMRMP, the only SYSCFG register touched.
const syscfgSize = 4

// sdsrBusyReads is how many SDSR reads the simulated controller stays busy
// after each command.
const sdsrBusyReads = 2

func stdoutLogger() *log.Logger {
	return log.New(os.Stdout, "", 0)
}

func syscfgName(off uint32) string {
	if off == fmc.RegSyscfgMemRemap {
		return "MEMRMP"
	}
	return fmt.Sprintf("0x%03X", off)
}

// presetFMC loads reset values into a simulated register block at base and
// makes SDSR report busy after every SDCMR write.
func presetFMC(sim *regbus.Sim, base uint32) {
	sim.Preset(base+fmc.RegBCR1, bcr1Reset)
	for _, off := range []uint32{fmc.RegBCR2, fmc.RegBCR3, fmc.RegBCR4} {
		sim.Preset(base+off, bcrReset)
	}
	sim.BusyAfterWrite(base+fmc.RegSDCMR, base+fmc.RegSDSR, fmc.SDSRBusy, sdsrBusyReads)
}

func describeBoard(b *board.Board) {
	fmt.Printf("Board: %s FMC at 0x%08X (%s)\n", b.Family, b.Base, b.Node.Path())
	fmt.Printf("  NOR/SRAM banks: %d\n", len(b.Config.Norsram))
	for _, p := range b.Config.Norsram {
		fmt.Printf("    bank %d: BCR 0x%08X BTR 0x%08X BWTR 0x%08X\n",
			p.Control.Bank, p.Control.Word(), p.Timing.ReadWord(), p.Timing.WriteWord())
	}
	fmt.Printf("  SDRAM banks: %d\n", len(b.Config.Sdram))
	for _, p := range b.Config.Sdram {
		fmt.Printf("    %s: SDCR 0x%08X SDTR 0x%08X refresh %d\n",
			p.Slot, p.Control.Word(), p.Timing.Word(), p.RefreshCount)
		if p.RefreshCount < fmc.MinRefreshCount || p.RefreshCount > fmc.MaxRefreshCount {
			fmt.Printf("    warning: %s refresh count %d outside %d-%d, SDRTR gets 0x%08X\n",
				p.Slot, p.RefreshCount, fmc.MinRefreshCount, fmc.MaxRefreshCount,
				fmc.RefreshTimerWord(p.RefreshCount))
		}
	}
	if b.Syscfg != 0 {
		fmt.Printf("  SYSCFG at 0x%08X\n", b.Syscfg)
	}
}

// programBoard applies the SYSCFG remap, then initialises the controller.
// syscfg may be nil when the board has no remap.
func programBoard(b *board.Board, bus, syscfg fmc.Bus, opts ...fmc.Option) error {
	if syscfg != nil && !b.Remap.Empty() {
		if err := fmc.ApplyRemap(syscfg, b.Remap); err != nil {
			return err
		}
	}
	return fmc.NewController(bus, b.Family, opts...).Init(b.Config)
}

// addr32 checks that an address fits the 32-bit space of a debug probe.
func addr32(addr uint64) (uint32, error) {
	if addr > math.MaxUint32 {
		return 0, fmt.Errorf("address 0x%X is outside the 32-bit target space", addr)
	}
	return uint32(addr), nil
}
