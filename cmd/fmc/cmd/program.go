package cmd

import (
	"fmt"
	"time"

	"github.com/OpenTraceLab/OpenTraceFMC/pkg/board"
	"github.com/OpenTraceLab/OpenTraceFMC/pkg/dap"
	"github.com/OpenTraceLab/OpenTraceFMC/pkg/fmc"
	"github.com/OpenTraceLab/OpenTraceFMC/pkg/regbus"
	"github.com/spf13/cobra"
)

var (
	programOpts probeFlags
	pollTimeout time.Duration
)

var programCmd = &cobra.Command{
	Use:   "program <board.dts>",
	Short: "Program the FMC of a target from a board device tree",
	Long: `Load the FMC node of a board device tree and program the controller:
SYSCFG remap first, then every NOR/SRAM bank, then the SDRAM power-up sequence.

Register access:
  devmem     map the FMC through /dev/mem (run on the target itself, Linux only)
  probe      drive the target's system bus through a CMSIS-DAP probe over SWD
  sim-probe  simulated probe and target, for testing

Examples:
  fmc program board.dts --bus devmem
  fmc program board.dts --bus probe --serial E6614C311B4B8A2E
  fmc program board.dts --bus probe --timeout 10ms -v`,
	Args: cobra.ExactArgs(1),
	RunE: runProgram,
}

func init() {
	rootCmd.AddCommand(programCmd)

	programOpts.register(programCmd, "devmem")
	programCmd.Flags().DurationVar(&pollTimeout, "timeout", fmc.DefaultPollTimeout,
		"SDRAM busy-poll timeout (0 waits forever)")
}

func runProgram(cmd *cobra.Command, args []string) error {
	b, err := board.LoadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to load board: %w", err)
	}
	if verbose {
		describeBoard(b)
	}

	opts := []fmc.Option{fmc.WithPollTimeout(pollTimeout)}
	if verbose {
		opts = append(opts, fmc.WithLogger(stdoutLogger()))
	}

	switch programOpts.bus {
	case "devmem":
		err = programDevMem(b, opts)
	default:
		err = programProbe(b, opts)
	}
	if err != nil {
		return fmt.Errorf("programming failed: %w", err)
	}

	fmt.Printf("Programmed %s FMC at 0x%08X over %s\n", b.Family, b.Base, programOpts.bus)
	return nil
}

// traced wraps bus with an access trace in verbose mode.
func traced(bus fmc.Bus, names func(uint32) string) fmc.Bus {
	if !verbose {
		return bus
	}
	return regbus.NewTrace(bus, stdoutLogger(), names)
}

func programDevMem(b *board.Board, opts []fmc.Option) error {
	dev, err := regbus.OpenDevMem(b.Base, fmc.RegisterBlockSize)
	if err != nil {
		return err
	}
	defer dev.Close()

	var syscfg fmc.Bus
	if b.Syscfg != 0 {
		sys, err := regbus.OpenDevMem(b.Syscfg, syscfgSize)
		if err != nil {
			return err
		}
		defer sys.Close()
		syscfg = traced(sys, syscfgName)
	}

	return programBoard(b, traced(dev, fmc.RegisterName), syscfg, opts...)
}

func programProbe(b *board.Board, opts []fmc.Option) error {
	base, err := addr32(b.Base)
	if err != nil {
		return err
	}
	var sysBase uint32
	if b.Syscfg != 0 {
		if sysBase, err = addr32(b.Syscfg); err != nil {
			return err
		}
	}

	var target *regbus.Sim
	if programOpts.simulated() {
		target = regbus.NewSim()
		presetFMC(target, base)
	}

	t, err := programOpts.openTransport(target)
	if err != nil {
		return err
	}
	ap, err := dap.Connect(t, programOpts.speed)
	if err != nil {
		t.Close()
		return err
	}
	defer ap.Close()

	if verbose {
		fmt.Printf("Connected: %s\n", ap.DPIDR())
	}

	var syscfg fmc.Bus
	if b.Syscfg != 0 {
		syscfg = traced(regbus.NewWindow(ap, sysBase, syscfgSize), syscfgName)
	}
	bus := traced(regbus.NewWindow(ap, base, fmc.RegisterBlockSize), fmc.RegisterName)

	if err := programBoard(b, bus, syscfg, opts...); err != nil {
		return err
	}

	if target != nil {
		fmt.Printf("Simulated target received %d writes\n", len(target.Writes()))
	}
	return nil
}
