package cmd

import (
	"fmt"

	"github.com/OpenTraceLab/OpenTraceFMC/pkg/dap"
	"github.com/OpenTraceLab/OpenTraceFMC/pkg/regbus"
	"github.com/spf13/cobra"
)

// probeFlags are the target access flags of one command.
type probeFlags struct {
	bus    string
	serial string
	speed  uint32
}

var probeOpts probeFlags

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Connect to a target through a CMSIS-DAP probe",
	Long: `Open a CMSIS-DAP probe, bring up the SWD link and print the probe
identification and the target debug port ID.

Examples:
  fmc probe
  fmc probe --serial E6614C311B4B8A2E --speed 4000000
  fmc probe --bus sim-probe`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)

	probeOpts.register(probeCmd, "probe")
}

func (f *probeFlags) register(cmd *cobra.Command, defaultBus string) {
	cmd.Flags().StringVarP(&f.bus, "bus", "b", defaultBus,
		"register access (devmem, probe, sim-probe)")
	cmd.Flags().StringVarP(&f.serial, "serial", "s", "",
		"probe serial number (if multiple probes)")
	cmd.Flags().Uint32Var(&f.speed, "speed", dap.DefaultClockHz,
		"SWD clock in Hz")
}

func (f *probeFlags) simulated() bool {
	return f.bus == "sim-probe" || f.bus == "sim"
}

// openTransport opens the probe named by --bus. For sim-probe, target is the
// simulated memory behind the probe.
func (f *probeFlags) openTransport(target *regbus.Sim) (dap.Transport, error) {
	switch f.bus {
	case "sim-probe", "sim":
		return dap.NewSimTransport(target), nil
	case "probe", "cmsisdap":
		probes, err := dap.EnumerateProbes()
		if err != nil {
			return nil, err
		}
		for _, p := range probes {
			if f.serial == "" || p.SerialNumber == f.serial {
				if verbose {
					fmt.Printf("Using probe %s (%04X:%04X)\n", p.Description, p.VID, p.PID)
				}
				return dap.NewUSBTransport(p.VID, p.PID, p.SerialNumber)
			}
		}
		if f.serial != "" {
			return nil, fmt.Errorf("no CMSIS-DAP probe with serial %q", f.serial)
		}
		return nil, fmt.Errorf("no CMSIS-DAP probe found")
	default:
		return nil, fmt.Errorf("unknown bus type %q (available: devmem, probe, sim-probe)", f.bus)
	}
}

func runProbe(cmd *cobra.Command, args []string) error {
	if probeOpts.bus == "devmem" {
		return fmt.Errorf("--bus devmem has no debug probe")
	}

	t, err := probeOpts.openTransport(regbus.NewSim())
	if err != nil {
		return fmt.Errorf("failed to open probe: %w", err)
	}

	info, err := dap.QueryInfo(t)
	if err != nil {
		t.Close()
		return fmt.Errorf("failed to query probe: %w", err)
	}

	fmt.Printf("Probe Information:\n")
	fmt.Printf("  Vendor: %s\n", info.Vendor)
	fmt.Printf("  Product: %s\n", info.Product)
	if info.Serial != "" {
		fmt.Printf("  Serial: %s\n", info.Serial)
	}
	if info.Firmware != "" {
		fmt.Printf("  Firmware: %s\n", info.Firmware)
	}
	fmt.Printf("  Packet Size: %d\n", info.PacketSize)

	ap, err := dap.Connect(t, probeOpts.speed)
	if err != nil {
		t.Close()
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer ap.Close()

	id := ap.DPIDR()
	fmt.Printf("\nTarget:\n")
	fmt.Printf("  DPIDR: %s\n", id)
	fmt.Printf("  Designer: %s\n", id.DesignerName())
	return nil
}
