package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "fmc",
	Short: "STM32 FMC external memory bring-up",
	Long: `Program the STM32 Flexible Memory Controller from a board device tree:
NOR/PSRAM/SRAM chip-select banks and the SDRAM power-up sequence.

Examples:
  fmc plan board.dts                              # Dry run, print every register access
  fmc program board.dts --bus devmem              # Program the FMC of this SoC
  fmc program board.dts --bus probe --speed 4000000
  fmc refresh --period 64ms --rows 4096 --sdclk 90000000`,
	Version: "0.3.0",
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
