package cmd

import (
	"fmt"
	"time"

	"github.com/OpenTraceLab/OpenTraceFMC/pkg/fmc"
	"github.com/spf13/cobra"
)

var (
	refreshPeriod time.Duration
	refreshRows   uint32
	refreshSDCLK  uint64
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Compute the SDRAM refresh timer reload value",
	Long: `Compute the st,sdram-refcount value of an SDRAM device from its refresh
period, its row count and the SDRAM clock:

  count = period / rows * f_SDCLK - 20

Examples:
  # IS42S16400J: 4096 rows every 64ms, HCLK 180MHz with SDCLK_2
  fmc refresh --period 64ms --rows 4096 --sdclk 90000000`,
	RunE: runRefresh,
}

func init() {
	rootCmd.AddCommand(refreshCmd)

	refreshCmd.Flags().DurationVar(&refreshPeriod, "period", 64*time.Millisecond,
		"refresh period of the device")
	refreshCmd.Flags().Uint32Var(&refreshRows, "rows", 4096,
		"rows refreshed per period")
	refreshCmd.Flags().Uint64Var(&refreshSDCLK, "sdclk", 0,
		"SDRAM clock in Hz")

	refreshCmd.MarkFlagRequired("sdclk")
}

func runRefresh(cmd *cobra.Command, args []string) error {
	count, err := fmc.RefreshCount(refreshPeriod, refreshRows, refreshSDCLK)
	if err != nil {
		return err
	}

	fmt.Printf("Refresh count: %d\n", count)
	fmt.Printf("SDRTR: 0x%08X\n", fmc.RefreshTimerWord(count))
	if verbose {
		fmt.Printf("  %v / %d rows at %d Hz\n", refreshPeriod, refreshRows, refreshSDCLK)
	}
	return nil
}
