package cmd

import (
	"fmt"

	"github.com/OpenTraceLab/OpenTraceFMC/pkg/board"
	"github.com/OpenTraceLab/OpenTraceFMC/pkg/fmc"
	"github.com/spf13/cobra"
)

var regsCmd = &cobra.Command{
	Use:   "regs [board.dts]",
	Short: "Print the FMC register map",
	Long: `Print the offsets of the FMC register block. With a board device tree, also
print the register words its banks encode to.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRegs,
}

func init() {
	rootCmd.AddCommand(regsCmd)
}

func runRegs(cmd *cobra.Command, args []string) error {
	fmt.Printf("%-8s %-6s %s\n", "OFFSET", "NAME", "DESCRIPTION")
	for _, r := range fmc.Registers() {
		fmt.Printf("0x%03X    %-6s %s\n", r.Offset, r.Name, r.Description)
	}

	if len(args) == 0 {
		return nil
	}

	b, err := board.LoadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to load board: %w", err)
	}
	fmt.Println()
	describeBoard(b)
	return nil
}
