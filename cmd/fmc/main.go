package main

import "github.com/OpenTraceLab/OpenTraceFMC/cmd/fmc/cmd"

func main() {
	cmd.Execute()
}
