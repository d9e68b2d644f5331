package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

var rootCommand = &cobra.Command{
	Use:           "rulesconv",
	Short:         "Convert proxy rulesets between Clash, Surge, Quantumult and sing-box",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCommand.AddCommand(serveCommand, convertCommand)
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
