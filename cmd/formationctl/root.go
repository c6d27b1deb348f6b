package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "formationctl",
	Short: "Multi-vehicle formation flight coordinator",
	Long:  "formationctl connects a fleet of autonomous vehicles, drives them through arm/takeoff/land, and holds a shared geometric formation in real time.",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(flyCmd)
	rootCmd.AddCommand(validateCmd)
}
