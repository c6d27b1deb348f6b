package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"formationctl/internal/config"
)

var (
	validateConfigPath string
	validateSchemaPath string
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a fleet configuration against the CUE schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(validateConfigPath, validateSchemaPath)
		if err != nil {
			return err
		}
		fmt.Printf("%s: ok (%d vehicles, pattern %s)\n", validateConfigPath, len(cfg.Vehicles), cfg.Formation.Pattern)
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVar(&validateConfigPath, "config", "config/fleet.yaml", "Path to fleet configuration YAML")
	validateCmd.Flags().StringVar(&validateSchemaPath, "schema", "schemas/fleet.cue", "Path to CUE schema file")
}
