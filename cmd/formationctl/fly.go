package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"formationctl/internal/admin"
	"formationctl/internal/config"
	"formationctl/internal/console"
	"formationctl/internal/fleet"
	"formationctl/internal/link"
	"formationctl/internal/logging"
)

var (
	flyConfigPath string
	flySchemaPath string
	flySim        bool
	flyPrintOnly  bool
	flyLogFile    string
	flyAdminAddr  string
)

var flyCmd = &cobra.Command{
	Use:   "fly",
	Short: "Connect the fleet and open the formation console",
	Long:  "fly connects every configured vehicle, starts the control loop, and opens the interactive formation console. On exit or interrupt all airborne vehicles are landed before the process terminates.",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := logging.New()

		cfg, err := config.Load(flyConfigPath, flySchemaPath)
		if err != nil {
			return err
		}

		writer, cleanup, err := newWriters(flyPrintOnly, flyLogFile)
		if err != nil {
			return err
		}
		defer cleanup()

		coord, err := fleet.New(cfg, writer)
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()
		ctx = logging.NewContext(ctx, logger)

		for _, v := range cfg.Vehicles {
			addr := v.Address
			if flySim {
				addr = "sim://" + v.ID
			}
			lk, err := link.New(addr)
			if err != nil {
				return err
			}
			coord.AddVehicle(ctx, v.ID, lk)
		}

		if err := coord.ConnectAll(ctx); err != nil {
			return err
		}

		// Mandatory finalizer: land and disarm everything before the
		// process exits, on a context that survives the interrupt.
		defer coord.Shutdown(logging.NewContext(context.Background(), logger))

		if err := coord.AwaitAllConnected(ctx, cfg.Control.ConnectTimeout()); err != nil {
			return err
		}

		go coord.Run(ctx)

		if flyAdminAddr != "" {
			srv := admin.NewServer(coord)
			go func() {
				logger.Info("admin API listening", "addr", flyAdminAddr)
				if err := srv.Start(ctx, flyAdminAddr); err != nil && err != http.ErrServerClosed {
					logger.Error("admin server failed", "err", err)
				}
			}()
		}

		return console.New(coord).Run(ctx)
	},
}

func init() {
	flyCmd.Flags().StringVar(&flyConfigPath, "config", "config/fleet.yaml", "Path to fleet configuration YAML")
	flyCmd.Flags().StringVar(&flySchemaPath, "schema", "schemas/fleet.cue", "Path to CUE schema file")
	flyCmd.Flags().BoolVar(&flySim, "sim", false, "Use simulated vehicles regardless of configured addresses")
	flyCmd.Flags().BoolVar(&flyPrintOnly, "print-only", false, "Print flight telemetry to STDOUT instead of writing to DB")
	flyCmd.Flags().StringVar(&flyLogFile, "log-file", "", "Path to export flight telemetry (JSONL)")
	flyCmd.Flags().StringVar(&flyAdminAddr, "admin", "", "Listen address for the admin JSON API (e.g. :8080)")
}
