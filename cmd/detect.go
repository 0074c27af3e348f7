package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fleetsense/fleettrack/app"
	"github.com/fleetsense/fleettrack/config"
	"github.com/fleetsense/fleettrack/core/model"
)

var detectRole string

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Run a single detection pass over all active missions",
	RunE:  runDetect,
}

func init() {
	detectCmd.Flags().StringVar(&detectRole, "role", "admin", "role of the caller")
	rootCmd.AddCommand(detectCmd)
}

func runDetect(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	role, err := model.ParseRole(detectRole)
	if err != nil {
		return err
	}
	svc, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	report, err := svc.RunDetection(ctx, role)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "anomalies created: %d, missions skipped: %d\n",
		report.Created, report.SkippedMissions)
	return nil
}
