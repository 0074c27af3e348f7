package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fleetsense/fleettrack/app"
	"github.com/fleetsense/fleettrack/config"
	"github.com/fleetsense/fleettrack/core/model"
)

var (
	statsWindow time.Duration
	pruneRole   string
)

var fleetCmd = &cobra.Command{
	Use:   "fleet",
	Short: "Fleet maintenance commands",
}

var fleetStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print aggregate statistics over recent telemetry",
	RunE:  runFleetStats,
}

var fleetReconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Release vehicles stuck in use without an active mission",
	RunE:  runFleetReconcile,
}

var fleetPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete telemetry older than the retention horizon",
	RunE:  runFleetPrune,
}

func init() {
	fleetStatsCmd.Flags().DurationVar(&statsWindow, "window", time.Hour, "aggregation window")
	fleetPruneCmd.Flags().StringVar(&pruneRole, "role", "admin", "role of the caller")
	fleetCmd.AddCommand(fleetStatsCmd)
	fleetCmd.AddCommand(fleetReconcileCmd)
	fleetCmd.AddCommand(fleetPruneCmd)
	rootCmd.AddCommand(fleetCmd)
}

func runFleetStats(cmd *cobra.Command, args []string) error {
	svc, _, err := loadService(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	sum, err := svc.Stats.Summarize(cmd.Context(), time.Now().Add(-statsWindow))
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "vehicles: %d samples: %d total km: %.2f\n", sum.Vehicles, sum.Samples, sum.TotalKm)
	if sum.Samples > 0 {
		fmt.Fprintf(out, "speed km/h mean %.1f max %.1f min %.1f\n", sum.MeanSpeedKmh, sum.MaxSpeedKmh, sum.MinSpeedKmh)
	}
	for id, km := range sum.DistanceKm {
		fmt.Fprintf(out, "  %s: %.2f km\n", id, km)
	}
	return nil
}

func runFleetReconcile(cmd *cobra.Command, args []string) error {
	svc, _, err := loadService(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	report, err := svc.Missions.Reconcile(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, id := range report.Released {
		fmt.Fprintf(out, "released %s\n", id)
	}
	for vehicle, missions := range report.Conflicts {
		fmt.Fprintf(out, "conflict on %s: %v\n", vehicle, missions)
	}
	return nil
}

func runFleetPrune(cmd *cobra.Command, args []string) error {
	svc, cfg, err := loadService(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	role, err := model.ParseRole(pruneRole)
	if err != nil {
		return err
	}
	removed, err := svc.PruneTelemetry(cmd.Context(), role, cfg.Retention.MaxAgeDays)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed %d samples\n", removed)
	return nil
}

func loadService(ctx context.Context) (*app.Service, *config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return svc, cfg, nil
}
