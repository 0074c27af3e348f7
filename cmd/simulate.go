package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fleetsense/fleettrack/app"
	"github.com/fleetsense/fleettrack/config"
	"github.com/fleetsense/fleettrack/infra/logger"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the service with the movement simulator driving the fleet",
	RunE:  runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	logg := logger.New("simulate")
	interval := time.Duration(cfg.Simulator.IntervalSeconds * float64(time.Second))
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stepped, err := svc.Simulator.StepFleet(ctx)
				if err != nil {
					logg.Errorf("fleet step: %v", err)
					continue
				}
				logg.Debugf("stepped %d vehicles", stepped)
			}
		}
	}()
	return svc.Run(ctx)
}
