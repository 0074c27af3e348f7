package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/fleetsense/fleettrack/app"
	"github.com/fleetsense/fleettrack/config"
	"github.com/fleetsense/fleettrack/infra/logger"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "fleettrack",
	Short: "Fleet tracking and anomaly detection service",
	RunE:  run,
}

func init() {
	cobra.OnInitialize(func() {
		// Optional .env for broker credentials and tokens.
		_ = godotenv.Load()
	})
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func run(cmd *cobra.Command, args []string) error {
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
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()
	return svc.Run(ctx)
}
