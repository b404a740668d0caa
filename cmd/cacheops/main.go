// cmd/cacheops/main.go
//
// cacheops is the operational toolkit for the booking platform's Redis
// fleet: booking-shaped load tests against a cache endpoint, and snapshot /
// restore / disaster-recovery drills against ElastiCache.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/bookedbarber/cacheops/internal/config"
	"github.com/bookedbarber/cacheops/internal/logging"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "cacheops",
		Short:         "Redis load testing and ElastiCache recovery tooling",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newLoadCmd())
	root.AddCommand(newRecoveryCmd())
	return root
}

// setup builds the shared config and logger for a command invocation.
func setup(logLevel string) (*config.Config, *zap.Logger, error) {
	cfg := config.Default()
	config.LoadFromEnv(cfg)
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
