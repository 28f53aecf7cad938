// Command agentmem inspects world models and manages an agent memory index.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/oceanbase/agentmem-go/pkg/clock"
	"github.com/oceanbase/agentmem-go/pkg/core"
)

// cli holds global flags and the logger shared by subcommands.
type cli struct {
	verbose    bool
	configPath string
	timeout    time.Duration

	logger *zap.Logger
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "agentmem",
		Short: "agentmem - agent world model and memory index",
		Long: `agentmem inspects the spatial world model of a simulated agent and
manages its memory index of events and actions.

Configuration comes from --config (JSON) or from the environment (.env).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.logger != nil {
				return nil
			}
			config := zap.NewProductionConfig()
			if c.verbose {
				config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			var err error
			c.logger, err = config.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}

	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Enable verbose logging")
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "JSON config file (default: environment)")
	root.PersistentFlags().DurationVar(&c.timeout, "timeout", time.Minute, "Operation timeout")

	root.AddCommand(newWorldCmd(c))
	root.AddCommand(newMemoryCmd(c))
	return root
}

func main() {
	if err := newRootCmd(&cli{}).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (c *cli) loadConfig() (*core.Config, error) {
	if c.configPath != "" {
		return core.LoadConfigFromJSON(c.configPath)
	}
	return core.LoadConfigFromEnv()
}

// openClient builds a memory client on a wall clock, or on a simulation
// clock pinned to now when it is set.
func (c *cli) openClient(now string) (*core.Client, clock.Clock, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, nil, err
	}

	var clk clock.Clock = clock.Wall{}
	if now != "" {
		t, err := clock.Parse(now, clock.Wall{})
		if err != nil {
			return nil, nil, fmt.Errorf("invalid --now %q (want %s): %w", now, clock.Layout, err)
		}
		clk = clock.NewSim(t)
	}

	client, err := core.NewClient(cfg, clk, core.WithLogger(c.logger))
	if err != nil {
		return nil, nil, err
	}
	return client, clk, nil
}

func (c *cli) newContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.timeout)
}
