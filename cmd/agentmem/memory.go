package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/oceanbase/agentmem-go/pkg/core"
	"github.com/oceanbase/agentmem-go/pkg/memory"
)

func newMemoryCmd(c *cli) *cobra.Command {
	memoryCmd := &cobra.Command{
		Use:   "memory",
		Short: "Add, search and expire agent memories",
	}
	memoryCmd.AddCommand(
		newMemoryAddCmd(c),
		newMemorySearchCmd(c),
		newMemoryCleanupCmd(c),
		newMemoryForgetCmd(c),
		newMemoryStatsCmd(c),
	)
	return memoryCmd
}

func newMemoryAddCmd(c *cli) *cobra.Command {
	var (
		address  string
		ttl      time.Duration
		duration int
		now      string
	)

	cmd := &cobra.Command{
		Use:   "add <subject> <predicate> <object> [description]",
		Short: "Remember an event, or an action when --duration is set",
		Args:  cobra.RangeArgs(3, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, clk, err := c.openClient(now)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := c.newContext()
			defer cancel()

			opts := []memory.EventOption{memory.WithVocabulary(client.Vocabulary())}
			if address != "" {
				opts = append(opts, memory.WithAddress(strings.Split(address, memory.AddressSeparator)...))
			}
			ev, err := memory.EventFromList(args, opts...)
			if err != nil {
				return err
			}

			var id string
			if duration > 0 {
				act := memory.NewAction(clk, ev, memory.WithDuration(duration))
				record, err := client.RememberAction(ctx, act, ttl)
				if err != nil {
					return err
				}
				id = record.ID
			} else {
				record, err := client.RememberEvent(ctx, ev, ttl)
				if err != nil {
					return err
				}
				id = record.ID
			}

			if err := client.Persist(ctx); err != nil {
				return err
			}
			c.logger.Info("memory added", zap.String("id", id), zap.String("event", ev.String()))
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}

	cmd.Flags().StringVar(&address, "address", "", "Location path, e.g. cafe:counter")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Lifetime of the memory (0: never expires)")
	cmd.Flags().IntVar(&duration, "duration", 0, "Action length in minutes")
	cmd.Flags().StringVar(&now, "now", "", "Simulation time (YYYYMMDD-HH:MM:SS)")
	return cmd
}

func newMemorySearchCmd(c *cli) *cobra.Command {
	var (
		topK    int
		subject string
		address string
		actions bool
		now     string
	)

	cmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Recall memories similar to a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, clk, err := c.openClient(now)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := c.newContext()
			defer cancel()

			query := strings.Join(args, " ")
			opts := []core.RecallOption{core.WithSubject(subject), core.WithAddress(address)}
			out := cmd.OutOrStdout()
			if actions {
				for _, act := range client.RecallActions(ctx, query, topK, opts...) {
					fmt.Fprintln(out, act.Format(clk))
				}
				return nil
			}
			for _, ev := range client.Recall(ctx, query, topK, opts...) {
				fmt.Fprintln(out, ev.String())
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 5, "Number of results")
	cmd.Flags().StringVar(&subject, "subject", "", "Only memories about this subject")
	cmd.Flags().StringVar(&address, "address", "", "Only memories at this address")
	cmd.Flags().BoolVar(&actions, "actions", false, "Recall actions instead of events")
	cmd.Flags().StringVar(&now, "now", "", "Simulation time (YYYYMMDD-HH:MM:SS)")
	return cmd
}

func newMemoryCleanupCmd(c *cli) *cobra.Command {
	var now string

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete memories outside their lifetime",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := c.openClient(now)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := c.newContext()
			defer cancel()

			removed, err := client.Cleanup(ctx)
			if err != nil {
				return err
			}
			if err := client.Persist(ctx); err != nil {
				return err
			}
			for _, id := range removed {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			c.logger.Info("cleanup finished", zap.Int("removed", len(removed)))
			return nil
		},
	}

	cmd.Flags().StringVar(&now, "now", "", "Simulation time (YYYYMMDD-HH:MM:SS)")
	return cmd
}

func newMemoryForgetCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "forget <id...>",
		Short: "Delete memories by record ID",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := c.openClient("")
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := c.newContext()
			defer cancel()

			if err := client.Forget(ctx, args...); err != nil {
				return err
			}
			if err := client.Persist(ctx); err != nil {
				return err
			}
			c.logger.Info("memories forgotten", zap.Strings("ids", args))
			return nil
		},
	}
}

func newMemoryStatsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show record count and ID counter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := c.openClient("")
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := c.newContext()
			defer cancel()

			n, err := client.Index().Len(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "records: %d\ncounter: %d\n", n, client.Index().Counter())
			return nil
		},
	}
}
