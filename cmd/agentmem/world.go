package main

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/oceanbase/agentmem-go/pkg/spatial"
)

func newWorldCmd(c *cli) *cobra.Command {
	var seed int64

	worldCmd := &cobra.Command{
		Use:   "world",
		Short: "Inspect a world model (JSON or YAML)",
	}

	showCmd := &cobra.Command{
		Use:   "show <world>",
		Short: "Print the location tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.loadWorld(args[0], seed)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), s.String())
			return nil
		},
	}

	leavesCmd := &cobra.Command{
		Use:   "leaves <world> [segment...]",
		Short: "List what lies below a path",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.loadWorld(args[0], seed)
			if err != nil {
				return err
			}
			for _, name := range s.GetLeaves(args[1:]) {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}

	findCmd := &cobra.Command{
		Use:   "find <world> <hint...>",
		Short: "Resolve a free-text hint to an address through the alias map",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.loadWorld(args[0], seed)
			if err != nil {
				return err
			}
			hint := strings.Join(args[1:], " ")
			address := s.FindAddressString(hint)
			if address == "" {
				return fmt.Errorf("no alias matches %q", hint)
			}
			fmt.Fprintln(cmd.OutOrStdout(), address)
			return nil
		},
	}

	randomCmd := &cobra.Command{
		Use:   "random <world>",
		Short: "Pick a random leaf address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.loadWorld(args[0], seed)
			if err != nil {
				return err
			}
			address := s.RandomAddress()
			if address == nil {
				return fmt.Errorf("world %s has no leaves", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(address, ":"))
			return nil
		},
	}
	randomCmd.Flags().Int64Var(&seed, "seed", 0, "Random seed (0: time based)")

	worldCmd.AddCommand(showCmd, leavesCmd, findCmd, randomCmd)
	return worldCmd
}

func (c *cli) loadWorld(path string, seed int64) (*spatial.Spatial, error) {
	var opts []spatial.Option
	if seed != 0 {
		opts = append(opts, spatial.WithRand(rand.New(rand.NewSource(seed))))
	}
	s, err := spatial.LoadWorld(path, opts...)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("world loaded", zap.String("path", path), zap.Int("aliases", s.Aliases().Len()))
	return s, nil
}
