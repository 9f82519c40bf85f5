package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func recordCmd() *cobra.Command {
	var (
		at       string
		distance float64
	)
	cmd := &cobra.Command{
		Use:   "record <token-hex>",
		Short: "Record an observed token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			when := time.Now()
			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("--at: %w", err)
				}
				when = t
			}
			rec, err := appCtx.Observations.RecordHex(args[0], when, distance)
			if err != nil {
				return err
			}
			out(cmd, "recorded seq %d\n", rec.Seq)
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "observation time, RFC 3339 (default now)")
	cmd.Flags().Float64Var(&distance, "distance", 0, "estimated distance in metres")
	return cmd
}

func pruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Drop expired observations and keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			obs, err := appCtx.Observations.Prune(now)
			if err != nil {
				return err
			}
			keys, err := appCtx.Keys.PruneExpired(now)
			if err != nil {
				return err
			}
			out(cmd, "pruned %d observations, %d keys\n", obs, keys)
			return nil
		},
	}
}
