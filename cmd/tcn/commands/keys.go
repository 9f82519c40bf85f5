package commands

import (
	"errors"
	"fmt"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"tcncore/internal/app"
	"tcncore/internal/store"
)

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the data directory, config file and first key",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			cfg := appCtx.Config
			path := configPath
			if path == "" {
				path = filepath.Join(cfg.Home, app.ConfigFile)
			}
			if _, err := app.LoadConfig(path, false); err != nil || force {
				if err := cfg.Save(path); err != nil {
					return err
				}
				out(cmd, "Config written to %s\n", path)
			}
			k, err := appCtx.Keys.Current(passphrase, time.Now())
			if err != nil {
				return err
			}
			out(cmd, "Key ready.\nKey ID: %s\n", k.ID)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}

func rotateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rotate",
		Short: "Retire the current key and start a new one",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			k, err := appCtx.Keys.Rotate(passphrase, time.Now())
			if errors.Is(err, store.ErrWrongPassphrase) {
				return errors.New("wrong passphrase")
			}
			if err != nil {
				return err
			}
			out(cmd, "Rotated.\nKey ID: %s\n", k.ID)
			return nil
		},
	}
}

func keysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List report authorization keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			all, err := appCtx.Keys.List()
			if err != nil {
				return err
			}
			now := time.Now()
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTATE\tCREATED\tCURSOR\tPUBLISHED")
			for _, k := range all {
				state := "current"
				switch {
				case k.Expired(now):
					state = "expired"
				case k.Retired():
					state = "retired"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n",
					k.ID, state, k.CreatedAt.Local().Format(time.RFC3339), k.Cursor, k.PublishedThrough)
			}
			return tw.Flush()
		},
	}
}

func tokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Print the token to broadcast now",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			now := time.Now()
			if _, rotated, err := appCtx.Keys.RotateIfDue(passphrase, now); err != nil {
				return err
			} else if rotated {
				appCtx.Log.Info("key rotated before issuing token")
			}
			tok, idx, err := appCtx.Keys.NextToken(passphrase, now)
			if err != nil {
				return err
			}
			out(cmd, "%s %d\n", tok, idx)
			return nil
		},
	}
}
