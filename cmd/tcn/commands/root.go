package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"tcncore/internal/app"
)

const passphraseEnv = "TCN_PASSPHRASE"

var (
	home       string
	configPath string
	passphrase string
	relayURL   string
	logLevel   string
	logFormat  string

	appCtx *app.Wire
)

// Execute runs the CLI.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newRoot().ExecuteContext(ctx)
}

func newRoot() *cobra.Command {
	root := &cobra.Command{
		Use:          "tcn",
		Short:        "Temporary Contact Number exposure notification",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log, err := app.NewLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			w, err := app.NewWire(cfg, log)
			if err != nil {
				return err
			}
			appCtx = w
			if passphrase == "" {
				passphrase = os.Getenv(passphraseEnv)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if appCtx == nil {
				return nil
			}
			return appCtx.Close()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&home, "home", "", "data dir (default ~/.tcn)")
	pf.StringVar(&configPath, "config", "", "config file (default <home>/config.yaml)")
	pf.StringVarP(&passphrase, "passphrase", "p", "", "passphrase protecting key seeds (or $"+passphraseEnv+")")
	pf.StringVar(&relayURL, "relay", "", "relay base URL (e.g. http://127.0.0.1:8080)")
	pf.StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	pf.StringVar(&logFormat, "log-format", "", "text or json")

	root.AddCommand(
		initCmd(), rotateCmd(), keysCmd(), tokenCmd(),
		recordCmd(), reportCmd(), syncCmd(), processCmd(),
		alertsCmd(), readCmd(), dismissCmd(), pruneCmd(),
	)
	return root
}

// loadConfig reads the config file and applies explicitly set flags over it.
func loadConfig(cmd *cobra.Command) (*app.Config, error) {
	pf := cmd.Flags()
	base := app.DefaultConfig()
	if pf.Changed("home") {
		base.Home = home
	}

	path, explicit := configPath, pf.Changed("config")
	if !explicit {
		path = filepath.Join(base.Home, app.ConfigFile)
	}
	cfg, err := app.LoadConfig(path, !explicit)
	if err != nil {
		return nil, err
	}
	applyFlagOverrides(cfg, pf.Changed)
	return cfg, nil
}

func applyFlagOverrides(cfg *app.Config, changed func(string) bool) {
	if changed("home") {
		cfg.Home = home
	}
	if changed("relay") {
		cfg.RelayURL = relayURL
	}
	if changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if changed("log-format") {
		cfg.LogFormat = logFormat
	}
}

func requirePassphrase() error {
	if passphrase == "" {
		return errors.New("passphrase required (-p or $" + passphraseEnv + ")")
	}
	return nil
}

func out(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
