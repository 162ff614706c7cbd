// Package cli implements the jdemotion command line.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ayusman/jdemotion/internal/config"
)

// Version is the application version.
const Version = "0.1.0"

var (
	configPath string
	logLevel   string
	dbPath     string
	robotAddr  string

	// cfg is the effective configuration, set before any subcommand runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "jdemotion",
	Short:         "Send facial emotion labels to an ARC robot controller",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		applyFlags(cmd, c)
		if err := config.Validate(c); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		level, err := config.ParseLevel(c.LogLevel)
		if err != nil {
			return err
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		cfg = c
		return nil
	},
}

// Execute runs the root command. Ctrl+C or SIGTERM cancels the command context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file (default: built-in defaults)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Dispatch audit database (empty string disables it)")
	rootCmd.PersistentFlags().StringVar(&robotAddr, "robot", "", "Robot controller address host:port")
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// applyFlags overrides file values with explicitly set flags.
func applyFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		c.LogLevel = logLevel
	}
	if flags.Changed("db") {
		c.Store.Path = dbPath
	}
	if flags.Changed("robot") {
		c.Link.Address = robotAddr
	}
}
