// Factory Data Core - device factory data service
//
// This is the main entry point. The factorydata binary serves the REST API,
// applies database migrations and mints access tokens for local testing.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// configEnvVar overrides the default configuration path.
const configEnvVar = "FACTORYDATA_CONFIG"

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCommand builds the command tree.
func newRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "factorydata",
		Short:         "Device factory data service",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "",
		"path to the configuration file (default $"+configEnvVar+" or "+defaultConfigPath+")")

	resolve := func() string { return resolveConfigPath(configPath) }

	cmd.AddCommand(newServeCommand(resolve))
	cmd.AddCommand(newMigrateCommand(resolve))
	cmd.AddCommand(newTokenCommand(resolve))
	return cmd
}

// resolveConfigPath returns the configuration file path.
// Checks the flag value, then FACTORYDATA_CONFIG, then falls back to the default.
func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if path := os.Getenv(configEnvVar); path != "" {
		return path
	}
	return defaultConfigPath
}

// commandContext returns the command's context, or a background context
// when the command runs outside ExecuteContext.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
