package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vector-im/riot-provision/internal/config"
	"github.com/vector-im/riot-provision/internal/provision"
	"github.com/vector-im/riot-provision/internal/utils/logger"
)

// Logging command flags
var (
	logLevel string
	verbose  bool
)

// createRootCommand creates the riot-provision root command
func createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "riot-provision [flags] [version]",
		Short: "fetch, verify and package a riot-web release for the desktop shell",
		Long: `riot-provision downloads a versioned riot-web release archive,
optionally verifies its detached PGP signature, extracts it under the
deploys directory, injects a local config.json and repackages the result
into webapp.tar.gz for the desktop shell.

Every step skips work whose output already exists, so a failed run can
simply be re-invoked.`,
		Args:               cobra.ArbitraryArgs,
		FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initLogger(cmd)
		},
		RunE: executeProvision,
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false,
		"Shorthand for --log-level debug")
	config.RegisterFlags(rootCmd.Flags())

	return rootCmd
}

// resolveRequestedLogLevel prefers the explicit --log-level flag and falls
// back to debug when --verbose was set.
func resolveRequestedLogLevel(cmd *cobra.Command) string {
	if logLevel != "" {
		return logLevel
	}
	if cmd == nil {
		return ""
	}
	if set, err := cmd.Flags().GetBool("verbose"); err == nil && set {
		return "debug"
	}
	return ""
}

// initLogger builds the shared Zap logger from the requested level.
func initLogger(cmd *cobra.Command) error {
	level := zapcore.InfoLevel
	if requested := resolveRequestedLogLevel(cmd); requested != "" {
		parsed, err := zapcore.ParseLevel(requested)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", requested, err)
		}
		level = parsed
	}

	zcfg := zap.NewDevelopmentConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	z, err := zcfg.Build()
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	logger.Init(z.Sugar())
	return nil
}

// executeProvision handles the root command execution logic. The version is
// resolved from the raw argv, not cobra's positionals: pflag drops unknown
// flags and swallows the token after them, which would lose an explicit
// version given after an unrecognized flag.
func executeProvision(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Resolve(cmd.Flags(), os.Args[1:])
	if err != nil {
		return err
	}
	return provision.New(cfg).Run()
}

func main() {
	if err := createRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
