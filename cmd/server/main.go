package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/DYArchive/distributed-youtube-tracker/internal/config"
	"github.com/DYArchive/distributed-youtube-tracker/internal/db"
	"github.com/DYArchive/distributed-youtube-tracker/internal/middleware"
)

const programName = "dyt-api"

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	globalFlags = struct {
		debug bool
	}{}
	configFile string
	cfg        *config.Config
)

func commonRun() {
	level := cfg.LogLevel
	if globalFlags.debug {
		level = "debug"
	}
	middleware.InitLogger(level, programName)

	_, err := maxprocs.Set(maxprocs.Logger(func(format string, v ...any) {
		log.Info().Msgf(format, v...)
	}))
	if err != nil {
		log.Error().Err(err).Msg("set GOMAXPROCS")
		os.Exit(1)
	}
	log.Info().Str("version", version).Str("env", cfg.Environment).Msg("starting " + programName)
}

func openPool(ctx context.Context) (*pgxpool.Pool, error) {
	return db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	})
}

func main() {
	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "Distributed YouTube archive tracker API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveRun(cmd.Context())
		},
	}

	// Global flags
	rootCmd.PersistentFlags().
		BoolVarP(&globalFlags.debug, "debug", "D", false, "enable debug logging")
	rootCmd.PersistentFlags().
		StringVar(&configFile, "config", "", "path to config file")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
		commonRun()
		return nil
	}

	// Subcommands
	rootCmd.AddCommand(serveCommand())
	rootCmd.AddCommand(importCommand())
	rootCmd.AddCommand(credentialCommand())
	rootCmd.AddCommand(schemaCommand())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
