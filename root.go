// Command zenodo-go exports a project's data management plan to a
// Zenodo/InvenioRDM repository: it drives the OAuth2 authorization, the
// record create/version lifecycle, the three-step file upload, and
// publication.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/rdmotools/zenodo-go/internal/config"
	"github.com/rdmotools/zenodo-go/internal/hoststore"
)

// version is set at build time via ldflags.
var version = "dev"

// defaultSessionID scopes session state when no --session is given. The
// CLI is single-user, so one session per database is the common case.
const defaultSessionID = "default"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagDBPath     string
	flagSession    string
	flagVerbose    bool
	flagQuiet      bool
)

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "zenodo-go",
		Short:   "Zenodo deposition client",
		Long:    "Exports a project's data management plan to a Zenodo/InvenioRDM repository.",
		Version: version,
		// Silence Cobra's default error/usage printing — we handle it ourselves.
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&flagDBPath, "db", "", "database file path")
	cmd.PersistentFlags().StringVar(&flagSession, "session", defaultSessionID, "session identifier")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newDepositCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newProjectCmd())
	cmd.AddCommand(newSnapshotCmd())

	return cmd
}

// appEnv holds the resolved configuration and opened collaborators shared
// by the subcommands.
type appEnv struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *hoststore.DB
}

// openEnv resolves configuration, builds the logger, and opens the local
// database. The caller must Close the returned environment.
func openEnv(ctx context.Context) (*appEnv, error) {
	cli := config.CLIOverrides{
		ConfigPath: flagConfigPath,
		DBPath:     flagDBPath,
	}

	cfg, err := config.Resolve(config.ReadEnvOverrides(), cli)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger := buildLogger(cfg)

	db, err := hoststore.Open(ctx, cfg.Storage.DBPath, logger)
	if err != nil {
		return nil, err
	}

	return &appEnv{cfg: cfg, logger: logger, db: db}, nil
}

func (e *appEnv) Close() {
	if err := e.db.Close(); err != nil {
		e.logger.Warn("closing database", slog.String("error", err.Error()))
	}
}

// httpClient returns an HTTP client bounded by the configured timeout.
func (e *appEnv) httpClient() *http.Client {
	return &http.Client{Timeout: e.cfg.HTTPTimeout()}
}

// buildLogger creates an slog.Logger from the config and CLI flags.
// Config provides the baseline; --verbose and --quiet win. A text handler
// is used on a terminal, JSON otherwise, unless the config forces one.
func buildLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo

	switch cfg.Logging.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	if flagVerbose {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	format := cfg.Logging.LogFormat
	if format == "text" || (format == "" && isatty.IsTerminal(os.Stderr.Fd())) {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
