package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/getsentry/sentry-go"

	"github.com/hpungsan/nosh/internal/analyzer"
	"github.com/hpungsan/nosh/internal/config"
	"github.com/hpungsan/nosh/internal/db"
	"github.com/hpungsan/nosh/internal/logging"
	"github.com/hpungsan/nosh/internal/mcp"
	"github.com/hpungsan/nosh/internal/pipeline"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"message": true, "summary": true, "period": true,
	"entries": true, "targets": true, "delete": true,
	"serve": true, "mcp": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
   _ __   ___  ___| |__
  | '_ \ / _ \/ __| '_ \
  | | | | (_) \__ \ | | |
  |_| |_|\___/|___/_| |_|

  Nutrition logging over chat

  Usage: nosh <command> [options]
         nosh serve
         nosh --help

  MCP server mode requires piped input.`)
}

// baseDir returns NOSH_HOME, or ~/.nosh when unset.
func baseDir() (string, error) {
	if dir := os.Getenv("NOSH_HOME"); dir != "" {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".nosh"), nil
}

// deps holds everything a command needs once startup succeeds.
type deps struct {
	db       *sql.DB
	cfg      *config.Config
	pipeline *pipeline.Pipeline
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion() {
		app := newCLIApp(nil)
		if err := app.Run(os.Args); err != nil {
			fail("%v", err)
		}
		return
	}

	if err := config.LoadDotEnv(".env"); err != nil {
		fail("failed to read .env: %v", err)
	}

	dir, err := baseDir()
	if err != nil {
		fail("%v", err)
	}

	// A .nosh/config.json in or above the working directory overrides the global one.
	cwd, err := os.Getwd()
	if err != nil {
		fail("could not determine working directory: %v", err)
	}
	cfg, err := config.LoadWithRepo(dir, cwd)
	if err != nil {
		fail("failed to load config: %v", err)
	}
	cfg = config.ApplyEnv(cfg)

	flush, err := logging.InitSentry(cfg.SentryDSN, os.Getenv("NOSH_ENV"))
	if err != nil {
		fail("failed to initialize sentry: %v", err)
	}
	defer flush()

	var extra []slog.Handler
	if cfg.SentryDSN != "" {
		extra = append(extra, logging.NewSentryHandler(sentry.CurrentHub()))
	}
	logger := logging.Setup(cfg.Log, extra...)

	database, err := db.Init(dir)
	if err != nil {
		fail("failed to initialize database: %v", err)
	}
	defer database.Close()
	db.ConfigurePool(database, cfg)

	gateway := analyzer.NewClient(cfg.Analyzer, analyzer.WithLogger(logger))
	d := &deps{
		db:       database,
		cfg:      cfg,
		pipeline: pipeline.New(database, cfg, gateway, pipeline.WithLogger(logger)),
	}

	// CLI mode: known subcommand
	if isCLIMode() {
		app := newCLIApp(d)
		if err := app.Run(os.Args); err != nil {
			// os.Exit skips deferred calls
			flush()
			database.Close()
			fail("%v", err)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'nosh --help' for usage.\n")
		os.Exit(1)
	}

	// MCP server mode (default)
	if err := runMCP(d); err != nil {
		flush()
		database.Close()
		fail("%v", err)
	}
}

// runMCP serves the MCP tools over stdio.
func runMCP(d *deps) error {
	if unknown := mcp.ValidateDisabledTools(d.cfg.DisabledTools); len(unknown) > 0 {
		slog.Warn("unknown tool names in disabled_tools", "tools", unknown, "valid", mcp.AllToolNames())
	}
	return mcp.Run(d.db, d.cfg, d.pipeline, Version)
}
