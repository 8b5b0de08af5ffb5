package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/BadgerOps/jarsync/internal/config"
	"github.com/BadgerOps/jarsync/internal/engine"
	"github.com/BadgerOps/jarsync/internal/store"
	charmlog "github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgPath      string
	manifestPath string
	logLevel     string
	logFormat    string
	quiet        bool
	globalCfg    *config.Config
	logger       *slog.Logger

	// Global components
	globalStore *store.Store
)

// errItemFailures marks a run that finished with per-item failures.
var errItemFailures = errors.New("one or more items failed")

// initializeComponents opens the run history store when one is configured
func initializeComponents() error {
	if globalCfg == nil {
		return fmt.Errorf("config not loaded")
	}

	closeStore()
	if globalCfg.Store.DBPath == "" {
		logger.Debug("run history disabled")
		return nil
	}
	st, err := store.New(globalCfg.Store.DBPath, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	globalStore = st
	return nil
}

// newManager builds the engine from the effective config. Commands call it
// after applying their own flag overrides.
func newManager() (*engine.Manager, error) {
	if globalCfg == nil {
		return nil, fmt.Errorf("config not loaded")
	}
	return engine.NewManager(globalCfg, globalStore, logger)
}

// output is where summaries go; --quiet discards them.
func output(cmd *cobra.Command) io.Writer {
	if quiet {
		return io.Discard
	}
	return cmd.OutOrStdout()
}

// progressPrinter writes one line per finished item, e.g.
// "[3/20] org.openjfx:javafx-base [UPDATE] 21 -> 22", plus an indented
// byte count for long-running downloads.
func progressPrinter(w io.Writer) engine.ProgressFunc {
	return func(p engine.Progress) {
		if p.Transfer {
			total := "?"
			if p.BytesTotal > 0 {
				total = humanize.IBytes(uint64(p.BytesTotal))
			}
			fmt.Fprintf(w, "      %s %s / %s\n", p.Item, humanize.IBytes(uint64(p.Bytes)), total)
			return
		}
		fmt.Fprintf(w, "[%d/%d] %s [%s] %s\n", p.Completed, p.Total, p.Item, strings.ToUpper(p.Status), p.Detail)
	}
}

// shouldSkipComponentInit checks if a command should skip component initialization
func shouldSkipComponentInit(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "help", "version", "config":
			return true
		}
	}
	return false
}

// closeStore closes the global store connection
func closeStore() {
	if globalStore != nil {
		if err := globalStore.Close(); err != nil {
			logger.Error("failed to close store", "error", err)
		}
		globalStore = nil
	}
}

// NewRootCmd creates and returns the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jarsync",
		Short: "Maven dependency updates, downloads and offline packaging",
		Long: `jarsync reads the dependencies declared in a Maven pom.xml, checks a remote
repository for newer versions, downloads the runtime artifacts into a bucketed
local store, and packs that store into size-bounded zip parts for transfer to
offline machines.`,
		Example: `  jarsync check
  jarsync fetch --workers 4
  jarsync pack --split-size 45MiB
  jarsync verify --from /mnt/usb --extract-to .
  jarsync status --limit 5`,
		Version:      "0.1.0",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(cmd.ErrOrStderr())

			if cfgPath == "" {
				var err error
				cfgPath, err = config.FindConfigFile()
				if err != nil {
					logger.Debug("config file not found, using defaults", "error", err)
				}
			}

			if cfgPath != "" {
				var err error
				globalCfg, err = config.Load(cfgPath)
				if err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
			} else {
				globalCfg = config.DefaultConfig()
			}

			if manifestPath != "" {
				globalCfg.Project.Manifest = manifestPath
			}

			logger.Debug("config loaded", "path", cfgPath, "manifest", globalCfg.Project.Manifest)

			if !shouldSkipComponentInit(cmd) {
				if err := initializeComponents(); err != nil {
					return fmt.Errorf("failed to initialize components: %w", err)
				}
			}

			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			closeStore()
		},
	}

	cmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (auto-discovered if not specified)")
	cmd.PersistentFlags().StringVar(&manifestPath, "manifest", "", "override project.manifest (path to pom.xml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text or json)")
	cmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress non-error output")

	cmd.AddCommand(
		newCheckCmd(),
		newFetchCmd(),
		newPackCmd(),
		newVerifyCmd(),
		newStatusCmd(),
		newConfigCmd(),
	)

	return cmd
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupLogging initializes the slog logger based on flags. Text output goes
// through charmbracelet/log, JSON through the standard handler.
func setupLogging(w io.Writer) {
	level := parseLevel(logLevel)
	if quiet {
		level = slog.LevelError
	}

	var handler slog.Handler
	if strings.ToLower(logFormat) == "json" {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	} else {
		handler = charmlog.NewWithOptions(w, charmlog.Options{
			ReportTimestamp: true,
			TimeFormat:      time.TimeOnly,
			Level:           charmlog.Level(level),
		})
	}

	logger = slog.New(handler)
	slog.SetDefault(logger)
}
