package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"

	"amosync/pkg/amos"
	"amosync/pkg/config"
	errs "amosync/pkg/errors"
	"amosync/pkg/logger"
	"amosync/pkg/ui"
	"github.com/spf13/cobra"
)

var (
	// Version information
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	logFile    string
	baseURL    string
	noColor    bool
	quiet      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "amosync",
	Short: "Mirror AMOS webcam archives into local or object storage",
	Long: `amosync mirrors the AMOS (Archive of Many Outdoor Scenes) webcam archive.

For each camera it writes the camera record as info.json and every image of
every monthly archive inside the camera's activity window. Runs are
idempotent: re-running a sync only rewrites what is already there.

Destinations:
  - a local directory (default)
  - an S3 or S3-compatible bucket
  - a Google Cloud Storage bucket`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			ui.SetPlain(true)
		}
		logger.Version = version
	},
}

// Execute runs the CLI. Configuration errors exit with 2, other failures with 1.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		ui.PrintError(os.Stderr, "Error", err)
		if errors.Is(err, errs.ErrConfig) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default: .amosync.yaml or ~/.config/amosync/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write JSON logs to this file")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "AMOS server base URL")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress everything but errors")

	rootCmd.SetVersionTemplate(`amosync {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig resolves configuration from every source and initialises the
// global logger. flags holds command flags the user set explicitly.
func loadConfig(flags map[string]interface{}) (*config.Config, error) {
	if flags == nil {
		flags = make(map[string]interface{})
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	if quiet && logLevel == "" {
		flags["log-level"] = "error"
	}
	if logFile != "" {
		flags["log-file"] = logFile
	}
	if baseURL != "" {
		flags["base-url"] = baseURL
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeConfig, err, "load configuration")
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeConfig, err, "initialise logging")
	}
	return cfg, nil
}

// newClient builds the upstream client; onResponse may be nil
func newClient(cfg *config.Config, log logger.Logger, onResponse func(int)) *amos.Client {
	opts := amos.OptionsFromConfig(cfg, log)
	opts.OnResponse = onResponse
	return amos.NewClient(opts)
}

// parseCameraID accepts a positive decimal camera id
func parseCameraID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, errs.New(errs.ErrorTypeConfig, fmt.Sprintf("invalid camera id %q", s))
	}
	return id, nil
}

// parseYearMonth validates a year and month pair from positional arguments
func parseYearMonth(yearArg, monthArg string) (int, int, error) {
	year, err := strconv.Atoi(yearArg)
	if err != nil || year < 1900 {
		return 0, 0, errs.New(errs.ErrorTypeConfig, fmt.Sprintf("invalid year %q", yearArg))
	}
	month, err := strconv.Atoi(monthArg)
	if err != nil || month < 1 || month > 12 {
		return 0, 0, errs.New(errs.ErrorTypeConfig, fmt.Sprintf("invalid month %q", monthArg))
	}
	return year, month, nil
}
