package main

import (
	"fmt"
	"os"

	"amosync/pkg/config"
	errs "amosync/pkg/errors"
	"amosync/pkg/ui"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configForce bool

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage amosync configuration files.

Configuration is resolved from:
  - Command line flags (highest priority)
  - Environment variables (AMOSYNC_*)
  - Configuration file
  - Default values (lowest priority)`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the default values",
	Long: `Write a configuration file holding every option at its default value.

The file goes to --config when given, otherwise to
~/.config/amosync/config.yaml.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after flags, environment, file and defaults are
merged. Object store secrets are masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing file")

	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd, configValidateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = config.DefaultPath()
	}

	if _, err := os.Stat(path); err == nil && !configForce {
		return errs.New(errs.ErrorTypeConfig, fmt.Sprintf("%s already exists, pass --force to overwrite", path))
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}

	ui.PrintSuccess(os.Stdout, "Configuration file created: "+path)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Set storage.backend and storage.root or storage.bucket")
	fmt.Println("2. Run 'amosync config validate' to check the configuration")
	fmt.Println("3. Start mirroring with 'amosync sync <camera-id>'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}

	display := *cfg
	display.Storage.AccessKeyID = maskSecret(display.Storage.AccessKeyID)
	display.Storage.SecretAccessKey = maskSecret(display.Storage.SecretAccessKey)

	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("format configuration: %w", err)
	}

	fmt.Print(string(data))
	if quiet {
		return nil
	}

	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (AMOSYNC_*)")
	if configFile != "" {
		fmt.Printf("3. Configuration file: %s\n", configFile)
	} else {
		fmt.Println("3. Configuration file: first of .amosync.yaml, " + config.DefaultPath())
	}
	fmt.Println("4. Default values")
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}

	var warnings []string
	if cfg.Storage.Backend == config.BackendLocal {
		if err := os.MkdirAll(cfg.Storage.Root, 0755); err != nil {
			return errs.Wrap(errs.ErrorTypeConfig, err, "cannot create storage root")
		}
	}
	if cfg.RateLimit.RequestsPerSecond == 0 {
		warnings = append(warnings, "rate limiting is disabled")
	}
	if cfg.Sync.Workers > 16 {
		warnings = append(warnings, fmt.Sprintf("%d workers may overload the AMOS server", cfg.Sync.Workers))
	}

	for _, w := range warnings {
		ui.PrintWarning(os.Stdout, w)
	}
	ui.PrintSuccess(os.Stdout, "Configuration is valid")

	fmt.Println("\nConfiguration summary:")
	ui.PrintInfo(os.Stdout, "  Server", cfg.Upstream.BaseURL)
	ui.PrintInfo(os.Stdout, "  Storage", storageLocation(cfg.Storage))
	ui.PrintInfo(os.Stdout, "  Workers", fmt.Sprintf("%d", cfg.Sync.Workers))
	ui.PrintInfo(os.Stdout, "  Rate limit", fmt.Sprintf("%.1f requests/second", cfg.RateLimit.RequestsPerSecond))
	ui.PrintInfo(os.Stdout, "  Log level", cfg.Logging.Level)
	return nil
}

func storageLocation(s config.StorageConfig) string {
	switch s.Backend {
	case config.BackendS3:
		return fmt.Sprintf("s3://%s/%s", s.Bucket, s.Prefix)
	case config.BackendGCS:
		return fmt.Sprintf("gs://%s/%s", s.Bucket, s.Prefix)
	default:
		return s.Root
	}
}

func maskSecret(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) > 8:
		return s[:4] + "..." + s[len(s)-4:]
	default:
		return "***"
	}
}
