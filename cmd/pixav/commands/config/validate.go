package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Charliesj0129/pixAV/pkg/config"
	"github.com/Charliesj0129/pixAV/pkg/upload"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the PixAV configuration file.

Checks for syntax errors, missing required fields, and invalid values.

Examples:
  # Validate default config
  pixav config validate

  # Validate specific config file
  pixav config validate --config /etc/pixav/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	// Get config path from parent's persistent flag
	configPath, _ := cmd.Flags().GetString("config")

	// Load and validate configuration
	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	// Determine path for display
	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	// Additional validation checks
	var warnings []string

	if !cfg.Orchestrator.Enabled && !cfg.Download.Enabled && !cfg.Upload.Enabled && !cfg.Resolver.Enabled {
		warnings = append(warnings, "No roles enabled - 'pixav start' will refuse to run")
	}
	if cfg.Download.Enabled && cfg.Download.Torrent.URL == "" {
		warnings = append(warnings, "Download role enabled but torrent client URL not configured")
	}
	if cfg.Upload.Enabled && cfg.Upload.Mode == upload.ModeLocal {
		warnings = append(warnings, "Upload mode is 'local' - share links will only resolve on this host")
	}
	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		warnings = append(warnings, "Telemetry enabled but no OTLP endpoint configured")
	}
	if !cfg.Metrics.Enabled {
		warnings = append(warnings, "Metrics collection disabled - /metrics will not be served")
	}

	// Print results
	fmt.Printf("Configuration file: %s\n", displayPath)
	fmt.Println("Validation: OK")

	if len(warnings) > 0 {
		fmt.Println("\nWarnings:")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
	}

	fmt.Printf("\nConfiguration summary:\n")
	fmt.Printf("  Database type:   %s\n", cfg.Database.Type)
	fmt.Printf("  Broker URL:      %s\n", cfg.Broker.URL)
	fmt.Printf("  Resolver port:   %d\n", cfg.Resolver.Port)
	fmt.Printf("  Upload mode:     %s\n", cfg.Upload.Mode)
	fmt.Printf("  Log level:       %s\n", cfg.Logging.Level)

	return nil
}
