package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Charliesj0129/pixAV/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample PixAV configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/pixav/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  pixav config init

  # Initialize with custom path
  pixav config init --config /etc/pixav/config.yaml

  # Force overwrite existing config
  pixav config init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	// Get config path from parent's persistent flag
	configFile, _ := cmd.Flags().GetString("config")

	var configPath string
	var err error

	if configFile != "" {
		// Use custom path
		err = config.InitConfigToPath(configFile, initForce)
		configPath = configFile
	} else {
		// Use default path
		configPath, err = config.InitConfig(initForce)
	}

	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file: set your database, Redis and media paths")
	fmt.Println("  2. Apply the database schema with: pixav migrate")
	fmt.Println("  3. Add upload accounts with: pixav accounts add")
	fmt.Println("  4. Start the pipeline with: pixav start")
	fmt.Printf("  5. Or specify custom config: pixav start --config %s\n", configPath)

	return nil
}
