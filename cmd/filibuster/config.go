package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/filibuster-io/filibuster-go/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the configuration file without starting the control plane.
Checks YAML/TOML syntax and required fields.`,
	RunE: runConfigValidate,
}

func init() {
	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigValidate(_ *cobra.Command, _ []string) error {
	configPath := cfgFile
	if configPath == "" {
		configPath = findConfigFile()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("✗ Config validation failed: %s\n", err)
		return err
	}

	if err := cfg.Validate(); err != nil {
		fmt.Printf("✗ Config validation failed: %s\n", err)
		return err
	}

	if _, err := os.Stat(cfg.Catalog.Path); err != nil {
		fmt.Printf("✗ Config validation failed: catalog.path %s: %s\n", cfg.Catalog.Path, err)
		return err
	}

	fmt.Printf("✓ %s is valid\n", configPath)

	return nil
}

// findConfigFile searches for the config file in default locations:
// the current directory, then ~/.config/filibuster/.
func findConfigFile() string {
	if _, err := os.Stat(defaultConfigFile); err == nil {
		return defaultConfigFile
	}

	home, err := os.UserHomeDir()
	if err == nil && home != "" {
		p := filepath.Join(home, ".config", "filibuster", defaultConfigFile)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return defaultConfigFile
}
