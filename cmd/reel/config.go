package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/reel/internal/api"
	"github.com/jackzampolin/reel/internal/config"
	"github.com/jackzampolin/reel/internal/home"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the reel configuration",
}

var configForce bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Long: `Write a default config file to ~/.reel/config.yaml (or --config).

API keys are written as ${OPENAI_API_KEY} and ${LEONARDO_API_KEY} references
and resolved from the environment or a .env file when the server starts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := getHome()
		if err != nil {
			return err
		}
		path := cfgFile
		if path == "" {
			path = h.ConfigPath()
		}
		if _, err := os.Stat(path); err == nil && !configForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := getHome()
		if err != nil {
			return err
		}
		cm, err := config.NewManager(configPath(h))
		if err != nil {
			return err
		}
		return api.Output(cm.Get())
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing config file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

// configPath returns --config, or the home config file when it exists.
// Empty means viper searches ./config.yaml and ~/.reel/config.yaml.
func configPath(h *home.Dir) string {
	if cfgFile != "" {
		return cfgFile
	}
	if homeDir != "" && h.ConfigExists() {
		return h.ConfigPath()
	}
	return ""
}
