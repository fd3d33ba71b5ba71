package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/reel/internal/api"
	"github.com/jackzampolin/reel/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "reel",
	Short: "Storyboard generation for short-form video",
	Long: `Reel drafts short-form video scripts with a language model and turns
each scene into an image with an image generation provider.

The pipeline for a scene:
  - Compose an image prompt and a video prompt from the scene text,
    the story's character and the scene's directives
  - Submit a generation job to the image provider
  - Poll the job until it completes, fails or runs out of attempts
  - Store the image on the scene only when it succeeded`,
	Version:      version.GitRelease,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.reel/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "reel home directory (default: ~/.reel)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}
