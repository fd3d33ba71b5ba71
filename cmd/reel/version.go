package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/reel/internal/api"
	"github.com/jackzampolin/reel/version"
)

// versionInfo is printed by `reel version` in the selected output format.
type versionInfo struct {
	Release    string `json:"release" yaml:"release"`
	Commit     string `json:"commit" yaml:"commit"`
	CommitDate string `json:"commit_date" yaml:"commit_date"`
	Go         string `json:"go" yaml:"go"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	RunE: func(cmd *cobra.Command, args []string) error {
		return api.Output(versionInfo{
			Release:    version.GitRelease,
			Commit:     version.GitCommit,
			CommitDate: version.GitCommitDate,
			Go:         version.GoInfo,
		})
	},
}
