package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	githubToken string
	repoPath    string
)

var rootCmd = &cobra.Command{
	Use:   "jules-warden",
	Short: "jules-warden is the command-line interface for the Jules Warden reviewer.",
	Long:  `A CLI for running Jules Warden code reviews inside GitHub Actions workflows, where the event payload and repository checkout are provided by the runner.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() { //nolint:gochecknoinits // Cobra's init function for command registration
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&githubToken, "github-token", "t", "", "GitHub token (defaults to GITHUB_TOKEN)")
	rootCmd.PersistentFlags().StringVarP(&repoPath, "repo-path", "p", "", "Path to the repository checkout (defaults to GITHUB_WORKSPACE)")

	if err := viper.BindPFlag("GITHUB_TOKEN", rootCmd.PersistentFlags().Lookup("github-token")); err != nil {
		slog.Error("Error binding flag", "error", err)
		os.Exit(1)
	}
}

// initConfig reads in ENV variables if set.
func initConfig() {
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("JULES_BASE_URL", "https://jules.googleapis.com/v1alpha")
	viper.SetDefault("JULES_MODEL", "jules-v1")
	viper.SetDefault("DIFF_LIMIT_BYTES", 50000)
}
