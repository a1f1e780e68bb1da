package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Superego-Agent/superego-lgdemo-sub000/cli"
)

// Set via ldflags at build time.
var version = "dev"

func main() {
	// Load .env before any command reads configuration. A missing file is
	// fine; real deployments set environment variables directly.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "superego",
	Short: "Policy-gated conversational pipeline",
	Long:  "superego — run prompts through a policy gate before a responding agent, serve the pipeline over HTTP, or compare gate configurations side by side.",
	// SilenceUsage prevents printing usage on every error
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to YAML config file")

	rootCmd.Version = version
	rootCmd.SetVersionTemplate(fmt.Sprintf("superego version %s\n", version))

	rootCmd.AddCommand(cli.NewServeCmd())
	rootCmd.AddCommand(cli.NewChatCmd())
	rootCmd.AddCommand(cli.NewCompareCmd())
}
