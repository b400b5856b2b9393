// Package main provides the entry point for the Nightcrawler job-fit assistant.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jonathan/nightcrawler/internal/config"
)

var (
	configFile string
	verbose    bool
	logJSON    bool
)

var rootCmd = &cobra.Command{
	Use:   "nightcrawler",
	Short: "Job-fit assistant for LinkedIn job postings",
	Long: `Nightcrawler adds a "See Match" button to LinkedIn job pages and asks an LLM
whether the posting fits your stored preferences. It also serves the settings
API and can optimize preference text or match saved postings from the CLI.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", config.DefaultFile, "Path to configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Emit logs as JSON")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
