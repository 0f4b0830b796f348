// Command adotrack administers the Azure DevOps tracker: connection
// settings, tenant overrides, connectivity checks and ad-hoc build
// resolution.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quayside/adotrack/internal/config"
)

// Version is set at build time
var Version = "dev"

var cfg *config.Config

func main() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "adotrack",
	Short: "Azure DevOps work item tracker administration",
	Long: `adotrack manages the Azure DevOps tracker: the connection settings
and tenant overrides it resolves credentials from, plus connectivity
checks and ad-hoc resolution of a build's work item links.`,
	Version:      Version,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(overrideCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(resolveCmd)
}
