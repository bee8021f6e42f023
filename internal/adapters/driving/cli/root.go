// Package cli implements the chatvault command-line interface.
package cli

import (
	"github.com/spf13/cobra"
)

// version is the CLI version, overridable at build time with
// -ldflags "-X .../cli.version=...".
var version = "0.3.0"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "chatvault",
	Short: "Archive and search conversations",
	Long: `chatvault mirrors conversations from a rate-limited messaging source
into a local archive: messages are deduplicated, media is normalized into
canonical formats, and everything is full-text searchable across Latin
and CJK scripts.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default ~/.chatvault/chatvault.toml)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
