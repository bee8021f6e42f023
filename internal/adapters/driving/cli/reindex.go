package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the search index from the archive",
	Long: `Repopulates the full-text index from the message archive. The index
is a cache of the metadata store; run this after index corruption or loss.
Superseded message versions are not reindexed.`,
	RunE: runReindex,
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}

func runReindex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	app, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer app.Close()

	indexed, err := app.reindexer.Rebuild(ctx)
	if err != nil {
		return fmt.Errorf("rebuilding index: %w", err)
	}

	cmd.Printf("Reindexed %d message(s).\n", indexed)
	return nil
}
