package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/helian-labs/chatvault/internal/core/domain"
)

var conversationsCmd = &cobra.Command{
	Use:   "conversations",
	Short: "List registered conversations",
	Long: `Lists the conversations registered for ingestion. Conversations are
discovered from the source automatically at the start of each sync round.`,
	RunE: runConversations,
}

func init() {
	rootCmd.AddCommand(conversationsCmd)
}

func runConversations(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	app, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer app.Close()

	active, err := app.store.Conversations().ListActive(ctx)
	if err != nil {
		return fmt.Errorf("listing conversations: %w", err)
	}

	return outputConversations(cmd, active)
}

func outputConversations(cmd *cobra.Command, conversations []domain.Conversation) error {
	if len(conversations) == 0 {
		cmd.Println("No conversations registered. Run a sync to discover them.")
		return nil
	}

	for _, c := range conversations {
		title := c.Title
		if title == "" {
			title = "(untitled)"
		}
		cmd.Printf("  %d  %-8s %s\n", c.ID, c.Kind, title)
	}
	return nil
}
