package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/helian-labs/chatvault/internal/core/domain"
)

var (
	syncConversation int64
	syncStatus       bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one ingestion round",
	Long: `Fetches new messages from the configured source and archives them.
Without flags, every active conversation is synced once. With --status,
no ingestion runs and the per-conversation sync state is printed instead.`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().Int64Var(&syncConversation, "conversation", 0, "sync only this conversation ID")
	syncCmd.Flags().BoolVar(&syncStatus, "status", false, "print sync state instead of ingesting")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	app, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer app.Close()

	if syncStatus {
		statuses, err := app.ingestor.Status(ctx)
		if err != nil {
			return fmt.Errorf("read sync status: %w", err)
		}
		return outputSyncStatus(cmd, statuses)
	}

	if syncConversation != 0 {
		if err := app.ingestor.SyncConversation(ctx, syncConversation); err != nil {
			return fmt.Errorf("sync conversation %d: %w", syncConversation, err)
		}
		cmd.Printf("Conversation %d is caught up.\n", syncConversation)
		return nil
	}

	if err := app.ingestor.Round(ctx); err != nil {
		return fmt.Errorf("ingestion round: %w", err)
	}
	cmd.Println("Round complete.")
	return nil
}

func outputSyncStatus(cmd *cobra.Command, statuses []domain.SyncStatus) error {
	if len(statuses) == 0 {
		cmd.Println("No active conversations.")
		return nil
	}

	for _, s := range statuses {
		state := "ok"
		if s.Degraded {
			state = "degraded"
		}
		last := "never"
		if !s.LastSuccessAt.IsZero() {
			last = s.LastSuccessAt.Format("2006-01-02 15:04:05")
		}
		cmd.Printf("  %d  position=%d  last-success=%s  failures=%d  [%s]\n",
			s.ConversationID, s.Position, last, s.ConsecutiveFailures, state)
	}
	return nil
}
