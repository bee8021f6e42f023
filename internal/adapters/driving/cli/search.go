package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/helian-labs/chatvault/internal/core/ports/driving"
)

var (
	searchConversation int64
	searchTopic        int64
	searchFrom         string
	searchUntil        string
	searchLimit        int
	searchCursor       string
	searchJSON         bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search archived messages",
	Long: `Searches the full-text index over archived messages.
The query text matches both Latin and CJK content; an empty query with
filters lists matching messages newest first.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().Int64Var(&searchConversation, "conversation", 0, "restrict to one conversation ID")
	searchCmd.Flags().Int64Var(&searchTopic, "topic", 0, "restrict to one topic ID")
	searchCmd.Flags().StringVar(&searchFrom, "from", "", "only messages at or after this time (RFC 3339 or YYYY-MM-DD)")
	searchCmd.Flags().StringVar(&searchUntil, "until", "", "only messages before this time (RFC 3339 or YYYY-MM-DD)")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "maximum number of results per page")
	searchCmd.Flags().StringVar(&searchCursor, "cursor", "", "resume from a previous page's cursor")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	app, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer app.Close()

	req := driving.SearchRequest{
		ConversationID: searchConversation,
		TopicID:        searchTopic,
		PageSize:       searchLimit,
		Cursor:         searchCursor,
	}
	if len(args) == 1 {
		req.Text = args[0]
	}
	if req.FromUnix, err = parseTimeFlag(searchFrom); err != nil {
		return fmt.Errorf("invalid --from: %w", err)
	}
	if req.UntilUnix, err = parseTimeFlag(searchUntil); err != nil {
		return fmt.Errorf("invalid --until: %w", err)
	}

	page, err := app.query.Search(ctx, req)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, page)
	}
	return outputSearchTable(cmd, page)
}

// parseTimeFlag accepts RFC 3339 or a bare date and returns unix seconds,
// zero for an empty flag.
func parseTimeFlag(value string) (int64, error) {
	if value == "" {
		return 0, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.Unix(), nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return 0, fmt.Errorf("expected RFC 3339 or YYYY-MM-DD, got %q", value)
	}
	return t.Unix(), nil
}

func outputSearchJSON(cmd *cobra.Command, page *driving.SearchPage) error {
	data, err := json.MarshalIndent(page, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, page *driving.SearchPage) error {
	if len(page.Results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Printf("Results (%d total):\n", page.Total)
	cmd.Println()
	for i := range page.Results {
		msg := page.Results[i].Message
		cmd.Printf("  [%d] %s in %d at %s (%.2f)\n",
			i+1, msg.Author, msg.ConversationID,
			msg.Timestamp.Format("2006-01-02 15:04"), page.Results[i].Score)
		if page.Results[i].Snippet != "" {
			cmd.Printf("      %s\n", page.Results[i].Snippet)
		}
		if len(msg.MediaRefs) > 0 {
			cmd.Printf("      Media: %d attachment(s)\n", len(msg.MediaRefs))
		}
		cmd.Println()
	}

	if page.NextCursor != "" {
		cmd.Printf("More results: --cursor %s\n", page.NextCursor)
	}

	return nil
}
