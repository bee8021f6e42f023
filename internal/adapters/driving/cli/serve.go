package cli

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Continuously ingest on a fixed interval",
	Long: `Runs ingestion rounds until interrupted. Each round syncs every
active conversation; the interval between rounds comes from the
ingest.round_interval config key.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer app.Close()

	interval := app.cfg.Ingest.RoundInterval.Std()
	app.log.Info("ingestion loop starting", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := app.ingestor.Round(ctx); err != nil {
			if ctx.Err() != nil {
				app.log.Info("ingestion loop stopping")
				return nil
			}
			return fmt.Errorf("ingestion round: %w", err)
		}

		select {
		case <-ctx.Done():
			app.log.Info("ingestion loop stopping")
			return nil
		case <-ticker.C:
		}
	}
}
