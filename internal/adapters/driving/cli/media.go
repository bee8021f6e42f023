package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var mediaOut string

var mediaCmd = &cobra.Command{
	Use:   "media",
	Short: "Work with archived media assets",
}

var mediaGetCmd = &cobra.Command{
	Use:   "get [asset-id]",
	Short: "Write an asset's normalized bytes to a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runMediaGet,
}

func init() {
	mediaGetCmd.Flags().StringVarP(&mediaOut, "out", "o", "", "output file path (default: asset ID plus extension)")
	mediaCmd.AddCommand(mediaGetCmd)
	rootCmd.AddCommand(mediaCmd)
}

func runMediaGet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	assetID := args[0]

	app, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer app.Close()

	data, format, err := app.query.GetMedia(ctx, assetID)
	if err != nil {
		return fmt.Errorf("get media %s: %w", assetID, err)
	}

	out := mediaOut
	if out == "" {
		out = assetID + extensionFor(format)
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}

	cmd.Printf("Wrote %d bytes (%s) to %s\n", len(data), format, out)
	return nil
}

func extensionFor(format string) string {
	switch format {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}
