package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var replaceCmd = &cobra.Command{
	Use:   "replace <id> <image>",
	Short: "Replace the indexed face of an id",
	Long: `Detect the face in the image and overwrite the vector stored under id.

Example:
  face-index replace alice ./alice-2024.jpg`,
	Args: cobra.ExactArgs(2),
	RunE: runReplace,
}

func init() {
	rootCmd.AddCommand(replaceCmd)
}

func runReplace(cmd *cobra.Command, args []string) error {
	id, imagePath := args[0], args[1]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	ctx, stop := signalContext(cmd)
	defer stop()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	resp, err := a.pipeline.Replace(ctx, id, data)
	if err != nil {
		return err
	}
	fmt.Printf("Vector updated successfully: %s (%d dimensions)\n", resp.ID, resp.Dimension)
	return nil
}
