package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kozaktomas/face-index/internal/facematch"
	"github.com/kozaktomas/face-index/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch <folder-path> [folder-path...]",
	Short: "Index images as they appear in folders",
	Long: `Watch folders and index every image that is created or changed.
Removing an image removes its id from the index.

Example:
  face-index watch ./incoming
  face-index watch -r --sync ./faces`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().BoolP("recursive", "r", false, "Watch subdirectories too")
	watchCmd.Flags().Bool("sync", false, "Index images already present before watching")
	watchCmd.Flags().Bool("keep-removed", false, "Do not remove ids when their image is deleted")
}

func runWatch(cmd *cobra.Command, args []string) error {
	recursive := mustGetBool(cmd, "recursive")
	syncExisting := mustGetBool(cmd, "sync")
	keepRemoved := mustGetBool(cmd, "keep-removed")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	for _, dir := range args {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("cannot access folder %s: %w", dir, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("%s is not a directory", dir)
		}
	}

	ctx, stop := signalContext(cmd)
	defer stop()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	onIndex := func(path string) {
		id := facematch.IDFromFilename(path, cfg.ASCIIIDs)
		data, err := os.ReadFile(path)
		if err != nil {
			a.logger.Warn("failed to read image", zap.String("path", path), zap.Error(err))
			return
		}
		res, err := a.pipeline.Index(ctx, id, data)
		switch {
		case errors.Is(err, facematch.ErrNoFace):
			fmt.Printf("No face: %s\n", path)
		case err != nil:
			fmt.Printf("Failed: %s: %v\n", path, err)
		default:
			fmt.Printf("%s: %s\n", res, id)
		}
	}
	var onRemove func(string)
	if !keepRemoved {
		onRemove = func(path string) {
			id := facematch.IDFromFilename(path, cfg.ASCIIIDs)
			if _, err := a.pipeline.Delete(ctx, id); err != nil {
				fmt.Printf("Failed to delete %s: %v\n", id, err)
				return
			}
			fmt.Printf("deleted: %s\n", id)
		}
	}

	w := watcher.New(args, recursive, onIndex, onRemove, watcher.WithLogger(a.logger))
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer w.Stop()

	if syncExisting {
		w.SyncExisting()
	}

	fmt.Printf("Watching %d folder(s). Press Ctrl+C to stop\n", len(args))
	<-ctx.Done()
	return nil
}
