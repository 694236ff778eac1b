package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete [id...]",
	Short: "Remove ids from the index",
	Long: `Remove one or more ids from the index in a single batch.

With --dir, the ids are derived from the image file names in the folder,
which undoes a previous "index" run of the same folder.

Example:
  face-index delete alice bob
  face-index delete --dir ./faces -r`,
	RunE: runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
	deleteCmd.Flags().String("dir", "", "Delete the ids of every image in this folder")
	deleteCmd.Flags().BoolP("recursive", "r", false, "With --dir, search subdirectories too")
}

func runDelete(cmd *cobra.Command, args []string) error {
	dir := mustGetString(cmd, "dir")
	recursive := mustGetBool(cmd, "recursive")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ids := args
	if dir != "" {
		paths, err := collectImages([]string{dir}, recursive)
		if err != nil {
			return err
		}
		items, _ := itemsFromPaths(paths, cfg.ASCIIIDs)
		for _, item := range items {
			ids = append(ids, item.ID)
		}
	}
	if len(ids) == 0 {
		return errors.New("no ids given: pass ids as arguments or use --dir")
	}

	ctx, stop := signalContext(cmd)
	defer stop()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	ack, err := a.pipeline.Delete(ctx, ids...)
	if err != nil {
		return err
	}
	fmt.Printf("Vector deleted successfully: %d id(s)\n", len(ack.IDs))
	return nil
}
