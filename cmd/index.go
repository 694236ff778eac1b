package cmd

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-index/internal/database"
	"github.com/kozaktomas/face-index/internal/facematch"
	"github.com/kozaktomas/face-index/internal/pipeline"
)

var indexCmd = &cobra.Command{
	Use:   "index <folder-path> [folder-path...]",
	Short: "Index every face image in one or more folders",
	Long: `Index the face in every image of the given folders. The id of each
entry is the file name without its extension. Images whose id is already
indexed are skipped, so the command can be re-run safely.

By default, only files in the specified folders are indexed (non-recursive).
Use -r to search recursively in subdirectories.

Example:
  face-index index ./faces
  face-index index -r ./faces ./more-faces`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().BoolP("recursive", "r", false, "Search for images recursively in subdirectories")
}

func runIndex(cmd *cobra.Command, args []string) error {
	recursive := mustGetBool(cmd, "recursive")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	paths, err := collectImages(args, recursive)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		fmt.Println("No image files found in the specified folders.")
		return nil
	}
	items, duplicates := itemsFromPaths(paths, cfg.ASCIIIDs)
	for _, d := range duplicates {
		fmt.Printf("Skipping %s: id already used by another file\n", d)
	}
	fmt.Printf("Found %d image(s) to index from %d folder(s)\n", len(items), len(args))

	ctx, stop := signalContext(cmd)
	defer stop()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	bar := newProgressBar(len(items), "Indexing", "images")
	var barMu sync.Mutex
	results := a.pipeline.BulkIndex(ctx, items, func(pipeline.ItemResult) {
		barMu.Lock()
		bar.Add(1)
		barMu.Unlock()
	})
	fmt.Println()

	return reportIndexResults(results)
}

func reportIndexResults(results []pipeline.ItemResult) error {
	counts := map[database.InsertResult]int{}
	var noFace, failed []pipeline.ItemResult
	for _, r := range results {
		switch {
		case r.Err == nil:
			counts[r.Result]++
		case errors.Is(r.Err, facematch.ErrNoFace):
			noFace = append(noFace, r)
		default:
			failed = append(failed, r)
		}
	}

	sort.Slice(failed, func(i, j int) bool { return failed[i].Item.ID < failed[j].Item.ID })
	for _, r := range noFace {
		fmt.Printf("No face: %s\n", r.Item.Path)
	}
	for _, r := range failed {
		fmt.Printf("Failed: %s: %v\n", r.Item.Path, r.Err)
	}

	fmt.Printf("\nIndexed: %d, already indexed: %d, skipped: %d, no face: %d, failed: %d\n",
		counts[database.InsertCreated], counts[database.InsertExisting], counts[database.InsertSkipped],
		len(noFace), len(failed))

	if len(failed) > 0 && counts[database.InsertCreated]+counts[database.InsertExisting] == 0 {
		return errors.New("no images were indexed successfully")
	}
	return nil
}
