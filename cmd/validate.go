package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <image>",
	Short: "Find the indexed faces closest to the face in an image",
	Long: `Detect the face in the image, query the index for its nearest
neighbours and print each match with its score and verdict.

Example:
  face-index validate ./query.jpg
  face-index validate ./query.jpg --top 5 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().Int("top", 0, "Number of matches to score (0 = INDEX_TOP_K)")
	validateCmd.Flags().Bool("json", false, "Output as JSON")
}

func runValidate(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if top := mustGetInt(cmd, "top"); top > 0 {
		cfg.Index.TopK = top
	}

	data, err := os.ReadFile(args[0])
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

	results, err := a.pipeline.Validate(ctx, data)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Println("The index is empty.")
		return nil
	}
	thresholds := a.pipeline.Thresholds()
	fmt.Printf("Metric: %s (exact < %g, similar < %g)\n\n", thresholds.Metric, thresholds.Exact, thresholds.Similar)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tID\tSCORE\tVERDICT")
	for i, r := range results {
		fmt.Fprintf(w, "%d\t%s\t%.4f\t%s\n", i+1, r.ID, r.Score, r.Message)
	}
	return w.Flush()
}
