package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <id>",
	Short: "Show the vector stored under an id",
	Long: `Fetch one entry from the index and print it as JSON, along with the
total number of entries when the backend can count them.

Example:
  face-index inspect alice`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	gw := a.pipeline.Gateway()
	entry, err := gw.Fetch(ctx, args[0])
	if err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("id %q is not indexed", args[0])
	}

	if n, err := gw.Count(ctx); err == nil {
		fmt.Fprintf(os.Stderr, "Backend: %s, entries: %d\n", gw.Backend(), n)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(entry)
}
