package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "face-index",
	Short: "Index faces and find near-duplicate faces in a vector index",
	Long: `Face Index detects the face in an uploaded image, turns it into a
128-dimensional embedding and stores or matches it in a vector index
(Pinecone, PostgreSQL with pgvector, or an in-memory HNSW graph).

It runs as an HTTP service (serve) or as a CLI for bulk indexing,
validation and maintenance of the index.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
