package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "face-gallery",
	Short: "Register faces and recognize them against a gallery",
	Long: `Face Gallery keeps a gallery of named face embeddings and answers
"who is this?" for new images by comparing their face embedding against
every registered identity.

Embeddings are computed by an external face embedding server (EMBEDDING_URL).
The gallery lives in SQLite by default or in PostgreSQL with pgvector.`,
	SilenceUsage:  true,
	SilenceErrors: true,
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
