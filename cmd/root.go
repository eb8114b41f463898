package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pigmentlab/pigment/internal/feature"
	"github.com/pigmentlab/pigment/internal/store"
	"github.com/pigmentlab/pigment/internal/utils"
	"github.com/spf13/cobra"
)

// Version is the application version.
const Version = "0.1.0"

// dbURL is the connection string for the embedding index
var dbURL string

var rootCmd = &cobra.Command{
	Use:     "pigment",
	Short:   "Colorization Dataset Preparation Toolkit",
	Version: Version, // This enables the --version flag
}

func Execute() {
	// Create a context that listens for Ctrl+C (SIGINT) or Kill (SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// This tells Cobra not to print the version in the help text, which is cleaner.
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "", "PostgreSQL connection string for the embedding index (default: postgres://localhost:5432/pigment)")
}

// openStore connects the commands that need the embedding index. Build and
// fetch never touch Postgres, so the connection is made here on demand
// rather than in a persistent pre-run hook.
func openStore(ctx context.Context) *store.Store {
	connStr := dbURL
	if connStr == "" {
		// If no flag was provided, try to build the connection string from the environment
		if host := os.Getenv("POSTGRES_HOST"); host != "" {
			user := os.Getenv("POSTGRES_USER")
			pass := os.Getenv("POSTGRES_PASSWORD")
			name := os.Getenv("POSTGRES_DB")
			port := os.Getenv("POSTGRES_PORT")
			if port == "" {
				port = "5432"
			}
			connStr = fmt.Sprintf("postgres://%s:%s@%s:%s/%s", user, pass, host, port, name)
		} else {
			// Fallback to local default if no env vars are present
			connStr = "postgres://localhost:5432/pigment"
		}
	}

	db, err := store.New(ctx, connStr)
	if err != nil {
		utils.Die("Failed to connect to database", err)
	}
	return db
}

// loadExtractor loads the frozen classifier once per run; the handle is
// passed to every pipeline stage that needs embeddings.
func loadExtractor(path, modelID string, inputSize int) *feature.Extractor {
	fmt.Fprintf(os.Stderr, "🧠 Loading feature extractor from %s...\n", path)
	ext, err := feature.Load(path, modelID, inputSize)
	if err != nil {
		utils.Die("Failed to load the feature extractor model", err)
	}
	return ext
}
