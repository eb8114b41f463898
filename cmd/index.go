package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pigmentlab/pigment/internal/record"
	"github.com/pigmentlab/pigment/internal/utils"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var indexRecords string

// insertChunk keeps individual INSERT round trips bounded.
const insertChunk = 256

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Load record embeddings into the Postgres embedding index",
	Long: "Streams the stored embedding of every record into pgvector so the dataset\n" +
		"can be queried for near-duplicates before training.",
	Run: func(cmd *cobra.Command, args []string) {
		runIndex(cmd.Context())
	},
}

func init() {
	indexCmd.Flags().StringVarP(&indexRecords, "records", "r", "", "Record file to index")
	indexCmd.MarkFlagRequired("records")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(ctx context.Context) {
	r, err := record.Open(indexRecords)
	if err != nil {
		if errors.Is(err, record.ErrNotExist) {
			utils.Die("Record file not found. Run `pigment build` or `pigment fetch` to generate it", err)
		}
		utils.Die("Failed to open record file", err)
	}
	defer r.Close()

	datasetID, err := utils.DatasetID(indexRecords)
	if err != nil {
		utils.Die("Failed to derive dataset ID", err)
	}

	db := openStore(ctx)
	// Use Background here so the close still runs if the main context was
	// cancelled by Ctrl+C.
	defer db.Close(context.Background())

	if err := db.EnsureDataset(ctx, datasetID, indexRecords); err != nil {
		utils.Die("Failed to register dataset", err)
	}
	fmt.Fprintf(os.Stderr, "📇 Indexing dataset %s\n", datasetID[:12])

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("📇 Indexing embeddings"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
	)

	total := 0
	chunk := make([][]float32, 0, insertChunk)
	flush := func() {
		if len(chunk) == 0 {
			return
		}
		if err := db.InsertEmbeddings(ctx, datasetID, total, chunk); err != nil {
			utils.Die("Failed to insert embeddings", err)
		}
		total += len(chunk)
		bar.Add(len(chunk))
		chunk = chunk[:0]
	}

	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			utils.Die(fmt.Sprintf("Record file is corrupt after %d records", total+len(chunk)), err)
		}
		chunk = append(chunk, rec.ImageFeatures)
		if len(chunk) >= insertChunk {
			flush()
		}
	}
	flush()
	bar.Finish()

	fmt.Fprintf(os.Stderr, "\n✅ Indexed %d embeddings for dataset %s\n", total, datasetID[:12])
}
