package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/pigmentlab/pigment/internal/utils"
	"github.com/spf13/cobra"
)

var (
	dupesThreshold float64
	dupesLimit     int
)

var dupesCmd = &cobra.Command{
	Use:   "dupes",
	Short: "Report near-duplicate samples in the embedding index",
	Long: "Lists indexed sample pairs whose embeddings fall within the cosine distance\n" +
		"threshold. Near-duplicates between train and validation splits leak labels;\n" +
		"prune them before training.",
	Run: func(cmd *cobra.Command, args []string) {
		runDupes(cmd.Context())
	},
}

func init() {
	dupesCmd.Flags().Float64VarP(&dupesThreshold, "threshold", "t", 0.05, "Cosine distance below which a pair counts as a duplicate")
	dupesCmd.Flags().IntVarP(&dupesLimit, "limit", "n", 20, "Maximum pairs to report")
	rootCmd.AddCommand(dupesCmd)
}

func runDupes(ctx context.Context) {
	if dupesThreshold <= 0 || dupesThreshold > 1.0 {
		utils.Die("Invalid threshold", fmt.Errorf("must be between 0.0 and 1.0, got %f", dupesThreshold))
	}

	db := openStore(ctx)
	defer db.Close(context.Background())

	pairs, err := db.NearDuplicates(ctx, dupesThreshold, dupesLimit)
	if err != nil {
		utils.Die("Failed to query near-duplicates", err)
	}

	if len(pairs) == 0 {
		fmt.Println("No near-duplicate samples found.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "DATASET\tRECORD A\tRECORD B\tDISTANCE")
	fmt.Fprintln(w, "-------\t--------\t--------\t--------")
	for _, p := range pairs {
		fmt.Fprintf(w, "%s\t%d\t%d\t%.4f\n", p.DatasetID[:12], p.IndexA, p.IndexB, p.Distance)
	}
	w.Flush()
}
