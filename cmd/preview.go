package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pigmentlab/pigment/internal/colorspace"
	"github.com/pigmentlab/pigment/internal/record"
	"github.com/pigmentlab/pigment/internal/utils"
	"github.com/spf13/cobra"
)

var (
	previewRecords string
	previewCount   int
	previewDir     string
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Reconstruct stored records back into PNG images",
	Long: "Reads the first N records, recombines each stored luminance plane with its\n" +
		"chrominance planes, and writes the reconstructed RGB images as numbered PNGs.\n" +
		"Useful for eyeballing what the model will actually train on.",
	Run: func(cmd *cobra.Command, args []string) {
		runPreview()
	},
}

func init() {
	previewCmd.Flags().StringVarP(&previewRecords, "records", "r", "", "Record file to preview")
	previewCmd.Flags().IntVarP(&previewCount, "count", "n", 10, "Number of records to reconstruct")
	previewCmd.Flags().StringVarP(&previewDir, "out-dir", "d", "results", "Directory for the reconstructed PNGs")
	previewCmd.MarkFlagRequired("records")
	rootCmd.AddCommand(previewCmd)
}

func runPreview() {
	r, err := record.Open(previewRecords)
	if err != nil {
		if errors.Is(err, record.ErrNotExist) {
			utils.Die("Record file not found. Run `pigment build` or `pigment fetch` to generate it", err)
		}
		utils.Die("Failed to open record file", err)
	}
	defer r.Close()

	var ls, abs [][]float32
	for len(ls) < previewCount {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			utils.Die("Failed to read record", err)
		}
		ls = append(ls, rec.ImageL)
		abs = append(abs, rec.ImageAB)
	}

	if err := colorspace.SaveResults(previewDir, ls, abs, r.Header().ImageSize); err != nil {
		utils.Die("Failed to write preview images", err)
	}
	fmt.Fprintf(os.Stderr, "✅ Wrote %d reconstructed images to %s/\n", len(ls), previewDir)
}
