package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/pigmentlab/pigment/internal/record"
	"github.com/pigmentlab/pigment/internal/utils"
	"github.com/spf13/cobra"
)

var statsRecords string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print record file header and record count",
	Run: func(cmd *cobra.Command, args []string) {
		runStats()
	},
}

func init() {
	statsCmd.Flags().StringVarP(&statsRecords, "records", "r", "", "Record file to inspect")
	statsCmd.MarkFlagRequired("records")
	rootCmd.AddCommand(statsCmd)
}

func runStats() {
	r, err := record.Open(statsRecords)
	if err != nil {
		if errors.Is(err, record.ErrNotExist) {
			utils.Die("Record file not found. Run `pigment build` or `pigment fetch` to generate it", err)
		}
		utils.Die("Failed to open record file", err)
	}
	defer r.Close()

	count := 0
	for {
		if _, err := r.Next(); err != nil {
			if err != io.EOF {
				utils.Die(fmt.Sprintf("Record file is corrupt after %d records", count), err)
			}
			break
		}
		count++
	}

	info, err := os.Stat(statsRecords)
	if err != nil {
		utils.Die("Failed to stat record file", err)
	}
	hdr := r.Header()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "FIELD\tVALUE")
	fmt.Fprintln(w, "-----\t-----")
	fmt.Fprintf(w, "Path\t%s\n", statsRecords)
	fmt.Fprintf(w, "Format version\t%d\n", hdr.Version)
	fmt.Fprintf(w, "Image size\t%dx%d\n", hdr.ImageSize, hdr.ImageSize)
	fmt.Fprintf(w, "Embedding size\t%d\n", hdr.EmbeddingSize)
	fmt.Fprintf(w, "Records\t%d\n", count)
	fmt.Fprintf(w, "Compressed bytes\t%d\n", info.Size())
	w.Flush()
}
