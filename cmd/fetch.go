package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/pigmentlab/pigment/internal/dataset"
	"github.com/pigmentlab/pigment/internal/feature"
	"github.com/pigmentlab/pigment/internal/record"
	"github.com/pigmentlab/pigment/internal/train"
	"github.com/pigmentlab/pigment/internal/utils"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	fetchOpts    buildOptions
	fetchURL     string
	fetchDriveID string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download a dataset and produce its record file",
	Long: "Either downloads and extracts a zip of images from a URL and builds records\n" +
		"from it, or downloads a prebuilt record file directly from a Drive file ID.\n" +
		"Downloads are not resumable: remove partial files before retrying.",
	Run: func(cmd *cobra.Command, args []string) {
		runFetch()
	},
}

func init() {
	addBuildFlags(fetchCmd, &fetchOpts)
	fetchCmd.Flags().StringVar(&fetchURL, "url", "", "URL of a zip archive of .jpg images")
	fetchCmd.Flags().StringVar(&fetchDriveID, "drive-id", "", "Drive file ID of a prebuilt record file")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch() {
	if (fetchURL == "") == (fetchDriveID == "") {
		utils.Die("Provide exactly one of --url or --drive-id", nil)
	}
	if fetchOpts.OutPath == "" {
		fetchOpts.OutPath = train.DefaultTrainRecords
	}

	var ext *feature.Extractor
	var bar *progressbar.ProgressBar
	progress := func(n int) {}
	if fetchURL != "" {
		if fetchOpts.ModelPath == "" {
			utils.Die("--model is required when building records from --url", nil)
		}
		ext = loadExtractor(fetchOpts.ModelPath, fetchOpts.ModelID, fetchOpts.EmbedInputSize)
		bar = progressbar.NewOptions(-1,
			progressbar.OptionSetDescription("🎨 Building records"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
		)
		progress = func(n int) { bar.Add(n) }
	}

	err := dataset.SaveDataRecord(dataset.BuildConfig{
		OutPath:   fetchOpts.OutPath,
		BatchSize: fetchOpts.BatchSize,
		ImageSize: fetchOpts.ImageSize,
	}, fetchURL, fetchDriveID, ext, progress)
	if err != nil {
		if errors.Is(err, record.ErrExists) {
			utils.Die("Refusing to overwrite an existing record file. Delete the old one first", err)
		}
		utils.Die("Dataset fetch failed", err)
	}
	if bar != nil {
		bar.Finish()
	}

	fmt.Fprintf(os.Stderr, "\n🏁 Fetch complete. Records available at %s\n", fetchOpts.OutPath)
}
