package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pigmentlab/pigment/internal/dataset"
	"github.com/pigmentlab/pigment/internal/record"
	"github.com/pigmentlab/pigment/internal/utils"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// buildOptions holds shared configuration for the build and fetch commands
type buildOptions struct {
	ImagesDir      string
	OutPath        string
	BatchSize      int
	ImageSize      int
	EmbedInputSize int
	ModelPath      string
	ModelID        string
}

var buildOpts buildOptions

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build a record file from a directory of JPEG images",
	Long: "Enumerates *.jpg files in sorted order, converts each batch to LAB planes,\n" +
		"precomputes classifier embeddings, and serializes everything into one\n" +
		"compressed record file. Precomputing the embeddings here is what keeps the\n" +
		"training loop fast later.",
	Run: func(cmd *cobra.Command, args []string) {
		runBuild(buildOpts)
	},
}

func init() {
	addBuildFlags(buildCmd, &buildOpts)
	buildCmd.Flags().StringVarP(&buildOpts.ImagesDir, "images", "i", "", "Directory of .jpg images")
	buildCmd.MarkFlagRequired("images")
	buildCmd.MarkFlagRequired("out")
	buildCmd.MarkFlagRequired("model")
	rootCmd.AddCommand(buildCmd)
}

// addBuildFlags registers the pipeline flags shared with fetch.
func addBuildFlags(cmd *cobra.Command, opts *buildOptions) {
	cmd.Flags().StringVarP(&opts.OutPath, "out", "o", "", "Output record file path")
	cmd.Flags().IntVarP(&opts.BatchSize, "batch-size", "b", dataset.DefaultBatchSize, "Images per preprocessing batch")
	cmd.Flags().IntVar(&opts.ImageSize, "image-size", dataset.DefaultImageSize, "Stored resolution of the LAB planes")
	cmd.Flags().IntVar(&opts.EmbedInputSize, "embed-input", 0, "Feature network input resolution (default: model's native 224)")
	cmd.Flags().StringVarP(&opts.ModelPath, "model", "m", "", "Path to the frozen classifier bundle")
	cmd.Flags().StringVar(&opts.ModelID, "model-id", "classifier", "Model ID inside the bundle")
}

// countImages pre-counts the builder's glob for the progress bar. -1 keeps
// the bar in spinner mode when the count is unavailable.
func countImages(dir string) int {
	matches, err := filepath.Glob(filepath.Join(dir, "*.jpg"))
	if err != nil {
		return -1
	}
	return len(matches)
}

func runBuild(opts buildOptions) {
	ext := loadExtractor(opts.ModelPath, opts.ModelID, opts.EmbedInputSize)

	bar := progressbar.NewOptions(countImages(opts.ImagesDir),
		progressbar.OptionSetDescription("🎨 Building records"),
		progressbar.OptionSetWriter(os.Stderr), // Write bar to Stderr
		progressbar.OptionShowCount(),
	)

	res, err := dataset.Build(dataset.BuildConfig{
		ImagesDir: opts.ImagesDir,
		OutPath:   opts.OutPath,
		BatchSize: opts.BatchSize,
		ImageSize: opts.ImageSize,
	}, ext, func(n int) { bar.Add(n) })
	if err != nil {
		if errors.Is(err, record.ErrExists) {
			utils.Die("Refusing to overwrite an existing record file. Delete the old one first", err)
		}
		utils.Die("Record build failed", err)
	}
	bar.Finish()

	fmt.Fprintf(os.Stderr, "\n🏁 Build complete. %d records written to %s (%d of %d images skipped as unreadable).\n",
		res.Written, opts.OutPath, res.Skipped, res.Total)
}
