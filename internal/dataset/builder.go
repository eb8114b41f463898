// Package dataset turns a directory of raw JPEG images into a record file
// of preprocessed training samples, and fetches datasets from the network.
package dataset

import (
	"fmt"
	"image"
	_ "image/jpeg" // register decoder for image.Decode
	_ "image/png"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/image/draw"

	"github.com/pigmentlab/pigment/internal/colorspace"
	"github.com/pigmentlab/pigment/internal/feature"
	"github.com/pigmentlab/pigment/internal/record"
	"github.com/pigmentlab/pigment/internal/types"
)

const (
	// DefaultImageSize is the stored resolution of the LAB planes.
	DefaultImageSize = 128

	// DefaultBatchSize amortizes the feature extractor's cost, the
	// pipeline's bottleneck.
	DefaultBatchSize = 100
)

// BuildConfig drives one record-building run.
type BuildConfig struct {
	ImagesDir string
	OutPath   string
	BatchSize int // 0 means DefaultBatchSize
	ImageSize int // 0 means DefaultImageSize
}

// BuildResult summarizes a run. Skipped counts unreadable images; they are
// logged in aggregate, never retried, and never fatal.
type BuildResult struct {
	Written int
	Skipped int
	Total   int
}

// Build enumerates *.jpg files in sorted order, streams them through the
// colorspace converter and the feature extractor in fixed-size batches, and
// serializes one record per readable image. Images are processed at the
// larger of the stored size and the extractor's input size, then the planes
// are downsampled to the stored size before serialization. Record order
// matches sorted filename order. progress, when non-nil, is called with 1
// for every enumerated file.
func Build(cfg BuildConfig, ext *feature.Extractor, progress func(n int)) (BuildResult, error) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.ImageSize <= 0 {
		cfg.ImageSize = DefaultImageSize
	}
	if ext == nil {
		return BuildResult{}, feature.ErrNotLoaded
	}

	files, err := filepath.Glob(filepath.Join(cfg.ImagesDir, "*.jpg"))
	if err != nil {
		return BuildResult{}, err
	}
	sort.Strings(files)
	if len(files) == 0 {
		return BuildResult{}, fmt.Errorf("dataset: no .jpg images found in %s", cfg.ImagesDir)
	}

	// Keep the larger resolution until serialization so the extractor
	// never upsamples from an already-shrunk image.
	procSize := cfg.ImageSize
	if ext.InputSize() > procSize {
		procSize = ext.InputSize()
	}

	w, err := record.NewWriter(cfg.OutPath, cfg.ImageSize, feature.EmbeddingSize)
	if err != nil {
		return BuildResult{}, err
	}

	res := BuildResult{Total: len(files)}
	buffer := make([]types.Sample, 0, cfg.BatchSize)

	fail := func(err error) (BuildResult, error) {
		// A partial file would block the next run's writer, remove it.
		w.Close()
		os.Remove(cfg.OutPath)
		return res, err
	}

	for _, fn := range files {
		s, err := loadSample(fn, procSize)
		if progress != nil {
			progress(1)
		}
		if err != nil {
			res.Skipped++
			continue
		}

		buffer = append(buffer, s)
		if len(buffer) >= cfg.BatchSize {
			if err := flushBatch(w, buffer, ext, cfg.ImageSize); err != nil {
				return fail(err)
			}
			res.Written += len(buffer)
			buffer = buffer[:0]
		}
	}

	// Partial final batch
	if len(buffer) > 0 {
		if err := flushBatch(w, buffer, ext, cfg.ImageSize); err != nil {
			return fail(err)
		}
		res.Written += len(buffer)
	}

	if err := w.Close(); err != nil {
		os.Remove(cfg.OutPath)
		return res, err
	}
	return res, nil
}

// flushBatch runs one batch through preprocessing and feature extraction,
// downsamples the planes to the stored resolution, and serializes each
// sample as one record.
func flushBatch(w *record.Writer, batch []types.Sample, ext *feature.Extractor, storedSize int) error {
	gray, l, ab, err := colorspace.PreprocessBatch(batch)
	if err != nil {
		return err
	}
	embeds, err := ext.Extract(gray)
	if err != nil {
		return err
	}

	for i := range batch {
		rec := &record.Record{
			ImageL:        types.ResizePlane(l[i], batch[i].Size, 1, storedSize),
			ImageAB:       types.ResizePlane(ab[i], batch[i].Size, 2, storedSize),
			ImageFeatures: embeds[i],
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

// loadSample decodes an image file and resizes it to a square float sample
// in [0,1]. Any decode failure is the caller's cue to skip the file.
func loadSample(path string, size int) (types.Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return types.Sample{}, err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return types.Sample{}, err
	}

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Rect, src, src.Bounds(), draw.Over, nil)

	s := types.NewSample(size)
	for i := 0; i < size*size; i++ {
		s.Pix[i*3] = float32(dst.Pix[i*4]) / 255
		s.Pix[i*3+1] = float32(dst.Pix[i*4+1]) / 255
		s.Pix[i*3+2] = float32(dst.Pix[i*4+2]) / 255
	}
	return s, nil
}
