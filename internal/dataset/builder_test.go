package dataset

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/openfluke/loom/nn"
	"github.com/pigmentlab/pigment/internal/feature"
	"github.com/pigmentlab/pigment/internal/record"
)

// testExtractor builds a small 3-layer classifier over 2x2 inputs so the
// builder can run without real model weights.
func testExtractor(t *testing.T) *feature.Extractor {
	t.Helper()

	const in = 2 * 2 * 3
	net := nn.NewNetwork(in, 1, 1, 3)
	net.Layers[0] = nn.InitDenseLayer(in, feature.EmbeddingSize, nn.ActivationLeakyReLU)
	net.Layers[1] = nn.InitDenseLayer(feature.EmbeddingSize, 32, nn.ActivationLeakyReLU)
	net.Layers[2] = nn.InitDenseLayer(32, 10, nn.ActivationSigmoid)

	ext, err := feature.New(net, 2)
	if err != nil {
		t.Fatalf("Failed to build test extractor: %v", err)
	}
	return ext
}

// writeTestImages fills dir with n small JPEGs named img_00.jpg and up,
// each a distinct flat color.
func writeTestImages(t *testing.T, dir string, n int) {
	t.Helper()

	for i := 0; i < n; i++ {
		img := image.NewRGBA(image.Rect(0, 0, 8, 8))
		c := color.RGBA{R: uint8(i * 20), G: uint8(255 - i*20), B: 128, A: 255}
		for y := 0; y < 8; y++ {
			for x := 0; x < 8; x++ {
				img.Set(x, y, c)
			}
		}

		f, err := os.Create(filepath.Join(dir, fmt.Sprintf("img_%02d.jpg", i)))
		if err != nil {
			t.Fatal(err)
		}
		if err := jpeg.Encode(f, img, nil); err != nil {
			f.Close()
			t.Fatal(err)
		}
		f.Close()
	}
}

func TestBuild(t *testing.T) {
	dir := t.TempDir()
	writeTestImages(t, dir, 10)
	out := filepath.Join(t.TempDir(), "out.records")

	progressed := 0
	res, err := Build(BuildConfig{
		ImagesDir: dir,
		OutPath:   out,
		BatchSize: 4,
		ImageSize: 4,
	}, testExtractor(t), func(n int) { progressed += n })
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if res.Written != 10 || res.Skipped != 0 || res.Total != 10 {
		t.Errorf("Bad result: %+v", res)
	}
	if progressed != 10 {
		t.Errorf("Expected 10 progress ticks, got %d", progressed)
	}

	// Verify the output file round-trips with the declared shapes
	r, err := record.Open(out)
	if err != nil {
		t.Fatalf("Failed to open output: %v", err)
	}
	defer r.Close()

	hdr := r.Header()
	if hdr.ImageSize != 4 || hdr.EmbeddingSize != feature.EmbeddingSize {
		t.Errorf("Bad header shapes: %+v", hdr)
	}

	count := 0
	var lums []float32
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Record %d unreadable: %v", count, err)
		}
		if len(rec.ImageL) != 16 || len(rec.ImageAB) != 32 || len(rec.ImageFeatures) != feature.EmbeddingSize {
			t.Errorf("Record %d has bad shapes", count)
		}
		lums = append(lums, rec.ImageL[0])
		count++
	}
	if count != 10 {
		t.Errorf("Expected 10 records, got %d", count)
	}

	// Records must come out in sorted filename order. Each image is a flat
	// color stepping red up and green down by 20, so luminance strictly
	// decreases from img_00 to img_09; any reordering breaks the sequence.
	for i := 1; i < len(lums); i++ {
		if lums[i] >= lums[i-1] {
			t.Errorf("Records out of order: L[%d]=%f >= L[%d]=%f", i, lums[i], i-1, lums[i-1])
		}
	}
}

func TestBuildSkipsUnreadableImages(t *testing.T) {
	dir := t.TempDir()
	writeTestImages(t, dir, 5)

	// Drop a file that has the right extension but is not an image
	if err := os.WriteFile(filepath.Join(dir, "corrupt.jpg"), []byte("not a jpeg"), 0644); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(t.TempDir(), "out.records")
	res, err := Build(BuildConfig{
		ImagesDir: dir,
		OutPath:   out,
		BatchSize: 3,
		ImageSize: 4,
	}, testExtractor(t), nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if res.Written != 5 {
		t.Errorf("Expected 5 records written, got %d", res.Written)
	}
	if res.Skipped != 1 {
		t.Errorf("Expected 1 skip, got %d", res.Skipped)
	}
	if res.Total != 6 {
		t.Errorf("Expected 6 enumerated files, got %d", res.Total)
	}
}

func TestBuildRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	writeTestImages(t, dir, 2)

	out := filepath.Join(t.TempDir(), "out.records")
	if err := os.WriteFile(out, []byte("precious"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Build(BuildConfig{ImagesDir: dir, OutPath: out, ImageSize: 4}, testExtractor(t), nil)
	if !errors.Is(err, record.ErrExists) {
		t.Fatalf("Expected ErrExists, got %v", err)
	}

	// The existing file must survive the refused build
	data, err := os.ReadFile(out)
	if err != nil || string(data) != "precious" {
		t.Error("Existing file was damaged by a refused build")
	}
}

func TestBuildEmptyDir(t *testing.T) {
	_, err := Build(BuildConfig{
		ImagesDir: t.TempDir(),
		OutPath:   filepath.Join(t.TempDir(), "out.records"),
	}, testExtractor(t), nil)
	if err == nil {
		t.Error("Expected error for a directory with no images, got nil")
	}
}

func TestBuildNilExtractor(t *testing.T) {
	_, err := Build(BuildConfig{ImagesDir: t.TempDir()}, nil, nil)
	if !errors.Is(err, feature.ErrNotLoaded) {
		t.Errorf("Expected ErrNotLoaded, got %v", err)
	}
}
