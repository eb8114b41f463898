package train

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pigmentlab/pigment/internal/record"
)

func writeRecords(t *testing.T, path string, n, imageSize, embeddingSize int) {
	t.Helper()

	w, err := record.NewWriter(path, imageSize, embeddingSize)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < n; i++ {
		rec := &record.Record{
			ImageL:        make([]float32, imageSize*imageSize),
			ImageAB:       make([]float32, imageSize*imageSize*2),
			ImageFeatures: make([]float32, embeddingSize),
		}
		rec.ImageL[0] = float32(i)
		if err := w.Write(rec); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestGeneratorNext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.records")
	writeRecords(t, path, 6, 2, 8)

	g, err := NewGenerator(path, record.BatchOptions{BatchSize: 3, Seed: 1})
	if err != nil {
		t.Fatalf("NewGenerator failed: %v", err)
	}
	defer g.Close()

	if hdr := g.Header(); hdr.ImageSize != 2 || hdr.EmbeddingSize != 8 {
		t.Errorf("Bad header shapes: %+v", hdr)
	}

	// Cycling forever: well past one pass over the 6 records
	for i := 0; i < 10; i++ {
		l, features, ab, err := g.Next()
		if err != nil {
			t.Fatalf("Next %d failed: %v", i, err)
		}
		if len(l) != 3 || len(features) != 3 || len(ab) != 3 {
			t.Fatalf("Next %d: bad batch size (%d, %d, %d)", i, len(l), len(features), len(ab))
		}
		for j := 0; j < 3; j++ {
			if len(l[j]) != 4 || len(ab[j]) != 8 || len(features[j]) != 8 {
				t.Fatalf("Next %d sample %d: bad plane shapes", i, j)
			}
		}
	}
}

func TestGeneratorMissingFile(t *testing.T) {
	_, err := NewGenerator(filepath.Join(t.TempDir(), "nope.records"), record.BatchOptions{BatchSize: 2})
	if err == nil {
		t.Fatal("Expected error for missing record file, got nil")
	}
	if !errors.Is(err, record.ErrNotExist) {
		t.Errorf("Expected ErrNotExist in the chain, got %v", err)
	}
	// The message tells the operator how to fix the setup
	if !strings.Contains(err.Error(), "pigment build") {
		t.Errorf("Expected regeneration instruction in %q", err.Error())
	}
}
