package feature

import (
	"errors"
	"testing"

	"github.com/openfluke/loom/nn"
	"github.com/pigmentlab/pigment/internal/types"
)

// tinyClassifier builds a 3-layer dense network over 2x2 RGB inputs. The
// first layer already emits EmbeddingSize values so the truncated network
// used for extraction ends exactly there.
func tinyClassifier() *nn.Network {
	const in = 2 * 2 * 3

	net := nn.NewNetwork(in, 1, 1, 3)
	net.Layers[0] = nn.InitDenseLayer(in, EmbeddingSize, nn.ActivationLeakyReLU)
	net.Layers[1] = nn.InitDenseLayer(EmbeddingSize, 64, nn.ActivationLeakyReLU)
	net.Layers[2] = nn.InitDenseLayer(64, 10, nn.ActivationSigmoid)
	return net
}

func TestExtractNotLoaded(t *testing.T) {
	var e *Extractor
	if _, err := e.Extract([]types.Sample{types.NewSample(2)}); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Expected ErrNotLoaded on nil handle, got %v", err)
	}

	e = &Extractor{}
	if _, err := e.Extract([]types.Sample{types.NewSample(2)}); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Expected ErrNotLoaded on zero handle, got %v", err)
	}
}

func TestNewRejectsShallowNetworks(t *testing.T) {
	// Truncating the head needs at least one layer left over
	net := nn.NewNetwork(12, 1, 1, 2)
	if _, err := New(net, 2); err == nil {
		t.Error("Expected error for a 2-layer classifier, got nil")
	}
}

func TestNewDefaultsInputSize(t *testing.T) {
	e, err := New(tinyClassifier(), 0)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if e.InputSize() != DefaultInputSize {
		t.Errorf("Expected default input size %d, got %d", DefaultInputSize, e.InputSize())
	}

	e, err = New(tinyClassifier(), 2)
	if err != nil {
		t.Fatal(err)
	}
	if e.InputSize() != 2 {
		t.Errorf("Expected input size 2, got %d", e.InputSize())
	}
}

func TestExtractShapes(t *testing.T) {
	e, err := New(tinyClassifier(), 2)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	batch := make([]types.Sample, 3)
	for i := range batch {
		batch[i] = types.NewSample(2)
		for j := range batch[i].Pix {
			batch[i].Pix[j] = float32(i) * 0.1
		}
	}

	embeds, err := e.Extract(batch)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(embeds) != 3 {
		t.Fatalf("Expected 3 embeddings, got %d", len(embeds))
	}
	for i, v := range embeds {
		if len(v) != EmbeddingSize {
			t.Errorf("Embedding %d has %d values, expected %d", i, len(v), EmbeddingSize)
		}
	}
}

func TestExtractDeterministic(t *testing.T) {
	e, err := New(tinyClassifier(), 2)
	if err != nil {
		t.Fatal(err)
	}

	s := types.NewSample(2)
	for j := range s.Pix {
		s.Pix[j] = 0.3
	}
	batch := []types.Sample{s}

	first, err := e.Extract(batch)
	if err != nil {
		t.Fatalf("First Extract failed: %v", err)
	}
	second, err := e.Extract(batch)
	if err != nil {
		t.Fatalf("Second Extract failed: %v", err)
	}

	// Same weights, same input, bit-identical output
	for i := range first[0] {
		if first[0][i] != second[0][i] {
			t.Fatalf("Embedding diverged at %d: %f vs %f", i, first[0][i], second[0][i])
		}
	}
}

func TestExtractResizesInput(t *testing.T) {
	// Samples larger than the network input must be resampled down, not
	// rejected.
	e, err := New(tinyClassifier(), 2)
	if err != nil {
		t.Fatal(err)
	}

	s := types.NewSample(8)
	for j := range s.Pix {
		s.Pix[j] = 0.5
	}

	embeds, err := e.Extract([]types.Sample{s})
	if err != nil {
		t.Fatalf("Extract failed on oversized sample: %v", err)
	}
	if len(embeds) != 1 || len(embeds[0]) != EmbeddingSize {
		t.Error("Bad embedding shape for resized sample")
	}
}

func TestExtractEmptyBatch(t *testing.T) {
	e, err := New(tinyClassifier(), 2)
	if err != nil {
		t.Fatal(err)
	}
	embeds, err := e.Extract(nil)
	if err != nil {
		t.Errorf("Empty batch should be a no-op, got %v", err)
	}
	if embeds != nil {
		t.Errorf("Expected nil embeddings for empty batch, got %d", len(embeds))
	}
}

func TestExtractRejectsMalformedSample(t *testing.T) {
	e, err := New(tinyClassifier(), 2)
	if err != nil {
		t.Fatal(err)
	}

	s := types.NewSample(2)
	s.Pix = s.Pix[:5]
	if _, err := e.Extract([]types.Sample{s}); err == nil {
		t.Error("Expected error for malformed sample, got nil")
	}
}
