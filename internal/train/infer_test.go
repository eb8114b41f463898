package train

import (
	"math"
	"testing"

	"github.com/openfluke/loom/nn"
	"github.com/pigmentlab/pigment/internal/feature"
	"github.com/pigmentlab/pigment/internal/types"
)

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

func TestPrepareInput(t *testing.T) {
	ext := testExtractor(t)

	// A colored sample and its own grayscale replica must produce the same
	// inference inputs, since both are reduced to luminance first.
	colored := types.NewSample(2)
	for i := 0; i < 4; i++ {
		colored.Pix[i*3] = 0.9
		colored.Pix[i*3+1] = 0.3
		colored.Pix[i*3+2] = 0.1
	}
	gray := types.NewSample(2)
	lum := float32(0.2125*0.9 + 0.7154*0.3 + 0.0721*0.1)
	for i := range gray.Pix {
		gray.Pix[i] = lum
	}

	l, features, err := PrepareInput([]types.Sample{colored, gray}, ext)
	if err != nil {
		t.Fatalf("PrepareInput failed: %v", err)
	}

	if len(l) != 2 || len(features) != 2 {
		t.Fatalf("Expected 2 samples, got %d L planes and %d embeddings", len(l), len(features))
	}
	if len(l[0]) != 4 || len(features[0]) != feature.EmbeddingSize {
		t.Fatalf("Bad shapes: L=%d features=%d", len(l[0]), len(features[0]))
	}

	for i := range l[0] {
		if math.Abs(float64(l[0][i]-l[1][i])) > 1e-5 {
			t.Errorf("L plane differs from grayscale replica at %d: %f vs %f", i, l[0][i], l[1][i])
		}
	}
	for i := range features[0] {
		if math.Abs(float64(features[0][i]-features[1][i])) > 1e-4 {
			t.Fatalf("Embedding differs from grayscale replica at %d: %f vs %f", i, features[0][i], features[1][i])
		}
	}
}

func TestPrepareInputRejectsMalformedSample(t *testing.T) {
	ext := testExtractor(t)

	s := types.NewSample(2)
	s.Pix = s.Pix[:5]
	if _, _, err := PrepareInput([]types.Sample{s}, ext); err == nil {
		t.Error("Expected error for malformed sample, got nil")
	}
}
