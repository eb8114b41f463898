// Package feature produces fixed-length embeddings from a frozen pretrained
// classifier. The network runs on CPU through loom; embeddings are read from
// a truncated companion network whose output sits two layers before the
// classification head.
package feature

import (
	"errors"
	"fmt"

	"github.com/openfluke/loom/nn"
	"github.com/pigmentlab/pigment/internal/types"
)

const (
	// EmbeddingSize is the flattened length of one embedding vector.
	EmbeddingSize = 1000

	// DefaultInputSize is the classifier's expected input resolution.
	DefaultInputSize = 224

	// DefaultModelID names the classifier inside its loom bundle.
	DefaultModelID = "classifier"
)

// ErrNotLoaded is returned when Extract is called on a zero or nil handle.
var ErrNotLoaded = errors.New("feature: extractor not loaded")

// Extractor is an explicit handle to the frozen feature network. Load it
// once and pass the handle to every caller; it is read-only after Load but
// not safe for concurrent Extract calls (forward passes share buffers).
type Extractor struct {
	trunc     *nn.Network
	inputSize int
}

// Load reads the classifier bundle from disk and prepares the truncated
// embedding network. The weights must already be present locally; there is
// no retry or download here.
func Load(path, modelID string, inputSize int) (*Extractor, error) {
	net, err := nn.LoadModel(path, modelID)
	if err != nil {
		return nil, fmt.Errorf("feature: failed to load model %q from %s: %w", modelID, path, err)
	}
	return New(net, inputSize)
}

// New builds an extractor around an already-loaded network, truncating the
// final two layers so the embedding is read pre-head.
func New(net *nn.Network, inputSize int) (*Extractor, error) {
	total := net.TotalLayers()
	if total < 3 {
		return nil, fmt.Errorf("feature: classifier has %d layers, need at least 3 to truncate the head", total)
	}
	if inputSize <= 0 {
		inputSize = DefaultInputSize
	}

	// Flatten the grid into a single row so the copied layers keep their
	// original order regardless of the source grid shape.
	trunc := nn.NewNetwork(net.InputSize, 1, 1, total-2)
	for i := 0; i < total-2; i++ {
		trunc.Layers[i] = net.Layers[i]
	}

	return &Extractor{trunc: trunc, inputSize: inputSize}, nil
}

// InputSize reports the resolution samples are resized to before inference.
func (e *Extractor) InputSize() int {
	if e == nil {
		return 0
	}
	return e.inputSize
}

// Extract runs one forward pass over the batch and returns one EmbeddingSize
// vector per sample, in input order. Samples are expected as grayscale RGB
// in [0,1]; they are resized to the network input resolution and rescaled to
// [-1,1] here. This is the throughput bottleneck of the whole pipeline, so
// callers should batch as much as memory allows.
func (e *Extractor) Extract(batch []types.Sample) ([][]float32, error) {
	if e == nil || e.trunc == nil {
		return nil, ErrNotLoaded
	}
	if len(batch) == 0 {
		return nil, nil
	}

	perSample := e.inputSize * e.inputSize * 3
	flat := make([]float32, 0, len(batch)*perSample)
	for i, s := range batch {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("feature: sample %d: %w", i, err)
		}
		resized := s.Resize(e.inputSize)
		for _, v := range resized.Pix {
			flat = append(flat, 2*v-1)
		}
	}

	e.trunc.BatchSize = len(batch)
	out, _ := e.trunc.ForwardCPU(flat)
	if len(out) != len(batch)*EmbeddingSize {
		return nil, fmt.Errorf("feature: network produced %d values for %d samples, expected %d per sample",
			len(out), len(batch), EmbeddingSize)
	}

	embeds := make([][]float32, len(batch))
	for i := range embeds {
		embeds[i] = out[i*EmbeddingSize : (i+1)*EmbeddingSize : (i+1)*EmbeddingSize]
	}
	return embeds, nil
}
