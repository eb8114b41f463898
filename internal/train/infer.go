package train

import (
	"fmt"

	"github.com/pigmentlab/pigment/internal/colorspace"
	"github.com/pigmentlab/pigment/internal/feature"
	"github.com/pigmentlab/pigment/internal/types"
)

// PrepareInput converts a batch of test-time images into model inputs: the
// luminance plane and the embedding of each image's grayscale replica. This
// mirrors the training pipeline's preprocessing so inference sees the same
// distribution, minus the chrominance targets.
func PrepareInput(batch []types.Sample, ext *feature.Extractor) (l, features [][]float32, err error) {
	grays := make([]types.Sample, len(batch))
	l = make([][]float32, len(batch))
	for i, s := range batch {
		g, err := colorspace.GrayscaleRGB(s)
		if err != nil {
			return nil, nil, fmt.Errorf("sample %d: %w", i, err)
		}
		grays[i] = g
		if l[i], _, err = colorspace.Preprocess(g); err != nil {
			return nil, nil, fmt.Errorf("sample %d: %w", i, err)
		}
	}

	features, err = ext.Extract(grays)
	if err != nil {
		return nil, nil, err
	}
	return l, features, nil
}
