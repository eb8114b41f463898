// Package train exposes the record pipeline to training loops: infinite
// batch generators over record files and a batchwise metric reporter.
package train

import (
	"errors"
	"fmt"

	"github.com/pigmentlab/pigment/internal/record"
)

// Default record file locations, mirroring the data/ layout the fetch and
// build commands produce.
const (
	DefaultTrainRecords = "data/train.records"
	DefaultValRecords   = "data/validation.records"
)

// Generator yields ([luminance, embedding], chrominance) batches forever.
// It is a thin wrapper over record.Batcher that turns a missing record file
// into an instructional error instead of letting the training loop see a
// bare open failure.
type Generator struct {
	b *record.Batcher
}

// NewGenerator opens a generator over an existing record file. The file
// must have been built beforehand; a missing file is a setup error for the
// caller to abort on, not a condition to retry.
func NewGenerator(recordPath string, opts record.BatchOptions) (*Generator, error) {
	b, err := record.NewBatcher(recordPath, opts)
	if err != nil {
		if errors.Is(err, record.ErrNotExist) {
			return nil, fmt.Errorf("%w; run `pigment build` or `pigment fetch` to generate it", err)
		}
		return nil, err
	}
	return &Generator{b: b}, nil
}

// NewTraining opens a generator over the default training record file.
func NewTraining(batchSize int) (*Generator, error) {
	return NewGenerator(DefaultTrainRecords, record.BatchOptions{BatchSize: batchSize})
}

// NewValidation opens a generator over the default validation record file.
func NewValidation(batchSize int) (*Generator, error) {
	return NewGenerator(DefaultValRecords, record.BatchOptions{BatchSize: batchSize})
}

// Next returns the model inputs (luminance planes and embeddings) and the
// target chrominance planes for one batch.
func (g *Generator) Next() (l, features, ab [][]float32, err error) {
	batch, err := g.b.Next()
	if err != nil {
		return nil, nil, nil, err
	}
	return batch.L, batch.Features, batch.AB, nil
}

// Header exposes the record file's declared shapes.
func (g *Generator) Header() record.Header { return g.b.Header() }

// Close releases the underlying batcher.
func (g *Generator) Close() error { return g.b.Close() }
