package record

import (
	"fmt"
	"io"
	"math/rand"
	"time"
)

// DefaultShuffleBuffer is the number of batches the shallow shuffle window
// holds. Small on purpose: ordering is randomized only within the window,
// long-range order is preserved, and memory stays bounded.
const DefaultShuffleBuffer = 5

// Batch holds one training batch in struct-of-slices form: index i of each
// slice belongs to the same sample.
type Batch struct {
	L        [][]float32 // (B, H, W, 1)
	AB       [][]float32 // (B, H, W, 2)
	Features [][]float32 // (B, embedding size)
}

// Len returns the number of samples in the batch.
func (b *Batch) Len() int { return len(b.L) }

// BatchOptions configures a Batcher.
type BatchOptions struct {
	BatchSize     int
	ShuffleBuffer int   // window size in batches; 0 means DefaultShuffleBuffer
	Seed          int64 // shuffle seed; 0 means time-derived
}

// Batcher is an infinite iterator over a record file. It cycles the file
// forever, applies a shallow shuffle across a small window of batches, and
// recovers from a single decode fault per Next call by reopening the file
// from the start. A fault immediately after reopening propagates.
type Batcher struct {
	path   string
	opts   BatchOptions
	r      *Reader
	rng    *rand.Rand
	window []*Batch
}

// NewBatcher opens the record file and prepares the iterator. A missing
// file is reported as ErrNotExist; the caller decides whether to abort.
func NewBatcher(path string, opts BatchOptions) (*Batcher, error) {
	if opts.BatchSize <= 0 {
		return nil, fmt.Errorf("record: batch size must be positive, got %d", opts.BatchSize)
	}
	if opts.ShuffleBuffer <= 0 {
		opts.ShuffleBuffer = DefaultShuffleBuffer
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	return &Batcher{
		path: path,
		opts: opts,
		r:    r,
		rng:  rand.New(rand.NewSource(seed)),
	}, nil
}

// Header returns the shapes declared by the underlying file.
func (b *Batcher) Header() Header { return b.r.Header() }

// Next yields the next shuffled batch. It never returns io.EOF: the dataset
// is cycled indefinitely. Errors surface only when the file is unreadable
// twice in a row or turns out to be empty.
func (b *Batcher) Next() (*Batch, error) {
	for len(b.window) < b.opts.ShuffleBuffer {
		batch, err := b.readBatch(false)
		if err != nil {
			return nil, err
		}
		b.window = append(b.window, batch)
	}

	i := b.rng.Intn(len(b.window))
	batch := b.window[i]
	b.window[i] = b.window[len(b.window)-1]
	b.window = b.window[:len(b.window)-1]
	return batch, nil
}

// Close releases the underlying reader.
func (b *Batcher) Close() error {
	if b.r == nil {
		return nil
	}
	return b.r.Close()
}

// readBatch assembles one full batch, wrapping around at EOF. recovered
// marks that the reader was already reconstructed once for this read; a
// second fault is returned to the caller instead of retried.
func (b *Batcher) readBatch(recovered bool) (*Batch, error) {
	batch := &Batch{
		L:        make([][]float32, 0, b.opts.BatchSize),
		AB:       make([][]float32, 0, b.opts.BatchSize),
		Features: make([][]float32, 0, b.opts.BatchSize),
	}

	eofStreak := 0
	for batch.Len() < b.opts.BatchSize {
		rec, err := b.r.Next()
		if err == io.EOF {
			// Normal wrap-around; batches may span the file boundary.
			eofStreak++
			if eofStreak > 1 {
				return nil, fmt.Errorf("record: %s contains no records", b.path)
			}
			if err := b.reopen(); err != nil {
				return nil, err
			}
			continue
		}
		if err != nil {
			if recovered {
				return nil, err
			}
			// Recovery policy: rebuild the cursor once and restart the
			// batch from the top of the file. No offset resume.
			if rerr := b.reopen(); rerr != nil {
				return nil, rerr
			}
			return b.readBatch(true)
		}

		eofStreak = 0
		batch.L = append(batch.L, rec.ImageL)
		batch.AB = append(batch.AB, rec.ImageAB)
		batch.Features = append(batch.Features, rec.ImageFeatures)
	}
	return batch, nil
}

func (b *Batcher) reopen() error {
	b.r.Close()
	r, err := Open(b.path)
	if err != nil {
		return err
	}
	b.r = r
	return nil
}
