// Package record implements the compressed container format for
// preprocessed training samples. A record file is a single zlib stream
// holding a header frame followed by one frame per sample; every frame is a
// big-endian uint32 length prefix plus a gob-encoded payload.
package record

import (
	"errors"
	"fmt"
)

const (
	// Magic identifies a record file header.
	Magic = "PIGREC"

	// Version is the container format version. Shapes are baked in at
	// build time, so any schema change means a rebuild, not a migration.
	Version = 1

	// maxFrameSize guards against reading a garbage length prefix from a
	// corrupted stream.
	maxFrameSize = 64 << 20
)

var (
	// ErrExists is returned when a writer would overwrite an existing
	// record file. Existing files are never touched; remove them first.
	ErrExists = errors.New("record file already exists")

	// ErrNotExist is returned when a reader is pointed at a missing
	// record file.
	ErrNotExist = errors.New("record file does not exist")
)

// Header describes the fixed shapes of every record in the file.
type Header struct {
	Magic         string
	Version       int
	ImageSize     int // stored edge length of the L and AB planes
	EmbeddingSize int
}

func (h Header) validate() error {
	if h.Magic != Magic {
		return fmt.Errorf("record: bad magic %q, not a record file", h.Magic)
	}
	if h.Version != Version {
		return fmt.Errorf("record: unsupported version %d (want %d)", h.Version, Version)
	}
	if h.ImageSize <= 0 || h.EmbeddingSize <= 0 {
		return fmt.Errorf("record: invalid header shapes (image %d, embedding %d)", h.ImageSize, h.EmbeddingSize)
	}
	return nil
}

// Record pairs the LAB planes of one sample with its precomputed embedding.
// Field names are the on-disk keys.
type Record struct {
	ImageL        []float32 // H×W×1, normalized luminance
	ImageAB       []float32 // H×W×2, normalized chrominance
	ImageFeatures []float32 // flattened embedding
}

func (r *Record) validate(h Header) error {
	n := h.ImageSize * h.ImageSize
	if len(r.ImageL) != n {
		return fmt.Errorf("record: ImageL has %d values, expected %d", len(r.ImageL), n)
	}
	if len(r.ImageAB) != n*2 {
		return fmt.Errorf("record: ImageAB has %d values, expected %d", len(r.ImageAB), n*2)
	}
	if len(r.ImageFeatures) != h.EmbeddingSize {
		return fmt.Errorf("record: ImageFeatures has %d values, expected %d", len(r.ImageFeatures), h.EmbeddingSize)
	}
	return nil
}
