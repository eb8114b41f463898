package record

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/klauspost/compress/zlib"
)

// Writer appends records to a new file. It refuses to open a path that
// already exists: record files are written once and regenerated wholesale.
type Writer struct {
	f     *os.File
	zw    *zlib.Writer
	hdr   Header
	count int
}

// NewWriter creates the record file and writes its header frame. An
// existing file at path yields ErrExists without modifying it.
func NewWriter(path string, imageSize, embeddingSize int) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("%w: %s", ErrExists, path)
		}
		return nil, err
	}

	w := &Writer{
		f:   f,
		zw:  zlib.NewWriter(f),
		hdr: Header{Magic: Magic, Version: Version, ImageSize: imageSize, EmbeddingSize: embeddingSize},
	}
	if err := w.hdr.validate(); err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	if err := writeFrame(w.zw, w.hdr); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	return w, nil
}

// Header returns the shapes this writer enforces.
func (w *Writer) Header() Header { return w.hdr }

// Count reports how many records have been written so far.
func (w *Writer) Count() int { return w.count }

// Write appends one record. Shapes must match the header exactly.
func (w *Writer) Write(rec *Record) error {
	if err := rec.validate(w.hdr); err != nil {
		return err
	}
	if err := writeFrame(w.zw, rec); err != nil {
		return err
	}
	w.count++
	return nil
}

// Close flushes the compressed stream and closes the file.
func (w *Writer) Close() error {
	if err := w.zw.Close(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}

// writeFrame emits a length-prefixed gob payload.
func writeFrame(dst io.Writer, v interface{}) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return err
	}
	if err := binary.Write(dst, binary.BigEndian, uint32(buf.Len())); err != nil {
		return err
	}
	_, err := dst.Write(buf.Bytes())
	return err
}
