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

// Reader iterates a record file sequentially. It validates the header on
// open and every record's shapes on read.
type Reader struct {
	f   *os.File
	zr  io.ReadCloser
	hdr Header
}

// Open opens a record file and reads its header frame. A missing file
// yields ErrNotExist so callers can decide whether that is fatal.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotExist, path)
		}
		return nil, err
	}

	zr, err := zlib.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("record: %s is not a compressed record file: %w", path, err)
	}

	r := &Reader{f: f, zr: zr}
	if err := readFrame(zr, &r.hdr); err != nil {
		r.Close()
		return nil, fmt.Errorf("record: failed to read header of %s: %w", path, err)
	}
	if err := r.hdr.validate(); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

// Header returns the shapes declared by the file.
func (r *Reader) Header() Header { return r.hdr }

// Next returns the next record, or io.EOF at the end of the stream.
func (r *Reader) Next() (*Record, error) {
	var rec Record
	if err := readFrame(r.zr, &rec); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("record: decode fault: %w", err)
	}
	if err := rec.validate(r.hdr); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	r.zr.Close()
	return r.f.Close()
}

// readFrame reads a length-prefixed gob payload into v. A clean EOF at the
// length prefix is reported as io.EOF; anything torn mid-frame is an error.
func readFrame(src io.Reader, v interface{}) error {
	var prefix [4]byte
	if _, err := io.ReadFull(src, prefix[:]); err != nil {
		if err == io.EOF {
			return io.EOF
		}
		return err
	}
	n := binary.BigEndian.Uint32(prefix[:])
	if n == 0 || n > maxFrameSize {
		return fmt.Errorf("invalid frame length %d", n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(src, body); err != nil {
		return fmt.Errorf("torn frame: %w", err)
	}
	return gob.NewDecoder(bytes.NewReader(body)).Decode(v)
}
