package types

import "fmt"

// Sample is a square RGB raster held as interleaved float32 values in [0,1],
// row-major order. It only exists in memory while the pipeline runs; records
// on disk store the derived LAB planes instead.
type Sample struct {
	Size int
	Pix  []float32 // len = Size * Size * 3
}

// NewSample allocates a zeroed sample of the given edge length.
func NewSample(size int) Sample {
	return Sample{Size: size, Pix: make([]float32, size*size*3)}
}

// Validate checks that the pixel buffer matches the declared size.
func (s Sample) Validate() error {
	if want := s.Size * s.Size * 3; len(s.Pix) != want {
		return fmt.Errorf("sample: pixel buffer is %d floats, expected %d for size %d", len(s.Pix), want, s.Size)
	}
	return nil
}

// Resize returns the sample bilinearly resampled to the target edge length.
func (s Sample) Resize(target int) Sample {
	if target == s.Size {
		return s
	}
	return Sample{Size: target, Pix: ResizePlane(s.Pix, s.Size, 3, target)}
}

// ResizePlane bilinearly resamples a square multi-channel float plane from
// size to target. Planes are interleaved by channel, row-major, matching the
// layout records are stored in. Resampling runs directly on floats so the
// normalized LAB planes never get quantized through an 8-bit image.
func ResizePlane(p []float32, size, channels, target int) []float32 {
	if target == size {
		out := make([]float32, len(p))
		copy(out, p)
		return out
	}

	out := make([]float32, target*target*channels)
	scale := float32(size) / float32(target)

	for y := 0; y < target; y++ {
		// Sample at pixel centers to keep the resample symmetric
		sy := (float32(y)+0.5)*scale - 0.5
		y0 := clampIdx(int(sy), size)
		y1 := clampIdx(y0+1, size)
		fy := sy - float32(y0)
		if fy < 0 {
			fy = 0
		}

		for x := 0; x < target; x++ {
			sx := (float32(x)+0.5)*scale - 0.5
			x0 := clampIdx(int(sx), size)
			x1 := clampIdx(x0+1, size)
			fx := sx - float32(x0)
			if fx < 0 {
				fx = 0
			}

			for c := 0; c < channels; c++ {
				v00 := p[(y0*size+x0)*channels+c]
				v01 := p[(y0*size+x1)*channels+c]
				v10 := p[(y1*size+x0)*channels+c]
				v11 := p[(y1*size+x1)*channels+c]

				top := v00 + (v01-v00)*fx
				bot := v10 + (v11-v10)*fx
				out[(y*target+x)*channels+c] = top + (bot-top)*fy
			}
		}
	}
	return out
}

func clampIdx(i, size int) int {
	if i < 0 {
		return 0
	}
	if i >= size {
		return size - 1
	}
	return i
}
