// Package colorspace converts RGB samples to the normalized LAB planes the
// colorizer trains on, and reconstructs RGB images from predicted planes at
// test time. All conversions use the sRGB/D65 pipeline.
package colorspace

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"github.com/pigmentlab/pigment/internal/types"
)

const (
	// Natural LAB ranges used for normalization into [-1,1]
	lRange  = 100.0
	abRange = 127.0

	// D65 reference white
	refX = 0.95047
	refY = 1.00000
	refZ = 1.08883
)

// Grayscale luma weights (ITU-R BT.709, as used by the reference pipeline)
const (
	lumaR = 0.2125
	lumaG = 0.7154
	lumaB = 0.0721
)

// GrayscaleRGB returns a three-channel grayscale replica of the sample,
// suitable for feeding the feature extractor.
func GrayscaleRGB(s types.Sample) (types.Sample, error) {
	if err := s.Validate(); err != nil {
		return types.Sample{}, err
	}
	out := types.NewSample(s.Size)
	for i := 0; i < s.Size*s.Size; i++ {
		g := lumaR*s.Pix[i*3] + lumaG*s.Pix[i*3+1] + lumaB*s.Pix[i*3+2]
		out.Pix[i*3] = g
		out.Pix[i*3+1] = g
		out.Pix[i*3+2] = g
	}
	return out, nil
}

// Preprocess converts one RGB sample into its normalized luminance and
// chrominance planes: L is mapped from [0,100] to [-1,1], AB from
// [-127,127] to roughly [-1,1].
func Preprocess(s types.Sample) (l, ab []float32, err error) {
	if err := s.Validate(); err != nil {
		return nil, nil, err
	}
	n := s.Size * s.Size
	l = make([]float32, n)
	ab = make([]float32, n*2)
	for i := 0; i < n; i++ {
		lv, av, bv := rgbToLab(float64(s.Pix[i*3]), float64(s.Pix[i*3+1]), float64(s.Pix[i*3+2]))
		l[i] = float32(2*lv/lRange - 1)
		ab[i*2] = float32(av / abRange)
		ab[i*2+1] = float32(bv / abRange)
	}
	return l, ab, nil
}

// PreprocessBatch runs Preprocess and GrayscaleRGB over a batch, keeping
// input order. The grayscale replicas go to the feature extractor, the
// planes to the record writer or the model.
func PreprocessBatch(batch []types.Sample) (gray []types.Sample, l, ab [][]float32, err error) {
	gray = make([]types.Sample, len(batch))
	l = make([][]float32, len(batch))
	ab = make([][]float32, len(batch))
	for i, s := range batch {
		if gray[i], err = GrayscaleRGB(s); err != nil {
			return nil, nil, nil, fmt.Errorf("sample %d: %w", i, err)
		}
		if l[i], ab[i], err = Preprocess(s); err != nil {
			return nil, nil, nil, fmt.Errorf("sample %d: %w", i, err)
		}
	}
	return gray, l, ab, nil
}

// Postprocess reconstructs an RGB image from a stored luminance plane and
// predicted chrominance planes, undoing the [-1,1] normalization.
func Postprocess(l, ab []float32, size int) (*image.NRGBA, error) {
	if len(l) != size*size {
		return nil, fmt.Errorf("colorspace: L plane has %d values, expected %d", len(l), size*size)
	}
	if len(ab) != size*size*2 {
		return nil, fmt.Errorf("colorspace: AB plane has %d values, expected %d", len(ab), size*size*2)
	}

	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			i := y*size + x
			lv := (float64(l[i]) + 1) * (lRange / 2)
			av := float64(ab[i*2]) * abRange
			bv := float64(ab[i*2+1]) * abRange

			r, g, b := labToRgb(lv, av, bv)
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(clamp01(r)*255 + 0.5),
				G: uint8(clamp01(g)*255 + 0.5),
				B: uint8(clamp01(b)*255 + 0.5),
				A: 255,
			})
		}
	}
	return img, nil
}

// SaveResults reconstructs every (L, AB) pair and writes sequentially
// numbered PNGs into dir, creating it if absent. Files are named img_1.png,
// img_2.png, ... in batch order.
func SaveResults(dir string, l, ab [][]float32, size int) error {
	if len(l) != len(ab) {
		return fmt.Errorf("colorspace: %d L planes but %d AB planes", len(l), len(ab))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create results dir: %w", err)
	}

	for i := range l {
		img, err := Postprocess(l[i], ab[i], size)
		if err != nil {
			return fmt.Errorf("image %d: %w", i+1, err)
		}
		path := filepath.Join(dir, fmt.Sprintf("img_%d.png", i+1))
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := png.Encode(f, img); err != nil {
			f.Close()
			return fmt.Errorf("failed to encode %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	return nil
}

// rgbToLab converts one sRGB pixel in [0,1] to CIE LAB.
func rgbToLab(r, g, b float64) (float64, float64, float64) {
	r = srgbToLinear(r)
	g = srgbToLinear(g)
	b = srgbToLinear(b)

	x := (0.412453*r + 0.357580*g + 0.180423*b) / refX
	y := (0.212671*r + 0.715160*g + 0.072169*b) / refY
	z := (0.019334*r + 0.119193*g + 0.950227*b) / refZ

	fx, fy, fz := labF(x), labF(y), labF(z)
	return 116*fy - 16, 500 * (fx - fy), 200 * (fy - fz)
}

// labToRgb converts CIE LAB back to sRGB in [0,1] (unclipped).
func labToRgb(l, a, b float64) (float64, float64, float64) {
	fy := (l + 16) / 116
	fx := fy + a/500
	fz := fy - b/200

	x := labFInv(fx) * refX
	y := labFInv(fy) * refY
	z := labFInv(fz) * refZ

	rl := 3.240479*x - 1.537150*y - 0.498535*z
	gl := -0.969256*x + 1.875992*y + 0.041556*z
	bl := 0.055648*x - 0.204043*y + 1.057311*z

	return linearToSrgb(rl), linearToSrgb(gl), linearToSrgb(bl)
}

func labF(t float64) float64 {
	if t > 0.008856 {
		return math.Cbrt(t)
	}
	return 7.787*t + 16.0/116.0
}

func labFInv(t float64) float64 {
	if t3 := t * t * t; t3 > 0.008856 {
		return t3
	}
	return (t - 16.0/116.0) / 7.787
}

func srgbToLinear(c float64) float64 {
	if c <= 0.04045 {
		return c / 12.92
	}
	return math.Pow((c+0.055)/1.055, 2.4)
}

func linearToSrgb(c float64) float64 {
	if c <= 0.0031308 {
		return 12.92 * c
	}
	return 1.055*math.Pow(c, 1/2.4) - 0.055
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
