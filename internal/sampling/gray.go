package sampling

import (
	"errors"
	"image"
	"image/color"
)

// ErrSizeMismatch is returned when two projections of different size are compared.
var ErrSizeMismatch = errors.New("grayscale projections differ in size")

// Fixed-point luma weights (BT.601, 14 fractional bits).
const (
	lumaR     = 4899
	lumaG     = 9617
	lumaB     = 1868
	lumaShift = 14
	lumaRound = 1 << (lumaShift - 1)
)

func luma(r, g, b uint8) uint8 {
	return uint8((uint32(r)*lumaR + uint32(g)*lumaG + uint32(b)*lumaB + lumaRound) >> lumaShift)
}

// Grayscale reduces img to a single luminance channel. The result always
// starts at the origin so projections of equally sized frames compare
// pixel for pixel.
func Grayscale(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))

	switch src := img.(type) {
	case *image.Gray:
		for y := 0; y < b.Dy(); y++ {
			copy(gray.Pix[y*gray.Stride:y*gray.Stride+b.Dx()], src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):])
		}
	case *image.RGBA:
		grayFromInterleaved(gray, src.Pix, src.Stride, src.PixOffset(b.Min.X, b.Min.Y))
	case *image.NRGBA:
		// Video frames are opaque, so straight and premultiplied alpha agree.
		grayFromInterleaved(gray, src.Pix, src.Stride, src.PixOffset(b.Min.X, b.Min.Y))
	default:
		for y := 0; y < b.Dy(); y++ {
			row := gray.Pix[y*gray.Stride:]
			for x := 0; x < b.Dx(); x++ {
				c := color.RGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.RGBA)
				row[x] = luma(c.R, c.G, c.B)
			}
		}
	}

	return gray
}

// grayFromInterleaved converts 4-byte-per-pixel rows starting at offset.
func grayFromInterleaved(dst *image.Gray, pix []byte, stride, offset int) {
	w, h := dst.Rect.Dx(), dst.Rect.Dy()
	for y := 0; y < h; y++ {
		src := pix[offset+y*stride : offset+y*stride+w*4]
		row := dst.Pix[y*dst.Stride : y*dst.Stride+w]
		for x := range row {
			p := src[x*4 : x*4+3 : x*4+3]
			row[x] = luma(p[0], p[1], p[2])
		}
	}
}

// MeanAbsDiff returns the mean absolute per-pixel difference between two
// projections, on the 0–255 scale.
func MeanAbsDiff(a, b *image.Gray) (float64, error) {
	w, h := a.Rect.Dx(), a.Rect.Dy()
	if w != b.Rect.Dx() || h != b.Rect.Dy() {
		return 0, ErrSizeMismatch
	}
	if w == 0 || h == 0 {
		return 0, nil
	}

	var sum uint64
	for y := 0; y < h; y++ {
		ra := a.Pix[a.PixOffset(a.Rect.Min.X, a.Rect.Min.Y+y):][:w]
		rb := b.Pix[b.PixOffset(b.Rect.Min.X, b.Rect.Min.Y+y):][:w]
		for x := range ra {
			if ra[x] > rb[x] {
				sum += uint64(ra[x] - rb[x])
			} else {
				sum += uint64(rb[x] - ra[x])
			}
		}
	}

	return float64(sum) / float64(w*h), nil
}
