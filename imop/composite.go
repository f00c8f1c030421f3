// Package imop implements the Porter-Duff composition operations used to lay
// the detection overlay onto the video frames. The image/draw package only
// provides source-over-destination and source; the remaining operations let the
// published stream show the overlay alone, underneath, or clipped to the frame.
package imop

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/pkg/errors"
)

// Op is a Porter-Duff composition operation.
type Op string

const (
	Copy    Op = "copy"
	SrcOver Op = "src_over"
	DstOver Op = "dst_over"
	SrcAtop Op = "src_atop"
	Xor     Op = "xor"
)

var ops = []Op{Copy, SrcOver, DstOver, SrcAtop, Xor}

// ParseOp returns the operation named s.
func ParseOp(s string) (Op, error) {
	for _, op := range ops {
		if string(op) == s {
			return op, nil
		}
	}
	return "", errors.Errorf("unsupported composite operation %q", s)
}

// Composite combines src (the overlay) with backdrop (the frame) and returns
// the result on a new image with the bounds of backdrop.
func Composite(op Op, src, backdrop image.Image) *image.NRGBA {
	b := backdrop.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), backdrop, b.Min, draw.Src)

	overlay := image.NewNRGBA(dst.Bounds())
	draw.Draw(overlay, overlay.Bounds(), src, src.Bounds().Min, draw.Src)

	for i := 0; i+3 < len(dst.Pix); i += 4 {
		s := overlay.Pix[i : i+4 : i+4]
		d := dst.Pix[i : i+4 : i+4]
		c := composite(op, s, d)
		d[0], d[1], d[2], d[3] = c.R, c.G, c.B, c.A
	}
	return dst
}

// composite applies the composition formula on a single pair of
// non-premultiplied pixels.
func composite(op Op, s, d []uint8) color.NRGBA {
	var (
		rs, gs, bs, as = norm(s[0]), norm(s[1]), norm(s[2]), norm(s[3])
		rb, gb, bb, ab = norm(d[0]), norm(d[1]), norm(d[2]), norm(d[3])
		fs, fb         float64
	)

	// Each operation is expressed through the coverage factors applied
	// to the source and to the backdrop.
	switch op {
	case Copy:
		fs, fb = 1, 0
	case SrcOver:
		fs, fb = 1, 1-as
	case DstOver:
		fs, fb = 1-ab, 1
	case SrcAtop:
		fs, fb = ab, 1-as
	case Xor:
		fs, fb = 1-ab, 1-as
	default:
		fs, fb = 1, 1-as
	}

	an := as*fs + ab*fb
	if an <= 0 {
		return color.NRGBA{}
	}
	rn := (as*rs*fs + ab*rb*fb) / an
	gn := (as*gs*fs + ab*gb*fb) / an
	bn := (as*bs*fs + ab*bb*fb) / an

	return color.NRGBA{R: denorm(rn), G: denorm(gn), B: denorm(bn), A: denorm(an)}
}

func norm(v uint8) float64 { return float64(v) / 255 }

func denorm(v float64) uint8 {
	return uint8(math.Round(math.Min(math.Max(v, 0), 1) * 255))
}
