package detector

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// toNRGBA converts any image type to *image.NRGBA with min-point at (0, 0).
func toNRGBA(img image.Image) *image.NRGBA {
	srcBounds := img.Bounds()
	if srcBounds.Min.X == 0 && srcBounds.Min.Y == 0 {
		if src0, ok := img.(*image.NRGBA); ok {
			return src0
		}
	}
	minX, minY := srcBounds.Min.X, srcBounds.Min.Y

	dstBounds := srcBounds.Sub(srcBounds.Min)
	dstW, dstH := dstBounds.Dx(), dstBounds.Dy()
	dst := image.NewNRGBA(dstBounds)

	switch src := img.(type) {
	case *image.NRGBA:
		rowSize := dstW * 4
		for y := 0; y < dstH; y++ {
			di := dst.PixOffset(0, y)
			si := src.PixOffset(minX, minY+y)
			copy(dst.Pix[di:di+rowSize], src.Pix[si:si+rowSize])
		}
	case *image.YCbCr:
		for y := 0; y < dstH; y++ {
			di := dst.PixOffset(0, y)
			for x := 0; x < dstW; x++ {
				siy := src.YOffset(minX+x, minY+y)
				sic := src.COffset(minX+x, minY+y)
				r, g, b := color.YCbCrToRGB(src.Y[siy], src.Cb[sic], src.Cr[sic])
				dst.Pix[di+0] = r
				dst.Pix[di+1] = g
				dst.Pix[di+2] = b
				dst.Pix[di+3] = 0xff
				di += 4
			}
		}
	default:
		for y := 0; y < dstH; y++ {
			di := dst.PixOffset(0, y)
			for x := 0; x < dstW; x++ {
				c := color.NRGBAModel.Convert(img.At(minX+x, minY+y)).(color.NRGBA)
				dst.Pix[di+0] = c.R
				dst.Pix[di+1] = c.G
				dst.Pix[di+2] = c.B
				dst.Pix[di+3] = c.A
				di += 4
			}
		}
	}

	return dst
}

// grayscale writes the luminance of src into buf, growing it when needed, and
// returns the pixel values as a one dimensional array.
func grayscale(buf []uint8, src *image.NRGBA) []uint8 {
	width, height := src.Bounds().Dx(), src.Bounds().Dy()
	if cap(buf) < width*height {
		buf = make([]uint8, width*height)
	}
	buf = buf[:width*height]

	for y := 0; y < height; y++ {
		si := src.PixOffset(0, y)
		for x := 0; x < width; x++ {
			r, g, b := float64(src.Pix[si]), float64(src.Pix[si+1]), float64(src.Pix[si+2])
			buf[y*width+x] = uint8(0.299*r + 0.587*g + 0.114*b)
			si += 4
		}
	}
	return buf
}

// resize downscales src to the given width, keeping the aspect ratio.
func resize(src *image.NRGBA, width int) *image.NRGBA {
	return imaging.Resize(src, width, 0, imaging.Linear)
}
