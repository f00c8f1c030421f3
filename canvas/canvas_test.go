package canvas

import (
	"image"
	"image/color"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/image/colornames"

	"github.com/esimov/facemark"
)

func opaquePixels(img *image.RGBA) int {
	n := 0
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 0 {
			n++
		}
	}
	return n
}

func TestCanvas_FillAndClear(t *testing.T) {
	assert := assert.New(t)

	c := New(20, 20)
	assert.Equal(facemark.Dimensions{Width: 20, Height: 20}, c.Size())

	c.SetFillColor(colornames.Tomato)
	c.FillRect(2, 2, 8, 8)

	snap := c.Snapshot()
	assert.Equal(color.RGBA{R: 0xff, G: 0x63, B: 0x47, A: 0xff}, snap.RGBAAt(5, 5))
	assert.Equal(color.RGBA{}, snap.RGBAAt(15, 15))

	c.Clear()
	assert.Zero(opaquePixels(c.Snapshot()))
}

func TestCanvas_StrokeLeavesInteriorEmpty(t *testing.T) {
	c := New(40, 40)
	c.SetStrokeColor(colornames.Tomato)
	c.SetLineWidth(2)
	c.StrokeRect(5, 5, 30, 30)

	snap := c.Snapshot()
	assert.NotZero(t, snap.RGBAAt(5, 20).A)
	assert.Zero(t, snap.RGBAAt(20, 20).A)
}

func TestCanvas_FillCircle(t *testing.T) {
	c := New(20, 20)
	c.SetFillColor(colornames.Aquamarine)
	c.FillCircle(10, 10, 4)

	snap := c.Snapshot()
	assert.Equal(t, color.RGBA{R: 0x7f, G: 0xff, B: 0xd4, A: 0xff}, snap.RGBAAt(10, 10))
	assert.Zero(t, snap.RGBAAt(1, 1).A)
}

func TestCanvas_DrawText(t *testing.T) {
	c := New(60, 30)
	c.SetFillColor(color.White)
	c.DrawText("87%", 5, 20, facemark.BadgeFont)

	assert.NotZero(t, opaquePixels(c.Snapshot()))
}

func TestCanvas_ConcurrentDrawText(t *testing.T) {
	canvases := make([]*Canvas, 4)
	var wg sync.WaitGroup
	for i := range canvases {
		c := New(100, 40)
		c.SetFillColor(color.White)
		canvases[i] = c

		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				c.DrawText("87%", 5, 20, facemark.BadgeFont)
			}
		}()
	}
	wg.Wait()

	for _, c := range canvases {
		assert.NotZero(t, opaquePixels(c.Snapshot()))
	}
}

func TestCanvas_RendersOverlay(t *testing.T) {
	c := NewFromImage(image.NewNRGBA(image.Rect(0, 0, 200, 100)))

	facemark.Render([]*facemark.DetectionResult{{
		Confidence:  0.9,
		BoundingBox: facemark.BoundingBox{X: 40, Y: 30, Width: 60, Height: 50},
		Keypoints:   []facemark.Keypoint{{X: 0.5, Y: 0.5}},
	}}, c.Size(), c, facemark.DefaultStyle().Live())

	snap := c.Snapshot()
	// badge interior
	assert.Equal(t, uint8(0xff), snap.RGBAAt(80, 14).R)
	// box interior stays transparent
	assert.Zero(t, snap.RGBAAt(60, 55).A)
	// keypoint projected to (97, 47)
	assert.NotZero(t, snap.RGBAAt(97, 47).A)
}

func TestCanvas_SnapshotIsACopy(t *testing.T) {
	c := New(4, 4)
	snap := c.Snapshot()

	c.SetFillColor(color.Black)
	c.FillRect(0, 0, 4, 4)

	assert.Zero(t, snap.RGBAAt(1, 1).A)
}
