// Package canvas provides a raster facemark.Surface backed by fogleman/gg.
package canvas

import (
	"image"
	"image/color"
	"image/draw"
	"sync"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"

	"github.com/esimov/facemark"
)

// Canvas is a raster drawing surface. It is safe for concurrent use.
type Canvas struct {
	mu        sync.Mutex
	dc        *gg.Context
	stroke    color.Color
	fill      color.Color
	lineWidth float64
	faces     map[faceKey]font.Face
}

// New returns a transparent canvas of the given size.
func New(width, height int) *Canvas {
	return wrap(gg.NewContext(width, height))
}

// NewFromImage returns a canvas initialized with a copy of img.
func NewFromImage(img image.Image) *Canvas {
	return wrap(gg.NewContextForImage(img))
}

func wrap(dc *gg.Context) *Canvas {
	return &Canvas{
		dc:        dc,
		stroke:    color.Black,
		fill:      color.Black,
		lineWidth: 1,
		faces:     make(map[faceKey]font.Face),
	}
}

// Size returns the canvas dimensions.
func (c *Canvas) Size() facemark.Dimensions {
	return facemark.Dimensions{Width: float64(c.dc.Width()), Height: float64(c.dc.Height())}
}

// Snapshot returns a copy of the current canvas content.
func (c *Canvas) Snapshot() *image.RGBA {
	c.mu.Lock()
	defer c.mu.Unlock()

	src := c.dc.Image()
	dst := image.NewRGBA(src.Bounds())
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	return dst
}

// Clear makes the whole canvas transparent.
func (c *Canvas) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dc.SetColor(color.Transparent)
	c.dc.Clear()
}

func (c *Canvas) StrokeRect(x, y, w, h float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dc.DrawRectangle(x, y, w, h)
	c.strokePath()
}

func (c *Canvas) FillRect(x, y, w, h float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dc.DrawRectangle(x, y, w, h)
	c.fillPath()
}

// DrawText draws s with its baseline starting at (x, y) in the fill color.
func (c *Canvas) DrawText(s string, x, y float64, f facemark.Font) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dc.SetFontFace(c.face(f))
	c.dc.SetColor(c.fill)
	c.dc.DrawString(s, x, y)
}

func (c *Canvas) StrokeCircle(x, y, r float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dc.DrawCircle(x, y, r)
	c.strokePath()
}

func (c *Canvas) FillCircle(x, y, r float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dc.DrawCircle(x, y, r)
	c.fillPath()
}

func (c *Canvas) SetStrokeColor(col color.Color) {
	c.mu.Lock()
	c.stroke = col
	c.mu.Unlock()
}

func (c *Canvas) SetFillColor(col color.Color) {
	c.mu.Lock()
	c.fill = col
	c.mu.Unlock()
}

func (c *Canvas) SetLineWidth(w float64) {
	c.mu.Lock()
	c.lineWidth = w
	c.mu.Unlock()
}

// strokePath strokes the current path. Caller must hold the lock.
func (c *Canvas) strokePath() {
	c.dc.SetColor(c.stroke)
	c.dc.SetLineWidth(c.lineWidth)
	c.dc.Stroke()
}

// fillPath fills the current path. Caller must hold the lock.
func (c *Canvas) fillPath() {
	c.dc.SetColor(c.fill)
	c.dc.Fill()
}
