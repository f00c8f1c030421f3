package facemark

import (
	"image/color"

	"golang.org/x/image/colornames"
)

// RenderStyle configures how Render draws a batch of results.
type RenderStyle struct {
	ClearBeforeDraw bool
	ShowScore       bool
	ShowKeypoints   bool
	PointRadius     float64
	PointColor      color.Color
	BoxColor        color.Color
	BoxStrokeWidth  float64
}

// DefaultStyle returns the base overlay style.
func DefaultStyle() RenderStyle {
	return RenderStyle{
		ClearBeforeDraw: true,
		ShowScore:       false,
		ShowKeypoints:   true,
		PointRadius:     2,
		PointColor:      colornames.Aquamarine,
		BoxColor:        colornames.Tomato,
		BoxStrokeWidth:  3,
	}
}

// Live returns the style used by the polling loop: the surface is cleared
// on every pass and the confidence badge is shown.
func (s RenderStyle) Live() RenderStyle {
	s.ClearBeforeDraw = true
	s.ShowScore = true
	return s
}

// Still returns the style used for one-shot detection: drawing is additive.
func (s RenderStyle) Still() RenderStyle {
	s.ClearBeforeDraw = false
	s.ShowScore = true
	return s
}
