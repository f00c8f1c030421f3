package facemark

import (
	"fmt"
	"image/color"
)

// Dimensions is a width and height in surface units.
type Dimensions struct {
	Width, Height float64
}

// Font describes the text face used by DrawText.
type Font struct {
	Family string
	Size   float64 // points
	Bold   bool
}

func (f Font) String() string {
	if f.Bold {
		return fmt.Sprintf("bold %gpt %s", f.Size, f.Family)
	}
	return fmt.Sprintf("%gpt %s", f.Size, f.Family)
}

// Surface is a 2D immediate mode drawing surface.
type Surface interface {
	Clear()
	StrokeRect(x, y, w, h float64)
	FillRect(x, y, w, h float64)
	DrawText(s string, x, y float64, font Font)
	StrokeCircle(x, y, r float64)
	FillCircle(x, y, r float64)
	SetStrokeColor(c color.Color)
	SetFillColor(c color.Color)
	SetLineWidth(w float64)
}

type teeSurface []Surface

// Tee returns a Surface that replays every call on each of surfaces, in order.
func Tee(surfaces ...Surface) Surface {
	return teeSurface(surfaces)
}

func (t teeSurface) Clear() {
	for _, s := range t {
		s.Clear()
	}
}

func (t teeSurface) StrokeRect(x, y, w, h float64) {
	for _, s := range t {
		s.StrokeRect(x, y, w, h)
	}
}

func (t teeSurface) FillRect(x, y, w, h float64) {
	for _, s := range t {
		s.FillRect(x, y, w, h)
	}
}

func (t teeSurface) DrawText(str string, x, y float64, font Font) {
	for _, s := range t {
		s.DrawText(str, x, y, font)
	}
}

func (t teeSurface) StrokeCircle(x, y, r float64) {
	for _, s := range t {
		s.StrokeCircle(x, y, r)
	}
}

func (t teeSurface) FillCircle(x, y, r float64) {
	for _, s := range t {
		s.FillCircle(x, y, r)
	}
}

func (t teeSurface) SetStrokeColor(c color.Color) {
	for _, s := range t {
		s.SetStrokeColor(c)
	}
}

func (t teeSurface) SetFillColor(c color.Color) {
	for _, s := range t {
		s.SetFillColor(c)
	}
}

func (t teeSurface) SetLineWidth(w float64) {
	for _, s := range t {
		s.SetLineWidth(w)
	}
}
