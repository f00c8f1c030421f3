package facemark

import (
	"fmt"
	"image/color"
	"strings"
	"sync"
)

// Recorder is a Surface that records every draw call as a line of text.
// It is used to trace and compare overlays without rasterizing them.
type Recorder struct {
	mu  sync.Mutex
	ops []string
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) record(format string, args ...any) {
	r.mu.Lock()
	r.ops = append(r.ops, fmt.Sprintf(format, args...))
	r.mu.Unlock()
}

func (r *Recorder) Clear() {
	r.record("clear")
}

func (r *Recorder) StrokeRect(x, y, w, h float64) {
	r.record("strokeRect %g %g %g %g", x, y, w, h)
}

func (r *Recorder) FillRect(x, y, w, h float64) {
	r.record("fillRect %g %g %g %g", x, y, w, h)
}

func (r *Recorder) StrokeCircle(x, y, rad float64) {
	r.record("strokeCircle %g %g %g", x, y, rad)
}

func (r *Recorder) FillCircle(x, y, rad float64) {
	r.record("fillCircle %g %g %g", x, y, rad)
}

func (r *Recorder) SetStrokeColor(c color.Color) {
	r.record("strokeColor %s", hexColor(c))
}

func (r *Recorder) SetFillColor(c color.Color) {
	r.record("fillColor %s", hexColor(c))
}

func (r *Recorder) SetLineWidth(w float64) {
	r.record("lineWidth %g", w)
}

func (r *Recorder) DrawText(s string, x, y float64, font Font) {
	r.record("text %q %g %g %s", s, x, y, font)
}

// Ops returns a copy of the recorded draw calls.
func (r *Recorder) Ops() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ops...)
}

// Len returns the number of recorded draw calls.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ops)
}

// Reset discards the recorded calls.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.ops = nil
	r.mu.Unlock()
}

func (r *Recorder) String() string {
	return strings.Join(r.Ops(), "\n")
}

func hexColor(c color.Color) string {
	if c == nil {
		return "none"
	}
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return fmt.Sprintf("#%02x%02x%02x%02x", n.R, n.G, n.B, n.A)
}
