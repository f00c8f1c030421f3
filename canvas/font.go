package canvas

import (
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/esimov/facemark"
)

// Parsed fonts are read only and shared. Faces keep glyph buffers and are
// owned by a single Canvas.
var regular, bold *truetype.Font

type faceKey struct {
	size float64
	bold bool
}

// init sets up the fonts we want to use. The Go fonts stand in for any
// requested family.
func init() {
	var err error
	if regular, err = truetype.Parse(goregular.TTF); err != nil {
		panic(err)
	}
	if bold, err = truetype.Parse(gobold.TTF); err != nil {
		panic(err)
	}
}

// face returns the face of c matching f, creating it on first use.
// Caller must hold c.mu.
func (c *Canvas) face(f facemark.Font) font.Face {
	key := faceKey{size: f.Size, bold: f.Bold}
	if face, ok := c.faces[key]; ok {
		return face
	}
	ttf := regular
	if f.Bold {
		ttf = bold
	}
	face := truetype.NewFace(ttf, &truetype.Options{Size: f.Size})
	c.faces[key] = face
	return face
}
