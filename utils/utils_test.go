package utils

import (
	"bytes"
	"image"
	"image/color"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/colornames"
)

func TestUtils_MinMaxClamp(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(2, Min(2, 5))
	assert.Equal(2, Min(5, 2))
	assert.Equal(5, Max(2, 5))
	assert.Equal(1.0, Clamp(1.7, 0, 1))
	assert.Equal(0.0, Clamp(-0.2, 0, 1))
	assert.Equal(0.4, Clamp(0.4, 0, 1))
}

func TestUtils_ParseColor(t *testing.T) {
	assert := assert.New(t)

	c, err := ParseColor("Tomato")
	assert.NoError(err)
	assert.Equal(colornames.Tomato, c)

	c, err = ParseColor("#7fffd4")
	assert.NoError(err)
	assert.Equal(color.NRGBA{R: 0x7f, G: 0xff, B: 0xd4, A: 0xff}, c)

	c, err = ParseColor("#fff")
	assert.NoError(err)
	assert.Equal(color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}, c)

	c, err = ParseColor("#ff000080")
	assert.NoError(err)
	assert.Equal(color.NRGBA{R: 0xff, A: 0x80}, c)

	_, err = ParseColor("not-a-color")
	assert.Error(err)
	_, err = ParseColor("#12345")
	assert.Error(err)
}

func TestUtils_FormatTime(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("1.50s", FormatTime(1500*time.Millisecond))
	assert.Equal("2m 5.00s", FormatTime(2*time.Minute+5*time.Second))
	assert.Equal("1h 1m 1.00s", FormatTime(time.Hour+time.Minute+time.Second))
	assert.Equal("1h 0m 5.00s", FormatTime(time.Hour+5*time.Second))
}

func TestUtils_Paint(t *testing.T) {
	assert.Equal(t, "\x1b[31mfailed\x1b[0m", Paint("failed", ErrorMessage))
	assert.Equal(t, "plain", Paint("plain", MessageType(9)))
	assert.Equal(t, "\x1b[36m◉ FACEMARK\x1b[0m \x1b[0m⇢ ready\x1b[0m \x1b[32m✔\x1b[0m",
		StatusLine("ready", "✔", SuccessMessage))
}

func TestUtils_EncodeByExtension(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	dir := t.TempDir()

	for _, name := range []string{"out.jpg", "out.png", "out.bmp"} {
		f, err := os.Create(filepath.Join(dir, name))
		require.NoError(t, err)
		require.NoError(t, EncodeImage(f, img, 90))
		require.NoError(t, f.Close())

		decoded, err := DecodeImage(f.Name())
		require.NoError(t, err, name)
		assert.Equal(t, img.Bounds(), decoded.Bounds(), name)
	}

	f, err := os.Create(filepath.Join(dir, "out.tiff"))
	require.NoError(t, err)
	defer f.Close()
	assert.Error(t, EncodeImage(f, img, 90))

	var buf bytes.Buffer
	require.NoError(t, EncodeImage(&buf, img, 0))
	decoded, err := DecodeReader(&buf)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), decoded.Bounds())
}

func TestUtils_DecodeImageKeepsCause(t *testing.T) {
	_, err := DecodeImage(filepath.Join(t.TempDir(), "missing.jpg"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not open the image file")
	assert.ErrorIs(t, errors.Cause(err), fs.ErrNotExist)
}

func TestUtils_ValidExtension(t *testing.T) {
	assert.True(t, IsValidExtension(".JPG"))
	assert.False(t, IsValidExtension(".txt"))
}

func TestUtils_SpinnerFollowsProgress(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinner("loading", time.Millisecond, false)
	s.SetWriter(&buf)
	s.StopMsg = "done"

	s.Progress(false)
	s.Progress(false)
	time.Sleep(5 * time.Millisecond)
	s.Progress(true)
	s.Progress(true)

	assert.Contains(t, buf.String(), "done")
}
