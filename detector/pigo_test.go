package detector

import (
	"context"
	"encoding/binary"
	"image"
	"image/color"
	"image/draw"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	pigo "github.com/esimov/pigo/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esimov/facemark"
)

func TestDetector_ConfidenceIsBounded(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(0.0, confidence(-3))
	assert.Equal(0.0, confidence(0))
	assert.InDelta(0.5, confidence(6.9315), 0.001)
	assert.Less(confidence(100), 1.0)
	assert.Greater(confidence(20), confidence(10))
}

func TestDetector_ResultInSourcePixels(t *testing.T) {
	assert := assert.New(t)

	det := pigo.Detection{Row: 100, Col: 80, Scale: 40, Q: 12}

	res := toResult(det, 0.7, 1)
	assert.Equal(facemark.BoundingBox{X: 60, Y: 80, Width: 40, Height: 40}, res.BoundingBox)
	assert.Equal(0.7, res.Confidence)
	assert.Nil(res.Keypoints)

	// Detected on a frame downscaled to half its size.
	res = toResult(det, 0.7, 0.5)
	assert.Equal(facemark.BoundingBox{X: 120, Y: 160, Width: 80, Height: 80}, res.BoundingBox)
}

func TestDetector_KeypointsWithoutPupilCascade(t *testing.T) {
	p := &Pigo{}
	kps := p.keypoints(pigo.Detection{Row: 10, Col: 10, Scale: 10}, pigo.ImageParams{Rows: 20, Cols: 20})

	assert.NotNil(t, kps)
	assert.Empty(t, kps)
}

func TestDetector_NormalizeClampsToUnitSquare(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(facemark.Keypoint{X: 0.25, Y: 0.5}, normalize(50, 100, 200, 200))
	assert.Equal(facemark.Keypoint{X: 1, Y: 1}, normalize(250, 300, 200, 200))
}

func TestDetector_GrayscaleReusesBuffer(t *testing.T) {
	assert := assert.New(t)

	img := image.NewNRGBA(image.Rect(0, 0, 3, 1))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	img.Set(1, 0, color.NRGBA{G: 255, A: 255})
	img.Set(2, 0, color.NRGBA{B: 255, A: 255})

	buf := make([]uint8, 0, 16)
	gray := grayscale(buf, img)

	assert.Equal([]uint8{76, 149, 29}, gray)
	assert.Equal(16, cap(gray))
}

func TestDetector_ToNRGBAMovesOrigin(t *testing.T) {
	assert := assert.New(t)

	src := image.NewRGBA(image.Rect(10, 10, 14, 12))
	draw.Draw(src, src.Bounds(), &image.Uniform{color.RGBA{R: 200, G: 10, B: 30, A: 255}}, image.Point{}, draw.Src)

	dst := toNRGBA(src)
	assert.Equal(image.Rect(0, 0, 4, 2), dst.Bounds())
	assert.Equal(color.NRGBA{R: 200, G: 10, B: 30, A: 255}, dst.NRGBAAt(3, 1))

	nrgba := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	assert.Same(nrgba, toNRGBA(nrgba))
}

func TestDetector_ResizeKeepsAspectRatio(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 1280, 720))
	dst := resize(src, 640)

	assert.Equal(t, image.Rect(0, 0, 640, 360), dst.Bounds())
}

func TestDetector_DefaultFaceCascade(t *testing.T) {
	assert.Equal(t, DefaultFaceCascade, withDefaults(Options{}).FaceCascade)
	assert.Equal(t, "cascade/facefinder", withDefaults(Options{FaceCascade: "cascade/facefinder"}).FaceCascade)
}

func TestDetector_NewReportsMissingCascade(t *testing.T) {
	_, err := New(context.Background(), Options{
		FaceCascade: filepath.Join(t.TempDir(), "facefinder"),
	}, facemark.SessionDetectorConfig())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "load face cascade")
}

func TestDetector_LoadCascadeFromURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte{1, 2, 3, 4})
	}))
	defer srv.Close()

	data, err := loadCascade(context.Background(), srv.URL+"/facefinder")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, data)
}

func TestDetector_DefaultsFillZeroOptions(t *testing.T) {
	opts := withDefaults(Options{MinSize: 20})

	assert.Equal(t, 20, opts.MinSize)
	assert.Equal(t, DefaultOptions().MaxSize, opts.MaxSize)
	assert.Equal(t, 1.1, opts.ScaleFactor)
	assert.Equal(t, 0.2, opts.IoUThreshold)
}

func TestDetector_VideoModeRejectsOlderTimestamps(t *testing.T) {
	p := &Pigo{
		opts:   withDefaults(Options{}),
		cfg:    facemark.SessionDetectorConfig(),
		lastTs: 500,
	}

	_, err := p.Detect(image.NewNRGBA(image.Rect(0, 0, 10, 10)), 100)
	assert.Error(t, err)
}

// flatCascade packs a single tree, depth one cascade in the pigo binary format.
// Its only node compares a pixel with itself, so every window scores the
// second leaf: q = leaf - threshold, or a rejection when leaf <= threshold.
func flatCascade(leaf, threshold float32) []byte {
	buf := make([]byte, 8)
	buf = binary.LittleEndian.AppendUint32(buf, 1) // tree depth
	buf = binary.LittleEndian.AppendUint32(buf, 1) // tree count
	buf = append(buf, 0, 0, 0, 0)                  // node codes
	for _, v := range []float32{0, leaf, threshold} {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
	}
	return buf
}

func flatDetector(t *testing.T, leaf, threshold float32, opts Options) *Pigo {
	t.Helper()
	face, err := pigo.NewPigo().Unpack(flatCascade(leaf, threshold))
	require.NoError(t, err)
	return &Pigo{
		opts: withDefaults(opts),
		cfg:  facemark.SessionDetectorConfig(),
		face: face,
	}
}

// A 22x22 frame holds exactly one 20px window, centered at (11, 11).
var singleWindow = Options{MinSize: 20, MaxSize: 20}

func TestDetector_DetectBlankFrame(t *testing.T) {
	p := flatDetector(t, 0, 1, Options{MinSize: 20})

	results, err := p.Detect(image.NewNRGBA(image.Rect(0, 0, 64, 48)), 0)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestDetector_DetectSingleWindow(t *testing.T) {
	assert := assert.New(t)

	p := flatDetector(t, 21, 1, singleWindow)

	results, err := p.Detect(image.NewNRGBA(image.Rect(0, 0, 22, 22)), 0)
	require.NoError(t, err)
	require.Len(t, results, 1)

	res := results[0]
	assert.Equal(facemark.BoundingBox{X: 1, Y: 1, Width: 20, Height: 20}, res.BoundingBox)
	assert.InDelta(1-math.Exp(-2), res.Confidence, 1e-6)
	assert.NotNil(res.Keypoints)
	assert.Empty(res.Keypoints)
}

func TestDetector_DetectFiltersLowConfidence(t *testing.T) {
	// q = 2 maps to a confidence of about 0.18, below the 0.5 threshold.
	p := flatDetector(t, 3, 1, singleWindow)

	results, err := p.Detect(image.NewNRGBA(image.Rect(0, 0, 22, 22)), 0)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestDetector_DetectMapsDownscaledFrame(t *testing.T) {
	opts := singleWindow
	opts.MaxWidth = 22
	p := flatDetector(t, 21, 1, opts)

	results, err := p.Detect(image.NewNRGBA(image.Rect(0, 0, 44, 44)), 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, facemark.BoundingBox{X: 2, Y: 2, Width: 40, Height: 40}, results[0].BoundingBox)
}

func TestDetector_NewLoadsCascadeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facefinder")
	require.NoError(t, os.WriteFile(path, flatCascade(21, 1), 0o644))

	opts := singleWindow
	opts.FaceCascade = path
	p, err := New(context.Background(), opts, facemark.SessionDetectorConfig())
	require.NoError(t, err)
	assert.Equal(t, facemark.DelegateCPU, p.Delegate())

	results, err := p.Detect(image.NewNRGBA(image.Rect(0, 0, 22, 22)), 0)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}
