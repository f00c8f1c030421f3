package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esimov/facemark"
	"github.com/esimov/facemark/canvas"
	"github.com/esimov/facemark/imop"
	"github.com/esimov/facemark/internal/config"
	"github.com/esimov/facemark/scheduler"
)

type stubDetector struct{}

func (stubDetector) Detect(frame image.Image, _ int64) ([]*facemark.DetectionResult, error) {
	return []*facemark.DetectionResult{{
		Confidence:  0.9,
		BoundingBox: facemark.BoundingBox{X: 8, Y: 24, Width: 30, Height: 30},
		Keypoints:   []facemark.Keypoint{{X: 0.5, Y: 0.5}},
	}}, nil
}

type stubSource struct {
	frame image.Image
}

func (s stubSource) Frame() (image.Image, error) {
	if s.frame == nil {
		return nil, errors.New("no frame")
	}
	return s.frame, nil
}

func (s stubSource) DisplaySize() facemark.Dimensions {
	return facemark.Dimensions{Width: 64, Height: 48}
}

func solid(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

type fixture struct {
	srv       *Server
	session   *facemark.Session
	publisher *Publisher
	overlay   *canvas.Canvas
}

func newFixture(t *testing.T, build facemark.BuildFunc) *fixture {
	t.Helper()

	sched := scheduler.New(clock.NewMock(), 0)
	session, err := facemark.NewSession(facemark.Options{
		Build:     build,
		Scheduler: sched,
		Clock:     clock.NewMock(),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		session.Close()
		sched.Close()
	})

	src := stubSource{frame: solid(64, 48, color.NRGBA{R: 40, G: 40, B: 40, A: 255})}
	overlay := canvas.New(64, 48)
	pub := NewPublisher(src, overlay, imop.SrcOver, 80, zerolog.Nop())

	cfg := &config.Config{
		Version:         "test",
		JPEGQuality:     80,
		ShutdownTimeout: time.Second,
	}
	srv := New(cfg, Deps{
		Session:   session,
		Source:    src,
		Overlay:   overlay,
		Publisher: pub,
		Logger:    zerolog.Nop(),
	})

	return &fixture{srv: srv, session: session, publisher: pub, overlay: overlay}
}

func workingBuild(context.Context, facemark.DetectorConfig) (facemark.Detector, error) {
	return stubDetector{}, nil
}

func (f *fixture) do(method, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, req)
	return w
}

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	m.Run()
}

func TestServer_Health(t *testing.T) {
	f := newFixture(t, workingBuild)

	w := f.do(http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, HealthResponse{Status: "healthy", Version: "test"}, resp)
}

func TestServer_StartAndStopSession(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t, workingBuild)

	var resp SessionResponse
	w := f.do(http.MethodGet, "/session", nil, "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal("idle", resp.State)
	assert.False(resp.DetectorReady)

	w = f.do(http.MethodPost, "/session/start", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal("polling", resp.State)
	assert.True(resp.DetectorReady)

	w = f.do(http.MethodPost, "/session/stop", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal("idle", resp.State)
	assert.True(resp.DetectorReady)
}

func TestServer_StartFailsWhenDetectorCannotBeBuilt(t *testing.T) {
	f := newFixture(t, func(context.Context, facemark.DetectorConfig) (facemark.Detector, error) {
		return nil, errors.New("cascade missing")
	})

	w := f.do(http.MethodPost, "/session/start", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "cascade missing")
	assert.Equal(t, facemark.StateIdle, f.session.State())
}

func TestServer_FrameBeforeAndAfterPaint(t *testing.T) {
	f := newFixture(t, workingBuild)

	w := f.do(http.MethodGet, "/frame", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	f.overlay.SetFillColor(color.NRGBA{G: 255, A: 255})
	f.overlay.FillRect(0, 0, 64, 48)
	f.publisher.Paint()

	w = f.do(http.MethodGet, "/frame", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))

	img, err := jpeg.Decode(w.Body)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 64, 48), img.Bounds())

	_, g, _, _ := img.At(32, 24).RGBA()
	assert.Greater(t, g>>8, uint32(200))
	assert.Equal(t, uint64(1), f.publisher.Frames())
}

func TestServer_DetectAnnotatesUpload(t *testing.T) {
	f := newFixture(t, workingBuild)

	var upload bytes.Buffer
	require.NoError(t, png.Encode(&upload, solid(80, 60, color.White)))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "face.png")
	require.NoError(t, err)
	_, err = part.Write(upload.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	w := f.do(http.MethodPost, "/detect", &body, mw.FormDataContentType())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))

	img, err := jpeg.Decode(w.Body)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 80, 60), img.Bounds())

	// The left edge of the box is stroked over the white background.
	r, g, b, _ := img.At(8, 40).RGBA()
	assert.False(t, r>>8 > 240 && g>>8 > 240 && b>>8 > 240)
}

func TestServer_DetectRequiresImage(t *testing.T) {
	f := newFixture(t, workingBuild)

	w := f.do(http.MethodPost, "/detect", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_StreamWritesMultipartFrames(t *testing.T) {
	f := newFixture(t, workingBuild)
	f.publisher.Paint()

	ts := httptest.NewServer(f.srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "multipart/x-mixed-replace"))

	r := bufio.NewReader(resp.Body)
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "--frame\r\n", line)

	line, err = r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "Content-Type: image/jpeg\r\n", line)
}
