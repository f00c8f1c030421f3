package server

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/esimov/facemark"
	"github.com/esimov/facemark/canvas"
	"github.com/esimov/facemark/utils"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

type SessionResponse struct {
	State           string  `json:"state"`
	DetectorReady   bool    `json:"detector_ready"`
	Passes          uint64  `json:"passes"`
	SkippedTicks    uint64  `json:"skipped_ticks"`
	FailedPasses    uint64  `json:"failed_passes"`
	LastFaces       int     `json:"last_faces"`
	LastPassMillis  float64 `json:"last_pass_ms"`
	PublishedFrames uint64  `json:"published_frames"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: s.cfg.Version,
	})
}

func (s *Server) sessionStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.sessionResponse())
}

func (s *Server) startSession(c *gin.Context) {
	// The detector build may outlive the request; it is bounded by the
	// shutdown timeout instead.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), s.cfg.ShutdownTimeout)
	defer cancel()

	err := s.deps.Session.StartSession(ctx, s.deps.Source, s.deps.Overlay, s.deps.Callbacks)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to start session")
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.sessionResponse())
}

func (s *Server) stopSession(c *gin.Context) {
	s.deps.Session.StopSession(func() {
		s.logger.Info().Msg("Session stopped on request")
	})
	c.JSON(http.StatusOK, s.sessionResponse())
}

func (s *Server) stream(c *gin.Context) {
	if s.deps.Publisher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "streaming is not enabled"})
		return
	}
	s.deps.Publisher.ServeMJPEG(c.Writer, c.Request)
}

func (s *Server) frame(c *gin.Context) {
	var jpeg []byte
	if s.deps.Publisher != nil {
		jpeg = s.deps.Publisher.Latest()
	}
	if len(jpeg) == 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no frame published yet"})
		return
	}
	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, "image/jpeg", jpeg)
}

// detect annotates an uploaded image with the detected faces.
func (s *Server) detect(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field 'image' is required"})
		return
	}
	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	img, err := utils.DecodeReader(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	start := time.Now()
	cv := canvas.NewFromImage(img)
	if err := s.deps.Session.DetectStill(c.Request.Context(), img, cv, nil); err != nil {
		s.logger.Error().Err(err).Str("file", file.Filename).Msg("Still detection failed")
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	var buf bytes.Buffer
	if err := utils.EncodeImage(&buf, cv.Snapshot(), s.cfg.JPEGQuality); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	s.logger.Info().
		Str("file", file.Filename).
		Dur("took", time.Since(start)).
		Msg("Still image annotated")

	c.Data(http.StatusOK, "image/jpeg", buf.Bytes())
}

func (s *Server) sessionResponse() SessionResponse {
	st := s.deps.Session.Stats()
	resp := SessionResponse{
		State:          st.State.String(),
		DetectorReady:  st.DetectorReady,
		Passes:         st.Passes,
		SkippedTicks:   st.SkippedTicks,
		FailedPasses:   st.FailedPasses,
		LastFaces:      st.LastFaces,
		LastPassMillis: float64(st.LastPassDuration) / float64(time.Millisecond),
	}
	if s.deps.Publisher != nil {
		resp.PublishedFrames = s.deps.Publisher.Frames()
	}
	return resp
}

func statusFor(err error) int {
	var initErr *facemark.DetectorInitError
	switch {
	case errors.Is(err, facemark.ErrSessionClosed):
		return http.StatusConflict
	case errors.As(err, &initErr):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
