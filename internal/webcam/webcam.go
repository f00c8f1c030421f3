// Package webcam reads frames from a local camera or a video stream through
// OpenCV and exposes the latest one as a facemark.FrameSource.
package webcam

import (
	"context"
	"image"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"github.com/esimov/facemark"
)

const maxConsecutiveErrors = 10

// ErrNoFrame is returned by Frame until the first frame has been captured.
var ErrNoFrame = errors.New("webcam: no frame captured yet")

// Source captures frames in the background. Frame always returns the most
// recent one, so a slow consumer never queues up stale frames.
type Source struct {
	device  string
	display facemark.Dimensions
	logger  zerolog.Logger

	capture *gocv.VideoCapture

	mu     sync.RWMutex
	latest image.Image
	frames uint64
}

// Open opens device, either a numeric camera index or a stream URL. A zero
// width or height takes the capture size reported by the device.
func Open(device string, width, height int, logger zerolog.Logger) (*Source, error) {
	var (
		capture *gocv.VideoCapture
		err     error
	)
	if id, convErr := strconv.Atoi(device); convErr == nil {
		capture, err = gocv.OpenVideoCapture(id)
	} else {
		capture, err = gocv.OpenVideoCapture(device)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "open video capture %q", device)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, errors.Errorf("video capture %q is not opened", device)
	}

	if width > 0 && height > 0 {
		capture.Set(gocv.VideoCaptureFrameWidth, float64(width))
		capture.Set(gocv.VideoCaptureFrameHeight, float64(height))
	}
	actualWidth := capture.Get(gocv.VideoCaptureFrameWidth)
	actualHeight := capture.Get(gocv.VideoCaptureFrameHeight)

	s := &Source{
		device:  device,
		display: facemark.Dimensions{Width: float64(width), Height: float64(height)},
		logger:  logger.With().Str("component", "webcam").Logger(),
		capture: capture,
	}
	if width <= 0 || height <= 0 {
		s.display = facemark.Dimensions{Width: actualWidth, Height: actualHeight}
	}

	s.logger.Info().
		Str("device", device).
		Float64("width", actualWidth).
		Float64("height", actualHeight).
		Float64("fps", capture.Get(gocv.VideoCaptureFPS)).
		Msg("Video capture opened")

	return s, nil
}

// Run reads frames until ctx is cancelled or the device stops delivering them.
func (s *Source) Run(ctx context.Context) error {
	mat := gocv.NewMat()
	defer mat.Close()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Uint64("frames", s.Frames()).Msg("Video capture stopped")
			return nil
		default:
		}

		if ok := s.capture.Read(&mat); !ok || mat.Empty() {
			failures++
			if failures >= maxConsecutiveErrors {
				return errors.Errorf("webcam: %d consecutive empty reads from %q", failures, s.device)
			}
			s.logger.Warn().Int("consecutive_errors", failures).Msg("Failed to read frame")

			delay := time.Duration(failures*50) * time.Millisecond
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
			continue
		}
		failures = 0

		img, err := mat.ToImage()
		if err != nil {
			s.logger.Warn().Err(err).Msg("Failed to convert frame")
			continue
		}

		s.mu.Lock()
		s.latest = img
		s.frames++
		s.mu.Unlock()
	}
}

// Frame returns the most recent captured frame.
func (s *Source) Frame() (image.Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return nil, ErrNoFrame
	}
	return s.latest, nil
}

// DisplaySize returns the size the overlay is drawn at.
func (s *Source) DisplaySize() facemark.Dimensions {
	return s.display
}

// Frames returns the number of frames captured so far.
func (s *Source) Frames() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frames
}

// Close releases the device. When Run is active it must have returned first.
func (s *Source) Close() error {
	return s.capture.Close()
}
