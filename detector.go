package facemark

import (
	"context"
	"image"
)

// Keypoint is a facial landmark in coordinates normalized to [0, 1].
type Keypoint struct {
	X, Y float64
}

// BoundingBox is the face region in source pixel coordinates.
type BoundingBox struct {
	X, Y, Width, Height float64
}

// DetectionResult describes one detected face.
type DetectionResult struct {
	Confidence  float64
	BoundingBox BoundingBox
	// Keypoints is nil when the detector provided no landmark list.
	Keypoints []Keypoint
}

// Delegate selects the hardware the detector prefers to run on.
type Delegate int

const (
	DelegateGPU Delegate = iota
	DelegateCPU
)

func (d Delegate) String() string {
	switch d {
	case DelegateGPU:
		return "GPU"
	case DelegateCPU:
		return "CPU"
	}
	return "unknown"
}

// RunningMode tells the detector whether frames come from a stream or from single images.
type RunningMode int

const (
	ModeVideo RunningMode = iota
	ModeImage
)

func (m RunningMode) String() string {
	switch m {
	case ModeVideo:
		return "VIDEO"
	case ModeImage:
		return "IMAGE"
	}
	return "unknown"
}

// DetectorConfig is the configuration handed to a BuildFunc.
type DetectorConfig struct {
	ConfidenceThreshold float64
	Delegate            Delegate
	Mode                RunningMode
}

// SessionDetectorConfig returns the fixed configuration a Session builds its detector with.
func SessionDetectorConfig() DetectorConfig {
	return DetectorConfig{
		ConfidenceThreshold: 0.5,
		Delegate:            DelegateGPU,
		Mode:                ModeVideo,
	}
}

// Detector finds faces in a single frame. Implementations are not required to be
// safe for concurrent use; a Session never calls Detect concurrently.
type Detector interface {
	Detect(frame image.Image, timestampMs int64) ([]*DetectionResult, error)
}

// BuildFunc creates a Detector. It may block while model assets are loaded.
type BuildFunc func(ctx context.Context, cfg DetectorConfig) (Detector, error)

// FrameSource provides the frames of a live session.
type FrameSource interface {
	// Frame returns the most recent frame.
	Frame() (image.Image, error)
	// DisplaySize returns the size the frame is displayed at, used to
	// project normalized keypoints onto the surface.
	DisplaySize() Dimensions
}
