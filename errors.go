package facemark

import (
	"fmt"

	"github.com/pkg/errors"
)

// Operation names carried by the errors returned from a Session.
const (
	opNewSession     = "NewSession"
	opCreateDetector = "CreateDetector"
	opStartSession   = "StartSession"
	opDetectionPass  = "DetectionPass"
	opDetectStill    = "DetectStill"
)

var (
	// ErrInstanceExists is the cause of a DuplicateInstanceError.
	ErrInstanceExists = errors.New("a session is already open")
	// ErrNoDetector is returned when a pass runs before the detector was created.
	ErrNoDetector = errors.New("detector not initialized")
	// ErrNilSurface is returned when no drawing surface was supplied.
	ErrNilSurface = errors.New("nil drawing surface")
	// ErrNilFrameSource is returned when no frame source was supplied.
	ErrNilFrameSource = errors.New("nil frame source")
	// ErrNilFrame is returned when the frame source or the caller provides no image.
	ErrNilFrame = errors.New("no frame available")
	// ErrSessionClosed is returned by every operation invoked after Close.
	ErrSessionClosed = errors.New("session closed")
)

// DuplicateInstanceError is returned when a Session is constructed while another one is open.
type DuplicateInstanceError struct {
	Op    string
	Cause error
}

func (e *DuplicateInstanceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Cause)
}

func (e *DuplicateInstanceError) Unwrap() error { return e.Cause }

// DetectorInitError reports a failed detector build. No detector is retained,
// so the operation can be retried.
type DetectorInitError struct {
	Op    string
	Cause error
}

func (e *DetectorInitError) Error() string {
	return fmt.Sprintf("%s: detector initialization failed: %v", e.Op, e.Cause)
}

func (e *DetectorInitError) Unwrap() error { return e.Cause }

// DetectionPassError reports the failure of a single detection pass.
type DetectionPassError struct {
	Op    string
	Cause error
}

func (e *DetectionPassError) Error() string {
	return fmt.Sprintf("%s: detection pass failed: %v", e.Op, e.Cause)
}

func (e *DetectionPassError) Unwrap() error { return e.Cause }
