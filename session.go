package facemark

import (
	"context"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/esimov/facemark/scheduler"
)

// DetectInterval is the cadence of the live detection loop.
const DetectInterval = 100 * time.Millisecond

// active is set while a Session is open.
var active atomic.Bool

// SessionState is the polling state of a Session.
type SessionState int

const (
	StateIdle SessionState = iota
	StatePolling
)

func (s SessionState) String() string {
	if s == StatePolling {
		return "polling"
	}
	return "idle"
}

// Scheduler provides the timing primitives the Session relies on.
type Scheduler interface {
	Every(interval time.Duration, fn func()) *scheduler.Task
	Cancel(t *scheduler.Task)
	NextRefresh(fn func())
}

// Options configures a Session.
type Options struct {
	// Build creates the detector on first use. Required.
	Build BuildFunc
	// Scheduler drives the polling loop and the deferred renders. When nil the
	// Session creates and owns one running on Clock.
	Scheduler Scheduler
	// Clock is used for pass timestamps. Defaults to the wall clock.
	Clock clock.Clock
	// Style is the base overlay style. Defaults to DefaultStyle.
	Style *RenderStyle
	// Logger defaults to a disabled logger.
	Logger *zerolog.Logger
}

// Callbacks receives the notifications of a live session. Every field is optional.
type Callbacks struct {
	OnStarted           func()
	OnDetectorLoaded    func(ready bool)
	OnFaceDetected      func(found bool)
	OnMultiFaceDetected func(multiple bool)
	// OnPassError receives the errors of failed loop passes. The loop keeps polling.
	OnPassError func(err error)
}

// Stats is a snapshot of the Session counters.
type Stats struct {
	State            SessionState
	DetectorReady    bool
	Passes           uint64
	SkippedTicks     uint64
	FailedPasses     uint64
	LastFaces        int
	LastPassDuration time.Duration
}

// Session owns the face detector and the live detection loop. Only one Session
// may be open per process.
type Session struct {
	build    BuildFunc
	sched    Scheduler
	ownSched *scheduler.Scheduler
	clock    clock.Clock
	epoch    time.Time
	logger   zerolog.Logger

	liveStyle  RenderStyle
	stillStyle RenderStyle

	// initMu serializes detector construction.
	initMu sync.Mutex
	// mu guards handle and task.
	mu     sync.Mutex
	handle Detector
	task   *scheduler.Task
	// detectMu serializes calls into the detector.
	detectMu sync.Mutex

	inFlight atomic.Bool
	closed   atomic.Bool
	ctx      context.Context
	cancel   context.CancelFunc

	passes       atomic.Uint64
	skipped      atomic.Uint64
	failures     atomic.Uint64
	lastFaces    atomic.Int64
	lastDuration atomic.Int64
}

// NewSession creates the process wide Session. It fails with a
// DuplicateInstanceError while another Session is open.
func NewSession(opts Options) (*Session, error) {
	if opts.Build == nil {
		return nil, errors.New("facemark: Options.Build is required")
	}
	if !active.CompareAndSwap(false, true) {
		return nil, &DuplicateInstanceError{Op: opNewSession, Cause: ErrInstanceExists}
	}

	s := &Session{
		build: opts.Build,
		clock: opts.Clock,
	}
	if s.clock == nil {
		s.clock = clock.New()
	}
	s.epoch = s.clock.Now()

	if opts.Logger != nil {
		s.logger = *opts.Logger
	} else {
		s.logger = zerolog.Nop()
	}

	style := DefaultStyle()
	if opts.Style != nil {
		style = *opts.Style
	}
	s.liveStyle = style.Live()
	s.stillStyle = style.Still()

	s.sched = opts.Scheduler
	if s.sched == nil {
		s.ownSched = scheduler.New(s.clock, 0)
		s.sched = s.ownSched
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	return s, nil
}

// CreateDetector returns the session detector, building it on first use.
// onProgress is called with false before a build starts and with true once a
// detector is available. A failed build leaves no detector behind.
func (s *Session) CreateDetector(ctx context.Context, onProgress func(ready bool)) (Detector, error) {
	if s.closed.Load() {
		return nil, &DetectorInitError{Op: opCreateDetector, Cause: ErrSessionClosed}
	}

	s.initMu.Lock()
	defer s.initMu.Unlock()

	if det := s.detector(); det != nil {
		notify(onProgress, true)
		return det, nil
	}

	notify(onProgress, false)

	cfg := SessionDetectorConfig()
	start := s.clock.Now()
	s.logger.Info().
		Float64("threshold", cfg.ConfidenceThreshold).
		Stringer("delegate", cfg.Delegate).
		Stringer("mode", cfg.Mode).
		Msg("Building face detector")

	det, err := s.build(ctx, cfg)
	if err == nil && det == nil {
		err = errors.New("builder returned no detector")
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("Face detector build failed")
		return nil, &DetectorInitError{Op: opCreateDetector, Cause: err}
	}

	s.mu.Lock()
	s.handle = det
	s.mu.Unlock()

	s.logger.Info().Dur("took", s.clock.Since(start)).Msg("Face detector ready")
	notify(onProgress, true)

	return det, nil
}

// StartSession starts polling src every DetectInterval, rendering the overlay
// onto surface. Starting an already polling session keeps the running loop and
// only calls OnStarted again.
func (s *Session) StartSession(ctx context.Context, src FrameSource, surface Surface, cb Callbacks) error {
	if s.closed.Load() {
		return &DetectorInitError{Op: opStartSession, Cause: ErrSessionClosed}
	}
	if s.detector() == nil {
		if _, err := s.CreateDetector(ctx, cb.OnDetectorLoaded); err != nil {
			return err
		}
	}

	s.mu.Lock()
	if s.task == nil {
		s.task = s.sched.Every(DetectInterval, func() {
			s.tick(src, surface, cb)
		})
		s.logger.Info().Dur("interval", DetectInterval).Msg("Detection loop started")
	}
	s.mu.Unlock()

	if cb.OnStarted != nil {
		cb.OnStarted()
	}
	return nil
}

func (s *Session) tick(src FrameSource, surface Surface, cb Callbacks) {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		s.logger.Debug().Msg("Previous pass still running, tick skipped")
		return
	}
	defer s.inFlight.Store(false)

	err := s.pass(s.ctx, src, surface, cb.OnFaceDetected, cb.OnMultiFaceDetected, cb.OnPassError)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Detection pass failed")
		if cb.OnPassError != nil {
			cb.OnPassError(err)
		}
	}
}

// DetectionPass runs the detector once over the current frame of src, reports
// whether one or more faces were found and enqueues a render of the results
// for the next refresh.
func (s *Session) DetectionPass(
	ctx context.Context,
	src FrameSource,
	surface Surface,
	onFaceDetected, onMultiFaceDetected func(bool),
) error {
	return s.pass(ctx, src, surface, onFaceDetected, onMultiFaceDetected, nil)
}

// pass is DetectionPass with a sink for the failures of the deferred render,
// which happen after pass has returned.
func (s *Session) pass(
	ctx context.Context,
	src FrameSource,
	surface Surface,
	onFaceDetected, onMultiFaceDetected func(bool),
	onRenderError func(error),
) error {
	fail := func(err error) error {
		s.failures.Add(1)
		return &DetectionPassError{Op: opDetectionPass, Cause: err}
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	det := s.detector()
	switch {
	case det == nil:
		return fail(ErrNoDetector)
	case src == nil:
		return fail(ErrNilFrameSource)
	case surface == nil:
		return fail(ErrNilSurface)
	}

	frame, err := src.Frame()
	if err != nil {
		return fail(errors.Wrap(err, "read frame"))
	}
	if frame == nil {
		return fail(ErrNilFrame)
	}

	results, err := s.detect(det, frame)
	if err != nil {
		return fail(err)
	}

	n := len(results)
	notify(onFaceDetected, n != 0)
	notify(onMultiFaceDetected, n > 1)

	dims := src.DisplaySize()
	style := s.liveStyle
	s.sched.NextRefresh(func() {
		if err := s.render(opDetectionPass, results, dims, surface, style); err != nil {
			s.logger.Warn().Err(err).Msg("Overlay render failed")
			if onRenderError != nil {
				onRenderError(err)
			}
		}
	})

	return nil
}

// DetectStill detects faces on a single image and draws the results onto
// surface right away, on top of its current content.
func (s *Session) DetectStill(ctx context.Context, img image.Image, surface Surface, onProgress func(ready bool)) error {
	if s.closed.Load() {
		return &DetectionPassError{Op: opDetectStill, Cause: ErrSessionClosed}
	}

	det := s.detector()
	if det == nil {
		var err error
		if det, err = s.CreateDetector(ctx, onProgress); err != nil {
			return err
		}
	}

	switch {
	case img == nil:
		return &DetectionPassError{Op: opDetectStill, Cause: ErrNilFrame}
	case surface == nil:
		return &DetectionPassError{Op: opDetectStill, Cause: ErrNilSurface}
	}

	results, err := s.detect(det, img)
	if err != nil {
		s.failures.Add(1)
		return &DetectionPassError{Op: opDetectStill, Cause: err}
	}

	b := img.Bounds()
	return s.render(opDetectStill, results, Dimensions{Width: float64(b.Dx()), Height: float64(b.Dy())}, surface, s.stillStyle)
}

// StopSession cancels the detection loop, if any, and calls onStopped.
// A pass already running completes and renders once.
func (s *Session) StopSession(onStopped func()) {
	s.mu.Lock()
	task := s.task
	s.task = nil
	s.mu.Unlock()

	if task != nil {
		s.sched.Cancel(task)
		s.logger.Info().Msg("Detection loop stopped")
	}
	if onStopped != nil {
		onStopped()
	}
}

// State reports whether the detection loop is running.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.task != nil {
		return StatePolling
	}
	return StateIdle
}

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() Stats {
	return Stats{
		State:            s.State(),
		DetectorReady:    s.detector() != nil,
		Passes:           s.passes.Load(),
		SkippedTicks:     s.skipped.Load(),
		FailedPasses:     s.failures.Load(),
		LastFaces:        int(s.lastFaces.Load()),
		LastPassDuration: time.Duration(s.lastDuration.Load()),
	}
}

// Close stops the loop, releases an owned scheduler and frees the process wide
// slot so that a new Session can be created.
func (s *Session) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.StopSession(nil)
	s.cancel()
	if s.ownSched != nil {
		s.ownSched.Close()
	}
	active.Store(false)
}

func (s *Session) detector() Detector {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

func (s *Session) detect(det Detector, frame image.Image) (results []*DetectionResult, err error) {
	s.detectMu.Lock()
	defer s.detectMu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("detector panic: %v", r)
		}
	}()

	start := s.clock.Now()
	results, err = det.Detect(frame, s.clock.Since(s.epoch).Milliseconds())
	s.passes.Add(1)
	s.lastDuration.Store(int64(s.clock.Since(start)))
	if err != nil {
		return nil, err
	}
	s.lastFaces.Store(int64(len(results)))

	return results, nil
}

// render draws results onto surface, turning a panicking surface into a
// DetectionPassError.
func (s *Session) render(op string, results []*DetectionResult, dims Dimensions, surface Surface, style RenderStyle) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.failures.Add(1)
			err = &DetectionPassError{Op: op, Cause: errors.Errorf("render panic: %v", r)}
		}
	}()

	Render(results, dims, surface, style)
	return nil
}

func notify(fn func(bool), v bool) {
	if fn != nil {
		fn(v)
	}
}
