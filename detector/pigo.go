// Package detector implements the facemark.Detector capability on top of the
// pigo pixel intensity comparison based face detector.
package detector

import (
	"context"
	"image"
	"math"
	"os"
	"sort"

	pigo "github.com/esimov/pigo/core"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/esimov/facemark"
	"github.com/esimov/facemark/utils"
)

// Options configures the pigo cascades and the detection window.
type Options struct {
	// FaceCascade is the path or URL of the facefinder cascade. Defaults to
	// DefaultFaceCascade.
	FaceCascade string
	// PupilCascade is the path or URL of the puploc cascade. When empty no eye
	// keypoints are produced.
	PupilCascade string
	// LandmarkDir is a directory holding the flploc landmark cascades. It is
	// only used together with PupilCascade.
	LandmarkDir string

	MinSize      int
	MaxSize      int
	ShiftFactor  float64
	ScaleFactor  float64
	Angle        float64
	IoUThreshold float64
	// MaxWidth bounds the width of the frame the cascade runs on. Wider frames
	// are downscaled first and the results are mapped back to source pixels.
	MaxWidth int

	Logger *zerolog.Logger
}

// DefaultFaceCascade is the location of the facefinder cascade published with pigo.
const DefaultFaceCascade = "https://raw.githubusercontent.com/esimov/pigo/master/cascade/facefinder"

// DefaultOptions returns the detection window settings used for webcam frames.
func DefaultOptions() Options {
	return Options{
		MinSize:      60,
		MaxSize:      1000,
		ShiftFactor:  0.1,
		ScaleFactor:  1.1,
		IoUThreshold: 0.2,
		MaxWidth:     640,
	}
}

// Landmark cascades producing a mirrored point on the other side of the face.
var mirrored = map[string]bool{
	"lp46":  true,
	"lp44":  true,
	"lp42":  true,
	"lp38":  true,
	"lp312": true,
	"lp84":  true,
}

type landmark struct {
	name    string
	cascade *pigo.PuplocCascade
}

// Pigo is a face detector backed by pigo cascades.
type Pigo struct {
	opts      Options
	cfg       facemark.DetectorConfig
	delegate  facemark.Delegate
	logger    zerolog.Logger
	face      *pigo.Pigo
	pupil     *pigo.PuplocCascade
	landmarks []landmark

	gray   []uint8
	lastTs int64
}

// Builder returns a facemark.BuildFunc creating a Pigo detector with opts.
func Builder(opts Options) facemark.BuildFunc {
	return func(ctx context.Context, cfg facemark.DetectorConfig) (facemark.Detector, error) {
		return New(ctx, opts, cfg)
	}
}

// New loads the cascades and returns a ready detector.
func New(ctx context.Context, opts Options, cfg facemark.DetectorConfig) (*Pigo, error) {
	opts = withDefaults(opts)
	p := &Pigo{
		opts:     opts,
		cfg:      cfg,
		delegate: facemark.DelegateCPU,
		logger:   zerolog.Nop(),
	}
	if opts.Logger != nil {
		p.logger = opts.Logger.With().Str("component", "detector").Logger()
	}
	if cfg.Delegate == facemark.DelegateGPU {
		p.logger.Warn().Msg("GPU delegate is not available for pigo, running on CPU")
	}

	data, err := loadCascade(ctx, opts.FaceCascade)
	if err != nil {
		return nil, errors.Wrap(err, "load face cascade")
	}
	if p.face, err = pigo.NewPigo().Unpack(data); err != nil {
		return nil, errors.Wrap(err, "unpack face cascade")
	}

	if opts.PupilCascade != "" {
		data, err := loadCascade(ctx, opts.PupilCascade)
		if err != nil {
			return nil, errors.Wrap(err, "load pupil cascade")
		}
		plc := &pigo.PuplocCascade{}
		if p.pupil, err = plc.UnpackCascade(data); err != nil {
			return nil, errors.Wrap(err, "unpack pupil cascade")
		}

		if opts.LandmarkDir != "" {
			if p.landmarks, err = readLandmarks(p.pupil, opts.LandmarkDir); err != nil {
				return nil, errors.Wrapf(err, "read landmark cascades from %s", opts.LandmarkDir)
			}
		}
	}

	p.logger.Info().
		Str("face", opts.FaceCascade).
		Bool("pupils", p.pupil != nil).
		Int("landmarks", len(p.landmarks)).
		Stringer("mode", cfg.Mode).
		Msg("Cascades loaded")

	return p, nil
}

// Delegate returns the delegate the detector actually runs on.
func (p *Pigo) Delegate() facemark.Delegate {
	return p.delegate
}

// Detect runs the face cascade over frame. In video mode timestamps must not
// go backwards and the grayscale buffer is reused between frames.
func (p *Pigo) Detect(frame image.Image, timestampMs int64) ([]*facemark.DetectionResult, error) {
	if frame == nil {
		return nil, errors.New("nil frame")
	}
	if p.cfg.Mode == facemark.ModeVideo {
		if timestampMs < p.lastTs {
			return nil, errors.Errorf("timestamp %d precedes the previous frame (%d)", timestampMs, p.lastTs)
		}
		p.lastTs = timestampMs
	}

	src := toNRGBA(frame)
	scale := 1.0
	if w := src.Bounds().Dx(); p.opts.MaxWidth > 0 && w > p.opts.MaxWidth {
		scale = float64(p.opts.MaxWidth) / float64(w)
		src = resize(src, p.opts.MaxWidth)
	}
	cols, rows := src.Bounds().Dx(), src.Bounds().Dy()
	if cols == 0 || rows == 0 {
		return []*facemark.DetectionResult{}, nil
	}

	var buf []uint8
	if p.cfg.Mode == facemark.ModeVideo {
		buf = p.gray
	}
	pixels := grayscale(buf, src)
	if p.cfg.Mode == facemark.ModeVideo {
		p.gray = pixels
	}

	params := pigo.ImageParams{
		Pixels: pixels,
		Rows:   rows,
		Cols:   cols,
		Dim:    cols,
	}
	cParams := pigo.CascadeParams{
		MinSize:     p.opts.MinSize,
		MaxSize:     utils.Min(p.opts.MaxSize, utils.Max(rows, cols)),
		ShiftFactor: p.opts.ShiftFactor,
		ScaleFactor: p.opts.ScaleFactor,
		ImageParams: params,
	}

	dets := p.face.RunCascade(cParams, p.opts.Angle)
	dets = p.face.ClusterDetections(dets, p.opts.IoUThreshold)

	results := make([]*facemark.DetectionResult, 0, len(dets))
	for _, det := range dets {
		conf := confidence(det.Q)
		if conf < p.cfg.ConfidenceThreshold {
			continue
		}
		res := toResult(det, conf, scale)
		res.Keypoints = p.keypoints(det, params)
		results = append(results, res)
	}

	return results, nil
}

// keypoints returns the normalized eye and landmark points for a face.
// The slice is empty, never nil, when no pupil cascade is loaded.
func (p *Pigo) keypoints(det pigo.Detection, img pigo.ImageParams) []facemark.Keypoint {
	kps := []facemark.Keypoint{}
	if p.pupil == nil {
		return kps
	}

	left := p.pupil.RunDetector(pigo.Puploc{
		Row:      det.Row - int(0.075*float32(det.Scale)),
		Col:      det.Col - int(0.175*float32(det.Scale)),
		Scale:    float32(det.Scale) * 0.25,
		Perturbs: 50,
	}, img, 0.0, false)
	right := p.pupil.RunDetector(pigo.Puploc{
		Row:      det.Row - int(0.075*float32(det.Scale)),
		Col:      det.Col + int(0.185*float32(det.Scale)),
		Scale:    float32(det.Scale) * 0.25,
		Perturbs: 50,
	}, img, 0.0, false)

	add := func(pl *pigo.Puploc) {
		if pl == nil || pl.Row <= 0 || pl.Col <= 0 {
			return
		}
		kps = append(kps, normalize(pl.Col, pl.Row, img.Cols, img.Rows))
	}
	add(left)
	add(right)

	if left == nil || right == nil || left.Row <= 0 || right.Row <= 0 {
		return kps
	}
	for _, lm := range p.landmarks {
		add(lm.cascade.GetLandmarkPoint(left, right, img, 50, false))
		if mirrored[lm.name] {
			add(lm.cascade.GetLandmarkPoint(left, right, img, 50, true))
		}
	}
	return kps
}

func withDefaults(opts Options) Options {
	def := DefaultOptions()
	if opts.FaceCascade == "" {
		opts.FaceCascade = DefaultFaceCascade
	}
	if opts.MinSize <= 0 {
		opts.MinSize = def.MinSize
	}
	if opts.MaxSize <= 0 {
		opts.MaxSize = def.MaxSize
	}
	if opts.ShiftFactor <= 0 {
		opts.ShiftFactor = def.ShiftFactor
	}
	if opts.ScaleFactor <= 1 {
		opts.ScaleFactor = def.ScaleFactor
	}
	if opts.IoUThreshold <= 0 {
		opts.IoUThreshold = def.IoUThreshold
	}
	return opts
}

// confidence maps an unbounded pigo detection score onto [0, 1).
func confidence(q float32) float64 {
	if q <= 0 {
		return 0
	}
	return 1 - math.Exp(-float64(q)/10)
}

// toResult converts a detection, given by its center and size on a frame
// downscaled by scale, into source pixel coordinates.
func toResult(det pigo.Detection, conf, scale float64) *facemark.DetectionResult {
	s := float64(det.Scale)
	return &facemark.DetectionResult{
		Confidence: conf,
		BoundingBox: facemark.BoundingBox{
			X:      (float64(det.Col) - s/2) / scale,
			Y:      (float64(det.Row) - s/2) / scale,
			Width:  s / scale,
			Height: s / scale,
		},
	}
}

func normalize(col, row, cols, rows int) facemark.Keypoint {
	return facemark.Keypoint{
		X: utils.Clamp(float64(col)/float64(cols), 0, 1),
		Y: utils.Clamp(float64(row)/float64(rows), 0, 1),
	}
}

func readLandmarks(plc *pigo.PuplocCascade, dir string) ([]landmark, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, err
	}
	flpcs, err := plc.ReadCascadeDir(dir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(flpcs))
	for name := range flpcs {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []landmark
	for _, name := range names {
		for _, c := range flpcs[name] {
			if c == nil || c.PuplocCascade == nil {
				continue
			}
			out = append(out, landmark{name: name, cascade: c.PuplocCascade})
		}
	}
	return out, nil
}
