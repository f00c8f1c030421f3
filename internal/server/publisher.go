package server

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"

	"github.com/esimov/facemark"
	"github.com/esimov/facemark/canvas"
	"github.com/esimov/facemark/imop"
	"github.com/esimov/facemark/utils"
)

const (
	boundary      = "frame"
	keepaliveTick = 2 * time.Second
)

// Publisher composites the detection overlay onto the latest camera frame
// and serves the result as JPEG stills and as an MJPEG stream.
type Publisher struct {
	source  facemark.FrameSource
	overlay *canvas.Canvas
	op      imop.Op
	quality int
	logger  zerolog.Logger

	mu     sync.RWMutex
	latest []byte
	frames uint64

	subMu sync.Mutex
	subs  map[chan struct{}]struct{}
}

func NewPublisher(src facemark.FrameSource, overlay *canvas.Canvas, op imop.Op, quality int, logger zerolog.Logger) *Publisher {
	return &Publisher{
		source:  src,
		overlay: overlay,
		op:      op,
		quality: quality,
		logger:  logger,
		subs:    make(map[chan struct{}]struct{}),
	}
}

// Paint composites the overlay onto the current frame. It is registered as
// a scheduler paint hook and runs after every batch of overlay renders.
func (p *Publisher) Paint() {
	frame, err := p.source.Frame()
	if err != nil || frame == nil {
		p.logger.Debug().Err(err).Msg("No frame to publish")
		return
	}

	overlay := p.overlay.Snapshot()
	size := overlay.Bounds().Size()
	if frame.Bounds().Size() != size {
		frame = imaging.Resize(frame, size.X, size.Y, imaging.Linear)
	}
	out := imop.Composite(p.op, overlay, frame)

	var buf bytes.Buffer
	if err := utils.EncodeImage(&buf, out, p.quality); err != nil {
		p.logger.Warn().Err(err).Msg("Failed to encode frame")
		return
	}

	p.mu.Lock()
	p.latest = buf.Bytes()
	p.frames++
	p.mu.Unlock()

	p.notify()
}

// Latest returns the last published JPEG, or nil before the first paint.
func (p *Publisher) Latest() []byte {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest
}

// Frames returns the number of frames published so far.
func (p *Publisher) Frames() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.frames
}

func (p *Publisher) notify() {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	for ch := range p.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (p *Publisher) subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	p.subMu.Lock()
	p.subs[ch] = struct{}{}
	p.subMu.Unlock()

	return ch, func() {
		p.subMu.Lock()
		delete(p.subs, ch)
		p.subMu.Unlock()
	}
}

// ServeMJPEG streams every published frame as a multipart/x-mixed-replace
// response until the client goes away.
func (p *Publisher) ServeMJPEG(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+boundary)
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	notify, unsubscribe := p.subscribe()
	defer unsubscribe()

	writePart := func() bool {
		jpeg := p.Latest()
		if len(jpeg) == 0 {
			return true
		}
		if err := writeJPEGPart(w, jpeg); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if !writePart() {
		return
	}

	keepalive := time.NewTicker(keepaliveTick)
	defer keepalive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-notify:
			if !writePart() {
				return
			}
		case <-keepalive.C:
			if !writePart() {
				return
			}
		}
	}
}

func writeJPEGPart(w io.Writer, jpeg []byte) error {
	header := fmt.Sprintf("--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", boundary, len(jpeg))
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	if _, err := w.Write(jpeg); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\r\n")
	return err
}
