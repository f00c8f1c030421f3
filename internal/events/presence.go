// Package events publishes face presence changes observed by the live session.
package events

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/esimov/facemark"
)

// Event types.
const (
	TypeFace     = "face"
	TypeMultiple = "multiple"
)

// Event is published when a presence signal changes.
type Event struct {
	Type      string    `json:"type"`
	Present   bool      `json:"present"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher sends a payload on a subject.
type Publisher interface {
	Publish(subject string, data any) error
}

// Tracker turns the per pass face signals into edge triggered events: an
// event is published on the first observation and on every change.
type Tracker struct {
	pub     Publisher
	subject string
	clock   clock.Clock
	logger  zerolog.Logger

	mu    sync.Mutex
	state map[string]bool
}

func NewTracker(pub Publisher, subject string, c clock.Clock, logger zerolog.Logger) *Tracker {
	if c == nil {
		c = clock.New()
	}
	return &Tracker{
		pub:     pub,
		subject: subject,
		clock:   c,
		logger:  logger,
		state:   make(map[string]bool),
	}
}

func (t *Tracker) OnFaceDetected(found bool) {
	t.observe(TypeFace, found)
}

func (t *Tracker) OnMultiFaceDetected(multiple bool) {
	t.observe(TypeMultiple, multiple)
}

// Wrap chains the tracker in front of the face callbacks of cb.
func (t *Tracker) Wrap(cb facemark.Callbacks) facemark.Callbacks {
	face, multi := cb.OnFaceDetected, cb.OnMultiFaceDetected
	cb.OnFaceDetected = func(found bool) {
		t.OnFaceDetected(found)
		if face != nil {
			face(found)
		}
	}
	cb.OnMultiFaceDetected = func(multiple bool) {
		t.OnMultiFaceDetected(multiple)
		if multi != nil {
			multi(multiple)
		}
	}
	return cb
}

func (t *Tracker) observe(typ string, present bool) {
	t.mu.Lock()
	prev, seen := t.state[typ]
	t.state[typ] = present
	t.mu.Unlock()

	if seen && prev == present {
		return
	}

	ev := Event{Type: typ, Present: present, Timestamp: t.clock.Now().UTC()}
	if err := t.pub.Publish(t.subject, ev); err != nil {
		t.logger.Warn().Err(err).Str("type", typ).Msg("Failed to publish presence event")
		return
	}
	t.logger.Debug().Str("type", typ).Bool("present", present).Msg("Presence changed")
}
