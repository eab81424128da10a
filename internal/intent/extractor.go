package intent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/stephenhungg/flow/internal/observe"
	"github.com/stephenhungg/flow/pkg/audio"
	"github.com/stephenhungg/flow/pkg/provider/stt"
)

// Errors returned by [Extractor.Start].
var (
	// ErrCapturePermission means the audio source could not be opened,
	// typically a denied microphone permission.
	ErrCapturePermission = errors.New("intent: audio capture permission denied")

	// ErrAlreadyCapturing means a session is already in flight.
	ErrAlreadyCapturing = errors.New("intent: capture already in progress")
)

// State is the capture session lifecycle.
type State int

const (
	// StateIdle means no session is running.
	StateIdle State = iota

	// StateCapturing means audio is streaming and transcripts are being
	// matched against the grammar.
	StateCapturing

	// StateLocked means a concept matched and latched; the session is
	// draining and further input is ignored.
	StateLocked
)

// String implements [fmt.Stringer].
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateLocked:
		return "locked"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Capture is a latched concept request.
type Capture struct {
	// Concept is the extracted, normalized concept.
	Concept string

	// Transcript is the full final transcript the concept came from.
	Transcript string

	// Confidence is the STT confidence of that transcript.
	Confidence float64
}

// Extractor runs one capture session at a time: microphone frames stream to
// the STT provider, final transcripts run through the [Grammar], and the
// first match latches. The latch is taken synchronously under the session
// lock; resource teardown then happens asynchronously so a slow provider
// close cannot delay the result.
type Extractor struct {
	source  audio.Source
	sttP    stt.Provider
	grammar *Grammar
	norm    *audio.Normaliser
	metrics *observe.Metrics
	log     *slog.Logger

	mu      sync.Mutex
	state   State
	session *captureSession
}

// captureSession is the per-Start state.
type captureSession struct {
	handle   stt.SessionHandle
	results  chan Capture
	started  time.Time
	teardown sync.Once
	stop     func()
}

// ExtractorOption configures an [Extractor].
type ExtractorOption func(*Extractor)

// WithExtractorLogger sets the logger.
func WithExtractorLogger(l *slog.Logger) ExtractorOption {
	return func(e *Extractor) {
		if l != nil {
			e.log = l
		}
	}
}

// WithExtractorMetrics sets the instruments session counts and lock
// latencies are recorded on.
func WithExtractorMetrics(m *observe.Metrics) ExtractorOption {
	return func(e *Extractor) {
		if m != nil {
			e.metrics = m
		}
	}
}

// NewExtractor builds an Extractor over an audio source and STT provider.
func NewExtractor(source audio.Source, sttP stt.Provider, grammar *Grammar, opts ...ExtractorOption) (*Extractor, error) {
	if source == nil {
		return nil, fmt.Errorf("intent: audio source is required")
	}
	if sttP == nil {
		return nil, fmt.Errorf("intent: stt provider is required")
	}
	if grammar == nil {
		grammar = NewGrammar()
	}
	e := &Extractor{
		source:  source,
		sttP:    sttP,
		grammar: grammar,
		norm:    &audio.Normaliser{},
		metrics: observe.DefaultMetrics(),
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// State returns the current session state.
func (e *Extractor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Start begins a capture session. The returned channel delivers at most one
// [Capture] and is closed when the session ends, whether by lock, stream
// close or context cancellation. Only one session may run at a time.
func (e *Extractor) Start(ctx context.Context) (<-chan Capture, error) {
	e.mu.Lock()
	if e.state != StateIdle {
		e.mu.Unlock()
		return nil, ErrAlreadyCapturing
	}
	e.state = StateCapturing
	e.mu.Unlock()

	frames, err := e.source.Start(ctx)
	if err != nil {
		e.setIdle()
		return nil, fmt.Errorf("%w: %v", ErrCapturePermission, err)
	}

	handle, err := e.sttP.StartStream(ctx, stt.StreamConfig{
		SampleRate:     e.source.SampleRate(),
		Channels:       1,
		InterimResults: true,
	})
	if err != nil {
		e.source.Stop()
		e.setIdle()
		return nil, fmt.Errorf("intent: start stt stream: %w", err)
	}

	sess := &captureSession{
		handle:  handle,
		results: make(chan Capture, 1),
		started: time.Now(),
	}
	sess.stop = func() {
		sess.teardown.Do(func() {
			if err := e.source.Stop(); err != nil {
				e.log.Warn("audio source stop failed", "error", err)
			}
			if err := handle.Close(); err != nil {
				e.log.Warn("stt session close failed", "error", err)
			}
			close(sess.results)
			e.metrics.ActiveCaptures.Add(context.Background(), -1)
			e.setIdle()
		})
	}

	e.mu.Lock()
	e.session = sess
	e.mu.Unlock()
	e.metrics.ActiveCaptures.Add(ctx, 1)

	go e.pumpFrames(ctx, frames, sess)
	go e.consumeTranscripts(sess)
	go e.consumeEvents(sess)

	e.log.Info("capture session started", "sample_rate", e.source.SampleRate())
	return sess.results, nil
}

// Stop tears down the current session, if any.
func (e *Extractor) Stop() {
	e.mu.Lock()
	sess := e.session
	e.mu.Unlock()
	if sess != nil {
		sess.stop()
	}
}

// pumpFrames forwards normalized audio to the STT session. Frames are
// dropped while the provider is reconnecting and once the latch is taken.
func (e *Extractor) pumpFrames(ctx context.Context, frames <-chan audio.Frame, sess *captureSession) {
	for {
		select {
		case <-ctx.Done():
			sess.stop()
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			if e.State() == StateLocked || !sess.handle.Connected() {
				continue
			}
			norm := e.norm.Normalise(frame)
			if len(norm.Data) == 0 {
				continue
			}
			if err := sess.handle.SendAudio(norm.Data); err != nil {
				e.log.Warn("send audio failed", "error", err)
			}
		}
	}
}

// consumeTranscripts matches finals against the grammar and latches the
// first hit.
func (e *Extractor) consumeTranscripts(sess *captureSession) {
	for t := range sess.handle.Transcripts() {
		if !t.IsFinal {
			continue
		}
		concept, ok := e.grammar.Extract(t.Text)
		if !ok {
			e.log.Debug("final transcript without intent", "text", t.Text)
			continue
		}
		if !e.lock() {
			// A lock is already held; late finals are no-ops.
			continue
		}
		e.metrics.CaptureDuration.Record(context.Background(), time.Since(sess.started).Seconds())
		e.log.Info("concept locked", "concept", concept, "confidence", t.Confidence)
		sess.results <- Capture{Concept: concept, Transcript: t.Text, Confidence: t.Confidence}
		go sess.stop()
	}
}

// consumeEvents logs provider events and ends the session when the stream
// closes without a lock.
func (e *Extractor) consumeEvents(sess *captureSession) {
	for ev := range sess.handle.Events() {
		switch ev.Kind {
		case stt.EventError:
			e.log.Warn("stt stream error", "error", ev.Err)
		case stt.EventClose:
			e.log.Info("stt stream closed")
			go sess.stop()
		}
	}
}

// lock transitions Capturing→Locked. It returns false when the latch was
// already taken or no session is active.
func (e *Extractor) lock() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateCapturing {
		return false
	}
	e.state = StateLocked
	return true
}

func (e *Extractor) setIdle() {
	e.mu.Lock()
	e.state = StateIdle
	e.session = nil
	e.mu.Unlock()
}
