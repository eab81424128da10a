// Package mock provides scripted stt implementations for tests.
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/stephenhungg/flow/pkg/provider/stt"
)

// Provider returns a pre-built [Session] from StartStream.
type Provider struct {
	// StartErr, when non-nil, is returned by StartStream.
	StartErr error

	// Session is handed out by StartStream. When nil, a fresh Session is
	// created per call.
	Session *Session

	mu       sync.Mutex
	sessions []*Session
}

// Compile-time interface checks.
var (
	_ stt.Provider      = (*Provider)(nil)
	_ stt.SessionHandle = (*Session)(nil)
)

// StartStream implements [stt.Provider].
func (p *Provider) StartStream(_ context.Context, _ stt.StreamConfig) (stt.SessionHandle, error) {
	if p.StartErr != nil {
		return nil, p.StartErr
	}
	s := p.Session
	if s == nil {
		s = NewSession()
	}
	p.mu.Lock()
	p.sessions = append(p.sessions, s)
	p.mu.Unlock()
	return s, nil
}

// Sessions returns every session handed out so far.
func (p *Provider) Sessions() []*Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Session(nil), p.sessions...)
}

// Session is a scripted transcription session. Tests feed transcripts and
// events with Push and PushEvent, and inspect audio sent by the pipeline.
type Session struct {
	transcripts chan stt.Transcript
	events      chan stt.Event

	mu        sync.Mutex
	audio     [][]byte
	connected bool
	closed    bool
}

// NewSession creates an open, connected session.
func NewSession() *Session {
	return &Session{
		transcripts: make(chan stt.Transcript, 64),
		events:      make(chan stt.Event, 16),
		connected:   true,
	}
}

// SendAudio implements [stt.SessionHandle], recording the chunk.
func (s *Session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("mock: session is closed")
	}
	buf := make([]byte, len(chunk))
	copy(buf, chunk)
	s.audio = append(s.audio, buf)
	return nil
}

// Transcripts implements [stt.SessionHandle].
func (s *Session) Transcripts() <-chan stt.Transcript { return s.transcripts }

// Events implements [stt.SessionHandle].
func (s *Session) Events() <-chan stt.Event { return s.events }

// Connected implements [stt.SessionHandle].
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Close implements [stt.SessionHandle].
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.connected = false
	close(s.transcripts)
	close(s.events)
	return nil
}

// Push delivers a transcript to the consumer. No-op after Close.
func (s *Session) Push(t stt.Transcript) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.transcripts <- t
}

// PushEvent delivers a lifecycle event to the consumer. No-op after Close.
func (s *Session) PushEvent(ev stt.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.events <- ev
}

// SetConnected overrides the connected flag, simulating a dropped channel.
func (s *Session) SetConnected(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = v
}

// Audio returns every chunk the pipeline has forwarded.
func (s *Session) Audio() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.audio...)
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
