package server

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/stephenhungg/flow/internal/intent"
	"github.com/stephenhungg/flow/pkg/audio"
)

// defaultCaptureSampleRate is assumed when the client does not send a
// sample_rate query parameter. Browsers capture at 48 kHz.
const defaultCaptureSampleRate = 48000

// captureReplyTimeout bounds the write of the final capture message.
const captureReplyTimeout = 5 * time.Second

// captureResponse is the single message sent back once a concept locks.
type captureResponse struct {
	Concept    string  `json:"concept"`
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
}

// handleCapture upgrades the request to a websocket and runs one capture
// session over it: binary messages are 16-bit little-endian mono PCM frames,
// and the reply is a single JSON text message carrying the locked concept.
// The socket closes after the reply, or without one when the stream ends
// before a command is heard.
func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Warn("capture websocket accept failed", "error", err)
		return
	}

	sampleRate := defaultCaptureSampleRate
	if v := r.URL.Query().Get("sample_rate"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			conn.Close(websocket.StatusUnsupportedData, "invalid sample_rate")
			return
		}
		sampleRate = n
	}

	src := newSocketSource(conn, sampleRate)
	ext, err := intent.NewExtractor(src, s.capture, nil,
		intent.WithExtractorLogger(s.log),
		intent.WithExtractorMetrics(s.metrics),
	)
	if err != nil {
		s.log.Warn("capture session setup failed", "error", err)
		conn.Close(websocket.StatusInternalError, "capture unavailable")
		return
	}

	captures, err := ext.Start(r.Context())
	if err != nil {
		s.log.Warn("capture session start failed", "error", err)
		conn.Close(websocket.StatusInternalError, "capture unavailable")
		return
	}
	defer ext.Stop()

	select {
	case c, ok := <-captures:
		if !ok {
			conn.Close(websocket.StatusNormalClosure, "stream ended without a command")
			return
		}
		writeCtx, cancel := context.WithTimeout(context.Background(), captureReplyTimeout)
		defer cancel()
		if err := wsjson.Write(writeCtx, conn, captureResponse{
			Concept:    c.Concept,
			Transcript: c.Transcript,
			Confidence: c.Confidence,
		}); err != nil {
			s.log.Warn("capture reply failed", "error", err)
			return
		}
		conn.Close(websocket.StatusNormalClosure, "concept locked")
	case <-r.Context().Done():
		conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
}

// socketSource adapts a websocket connection to [audio.Source]: every binary
// message received is one frame of mono PCM at the negotiated sample rate.
type socketSource struct {
	conn       *websocket.Conn
	sampleRate int

	stopOnce sync.Once
	cancel   context.CancelFunc
}

// Compile-time interface assertion.
var _ audio.Source = (*socketSource)(nil)

func newSocketSource(conn *websocket.Conn, sampleRate int) *socketSource {
	return &socketSource{conn: conn, sampleRate: sampleRate}
}

// Start begins reading frames off the socket. The returned channel closes
// when the peer disconnects or the source is stopped.
func (s *socketSource) Start(ctx context.Context) (<-chan audio.Frame, error) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	frames := make(chan audio.Frame)
	go func() {
		defer close(frames)
		for {
			typ, data, err := s.conn.Read(ctx)
			if err != nil {
				return
			}
			if typ != websocket.MessageBinary {
				// Text messages are not part of the upstream protocol.
				continue
			}
			frame := audio.Frame{Data: data, SampleRate: s.sampleRate, Channels: 1}
			select {
			case frames <- frame:
			case <-ctx.Done():
				return
			}
		}
	}()
	return frames, nil
}

// SampleRate implements [audio.Source].
func (s *socketSource) SampleRate() int { return s.sampleRate }

// Stop halts the read loop. The websocket itself is owned and closed by the
// capture handler.
func (s *socketSource) Stop() error {
	s.stopOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
	return nil
}
