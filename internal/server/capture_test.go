package server_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/stephenhungg/flow/internal/server"
	"github.com/stephenhungg/flow/pkg/provider/stt"
	sttmock "github.com/stephenhungg/flow/pkg/provider/stt/mock"
)

// dialCapture opens a websocket to the capture endpoint of a live test server.
func dialCapture(t *testing.T, ctx context.Context, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/capture" + query
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func TestCapture_StreamsAudioAndRepliesWithConcept(t *testing.T) {
	t.Parallel()
	sess := sttmock.NewSession()
	provider := &sttmock.Provider{Session: sess}
	ts := httptest.NewServer(newTestServer(t, &fakeScenes{}, server.WithCapture(provider)))
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := dialCapture(t, ctx, ts, "?sample_rate=16000")
	defer conn.Close(websocket.StatusNormalClosure, "")

	// One PCM frame upstream, then the transcript that locks the concept.
	if err := conn.Write(ctx, websocket.MessageBinary, []byte{0, 1, 0, 1}); err != nil {
		t.Fatalf("writing audio frame: %v", err)
	}
	sess.Push(stt.Transcript{Text: "show me ancient rome", IsFinal: true, Confidence: 0.93})

	var resp struct {
		Concept    string  `json:"concept"`
		Transcript string  `json:"transcript"`
		Confidence float64 `json:"confidence"`
	}
	if err := wsjson.Read(ctx, conn, &resp); err != nil {
		t.Fatalf("reading capture reply: %v", err)
	}
	if resp.Concept != "ancient rome" {
		t.Errorf("concept = %q, want %q", resp.Concept, "ancient rome")
	}
	if resp.Transcript != "show me ancient rome" {
		t.Errorf("transcript = %q", resp.Transcript)
	}
	if resp.Confidence != 0.93 {
		t.Errorf("confidence = %v", resp.Confidence)
	}
}

func TestCapture_RejectsInvalidSampleRate(t *testing.T) {
	t.Parallel()
	provider := &sttmock.Provider{Session: sttmock.NewSession()}
	ts := httptest.NewServer(newTestServer(t, &fakeScenes{}, server.WithCapture(provider)))
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := dialCapture(t, ctx, ts, "?sample_rate=banana")
	defer conn.Close(websocket.StatusNormalClosure, "")

	_, _, err := conn.Read(ctx)
	if err == nil {
		t.Fatal("expected the server to close the socket")
	}
	if got := websocket.CloseStatus(err); got != websocket.StatusUnsupportedData {
		t.Errorf("close status = %v, want %v", got, websocket.StatusUnsupportedData)
	}
}

func TestCapture_ClosesCleanlyWhenStreamEndsWithoutCommand(t *testing.T) {
	t.Parallel()
	sess := sttmock.NewSession()
	provider := &sttmock.Provider{Session: sess}
	ts := httptest.NewServer(newTestServer(t, &fakeScenes{}, server.WithCapture(provider)))
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := dialCapture(t, ctx, ts, "")
	defer conn.Close(websocket.StatusNormalClosure, "")

	sess.PushEvent(stt.Event{Kind: stt.EventClose})

	_, _, err := conn.Read(ctx)
	if err == nil {
		t.Fatal("expected the server to close the socket")
	}
	if got := websocket.CloseStatus(err); got != websocket.StatusNormalClosure {
		t.Errorf("close status = %v, want %v", got, websocket.StatusNormalClosure)
	}
}

func TestCapture_NotRegisteredWithoutProvider(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(newTestServer(t, &fakeScenes{}))
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/capture"
	if _, _, err := websocket.Dial(ctx, url, nil); err == nil {
		t.Fatal("expected dial to fail when no capture provider is configured")
	}
}
