package livefeed

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"lincona/internal/transcript"
)

func newTestServer(t *testing.T) (*httptest.Server, *Hub, string) {
	t.Helper()
	dataRoot := t.TempDir()
	hub := NewHub()
	srv := New("", dataRoot, hub)
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts, hub, dataRoot
}

func TestSessionEventsReplaysTranscriptHistory(t *testing.T) {
	ts, _, dataRoot := newTestServer(t)

	tw, err := transcript.OpenWriter(dataRoot, "s1")
	if err != nil {
		t.Fatalf("OpenWriter: %v", err)
	}
	if err := tw.Append(transcript.Event{Timestamp: time.Now(), Kind: transcript.KindUserMessage, Payload: map[string]any{"content": "hi"}}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	wsURL := strings.Replace(ts.URL, "http://", "ws://", 1) + "/sessions/s1/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var got transcript.Event
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read replayed event: %v", err)
	}
	if got.Kind != transcript.KindUserMessage {
		t.Fatalf("unexpected replayed event: %+v", got)
	}
}

func TestSessionEventsStreamsLivePublishes(t *testing.T) {
	ts, hub, _ := newTestServer(t)

	wsURL := strings.Replace(ts.URL, "http://", "ws://", 1) + "/sessions/s2/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.SubscriberCount("s2") == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if hub.SubscriberCount("s2") == 0 {
		t.Fatal("expected a subscriber to be registered")
	}

	hub.Publish("s2", transcript.Event{Timestamp: time.Now(), Kind: transcript.KindAssistantMessage, Payload: map[string]any{"content": "done"}})

	var got transcript.Event
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read live event: %v", err)
	}
	if got.Kind != transcript.KindAssistantMessage {
		t.Fatalf("unexpected live event: %+v", got)
	}
}

func TestSessionEventsRejectsNonEventsPath(t *testing.T) {
	ts, _, _ := newTestServer(t)
	resp, err := ts.Client().Get(ts.URL + "/sessions/s1/")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
