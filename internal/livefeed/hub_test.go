package livefeed

import (
	"testing"
	"time"

	"lincona/internal/transcript"
)

func TestHubDeliversPublishedEventToSubscriber(t *testing.T) {
	h := NewHub()
	sub, unsub := h.Subscribe("s1", 4)
	defer unsub()

	ev := transcript.Event{Timestamp: time.Now(), Kind: transcript.KindUserMessage, Payload: map[string]any{"content": "hi"}}
	h.Publish("s1", ev)

	select {
	case got := <-sub:
		if got.Kind != transcript.KindUserMessage {
			t.Fatalf("unexpected event: %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published event")
	}
}

func TestHubDoesNotDeliverToOtherSessions(t *testing.T) {
	h := NewHub()
	sub, unsub := h.Subscribe("s1", 4)
	defer unsub()

	h.Publish("s2", transcript.Event{Timestamp: time.Now(), Kind: transcript.KindUserMessage})

	select {
	case got := <-sub:
		t.Fatalf("unexpected event delivered across sessions: %+v", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubDropsEventsWhenSubscriberBufferIsFull(t *testing.T) {
	h := NewHub()
	sub, unsub := h.Subscribe("s1", 1)
	defer unsub()

	for i := 0; i < 5; i++ {
		h.Publish("s1", transcript.Event{Timestamp: time.Now(), Kind: transcript.KindUserMessage})
	}

	if len(sub) != 1 {
		t.Fatalf("expected buffer to cap at 1 event, got %d", len(sub))
	}
}

func TestHubUnsubscribeClosesChannelAndForgetsSession(t *testing.T) {
	h := NewHub()
	sub, unsub := h.Subscribe("s1", 1)
	if h.SubscriberCount("s1") != 1 {
		t.Fatal("expected one subscriber")
	}
	unsub()
	if h.SubscriberCount("s1") != 0 {
		t.Fatal("expected subscriber count to drop to zero")
	}
	if _, ok := <-sub; ok {
		t.Fatal("expected channel to be closed")
	}
}
