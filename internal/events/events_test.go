package events

import (
	"strconv"
	"testing"
	"time"
)

func TestPublishFanOut(t *testing.T) {
	h := NewHub()
	id1, ch1 := h.Subscribe()
	id2, ch2 := h.Subscribe()
	defer h.Unsubscribe(id1)
	defer h.Unsubscribe(id2)

	h.Publish(TypeListening, Listening{Listening: true})

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case ev := <-ch:
			if ev.Type != TypeListening {
				t.Errorf("subscriber %d: want listening event, got %s", i, ev.Type)
			}
			if ev.At.IsZero() {
				t.Errorf("subscriber %d: event has no timestamp", i)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d: no event delivered", i)
		}
	}
}

func TestSlowSubscriberDropsEvents(t *testing.T) {
	h := NewHub()
	id, ch := h.Subscribe()
	defer h.Unsubscribe(id)

	// Never drain; publishing past the buffer must not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			h.Publish(TypeTranscription, Transcription{Text: "x"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	if got := len(ch); got != subscriberBuffer {
		t.Errorf("want buffer capped at %d, got %d", subscriberBuffer, got)
	}
}

func TestSlowSubscriberKeepsNewest(t *testing.T) {
	h := NewHub()
	id, ch := h.Subscribe()
	defer h.Unsubscribe(id)

	// Overflow the buffer by one without draining. The oldest event is
	// evicted; everything newer survives in order.
	for i := 0; i <= subscriberBuffer; i++ {
		h.Publish(TypeTranscription, Transcription{SegmentID: "seg", Text: strconv.Itoa(i)})
	}

	first := (<-ch).Payload.(Transcription)
	if first.Text != "1" {
		t.Errorf("oldest event should have been evicted, got %q first", first.Text)
	}

	var last Transcription
	for len(ch) > 0 {
		last = (<-ch).Payload.(Transcription)
	}
	if want := strconv.Itoa(subscriberBuffer); last.Text != want {
		t.Errorf("newest event lost: want %q last, got %q", want, last.Text)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	h := NewHub()
	id, ch := h.Subscribe()
	h.Unsubscribe(id)

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after unsubscribe")
	}
	if h.SubscriberCount() != 0 {
		t.Errorf("want 0 subscribers, got %d", h.SubscriberCount())
	}

	// Publishing with no subscribers is a no-op.
	h.Publish(TypeMode, ModeChange{Mode: "default"})
}
